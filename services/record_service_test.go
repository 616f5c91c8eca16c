package services

import (
	"context"
	"testing"

	"instant-win-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecords_ListFilters(t *testing.T) {
	f := newFixture(t, &seqRandom{vals: []float64{0, 0, 0.9}})
	rules := f.save(t, models.Campaign{ID: "c1", Name: "Spring", OverallWinProbability: 50, ParticipationLimitPerUser: 3},
		mailPrize("mug", 1, 1, 5))
	ctx := context.Background()

	// draws consume: win (0, 0), loss (0.9), win (0, 0)
	_, err := f.draws.Participate(ctx, rules, "u1", true)
	require.NoError(t, err)

	all, err := f.records.ListUserRecords(ctx, "c1", "u1", RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	wins, err := f.records.ListUserRecords(ctx, "c1", "u1", RecordFilter{Outcome: RecordOutcomeWin})
	require.NoError(t, err)
	assert.Len(t, wins, 2)

	losses, err := f.records.ListUserRecords(ctx, "c1", "u1", RecordFilter{Outcome: ParseRecordOutcome("LOSS")})
	require.NoError(t, err)
	assert.Len(t, losses, 1)

	limited, err := f.records.ListUserRecords(ctx, "c1", "u1", RecordFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	assert.Equal(t, RecordOutcomeAll, ParseRecordOutcome("whatever"))
}

func TestRecords_ShippingAddress(t *testing.T) {
	f := newFixture(t, fixedRandom(0))
	rules := f.save(t, models.Campaign{ID: "c1", Name: "Spring", OverallWinProbability: 100}, mailPrize("mug", 1, 1, 5))
	ctx := context.Background()

	recs, err := f.draws.Participate(ctx, rules, "u1", false)
	require.NoError(t, err)
	id := recs[0].ID

	_, err = f.records.SetShippingAddress(ctx, id, "u1", models.ShippingAddress{RecipientName: "Aki"})
	assert.ErrorIs(t, err, ErrInvalidInput, "postal_code is required by the prize")

	_, err = f.records.SetShippingAddress(ctx, id, "u2", models.ShippingAddress{RecipientName: "Aki", PostalCode: "150-0001"})
	assert.ErrorIs(t, err, ErrNotOwner)

	got, err := f.records.SetShippingAddress(ctx, id, "u1", models.ShippingAddress{RecipientName: "Aki", PostalCode: "150-0001"})
	require.NoError(t, err)
	assert.Equal(t, "150-0001", got.ShippingAddress.PostalCode)

	stored, err := f.store.GetRecord(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, stored.ShippingAddress)
	assert.Equal(t, "Aki", stored.ShippingAddress.RecipientName)
}

func TestRecords_ShippingNeedsMailDeliveryWin(t *testing.T) {
	f := newFixture(t, fixedRandom(0))
	rec := winCoupon(t, f, couponPrize("cp", 1, false))

	_, err := f.records.SetShippingAddress(context.Background(), rec.ID, "u1", models.ShippingAddress{RecipientName: "Aki"})
	assert.ErrorIs(t, err, ErrNotMailDelivery)
}

func TestRecords_Questionnaire(t *testing.T) {
	f := newFixture(t, fixedRandom(0.5))
	rules := f.save(t, models.Campaign{ID: "c1", Name: "Spring"})
	ctx := context.Background()

	recs, err := f.draws.Participate(ctx, rules, "u1", false)
	require.NoError(t, err)

	_, err = f.records.SetQuestionnaireAnswers(ctx, recs[0].ID, "u1", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	got, err := f.records.SetQuestionnaireAnswers(ctx, recs[0].ID, "u1", map[string]string{"q1": "yes"})
	require.NoError(t, err)
	assert.Equal(t, "yes", got.QuestionnaireAnswers["q1"])
}
