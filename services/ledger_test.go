package services

import (
	"testing"
	"time"

	"instant-win-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableChances(t *testing.T) {
	tests := []struct {
		name     string
		rules    models.CampaignRules
		extra    int
		consumed int64
		want     int
	}{
		{"limit with nothing used", models.CampaignRules{ParticipationLimitPerUser: 3}, 0, 0, 3},
		{"limit plus extra", models.CampaignRules{ParticipationLimitPerUser: 1}, 2, 1, 2},
		{"never negative", models.CampaignRules{ParticipationLimitPerUser: 1}, 0, 4, 0},
		{"unlimited", models.CampaignRules{}, 0, 1000, UnlimitedChances},
		{"ticket gate ignores limit", models.CampaignRules{ParticipationLimitPerUser: 5, RequireTicket: true}, 0, 0, 0},
		{"ticket gate with grant", models.CampaignRules{ParticipationLimitPerUser: 5, RequireTicket: true}, 3, 1, 2},
		{"approval gate with grant", models.CampaignRules{RequireFormApproval: true}, 1, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AvailableChances(&tt.rules, tt.extra, tt.consumed))
		})
	}
}

func TestNextAvailableTime(t *testing.T) {
	last := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	assert.Nil(t, NextAvailableTime(&models.CampaignRules{}, &last))
	assert.Nil(t, NextAvailableTime(&models.CampaignRules{ParticipationInterval: time.Minute}, nil))

	next := NextAvailableTime(&models.CampaignRules{ParticipationInterval: time.Minute}, &last)
	require.NotNil(t, next)
	assert.Equal(t, last.Add(time.Minute), *next)
}
