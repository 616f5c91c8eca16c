package services

import (
	"context"
	"errors"
	"strings"

	"instant-win-system/models"
	"instant-win-system/store"

	"github.com/rs/zerolog/log"
)

// RecordOutcome filters ListUserRecords.
type RecordOutcome string

const (
	RecordOutcomeAll         RecordOutcome = "all"
	RecordOutcomeWin         RecordOutcome = "win"
	RecordOutcomeConsolation RecordOutcome = "consolation"
	RecordOutcomeLoss        RecordOutcome = "loss"
)

// ParseRecordOutcome maps a query value to a filter; unknown values mean all.
func ParseRecordOutcome(v string) RecordOutcome {
	switch o := RecordOutcome(strings.ToLower(v)); o {
	case RecordOutcomeWin, RecordOutcomeConsolation, RecordOutcomeLoss:
		return o
	}
	return RecordOutcomeAll
}

type RecordFilter struct {
	Outcome RecordOutcome
	Limit   int // 0 = no limit
}

// RecordService serves a user's participation history and the post-win
// fields the winner fills in.
type RecordService struct {
	base
}

func NewRecordService(st store.Store, opts Options) *RecordService {
	opts = opts.withDefaults()
	return &RecordService{base: newBase(st, opts)}
}

// ListUserRecords returns the user's records of a campaign, newest first.
func (s *RecordService) ListUserRecords(ctx context.Context, campaignID, userID string, filter RecordFilter) ([]models.ParticipationRecord, error) {
	if userID == "" {
		return nil, ErrInvalidIdentity
	}
	if filter.Limit < 0 {
		return nil, ErrInvalidInput
	}

	all, err := s.store.ListRecords(ctx, campaignID, userID)
	if err != nil {
		return nil, err
	}

	records := make([]models.ParticipationRecord, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if !matchesOutcome(&all[i], filter.Outcome) {
			continue
		}
		records = append(records, all[i])
		if filter.Limit > 0 && len(records) == filter.Limit {
			break
		}
	}
	return records, nil
}

func matchesOutcome(r *models.ParticipationRecord, o RecordOutcome) bool {
	switch o {
	case RecordOutcomeWin:
		return r.IsWin
	case RecordOutcomeConsolation:
		return r.IsConsolationPrize
	case RecordOutcomeLoss:
		return r.IsLoss()
	}
	return true
}

// SetShippingAddress stores the delivery address of a mail-delivery win.
// Every field listed by the prize's ShippingFields must be filled.
func (s *RecordService) SetShippingAddress(ctx context.Context, recordID, userID string, addr models.ShippingAddress) (*models.ParticipationRecord, error) {
	if userID == "" {
		return nil, ErrInvalidIdentity
	}

	rec, err := s.updateOwned(ctx, "record.shipping", recordID, userID, func(r *models.ParticipationRecord) error {
		if r.IsLoss() {
			return ErrNotAWin
		}
		variant, err := r.PrizeSnapshot.Variant()
		if err != nil {
			return err
		}
		mail, ok := variant.(*models.MailDeliveryDetails)
		if !ok {
			return ErrNotMailDelivery
		}
		for _, field := range mail.ShippingFields {
			if strings.TrimSpace(addr.Field(field)) == "" {
				return ErrInvalidInput
			}
		}
		a := addr
		r.ShippingAddress = &a
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("record_id", recordID).Str("user_id", userID).Msg("📦 [Record] shipping address saved")
	return rec, nil
}

// SetQuestionnaireAnswers replaces the post-participation questionnaire
// answers of a record.
func (s *RecordService) SetQuestionnaireAnswers(ctx context.Context, recordID, userID string, answers map[string]string) (*models.ParticipationRecord, error) {
	if userID == "" {
		return nil, ErrInvalidIdentity
	}
	if len(answers) == 0 {
		return nil, ErrInvalidInput
	}

	return s.updateOwned(ctx, "record.questionnaire", recordID, userID, func(r *models.ParticipationRecord) error {
		r.QuestionnaireAnswers = make(map[string]string, len(answers))
		for k, v := range answers {
			r.QuestionnaireAnswers[k] = v
		}
		return nil
	})
}

func (s *RecordService) updateOwned(ctx context.Context, op, recordID, userID string, mutate func(r *models.ParticipationRecord) error) (*models.ParticipationRecord, error) {
	var rec *models.ParticipationRecord
	err := s.tx.run(ctx, op, func(tx store.Tx) error {
		r, err := tx.LockRecord(recordID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrRecordNotFound
		}
		if err != nil {
			return err
		}
		if r.UserID != userID {
			return ErrNotOwner
		}
		if err := mutate(r); err != nil {
			return err
		}
		rec = r
		return tx.UpdateRecordUsage(r)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
