package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"instant-win-system/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// PostgreSQL error codes that mean "lost a race, try again".
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgLockNotAvailable     = "55P03"
)

// pgInvalidTextRepresentation is raised for a malformed uuid lookup key.
const pgInvalidTextRepresentation = "22P02"

// deleted_at is reset so a retired prize can be configured again.
var prizeDefinitionColumns = []string{
	"name", "rank", "probability", "unlimited_stock",
	"valid_from", "valid_to", "is_consolation", "type",
	"e_coupon", "url", "mail_delivery", "updated_at", "deleted_at",
}

var campaignColumns = []string{
	"name", "starts_at", "ends_at", "overall_win_probability",
	"participation_limit_per_user", "participation_interval_seconds",
	"prevent_duplicate_prizes", "out_of_stock_behavior", "consolation_on_loss",
	"require_ticket", "require_form_approval", "tickets", "updated_at",
}

// GormStore is the PostgreSQL implementation of Store.
type GormStore struct {
	db *gorm.DB
}

// OpenPostgres connects to PostgreSQL with duplicate-key translation enabled.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate creates or updates every table the engine uses.
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.Campaign{},
		&models.Prize{},
		&models.PrizeURL{},
		&models.ParticipationRecord{},
		&models.ChanceOverride{},
		&models.ClaimedGrant{},
		&models.GrantUsage{},
		&models.ParticipationRequest{},
	)
}

func (s *GormStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
	return translateError(err)
}

// translateError maps driver errors onto ErrNotFound / ErrConflict and
// leaves every other error untouched.
func translateError(err error) error {
	if err == nil || errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgUniqueViolation, pgLockNotAvailable:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case pgInvalidTextRepresentation:
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
	}
	return err
}

func (s *GormStore) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	var c models.Campaign
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, translateError(err)
	}
	return &c, nil
}

func (s *GormStore) ListPrizes(ctx context.Context, campaignID string) ([]models.Prize, error) {
	return listPrizes(s.db.WithContext(ctx), campaignID)
}

func listPrizes(db *gorm.DB, campaignID string) ([]models.Prize, error) {
	var prizes []models.Prize
	if err := db.Where("campaign_id = ?", campaignID).Order("rank ASC, id ASC").Find(&prizes).Error; err != nil {
		return nil, translateError(err)
	}
	return prizes, nil
}

func (s *GormStore) GetRecord(ctx context.Context, id string) (*models.ParticipationRecord, error) {
	var r models.ParticipationRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, translateError(err)
	}
	return &r, nil
}

func (s *GormStore) ListRecords(ctx context.Context, campaignID, userID string) ([]models.ParticipationRecord, error) {
	var records []models.ParticipationRecord
	err := s.db.WithContext(ctx).
		Where("campaign_id = ? AND user_id = ?", campaignID, userID).
		Order("participated_at ASC, created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, translateError(err)
	}
	return records, nil
}

func (s *GormStore) ListStaleRequests(ctx context.Context, cutoff time.Time) ([]models.ParticipationRequest, error) {
	var requests []models.ParticipationRequest
	err := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.RequestPending, cutoff).
		Order("created_at ASC").
		Find(&requests).Error
	if err != nil {
		return nil, translateError(err)
	}
	return requests, nil
}

func (s *GormStore) ListGrantUsages(ctx context.Context, campaignID string) ([]models.GrantUsage, error) {
	var usages []models.GrantUsage
	if err := s.db.WithContext(ctx).Where("campaign_id = ?", campaignID).Order("source_id ASC").Find(&usages).Error; err != nil {
		return nil, translateError(err)
	}
	return usages, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) forUpdate() *gorm.DB {
	return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (t *gormTx) LockChanceOverride(campaignID, userID string) (*models.ChanceOverride, error) {
	// Make sure the row exists so FOR UPDATE has something to lock.
	seed := models.ChanceOverride{ID: uuid.NewString(), CampaignID: campaignID, UserID: userID}
	if err := t.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, translateError(err)
	}

	var o models.ChanceOverride
	if err := t.forUpdate().Where("campaign_id = ? AND user_id = ?", campaignID, userID).First(&o).Error; err != nil {
		return nil, translateError(err)
	}
	return &o, nil
}

func (t *gormTx) SaveChanceOverride(o *models.ChanceOverride) error {
	err := t.db.Model(&models.ChanceOverride{}).
		Where("id = ?", o.ID).
		Update("extra_chances", o.ExtraChances).Error
	return translateError(err)
}

func (t *gormTx) CountRecords(campaignID, userID string) (int64, error) {
	var n int64
	err := t.db.Model(&models.ParticipationRecord{}).
		Where("campaign_id = ? AND user_id = ?", campaignID, userID).
		Count(&n).Error
	return n, translateError(err)
}

func (t *gormTx) LastParticipation(campaignID, userID string) (*time.Time, error) {
	var last sql.NullTime
	row := t.db.Model(&models.ParticipationRecord{}).
		Select("MAX(participated_at)").
		Where("campaign_id = ? AND user_id = ?", campaignID, userID).
		Row()
	if err := row.Scan(&last); err != nil {
		return nil, translateError(err)
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

func (t *gormTx) HeldPrizeIDs(campaignID, userID string) ([]string, error) {
	var ids []string
	err := t.db.Model(&models.ParticipationRecord{}).
		Where("campaign_id = ? AND user_id = ? AND is_win = ? AND is_consolation_prize = ?", campaignID, userID, true, false).
		Distinct().
		Pluck("prize_id", &ids).Error
	return ids, translateError(err)
}

func (t *gormTx) ListPrizes(campaignID string) ([]models.Prize, error) {
	return listPrizes(t.db, campaignID)
}

func (t *gormTx) LockPrize(prizeID string) (*models.Prize, error) {
	var p models.Prize
	if err := t.forUpdate().Where("id = ?", prizeID).First(&p).Error; err != nil {
		return nil, translateError(err)
	}
	return &p, nil
}

func (t *gormTx) UpdatePrizeCounters(prizeID string, stock, winnersCount int) error {
	err := t.db.Model(&models.Prize{}).
		Where("id = ?", prizeID).
		Updates(map[string]interface{}{
			"stock":         stock,
			"winners_count": winnersCount,
		}).Error
	return translateError(err)
}

func (t *gormTx) TakePrizeURL(prizeID, userID string, at time.Time) (*models.PrizeURL, error) {
	var u models.PrizeURL
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("prize_id = ? AND assigned_to IS NULL", prizeID).
		Order("created_at ASC, id ASC").
		First(&u).Error
	if err != nil {
		return nil, translateError(err)
	}

	u.AssignedTo = &userID
	u.AssignedAt = &at
	err = t.db.Model(&models.PrizeURL{}).
		Where("id = ?", u.ID).
		Updates(map[string]interface{}{
			"assigned_to": userID,
			"assigned_at": at,
		}).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &u, nil
}

func (t *gormTx) AddPrizeURLs(urls []models.PrizeURL) error {
	if len(urls) == 0 {
		return nil
	}
	return translateError(t.db.CreateInBatches(&urls, 200).Error)
}

func (t *gormTx) CreateRecord(r *models.ParticipationRecord) error {
	return translateError(t.db.Create(r).Error)
}

func (t *gormTx) LockRecord(id string) (*models.ParticipationRecord, error) {
	var r models.ParticipationRecord
	if err := t.forUpdate().Where("id = ?", id).First(&r).Error; err != nil {
		return nil, translateError(err)
	}
	return &r, nil
}

func (t *gormTx) UpdateRecordUsage(r *models.ParticipationRecord) error {
	err := t.db.Model(r).
		Select("coupon_used_count", "coupon_usage_history", "shipping_address", "questionnaire_answers").
		Updates(r).Error
	return translateError(err)
}

func (t *gormTx) HasClaimedGrant(campaignID, userID, sourceID string) (bool, error) {
	var n int64
	err := t.db.Model(&models.ClaimedGrant{}).
		Where("campaign_id = ? AND user_id = ? AND source_id = ?", campaignID, userID, sourceID).
		Count(&n).Error
	return n > 0, translateError(err)
}

func (t *gormTx) CreateClaimedGrant(g *models.ClaimedGrant) error {
	return translateError(t.db.Create(g).Error)
}

func (t *gormTx) IncrementGrantUsage(campaignID, sourceID string) error {
	usage := models.GrantUsage{CampaignID: campaignID, SourceID: sourceID, UsedCount: 1}
	err := t.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "campaign_id"}, {Name: "source_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"used_count": gorm.Expr("grant_usages.used_count + 1"),
			"updated_at": time.Now(),
		}),
	}).Create(&usage).Error
	return translateError(err)
}

func (t *gormTx) CreateRequest(r *models.ParticipationRequest) error {
	return translateError(t.db.Create(r).Error)
}

func (t *gormTx) LockRequest(id string) (*models.ParticipationRequest, error) {
	var r models.ParticipationRequest
	if err := t.forUpdate().Where("id = ?", id).First(&r).Error; err != nil {
		return nil, translateError(err)
	}
	return &r, nil
}

func (t *gormTx) UpdateRequest(r *models.ParticipationRequest) error {
	err := t.db.Model(r).
		Select("status", "reviewed_by", "reviewed_at", "reject_reason").
		Updates(r).Error
	return translateError(err)
}

func (t *gormTx) FindPendingRequest(campaignID, userID string) (*models.ParticipationRequest, error) {
	var r models.ParticipationRequest
	err := t.db.Where("campaign_id = ? AND user_id = ? AND status = ?", campaignID, userID, models.RequestPending).
		Order("created_at ASC").
		First(&r).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &r, nil
}

func (t *gormTx) SaveCampaign(c *models.Campaign, prizes []models.Prize) error {
	ids := make([]string, 0, len(prizes))
	for i := range prizes {
		prizes[i].CampaignID = c.ID
		ids = append(ids, prizes[i].ID)
	}

	if len(ids) > 0 {
		var foreign int64
		err := t.db.Unscoped().Model(&models.Prize{}).
			Where("id IN ? AND campaign_id <> ?", ids, c.ID).
			Count(&foreign).Error
		if err != nil {
			return translateError(err)
		}
		if foreign > 0 {
			return ErrPrizeOwnedElsewhere
		}
	}

	err := t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(campaignColumns),
	}).Create(c).Error
	if err != nil {
		return translateError(err)
	}

	for i := range prizes {
		err := t.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(prizeDefinitionColumns),
		}).Create(&prizes[i]).Error
		if err != nil {
			return translateError(err)
		}
	}

	// Soft-delete the prizes dropped from the definition.
	retire := t.db.Where("campaign_id = ?", c.ID)
	if len(ids) > 0 {
		retire = retire.Where("id NOT IN ?", ids)
	}
	return translateError(retire.Delete(&models.Prize{}).Error)
}
