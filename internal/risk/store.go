package risk

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/perpgate/perpgate/pkg/models"
)

// RiskLimitStore reads configured risk limits. Limits are written by an
// administrative collaborator; this core only reads active rows.
type RiskLimitStore interface {
	// GetByUser returns the active limit scoped to the user, further
	// scoped to asset when non-nil (nil matches the user's all-asset row).
	GetByUser(ctx context.Context, userID uuid.UUID, asset *string) (*models.RiskLimit, error)
	// GetByAsset returns the active all-user limit for an asset.
	GetByAsset(ctx context.Context, asset string) (*models.RiskLimit, error)
	// GetGlobalDefault returns the active all-user, all-asset limit.
	GetGlobalDefault(ctx context.Context) (*models.RiskLimit, error)
	GetAllActive(ctx context.Context, offset, limit int) ([]models.RiskLimit, error)
}

// RiskEventStore appends and lists immutable risk events.
type RiskEventStore interface {
	CreateEvent(ctx context.Context, event *models.RiskEvent) error
	// GetByUser lists a user's events, newest first, optionally filtered
	// by event type.
	GetByUser(ctx context.Context, userID uuid.UUID, eventType string, offset, limit int) ([]models.RiskEvent, error)
}

// PositionStore reads open positions owned by the trading subsystem.
type PositionStore interface {
	GetByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]models.Position, error)
	GetAll(ctx context.Context, offset, limit int) ([]models.Position, error)
}

type gormRiskLimitStore struct {
	db *gorm.DB
}

// NewRiskLimitStore returns a gorm-backed RiskLimitStore.
func NewRiskLimitStore(db *gorm.DB) RiskLimitStore {
	return &gormRiskLimitStore{db: db}
}

func (s *gormRiskLimitStore) GetByUser(ctx context.Context, userID uuid.UUID, asset *string) (*models.RiskLimit, error) {
	query := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true)
	if asset != nil {
		query = query.Where("asset = ?", *asset)
	} else {
		query = query.Where("asset IS NULL")
	}
	return firstLimit(query)
}

func (s *gormRiskLimitStore) GetByAsset(ctx context.Context, asset string) (*models.RiskLimit, error) {
	query := s.db.WithContext(ctx).
		Where("user_id IS NULL AND asset = ? AND is_active = ?", asset, true)
	return firstLimit(query)
}

func (s *gormRiskLimitStore) GetGlobalDefault(ctx context.Context) (*models.RiskLimit, error) {
	query := s.db.WithContext(ctx).
		Where("user_id IS NULL AND asset IS NULL AND is_active = ?", true)
	return firstLimit(query)
}

func (s *gormRiskLimitStore) GetAllActive(ctx context.Context, offset, limit int) ([]models.RiskLimit, error) {
	var limits []models.RiskLimit
	query := s.db.WithContext(ctx).Where("is_active = ?", true).Order("updated_at DESC")
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&limits).Error; err != nil {
		return nil, fmt.Errorf("list active risk limits: %w", err)
	}
	return limits, nil
}

// firstLimit runs the query and maps "no row" onto (nil, nil) so the
// service can fall through the specificity hierarchy.
func firstLimit(query *gorm.DB) (*models.RiskLimit, error) {
	var limit models.RiskLimit
	err := query.Order("updated_at DESC").First(&limit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load risk limit: %w", err)
	}
	return &limit, nil
}

type gormRiskEventStore struct {
	db *gorm.DB
}

// NewRiskEventStore returns a gorm-backed RiskEventStore.
func NewRiskEventStore(db *gorm.DB) RiskEventStore {
	return &gormRiskEventStore{db: db}
}

func (s *gormRiskEventStore) CreateEvent(ctx context.Context, event *models.RiskEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("create risk event: %w", err)
	}
	return nil
}

func (s *gormRiskEventStore) GetByUser(ctx context.Context, userID uuid.UUID, eventType string, offset, limit int) ([]models.RiskEvent, error) {
	var events []models.RiskEvent
	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list risk events: %w", err)
	}
	return events, nil
}

type gormPositionStore struct {
	db *gorm.DB
}

// NewPositionStore returns a gorm-backed PositionStore over the trading
// subsystem's position table. Read-only by contract.
func NewPositionStore(db *gorm.DB) PositionStore {
	return &gormPositionStore{db: db}
}

func (s *gormPositionStore) GetByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]models.Position, error) {
	var positions []models.Position
	query := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, "open")
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("list user positions: %w", err)
	}
	return positions, nil
}

func (s *gormPositionStore) GetAll(ctx context.Context, offset, limit int) ([]models.Position, error) {
	var positions []models.Position
	query := s.db.WithContext(ctx).Where("status = ?", "open").Order("created_at")
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	return positions, nil
}
