// Package risk resolves risk limits, validates prospective trades and
// monitors open positions for margin-call and liquidation breaches.
package risk

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/perpgate/perpgate/pkg/models"
)

// Hardcoded fallback applied when no limit row exists at any specificity
// level.
var (
	fallbackMaxLeverage     = 10
	fallbackMaxPositionSize = decimal.NewFromInt(1_000_000)
	fallbackMinMargin       = decimal.NewFromInt(100)
)

// marginCallThreshold is the margin ratio below which a margin call fires.
var marginCallThreshold = decimal.RequireFromString("0.1")

// liquidationProximityPct is the liquidation-distance threshold, percent.
var liquidationProximityPct = decimal.NewFromInt(5)

// Service is the risk management engine. Its checks read limits and
// positions without holding any lock across the multi-step validation, so
// concurrent submissions by one user can race past the position-size
// check before either persists; admission is best-effort by design.
type Service struct {
	log       *zap.Logger
	limits    RiskLimitStore
	events    RiskEventStore
	positions PositionStore
}

// NewService wires the risk engine to its stores.
func NewService(log *zap.Logger, limits RiskLimitStore, events RiskEventStore, positions PositionStore) *Service {
	return &Service{
		log:       log.Named("risk"),
		limits:    limits,
		events:    events,
		positions: positions,
	}
}

// GetRiskLimit resolves the effective limit for (user, asset), most
// specific active row first: (user, asset), (user, any), (any, asset),
// platform default, hardcoded fallback. The hierarchy is resolved at read
// time, never pre-merged.
func (s *Service) GetRiskLimit(ctx context.Context, userID uuid.UUID, asset *string) (*models.RiskLimit, error) {
	if asset != nil {
		limit, err := s.limits.GetByUser(ctx, userID, asset)
		if err != nil {
			return nil, err
		}
		if limit != nil {
			return limit, nil
		}
	}

	limit, err := s.limits.GetByUser(ctx, userID, nil)
	if err != nil {
		return nil, err
	}
	if limit != nil {
		return limit, nil
	}

	if asset != nil {
		limit, err = s.limits.GetByAsset(ctx, *asset)
		if err != nil {
			return nil, err
		}
		if limit != nil {
			return limit, nil
		}
	}

	limit, err = s.limits.GetGlobalDefault(ctx)
	if err != nil {
		return nil, err
	}
	if limit != nil {
		return limit, nil
	}

	return &models.RiskLimit{
		MaxLeverage:     fallbackMaxLeverage,
		MaxPositionSize: fallbackMaxPositionSize,
		MinMargin:       fallbackMinMargin,
		IsActive:        true,
	}, nil
}

// RequiredMargin computes the margin a trade consumes.
func RequiredMargin(collateral decimal.Decimal, leverage int) decimal.Decimal {
	return collateral.Mul(decimal.NewFromInt(int64(leverage)))
}

// ValidatePreTrade runs the leverage, position-size and margin checks in
// that order, short-circuiting on the first failure. A rule breach is a
// (false, reason) result, not an error; errors mean a store failed.
func (s *Service) ValidatePreTrade(
	ctx context.Context,
	userID uuid.UUID,
	collateral decimal.Decimal,
	leverage int,
	positionSize decimal.Decimal,
	availableBalance decimal.Decimal,
	asset *string,
) (bool, string, error) {
	limit, err := s.GetRiskLimit(ctx, userID, asset)
	if err != nil {
		return false, "", err
	}

	if ok, reason := s.validateLeverage(limit, leverage); !ok {
		return false, reason, nil
	}
	ok, reason, err := s.validatePositionSize(ctx, limit, userID, positionSize, asset)
	if err != nil {
		return false, "", err
	}
	if !ok {
		return false, reason, nil
	}
	if ok, reason := s.validateMargin(limit, collateral, leverage, availableBalance); !ok {
		return false, reason, nil
	}
	return true, "", nil
}

func (s *Service) validateLeverage(limit *models.RiskLimit, leverage int) (bool, string) {
	if leverage > limit.MaxLeverage {
		return false, fmt.Sprintf("leverage %d exceeds maximum allowed leverage of %d",
			leverage, limit.MaxLeverage)
	}
	return true, ""
}

func (s *Service) validatePositionSize(
	ctx context.Context,
	limit *models.RiskLimit,
	userID uuid.UUID,
	newSize decimal.Decimal,
	asset *string,
) (bool, string, error) {
	existing, err := s.positions.GetByUser(ctx, userID, 0, 0)
	if err != nil {
		return false, "", err
	}

	total := newSize
	for _, position := range existing {
		if asset != nil && position.Asset != *asset {
			continue
		}
		total = total.Add(position.Size)
	}

	if total.GreaterThan(limit.MaxPositionSize) {
		return false, fmt.Sprintf("total position size %s exceeds maximum allowed size of %s",
			total, limit.MaxPositionSize), nil
	}
	return true, "", nil
}

func (s *Service) validateMargin(
	limit *models.RiskLimit,
	collateral decimal.Decimal,
	leverage int,
	availableBalance decimal.Decimal,
) (bool, string) {
	required := RequiredMargin(collateral, leverage)
	if required.LessThan(limit.MinMargin) {
		return false, fmt.Sprintf("required margin %s is below minimum margin requirement of %s",
			required, limit.MinMargin)
	}
	if availableBalance.LessThan(required) {
		return false, fmt.Sprintf("insufficient balance: required %s, available %s",
			required, availableBalance)
	}
	return true, ""
}

// MonitorPositionRisk evaluates one open position against the margin-call
// and liquidation-proximity thresholds. Each condition emits at most one
// immutable event per call, appended through the event store.
func (s *Service) MonitorPositionRisk(ctx context.Context, position *models.Position) ([]models.RiskEvent, error) {
	var events []models.RiskEvent

	if position.MarginRatio.LessThan(marginCallThreshold) {
		event := models.RiskEvent{
			UserID:       position.UserID,
			EventType:    models.RiskEventMarginCall,
			Threshold:    marginCallThreshold,
			CurrentValue: position.MarginRatio,
			Severity:     models.SeverityCritical,
			Message:      fmt.Sprintf("margin ratio %s is below 10%%", position.MarginRatio),
			PositionID:   &position.ID,
		}
		if err := s.events.CreateEvent(ctx, &event); err != nil {
			return events, err
		}
		events = append(events, event)
	}

	if position.LiquidationPrice != nil && !position.CurrentPrice.IsZero() {
		// Percentage distance to the liquidation trigger; negative when
		// the position is already past it, which still emits.
		var distance decimal.Decimal
		if position.Side == models.PositionSideLong {
			distance = position.CurrentPrice.Sub(*position.LiquidationPrice).
				Div(position.CurrentPrice).Mul(decimal.NewFromInt(100))
		} else {
			distance = position.LiquidationPrice.Sub(position.CurrentPrice).
				Div(position.CurrentPrice).Mul(decimal.NewFromInt(100))
		}

		if distance.LessThan(liquidationProximityPct) {
			event := models.RiskEvent{
				UserID:       position.UserID,
				EventType:    models.RiskEventLiquidationRisk,
				Threshold:    liquidationProximityPct,
				CurrentValue: distance,
				Severity:     models.SeverityCritical,
				Message:      fmt.Sprintf("position is within %s%% of liquidation price", distance.StringFixed(2)),
				PositionID:   &position.ID,
			}
			if err := s.events.CreateEvent(ctx, &event); err != nil {
				return events, err
			}
			events = append(events, event)
		}
	}

	if len(events) > 0 {
		s.log.Warn("risk thresholds breached",
			zap.String("position_id", position.ID.String()),
			zap.String("user_id", position.UserID.String()),
			zap.Int("events", len(events)))
	}
	return events, nil
}

// UserRiskMetrics is a read-only projection over one user's positions.
type UserRiskMetrics struct {
	UserID            uuid.UUID          `json:"user_id"`
	TotalPositions    int                `json:"total_positions"`
	AggregateLeverage decimal.Decimal    `json:"aggregate_leverage"`
	TotalPositionSize decimal.Decimal    `json:"total_position_size"`
	TotalCollateral   decimal.Decimal    `json:"total_collateral"`
	TotalNotional     decimal.Decimal    `json:"total_notional"`
	RecentEvents      []models.RiskEvent `json:"recent_risk_events"`
}

// PlatformRiskMetrics is a read-only projection over all open positions.
type PlatformRiskMetrics struct {
	TotalPositions    int             `json:"total_positions"`
	AggregateLeverage decimal.Decimal `json:"aggregate_leverage"`
	TotalPositionSize decimal.Decimal `json:"total_position_size"`
	TotalCollateral   decimal.Decimal `json:"total_collateral"`
	TotalNotional     decimal.Decimal `json:"total_notional"`
}

// GetUserRiskMetrics aggregates a user's open positions and recent events.
func (s *Service) GetUserRiskMetrics(ctx context.Context, userID uuid.UUID) (*UserRiskMetrics, error) {
	positions, err := s.positions.GetByUser(ctx, userID, 0, 0)
	if err != nil {
		return nil, err
	}
	size, collateral, notional := aggregate(positions)

	recent, err := s.events.GetByUser(ctx, userID, "", 0, 10)
	if err != nil {
		return nil, err
	}

	return &UserRiskMetrics{
		UserID:            userID,
		TotalPositions:    len(positions),
		AggregateLeverage: aggregateLeverage(notional, collateral),
		TotalPositionSize: size,
		TotalCollateral:   collateral,
		TotalNotional:     notional,
		RecentEvents:      recent,
	}, nil
}

// GetPlatformRiskMetrics aggregates open positions platform-wide.
func (s *Service) GetPlatformRiskMetrics(ctx context.Context, offset, limit int) (*PlatformRiskMetrics, error) {
	positions, err := s.positions.GetAll(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	size, collateral, notional := aggregate(positions)

	return &PlatformRiskMetrics{
		TotalPositions:    len(positions),
		AggregateLeverage: aggregateLeverage(notional, collateral),
		TotalPositionSize: size,
		TotalCollateral:   collateral,
		TotalNotional:     notional,
	}, nil
}

func aggregate(positions []models.Position) (size, collateral, notional decimal.Decimal) {
	for _, position := range positions {
		size = size.Add(position.Size)
		collateral = collateral.Add(position.Collateral)
		notional = notional.Add(position.Size.Mul(position.EntryPrice))
	}
	return size, collateral, notional
}

// aggregateLeverage is notional/collateral, defined as zero when there is
// no collateral.
func aggregateLeverage(notional, collateral decimal.Decimal) decimal.Decimal {
	if collateral.IsZero() {
		return decimal.Zero
	}
	return notional.Div(collateral)
}
