package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PositionSide indicates the direction of a perpetual position.
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// Risk event types emitted by the monitoring pass. The column is a plain
// string so new event types can be added without a migration.
const (
	RiskEventMarginCall      = "margin_call"
	RiskEventLiquidationRisk = "liquidation_risk"
)

// Risk event severities.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
	SeverityAlert    = "alert"
)

// RiskLimit is a configured ceiling/floor on leverage, position size and
// margin. A nil UserID means the limit applies to all users; a nil Asset
// means it applies to all assets. Limits are deactivated, never deleted,
// so the specificity hierarchy is resolved at read time.
type RiskLimit struct {
	ID              uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid"`
	UserID          *uuid.UUID      `json:"user_id" gorm:"type:uuid;index"`
	Asset           *string         `json:"asset" gorm:"index"`
	MaxLeverage     int             `json:"max_leverage"`
	MaxPositionSize decimal.Decimal `json:"max_position_size" gorm:"type:numeric(32,8)"`
	MinMargin       decimal.Decimal `json:"min_margin" gorm:"type:numeric(32,8)"`
	IsActive        bool            `json:"is_active" gorm:"index"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// RiskEvent is an immutable record of a detected risk-threshold breach.
// Rows are append-only; nothing in this codebase updates or deletes them.
type RiskEvent struct {
	ID           uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid"`
	UserID       uuid.UUID       `json:"user_id" gorm:"type:uuid;index"`
	EventType    string          `json:"event_type" gorm:"index"`
	Threshold    decimal.Decimal `json:"threshold" gorm:"type:numeric(32,8)"`
	CurrentValue decimal.Decimal `json:"current_value" gorm:"type:numeric(32,8)"`
	Severity     string          `json:"severity"`
	Message      string          `json:"message" gorm:"type:text"`
	PositionID   *uuid.UUID      `json:"position_id" gorm:"type:uuid;index"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Position is a read-only projection of an open perpetual position owned
// by the trading subsystem. The risk engine never writes to it.
type Position struct {
	ID               uuid.UUID        `json:"id" gorm:"primaryKey;type:uuid"`
	UserID           uuid.UUID        `json:"user_id" gorm:"type:uuid;index"`
	Asset            string           `json:"asset" gorm:"index"`
	Side             PositionSide     `json:"side"`
	Size             decimal.Decimal  `json:"size" gorm:"type:numeric(32,8)"`
	EntryPrice       decimal.Decimal  `json:"entry_price" gorm:"type:numeric(32,8)"`
	CurrentPrice     decimal.Decimal  `json:"current_price" gorm:"type:numeric(32,8)"`
	Leverage         int              `json:"leverage"`
	Collateral       decimal.Decimal  `json:"collateral" gorm:"type:numeric(32,8)"`
	MarginRatio      decimal.Decimal  `json:"margin_ratio" gorm:"type:numeric(16,8)"`
	LiquidationPrice *decimal.Decimal `json:"liquidation_price" gorm:"type:numeric(32,8)"`
	Status           string           `json:"status" gorm:"index;default:open"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
