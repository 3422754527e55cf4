// Package inventory holds the contract of stock movement events published
// by the inventory context.
package inventory

import (
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventTypeStockMovementRecorded = "StockMovementRecorded"
	AggregateTypeStockMovement     = "StockMovement"
)

// MovementType classifies a stock movement. Values are compared upper-case.
type MovementType string

const (
	MovementTypeReceipt    MovementType = "RECEIPT"
	MovementTypeIssue      MovementType = "ISSUE"
	MovementTypeAdjustment MovementType = "ADJUSTMENT"
	MovementTypeTransfer   MovementType = "TRANSFER"
	MovementTypeReturn     MovementType = "RETURN"
	MovementTypeReserve    MovementType = "RESERVE"
)

// Normalize upper-cases and trims the movement type.
func (t MovementType) Normalize() MovementType {
	return MovementType(strings.ToUpper(strings.TrimSpace(string(t))))
}

// StockMovementRecordedEvent is an immutable snapshot of one stock movement.
// Positive quantities increase stock; negative quantities decrease it.
type StockMovementRecordedEvent struct {
	shared.BaseDomainEvent
	MovementID       uuid.UUID        `json:"movement_id" validate:"required"`
	ProductID        uuid.UUID        `json:"product_id" validate:"required"`
	WarehouseID      uuid.UUID        `json:"warehouse_id,omitempty"`
	ProductCostPrice decimal.Decimal  `json:"product_cost_price"`
	Quantity         decimal.Decimal  `json:"quantity"`
	UnitCost         *decimal.Decimal `json:"unit_cost,omitempty"`
	MovementType     MovementType     `json:"movement_type" validate:"required"`
	ReferenceNumber  string           `json:"reference_number" validate:"max=100"`
}

// EffectiveUnitCost prefers the movement's own unit cost over the product
// cost price.
func (e *StockMovementRecordedEvent) EffectiveUnitCost() decimal.Decimal {
	if e.UnitCost != nil {
		return *e.UnitCost
	}
	return e.ProductCostPrice
}

// Value is |quantity| x effective unit cost.
func (e *StockMovementRecordedEvent) Value() decimal.Decimal {
	return e.Quantity.Abs().Mul(e.EffectiveUnitCost())
}

func NewStockMovementRecordedEvent(tenantID, movementID, productID uuid.UUID, movementType MovementType, quantity, productCostPrice decimal.Decimal) *StockMovementRecordedEvent {
	return &StockMovementRecordedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeStockMovementRecorded, AggregateTypeStockMovement, movementID, tenantID),
		MovementID:       movementID,
		ProductID:        productID,
		ProductCostPrice: productCostPrice,
		Quantity:         quantity,
		MovementType:     movementType,
	}
}
