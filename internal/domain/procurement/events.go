// Package procurement holds the contract of goods receipt events published
// by the procurement context.
package procurement

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventTypeGoodsReceived    = "GoodsReceived"
	AggregateTypeGoodsReceipt = "GoodsReceipt"
)

type GoodsReceivedLine struct {
	ProductID        uuid.UUID       `json:"product_id" validate:"required"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
}

// Amount is received quantity times unit price.
func (l GoodsReceivedLine) Amount() decimal.Decimal {
	return l.ReceivedQuantity.Mul(l.UnitPrice)
}

// GoodsReceivedEvent is an immutable snapshot of a posted goods receipt.
type GoodsReceivedEvent struct {
	shared.BaseDomainEvent
	ReceiptID    uuid.UUID           `json:"receipt_id" validate:"required"`
	SupplierName string              `json:"supplier_name" validate:"max=200"`
	WarehouseID  uuid.UUID           `json:"warehouse_id"`
	Lines        []GoodsReceivedLine `json:"lines" validate:"dive"`
}

// Total sums the line amounts.
func (e *GoodsReceivedEvent) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Amount())
	}
	return total
}

func NewGoodsReceivedEvent(tenantID, receiptID, warehouseID uuid.UUID, supplierName string, lines []GoodsReceivedLine) *GoodsReceivedEvent {
	return &GoodsReceivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeGoodsReceived, AggregateTypeGoodsReceipt, receiptID, tenantID),
		ReceiptID:       receiptID,
		SupplierName:    supplierName,
		WarehouseID:     warehouseID,
		Lines:           lines,
	}
}
