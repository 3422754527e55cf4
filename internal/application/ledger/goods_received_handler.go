package ledger

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/procurement"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GoodsReceivedHandler accrues received goods against the goods-received
// clearing account until the supplier invoice arrives.
type GoodsReceivedHandler struct {
	generatorDeps
}

func NewGoodsReceivedHandler(deps GeneratorDeps) *GoodsReceivedHandler {
	return &GoodsReceivedHandler{generatorDeps: deps.build()}
}

func (h *GoodsReceivedHandler) EventTypes() []string {
	return []string{procurement.EventTypeGoodsReceived}
}

func (h *GoodsReceivedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	ev, ok := event.(*procurement.GoodsReceivedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", procurement.EventTypeGoodsReceived),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			procurement.EventTypeGoodsReceived, event.EventType())
	}

	attempt := PostingAttempt{
		TenantID:      ev.TenantID(),
		EventID:       ev.EventID(),
		EventType:     ev.EventType(),
		ReferenceType: ReferenceTypeGoodsReceipt,
		ReferenceID:   ev.ReceiptID.String(),
	}
	h.logger.Info("processing goods received event",
		zap.String("tenant_id", attempt.TenantID.String()),
		zap.String("receipt_id", attempt.ReferenceID),
		zap.String("supplier_name", ev.SupplierName),
		zap.Int("lines", len(ev.Lines)),
	)

	header := ledger.EntryHeader{
		EntryType:     ledger.EntryTypeGoodsReceipt,
		ReferenceType: ReferenceTypeGoodsReceipt,
		ReferenceID:   attempt.ReferenceID,
		EntryDate:     ev.OccurredAt(),
		Description:   "Goods received from " + ev.SupplierName,
		CreatedBy:     SystemActor,
	}
	out, err := h.post(ctx, attempt, header, func() ([]leg, error) {
		if err := validatePayload(ev); err != nil {
			return nil, err
		}
		for i, l := range ev.Lines {
			if l.ReceivedQuantity.IsNegative() || l.UnitPrice.IsNegative() {
				return nil, ledger.ErrValidation.Newf("line %d of receipt %s has a negative quantity or price", i+1, ev.ReceiptID)
			}
		}
		return goodsReceivedLegs(ev), nil
	})
	if err != nil {
		return fmt.Errorf("failed to post goods receipt %s: %w", attempt.ReferenceID, err)
	}
	h.logOutcome(attempt, out)
	return nil
}

// goodsReceivedLegs debits inventory once per receipt line and credits the
// clearing account with the rounded total, so the entry balances exactly.
func goodsReceivedLegs(ev *procurement.GoodsReceivedEvent) []leg {
	legs := make([]leg, 0, len(ev.Lines)+1)
	total := decimal.Zero
	for _, l := range ev.Lines {
		amount := l.Amount().Round(ledger.LedgerScale)
		if amount.IsZero() {
			continue
		}
		total = total.Add(amount)
		legs = append(legs, debitLeg(RoleInventoryAsset, amount, "Received product "+l.ProductID.String()))
	}
	if total.IsZero() {
		return nil
	}
	return append(legs, creditLeg(RoleGoodsReceivedClearing, total, "Goods received not invoiced"))
}

var _ shared.EventHandler = (*GoodsReceivedHandler)(nil)
