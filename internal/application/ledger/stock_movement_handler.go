package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// StockPostingRules is the configurable part of stock movement posting:
// which movement types never reach the ledger and which account offsets
// inventory for every other type.
type StockPostingRules struct {
	excluded map[inventory.MovementType]bool
	contra   map[inventory.MovementType]AccountRole
}

// DefaultStockPostingRules excludes reservations and maps receipts and
// returns to the goods-received clearing account.
func DefaultStockPostingRules() *StockPostingRules {
	return &StockPostingRules{
		excluded: map[inventory.MovementType]bool{inventory.MovementTypeReserve: true},
		contra: map[inventory.MovementType]AccountRole{
			inventory.MovementTypeReceipt:    RoleGoodsReceivedClearing,
			inventory.MovementTypeReturn:     RoleGoodsReceivedClearing,
			inventory.MovementTypeIssue:      RoleCostOfGoodsSold,
			inventory.MovementTypeAdjustment: RoleInventoryAdjustment,
			inventory.MovementTypeTransfer:   RoleInventoryInTransit,
		},
	}
}

// NewStockPostingRules builds rules from configuration. contra maps a
// movement type to an account role known to catalog; a nil or empty map
// keeps the defaults.
func NewStockPostingRules(contra map[string]string, excluded []string, catalog *AccountCatalog) (*StockPostingRules, error) {
	rules := DefaultStockPostingRules()
	if excluded != nil {
		rules.excluded = make(map[inventory.MovementType]bool, len(excluded))
		for _, t := range excluded {
			rules.excluded[inventory.MovementType(t).Normalize()] = true
		}
	}
	if len(contra) > 0 {
		rules.contra = make(map[inventory.MovementType]AccountRole, len(contra))
		for t, role := range contra {
			r := AccountRole(strings.ToLower(strings.TrimSpace(role)))
			if catalog != nil && !catalog.HasRole(r) {
				return nil, fmt.Errorf("movement type %s: unknown account role %q", t, role)
			}
			rules.contra[inventory.MovementType(t).Normalize()] = r
		}
	}
	return rules, nil
}

func (r *StockPostingRules) IsExcluded(t inventory.MovementType) bool {
	return r.excluded[t.Normalize()]
}

// ContraRole returns the offsetting account role for a movement type.
func (r *StockPostingRules) ContraRole(t inventory.MovementType) (AccountRole, error) {
	role, ok := r.contra[t.Normalize()]
	if !ok {
		return "", ledger.ErrValidation.Newf("no contra account configured for movement type %q", t)
	}
	return role, nil
}

// StockMovementRecordedHandler posts the valuation of stock movements.
type StockMovementRecordedHandler struct {
	generatorDeps
	rules *StockPostingRules
}

func NewStockMovementRecordedHandler(deps GeneratorDeps, rules *StockPostingRules) *StockMovementRecordedHandler {
	if rules == nil {
		rules = DefaultStockPostingRules()
	}
	return &StockMovementRecordedHandler{generatorDeps: deps.build(), rules: rules}
}

func (h *StockMovementRecordedHandler) EventTypes() []string {
	return []string{inventory.EventTypeStockMovementRecorded}
}

// Handle posts |quantity| x unit cost between inventory and the contra
// account of the movement type. Increases debit inventory; decreases
// credit it.
func (h *StockMovementRecordedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	ev, ok := event.(*inventory.StockMovementRecordedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", inventory.EventTypeStockMovementRecorded),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			inventory.EventTypeStockMovementRecorded, event.EventType())
	}

	movementType := ev.MovementType.Normalize()
	if h.rules.IsExcluded(movementType) {
		h.logger.Debug("skipping excluded stock movement",
			zap.String("tenant_id", ev.TenantID().String()),
			zap.String("movement_id", ev.MovementID.String()),
			zap.String("movement_type", string(movementType)),
		)
		h.metrics.GeneratorSkipped(ctx, ev.EventType(), "excluded_movement_type")
		return nil
	}

	attempt := PostingAttempt{
		TenantID:      ev.TenantID(),
		EventID:       ev.EventID(),
		EventType:     ev.EventType(),
		ReferenceType: ReferenceTypeStockMovement,
		ReferenceID:   ev.MovementID.String(),
	}
	h.logger.Info("processing stock movement recorded event",
		zap.String("tenant_id", attempt.TenantID.String()),
		zap.String("movement_id", attempt.ReferenceID),
		zap.String("movement_type", string(movementType)),
		zap.String("quantity", ev.Quantity.String()),
		zap.String("reference_number", ev.ReferenceNumber),
	)

	entryType := ledger.EntryTypeInventory
	if movementType == inventory.MovementTypeAdjustment {
		entryType = ledger.EntryTypeInventoryAdjustment
	}
	description := fmt.Sprintf("Stock %s %s", strings.ToLower(string(movementType)), ev.ReferenceNumber)
	header := ledger.EntryHeader{
		EntryType:     entryType,
		ReferenceType: ReferenceTypeStockMovement,
		ReferenceID:   attempt.ReferenceID,
		EntryDate:     ev.OccurredAt(),
		Description:   strings.TrimSpace(description),
		CreatedBy:     SystemActor,
	}
	out, err := h.post(ctx, attempt, header, func() ([]leg, error) {
		if err := validatePayload(ev); err != nil {
			return nil, err
		}
		if ev.EffectiveUnitCost().IsNegative() {
			return nil, ledger.ErrValidation.Newf("unit cost of movement %s is negative", ev.MovementID)
		}
		contra, err := h.rules.ContraRole(movementType)
		if err != nil {
			return nil, err
		}
		return stockLegs(ev, contra, description), nil
	})
	if err != nil {
		return fmt.Errorf("failed to post stock movement %s: %w", attempt.ReferenceID, err)
	}
	h.logOutcome(attempt, out)
	return nil
}

func stockLegs(ev *inventory.StockMovementRecordedEvent, contra AccountRole, description string) []leg {
	amount := ev.Value()
	if ev.Quantity.IsNegative() {
		return []leg{
			debitLeg(contra, amount, description),
			creditLeg(RoleInventoryAsset, amount, description),
		}
	}
	return []leg{
		debitLeg(RoleInventoryAsset, amount, description),
		creditLeg(contra, amount, description),
	}
}

var _ shared.EventHandler = (*StockMovementRecordedHandler)(nil)
