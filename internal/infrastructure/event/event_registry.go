package event

import (
	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/payroll"
	"github.com/erp/ledger/internal/domain/procurement"
)

// RegisterAllEvents registers every event type that travels through the
// outbox. The processor cannot decode an unregistered type.
func RegisterAllEvents(s *EventSerializer) {
	// Upstream events consumed by the journal generators
	RegisterEvent[payroll.PayrollProcessedEvent](s, payroll.EventTypePayrollProcessed)
	RegisterEvent[inventory.StockMovementRecordedEvent](s, inventory.EventTypeStockMovementRecorded)
	RegisterEvent[procurement.GoodsReceivedEvent](s, procurement.EventTypeGoodsReceived)

	// Ledger events
	RegisterEvent[ledger.FiscalPeriodClosedEvent](s, ledger.EventTypeFiscalPeriodClosed)
	RegisterEvent[ledger.JournalEntryPostedEvent](s, ledger.EventTypeJournalEntryPosted)
	RegisterEvent[ledger.JournalEntryReversedEvent](s, ledger.EventTypeJournalEntryReversed)
}
