package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ledgerEnv bundles mocked repositories behind a NoOpTransactionScope.
type ledgerEnv struct {
	tenantID uuid.UUID
	accounts *MockAccountRepository
	periods  *MockFiscalPeriodRepository
	entries  *MockJournalEntryRepository
	events   *capturingRecorder
	hook     *capturingHook
	scope    *NoOpTransactionScope
	posting  *PostingService
	resolver *AccountResolver
	logger   *zap.Logger

	// created maps account codes to accounts inserted through CreateIfAbsent
	created map[string]*ledger.Account
	// saved holds entries passed to Create, in call order
	saved []*ledger.JournalEntry
}

func newLedgerEnv(t *testing.T) *ledgerEnv {
	t.Helper()
	env := &ledgerEnv{
		tenantID: uuid.New(),
		accounts: new(MockAccountRepository),
		periods:  new(MockFiscalPeriodRepository),
		entries:  new(MockJournalEntryRepository),
		events:   &capturingRecorder{},
		hook:     &capturingHook{},
		logger:   zap.NewNop(),
		created:  make(map[string]*ledger.Account),
	}
	env.scope = NewNoOpTransactionScope(env.accounts, env.periods, env.entries, env.events)
	env.posting = NewPostingService(env.scope, env.logger,
		WithEntryNumbers(&fixedNumbers{}),
		WithClock(func() time.Time { return date(2024, time.February, 1) }),
	)
	env.resolver = NewAccountResolver(true, env.logger)
	return env
}

func (e *ledgerEnv) deps() GeneratorDeps {
	return GeneratorDeps{
		Scope:    e.scope,
		Posting:  e.posting,
		Resolver: e.resolver,
		Hook:     e.hook,
		Logger:   e.logger,
	}
}

// inPeriod is a date inside the period returned by openPeriod. Events
// posted against that period must occur on it.
var inPeriod = date(2024, time.January, 15)

// openPeriod makes FindCovering return an open January 2024 period.
func (e *ledgerEnv) openPeriod(t *testing.T) *ledger.FiscalPeriod {
	t.Helper()
	period, err := ledger.NewFiscalPeriod(e.tenantID, "", date(2024, time.January, 1), date(2024, time.January, 31))
	require.NoError(t, err)
	e.periods.On("FindCovering", mock.Anything, e.tenantID, mock.Anything).Return(period, nil)
	return period
}

// emptyChart makes every account lookup miss and every insert succeed.
func (e *ledgerEnv) emptyChart() {
	e.accounts.On("FindByCode", mock.Anything, e.tenantID, mock.Anything).Return(nil, shared.ErrNotFound)
	e.accounts.On("CreateIfAbsent", mock.Anything, mock.AnythingOfType("*ledger.Account")).
		Run(func(args mock.Arguments) {
			acc := args.Get(1).(*ledger.Account)
			e.created[acc.Code] = acc
		}).
		Return(true, nil)
}

// noEntries makes reference lookups miss and captures created entries.
func (e *ledgerEnv) noEntries() {
	e.entries.On("FindByReference", mock.Anything, e.tenantID, mock.Anything, mock.Anything).Return(nil, shared.ErrNotFound)
	e.entries.On("Create", mock.Anything, mock.AnythingOfType("*ledger.JournalEntry")).
		Run(func(args mock.Arguments) {
			e.saved = append(e.saved, args.Get(1).(*ledger.JournalEntry))
		}).
		Return(nil)
}

func (e *ledgerEnv) codeOf(accountID uuid.UUID) string {
	for code, acc := range e.created {
		if acc.ID == accountID {
			return code
		}
	}
	return ""
}

// postedLine is a line flattened for assertions.
type postedLine struct {
	code   string
	debit  string
	credit string
}

func (e *ledgerEnv) linesOf(entry *ledger.JournalEntry) []postedLine {
	out := make([]postedLine, 0, len(entry.Lines))
	for _, l := range entry.Lines {
		out = append(out, postedLine{
			code:   e.codeOf(l.AccountID),
			debit:  l.DebitAmount.StringFixed(2),
			credit: l.CreditAmount.StringFixed(2),
		})
	}
	return out
}

var bg = context.Background()

func errNotFound() error {
	return shared.ErrNotFound
}
