package ledger

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// EntryNumberGenerator issues human-readable, unique entry numbers.
type EntryNumberGenerator interface {
	Next(entryDate time.Time) string
}

// ULIDEntryNumbers formats numbers as PREFIX-YYYYMMDD-<ulid>. The ULID keeps
// numbers unique across processes without a database sequence and sorts
// them by creation time within a day.
type ULIDEntryNumbers struct {
	prefix  string
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewULIDEntryNumbers(prefix string) *ULIDEntryNumbers {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "JE"
	}
	return &ULIDEntryNumbers{
		prefix:  prefix,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (g *ULIDEntryNumbers) Next(entryDate time.Time) string {
	g.mu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
	g.mu.Unlock()
	return g.prefix + "-" + entryDate.UTC().Format("20060102") + "-" + id.String()
}

var _ EntryNumberGenerator = (*ULIDEntryNumbers)(nil)
