package ledger

import (
	"time"

	"github.com/google/uuid"
)

// PostingFailure is the record left by the terminal failure hook when a
// generator could not post an entry for an upstream document. It is kept
// for manual remediation; nothing retries from it.
type PostingFailure struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	EventID       uuid.UUID
	EventType     string
	ReferenceType string
	ReferenceID   string
	ErrorCode     string
	ErrorMessage  string
	Attempts      int
	FirstFailedAt time.Time
	LastFailedAt  time.Time
	ResolvedAt    *time.Time
}

// NewPostingFailure records the first failed attempt.
func NewPostingFailure(tenantID, eventID uuid.UUID, eventType, referenceType, referenceID, code, message string) *PostingFailure {
	now := time.Now().UTC()
	return &PostingFailure{
		ID:            uuid.New(),
		TenantID:      tenantID,
		EventID:       eventID,
		EventType:     eventType,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
		ErrorCode:     code,
		ErrorMessage:  message,
		Attempts:      1,
		FirstFailedAt: now,
		LastFailedAt:  now,
	}
}

func (f *PostingFailure) IsResolved() bool {
	return f.ResolvedAt != nil
}
