package event

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var errEntryNotFound = shared.ErrNotFound.WithMessage("Outbox entry not found")

// OutboxService lets operators inspect the outbox and send dead-lettered
// events, usually upstream events a journal generator kept rejecting, back
// for another round of delivery.
type OutboxService struct {
	repo   shared.OutboxRepository
	logger *zap.Logger
}

func NewOutboxService(repo shared.OutboxRepository, logger *zap.Logger) *OutboxService {
	return &OutboxService{repo: repo, logger: logger}
}

// OutboxEntryDTO is an outbox entry as shown to operators. Payload is only
// filled when a single entry is fetched.
type OutboxEntryDTO struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Status        string          `json:"status"`
	RetryCount    int             `json:"retry_count"`
	MaxRetries    int             `json:"max_retries"`
	LastError     string          `json:"last_error,omitempty"`
	NextRetryAt   *time.Time      `json:"next_retry_at,omitempty"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// DeadLetterFilter narrows the dead letter queue. Zero values match all.
type DeadLetterFilter struct {
	TenantID  uuid.UUID `form:"-"`
	EventType string    `form:"event_type,omitempty" binding:"omitempty,max=255"`
	Page      int       `form:"page,omitempty" binding:"omitempty,min=1"`
	PageSize  int       `form:"page_size,omitempty" binding:"omitempty,min=1,max=100"`
}

func (f DeadLetterFilter) query() shared.DeadLetterQuery {
	q := shared.DeadLetterQuery{
		TenantID:  f.TenantID,
		EventType: f.EventType,
		Page:      max(f.Page, 1),
		PageSize:  f.PageSize,
	}
	switch {
	case q.PageSize < 1:
		q.PageSize = defaultPageSize
	case q.PageSize > maxPageSize:
		q.PageSize = maxPageSize
	}
	return q
}

// DeadLetterPage is one page of the dead letter queue.
type DeadLetterPage struct {
	Entries    []OutboxEntryDTO `json:"entries"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}

// OutboxStatsDTO counts entries per delivery state.
type OutboxStatsDTO struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

// DeadLetters returns one page of dead entries, most recently failed first.
func (s *OutboxService) DeadLetters(ctx context.Context, filter DeadLetterFilter) (*DeadLetterPage, error) {
	q := filter.query()
	entries, total, err := s.repo.FindDead(ctx, q)
	if err != nil {
		s.logger.Error("Failed to list dead letters", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to retrieve dead letter entries")
	}

	page := &DeadLetterPage{
		Entries:    make([]OutboxEntryDTO, len(entries)),
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: int((total + int64(q.PageSize) - 1) / int64(q.PageSize)),
	}
	for i, e := range entries {
		page.Entries[i] = toOutboxEntryDTO(e, false)
	}
	return page, nil
}

// Entry returns a single entry with its payload.
func (s *OutboxService) Entry(ctx context.Context, id uuid.UUID) (*OutboxEntryDTO, error) {
	entry, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toOutboxEntryDTO(entry, true)
	return &dto, nil
}

// Replay moves a dead entry back to pending with a fresh retry budget.
func (s *OutboxService) Replay(ctx context.Context, id uuid.UUID) (*OutboxEntryDTO, error) {
	entry, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.reset(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info("Dead letter queued for replay",
		zap.String("outbox_id", id.String()),
		zap.String("tenant_id", entry.TenantID.String()),
		zap.String("event_type", entry.EventType),
	)
	dto := toOutboxEntryDTO(entry, false)
	return &dto, nil
}

// ReplayAll resets every dead entry matching filter and returns how many
// went back to pending. Paging fields of filter are ignored.
func (s *OutboxService) ReplayAll(ctx context.Context, filter DeadLetterFilter) (int64, error) {
	q := filter.query()
	q.PageSize = maxPageSize

	var replayed int64
	// Reset entries leave the dead set, so the first page is read again
	// until it drains or holds only entries that cannot be written back.
	for {
		entries, _, err := s.repo.FindDead(ctx, q)
		if err != nil {
			s.logger.Error("Failed to list dead letters", zap.Error(err))
			return replayed, shared.NewDomainError("INTERNAL_ERROR", "Failed to retrieve dead letter entries")
		}

		reset := 0
		for _, entry := range entries {
			if s.reset(ctx, entry) == nil {
				reset++
			}
		}
		replayed += int64(reset)

		if len(entries) < q.PageSize || reset == 0 {
			break
		}
	}

	s.logger.Info("Dead letters queued for replay",
		zap.Int64("count", replayed),
		zap.String("tenant_id", filter.TenantID.String()),
		zap.String("event_type", filter.EventType),
	)
	return replayed, nil
}

// Stats counts entries per status for one tenant, or for all tenants when
// tenantID is nil.
func (s *OutboxService) Stats(ctx context.Context, tenantID uuid.UUID) (*OutboxStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx, tenantID)
	if err != nil {
		s.logger.Error("Failed to count outbox entries", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to get outbox stats")
	}

	stats := &OutboxStatsDTO{
		Pending:    counts[shared.OutboxStatusPending],
		Processing: counts[shared.OutboxStatusProcessing],
		Sent:       counts[shared.OutboxStatusSent],
		Failed:     counts[shared.OutboxStatusFailed],
		Dead:       counts[shared.OutboxStatusDead],
	}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

func (s *OutboxService) reset(ctx context.Context, entry *shared.OutboxEntry) error {
	if err := entry.Replay(); err != nil {
		return shared.ErrInvalidState.WithMessage(err.Error())
	}
	if err := s.repo.Update(ctx, entry); err != nil {
		s.logger.Error("Failed to reset outbox entry", zap.Error(err), zap.String("outbox_id", entry.ID.String()))
		return shared.NewDomainError("INTERNAL_ERROR", "Failed to retry entry")
	}
	return nil
}

func (s *OutboxService) find(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, shared.ErrNotFound) || (err == nil && entry == nil) {
		return nil, errEntryNotFound
	}
	if err != nil {
		s.logger.Error("Failed to load outbox entry", zap.Error(err), zap.String("outbox_id", id.String()))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to load outbox entry")
	}
	return entry, nil
}

func toOutboxEntryDTO(e *shared.OutboxEntry, withPayload bool) OutboxEntryDTO {
	dto := OutboxEntryDTO{
		ID:            e.ID,
		TenantID:      e.TenantID,
		EventID:       e.EventID,
		EventType:     e.EventType,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		Status:        string(e.Status),
		RetryCount:    e.RetryCount,
		MaxRetries:    e.MaxRetries,
		LastError:     e.LastError,
		NextRetryAt:   e.NextRetryAt,
		ProcessedAt:   e.ProcessedAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
	if withPayload && json.Valid(e.Payload) {
		dto.Payload = json.RawMessage(e.Payload)
	}
	return dto
}
