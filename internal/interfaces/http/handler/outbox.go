package handler

import (
	"time"

	"github.com/erp/ledger/internal/application/event"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var errOutboxEntryNotFound = shared.ErrNotFound.WithMessage("Outbox entry not found")

// OutboxHandler exposes the outbox to operators. Routes span every tenant
// unless an X-Tenant-ID header narrows them.
type OutboxHandler struct {
	BaseHandler
	outbox *event.OutboxService
}

func NewOutboxHandler(outbox *event.OutboxService) *OutboxHandler {
	return &OutboxHandler{outbox: outbox}
}

// RegisterRoutes mounts the handler under rg:
//
//	GET  /outbox/dead            ?event_type=&page=&page_size=
//	POST /outbox/dead/replay     ?event_type=
//	GET  /outbox/stats
//	GET  /outbox/:id
//	POST /outbox/:id/replay
func (h *OutboxHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/outbox", middleware.OptionalTenant())
	g.GET("/dead", h.DeadLetters)
	g.POST("/dead/replay", h.ReplayAll)
	g.GET("/stats", h.Stats)
	g.GET("/:id", h.Entry)
	g.POST("/:id/replay", h.Replay)
}

func (h *OutboxHandler) filter(c *gin.Context) (event.DeadLetterFilter, bool) {
	var f event.DeadLetterFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return f, false
	}
	f.TenantID, _ = middleware.TenantID(c)
	return f, true
}

func (h *OutboxHandler) entryID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid outbox entry ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *OutboxHandler) DeadLetters(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	page, err := h.outbox.DeadLetters(c.Request.Context(), f)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := DeadLetterPageResponse{
		Entries:    make([]OutboxEntryResponse, len(page.Entries)),
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}
	for i := range page.Entries {
		resp.Entries[i] = toOutboxEntryResponse(&page.Entries[i])
	}
	h.Success(c, resp)
}

func (h *OutboxHandler) Entry(c *gin.Context) {
	id, ok := h.entryID(c)
	if !ok {
		return
	}
	entry, err := h.outbox.Entry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !h.visible(c, entry) {
		return
	}
	h.Success(c, toOutboxEntryResponse(entry))
}

// Replay moves a dead entry back to pending with a fresh retry budget.
func (h *OutboxHandler) Replay(c *gin.Context) {
	id, ok := h.entryID(c)
	if !ok {
		return
	}
	if _, scoped := middleware.TenantID(c); scoped {
		entry, err := h.outbox.Entry(c.Request.Context(), id)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		if !h.visible(c, entry) {
			return
		}
	}

	entry, err := h.outbox.Replay(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toOutboxEntryResponse(entry))
}

func (h *OutboxHandler) ReplayAll(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	n, err := h.outbox.ReplayAll(c.Request.Context(), f)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ReplayAllResponse{Count: n})
}

func (h *OutboxHandler) Stats(c *gin.Context) {
	tenantID, _ := middleware.TenantID(c)
	stats, err := h.outbox.Stats(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// visible hides entries of other tenants from a tenant-scoped request.
func (h *OutboxHandler) visible(c *gin.Context, entry *event.OutboxEntryDTO) bool {
	if tenantID, scoped := middleware.TenantID(c); scoped && entry.TenantID != tenantID {
		h.HandleError(c, errOutboxEntryNotFound)
		return false
	}
	return true
}

type OutboxEntryResponse struct {
	ID            string  `json:"id"`
	TenantID      string  `json:"tenant_id"`
	EventID       string  `json:"event_id"`
	EventType     string  `json:"event_type"`
	AggregateID   string  `json:"aggregate_id"`
	AggregateType string  `json:"aggregate_type"`
	Status        string  `json:"status"`
	RetryCount    int     `json:"retry_count"`
	MaxRetries    int     `json:"max_retries"`
	LastError     string  `json:"last_error,omitempty"`
	NextRetryAt   *string `json:"next_retry_at,omitempty"`
	ProcessedAt   *string `json:"processed_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
	Payload       any     `json:"payload,omitempty"`
}

type DeadLetterPageResponse struct {
	Entries    []OutboxEntryResponse `json:"entries"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

type ReplayAllResponse struct {
	Count int64 `json:"count"`
}

func rfc3339(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func toOutboxEntryResponse(e *event.OutboxEntryDTO) OutboxEntryResponse {
	resp := OutboxEntryResponse{
		ID:            e.ID.String(),
		TenantID:      e.TenantID.String(),
		EventID:       e.EventID.String(),
		EventType:     e.EventType,
		AggregateID:   e.AggregateID.String(),
		AggregateType: e.AggregateType,
		Status:        e.Status,
		RetryCount:    e.RetryCount,
		MaxRetries:    e.MaxRetries,
		LastError:     e.LastError,
		NextRetryAt:   rfc3339(e.NextRetryAt),
		ProcessedAt:   rfc3339(e.ProcessedAt),
		CreatedAt:     e.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     e.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if len(e.Payload) > 0 {
		resp.Payload = e.Payload
	}
	return resp
}
