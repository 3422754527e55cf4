package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PostingFailureStore is the part of the failure repository the handler needs.
type PostingFailureStore interface {
	FindUnresolved(ctx context.Context, tenantID uuid.UUID, limit int) ([]*ledger.PostingFailure, error)
	MarkResolved(ctx context.Context, eventID uuid.UUID, at time.Time) error
}

// PostingFailureHandler lists generator failures left for manual follow-up.
type PostingFailureHandler struct {
	BaseHandler
	store PostingFailureStore
}

func NewPostingFailureHandler(store PostingFailureStore) *PostingFailureHandler {
	return &PostingFailureHandler{store: store}
}

// RegisterRoutes mounts the handler under rg. Both routes are tenant scoped.
func (h *PostingFailureHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/posting-failures", middleware.RequireTenant())
	g.GET("", h.List)
	g.POST("/:event_id/resolve", h.Resolve)
}

type PostingFailureResponse struct {
	ID            string  `json:"id"`
	EventID       string  `json:"event_id"`
	EventType     string  `json:"event_type"`
	ReferenceType string  `json:"reference_type,omitempty"`
	ReferenceID   string  `json:"reference_id,omitempty"`
	ErrorCode     string  `json:"error_code"`
	ErrorMessage  string  `json:"error_message"`
	Attempts      int     `json:"attempts"`
	FirstFailedAt string  `json:"first_failed_at"`
	LastFailedAt  string  `json:"last_failed_at"`
	ResolvedAt    *string `json:"resolved_at,omitempty"`
}

func (h *PostingFailureHandler) List(c *gin.Context) {
	tenantID, _ := middleware.TenantID(c)
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			h.BadRequest(c, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	failures, err := h.store.FindUnresolved(c.Request.Context(), tenantID, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]PostingFailureResponse, len(failures))
	for i, f := range failures {
		out[i] = PostingFailureResponse{
			ID:            f.ID.String(),
			EventID:       f.EventID.String(),
			EventType:     f.EventType,
			ReferenceType: f.ReferenceType,
			ReferenceID:   f.ReferenceID,
			ErrorCode:     f.ErrorCode,
			ErrorMessage:  f.ErrorMessage,
			Attempts:      f.Attempts,
			FirstFailedAt: f.FirstFailedAt.UTC().Format(time.RFC3339),
			LastFailedAt:  f.LastFailedAt.UTC().Format(time.RFC3339),
			ResolvedAt:    rfc3339(f.ResolvedAt),
		}
	}
	h.Success(c, out)
}

// Resolve closes the open failure record of an event after an operator
// has dealt with it.
func (h *PostingFailureHandler) Resolve(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("event_id"))
	if err != nil {
		h.BadRequest(c, "Invalid event ID")
		return
	}
	if err := h.store.MarkResolved(c.Request.Context(), eventID, time.Now().UTC()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"event_id": eventID.String(), "resolved": true})
}
