// Ticket HTTP handlers.
//
// This file exposes REST endpoints for tickets and their conversation
// threads:
//   - POST   /tickets                  (create, triggers a background suggestion run)
//   - GET    /tickets                  (list, filterable by status)
//   - GET    /tickets/{id}            (ticket with its full thread)
//   - PATCH  /tickets/{id}            (update status/priority/equipment)
//   - POST   /tickets/{id}/messages   (append a human message)
//   - POST   /tickets/{id}/feedback   (rate a delivered suggestion)
//
// Handlers are transport-thin: validate input, call application services,
// and translate sentinel errors into HTTP responses. The suggestion
// pipeline itself never surfaces here; its failures only show up as a
// ticket without an AI message.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/qsrdesk/go-support-backend/internal/domain"
	"github.com/qsrdesk/go-support-backend/internal/http/middleware"
	"github.com/qsrdesk/go-support-backend/internal/services"
	"github.com/qsrdesk/go-support-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// TicketService defines ticket lifecycle operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use and honor the
// provided context.
type TicketService interface {
	Create(ctx context.Context, in services.CreateTicketInput) (*domain.Ticket, error)
	Get(ctx context.Context, clientID, id string) (*domain.Ticket, []domain.TicketMessage, error)
	List(ctx context.Context, clientID, status string, offset, limit int) ([]domain.Ticket, error)
	Update(ctx context.Context, clientID, id string, in services.UpdateTicketInput) (*domain.Ticket, error)
	AddMessage(ctx context.Context, clientID, ticketID, authorID, authorType, content string) (*domain.TicketMessage, error)
}

// FeedbackService defines suggestion rating operations.
type FeedbackService interface {
	Submit(ctx context.Context, in services.FeedbackInput) (*domain.AIFeedback, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for tickets, feedback, and the
// knowledge base. It depends on service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	tickets   TicketService
	feedback  FeedbackService
	knowledge KnowledgeService
}

// New constructs a Handlers instance bound to the given services.
func New(tickets TicketService, feedback FeedbackService, knowledge KnowledgeService) *Handlers {
	return &Handlers{tickets: tickets, feedback: feedback, knowledge: knowledge}
}

//
// DTOs
//

// CreateTicketRequest is the JSON payload for filing a ticket.
type CreateTicketRequest struct {
	Subject     string  `json:"subject" binding:"required,min=1"`
	Description string  `json:"description" binding:"required,min=1"`
	CategoryID  string  `json:"category_id"`
	EquipmentID *string `json:"equipment_id"`
	Priority    int     `json:"priority" binding:"omitempty,min=1,max=5"`
}

// UpdateTicketRequest is the JSON payload for PATCH /tickets/{id}.
// Absent fields are left unchanged.
type UpdateTicketRequest struct {
	Status      *string `json:"status"`
	Priority    *int    `json:"priority"`
	EquipmentID *string `json:"equipment_id"`
}

// PostTicketMessageRequest is the JSON payload for appending a message.
type PostTicketMessageRequest struct {
	Content    string `json:"content" binding:"required,min=1"`
	AuthorType string `json:"author_type"`
}

// FeedbackRequest is the JSON payload for rating a suggestion.
type FeedbackRequest struct {
	AIResponseID string `json:"ai_response_id" binding:"required"`
	Rating       int    `json:"rating" binding:"required,min=1,max=5"`
	Comment      string `json:"comment"`
}

// TicketResponse wraps a single ticket.
type TicketResponse struct {
	Ticket *domain.Ticket `json:"ticket"`
}

// TicketThreadResponse is a ticket together with its full message thread.
type TicketThreadResponse struct {
	Ticket   *domain.Ticket         `json:"ticket"`
	Messages []domain.TicketMessage `json:"messages"`
}

// ListTicketsResponse contains a page of tickets.
type ListTicketsResponse struct {
	Tickets []domain.Ticket `json:"tickets"`
}

//
// Handlers
//

// CreateTicket files a new ticket. The response returns immediately; the
// AI suggestion, when one can be produced, arrives later as a message on
// the ticket's thread.
func (h *Handlers) CreateTicket(c *gin.Context) {
	var req CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "subject and description required")
		return
	}

	t, err := h.tickets.Create(c.Request.Context(), services.CreateTicketInput{
		ClientID:    middleware.ClientID(c),
		CreatedBy:   middleware.UserID(c),
		CategoryID:  req.CategoryID,
		Subject:     req.Subject,
		Description: req.Description,
		EquipmentID: req.EquipmentID,
		Priority:    req.Priority,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCategoryNotFound):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "category not found")
		case errors.Is(err, services.ErrEmptySubject),
			errors.Is(err, services.ErrEmptyDescription),
			errors.Is(err, services.ErrInvalidPriority):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}

	middleware.LoggerFrom(c).Info().Str("ticket_id", t.ID).Msg("ticket created")
	ok(c, http.StatusCreated, TicketResponse{Ticket: t})
}

// ListTickets returns the client's tickets, most recently updated first.
func (h *Handlers) ListTickets(c *gin.Context) {
	offset := utils.AtoiDefault(c.Query("offset"), 0)
	if offset < 0 {
		offset = 0
	}
	limit := utils.AtoiDefault(c.Query("limit"), 50)
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}

	items, err := h.tickets.List(c.Request.Context(), middleware.ClientID(c), c.Query("status"), offset, limit)
	if err != nil {
		if errors.Is(err, services.ErrInvalidStatus) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListTicketsResponse{Tickets: items})
}

// GetTicket returns one ticket with its full message thread.
func (h *Handlers) GetTicket(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "ticket id must be a UUID")
		return
	}

	t, msgs, err := h.tickets.Get(c.Request.Context(), middleware.ClientID(c), id)
	if err != nil {
		if errors.Is(err, services.ErrTicketNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "ticket not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, TicketThreadResponse{Ticket: t, Messages: msgs})
}

// UpdateTicket changes a ticket's status, priority or equipment reference.
func (h *Handlers) UpdateTicket(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "ticket id must be a UUID")
		return
	}

	var req UpdateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid payload")
		return
	}
	if req.Status == nil && req.Priority == nil && req.EquipmentID == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "no fields to update")
		return
	}

	t, err := h.tickets.Update(c.Request.Context(), middleware.ClientID(c), id, services.UpdateTicketInput{
		Status:      req.Status,
		Priority:    req.Priority,
		EquipmentID: req.EquipmentID,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTicketNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "ticket not found")
		case errors.Is(err, services.ErrInvalidStatus), errors.Is(err, services.ErrInvalidPriority):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, TicketResponse{Ticket: t})
}

// PostTicketMessage appends a human message to the ticket thread.
func (h *Handlers) PostTicketMessage(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "ticket id must be a UUID")
		return
	}

	var req PostTicketMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	authorType := req.AuthorType
	if authorType == "" {
		authorType = domain.AuthorUser
	}

	msg, err := h.tickets.AddMessage(c.Request.Context(), middleware.ClientID(c), id, middleware.UserID(c), authorType, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTicketNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "ticket not found")
		case errors.Is(err, services.ErrEmptyMessage), errors.Is(err, services.ErrInvalidAuthorType):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, gin.H{"message": msg})
}

// PostFeedback records a rating for a delivered suggestion. A rating of 5
// promotes the suggestion into the resolved-case cache.
func (h *Handlers) PostFeedback(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "ticket id must be a UUID")
		return
	}

	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "ai_response_id and rating (1-5) required")
		return
	}

	fb, err := h.feedback.Submit(c.Request.Context(), services.FeedbackInput{
		ClientID:   middleware.ClientID(c),
		UserID:     middleware.UserID(c),
		TicketID:   id,
		ResponseID: req.AIResponseID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTicketNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "ticket not found")
		case errors.Is(err, services.ErrResponseNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "ai response not found")
		case errors.Is(err, services.ErrResponseTicketMismatch):
			fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
		case errors.Is(err, services.ErrInvalidRating):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeFeedbackFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, gin.H{"feedback": fb})
}
