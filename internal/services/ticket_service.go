// Package services contains the application logic between the HTTP layer
// and the repositories: input validation, tenant scoping, transaction
// boundaries, and the hand-off to the suggestion pipeline.
package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/qsrdesk/go-support-backend/internal/domain"
	"github.com/qsrdesk/go-support-backend/internal/repo"
	"github.com/qsrdesk/go-support-backend/internal/suggest"
)

const defaultPriority = 3

// TicketService manages ticket lifecycle and conversation threads. When
// Suggest is set, every successfully created ticket launches a background
// suggestion run after its transaction has committed.
type TicketService struct {
	DB      *gorm.DB
	Suggest *suggest.Service    // optional
	Hub     suggest.Broadcaster // optional
	Logger  zerolog.Logger
}

// CreateTicketInput carries the caller-supplied fields for a new ticket.
type CreateTicketInput struct {
	ClientID    string
	CreatedBy   string
	CategoryID  string
	Subject     string
	Description string
	EquipmentID *string
	Priority    int // 0 means default
}

// UpdateTicketInput lists the mutable ticket fields; nil means unchanged.
type UpdateTicketInput struct {
	Status      *string
	Priority    *int
	EquipmentID *string
}

// Create validates the input, persists the ticket together with its first
// message, and kicks off the suggestion pipeline. The pipeline runs in the
// background; its outcome never affects the returned ticket.
func (s *TicketService) Create(ctx context.Context, in CreateTicketInput) (*domain.Ticket, error) {
	if in.Subject == "" {
		return nil, ErrEmptySubject
	}
	if in.Description == "" {
		return nil, ErrEmptyDescription
	}
	priority := in.Priority
	if priority == 0 {
		priority = defaultPriority
	}
	if priority < 1 || priority > 5 {
		return nil, ErrInvalidPriority
	}
	if in.CategoryID != "" {
		cat, err := repo.GetCategory(ctx, s.DB, in.CategoryID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCategoryNotFound
		}
		if err != nil {
			return nil, err
		}
		// A category from another tenant is indistinguishable from a missing one.
		if cat.ClientID != in.ClientID {
			return nil, ErrCategoryNotFound
		}
	}

	t := &domain.Ticket{
		ID:          uuid.NewString(),
		ClientID:    in.ClientID,
		CreatedBy:   in.CreatedBy,
		CategoryID:  in.CategoryID,
		Subject:     in.Subject,
		Description: in.Description,
		EquipmentID: in.EquipmentID,
		Priority:    priority,
		Status:      domain.StatusOpen,
	}
	t, err := repo.CreateTicket(ctx, s.DB, t)
	if err != nil {
		return nil, err
	}

	if s.Suggest != nil {
		s.Suggest.Start(t)
	}
	return t, nil
}

// Get returns a ticket and its full message thread in chronological order.
func (s *TicketService) Get(ctx context.Context, clientID, id string) (*domain.Ticket, []domain.TicketMessage, error) {
	t, err := s.ownedTicket(ctx, clientID, id)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := repo.ListMessages(ctx, s.DB, t.ID)
	if err != nil {
		return nil, nil, err
	}
	return t, msgs, nil
}

// List returns the client's tickets, most recently updated first.
func (s *TicketService) List(ctx context.Context, clientID, status string, offset, limit int) ([]domain.Ticket, error) {
	if status != "" && !validStatus(status) {
		return nil, ErrInvalidStatus
	}
	return repo.ListTickets(ctx, s.DB, repo.TicketFilters{
		ClientID: clientID,
		Status:   status,
		Offset:   offset,
		Limit:    limit,
	})
}

// Update changes a ticket's status, priority or equipment reference.
// Subject and description are immutable.
func (s *TicketService) Update(ctx context.Context, clientID, id string, in UpdateTicketInput) (*domain.Ticket, error) {
	if in.Status != nil && !validStatus(*in.Status) {
		return nil, ErrInvalidStatus
	}
	if in.Priority != nil && (*in.Priority < 1 || *in.Priority > 5) {
		return nil, ErrInvalidPriority
	}
	if _, err := s.ownedTicket(ctx, clientID, id); err != nil {
		return nil, err
	}
	t, err := repo.UpdateTicket(ctx, s.DB, id, repo.TicketUpdate{
		Status:      in.Status,
		Priority:    in.Priority,
		EquipmentID: in.EquipmentID,
	})
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrTicketNotFound
	}
	return t, err
}

// AddMessage appends a human message to the ticket thread and broadcasts it
// to live observers. AI messages are appended by the pipeline, never here.
func (s *TicketService) AddMessage(ctx context.Context, clientID, ticketID, authorID, authorType, content string) (*domain.TicketMessage, error) {
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if authorType != domain.AuthorUser && authorType != domain.AuthorSupport {
		return nil, ErrInvalidAuthorType
	}
	if _, err := s.ownedTicket(ctx, clientID, ticketID); err != nil {
		return nil, err
	}
	msg, err := repo.CreateMessage(ctx, s.DB, ticketID, authorID, authorType, content, nil)
	if err != nil {
		return nil, err
	}
	if s.Hub != nil {
		if err := s.Hub.PublishNewMessage(ticketID, msg); err != nil {
			s.Logger.Warn().
				Err(err).
				Str("ticket_id", ticketID).
				Msg("broadcast failed")
		}
	}
	return msg, nil
}

// ownedTicket loads a ticket and enforces the tenant boundary. Tickets of
// other clients are reported as not found.
func (s *TicketService) ownedTicket(ctx context.Context, clientID, id string) (*domain.Ticket, error) {
	t, err := repo.GetTicket(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	if t.ClientID != clientID {
		return nil, ErrTicketNotFound
	}
	return t, nil
}

func validStatus(s string) bool {
	switch s {
	case domain.StatusOpen, domain.StatusInProgress, domain.StatusResolved, domain.StatusClosed:
		return true
	}
	return false
}
