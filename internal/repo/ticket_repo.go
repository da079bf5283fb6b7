// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for tickets and
// their message threads.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qsrdesk/go-support-backend/internal/domain"
)

// TicketFilters narrows ListTickets. Zero values are ignored.
type TicketFilters struct {
	ClientID  string
	CreatorID string
	Status    string
	Offset    int
	Limit     int
}

// TicketUpdate carries the mutable ticket fields. Nil pointers leave the
// corresponding column untouched; subject and description are immutable.
type TicketUpdate struct {
	Status      *string
	Priority    *int
	EquipmentID *string
}

// CreateTicket inserts a ticket and its first message (the description,
// authored by the creator) in a single transaction. The suggestion pipeline
// is only started after this transaction commits, so the first message is
// always visible before any AI message.
func CreateTicket(ctx context.Context, db *gorm.DB, t *domain.Ticket) (*domain.Ticket, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = domain.StatusOpen
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		first := &domain.TicketMessage{
			ID:         uuid.NewString(),
			TicketID:   t.ID,
			AuthorID:   t.CreatedBy,
			AuthorType: domain.AuthorUser,
			Content:    t.Description,
			Meta:       map[string]string{},
			CreatedAt:  now,
		}
		return tx.Create(first).Error
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetTicket fetches a ticket by ID.
func GetTicket(ctx context.Context, db *gorm.DB, id string) (*domain.Ticket, error) {
	var t domain.Ticket
	if err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListTickets returns tickets matching the filters, most recently updated
// first.
func ListTickets(ctx context.Context, db *gorm.DB, f TicketFilters) ([]domain.Ticket, error) {
	q := db.WithContext(ctx).Model(&domain.Ticket{})
	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.CreatorID != "" {
		q = q.Where("created_by = ?", f.CreatorID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []domain.Ticket
	err := q.Order("updated_at DESC").Find(&out).Error
	return out, err
}

// UpdateTicket applies the given field changes and refreshes updated_at.
func UpdateTicket(ctx context.Context, db *gorm.DB, id string, u TicketUpdate) (*domain.Ticket, error) {
	changes := map[string]any{"updated_at": time.Now().UTC()}
	if u.Status != nil {
		changes["status"] = *u.Status
	}
	if u.Priority != nil {
		changes["priority"] = *u.Priority
	}
	if u.EquipmentID != nil {
		changes["equipment_id"] = *u.EquipmentID
	}

	res := db.WithContext(ctx).Model(&domain.Ticket{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return GetTicket(ctx, db, id)
}
