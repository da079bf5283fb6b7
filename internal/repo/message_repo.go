// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for ticket
// messages and the AI response audit trail.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qsrdesk/go-support-backend/internal/domain"
)

// CreateMessage appends a message to a ticket's thread. aiResponseID is nil
// for human-authored messages and must reference an already committed
// AIResponse row for AI-authored ones.
func CreateMessage(ctx context.Context, db *gorm.DB, ticketID, authorID, authorType, content string, aiResponseID *string) (*domain.TicketMessage, error) {
	m := &domain.TicketMessage{
		ID:           uuid.NewString(),
		TicketID:     ticketID,
		AuthorID:     authorID,
		AuthorType:   authorType,
		Content:      content,
		Meta:         map[string]string{},
		AIResponseID: aiResponseID,
		CreatedAt:    time.Now().UTC(),
	}
	return m, db.WithContext(ctx).Create(m).Error
}

// ListMessages returns a ticket's thread ordered deterministically
// (CreatedAt ASC, ID ASC).
func ListMessages(ctx context.Context, db *gorm.DB, ticketID string) ([]domain.TicketMessage, error) {
	var out []domain.TicketMessage
	err := db.WithContext(ctx).Where("ticket_id = ?", ticketID).Order("created_at ASC, id ASC").Find(&out).Error
	return out, err
}

// CreateAIResponse inserts an audit row for one suggestion attempt.
func CreateAIResponse(ctx context.Context, db *gorm.DB, r *domain.AIResponse) (*domain.AIResponse, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = time.Now().UTC()
	return r, db.WithContext(ctx).Create(r).Error
}

// GetAIResponse fetches an audit row by ID.
func GetAIResponse(ctx context.Context, db *gorm.DB, id string) (*domain.AIResponse, error) {
	var r domain.AIResponse
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}
