package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/qsrdesk/go-support-backend/internal/domain"
	"github.com/qsrdesk/go-support-backend/internal/repo"
	"github.com/qsrdesk/go-support-backend/internal/suggest"
)

// FeedbackService records suggestion ratings and promotes five-star answers
// into the resolved-case cache.
type FeedbackService struct {
	DB       *gorm.DB
	Embedder suggest.Embedder
	// CallTimeout bounds the embedding call made during promotion.
	CallTimeout time.Duration
	Logger      zerolog.Logger
}

// FeedbackInput carries one rating submission.
type FeedbackInput struct {
	ClientID   string
	UserID     string
	TicketID   string
	ResponseID string
	Rating     int
	Comment    string
}

// Submit stores the feedback row and, for a rating of 5, inserts a resolved
// case derived from the rated response, both within a single transaction.
// If the embedding call or the case insert fails, the transaction rolls
// back: no feedback without its promotion, and vice versa.
//
// Repeated five-star ratings on the same response are accepted and create
// one resolved case each.
func (s *FeedbackService) Submit(ctx context.Context, in FeedbackInput) (*domain.AIFeedback, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, ErrInvalidRating
	}

	t, err := repo.GetTicket(ctx, s.DB, in.TicketID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	if t.ClientID != in.ClientID {
		return nil, ErrTicketNotFound
	}

	resp, err := repo.GetAIResponse(ctx, s.DB, in.ResponseID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrResponseNotFound
	}
	if err != nil {
		return nil, err
	}
	if resp.TicketID != t.ID {
		return nil, ErrResponseTicketMismatch
	}

	fb := &domain.AIFeedback{
		ID:           uuid.NewString(),
		AIResponseID: resp.ID,
		TicketID:     t.ID,
		UserID:       in.UserID,
		Rating:       in.Rating,
		Comment:      in.Comment,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(fb).Error; err != nil {
			return err
		}
		if in.Rating == 5 {
			return s.promote(ctx, tx, t, resp, in.UserID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if in.Rating == 5 {
		s.Logger.Info().
			Str("ticket_id", t.ID).
			Str("ai_response_id", resp.ID).
			Msg("suggestion promoted to resolved case")
	}
	return fb, nil
}

// promote inserts a resolved case for the rated response inside the
// feedback transaction.
func (s *FeedbackService) promote(ctx context.Context, tx *gorm.DB, t *domain.Ticket, resp *domain.AIResponse, userID string) error {
	tags := []string{}
	if t.CategoryID != "" {
		cat, err := repo.GetCategory(ctx, tx, t.CategoryID)
		switch {
		case err == nil:
			tags = append(tags, cat.Name)
		case errors.Is(err, repo.ErrNotFound):
			// Dangling category reference; the case is stored untagged.
		default:
			return err
		}
	}

	d := s.CallTimeout
	if d <= 0 {
		d = 30 * time.Second
	}
	ectx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	vec, err := s.Embedder.Embed(ectx, t.Subject+"\n"+t.Description)
	if err != nil {
		return err
	}

	_, err = repo.CreateResolvedCase(tx, &domain.ResolvedCase{
		ID:                 uuid.NewString(),
		ClientID:           t.ClientID,
		TicketID:           &t.ID,
		Title:              t.Subject,
		ProblemDescription: t.Description,
		AIResponse:         resp.Response,
		Tags:               tags,
		Source:             domain.SourceFeedback,
		CreatedBy:          &userID,
		Embedding:          pgvector.NewVector(vec),
	})
	return err
}
