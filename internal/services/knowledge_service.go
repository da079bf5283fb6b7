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

// KnowledgeService manages the knowledge base. Every write path regenerates
// the article's embedding from its current title and content, so the stored
// vector never diverges from the text it indexes.
type KnowledgeService struct {
	DB          *gorm.DB
	Embedder    suggest.Embedder
	CallTimeout time.Duration
	Logger      zerolog.Logger
}

// CreateArticleInput carries the fields for a new knowledge article.
type CreateArticleInput struct {
	ClientID string
	Title    string
	Content  string
	Tags     []string
}

// UpdateArticleInput lists the mutable article fields; nil means unchanged.
type UpdateArticleInput struct {
	Title   *string
	Content *string
	Tags    *[]string
}

// Create embeds and stores a new article.
func (s *KnowledgeService) Create(ctx context.Context, in CreateArticleInput) (*domain.KnowledgeArticle, error) {
	if in.Title == "" {
		return nil, ErrEmptyTitle
	}
	if in.Content == "" {
		return nil, ErrEmptyContent
	}
	vec, err := s.embed(ctx, in.Title+"\n"+in.Content)
	if err != nil {
		return nil, err
	}
	return repo.CreateArticle(ctx, s.DB, &domain.KnowledgeArticle{
		ID:        uuid.NewString(),
		ClientID:  in.ClientID,
		Title:     in.Title,
		Content:   in.Content,
		Tags:      in.Tags,
		Embedding: pgvector.NewVector(vec),
	})
}

// Update applies the given changes and re-embeds the article whenever its
// title or content changed.
func (s *KnowledgeService) Update(ctx context.Context, clientID, id string, in UpdateArticleInput) (*domain.KnowledgeArticle, error) {
	a, err := s.ownedArticle(ctx, clientID, id)
	if err != nil {
		return nil, err
	}

	textChanged := false
	if in.Title != nil && *in.Title != a.Title {
		if *in.Title == "" {
			return nil, ErrEmptyTitle
		}
		a.Title = *in.Title
		textChanged = true
	}
	if in.Content != nil && *in.Content != a.Content {
		if *in.Content == "" {
			return nil, ErrEmptyContent
		}
		a.Content = *in.Content
		textChanged = true
	}
	if in.Tags != nil {
		a.Tags = *in.Tags
	}

	if textChanged {
		vec, err := s.embed(ctx, a.Title+"\n"+a.Content)
		if err != nil {
			return nil, err
		}
		a.Embedding = pgvector.NewVector(vec)
	}

	if err := repo.SaveArticle(ctx, s.DB, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Get returns one article within the tenant boundary.
func (s *KnowledgeService) Get(ctx context.Context, clientID, id string) (*domain.KnowledgeArticle, error) {
	return s.ownedArticle(ctx, clientID, id)
}

// List returns the client's articles, newest first.
func (s *KnowledgeService) List(ctx context.Context, clientID string) ([]domain.KnowledgeArticle, error) {
	return repo.ListArticles(ctx, s.DB, clientID)
}

// Delete removes an article. Deletion is permanent; the article stops
// appearing in retrieval immediately.
func (s *KnowledgeService) Delete(ctx context.Context, clientID, id string) error {
	if _, err := s.ownedArticle(ctx, clientID, id); err != nil {
		return err
	}
	if err := repo.DeleteArticle(ctx, s.DB, id); errors.Is(err, repo.ErrNotFound) {
		return ErrArticleNotFound
	} else if err != nil {
		return err
	}
	return nil
}

func (s *KnowledgeService) ownedArticle(ctx context.Context, clientID, id string) (*domain.KnowledgeArticle, error) {
	a, err := repo.GetArticle(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, err
	}
	if a.ClientID != clientID {
		return nil, ErrArticleNotFound
	}
	return a, nil
}

func (s *KnowledgeService) embed(ctx context.Context, text string) ([]float32, error) {
	d := s.CallTimeout
	if d <= 0 {
		d = 30 * time.Second
	}
	ectx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return s.Embedder.Embed(ectx, text)
}
