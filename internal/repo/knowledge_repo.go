// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for knowledge
// articles, resolved cases, and categories.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qsrdesk/go-support-backend/internal/domain"
)

// CreateArticle inserts a knowledge article. The caller is responsible for
// having set Embedding from the article's current title and content.
func CreateArticle(ctx context.Context, db *gorm.DB, a *domain.KnowledgeArticle) (*domain.KnowledgeArticle, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Tags == nil {
		a.Tags = []string{}
	}
	return a, db.WithContext(ctx).Create(a).Error
}

// SaveArticle persists changes to an existing article, refreshing
// updated_at. As with CreateArticle, the embedding must already reflect the
// new text.
func SaveArticle(ctx context.Context, db *gorm.DB, a *domain.KnowledgeArticle) error {
	a.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Save(a).Error
}

// GetArticle fetches an article by ID.
func GetArticle(ctx context.Context, db *gorm.DB, id string) (*domain.KnowledgeArticle, error) {
	var a domain.KnowledgeArticle
	if err := db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// ListArticles returns all articles belonging to a client.
func ListArticles(ctx context.Context, db *gorm.DB, clientID string) ([]domain.KnowledgeArticle, error) {
	var out []domain.KnowledgeArticle
	err := db.WithContext(ctx).Where("client_id = ?", clientID).Order("created_at DESC").Find(&out).Error
	return out, err
}

// DeleteArticle removes an article by ID.
func DeleteArticle(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.KnowledgeArticle{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateResolvedCase appends a cached solution. Used both by the feedback
// promotion path (inside its transaction) and by manual curation.
func CreateResolvedCase(db *gorm.DB, c *domain.ResolvedCase) (*domain.ResolvedCase, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.Source == "" {
		c.Source = domain.SourceFeedback
	}
	return c, db.Create(c).Error
}

// GetCategory fetches a category by ID.
func GetCategory(ctx context.Context, db *gorm.DB, id string) (*domain.Category, error) {
	var c domain.Category
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
