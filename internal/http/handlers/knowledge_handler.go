// Knowledge base HTTP handlers.
//
// CRUD for knowledge articles. Create and update go through the service
// layer so the stored embedding always reflects the current text.
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
)

// KnowledgeService defines knowledge base operations consumed by HTTP
// handlers.
type KnowledgeService interface {
	Create(ctx context.Context, in services.CreateArticleInput) (*domain.KnowledgeArticle, error)
	Update(ctx context.Context, clientID, id string, in services.UpdateArticleInput) (*domain.KnowledgeArticle, error)
	Get(ctx context.Context, clientID, id string) (*domain.KnowledgeArticle, error)
	List(ctx context.Context, clientID string) ([]domain.KnowledgeArticle, error)
	Delete(ctx context.Context, clientID, id string) error
}

// CreateArticleRequest is the JSON payload for creating an article.
type CreateArticleRequest struct {
	Title   string   `json:"title" binding:"required,min=1"`
	Content string   `json:"content" binding:"required,min=1"`
	Tags    []string `json:"tags"`
}

// UpdateArticleRequest is the JSON payload for updating an article.
// Absent fields are left unchanged.
type UpdateArticleRequest struct {
	Title   *string   `json:"title"`
	Content *string   `json:"content"`
	Tags    *[]string `json:"tags"`
}

// ArticleResponse wraps a single article.
type ArticleResponse struct {
	Article *domain.KnowledgeArticle `json:"article"`
}

// ListArticlesResponse contains the client's articles.
type ListArticlesResponse struct {
	Articles []domain.KnowledgeArticle `json:"articles"`
}

// CreateArticle stores a new article and embeds it for retrieval.
func (h *Handlers) CreateArticle(c *gin.Context) {
	var req CreateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title and content required")
		return
	}

	a, err := h.knowledge.Create(c.Request.Context(), services.CreateArticleInput{
		ClientID: middleware.ClientID(c),
		Title:    req.Title,
		Content:  req.Content,
		Tags:     req.Tags,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyTitle), errors.Is(err, services.ErrEmptyContent):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, ArticleResponse{Article: a})
}

// ListArticles returns the client's articles, newest first.
func (h *Handlers) ListArticles(c *gin.Context) {
	items, err := h.knowledge.List(c.Request.Context(), middleware.ClientID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListArticlesResponse{Articles: items})
}

// GetArticle returns one article.
func (h *Handlers) GetArticle(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "article id must be a UUID")
		return
	}

	a, err := h.knowledge.Get(c.Request.Context(), middleware.ClientID(c), id)
	if err != nil {
		if errors.Is(err, services.ErrArticleNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "article not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, ArticleResponse{Article: a})
}

// UpdateArticle applies changes and re-embeds when the text changed.
func (h *Handlers) UpdateArticle(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "article id must be a UUID")
		return
	}

	var req UpdateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid payload")
		return
	}
	if req.Title == nil && req.Content == nil && req.Tags == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "no fields to update")
		return
	}

	a, err := h.knowledge.Update(c.Request.Context(), middleware.ClientID(c), id, services.UpdateArticleInput{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrArticleNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "article not found")
		case errors.Is(err, services.ErrEmptyTitle), errors.Is(err, services.ErrEmptyContent):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, ArticleResponse{Article: a})
}

// DeleteArticle removes an article permanently.
func (h *Handlers) DeleteArticle(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "article id must be a UUID")
		return
	}

	if err := h.knowledge.Delete(c.Request.Context(), middleware.ClientID(c), id); err != nil {
		if errors.Is(err, services.ErrArticleNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "article not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeDeleteFailed, err.Error())
		return
	}
	noContent(c)
}
