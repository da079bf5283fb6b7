// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the nearest-neighbour queries over the
// pgvector columns of resolved_cases and knowledge_articles.
package repo

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// CaseMatch is one resolved-case hit from a similarity query. Distance is
// the cosine distance to the query vector (smaller = more similar).
type CaseMatch struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Distance float64 `json:"distance"`
}

// ArticleMatch is one knowledge-article hit from a similarity query.
type ArticleMatch struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Distance float64 `json:"distance"`
}

// NearestResolvedCases returns the k resolved cases nearest to the query
// vector within a client, ordered ascending by distance. The database's
// native ordering is authoritative; equidistant rows may come back in any
// order and callers must not re-sort.
func NearestResolvedCases(ctx context.Context, db *gorm.DB, clientID string, query []float32, k int) ([]CaseMatch, error) {
	var out []CaseMatch
	err := db.WithContext(ctx).Raw(
		`SELECT id, title, ai_response AS content, embedding <=> ? AS distance
		 FROM resolved_cases
		 WHERE client_id = ?
		 ORDER BY distance ASC
		 LIMIT ?`,
		pgvector.NewVector(query), clientID, k,
	).Scan(&out).Error
	return out, err
}

// NearestArticles returns the k knowledge articles nearest to the query
// vector within a client, ordered ascending by distance.
func NearestArticles(ctx context.Context, db *gorm.DB, clientID string, query []float32, k int) ([]ArticleMatch, error) {
	var out []ArticleMatch
	err := db.WithContext(ctx).Raw(
		`SELECT id, title, content, embedding <=> ? AS distance
		 FROM knowledge_articles
		 WHERE client_id = ?
		 ORDER BY distance ASC
		 LIMIT ?`,
		pgvector.NewVector(query), clientID, k,
	).Scan(&out).Error
	return out, err
}
