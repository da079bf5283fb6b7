// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// Postgres (with the pgvector extension) and schema migrations.
package repo

import (
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/qsrdesk/go-support-backend/internal/domain"
)

// ErrNotFound is returned by lookup helpers when no row matches.
var ErrNotFound = errors.New("record not found")

// OpenPostgres connects to Postgres and prepares the pgvector extension,
// which the similarity queries in semantic.go depend on.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector;").Error; err != nil {
		return nil, err
	}

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for all domain models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Category{},
		&domain.Ticket{},
		&domain.TicketMessage{},
		&domain.KnowledgeArticle{},
		&domain.ResolvedCase{},
		&domain.AIResponse{},
		&domain.AIFeedback{},
	)
}
