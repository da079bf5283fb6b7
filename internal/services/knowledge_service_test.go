package services

import (
	"context"
	"errors"
	"testing"
)

func TestKnowledge_Create_EmbedsArticle(t *testing.T) {
	emb := &fakeEmbedder{vec: []float32{0.5, 0.5}}
	svc := &KnowledgeService{DB: newTestDB(t), Embedder: emb}

	a, err := svc.Create(context.Background(), CreateArticleInput{
		ClientID: "c1",
		Title:    "Fryer heating faults",
		Content:  "Check the thermal cutoff before replacing elements.",
		Tags:     []string{"fryer"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if emb.calls != 1 {
		t.Fatalf("expected 1 embed call, got %d", emb.calls)
	}
	if a.ID == "" || a.ClientID != "c1" {
		t.Fatalf("unexpected article: %+v", a)
	}
}

func TestKnowledge_Create_Validation(t *testing.T) {
	svc := &KnowledgeService{DB: newTestDB(t), Embedder: &fakeEmbedder{}}

	if _, err := svc.Create(context.Background(), CreateArticleInput{ClientID: "c1", Content: "x"}); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
	if _, err := svc.Create(context.Background(), CreateArticleInput{ClientID: "c1", Title: "x"}); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
}

func TestKnowledge_Update_ReembedsOnlyWhenTextChanges(t *testing.T) {
	emb := &fakeEmbedder{vec: []float32{0.5}}
	svc := &KnowledgeService{DB: newTestDB(t), Embedder: emb}

	a, err := svc.Create(context.Background(), CreateArticleInput{
		ClientID: "c1", Title: "Title", Content: "Content",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if emb.calls != 1 {
		t.Fatalf("embed calls after create = %d", emb.calls)
	}

	// Tags-only update must not re-embed.
	tags := []string{"new-tag"}
	if _, err := svc.Update(context.Background(), "c1", a.ID, UpdateArticleInput{Tags: &tags}); err != nil {
		t.Fatalf("Update tags: %v", err)
	}
	if emb.calls != 1 {
		t.Fatalf("tags-only update re-embedded: calls = %d", emb.calls)
	}

	// Content change regenerates the embedding.
	content := "Rewritten content"
	got, err := svc.Update(context.Background(), "c1", a.ID, UpdateArticleInput{Content: &content})
	if err != nil {
		t.Fatalf("Update content: %v", err)
	}
	if emb.calls != 2 {
		t.Fatalf("content update did not re-embed: calls = %d", emb.calls)
	}
	if got.Content != content || got.Tags[0] != "new-tag" {
		t.Fatalf("update not applied: %+v", got)
	}

	// Setting the same content again is not a change.
	if _, err := svc.Update(context.Background(), "c1", a.ID, UpdateArticleInput{Content: &content}); err != nil {
		t.Fatalf("Update same content: %v", err)
	}
	if emb.calls != 2 {
		t.Fatalf("no-op update re-embedded: calls = %d", emb.calls)
	}
}

func TestKnowledge_TenantBoundaryAndDelete(t *testing.T) {
	svc := &KnowledgeService{DB: newTestDB(t), Embedder: &fakeEmbedder{vec: []float32{0.1}}}

	a, err := svc.Create(context.Background(), CreateArticleInput{
		ClientID: "c1", Title: "T", Content: "C",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Get(context.Background(), "other", a.ID); !errors.Is(err, ErrArticleNotFound) {
		t.Fatalf("expected ErrArticleNotFound across tenants, got %v", err)
	}
	if err := svc.Delete(context.Background(), "other", a.ID); !errors.Is(err, ErrArticleNotFound) {
		t.Fatalf("expected ErrArticleNotFound on foreign delete, got %v", err)
	}

	if err := svc.Delete(context.Background(), "c1", a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(context.Background(), "c1", a.ID); !errors.Is(err, ErrArticleNotFound) {
		t.Fatalf("expected article gone after delete, got %v", err)
	}

	items, err := svc.List(context.Background(), "c1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty list, got %d", len(items))
	}
}
