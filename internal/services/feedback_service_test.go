package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/qsrdesk/go-support-backend/internal/domain"
	"github.com/qsrdesk/go-support-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:services_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(
		&domain.Category{}, &domain.Ticket{}, &domain.TicketMessage{},
		&domain.KnowledgeArticle{}, &domain.ResolvedCase{},
		&domain.AIResponse{}, &domain.AIFeedback{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakeEmbedder returns a fixed vector, or fails when err is set.
type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	return f.vec, f.err
}

func seedRatedTicket(t *testing.T, db *gorm.DB, clientID, categoryID string) (*domain.Ticket, *domain.AIResponse) {
	t.Helper()

	tk := &domain.Ticket{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		CreatedBy:   "user-1",
		CategoryID:  categoryID,
		Subject:     "Grill temperature swings",
		Description: "The flat-top grill overshoots its setpoint by 40 degrees.",
	}
	if _, err := repo.CreateTicket(context.Background(), db, tk); err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	resp, err := repo.CreateAIResponse(context.Background(), db, &domain.AIResponse{
		TicketID: tk.ID,
		UserID:   tk.CreatedBy,
		Model:    "m",
		Prompt:   "p",
		Response: "Recalibrate the thermostat.",
	})
	if err != nil {
		t.Fatalf("seed ai response: %v", err)
	}
	return tk, resp
}

func TestFeedback_Submit_InvalidRating(t *testing.T) {
	svc := &FeedbackService{DB: newTestDB(t), Embedder: &fakeEmbedder{}}
	for _, r := range []int{0, 6, -1} {
		_, err := svc.Submit(context.Background(), FeedbackInput{Rating: r})
		if !errors.Is(err, ErrInvalidRating) {
			t.Fatalf("rating %d: expected ErrInvalidRating, got %v", r, err)
		}
	}
}

func TestFeedback_Submit_TicketNotFound(t *testing.T) {
	svc := &FeedbackService{DB: newTestDB(t), Embedder: &fakeEmbedder{}}
	_, err := svc.Submit(context.Background(), FeedbackInput{
		ClientID: "c1", UserID: "u1", TicketID: uuid.NewString(), ResponseID: "r1", Rating: 3,
	})
	if !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound, got %v", err)
	}
}

func TestFeedback_Submit_CrossTenantTicketHidden(t *testing.T) {
	db := newTestDB(t)
	tk, resp := seedRatedTicket(t, db, "tenant-a", "")

	svc := &FeedbackService{DB: db, Embedder: &fakeEmbedder{}}
	_, err := svc.Submit(context.Background(), FeedbackInput{
		ClientID: "tenant-b", UserID: "u1", TicketID: tk.ID, ResponseID: resp.ID, Rating: 3,
	})
	if !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound for foreign tenant, got %v", err)
	}
}

func TestFeedback_Submit_ResponseTicketMismatch(t *testing.T) {
	db := newTestDB(t)
	tk, _ := seedRatedTicket(t, db, "c1", "")
	_, otherResp := seedRatedTicket(t, db, "c1", "")

	svc := &FeedbackService{DB: db, Embedder: &fakeEmbedder{}}
	_, err := svc.Submit(context.Background(), FeedbackInput{
		ClientID: "c1", UserID: "u1", TicketID: tk.ID, ResponseID: otherResp.ID, Rating: 5,
	})
	if !errors.Is(err, ErrResponseTicketMismatch) {
		t.Fatalf("expected ErrResponseTicketMismatch, got %v", err)
	}
}

func TestFeedback_Submit_LowRatingDoesNotPromote(t *testing.T) {
	db := newTestDB(t)
	tk, resp := seedRatedTicket(t, db, "c1", "")

	emb := &fakeEmbedder{vec: []float32{0.1}}
	svc := &FeedbackService{DB: db, Embedder: emb}

	fb, err := svc.Submit(context.Background(), FeedbackInput{
		ClientID: "c1", UserID: "u2", TicketID: tk.ID, ResponseID: resp.ID, Rating: 4, Comment: "close",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if fb.Rating != 4 || fb.Comment != "close" {
		t.Fatalf("unexpected feedback row: %+v", fb)
	}
	if emb.calls != 0 {
		t.Fatal("embedder called for sub-5 rating")
	}

	var cases int64
	if err := db.Model(&domain.ResolvedCase{}).Count(&cases).Error; err != nil {
		t.Fatalf("count cases: %v", err)
	}
	if cases != 0 {
		t.Fatalf("expected 0 resolved cases, got %d", cases)
	}
}

func TestFeedback_Submit_FiveStarPromotes(t *testing.T) {
	db := newTestDB(t)
	cat := &domain.Category{ID: uuid.NewString(), ClientID: "c1", Name: "Grills"}
	if err := db.Create(cat).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	tk, resp := seedRatedTicket(t, db, "c1", cat.ID)

	svc := &FeedbackService{DB: db, Embedder: &fakeEmbedder{vec: []float32{0.1, 0.2}}}
	if _, err := svc.Submit(context.Background(), FeedbackInput{
		ClientID: "c1", UserID: "rater", TicketID: tk.ID, ResponseID: resp.ID, Rating: 5,
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var rc domain.ResolvedCase
	if err := db.First(&rc).Error; err != nil {
		t.Fatalf("load resolved case: %v", err)
	}
	if rc.ClientID != "c1" {
		t.Fatalf("case tenant = %q", rc.ClientID)
	}
	if rc.TicketID == nil || *rc.TicketID != tk.ID {
		t.Fatalf("case ticket ref = %v", rc.TicketID)
	}
	if rc.Title != tk.Subject || rc.ProblemDescription != tk.Description {
		t.Fatalf("case problem fields wrong: %+v", rc)
	}
	if rc.AIResponse != resp.Response {
		t.Fatalf("case answer = %q, want %q", rc.AIResponse, resp.Response)
	}
	if len(rc.Tags) != 1 || rc.Tags[0] != "Grills" {
		t.Fatalf("case tags = %v, want [Grills]", rc.Tags)
	}
	if rc.Source != domain.SourceFeedback {
		t.Fatalf("case source = %q", rc.Source)
	}
	if rc.CreatedBy == nil || *rc.CreatedBy != "rater" {
		t.Fatalf("case created_by = %v", rc.CreatedBy)
	}
}

func TestFeedback_Submit_FiveStarWithoutCategoryStoresEmptyTags(t *testing.T) {
	db := newTestDB(t)
	tk, resp := seedRatedTicket(t, db, "c1", "")

	svc := &FeedbackService{DB: db, Embedder: &fakeEmbedder{vec: []float32{0.1}}}
	if _, err := svc.Submit(context.Background(), FeedbackInput{
		ClientID: "c1", UserID: "u1", TicketID: tk.ID, ResponseID: resp.ID, Rating: 5,
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var rc domain.ResolvedCase
	if err := db.First(&rc).Error; err != nil {
		t.Fatalf("load resolved case: %v", err)
	}
	if len(rc.Tags) != 0 {
		t.Fatalf("expected empty tags, got %v", rc.Tags)
	}
}

func TestFeedback_Submit_EmbedFailureRollsBackFeedback(t *testing.T) {
	db := newTestDB(t)
	tk, resp := seedRatedTicket(t, db, "c1", "")

	svc := &FeedbackService{DB: db, Embedder: &fakeEmbedder{err: errors.New("embedding down")}}
	_, err := svc.Submit(context.Background(), FeedbackInput{
		ClientID: "c1", UserID: "u1", TicketID: tk.ID, ResponseID: resp.ID, Rating: 5,
	})
	if err == nil {
		t.Fatal("expected error from failed promotion")
	}

	// The whole transaction rolled back: no feedback row, no case.
	var fbCount, caseCount int64
	db.Model(&domain.AIFeedback{}).Count(&fbCount)
	db.Model(&domain.ResolvedCase{}).Count(&caseCount)
	if fbCount != 0 || caseCount != 0 {
		t.Fatalf("rollback incomplete: feedback=%d cases=%d", fbCount, caseCount)
	}
}

func TestFeedback_Submit_RepeatedFiveStarsCreateOneCaseEach(t *testing.T) {
	db := newTestDB(t)
	tk, resp := seedRatedTicket(t, db, "c1", "")

	svc := &FeedbackService{DB: db, Embedder: &fakeEmbedder{vec: []float32{0.1}}}
	for i := 0; i < 2; i++ {
		if _, err := svc.Submit(context.Background(), FeedbackInput{
			ClientID: "c1", UserID: "u1", TicketID: tk.ID, ResponseID: resp.ID, Rating: 5,
		}); err != nil {
			t.Fatalf("Submit #%d: %v", i+1, err)
		}
	}

	var cases int64
	if err := db.Model(&domain.ResolvedCase{}).Count(&cases).Error; err != nil {
		t.Fatalf("count cases: %v", err)
	}
	if cases != 2 {
		t.Fatalf("expected 2 resolved cases, got %d", cases)
	}
}
