package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/qsrdesk/go-support-backend/internal/domain"
	"github.com/qsrdesk/go-support-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:suggest_%s?mode=memory&cache=shared", uuid.NewString())

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

//
// Gateway stubs
//

type stubEmbedder struct {
	vec     []float32
	err     error
	calls   int
	gotText string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.calls++
	s.gotText = text
	return s.vec, s.err
}

type stubCompleter struct {
	answer    string
	tokens    int
	err       error
	calls     int
	gotSystem string
	gotPrompt string
}

func (s *stubCompleter) Complete(_ context.Context, systemPrompt, userPrompt string) (string, int, error) {
	s.calls++
	s.gotSystem = systemPrompt
	s.gotPrompt = userPrompt
	return s.answer, s.tokens, s.err
}

func (s *stubCompleter) Model() string { return "stub-model" }

type stubSearcher struct {
	cases    []repo.CaseMatch
	articles []repo.ArticleMatch
	caseErr  error
	artErr   error
	catName  string
	catErr   error
}

func (s *stubSearcher) NearestResolvedCases(context.Context, string, []float32, int) ([]repo.CaseMatch, error) {
	return s.cases, s.caseErr
}

func (s *stubSearcher) NearestArticles(context.Context, string, []float32, int) ([]repo.ArticleMatch, error) {
	return s.articles, s.artErr
}

func (s *stubSearcher) CategoryName(context.Context, string) (string, error) {
	return s.catName, s.catErr
}

type stubBroadcaster struct {
	err     error
	tickets []string
	msgs    []*domain.TicketMessage
}

func (s *stubBroadcaster) PublishNewMessage(ticketID string, msg *domain.TicketMessage) error {
	s.tickets = append(s.tickets, ticketID)
	s.msgs = append(s.msgs, msg)
	return s.err
}

func newService(emb *stubEmbedder, comp *stubCompleter, search *stubSearcher) *Service {
	return &Service{
		Search:        search,
		Embedder:      emb,
		Completer:     comp,
		Trimmer:       nopTrimmer{},
		Threshold:     0.08,
		ArticleBudget: 200,
		Logger:        zerolog.Nop(),
	}
}

func pipelineTicket() *domain.Ticket {
	return &domain.Ticket{
		ID:          uuid.NewString(),
		ClientID:    "client-1",
		CreatedBy:   "user-1",
		CategoryID:  "cat-1",
		Subject:     "Ice machine leaking",
		Description: "Water pooling under the ice machine every morning.",
		Status:      domain.StatusOpen,
	}
}

//
// Decide
//

func TestDecide_CacheHitStrictlyBelowThreshold(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{0.1, 0.2}}
	comp := &stubCompleter{answer: "generated"}
	search := &stubSearcher{
		cases: []repo.CaseMatch{{ID: "rc-1", Content: "Tighten the drain fitting.", Distance: 0.0799}},
	}
	svc := newService(emb, comp, search)

	res, err := svc.Decide(context.Background(), pipelineTicket())
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if res.Provenance != ProvenanceCacheHit {
		t.Fatalf("expected cache hit, got %s", res.Provenance)
	}
	if comp.calls != 0 {
		t.Fatalf("completion gateway called on cache hit")
	}
	if !strings.HasPrefix(res.Answer, CacheHitPrefix) {
		t.Fatalf("cache hit answer missing prefix: %q", res.Answer)
	}
	if !strings.HasSuffix(res.Answer, "Tighten the drain fitting.") {
		t.Fatalf("cache hit answer missing case content: %q", res.Answer)
	}
	if res.CaseID != "rc-1" {
		t.Fatalf("CaseID = %q, want rc-1", res.CaseID)
	}
	if res.Prompt != "Resolved case used: rc-1" {
		t.Fatalf("unexpected provenance note: %q", res.Prompt)
	}
	if res.Model != CacheModelSentinel {
		t.Fatalf("Model = %q, want %q", res.Model, CacheModelSentinel)
	}
}

func TestDecide_DistanceAtThresholdGenerates(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{0.1}}
	comp := &stubCompleter{answer: "fresh answer", tokens: 42}
	search := &stubSearcher{
		// Exactly at the threshold: not below, so no short-circuit.
		cases:   []repo.CaseMatch{{ID: "rc-1", Content: "cached", Distance: 0.08}},
		catName: "Ice Machines",
	}
	svc := newService(emb, comp, search)

	res, err := svc.Decide(context.Background(), pipelineTicket())
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if res.Provenance != ProvenanceGenerated {
		t.Fatalf("expected generated, got %s", res.Provenance)
	}
	if comp.calls != 1 {
		t.Fatalf("expected 1 completion call, got %d", comp.calls)
	}
	if res.Answer != "fresh answer" || res.Tokens != 42 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Model != "stub-model" {
		t.Fatalf("Model = %q, want stub-model", res.Model)
	}
}

func TestDecide_GeneratedPromptContents(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{0.1}}
	comp := &stubCompleter{answer: "steps"}
	search := &stubSearcher{
		articles: []repo.ArticleMatch{{ID: "a1", Title: "Leak checklist", Content: "Inspect the drain line."}},
		catName:  "Ice Machines",
	}
	svc := newService(emb, comp, search)

	tk := pipelineTicket()
	if _, err := svc.Decide(context.Background(), tk); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	if emb.gotText != tk.Subject+"\n"+tk.Description {
		t.Fatalf("embedded text = %q", emb.gotText)
	}
	if comp.gotSystem != SystemPrompt {
		t.Fatalf("system prompt = %q", comp.gotSystem)
	}
	if !strings.Contains(comp.gotPrompt, "- Ticket Category: Ice Machines\n") {
		t.Fatalf("prompt missing category:\n%s", comp.gotPrompt)
	}
	if !strings.Contains(comp.gotPrompt, `- Article: "Leak checklist"`) {
		t.Fatalf("prompt missing article:\n%s", comp.gotPrompt)
	}
}

func TestDecide_CategoryResolutionBestEffort(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{0.1}}
	comp := &stubCompleter{answer: "steps"}
	search := &stubSearcher{catErr: errors.New("category gone")}
	svc := newService(emb, comp, search)

	if _, err := svc.Decide(context.Background(), pipelineTicket()); err != nil {
		t.Fatalf("Decide should not fail on category resolution: %v", err)
	}
	if !strings.Contains(comp.gotPrompt, "- Ticket Category: Unknown\n") {
		t.Fatalf("expected Unknown category in prompt:\n%s", comp.gotPrompt)
	}
}

func TestDecide_EmbedErrorPropagates(t *testing.T) {
	emb := &stubEmbedder{err: errors.New("embedding down")}
	svc := newService(emb, &stubCompleter{}, &stubSearcher{})

	_, err := svc.Decide(context.Background(), pipelineTicket())
	if err == nil || !strings.Contains(err.Error(), "embed ticket") {
		t.Fatalf("expected wrapped embed error, got %v", err)
	}
}

func TestDecide_EmptyCompletionFails(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{0.1}}
	comp := &stubCompleter{err: errors.New("empty completion response")}
	svc := newService(emb, comp, &stubSearcher{catName: "X"})

	if _, err := svc.Decide(context.Background(), pipelineTicket()); err == nil {
		t.Fatal("expected error from failed completion")
	}
}

//
// Deliver / Run
//

func seedTicket(t *testing.T, db *gorm.DB, tk *domain.Ticket) {
	t.Helper()
	if _, err := repo.CreateTicket(context.Background(), db, tk); err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
}

func TestDeliver_AuditRowThenMessageThenBroadcast(t *testing.T) {
	db := newTestDB(t)
	tk := pipelineTicket()
	seedTicket(t, db, tk)

	bc := &stubBroadcaster{}
	svc := newService(&stubEmbedder{}, &stubCompleter{}, &stubSearcher{})
	svc.DB = db
	svc.Hub = bc

	res := &Result{
		Answer:     "Here are a few steps you can try to resolve the issue: ...",
		Provenance: ProvenanceGenerated,
		Prompt:     "the prompt",
		Model:      "stub-model",
		Tokens:     120,
	}
	msg, err := svc.Deliver(context.Background(), tk, res)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	// The AI message carries a valid back-reference to the audit row.
	if msg.AIResponseID == nil {
		t.Fatal("AI message missing ai_response_id")
	}
	audit, err := repo.GetAIResponse(context.Background(), db, *msg.AIResponseID)
	if err != nil {
		t.Fatalf("load audit row: %v", err)
	}
	if audit.TicketID != tk.ID || audit.UserID != tk.CreatedBy {
		t.Fatalf("audit row fields wrong: %+v", audit)
	}
	if audit.Model != "stub-model" || audit.Prompt != "the prompt" || audit.TokensUsed != 120 {
		t.Fatalf("audit row contents wrong: %+v", audit)
	}

	if msg.AuthorType != domain.AuthorAI {
		t.Fatalf("author type = %q, want ai", msg.AuthorType)
	}
	if msg.AuthorID != tk.CreatedBy {
		t.Fatalf("AI message attributed to %q, want ticket creator %q", msg.AuthorID, tk.CreatedBy)
	}
	if msg.Content != res.Answer {
		t.Fatalf("message content = %q", msg.Content)
	}

	if len(bc.tickets) != 1 || bc.tickets[0] != tk.ID {
		t.Fatalf("broadcast tickets = %v", bc.tickets)
	}
}

func TestDeliver_BroadcastFailureIsNonFatal(t *testing.T) {
	db := newTestDB(t)
	tk := pipelineTicket()
	seedTicket(t, db, tk)

	svc := newService(&stubEmbedder{}, &stubCompleter{}, &stubSearcher{})
	svc.DB = db
	svc.Hub = &stubBroadcaster{err: errors.New("no subscribers")}

	if _, err := svc.Deliver(context.Background(), tk, &Result{Answer: "a", Model: "m"}); err != nil {
		t.Fatalf("broadcast failure must not fail delivery: %v", err)
	}
}

func TestRun_FailureLeavesThreadUntouched(t *testing.T) {
	db := newTestDB(t)
	tk := pipelineTicket()
	seedTicket(t, db, tk)

	svc := newService(&stubEmbedder{err: errors.New("embedding down")}, &stubCompleter{}, &stubSearcher{})
	svc.DB = db

	if err := svc.Run(context.Background(), tk); err == nil {
		t.Fatal("expected Run to fail")
	}

	// Only the ticket's first message exists; no AI message, no audit row.
	msgs, err := repo.ListMessages(context.Background(), db, tk.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].AuthorType != domain.AuthorUser {
		t.Fatalf("unexpected thread after failed run: %+v", msgs)
	}
	var count int64
	if err := db.Model(&domain.AIResponse{}).Count(&count).Error; err != nil {
		t.Fatalf("count audit rows: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no audit rows, got %d", count)
	}
}

func TestRun_CacheHitDeliversPrefixedAnswer(t *testing.T) {
	db := newTestDB(t)
	tk := pipelineTicket()
	seedTicket(t, db, tk)

	comp := &stubCompleter{}
	svc := newService(&stubEmbedder{vec: []float32{0.1}}, comp, &stubSearcher{
		cases: []repo.CaseMatch{{ID: "rc-9", Content: "Proven fix.", Distance: 0.01}},
	})
	svc.DB = db

	if err := svc.Run(context.Background(), tk); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if comp.calls != 0 {
		t.Fatal("completion called on cache hit")
	}

	msgs, err := repo.ListMessages(context.Background(), db, tk.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected first message + AI message, got %d", len(msgs))
	}
	var aiMsg *domain.TicketMessage
	for i := range msgs {
		if msgs[i].AuthorType == domain.AuthorAI {
			aiMsg = &msgs[i]
		}
	}
	if aiMsg == nil {
		t.Fatalf("no AI message in thread: %+v", msgs)
	}
	if !strings.HasPrefix(aiMsg.Content, CacheHitPrefix) {
		t.Fatalf("AI message missing cache prefix: %q", aiMsg.Content)
	}
	audit, err := repo.GetAIResponse(context.Background(), db, *aiMsg.AIResponseID)
	if err != nil {
		t.Fatalf("load audit: %v", err)
	}
	if audit.Model != CacheModelSentinel {
		t.Fatalf("audit model = %q, want sentinel", audit.Model)
	}
	if audit.Prompt != "Resolved case used: rc-9" {
		t.Fatalf("audit prompt = %q", audit.Prompt)
	}
}
