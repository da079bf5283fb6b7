// Package suggest – suggestion Service
//
// This file implements the retrieval decision engine, suggestion delivery,
// and the background orchestration boundary. A Service owns one pipeline
// run end to end: embed the ticket, look for a near-identical resolved case,
// fall back to knowledge retrieval plus generation, persist the audit trail,
// and broadcast the resulting message.
//
// Failure policy: a run aborts on the first embedding, search, completion,
// or persistence error. When launched via Start, that error is logged with
// the ticket id and swallowed; the ticket itself stays valid and simply
// never receives an AI message. Broadcast failures alone are non-fatal.
package suggest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/qsrdesk/go-support-backend/internal/domain"
	"github.com/qsrdesk/go-support-backend/internal/repo"
)

// CacheHitPrefix introduces answers served from a previously resolved case.
const CacheHitPrefix = "We found a previously resolved ticket that seems very similar. Here is the proven solution:\n\n"

// CacheModelSentinel is recorded as the model name on audit rows for cache
// hits, where no completion call was made.
const CacheModelSentinel = "resolved-case-cache"

// Nearest-neighbour fan-outs for the two retrieval steps.
const (
	caseTopK    = 1
	articleTopK = 3
)

// defaultCallTimeout bounds each external call when the Service is not
// configured with one. The pipeline has no overall deadline.
const defaultCallTimeout = 30 * time.Second

// Provenance tags how an answer was produced. Exactly one value applies to
// any successful run.
type Provenance string

// Provenance values.
const (
	ProvenanceCacheHit  Provenance = "cache-hit"
	ProvenanceGenerated Provenance = "generated"
)

// Result is the retrieval decision engine's output for one ticket.
type Result struct {
	// Answer is the suggestion text to deliver.
	Answer string
	// Provenance records which path produced the answer.
	Provenance Provenance
	// CaseID references the matched resolved case (cache hits only).
	CaseID string
	// Prompt is the prompt sent to the completion gateway, or a provenance
	// note for cache hits.
	Prompt string
	// Model is the completion model name, or CacheModelSentinel.
	Model string
	// Tokens is the provider-reported token usage (0 when unknown).
	Tokens int
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completer generates an answer for a system+user prompt pair using fixed
// sampling configuration.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, int, error)
	Model() string
}

// Searcher provides tenant-scoped nearest-neighbour retrieval and
// best-effort category resolution.
type Searcher interface {
	NearestResolvedCases(ctx context.Context, clientID string, query []float32, k int) ([]repo.CaseMatch, error)
	NearestArticles(ctx context.Context, clientID string, query []float32, k int) ([]repo.ArticleMatch, error)
	CategoryName(ctx context.Context, id string) (string, error)
}

// Broadcaster pushes a new message to clients currently viewing a ticket.
// Delivery is best-effort and at-most-once; absent subscribers miss it.
type Broadcaster interface {
	PublishNewMessage(ticketID string, msg *domain.TicketMessage) error
}

// Service runs the suggestion pipeline. All dependencies are injected; the
// zero value is not usable.
type Service struct {
	DB        *gorm.DB
	Search    Searcher
	Embedder  Embedder
	Completer Completer
	Trimmer   TokenTrimmer
	Hub       Broadcaster // optional; nil disables broadcasting

	// Threshold is the resolved-case distance cutoff. A case short-circuits
	// the run only when its distance is strictly below this value.
	Threshold float64
	// ArticleBudget caps each context article's contribution in tokens.
	ArticleBudget int
	// CallTimeout bounds each external call; defaults to 30s when zero.
	CallTimeout time.Duration

	Logger zerolog.Logger
}

// Start launches the pipeline for a freshly created ticket as an
// independent goroutine and returns immediately. It must only be called
// after the ticket-creation transaction has committed. Panics and errors
// are contained here; nothing propagates to the caller.
func (s *Service) Start(t *domain.Ticket) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				runsTotal.WithLabelValues(outcomeFailed).Inc()
				s.Logger.Error().
					Str("ticket_id", t.ID).
					Interface("panic", r).
					Msg("suggestion run panicked")
			}
		}()
		if err := s.Run(context.Background(), t); err != nil {
			s.Logger.Error().
				Err(err).
				Str("ticket_id", t.ID).
				Msg("suggestion run failed")
		}
	}()
}

// Run executes one full pipeline run synchronously: decide, persist,
// broadcast. Exported for the orchestrator and for tests; handlers should
// go through Start.
func (s *Service) Run(ctx context.Context, t *domain.Ticket) error {
	tr := otel.Tracer("suggest/Service")
	ctx, span := tr.Start(ctx, "Run",
		trace.WithAttributes(attribute.String("ticket.id", t.ID)),
	)
	defer span.End()

	res, err := s.Decide(ctx, t)
	if err != nil {
		runsTotal.WithLabelValues(outcomeFailed).Inc()
		return err
	}

	if _, err := s.Deliver(ctx, t, res); err != nil {
		runsTotal.WithLabelValues(outcomeFailed).Inc()
		return err
	}

	switch res.Provenance {
	case ProvenanceCacheHit:
		runsTotal.WithLabelValues(outcomeCacheHit).Inc()
	default:
		runsTotal.WithLabelValues(outcomeGenerated).Inc()
	}
	s.Logger.Info().
		Str("ticket_id", t.ID).
		Str("provenance", string(res.Provenance)).
		Msg("suggestion delivered")
	return nil
}

// Decide implements the retrieval decision engine: embed the ticket, prefer
// a sufficiently close resolved case, otherwise retrieve knowledge articles
// and generate a fresh answer. A cache-hit run never calls the completion
// gateway.
func (s *Service) Decide(ctx context.Context, t *domain.Ticket) (*Result, error) {
	tr := otel.Tracer("suggest/Service")
	ctx, span := tr.Start(ctx, "Decide",
		trace.WithAttributes(
			attribute.String("ticket.id", t.ID),
			attribute.String("client.id", t.ClientID),
		),
	)
	defer span.End()

	content := t.Subject + "\n" + t.Description

	cctx, cancel := s.callCtx(ctx)
	vec, err := s.Embedder.Embed(cctx, content)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("embed ticket: %w", err)
	}

	cctx, cancel = s.callCtx(ctx)
	cases, err := s.Search.NearestResolvedCases(cctx, t.ClientID, vec, caseTopK)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("resolved case search: %w", err)
	}

	// Strictly-less comparison: a case exactly at the threshold does not
	// short-circuit. The store's ordering decides ties among equidistant rows.
	if len(cases) > 0 && cases[0].Distance < s.Threshold {
		best := cases[0]
		span.SetAttributes(attribute.Float64("case.distance", best.Distance))
		return &Result{
			Answer:     CacheHitPrefix + best.Content,
			Provenance: ProvenanceCacheHit,
			CaseID:     best.ID,
			Prompt:     fmt.Sprintf("Resolved case used: %s", best.ID),
			Model:      CacheModelSentinel,
		}, nil
	}

	cctx, cancel = s.callCtx(ctx)
	articles, err := s.Search.NearestArticles(cctx, t.ClientID, vec, articleTopK)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("knowledge article search: %w", err)
	}

	prompt := BuildPrompt(t, s.categoryName(ctx, t.CategoryID), articles, s.Trimmer, s.ArticleBudget)

	cctx, cancel = s.callCtx(ctx)
	answer, tokens, err := s.Completer.Complete(cctx, SystemPrompt, prompt)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}

	return &Result{
		Answer:     answer,
		Provenance: ProvenanceGenerated,
		Prompt:     prompt,
		Model:      s.Completer.Model(),
		Tokens:     tokens,
	}, nil
}

// Deliver durably records the interaction and notifies live observers. The
// audit row is written first so the AI message's back-reference is always
// valid; a broadcast failure is logged and does not fail the run.
func (s *Service) Deliver(ctx context.Context, t *domain.Ticket, res *Result) (*domain.TicketMessage, error) {
	tr := otel.Tracer("suggest/Service")
	ctx, span := tr.Start(ctx, "Deliver",
		trace.WithAttributes(attribute.String("ticket.id", t.ID)),
	)
	defer span.End()

	audit, err := repo.CreateAIResponse(ctx, s.DB, &domain.AIResponse{
		TicketID:   t.ID,
		UserID:     t.CreatedBy,
		Model:      res.Model,
		Prompt:     res.Prompt,
		Response:   res.Answer,
		TokensUsed: res.Tokens,
	})
	if err != nil {
		return nil, fmt.Errorf("persist audit row: %w", err)
	}

	msg, err := repo.CreateMessage(ctx, s.DB, t.ID, t.CreatedBy, domain.AuthorAI, res.Answer, &audit.ID)
	if err != nil {
		return nil, fmt.Errorf("persist ai message: %w", err)
	}

	if s.Hub != nil {
		if err := s.Hub.PublishNewMessage(t.ID, msg); err != nil {
			s.Logger.Warn().
				Err(err).
				Str("ticket_id", t.ID).
				Msg("broadcast failed")
		}
	}
	return msg, nil
}

// categoryName resolves the ticket's category name, tolerating absence.
func (s *Service) categoryName(ctx context.Context, id string) string {
	if id == "" {
		return UnknownCategory
	}
	cctx, cancel := s.callCtx(ctx)
	defer cancel()
	name, err := s.Search.CategoryName(cctx, id)
	if err != nil || name == "" {
		return UnknownCategory
	}
	return name
}

// callCtx derives a bounded context for one external call.
func (s *Service) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	d := s.CallTimeout
	if d <= 0 {
		d = defaultCallTimeout
	}
	return context.WithTimeout(ctx, d)
}
