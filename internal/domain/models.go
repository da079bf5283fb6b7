// Package domain defines the persistence models for tickets, their message
// threads, the knowledge base, and the AI suggestion audit trail. These types
// are mapped with GORM and form the core data layer of the support backend.
//
// Every row is scoped to a client (the tenant boundary): queries must never
// cross client boundaries.
package domain

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// EmbeddingDim is the fixed dimensionality of all stored embedding vectors.
// It must match the output size of the configured embedding model.
const EmbeddingDim = 1536

// Ticket statuses.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

// Message author kinds.
const (
	AuthorUser    = "user"
	AuthorAI      = "ai"
	AuthorSupport = "support"
)

// ResolvedCase provenance values.
const (
	SourceFeedback = "feedback"
	SourceManual   = "manual"
)

// Category is a per-client grouping for tickets (e.g. "Fryers", "POS").
type Category struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	ClientID  string    `json:"client_id" gorm:"type:char(36);not null;index:idx_categories_client"`
	Name      string    `json:"name"      gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Category.
func (Category) TableName() string { return "ticket_categories" }

// Ticket is an equipment problem report filed by a staff member.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - ClientID: tenant that owns the ticket; indexed together with status.
//   - CreatedBy: identifier of the filing user.
//   - CategoryID: optional category reference within the same client.
//   - Subject / Description: the problem statement. Immutable after creation;
//     only status, priority and equipment may change later.
//   - EquipmentID: optional reference to the affected equipment.
//   - Priority: urgency from 1 (lowest) to 5 (highest).
//   - Status: lifecycle state (open → in_progress → resolved → closed).
type Ticket struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	ClientID    string    `json:"client_id"    gorm:"type:char(36);not null;index:idx_tickets_client_status,priority:1"`
	CreatedBy   string    `json:"created_by"   gorm:"type:char(36);not null;index"`
	CategoryID  string    `json:"category_id"  gorm:"type:char(36);index"`
	Subject     string    `json:"subject"      gorm:"type:text;not null"`
	Description string    `json:"description"  gorm:"type:text;not null"`
	EquipmentID *string   `json:"equipment_id,omitempty" gorm:"type:char(36)"`
	Priority    int       `json:"priority"     gorm:"not null;default:3;check:priority BETWEEN 1 AND 5"`
	Status      string    `json:"status"       gorm:"type:varchar(32);not null;default:'open';index:idx_tickets_client_status,priority:2"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Ticket.
func (Ticket) TableName() string { return "tickets" }

// TicketMessage is one unit of a ticket's conversation thread, ordered by
// creation time and append-only.
//
// AuthorType distinguishes staff ("user"), support agents ("support") and
// pipeline-generated suggestions ("ai"). AI-authored messages always carry a
// back-reference to the AIResponse audit row they were produced from; the
// reference is written only after that row has been committed, so it is never
// dangling. AI messages are attributed to the ticket creator rather than a
// dedicated system principal (see AIResponse.UserID).
type TicketMessage struct {
	ID           string            `json:"id"             gorm:"type:char(36);primaryKey"`
	TicketID     string            `json:"ticket_id"      gorm:"type:char(36);not null;index:idx_ticket_msgs,priority:1"`
	AuthorID     string            `json:"author_id"      gorm:"type:char(36);not null"`
	AuthorType   string            `json:"author_type"    gorm:"type:varchar(16);not null;check:author_type IN ('user','ai','support')"`
	Content      string            `json:"content"        gorm:"type:text;not null"`
	Meta         map[string]string `json:"meta"           gorm:"serializer:json;type:jsonb"`
	AIResponseID *string           `json:"ai_response_id,omitempty" gorm:"type:char(36)"`
	CreatedAt    time.Time         `json:"created_at"     gorm:"index:idx_ticket_msgs,priority:2"`

	// Ticket is the parent thread. Messages are cascade-deleted with it.
	Ticket Ticket `json:"-" gorm:"foreignKey:TicketID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for TicketMessage.
func (TicketMessage) TableName() string { return "ticket_messages" }

// KnowledgeArticle is a client-scoped reference document used as retrieval
// context when no resolved case matches a new ticket.
//
// Invariant: Embedding is always derived from the current Title and Content.
// Both the create and update paths regenerate it, so the vector and the text
// never diverge.
type KnowledgeArticle struct {
	ID        string          `json:"id"        gorm:"type:char(36);primaryKey"`
	ClientID  string          `json:"client_id" gorm:"type:char(36);not null;index:idx_articles_client"`
	Title     string          `json:"title"     gorm:"type:text;not null"`
	Content   string          `json:"content"   gorm:"type:text;not null"`
	Tags      []string        `json:"tags"      gorm:"serializer:json;type:jsonb"`
	Embedding pgvector.Vector `json:"-"         gorm:"type:vector(1536)"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName returns the database table name for KnowledgeArticle.
func (KnowledgeArticle) TableName() string { return "knowledge_articles" }

// ResolvedCase is a cached, previously confirmed solution. The suggestion
// pipeline only ever appends rows here (via five-star feedback); nothing in
// the retrieval path mutates or prunes them.
//
// Source records provenance: "feedback" for automatically promoted solutions,
// "manual" for curated entries.
type ResolvedCase struct {
	ID                 string          `json:"id"                  gorm:"type:char(36);primaryKey"`
	ClientID           string          `json:"client_id"           gorm:"type:char(36);not null;index:idx_cases_client"`
	TicketID           *string         `json:"ticket_id,omitempty" gorm:"type:char(36)"`
	Title              string          `json:"title"               gorm:"type:text;not null"`
	ProblemDescription string          `json:"problem_description" gorm:"type:text;not null"`
	AIResponse         string          `json:"ai_response"         gorm:"type:text;not null"`
	Tags               []string        `json:"tags"                gorm:"serializer:json;type:jsonb"`
	Source             string          `json:"source"              gorm:"type:varchar(16);not null;default:'feedback'"`
	CreatedBy          *string         `json:"created_by,omitempty" gorm:"type:char(36)"`
	Embedding          pgvector.Vector `json:"-"                   gorm:"type:vector(1536)"`
	CreatedAt          time.Time       `json:"created_at"`
}

// TableName returns the database table name for ResolvedCase.
func (ResolvedCase) TableName() string { return "resolved_cases" }

// AIResponse is the immutable audit record of one suggestion attempt: which
// ticket and user it belongs to, the model that answered (or the cache
// sentinel when a resolved case short-circuited the run), the prompt that was
// sent (or a provenance note for cache hits), the answer text, and token
// usage when the provider reported it.
type AIResponse struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	TicketID   string    `json:"ticket_id"   gorm:"type:char(36);not null;index:idx_ai_responses_ticket"`
	UserID     string    `json:"user_id"     gorm:"type:char(36);not null"`
	Model      string    `json:"model"       gorm:"type:varchar(64);not null"`
	Prompt     string    `json:"prompt"      gorm:"type:text;not null"`
	Response   string    `json:"response"    gorm:"type:text;not null"`
	TokensUsed int       `json:"tokens_used"`
	CreatedAt  time.Time `json:"created_at"`

	// Ticket is the audited conversation. Audit rows are removed with it.
	Ticket Ticket `json:"-" gorm:"foreignKey:TicketID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for AIResponse.
func (AIResponse) TableName() string { return "ai_responses" }

// AIFeedback is a user rating (1–5) of a delivered suggestion, append-only.
// A rating of 5 promotes the suggestion into resolved_cases within the same
// transaction that inserts the feedback row; repeated five-star ratings on
// the same response are not deduplicated and create one case each.
type AIFeedback struct {
	ID           string    `json:"id"             gorm:"type:char(36);primaryKey"`
	AIResponseID string    `json:"ai_response_id" gorm:"type:char(36);not null;index:idx_ai_feedback_response"`
	TicketID     string    `json:"ticket_id"      gorm:"type:char(36);not null;index:idx_ai_feedback_ticket"`
	UserID       string    `json:"user_id"        gorm:"type:char(36);not null"`
	Rating       int       `json:"rating"         gorm:"not null;check:rating BETWEEN 1 AND 5"`
	Comment      string    `json:"comment"        gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"`

	// Response is the rated suggestion. Feedback is cascade-deleted with it.
	Response AIResponse `json:"-" gorm:"foreignKey:AIResponseID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for AIFeedback.
func (AIFeedback) TableName() string { return "ai_feedback" }
