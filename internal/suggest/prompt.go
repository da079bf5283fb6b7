// Package suggest implements the retrieval-augmented suggestion pipeline:
// deciding between a cached resolved case and a fresh generation, building
// the completion prompt, persisting the audit trail, and delivering the
// result to connected clients.
//
// This file contains the prompt builder. It is deterministic: identical
// inputs produce byte-identical output. The only non-arithmetic work is the
// tokenizer call used to enforce the per-article token budget.
package suggest

import (
	"fmt"
	"strings"

	"github.com/qsrdesk/go-support-backend/internal/domain"
	"github.com/qsrdesk/go-support-backend/internal/repo"
)

// SystemPrompt is the fixed system instruction sent with every completion.
const SystemPrompt = "You are a helpful AI assistant."

// noArticlesLine is emitted when the knowledge search returned nothing,
// telling the model to fall back to general troubleshooting knowledge.
const noArticlesLine = "No relevant articles found."

// UnknownCategory is rendered when the ticket's category cannot be resolved.
const UnknownCategory = "Unknown"

// TokenTrimmer truncates text to a token budget measured against the
// completion model's vocabulary.
type TokenTrimmer interface {
	Truncate(text string, maxTokens int) string
}

// BuildPrompt assembles the user prompt for a ticket from its resolved
// category name and the retrieved context articles. Each article contributes
// its title verbatim and its content truncated to articleBudget tokens. The
// prompt always ends with the fixed instruction block requesting numbered,
// second-person steps.
func BuildPrompt(t *domain.Ticket, categoryName string, articles []repo.ArticleMatch, trim TokenTrimmer, articleBudget int) string {
	if categoryName == "" {
		categoryName = UnknownCategory
	}

	var context strings.Builder
	for i, a := range articles {
		if i > 0 {
			context.WriteString("\n")
		}
		fmt.Fprintf(&context, "- Article: %q\n  Content: %s...", a.Title, trim.Truncate(a.Content, articleBudget))
	}
	contextBlock := context.String()
	if contextBlock == "" {
		contextBlock = noArticlesLine
	}

	var b strings.Builder
	b.WriteString("You are an AI support assistant for a quick-service restaurant.\n")
	b.WriteString("A staff member has submitted a support ticket. Your task is to provide a clear, step-by-step troubleshooting guide.\n")
	b.WriteString("\n")
	b.WriteString("**Problem Description:**\n")
	fmt.Fprintf(&b, "- Ticket Subject: %s\n", t.Subject)
	fmt.Fprintf(&b, "- Ticket Category: %s\n", categoryName)
	fmt.Fprintf(&b, "- Full Description: %s\n", t.Description)
	b.WriteString("\n")
	b.WriteString("**Relevant Knowledge Base Articles:**\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\n")
	b.WriteString("**Instructions:**\n")
	b.WriteString("Based on the problem description and the provided articles, generate a set of numbered, actionable steps for the user to follow.\n")
	b.WriteString("If the articles provide a direct solution, use it. If not, use your general troubleshooting knowledge for restaurant equipment.\n")
	b.WriteString("Keep the language simple and direct. Address the user as \"you\".\n")
	b.WriteString("Start your response with \"Here are a few steps you can try to resolve the issue:\".")
	return b.String()
}
