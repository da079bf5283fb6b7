package services

import "errors"

// Sentinel errors returned by the service layer. Handlers map these onto
// HTTP status codes; anything else is treated as an internal error.
var (
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrArticleNotFound  = errors.New("article not found")
	ErrResponseNotFound = errors.New("ai response not found")

	// ErrResponseTicketMismatch is returned when feedback references an AI
	// response that belongs to a different ticket.
	ErrResponseTicketMismatch = errors.New("ai response does not belong to ticket")

	ErrEmptySubject     = errors.New("subject must not be empty")
	ErrEmptyDescription = errors.New("description must not be empty")
	ErrEmptyMessage     = errors.New("message content must not be empty")
	ErrEmptyTitle       = errors.New("title must not be empty")
	ErrEmptyContent     = errors.New("content must not be empty")

	ErrInvalidPriority   = errors.New("priority must be between 1 and 5")
	ErrInvalidStatus     = errors.New("invalid ticket status")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
	ErrInvalidAuthorType = errors.New("invalid message author type")
)
