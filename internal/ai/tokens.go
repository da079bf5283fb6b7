package ai

import (
	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer truncates text against the vocabulary of the completion model,
// so prompt budgets measure the same tokens the provider bills and limits.
// Truncating by characters instead would silently overrun model limits.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTokenizer resolves the encoding for the given model name, falling back
// to cl100k_base when the model is unknown to the tiktoken tables.
func NewTokenizer(model string) (*Tokenizer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	return &Tokenizer{enc: enc}, nil
}

// Truncate returns text cut to at most maxTokens tokens. Text already within
// budget is returned unchanged, byte for byte.
func (t *Tokenizer) Truncate(text string, maxTokens int) string {
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return t.enc.Decode(tokens[:maxTokens])
}

// Count returns the number of tokens in text.
func (t *Tokenizer) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}
