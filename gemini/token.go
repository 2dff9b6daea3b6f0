package gemini

import (
	"context"
	"fmt"

	"github.com/fwojciec/harvest"
	"google.golang.org/genai"
	"google.golang.org/genai/tokenizer"
)

// TokenizerModel selects the local vocabulary when none is given. Gemini 2.x
// models share it, so estimates hold for DefaultModel too.
const TokenizerModel = "gemini-2.0-flash"

var _ harvest.TokenCounter = (*TokenCounter)(nil)

// TokenCounter estimates prompt sizes offline with the Gemini tokenizer.
type TokenCounter struct {
	tok *tokenizer.LocalTokenizer
}

// NewTokenCounter loads the tokenizer for model, or TokenizerModel when
// model is empty.
func NewTokenCounter(model string) (*TokenCounter, error) {
	if model == "" {
		model = TokenizerModel
	}
	tok, err := tokenizer.NewLocalTokenizer(model)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer for %s: %w", model, err)
	}
	return &TokenCounter{tok: tok}, nil
}

// CountTokens returns the number of tokens text occupies as a user turn.
func (tc *TokenCounter) CountTokens(ctx context.Context, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	result, err := tc.tok.CountTokens([]*genai.Content{genai.NewContentFromText(text, "user")}, nil)
	if err != nil {
		return 0, err
	}
	return int(result.TotalTokens), nil
}
