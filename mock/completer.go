package mock

import (
	"context"

	"github.com/fwojciec/harvest"
)

var (
	_ harvest.Completer    = (*Completer)(nil)
	_ harvest.TokenCounter = (*TokenCounter)(nil)
)

// Completer is a mock implementation of harvest.Completer.
type Completer struct {
	CompleteFn func(ctx context.Context, req harvest.CompletionRequest) (string, error)
}

func (c *Completer) Complete(ctx context.Context, req harvest.CompletionRequest) (string, error) {
	return c.CompleteFn(ctx, req)
}

// TokenCounter is a mock implementation of harvest.TokenCounter.
type TokenCounter struct {
	CountTokensFn func(ctx context.Context, text string) (int, error)
}

func (c *TokenCounter) CountTokens(ctx context.Context, text string) (int, error) {
	return c.CountTokensFn(ctx, text)
}
