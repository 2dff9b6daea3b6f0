package harvest

import "context"

// CompletionRequest is a single prompt sent to a language model.
type CompletionRequest struct {
	// Model overrides the completer's default model when set.
	Model string

	System string
	Prompt string

	// JSON asks the model to answer with a JSON document only.
	JSON bool
}

// Completer sends prompts to a language model.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// TokenCounter counts tokens in text for a specific model.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}
