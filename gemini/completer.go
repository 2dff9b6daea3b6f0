// Package gemini implements language model services using Google Gemini.
package gemini

import (
	"context"

	"github.com/fwojciec/harvest"
	"google.golang.org/genai"
)

// DefaultModel is used when a request does not name a model.
const DefaultModel = "gemini-2.5-flash"

// Ensure Completer implements harvest.Completer at compile time.
var _ harvest.Completer = (*Completer)(nil)

// Completer implements harvest.Completer using Google Gemini.
type Completer struct {
	client *genai.Client
	model  string
}

// NewCompleter creates a new Completer. An empty model selects DefaultModel.
func NewCompleter(client *genai.Client, model string) *Completer {
	if model == "" {
		model = DefaultModel
	}
	return &Completer{client: client, model: model}
}

// Complete sends a single prompt and returns the model's text answer.
func (c *Completer) Complete(ctx context.Context, req harvest.CompletionRequest) (string, error) {
	if req.Prompt == "" {
		return "", harvest.Errorf(harvest.EINVALID, "prompt required")
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	result, err := c.client.Models.GenerateContent(ctx, model,
		[]*genai.Content{{
			Parts: []*genai.Part{{Text: req.Prompt}},
		}},
		BuildConfig(req),
	)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", harvest.Errorf(harvest.EINTERNAL, "gemini returned nil result")
	}

	return result.Text(), nil
}

// BuildConfig returns the GenerateContentConfig for a completion request.
func BuildConfig(req harvest.CompletionRequest) *genai.GenerateContentConfig {
	temp := float32(0.2)
	config := &genai.GenerateContentConfig{
		Temperature: &temp,
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}
	return config
}
