package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/harvest"
)

// Ensure LoggingCompleter implements harvest.Completer.
var _ harvest.Completer = (*LoggingCompleter)(nil)

// LoggingCompleter wraps a Completer with logging.
type LoggingCompleter struct {
	next   harvest.Completer
	logger *slog.Logger
}

// NewLoggingCompleter creates a new LoggingCompleter.
func NewLoggingCompleter(next harvest.Completer, logger *slog.Logger) *LoggingCompleter {
	return &LoggingCompleter{next: next, logger: logger}
}

// Complete delegates to the wrapped completer and logs the call.
func (c *LoggingCompleter) Complete(ctx context.Context, req harvest.CompletionRequest) (out string, err error) {
	defer func(begin time.Time) {
		c.logger.Info("completion",
			"model", req.Model,
			"prompt_bytes", len(req.System)+len(req.Prompt),
			"response_bytes", len(out),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return c.next.Complete(ctx, req)
}
