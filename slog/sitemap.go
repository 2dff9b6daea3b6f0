// Package slog provides logging decorators for harvest services.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/harvest"
)

// Ensure LoggingTargetSource implements harvest.TargetSource.
var _ harvest.TargetSource = (*LoggingTargetSource)(nil)

// LoggingTargetSource wraps a TargetSource with logging.
type LoggingTargetSource struct {
	next   harvest.TargetSource
	logger *slog.Logger
}

// NewLoggingTargetSource creates a new LoggingTargetSource.
func NewLoggingTargetSource(next harvest.TargetSource, logger *slog.Logger) *LoggingTargetSource {
	return &LoggingTargetSource{next: next, logger: logger}
}

// DiscoverURLs delegates to the wrapped source and logs the operation.
func (s *LoggingTargetSource) DiscoverURLs(ctx context.Context, baseURL string, filter *harvest.URLFilter) (urls []string, err error) {
	defer func(begin time.Time) {
		s.logger.Info("sitemap discovery",
			"url", baseURL,
			"count", len(urls),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.DiscoverURLs(ctx, baseURL, filter)
}
