// Package scrape orchestrates batch scraping: rule resolution, bounded
// concurrent fetching, extraction, statistics and run persistence.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/fwojciec/harvest"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of targets fetched at once when
// Scraper.Concurrency is unset.
const DefaultConcurrency = 10

var _ harvest.ScrapeService = (*Scraper)(nil)

// Scraper runs scrape requests.
type Scraper struct {
	Fetcher   harvest.Fetcher
	Extractor harvest.Extractor

	// Templates resolves template_name requests. Required only for them.
	Templates harvest.TemplateService

	// Runs persists each completed run when set.
	Runs harvest.RunService

	// RateLimiter spaces requests per host when set.
	RateLimiter harvest.DomainLimiter

	// Concurrency bounds in-flight fetches. Defaults to DefaultConcurrency.
	Concurrency int

	// RetryDelays enables retrying transient fetch failures with the given
	// backoff. Nil means no retries.
	RetryDelays []time.Duration

	// ExtractErrorPages runs extraction on bodies of non-2xx responses.
	ExtractErrorPages bool

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Scrape returns one record per target, in request order.
//
// Request-level problems are returned before any fetch: EINVALID for a
// malformed request, ENOTFOUND for an unknown template and ERULE for invalid
// rules. Per-target failures are recorded on the records.
//
// When ctx is canceled no further targets are started. Fetches already in
// flight run to completion within their own timeout, remaining targets get
// failed records of kind canceled, and the response is returned together
// with an error wrapping ctx.Err().
func (s *Scraper) Scrape(ctx context.Context, req *harvest.ScrapeRequest, progress harvest.ProgressFunc) (*harvest.ScrapeResponse, error) {
	if req == nil {
		return nil, harvest.Errorf(harvest.EINVALID, "scrape request required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	templateName := strings.TrimSpace(req.TemplateName)
	rules, err := s.resolveRules(ctx, req.Selectors, templateName)
	if err != nil {
		return nil, err
	}
	if err := s.validateRules(rules, req.Targets); err != nil {
		return nil, err
	}

	start := s.now()
	total := len(req.Targets)
	records := make([]*harvest.ScrapeRecord, total)

	if progress != nil {
		progress(harvest.ProgressEvent{Type: harvest.ProgressStarted, Total: total})
	}

	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	// Fetches are detached from caller cancellation so that targets already
	// started produce real outcomes. Each fetch is still bounded by its timeout.
	fetchCtx := context.WithoutCancel(ctx)

	done := make(chan int, total)
	var g errgroup.Group
	g.SetLimit(concurrency)

	go func() {
		for i, target := range req.Targets {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				records[i] = s.scrapeTarget(ctx, fetchCtx, target, rules)
				done <- i
				return nil
			})
		}
		_ = g.Wait()
		close(done)
	}()

	completed := 0
	for i := range done {
		completed++
		if progress == nil {
			continue
		}
		rec := records[i]
		event := harvest.ProgressEvent{
			Type:      harvest.ProgressCompleted,
			Index:     i,
			URL:       rec.URL,
			Status:    rec.Status,
			Completed: completed,
			Total:     total,
		}
		if rec.Status == harvest.StatusFailed {
			event.Type = harvest.ProgressFailed
			if rec.Error != nil {
				event.Error = rec.Error
			}
		}
		progress(event)
	}

	for i, rec := range records {
		if rec == nil {
			records[i] = s.canceledRecord(req.Targets[i], rules)
		}
	}

	stats := harvest.ComputeStatistics(records, s.now().Sub(start))
	resp := &harvest.ScrapeResponse{
		Records:    records,
		Statistics: stats,
		Canceled:   stats.Canceled > 0,
	}

	if progress != nil {
		progress(harvest.ProgressEvent{Type: harvest.ProgressFinished, Completed: completed, Total: total})
	}

	if s.Runs != nil {
		run := &harvest.Run{
			TemplateName: templateName,
			Records:      records,
			Statistics:   stats,
		}
		if err := s.Runs.CreateRun(context.WithoutCancel(ctx), run); err != nil {
			return resp, fmt.Errorf("saving run: %w", err)
		}
		resp.RunID = run.ID
	}

	if resp.Canceled {
		if err := ctx.Err(); err != nil {
			return resp, fmt.Errorf("scrape canceled: %w", err)
		}
		return resp, fmt.Errorf("scrape canceled: %w", context.Canceled)
	}
	return resp, nil
}

func (s *Scraper) resolveRules(ctx context.Context, selectors harvest.RuleSet, templateName string) (harvest.RuleSet, error) {
	if len(selectors) > 0 {
		return selectors, nil
	}
	if s.Templates == nil {
		return nil, harvest.Errorf(harvest.EINVALID, "templates are not available")
	}
	tmpl, err := s.Templates.FindTemplateByName(ctx, templateName)
	if err != nil {
		return nil, err
	}
	return tmpl.Rules, nil
}

func (s *Scraper) validateRules(rules harvest.RuleSet, targets []harvest.Target) error {
	if err := s.Extractor.Validate(rules); err != nil {
		return err
	}
	for i, t := range targets {
		if t.Overrides == nil || len(t.Overrides.Rules) == 0 {
			continue
		}
		if err := s.Extractor.Validate(t.Overrides.Rules); err != nil {
			return harvest.Errorf(harvest.ERULE, "target %d: %s", i, harvest.ErrorMessage(err))
		}
	}
	return nil
}

// scrapeTarget runs a single target through rate limiting, fetching and
// extraction. ctx is the caller context; fetchCtx is used for the fetch.
func (s *Scraper) scrapeTarget(ctx, fetchCtx context.Context, target harvest.Target, base harvest.RuleSet) *harvest.ScrapeRecord {
	rules := base
	fetchReq := harvest.FetchRequest{URL: target.URL}
	if o := target.Overrides; o != nil {
		if len(o.Rules) > 0 {
			rules = o.Rules
		}
		fetchReq.Headers = o.Headers
		fetchReq.Timeout = o.Timeout()
	}

	if ctx.Err() != nil {
		return s.canceledRecord(target, rules)
	}
	if s.RateLimiter != nil {
		if host := hostOf(target.URL); host != "" {
			if err := s.RateLimiter.Wait(ctx, host); err != nil {
				return s.canceledRecord(target, rules)
			}
		}
	}

	resp, err := FetchWithRetryDelays(ctx, func() (*harvest.FetchResponse, error) {
		return s.Fetcher.Fetch(fetchCtx, fetchReq)
	}, s.RetryDelays, nil)

	rec := &harvest.ScrapeRecord{
		URL:       target.URL,
		Fields:    harvest.NullFields(rules),
		ScrapedAt: s.now().UTC(),
	}
	if resp != nil {
		rec.StatusCode = resp.StatusCode
		if len(resp.Body) > 0 {
			rec.ContentHash = ComputeHash(resp.Body)
		}
	}

	if err == nil && resp == nil {
		err = &harvest.FetchError{Kind: harvest.KindUnreachable, URL: target.URL, Err: errors.New("empty response")}
	}

	var httpErr *harvest.RecordError
	if err != nil {
		fetchErr := asFetchError(target.URL, err)
		if fetchErr.Kind != harvest.KindHTTPStatus || resp == nil || !s.ExtractErrorPages {
			rec.Status = harvest.StatusFailed
			rec.Error = fetchErr.RecordError()
			return rec
		}
		httpErr = fetchErr.RecordError()
	}

	if isBinary(resp.ContentType) {
		rec.Status = harvest.StatusFailed
		rec.Error = &harvest.RecordError{
			Kind:       harvest.KindUnparseable,
			StatusCode: rec.StatusCode,
			Message:    fmt.Sprintf("unsupported content type %q", resp.ContentType),
		}
		return rec
	}

	extraction, err := s.Extractor.Extract(string(resp.Body), resp.URL, rules)
	if err != nil {
		rec.Status = harvest.StatusFailed
		rec.Error = &harvest.RecordError{Kind: harvest.KindUnparseable, StatusCode: rec.StatusCode, Message: harvest.ErrorMessage(err)}
		return rec
	}

	rec.Fields = extraction.Fields
	if m := extraction.Metadata; m != nil {
		rec.Metadata = m
		rec.Title = m.Title
	}
	rec.Status = harvest.StatusForFields(rec.Fields)

	switch {
	case rec.Status == harvest.StatusOK:
	case httpErr != nil:
		rec.Error = httpErr
	case rec.Status == harvest.StatusFailed:
		rec.Error = &harvest.RecordError{Kind: harvest.KindNoMatch, Message: "no rule matched"}
	default:
		rec.Error = &harvest.RecordError{
			Kind:    harvest.KindMissingFields,
			Message: "no match for " + strings.Join(missingFields(rec.Fields), ", "),
		}
	}
	return rec
}

func (s *Scraper) canceledRecord(target harvest.Target, base harvest.RuleSet) *harvest.ScrapeRecord {
	rules := base
	if target.Overrides != nil && len(target.Overrides.Rules) > 0 {
		rules = target.Overrides.Rules
	}
	return &harvest.ScrapeRecord{
		URL:       target.URL,
		Status:    harvest.StatusFailed,
		Fields:    harvest.NullFields(rules),
		Error:     &harvest.RecordError{Kind: harvest.KindCanceled, Message: "not attempted"},
		ScrapedAt: s.now().UTC(),
	}
}

func (s *Scraper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// asFetchError normalizes fetcher errors. Fetchers are expected to return
// *harvest.FetchError; anything else is treated as unreachable.
func asFetchError(rawURL string, err error) *harvest.FetchError {
	var fetchErr *harvest.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &harvest.FetchError{Kind: harvest.KindTimeout, URL: rawURL, Err: err}
	}
	return &harvest.FetchError{Kind: harvest.KindUnreachable, URL: rawURL, Err: err}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// isBinary reports whether a content type can not hold an HTML document.
// An empty or unparseable content type is not binary.
func isBinary(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch {
	case strings.HasPrefix(mediaType, "text/"),
		strings.HasSuffix(mediaType, "+xml"),
		mediaType == "application/xml",
		mediaType == "application/xhtml+xml":
		return false
	case strings.HasPrefix(mediaType, "image/"),
		strings.HasPrefix(mediaType, "audio/"),
		strings.HasPrefix(mediaType, "video/"),
		strings.HasPrefix(mediaType, "font/"),
		mediaType == "application/pdf",
		mediaType == "application/zip",
		mediaType == "application/gzip",
		mediaType == "application/octet-stream":
		return true
	default:
		return false
	}
}

func missingFields(fields harvest.Fields) []string {
	var names []string
	for _, f := range fields {
		if harvest.IsNull(f.Value) {
			names = append(names, f.Name)
		}
	}
	return names
}
