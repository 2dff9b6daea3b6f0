// Package enrich adds model-generated fields to scrape records in batches.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/fwojciec/harvest"
	"golang.org/x/sync/errgroup"
)

// Defaults used when the corresponding Enricher fields are unset.
const (
	DefaultBatchSize   = 10
	DefaultConcurrency = 1
)

// SystemPrompt instructs the model to answer with JSON only.
const SystemPrompt = "You are a data enrichment assistant. Always respond with valid JSON only, without commentary or code fences."

var _ harvest.EnrichService = (*Enricher)(nil)

// Enricher enriches records with a language model. Input records are never
// modified; results are returned one-to-one and in input order.
type Enricher struct {
	Completer harvest.Completer

	// TokenCounter estimates prompt tokens when set.
	TokenCounter harvest.TokenCounter

	// BatchSize is used when a request does not set one.
	BatchSize int

	// Concurrency bounds the number of batches sent at once.
	Concurrency int
}

// item is one record as presented to the model.
type item struct {
	ID     int            `json:"id"`
	URL    string         `json:"url"`
	Fields harvest.Fields `json:"fields"`
}

// Enrich sends records to the model in batches. Only request validation
// errors are returned; model failures are recorded on the results.
func (e *Enricher) Enrich(ctx context.Context, req *harvest.EnrichRequest) (*harvest.EnrichResponse, error) {
	if req == nil {
		return nil, harvest.Errorf(harvest.EINVALID, "enrich request required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	results := make([]*harvest.EnrichmentResult, len(req.Records))
	var eligible []int
	for i, rec := range req.Records {
		if rec.Status == harvest.StatusFailed {
			results[i] = &harvest.EnrichmentResult{
				Index:  i,
				URL:    rec.URL,
				Status: harvest.EnrichmentSkipped,
				Reason: "record has no extracted data",
			}
			continue
		}
		eligible = append(eligible, i)
	}

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = e.BatchSize
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	concurrency := e.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	var tokens atomic.Int64
	var g errgroup.Group
	g.SetLimit(concurrency)
	for b, batch := range chunk(eligible, batchSize) {
		g.Go(func() error {
			e.enrichBatch(ctx, req, b, batch, results, &tokens)
			return nil
		})
	}
	_ = g.Wait()

	return &harvest.EnrichResponse{
		Results:      results,
		PromptTokens: int(tokens.Load()),
	}, nil
}

// enrichBatch fills results for the record indices in batch. Each index is
// owned by exactly one batch, so results can be written without locking.
func (e *Enricher) enrichBatch(ctx context.Context, req *harvest.EnrichRequest, b int, batch []int, results []*harvest.EnrichmentResult, tokens *atomic.Int64) {
	fail := func(err error) {
		reason := (&harvest.EnrichmentBatchError{Batch: b, Err: err}).Error()
		for _, i := range batch {
			results[i] = &harvest.EnrichmentResult{
				Index:  i,
				URL:    req.Records[i].URL,
				Status: harvest.EnrichmentFailed,
				Reason: reason,
			}
		}
	}

	if err := ctx.Err(); err != nil {
		fail(err)
		return
	}

	prompt, err := BuildPrompt(req.Instruction, req.Records, batch)
	if err != nil {
		fail(err)
		return
	}

	if e.TokenCounter != nil {
		if n, err := e.TokenCounter.CountTokens(ctx, SystemPrompt+"\n"+prompt); err == nil {
			tokens.Add(int64(n))
		}
	}

	out, err := e.Completer.Complete(ctx, harvest.CompletionRequest{
		Model:  req.ModelHint,
		System: SystemPrompt,
		Prompt: prompt,
		JSON:   true,
	})
	if err != nil {
		fail(err)
		return
	}

	entries, err := ParseResponse(out, batch)
	if err != nil {
		fail(err)
		return
	}

	for _, i := range batch {
		fields, ok := entries[i]
		if !ok {
			results[i] = &harvest.EnrichmentResult{
				Index:  i,
				URL:    req.Records[i].URL,
				Status: harvest.EnrichmentFailed,
				Reason: "missing or malformed entry in model response",
			}
			continue
		}
		results[i] = &harvest.EnrichmentResult{
			Index:  i,
			URL:    req.Records[i].URL,
			Status: harvest.EnrichmentEnriched,
			Fields: fields,
		}
	}
}

// BuildPrompt renders the instruction and the records at indices as one
// prompt. Records are identified by their index in the request.
func BuildPrompt(instruction string, records []*harvest.ScrapeRecord, indices []int) (string, error) {
	items := make([]item, len(indices))
	for j, i := range indices {
		fields := records[i].Fields
		if fields == nil {
			fields = harvest.Fields{}
		}
		items[j] = item{ID: i, URL: records[i].URL, Fields: fields}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding records: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(instruction))
	sb.WriteString("\n\nRecords:\n")
	sb.Write(data)
	sb.WriteString("\n\nRespond with a JSON object of the form ")
	sb.WriteString(`{"results":[{"id":<record id>,"fields":{"<name>":<value>}}]}`)
	sb.WriteString(" with exactly one entry per record, using the record ids above. ")
	sb.WriteString(`Put only the new fields in "fields".`)
	return sb.String(), nil
}

// entry is one element of the model's results array.
type entry struct {
	ID     json.RawMessage `json:"id"`
	Fields json.RawMessage `json:"fields"`
}

// ParseResponse extracts per-record fields from a model answer. It accepts
// the answer wrapped in prose or code fences, a bare results array, and
// entries without ids, which are then matched by position within batch.
// Entries that cannot be decoded are left out of the returned map.
func ParseResponse(text string, batch []int) (map[int]harvest.Fields, error) {
	raw, err := locateJSON(text)
	if err != nil {
		return nil, err
	}

	var elems []json.RawMessage
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, fmt.Errorf("decoding results: %w", err)
		}
	default:
		var obj struct {
			Results []json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("decoding results: %w", err)
		}
		if obj.Results == nil {
			return nil, errors.New(`model response has no "results"`)
		}
		elems = obj.Results
	}

	inBatch := make(map[int]bool, len(batch))
	for _, i := range batch {
		inBatch[i] = true
	}

	out := make(map[int]harvest.Fields, len(elems))
	for pos, elem := range elems {
		var e entry
		if err := json.Unmarshal(elem, &e); err != nil {
			continue
		}

		id := -1
		if len(e.ID) > 0 {
			n, ok := parseID(e.ID)
			if !ok {
				continue
			}
			id = n
		} else if pos < len(batch) {
			id = batch[pos]
		}
		if !inBatch[id] {
			continue
		}

		var fields harvest.Fields
		if len(e.Fields) > 0 {
			if err := json.Unmarshal(e.Fields, &fields); err != nil || fields == nil {
				continue
			}
		} else {
			if err := json.Unmarshal(elem, &fields); err != nil {
				continue
			}
			fields = withoutID(fields)
		}
		out[id] = fields
	}
	return out, nil
}

// locateJSON returns the first decodable JSON object or array in text.
func locateJSON(text string) ([]byte, error) {
	for offset := 0; offset < len(text); {
		start := strings.IndexAny(text[offset:], "{[")
		if start < 0 {
			break
		}
		start += offset
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[start:])).Decode(&raw); err == nil {
			return bytes.TrimSpace(raw), nil
		}
		offset = start + 1
	}
	return nil, errors.New("model response contains no JSON")
}

func parseID(raw json.RawMessage) (int, bool) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		return n, err == nil
	}
	return 0, false
}

func withoutID(fields harvest.Fields) harvest.Fields {
	out := harvest.Fields{}
	for _, f := range fields {
		if f.Name != "id" {
			out = append(out, f)
		}
	}
	return out
}

func chunk(indices []int, size int) [][]int {
	var batches [][]int
	for start := 0; start < len(indices); start += size {
		end := min(start+size, len(indices))
		batches = append(batches, indices[start:end])
	}
	return batches
}
