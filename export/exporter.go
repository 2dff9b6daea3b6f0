// Package export renders scrape records and their enrichments as
// downloadable artifacts.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fwojciec/harvest"
)

// DefaultName is the artifact base name used when a request has none.
const DefaultName = "harvest-export"

// Version is written into the metadata of structured artifacts.
const Version = "1.0"

// SequenceSeparator joins sequence values in tabular cells.
const SequenceSeparator = " | "

// Content types of the supported formats.
const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeJSON = "application/json"
)

// baseColumns lead every tabular artifact.
var baseColumns = []string{"url", "status", "error", "scraped_at"}

var _ harvest.ExportService = (*Exporter)(nil)

// Exporter renders artifacts. Output depends only on the request, so
// exporting the same request twice yields identical bytes.
type Exporter struct{}

// NewExporter creates a new Exporter.
func NewExporter() *Exporter {
	return &Exporter{}
}

// Export renders req in its format. Input records and enrichments are only
// read.
func (e *Exporter) Export(req *harvest.ExportRequest) (*harvest.Artifact, error) {
	if req == nil {
		return nil, harvest.Errorf(harvest.EINVALID, "export request required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	switch req.Format {
	case harvest.FormatTabular:
		data, err := Tabular(req.Records, req.Enrichments)
		if err != nil {
			return nil, err
		}
		return &harvest.Artifact{
			Filename:    Filename(req.Name, "csv"),
			ContentType: ContentTypeCSV,
			Data:        data,
		}, nil
	default:
		data, err := Structured(req.Records, req.Enrichments)
		if err != nil {
			return nil, err
		}
		return &harvest.Artifact{
			Filename:    Filename(req.Name, "json"),
			ContentType: ContentTypeJSON,
			Data:        data,
		}, nil
	}
}

// Filename returns name with ext as its extension. A trailing .csv or .json
// on name is replaced, and path separators are flattened.
func Filename(name, ext string) string {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer("/", "-", `\`, "-").Replace(name)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".json":
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	if name == "" || name == "." || name == ".." {
		name = DefaultName
	}
	return name + "." + ext
}

// Tabular renders one CSV row per record. Columns are the base columns,
// extraction fields in first-seen order and, when enrichments are given,
// ai_status, ai_reason and ai_<key> for each enrichment field in first-seen
// order. Extraction fields named like a base column are suffixed with
// "_field", and enrichment columns that collide with an existing column
// with "_ai", until unique.
func Tabular(records []*harvest.ScrapeRecord, enrichments []*harvest.EnrichmentResult) ([]byte, error) {
	header := append([]string(nil), baseColumns...)
	used := make(map[string]bool)
	for _, c := range baseColumns {
		used[c] = true
	}

	// unique returns name, suffixed until it does not collide.
	unique := func(name, suffix string) string {
		for used[name] {
			name += suffix
		}
		used[name] = true
		return name
	}

	var fieldNames []string
	seenField := make(map[string]bool)
	for _, rec := range records {
		for _, f := range rec.Fields {
			if seenField[f.Name] {
				continue
			}
			seenField[f.Name] = true
			fieldNames = append(fieldNames, f.Name)
		}
	}
	fieldCols := make([]string, len(fieldNames))
	taken := make([]bool, len(fieldNames))
	for i, name := range fieldNames {
		if !used[name] {
			used[name] = true
			fieldCols[i], taken[i] = name, true
		}
	}
	// Fields named like a base column keep their data under a suffixed name.
	for i, name := range fieldNames {
		if !taken[i] {
			fieldCols[i] = unique(name, "_field")
		}
	}
	header = append(header, fieldCols...)

	var statusCol, reasonCol string
	var aiKeys, aiCols []string
	if enrichments != nil {
		statusCol = unique("ai_status", "_ai")
		reasonCol = unique("ai_reason", "_ai")
		header = append(header, statusCol, reasonCol)

		seen := make(map[string]bool)
		for _, res := range enrichments {
			if res == nil {
				continue
			}
			for _, f := range res.Fields {
				if seen[f.Name] {
					continue
				}
				seen[f.Name] = true
				aiKeys = append(aiKeys, f.Name)
				aiCols = append(aiCols, unique("ai_"+f.Name, "_ai"))
			}
		}
		header = append(header, aiCols...)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}

	for i, rec := range records {
		row := make([]string, 0, len(header))
		row = append(row, rec.URL, string(rec.Status), recordError(rec), scrapedAt(rec))
		for _, name := range fieldNames {
			v, _ := rec.Fields.Get(name)
			cell, err := Cell(v)
			if err != nil {
				return nil, fmt.Errorf("record %d: field %q: %w", i, name, err)
			}
			row = append(row, cell)
		}
		if enrichments != nil {
			res := enrichments[i]
			if res == nil {
				row = append(row, "", "")
			} else {
				row = append(row, string(res.Status), res.Reason)
			}
			for _, key := range aiKeys {
				var v any
				if res != nil {
					v, _ = res.Fields.Get(key)
				}
				cell, err := Cell(v)
				if err != nil {
					return nil, fmt.Errorf("record %d: enrichment %q: %w", i, key, err)
				}
				row = append(row, cell)
			}
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("writing csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Cell formats a field value for a tabular cell. Nulls are empty, sequences
// are joined with SequenceSeparator and other non-string values are encoded
// as JSON.
func Cell(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []string:
		return strings.Join(v, SequenceSeparator), nil
	case json.Number:
		return v.String(), nil
	default:
		data, err := marshal(v, "")
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

func recordError(rec *harvest.ScrapeRecord) string {
	if rec.Error == nil {
		return ""
	}
	return rec.Error.Error()
}

func scrapedAt(rec *harvest.ScrapeRecord) string {
	if rec.ScrapedAt.IsZero() {
		return ""
	}
	return rec.ScrapedAt.UTC().Format(time.RFC3339)
}

// document is the structured artifact.
type document struct {
	Metadata metadata           `json:"metadata"`
	Records  []structuredRecord `json:"records"`
}

type metadata struct {
	Format       harvest.Format `json:"format"`
	TotalRecords int            `json:"total_records"`
	Version      string         `json:"version"`
}

// structuredRecord is a record with its enrichment nested under its own key
// so enrichment fields never shadow extracted ones.
type structuredRecord struct {
	*harvest.ScrapeRecord
	Enrichment *harvest.EnrichmentResult `json:"enrichment,omitempty"`
}

// Structured renders records as an indented JSON document. Field values,
// including sequences, are kept exactly as extracted.
func Structured(records []*harvest.ScrapeRecord, enrichments []*harvest.EnrichmentResult) ([]byte, error) {
	doc := document{
		Metadata: metadata{
			Format:       harvest.FormatStructured,
			TotalRecords: len(records),
			Version:      Version,
		},
		Records: make([]structuredRecord, len(records)),
	}
	for i, rec := range records {
		doc.Records[i] = structuredRecord{ScrapeRecord: rec}
		if enrichments != nil {
			doc.Records[i].Enrichment = enrichments[i]
		}
	}

	data, err := marshal(doc, "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding records: %w", err)
	}
	return data, nil
}

// marshal encodes v without HTML escaping. Indented output ends with a
// newline; compact output does not.
func marshal(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if indent == "" {
		return bytes.TrimRight(buf.Bytes(), "\n"), nil
	}
	return buf.Bytes(), nil
}
