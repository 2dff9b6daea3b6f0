package harvest

import "time"

// RunStatistics summarizes a scrape run. It is derived from the records and
// can always be recomputed with ComputeStatistics.
type RunStatistics struct {
	Attempted int   `json:"attempted"`
	Succeeded int   `json:"succeeded"`
	Partial   int   `json:"partial"`
	Failed    int   `json:"failed"`
	Canceled  int   `json:"canceled,omitempty"`
	ElapsedMS int64 `json:"elapsed_ms"`

	// FieldMatchRates is, per field, the fraction of attempted records
	// declaring the field where it was non-null. Records scraped with an
	// override rule set only count towards the fields they declare.
	FieldMatchRates map[string]float64 `json:"field_match_rates"`
}

// Elapsed returns the run duration.
func (s RunStatistics) Elapsed() time.Duration {
	return time.Duration(s.ElapsedMS) * time.Millisecond
}

// ComputeStatistics reduces a record sequence to run statistics. Records for
// targets that were never attempted (canceled before submission) only count
// towards Canceled.
func ComputeStatistics(records []*ScrapeRecord, elapsed time.Duration) RunStatistics {
	stats := RunStatistics{
		ElapsedMS:       elapsed.Milliseconds(),
		FieldMatchRates: make(map[string]float64),
	}

	matched := make(map[string]int)
	declared := make(map[string]int)
	for _, r := range records {
		if r == nil {
			continue
		}
		if !r.Attempted() {
			stats.Canceled++
			continue
		}
		stats.Attempted++
		switch r.Status {
		case StatusOK:
			stats.Succeeded++
		case StatusPartial:
			stats.Partial++
		default:
			stats.Failed++
		}
		for _, f := range r.Fields {
			declared[f.Name]++
			if !IsNull(f.Value) {
				matched[f.Name]++
			}
		}
	}

	for name, n := range declared {
		stats.FieldMatchRates[name] = float64(matched[name]) / float64(n)
	}
	return stats
}
