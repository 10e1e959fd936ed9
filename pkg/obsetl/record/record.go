// Package record defines the values that flow through the observation pipeline.
//
// Each stage derives a new value from the previous one; nothing here is
// mutated after construction.
package record

import (
	"fmt"
	"time"
)

// UnknownID is the canonical identifier for rows without a usable identifier.
const UnknownID = "UNKNOWN"

// Score bounds and the neutral value used when enrichment falls back.
const (
	MinScore     = 1
	MaxScore     = 5
	DefaultScore = 3
)

// Raw is one row of the input table.
type Raw struct {
	Index       int
	Identifier  string
	SessionDate string
	Observation string
	// Metadata holds every other input column verbatim, keyed by header name.
	Metadata map[string]string
}

// Date is a calendar date without a time of day. The zero value means absent.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string. An empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// IsZero reports whether the date is absent.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// String renders the date as YYYY-MM-DD, or "" when absent.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// Normalized is the deterministic, per-row normalization of a Raw record.
type Normalized struct {
	Identifier  string
	SessionDate Date
	Text        string
}

// FallbackReason says why an enrichment carries default scores.
type FallbackReason string

const (
	FallbackNone      FallbackReason = ""
	FallbackEmptyText FallbackReason = "empty_text"
	FallbackNoPayload FallbackReason = "no_payload"
	FallbackParse     FallbackReason = "parse_error"
	FallbackCall      FallbackReason = "call_error"
)

// Enrichment holds the derived scores and summary for one observation.
type Enrichment struct {
	EmotionalRegulation int
	SocialIntegration   int
	Summary             string
	Fallback            FallbackReason
}

// IsFallback reports whether the enrichment is a default rather than an analysis result.
func (e Enrichment) IsFallback() bool {
	return e.Fallback != FallbackNone
}

// ClampScore restricts v to [MinScore, MaxScore].
func ClampScore(v int) int {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}

// Enriched is the terminal artifact of the pipeline: one per Raw, in input order.
type Enriched struct {
	Raw        Raw
	Normalized Normalized
	Enrichment Enrichment
}

// RunStatistics counts degraded outcomes over a run.
type RunStatistics struct {
	Rows                int
	UnknownIDs          int
	UnparseableDates    int
	FallbackEnrichments int
	FallbacksByReason   map[FallbackReason]int
}

// Tally computes the statistics for a finished record set. Every record
// contributes exactly one outcome per counter.
func Tally(records []Enriched) RunStatistics {
	stats := RunStatistics{
		Rows:              len(records),
		FallbacksByReason: make(map[FallbackReason]int),
	}
	for _, rec := range records {
		if rec.Normalized.Identifier == UnknownID {
			stats.UnknownIDs++
		}
		if rec.Normalized.SessionDate.IsZero() {
			stats.UnparseableDates++
		}
		if rec.Enrichment.IsFallback() {
			stats.FallbackEnrichments++
			stats.FallbacksByReason[rec.Enrichment.Fallback]++
		}
	}
	return stats
}
