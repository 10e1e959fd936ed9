package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/cognicore/obsetl/pkg/obsetl/record"
)

// DefaultReferenceYear replaces the year of dates written without one.
// It is a policy choice, not calendar truth.
const DefaultReferenceYear = 2025

// DefaultSentinelPhrases are date-column values that mean "no usable date".
var DefaultSentinelPhrases = []string{
	"last weekend",
	"last week",
	"yesterday",
	"today",
	"n/a",
	"unknown",
	"tbd",
}

var (
	ordinalPattern   = regexp.MustCompile(`(?i)(\d+)(st|nd|rd|th)\b`)
	clockTimePattern = regexp.MustCompile(`\s+\d{1,2}:\d{2}.*$`)
)

// dateRule is one explicit notation in the parse cascade.
type dateRule struct {
	name     string
	layouts  []string
	yearless bool
}

// Order matters: day-first slash dates are tried before month-first ones.
var explicitRules = []dateRule{
	{name: "iso", layouts: []string{"2006-1-2"}},
	{name: "dmy_slash", layouts: []string{"2/1/2006"}},
	{name: "mdy_slash", layouts: []string{"1/2/2006"}},
	{name: "ymd_slash", layouts: []string{"2006/1/2"}},
	{name: "ymd_dot", layouts: []string{"2006.1.2"}},
	{name: "dmy_dot", layouts: []string{"2.1.2006"}},
	{name: "dmy_dash", layouts: []string{"2-1-2006"}},
	{name: "mdy_dash", layouts: []string{"1-2-2006"}},
	{name: "d_mon_y", layouts: []string{"2 Jan 2006", "2 January 2006"}},
	{name: "mon_d_y", layouts: []string{"Jan 2 2006", "January 2 2006"}},
	{name: "mon_d_comma_y", layouts: []string{"Jan 2, 2006", "January 2, 2006"}},
	{name: "d_mon", layouts: []string{"2 Jan", "2 January"}, yearless: true},
	{name: "mon_d", layouts: []string{"Jan 2", "January 2"}, yearless: true},
}

// RuleLenient names the free-form fallback in ParseWithRule results.
const RuleLenient = "lenient"

// DateParser resolves loosely formatted session dates.
type DateParser struct {
	referenceYear int
	sentinels     map[string]struct{}
}

// NewDateParser creates a parser. A non-positive referenceYear selects
// DefaultReferenceYear; a nil phrase list selects DefaultSentinelPhrases.
func NewDateParser(referenceYear int, sentinelPhrases []string) *DateParser {
	if referenceYear <= 0 {
		referenceYear = DefaultReferenceYear
	}
	if sentinelPhrases == nil {
		sentinelPhrases = DefaultSentinelPhrases
	}
	sentinels := make(map[string]struct{}, len(sentinelPhrases))
	for _, p := range sentinelPhrases {
		sentinels[strings.ToLower(strings.TrimSpace(p))] = struct{}{}
	}
	return &DateParser{referenceYear: referenceYear, sentinels: sentinels}
}

// ReferenceYear returns the year substituted for year-less dates.
func (p *DateParser) ReferenceYear() int {
	return p.referenceYear
}

// Parse returns the calendar date in raw, or the zero Date when there is none.
func (p *DateParser) Parse(raw string) record.Date {
	d, _ := p.ParseWithRule(raw)
	return d
}

// ParseWithRule is Parse that also reports which rule matched ("" when absent).
func (p *DateParser) ParseWithRule(raw string) (record.Date, string) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return record.Date{}, ""
	}
	if _, ok := p.sentinels[strings.ToLower(s)]; ok {
		return record.Date{}, ""
	}

	s = ordinalPattern.ReplaceAllString(s, "$1")
	s = strings.TrimSpace(clockTimePattern.ReplaceAllString(s, ""))

	for _, rule := range explicitRules {
		if d, ok := p.tryRule(rule, s); ok {
			return d, rule.name
		}
	}

	t, err := dateparse.ParseIn(s, time.UTC, dateparse.PreferMonthFirst(false))
	if err != nil {
		return record.Date{}, ""
	}
	if t.Year() <= 1 {
		d, ok := p.withReferenceYear(t.Month(), t.Day())
		if !ok {
			return record.Date{}, ""
		}
		return d, RuleLenient
	}
	return record.DateOf(t), RuleLenient
}

func (p *DateParser) tryRule(rule dateRule, s string) (record.Date, bool) {
	for _, layout := range rule.layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if rule.yearless {
			return p.withReferenceYear(t.Month(), t.Day())
		}
		return record.DateOf(t), true
	}
	return record.Date{}, false
}

// withReferenceYear fails when month/day does not exist in the reference year.
func (p *DateParser) withReferenceYear(month time.Month, day int) (record.Date, bool) {
	t := time.Date(p.referenceYear, month, day, 0, 0, 0, 0, time.UTC)
	if t.Month() != month || t.Day() != day {
		return record.Date{}, false
	}
	return record.DateOf(t), true
}
