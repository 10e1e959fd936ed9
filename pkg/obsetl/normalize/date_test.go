package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cognicore/obsetl/pkg/obsetl/record"
)

func TestDateParserExplicitRules(t *testing.T) {
	p := NewDateParser(0, nil)

	tests := []struct {
		in    string
		want  record.Date
		rule  string
	}{
		{"2025-10-20", record.Date{Year: 2025, Month: time.October, Day: 20}, "iso"},
		{"2025-1-5", record.Date{Year: 2025, Month: time.January, Day: 5}, "iso"},
		{"20/10/2025", record.Date{Year: 2025, Month: time.October, Day: 20}, "dmy_slash"},
		{"03/04/2025", record.Date{Year: 2025, Month: time.April, Day: 3}, "dmy_slash"},
		{"10/20/2025", record.Date{Year: 2025, Month: time.October, Day: 20}, "mdy_slash"},
		{"2025/10/20", record.Date{Year: 2025, Month: time.October, Day: 20}, "ymd_slash"},
		{"2025.10.20", record.Date{Year: 2025, Month: time.October, Day: 20}, "ymd_dot"},
		{"20.10.2025", record.Date{Year: 2025, Month: time.October, Day: 20}, "dmy_dot"},
		{"20-10-2025", record.Date{Year: 2025, Month: time.October, Day: 20}, "dmy_dash"},
		{"10-20-2025", record.Date{Year: 2025, Month: time.October, Day: 20}, "mdy_dash"},
		{"20 Oct 2025", record.Date{Year: 2025, Month: time.October, Day: 20}, "d_mon_y"},
		{"20 october 2025", record.Date{Year: 2025, Month: time.October, Day: 20}, "d_mon_y"},
		{"Oct 20 2025", record.Date{Year: 2025, Month: time.October, Day: 20}, "mon_d_y"},
		{"Oct 20, 2025", record.Date{Year: 2025, Month: time.October, Day: 20}, "mon_d_comma_y"},
		{"October 20, 2025", record.Date{Year: 2025, Month: time.October, Day: 20}, "mon_d_comma_y"},
		{"20th Oct 2025", record.Date{Year: 2025, Month: time.October, Day: 20}, "d_mon_y"},
		{"Oct 1st, 2025", record.Date{Year: 2025, Month: time.October, Day: 1}, "mon_d_comma_y"},
		{"2025-10-20 14:30", record.Date{Year: 2025, Month: time.October, Day: 20}, "iso"},
		{"20/10/2025 9:05 am", record.Date{Year: 2025, Month: time.October, Day: 20}, "dmy_slash"},
		{"  2025-10-20  ", record.Date{Year: 2025, Month: time.October, Day: 20}, "iso"},
	}
	for _, tt := range tests {
		got, rule := p.ParseWithRule(tt.in)
		assert.Equal(t, tt.want, got, "date for %q", tt.in)
		assert.Equal(t, tt.rule, rule, "rule for %q", tt.in)
	}
}

func TestDateParserYearlessUsesReferenceYear(t *testing.T) {
	p := NewDateParser(0, nil)
	assert.Equal(t, DefaultReferenceYear, p.ReferenceYear())

	got, rule := p.ParseWithRule("20 Oct")
	assert.Equal(t, record.Date{Year: DefaultReferenceYear, Month: time.October, Day: 20}, got)
	assert.Equal(t, "d_mon", rule)

	got, rule = p.ParseWithRule("Oct 20th")
	assert.Equal(t, record.Date{Year: DefaultReferenceYear, Month: time.October, Day: 20}, got)
	assert.Equal(t, "mon_d", rule)

	leap := NewDateParser(2024, nil)
	assert.Equal(t, record.Date{Year: 2024, Month: time.February, Day: 29}, leap.Parse("29 Feb"))
}

func TestDateParserLenientFallback(t *testing.T) {
	p := NewDateParser(0, nil)

	got, rule := p.ParseWithRule("2025-10-20T09:15:00Z")
	assert.Equal(t, record.Date{Year: 2025, Month: time.October, Day: 20}, got)
	assert.Equal(t, RuleLenient, rule)
}

func TestDateParserAbsent(t *testing.T) {
	p := NewDateParser(0, nil)

	for _, in := range []string{"", "   ", "last weekend", "Last Weekend", "invalid date", "n/a"} {
		got, rule := p.ParseWithRule(in)
		assert.True(t, got.IsZero(), "expected absent for %q, got %v", in, got)
		assert.Empty(t, rule)
	}
}

func TestDateParserCustomSentinels(t *testing.T) {
	p := NewDateParser(2030, []string{"during holidays"})

	assert.True(t, p.Parse("During Holidays").IsZero())
	assert.Equal(t, 2030, p.Parse("5 Jan").Year)
}
