package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateString(t *testing.T) {
	assert.Equal(t, "", Date{}.String())
	assert.Equal(t, "2025-10-20", Date{Year: 2025, Month: time.October, Day: 20}.String())
	assert.Equal(t, "0999-01-02", Date{Year: 999, Month: time.January, Day: 2}.String())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-07")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2025, Month: time.March, Day: 7}, d)

	d, err = ParseDate("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = ParseDate("07/03/2025")
	assert.Error(t, err)
}

func TestDateBefore(t *testing.T) {
	a := Date{Year: 2025, Month: time.March, Day: 7}
	b := Date{Year: 2025, Month: time.March, Day: 8}
	c := Date{Year: 2026, Month: time.January, Day: 1}

	assert.True(t, a.Before(b))
	assert.True(t, b.Before(c))
	assert.False(t, c.Before(a))
	assert.False(t, a.Before(a))
}

func TestClampScore(t *testing.T) {
	cases := map[int]int{-4: 1, 0: 1, 1: 1, 3: 3, 5: 5, 6: 5, 99: 5}
	for in, want := range cases {
		assert.Equal(t, want, ClampScore(in), "ClampScore(%d)", in)
	}
}

func TestTally(t *testing.T) {
	recs := []Enriched{
		{
			Normalized: Normalized{Identifier: "C001", SessionDate: Date{Year: 2025, Month: 1, Day: 2}},
			Enrichment: Enrichment{EmotionalRegulation: 4, SocialIntegration: 4, Summary: "ok"},
		},
		{
			Normalized: Normalized{Identifier: UnknownID},
			Enrichment: Enrichment{EmotionalRegulation: 3, SocialIntegration: 3, Summary: "x", Fallback: FallbackEmptyText},
		},
		{
			Normalized: Normalized{Identifier: "C002"},
			Enrichment: Enrichment{EmotionalRegulation: 3, SocialIntegration: 3, Summary: "y", Fallback: FallbackCall},
		},
	}

	stats := Tally(recs)
	assert.Equal(t, 3, stats.Rows)
	assert.Equal(t, 1, stats.UnknownIDs)
	assert.Equal(t, 2, stats.UnparseableDates)
	assert.Equal(t, 2, stats.FallbackEnrichments)
	assert.Equal(t, 1, stats.FallbacksByReason[FallbackEmptyText])
	assert.Equal(t, 1, stats.FallbacksByReason[FallbackCall])
}
