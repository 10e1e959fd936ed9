// Package report aggregates enriched observations per child.
package report

import (
	"math"
	"sort"

	"github.com/cognicore/obsetl/pkg/obsetl/record"
)

// Summary is the per-child roll-up of one run.
type Summary struct {
	Identifier    string
	Sessions      int
	DatedSessions int
	// LatestSession is zero when no row for the child carried a date.
	LatestSession record.Date
	// Means are rounded to two decimals.
	MeanEmotionalRegulation float64
	MeanSocialIntegration   float64
}

// Distribution counts how often each score value occurs.
type Distribution struct {
	EmotionalRegulation [record.MaxScore]int
	SocialIntegration   [record.MaxScore]int
}

type group struct {
	sessions     int
	dated        int
	latest       record.Date
	emotionalSum int
	socialSum    int
}

// Aggregator accumulates records one at a time.
type Aggregator struct {
	groups map[string]*group
	dist   Distribution
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{groups: make(map[string]*group)}
}

// Process consumes one enriched record.
func (a *Aggregator) Process(rec record.Enriched) {
	id := rec.Normalized.Identifier
	if id == "" {
		id = record.UnknownID
	}
	g := a.groups[id]
	if g == nil {
		g = &group{}
		a.groups[id] = g
	}

	g.sessions++
	if d := rec.Normalized.SessionDate; !d.IsZero() {
		g.dated++
		if g.latest.IsZero() || g.latest.Before(d) {
			g.latest = d
		}
	}

	emotional := record.ClampScore(rec.Enrichment.EmotionalRegulation)
	social := record.ClampScore(rec.Enrichment.SocialIntegration)
	g.emotionalSum += emotional
	g.socialSum += social
	a.dist.EmotionalRegulation[emotional-record.MinScore]++
	a.dist.SocialIntegration[social-record.MinScore]++
}

// Summaries returns one Summary per identifier, sorted by identifier.
func (a *Aggregator) Summaries() []Summary {
	out := make([]Summary, 0, len(a.groups))
	for id, g := range a.groups {
		out = append(out, Summary{
			Identifier:              id,
			Sessions:                g.sessions,
			DatedSessions:           g.dated,
			LatestSession:           g.latest,
			MeanEmotionalRegulation: round2(float64(g.emotionalSum) / float64(g.sessions)),
			MeanSocialIntegration:   round2(float64(g.socialSum) / float64(g.sessions)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}

// Distribution returns the score histogram accumulated so far.
func (a *Aggregator) Distribution() Distribution {
	return a.dist
}

// Aggregate groups recs by canonical identifier.
func Aggregate(recs []record.Enriched) []Summary {
	a := NewAggregator()
	for _, rec := range recs {
		a.Process(rec)
	}
	return a.Summaries()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
