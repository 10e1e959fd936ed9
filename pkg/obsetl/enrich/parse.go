package enrich

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/cognicore/obsetl/pkg/obsetl/record"
)

var (
	// ErrNoPayload means the reply contains no {...} span.
	ErrNoPayload = errors.New("enrich: no JSON object in reply")
	// ErrMalformed means the {...} span is not a usable JSON object.
	ErrMalformed = errors.New("enrich: malformed JSON reply")
	// ErrStrayText means a strict reply carried text around the JSON object.
	ErrStrayText = errors.New("enrich: reply has text outside the JSON object")
)

// ParseReply extracts the first-brace-to-last-brace span of reply and turns it
// into a clamped Enrichment. Missing scores default to 3, a missing summary to
// "No summary".
func ParseReply(reply string) (record.Enrichment, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return record.Enrichment{}, ErrNoPayload
	}

	dec := json.NewDecoder(strings.NewReader(reply[start : end+1]))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return record.Enrichment{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return record.Enrichment{}, fmt.Errorf("%w: trailing data after object", ErrMalformed)
	}

	emotional, err := coerceScore(obj[FieldEmotionalRegulation])
	if err != nil {
		return record.Enrichment{}, fmt.Errorf("%w: %s: %v", ErrMalformed, FieldEmotionalRegulation, err)
	}
	social, err := coerceScore(obj[FieldSocialIntegration])
	if err != nil {
		return record.Enrichment{}, fmt.Errorf("%w: %s: %v", ErrMalformed, FieldSocialIntegration, err)
	}

	return record.Enrichment{
		EmotionalRegulation: emotional,
		SocialIntegration:   social,
		Summary:             summaryOf(obj[FieldResilienceSummary]),
	}, nil
}

// coerceScore converts a decoded JSON value to a clamped integer score.
// Fractions truncate toward zero; numeric strings are accepted.
func coerceScore(v any) (int, error) {
	switch val := v.(type) {
	case nil:
		return record.DefaultScore, nil
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return clamp64(float64(n)), nil
		}
		f, err := val.Float64()
		if err != nil {
			return 0, err
		}
		return clamp64(math.Trunc(f)), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("score %q is not an integer", val)
		}
		return record.ClampScore(n), nil
	default:
		return 0, fmt.Errorf("score has unsupported type %T", v)
	}
}

func clamp64(f float64) int {
	if f < record.MinScore {
		return record.MinScore
	}
	if f > record.MaxScore {
		return record.MaxScore
	}
	return int(f)
}

func summaryOf(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return SummaryNoSummary
	case string:
		s = val
	default:
		s = fmt.Sprint(val)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return SummaryNoSummary
	}
	return s
}

// strictPayload accepts only a bare JSON object, optionally inside a markdown fence.
func strictPayload(reply string) (string, error) {
	s := strings.TrimSpace(reply)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return "", ErrStrayText
	}
	return s, nil
}
