// Package enrich derives emotional-regulation and social-integration scores
// plus a resilience summary from a cleaned observation note.
//
// Every failure mode degrades to the neutral (3, 3) scores with a diagnostic
// summary; Enrich never returns an error.
package enrich

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cognicore/obsetl/pkg/obsetl/record"
)

// Summaries used for fallback enrichments.
const (
	SummaryNoObservation   = "No observation data provided"
	SummaryNoSummary       = "No summary"
	SummaryUnableToAnalyze = "Unable to analyze - returned default values"
	SummaryParseError      = "Parse error - returned default values"
	summaryCallErrorPrefix = "Error occurred: "
)

// DefaultTimeout bounds one analysis call when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Completer is the external text-analysis capability: prompt in, free text out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Options configures an Enricher.
type Options struct {
	// Timeout bounds each call; a timeout counts as a call failure.
	Timeout time.Duration
	// Strict requires the reply to be the JSON object alone (a surrounding
	// markdown fence is tolerated). Anything else is a call failure.
	Strict bool
	Logger zerolog.Logger
}

// Enricher turns cleaned observation text into an Enrichment.
type Enricher struct {
	completer Completer
	timeout   time.Duration
	strict    bool
	logger    zerolog.Logger
}

// New creates an Enricher around completer.
func New(completer Completer, opts Options) *Enricher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Enricher{
		completer: completer,
		timeout:   timeout,
		strict:    opts.Strict,
		logger:    opts.Logger,
	}
}

// Fallback returns the neutral enrichment for reason with the given summary.
func Fallback(reason record.FallbackReason, summary string) record.Enrichment {
	return record.Enrichment{
		EmotionalRegulation: record.DefaultScore,
		SocialIntegration:   record.DefaultScore,
		Summary:             summary,
		Fallback:            reason,
	}
}

// Enrich analyzes cleaned. Empty text short-circuits without a call.
func (e *Enricher) Enrich(ctx context.Context, cleaned string) record.Enrichment {
	if strings.TrimSpace(cleaned) == "" {
		return Fallback(record.FallbackEmptyText, SummaryNoObservation)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	reply, err := e.completer.Complete(callCtx, BuildPrompt(cleaned))
	if err != nil {
		e.logger.Warn().Err(err).Msg("analysis call failed, using default scores")
		return Fallback(record.FallbackCall, summaryCallErrorPrefix+err.Error())
	}

	if e.strict {
		reply, err = strictPayload(reply)
		if err != nil {
			e.logger.Warn().Err(err).Msg("analysis reply rejected, using default scores")
			return Fallback(record.FallbackCall, summaryCallErrorPrefix+err.Error())
		}
	}

	result, err := ParseReply(reply)
	switch {
	case err == nil:
		return result
	case errors.Is(err, ErrNoPayload):
		e.logger.Warn().Msg("analysis reply carried no JSON object")
		return Fallback(record.FallbackNoPayload, SummaryUnableToAnalyze)
	default:
		e.logger.Warn().Err(err).Msg("could not parse analysis reply as JSON")
		if e.strict {
			return Fallback(record.FallbackCall, summaryCallErrorPrefix+err.Error())
		}
		return Fallback(record.FallbackParse, SummaryParseError)
	}
}
