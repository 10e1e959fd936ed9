// Package normalize turns free-text observation fields into canonical values.
//
// All normalizers are deterministic, never fail, and degrade to a documented
// sentinel (UNKNOWN identifier, absent date, empty text) instead of erroring.
package normalize

import (
	"strings"

	"github.com/cognicore/obsetl/pkg/obsetl/record"
)

var hyphenReplacer = strings.NewReplacer("-", "", "‐", "", "‑", "")

// Identifier canonicalizes an entity identifier.
// "c-001" → "C001", "C-002; C-003" → "C002", "" → "UNKNOWN".
func Identifier(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" {
		return record.UnknownID
	}

	// Several ids on one row: the row belongs to the first.
	if first, _, found := strings.Cut(id, ";"); found {
		id = strings.TrimSpace(first)
	}

	id = strings.TrimSpace(hyphenReplacer.Replace(strings.ToUpper(id)))
	if id == "" {
		return record.UnknownID
	}
	return id
}
