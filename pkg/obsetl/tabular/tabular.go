// Package tabular reads observation tables and writes enriched ones.
package tabular

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cognicore/obsetl/pkg/obsetl/internalerr"
	"github.com/cognicore/obsetl/pkg/obsetl/record"
)

// Enrichment columns appended to the output table.
const (
	ColumnEmotionalRegulation = "Emotional_Regulation_Score"
	ColumnSocialIntegration   = "Social_Integration_Score"
	ColumnResilienceSummary   = "Resilience_Notes_Summary"
)

// Columns names the three input columns the pipeline normalizes.
type Columns struct {
	Identifier  string `yaml:"identifier"`
	SessionDate string `yaml:"session_date"`
	Observation string `yaml:"observation"`
}

// DefaultColumns matches the facilitator export layout.
func DefaultColumns() Columns {
	return Columns{
		Identifier:  "Child_ID",
		SessionDate: "Session_Date",
		Observation: "Observation_Text",
	}
}

// Table is a parsed input file.
type Table struct {
	Header []string
	Rows   []record.Raw
}

// ReadCSV parses a delimited table with a header row. Every column other
// than the three named in cols is carried as metadata. Short rows are padded
// with empty cells.
func ReadCSV(r io.Reader, cols Columns) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty input", internalerr.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = cleanHeader(header)

	index, err := columnIndex(header, cols)
	if err != nil {
		return nil, err
	}

	table := &Table{Header: header}
	for line := 2; ; line++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		if isBlank(fields) {
			continue
		}
		table.Rows = append(table.Rows, rawFromFields(len(table.Rows), header, fields, index, cols))
	}
	return table, nil
}

// OutputHeader is the input header followed by any enrichment columns it lacks.
func OutputHeader(header []string) []string {
	out := append([]string(nil), header...)
	for _, col := range []string{ColumnEmotionalRegulation, ColumnSocialIntegration, ColumnResilienceSummary} {
		if !contains(header, col) {
			out = append(out, col)
		}
	}
	return out
}

// WriteCSV writes the enriched records under OutputHeader(header). The three
// normalized columns carry canonical values; other columns pass through.
func WriteCSV(w io.Writer, header []string, cols Columns, recs []record.Enriched) error {
	out := OutputHeader(header)
	writer := csv.NewWriter(w)
	if err := writer.Write(out); err != nil {
		return err
	}
	for _, rec := range recs {
		row := make([]string, len(out))
		for i, col := range out {
			row[i] = cellValue(rec, col, cols)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteJSON writes the records as an indented array of objects whose keys
// follow OutputHeader(header). Scores are numbers, everything else strings.
func WriteJSON(w io.Writer, header []string, cols Columns, recs []record.Enriched) error {
	out := OutputHeader(header)

	var buf bytes.Buffer
	buf.WriteByte('[')
	for n, rec := range recs {
		if n > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for i, col := range out {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(col)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')

			var val []byte
			switch col {
			case ColumnEmotionalRegulation:
				val = strconv.AppendInt(nil, int64(rec.Enrichment.EmotionalRegulation), 10)
			case ColumnSocialIntegration:
				val = strconv.AppendInt(nil, int64(rec.Enrichment.SocialIntegration), 10)
			default:
				val, err = json.Marshal(cellValue(rec, col, cols))
				if err != nil {
					return err
				}
			}
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, buf.Bytes(), "", "  "); err != nil {
		return err
	}
	pretty.WriteByte('\n')
	_, err := pretty.WriteTo(w)
	return err
}

// ReadEnrichedCSV parses a table previously written by WriteCSV.
func ReadEnrichedCSV(r io.Reader, cols Columns) ([]record.Enriched, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = cleanHeader(header)

	index, err := columnIndex(header, cols)
	if err != nil {
		return nil, err
	}
	for _, col := range []string{ColumnEmotionalRegulation, ColumnSocialIntegration, ColumnResilienceSummary} {
		pos := indexOf(header, col)
		if pos < 0 {
			return nil, fmt.Errorf("%w: %s", internalerr.ErrMissingColumn, col)
		}
		index[col] = pos
	}

	var recs []record.Enriched
	for line := 2; ; line++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		if isBlank(fields) {
			continue
		}

		raw := rawFromFields(len(recs), header, fields, index, cols)
		date, err := record.ParseDate(field(fields, index[cols.SessionDate]))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", internalerr.ErrInvalidInput, line, err)
		}
		emotional, err := parseScore(field(fields, index[ColumnEmotionalRegulation]))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %s: %v", internalerr.ErrInvalidInput, line, ColumnEmotionalRegulation, err)
		}
		social, err := parseScore(field(fields, index[ColumnSocialIntegration]))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %s: %v", internalerr.ErrInvalidInput, line, ColumnSocialIntegration, err)
		}
		for _, col := range []string{ColumnEmotionalRegulation, ColumnSocialIntegration, ColumnResilienceSummary} {
			delete(raw.Metadata, col)
		}

		recs = append(recs, record.Enriched{
			Raw: raw,
			Normalized: record.Normalized{
				Identifier:  raw.Identifier,
				SessionDate: date,
				Text:        raw.Observation,
			},
			Enrichment: record.Enrichment{
				EmotionalRegulation: emotional,
				SocialIntegration:   social,
				Summary:             field(fields, index[ColumnResilienceSummary]),
			},
		})
	}
	return recs, nil
}

func cellValue(rec record.Enriched, col string, cols Columns) string {
	switch col {
	case cols.Identifier:
		return rec.Normalized.Identifier
	case cols.SessionDate:
		return rec.Normalized.SessionDate.String()
	case cols.Observation:
		return rec.Normalized.Text
	case ColumnEmotionalRegulation:
		return strconv.Itoa(rec.Enrichment.EmotionalRegulation)
	case ColumnSocialIntegration:
		return strconv.Itoa(rec.Enrichment.SocialIntegration)
	case ColumnResilienceSummary:
		return rec.Enrichment.Summary
	default:
		return rec.Raw.Metadata[col]
	}
}

func rawFromFields(idx int, header, fields []string, index map[string]int, cols Columns) record.Raw {
	raw := record.Raw{
		Index:       idx,
		Identifier:  field(fields, index[cols.Identifier]),
		SessionDate: field(fields, index[cols.SessionDate]),
		Observation: field(fields, index[cols.Observation]),
	}
	for i, name := range header {
		if i == index[cols.Identifier] || i == index[cols.SessionDate] || i == index[cols.Observation] {
			continue
		}
		if raw.Metadata == nil {
			raw.Metadata = make(map[string]string, len(header)-3)
		}
		raw.Metadata[name] = field(fields, i)
	}
	return raw
}

func columnIndex(header []string, cols Columns) (map[string]int, error) {
	index := make(map[string]int, 6)
	for _, col := range []string{cols.Identifier, cols.SessionDate, cols.Observation} {
		pos := indexOf(header, col)
		if pos < 0 {
			return nil, fmt.Errorf("%w: %s", internalerr.ErrMissingColumn, col)
		}
		index[col] = pos
	}
	return index, nil
}

func parseScore(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n < record.MinScore || n > record.MaxScore {
		return 0, fmt.Errorf("score %d outside [%d,%d]", n, record.MinScore, record.MaxScore)
	}
	return n, nil
}

func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}

func field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func contains(list []string, s string) bool {
	return indexOf(list, s) >= 0
}
