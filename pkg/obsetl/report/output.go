package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

// SummaryFile is the file name used for the per-child summary table.
const SummaryFile = "summary_by_child.csv"

var summaryHeader = []string{
	"Child_ID",
	"Session_Count",
	"Dated_Sessions",
	"Latest_Session_Date",
	"Avg_Emotional_Regulation",
	"Avg_Social_Integration",
}

func summaryRow(s Summary) []string {
	return []string{
		s.Identifier,
		strconv.Itoa(s.Sessions),
		strconv.Itoa(s.DatedSessions),
		s.LatestSession.String(),
		strconv.FormatFloat(s.MeanEmotionalRegulation, 'f', 2, 64),
		strconv.FormatFloat(s.MeanSocialIntegration, 'f', 2, 64),
	}
}

// WriteSummaryCSV writes one row per child.
func WriteSummaryCSV(w io.Writer, summaries []Summary) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(summaryHeader); err != nil {
		return err
	}
	for _, s := range summaries {
		if err := writer.Write(summaryRow(s)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteTable renders the summaries as an aligned pipe table for a terminal.
// Widths are display widths, so wide runes in identifiers stay aligned.
func WriteTable(w io.Writer, summaries []Summary) error {
	rows := make([][]string, 0, len(summaries)+1)
	rows = append(rows, summaryHeader)
	for _, s := range summaries {
		row := summaryRow(s)
		if row[3] == "" {
			row[3] = "-"
		}
		rows = append(rows, row)
	}

	widths := make([]int, len(summaryHeader))
	for _, row := range rows {
		for i, cell := range row {
			if n := runewidth.StringWidth(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var sb strings.Builder
	for r, row := range rows {
		sb.WriteString("|")
		for i, cell := range row {
			sb.WriteString(" ")
			sb.WriteString(runewidth.FillRight(cell, widths[i]))
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
		if r == 0 {
			sb.WriteString("|")
			for _, n := range widths {
				sb.WriteString(" ")
				sb.WriteString(strings.Repeat("-", n))
				sb.WriteString(" |")
			}
			sb.WriteString("\n")
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
