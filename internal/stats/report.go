package stats

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/verte-zerg/redline/internal/model"
)

const sparkChars = " .:-=+*#%@"

// Summary aggregates a list of finished sessions.
type Summary struct {
	Sessions   int
	ByOutcome  map[model.Outcome]int
	AvgWPM     float64
	BestWPM    float64
	WordsKept  int
	SecondsRun int
	WPMTrend   []float64
}

// Summarize computes history aggregates. Speed figures only consider completed sessions.
func Summarize(records []model.SessionRecord) Summary {
	s := Summary{ByOutcome: map[model.Outcome]int{}}
	var totalWPM float64
	// Records arrive newest-first; the trend reads oldest to newest.
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		s.Sessions++
		s.ByOutcome[r.Outcome]++
		s.SecondsRun += r.ElapsedSec
		if r.Outcome != model.OutcomeCompleted {
			continue
		}
		s.WordsKept += r.WordCount
		totalWPM += r.WPMAtEnd
		if r.WPMAtEnd > s.BestWPM {
			s.BestWPM = r.WPMAtEnd
		}
		s.WPMTrend = append(s.WPMTrend, r.WPMAtEnd)
	}
	if n := len(s.WPMTrend); n > 0 {
		s.AvgWPM = totalWPM / float64(n)
	}
	return s
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderSummary prints aggregate figures for the records.
func RenderSummary(w io.Writer, records []model.SessionRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	s := Summarize(records)
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d (completed %d, deleted %d)", s.Sessions, s.ByOutcome[model.OutcomeCompleted],
			s.ByOutcome[model.OutcomeInactivity]+s.ByOutcome[model.OutcomeWPM]+s.ByOutcome[model.OutcomeAbandoned]),
		fmt.Sprintf("Time written: %s", FormatDuration(s.SecondsRun)),
		fmt.Sprintf("Words kept: %d", s.WordsKept),
		fmt.Sprintf("Avg WPM: %.1f", s.AvgWPM),
		fmt.Sprintf("Best WPM: %.1f", s.BestWPM),
	}
	if len(s.WPMTrend) > 1 {
		lines = append(lines, fmt.Sprintf("Trend: [%s]", Sparkline(s.WPMTrend)))
	}
	lines = append(lines, "")
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// HistoryHeaders are the column titles of a history row.
var HistoryHeaders = []string{"ID", "Created", "Title", "Outcome", "Time", "Words", "WPM"}

// HistoryRow formats one record as history table cells.
func HistoryRow(r model.SessionRecord) []string {
	title := r.Title
	if title == "" {
		title = "-"
	}
	return []string{
		shortID(r.ID),
		r.CreatedAt.Local().Format("2006-01-02 15:04"),
		truncateCell(title, 32),
		string(r.Outcome),
		FormatDuration(r.ElapsedSec),
		fmt.Sprintf("%d", r.WordCount),
		fmt.Sprintf("%.0f", r.WPMAtEnd),
	}
}

// RenderHistory prints one aligned row per record.
func RenderHistory(w io.Writer, records []model.SessionRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, HistoryRow(r))
	}
	rightAlign := map[int]bool{4: true, 5: true, 6: true}
	for _, line := range formatTable(HistoryHeaders, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// RecordMarkdown lays a record out as a markdown document.
func RecordMarkdown(rec model.SessionRecord) string {
	title := rec.Title
	if title == "" {
		title = "Untitled session"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- Outcome: %s\n", rec.Outcome)
	fmt.Fprintf(&b, "- Created: %s\n", rec.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "- Time: %s of %d min\n", FormatDuration(rec.ElapsedSec), rec.DurationMin)
	fmt.Fprintf(&b, "- Words: %d at %.0f WPM (min %d)\n", rec.WordCount, rec.WPMAtEnd, rec.MinWPM)
	if rec.OrganizerText != "" {
		fmt.Fprintf(&b, "\n## Notes\n\n%s\n", rec.OrganizerText)
	}
	b.WriteString("\n---\n\n")
	if rec.Content == "" {
		b.WriteString("_No content._\n")
	} else {
		b.WriteString(rec.Content)
		b.WriteString("\n")
	}
	return b.String()
}
