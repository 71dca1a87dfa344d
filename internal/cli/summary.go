package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"yt-channel-scan/internal/model"
	"yt-channel-scan/internal/scan"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// renderSummary formats a finished scan for the terminal.
func renderSummary(res scan.Result, outPath string, top int) string {
	var b strings.Builder

	title := res.ChannelURL
	if res.ChannelTitle != "" {
		title = res.ChannelTitle + "  " + mutedStyle.Render(res.ChannelURL)
	}
	b.WriteString(titleStyle.Render("scan summary") + "  " + title + "\n")

	st := res.Stats
	b.WriteString(mutedStyle.Render(fmt.Sprintf(
		"enumerated %d | after type filter %d | inspected %d | qualifying %d | below threshold %d | detail failures %d",
		st.Enumerated, st.AfterTypeFilter, st.Inspected, st.Qualifying, st.BelowThreshold, st.DetailFailures)) + "\n")
	if st.EarlyStopped {
		b.WriteString(mutedStyle.Render("early stop: yes") + "\n")
	}

	if len(res.Records) > 0 {
		b.WriteString(renderRecordsTable(res.Records, top) + "\n")
		b.WriteString(transcriptTally(res.Records) + "\n")
	} else {
		b.WriteString(errorStyle.Render("no qualifying videos") + "\n")
		for _, d := range res.Diagnostics {
			b.WriteString("  - " + d + "\n")
		}
	}
	if outPath != "" {
		b.WriteString(okStyle.Render("wrote") + " " + outPath + "\n")
	}
	return b.String()
}

func renderRecordsTable(records []model.VideoRecord, top int) string {
	if top <= 0 || top > len(records) {
		top = len(records)
	}
	rows := make([][]string, 0, top)
	for _, r := range records[:top] {
		views := ""
		if v, ok := r.Views(); ok {
			views = formatCount(v)
		}
		rows = append(rows, []string{
			strconv.Itoa(r.Rank),
			views,
			string(r.TranscriptStatus),
			r.TranscriptSource,
			truncateRunes(r.Title, 48),
		})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers("#", "views", "transcript", "source", "title").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 {
				return cellStyle.Align(lipgloss.Right)
			}
			return cellStyle
		})
	out := t.Render()
	if top < len(records) {
		out += "\n" + mutedStyle.Render(fmt.Sprintf("... %d more row(s) in the export", len(records)-top))
	}
	return out
}

func transcriptTally(records []model.VideoRecord) string {
	counts := map[model.TranscriptStatus]int{}
	order := []model.TranscriptStatus{}
	for _, r := range records {
		if _, seen := counts[r.TranscriptStatus]; !seen {
			order = append(order, r.TranscriptStatus)
		}
		counts[r.TranscriptStatus]++
	}
	parts := make([]string, 0, len(order))
	for _, s := range order {
		parts = append(parts, fmt.Sprintf("%s %d", s, counts[s]))
	}
	return mutedStyle.Render("transcripts: " + strings.Join(parts, " | "))
}

// formatCount renders 1234567 as 1,234,567.
func formatCount(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
