package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"vidpipe/internal/api"
)

// statusDisplayOrder fixes the row order of the status summary table so it
// reads in pipeline order instead of alphabetically.
var statusDisplayOrder = []string{"waiting", "processing", "done", "failed"}

func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(stats))
	keys := make([]string, 0, len(stats))
	for _, key := range statusDisplayOrder {
		if _, ok := stats[key]; ok {
			keys = append(keys, key)
			seen[key] = true
		}
	}
	rest := make([]string, 0)
	for key := range stats {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), strconv.Itoa(stats[key])})
	}
	return rows
}

func buildQueueRows(rows []api.QueueRow) [][]string {
	if len(rows) == 0 {
		return nil
	}
	sorted := make([]api.QueueRow, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Row < sorted[j].Row })

	out := make([][]string, 0, len(sorted))
	for _, row := range sorted {
		title := strings.TrimSpace(row.Title)
		if title == "" {
			title = "-"
		}
		result := strings.TrimSpace(row.ResultURL)
		if result == "" {
			result = "-"
		}
		cost := strings.TrimSpace(row.Cost)
		if cost == "" {
			cost = "-"
		}
		out = append(out, []string{
			strconv.Itoa(row.Row),
			formatStatusLabel(row.Status),
			formatDisplayTime(row.ScheduledAt),
			truncateRunes(title, 32),
			strconv.Itoa(row.ScriptChars),
			cost,
			result,
			truncateRunes(strings.TrimSpace(row.ErrorMessage), 48),
		})
	}
	return out
}

func buildHistoryRows(history []api.CycleSummary) [][]string {
	if len(history) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(history))
	for _, cycle := range history {
		finished := formatDisplayTime(cycle.FinishedAt)
		if finished == "" {
			finished = formatDisplayTime(cycle.StartedAt)
		}
		jobRow := "-"
		if cycle.JobRow > 0 {
			jobRow = strconv.FormatInt(cycle.JobRow, 10)
		}
		result := strings.TrimSpace(cycle.ResultURL)
		if result == "" {
			result = "-"
		}
		rows = append(rows, []string{
			finished,
			formatStatusLabel(cycle.Outcome),
			jobRow,
			result,
			truncateRunes(strings.TrimSpace(cycle.ErrorMessage), 48),
		})
	}
	return rows
}

// formatCycleSummary renders a single cycle as one status line message.
func formatCycleSummary(cycle *api.CycleSummary) string {
	if cycle == nil {
		return ""
	}
	text := formatStatusLabel(cycle.Outcome)
	if cycle.JobRow > 0 {
		text = fmt.Sprintf("%s row %d", text, cycle.JobRow)
	}
	if ts := formatDisplayTime(cycle.FinishedAt); ts != "" {
		text += " at " + ts
	} else if ts := formatDisplayTime(cycle.StartedAt); ts != "" {
		text += " at " + ts
	}
	if msg := strings.TrimSpace(cycle.ErrorMessage); msg != "" {
		text += ": " + truncateRunes(msg, 60)
	}
	return text
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	return value
}

// truncateRunes shortens text for table cells without splitting a rune.
// Sheet content is Korean, so byte slicing would corrupt it.
func truncateRunes(value string, max int) string {
	if max <= 0 || value == "" {
		return value
	}
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-3]) + "..."
}
