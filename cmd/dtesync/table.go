package main

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one table column. Numeric columns are right-aligned, and a
// positive limit truncates oversized cells; authority error strings in
// particular can run to several hundred characters.
type column struct {
	title   string
	numeric bool
	limit   int
}

func renderTable(cols []column, rows [][]string) string {
	if len(cols) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col.title
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(cols))
		for i, col := range cols {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if col.limit > 0 {
				cell = truncateCell(cell, col.limit)
			}
			r[i] = cell
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(cols))
	for i, col := range cols {
		align := text.AlignLeft
		if col.numeric {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func truncateCell(s string, limit int) string {
	if len(s) <= limit || limit < 4 {
		return s
	}
	return s[:limit-3] + "..."
}

// formatElapsed renders the tracking elapsed time reported by the daemon.
func formatElapsed(seconds int64) string {
	return (time.Duration(seconds) * time.Second).String()
}
