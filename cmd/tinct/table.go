package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// report accumulates rows for one of the CLI's tabular listings: the
// run summary, the history views, and the classifier output. Every
// listing shares the rounded style; columns carrying counts, rates,
// or elapsed times are right-aligned by header name so call sites do
// not repeat alignment bookkeeping.
type report struct {
	writer table.Writer
}

var rightAlignedHeaders = map[string]bool{
	"Run":        true,
	"Total":      true,
	"Completed":  true,
	"Failed":     true,
	"Cancelled":  true,
	"Success":    true,
	"Duration":   true,
	"Confidence": true,
}

func newReport(headers ...string) *report {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	configs := make([]table.ColumnConfig, 0, len(headers))
	for i, name := range headers {
		header[i] = name
		if rightAlignedHeaders[name] {
			configs = append(configs, table.ColumnConfig{Number: i + 1, Align: text.AlignRight})
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	return &report{writer: tw}
}

func (r *report) addRow(cells ...string) {
	row := make(table.Row, len(cells))
	for i, cell := range cells {
		row[i] = cell
	}
	r.writer.AppendRow(row)
}

func (r *report) render() string {
	return r.writer.Render()
}

// outcomeDetail picks the result cell for a processed item: the
// failure message when one exists, the written output otherwise.
func outcomeDetail(outputPath, errorMessage string) string {
	if errorMessage != "" {
		return errorMessage
	}
	return outputPath
}

// formatItemDuration renders per-item elapsed time, blank for items
// that never started.
func formatItemDuration(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return d.Round(time.Millisecond).String()
}

// formatPercent renders a 0..1 rate the way the summary line and the
// history listing report success.
func formatPercent(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}
