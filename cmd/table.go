package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/andresmejia3/crease/internal/pipeline"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

var segmentHeaders = []string{"Segment", "Start", "Impact", "End", "Duration", "Shot"}

var segmentAligns = []columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft}

func printSummary(w io.Writer, sum pipeline.Summary, out outputPaths, fps float64, rendered bool, elapsed time.Duration) {
	fmt.Fprintf(w, "\n---------------------------------------------------------\n")
	fmt.Fprintf(w, "📊 ANALYSIS SUMMARY\n")
	fmt.Fprintf(w, "---------------------------------------------------------\n")

	if len(sum.Segments) == 0 {
		fmt.Fprintln(w, "No shots detected.")
	} else {
		fmt.Fprintln(w, renderTable(segmentHeaders, segmentRows(sum.Segments, fps), segmentAligns))
	}

	fmt.Fprintf(w, "\n🖼️  Frames analysed:        %d\n", sum.Frames)
	fmt.Fprintf(w, "🦴 Frames without skeleton: %d\n", sum.Insufficient)
	if sum.Conflicts > 0 {
		fmt.Fprintf(w, "⚠️  Phase conflicts:        %d\n", sum.Conflicts)
	}
	fmt.Fprintf(w, "🐢 Slow-motion bursts:      %d\n", len(sum.Bursts))
	fmt.Fprintf(w, "📄 Metrics:   %s\n", out.Features)
	fmt.Fprintf(w, "📍 Landmarks: %s\n", out.Landmarks)
	if rendered {
		fmt.Fprintf(w, "🎬 Video:     %s\n", out.Video)
	}
	fmt.Fprintf(w, "⏱️  Elapsed:   %s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "---------------------------------------------------------\n")
}
