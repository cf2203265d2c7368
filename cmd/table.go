package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"lyricsync/internal/segment"
	"lyricsync/internal/session"
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
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// formatSeconds renders a time as M:SS.mmm.
func formatSeconds(sec float64) string {
	sign := ""
	if sec < 0 {
		sign = "-"
		sec = -sec
	}
	ms := int64(sec*1000 + 0.5)
	return fmt.Sprintf("%s%d:%02d.%03d", sign, ms/60000, (ms/1000)%60, ms%1000)
}

func segmentTable(segs []segment.Segment) string {
	rows := make([][]string, 0, len(segs))
	for i, seg := range segs {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i),
			formatSeconds(seg.Start),
			formatSeconds(seg.End),
			fmt.Sprintf("%.3f", seg.Duration()),
			seg.Text,
		})
	}
	return renderTable(
		[]string{"#", "Start", "End", "Dur", "Text"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}

func sessionTable(sums []session.Summary) string {
	rows := make([][]string, 0, len(sums))
	for _, s := range sums {
		rows = append(rows, []string{
			shortID(s.ID),
			s.Meta.Mode,
			fmt.Sprintf("%d", s.SegmentCount),
			fmt.Sprintf("%d", s.Version),
			s.UpdatedAt.Local().Format(time.DateTime),
			filepath.Base(s.Meta.SourcePath),
		})
	}
	return renderTable(
		[]string{"ID", "Mode", "Segments", "Version", "Updated", "Source"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
