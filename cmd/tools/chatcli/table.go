package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const answerWidth = 80

func renderTable(headers []string, rows [][]string) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range headers {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	// Last column holds free text; wrap it.
	tw.SetColumnConfigs([]table.ColumnConfig{{
		Number:           columns,
		Align:            text.AlignLeft,
		WidthMax:         answerWidth,
		WidthMaxEnforcer: text.WrapSoft,
	}})
	return tw.Render()
}
