package commands

import (
	"fmt"
	"io"

	"imagevault/pkg/vault"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

var outcomeIcons = map[vault.Outcome]string{
	vault.OutcomeLocked:           "🔒",
	vault.OutcomeReleased:         "🔓",
	vault.OutcomeImplicitRelease:  "©️ ",
	vault.OutcomeAlreadyProtected: "✔️ ",
	vault.OutcomeAlreadyReleased:  "✔️ ",
	vault.OutcomeExcluded:         "⏭️ ",
	vault.OutcomeCopyrightPresent: "⏭️ ",
	vault.OutcomeNotLocked:        "⚠️ ",
	vault.OutcomeFailed:           "❌",
}

// printResult 打印一次状态机调用的结果和告警
func printResult(w io.Writer, res *vault.Result, err error) {
	if res == nil {
		fmt.Fprintf(w, "❌ %v\n", err)
		return
	}
	fmt.Fprintf(w, "%s %s: %s\n", outcomeIcons[res.Outcome], res.AssetID, res.Outcome)
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "   ⚠️  %s\n", warn.Error())
	}
	if err != nil {
		fmt.Fprintf(w, "   %v\n", err)
	}
}

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
