package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// PrintTable renders a per-invocation table for batch to w.
func PrintTable(w io.Writer, batch *Batch) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("%s batch %s (%s)", batch.Kind, batch.ID, formatDuration(batch.Duration)))

	t.AppendHeader(table.Row{"#", "Run ID", "Exit", "Duration", "Result"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight},
		{Name: "Exit", Align: text.AlignRight},
		{Name: "Duration", Align: text.AlignRight},
	})

	for _, inv := range batch.Invocations {
		result := "pass"
		if inv.Failed {
			result = "FAIL"
		}
		if inv.Truncated {
			result += " (truncated)"
		}
		t.AppendRow(table.Row{inv.Index, inv.RunID, inv.ExitCode, formatDuration(inv.Duration), result})
	}

	t.AppendFooter(table.Row{"", "", "", "Failed", fmt.Sprintf("%d/%d", batch.Failed, batch.Total)})
	t.Render()
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(10 * time.Millisecond).String()
}
