package cli

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/forPelevin/hlclip/internal/usecase"
)

func renderStageTable(stages []usecase.StageTiming) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Step", "Stage", "Elapsed"})

	var total time.Duration
	for _, st := range stages {
		tw.AppendRow(table.Row{fmt.Sprintf("%d/%d", st.Step, len(stages)), st.Name, formatElapsed(st.Elapsed)})
		total += st.Elapsed
	}
	tw.AppendFooter(table.Row{"", "total", formatElapsed(total)})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
