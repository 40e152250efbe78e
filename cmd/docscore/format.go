package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(markdown bool) table.Writer {
	t := table.NewWriter()
	if !markdown {
		t.SetStyle(table.StyleLight)
	}
	return t
}

func render(t table.Writer, markdown bool) string {
	if markdown {
		return t.RenderMarkdown() + "\n"
	}
	return t.Render() + "\n"
}

// renderResult prints the component scores of one evaluation followed by
// the explanation.
func renderResult(out scoreOutput, markdown bool) string {
	t := newTable(markdown)
	t.AppendHeader(table.Row{"Component", "Score"})
	t.AppendRows([]table.Row{
		{"Embedding similarity", fmt.Sprintf("%.1f", out.EmbeddingScore)},
		{"Criterion A", fmt.Sprintf("%.1f", out.CriterionAScore)},
		{"Criterion B", fmt.Sprintf("%.1f", out.CriterionBScore)},
	})
	t.AppendFooter(table.Row{"Final", fmt.Sprintf("%.1f", out.FinalScore)})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "Candidate:   %s\n", out.Candidate)
	fmt.Fprintf(&sb, "Requirement: %s\n", out.Requirement)
	fmt.Fprintf(&sb, "Iterations:  %d (%s)\n\n", out.Iterations, out.Termination)
	sb.WriteString(render(t, markdown))
	sb.WriteString("\n")
	sb.WriteString(out.Explanation)
	sb.WriteString("\n")
	return sb.String()
}

// renderBatch prints one row per evaluation in manifest order.
func renderBatch(outs []scoreOutput, markdown bool) string {
	t := newTable(markdown)
	t.AppendHeader(table.Row{"Name", "Final", "Similarity", "A", "B", "Iterations", "Termination", "Error"})
	for _, o := range outs {
		if o.Result == nil {
			t.AppendRow(table.Row{o.Name, "-", "-", "-", "-", "-", o.Termination, o.Error})
			continue
		}
		t.AppendRow(table.Row{
			o.Name,
			fmt.Sprintf("%.1f", o.FinalScore),
			fmt.Sprintf("%.1f", o.EmbeddingScore),
			fmt.Sprintf("%.1f", o.CriterionAScore),
			fmt.Sprintf("%.1f", o.CriterionBScore),
			o.Iterations,
			o.Termination,
			"",
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 8, WidthMax: 60},
	})
	return render(t, markdown)
}
