package report

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/multisum/pkg/safeconv"
)

const (
	colInput     = "INPUT"
	colSize      = "SIZE"
	colAlgorithm = "ALGORITHM"
	colDigest    = "DIGEST"
)

func renderText(w io.Writer, r *Report, opts Options) error {
	paint := func(c *color.Color, s string) string {
		if !opts.Color {
			return s
		}

		c.EnableColor()

		return c.Sprint(s)
	}

	algColor := color.New(color.FgCyan)
	errColor := color.New(color.FgRed, color.Bold)

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.AppendHeader(table.Row{colInput, colSize, colAlgorithm, colDigest})

	for _, e := range r.Entries {
		size := humanize.IBytes(safeconv.MustInt64ToUint64(e.Size))

		if e.Error != "" {
			tbl.AppendRow(table.Row{e.Label, size, paint(errColor, e.ErrorKind), paint(errColor, e.Error)})

			continue
		}

		for i, d := range e.Digests {
			label, sz := e.Label, size
			if i > 0 {
				label, sz = "", ""
			}

			tbl.AppendRow(table.Row{label, sz, paint(algColor, d.Algorithm), d.Hex})
		}
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d inputs", len(r.Entries))})

	if _, err := fmt.Fprintln(w, tbl.Render()); err != nil {
		return fmt.Errorf("write text report: %w", err)
	}

	return nil
}
