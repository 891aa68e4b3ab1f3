package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdash/internal/cli/output"
	"github.com/leapstack-labs/leapdash/pkg/lakeview"
)

// placementRow is the JSON form of one layout entry.
type placementRow struct {
	Page   string `json:"page"`
	Widget string `json:"widget"`
	Type   string `json:"type"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// NewLayoutCommand creates the layout command.
func NewLayoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "layout <dir>",
		Short: "Show where the tiles of a folder are placed",
		Long: `Layout builds a dashboard folder and lists every widget with its
position on the page grid, in placement order.`,
		Example: `  leapdash layout sales
  leapdash layout sales --grid-width 12 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayout(cmd, args[0])
		},
	}
}

func runLayout(cmd *cobra.Command, dir string) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	dash, err := cmdCtx.Dashboards(nil).BuildFromFolder(dir)
	if err != nil {
		return err
	}

	var rows []placementRow
	for _, page := range dash.Pages {
		for _, l := range page.Layout {
			rows = append(rows, placementRow{
				Page:   page.Name,
				Widget: l.Widget.Name,
				Type:   widgetType(l.Widget),
				X:      l.Position.X,
				Y:      l.Position.Y,
				Width:  l.Position.Width,
				Height: l.Position.Height,
			})
		}
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(rows)
	}

	r.Header(1, fmt.Sprintf("Layout (%d widgets, grid width %d)", len(rows), cmdCtx.Cfg.GridWidth))
	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		table = append(table, []string{
			row.Widget,
			row.Type,
			strconv.Itoa(row.X),
			strconv.Itoa(row.Y),
			strconv.Itoa(row.Width),
			strconv.Itoa(row.Height),
		})
	}
	r.Table([]string{"Widget", "Type", "X", "Y", "W", "H"}, table)
	return nil
}

func widgetType(w lakeview.Widget) string {
	if w.Spec == nil {
		return "markdown"
	}
	return w.Spec.Type()
}
