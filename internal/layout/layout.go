// Package layout packs tiles onto a fixed width grid.
//
// Tiles are placed left to right in (order, id) sequence. A tile that does not
// fit in the remaining width of the current row starts a new row below the
// tallest tile of that row. Gaps are never backfilled.
package layout

import (
	"cmp"
	"slices"

	"github.com/leapstack-labs/leapdash/pkg/lakeview"
)

// DefaultGridWidth is the number of columns of a Lakeview page.
const DefaultGridWidth = 6

// Item is a tile to place.
type Item struct {
	ID     string
	Width  int
	Height int
	Order  float64
}

// Placement is the position assigned to an item.
type Placement struct {
	ID       string
	Position lakeview.Position
}

// Arrange places items on a grid gridWidth columns wide. A gridWidth of zero or
// less selects DefaultGridWidth. Widths are clamped into [1, gridWidth] and
// heights to at least 1. Placements are returned in placement order.
func Arrange(items []Item, gridWidth int) []Placement {
	if gridWidth <= 0 {
		gridWidth = DefaultGridWidth
	}

	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b Item) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	placements := make([]Placement, 0, len(sorted))
	x, y, rowHeight := 0, 0, 0
	for _, item := range sorted {
		width := min(max(item.Width, 1), gridWidth)
		height := max(item.Height, 1)

		if x+width > gridWidth {
			x = 0
			y += rowHeight
			rowHeight = 0
		}

		placements = append(placements, Placement{
			ID: item.ID,
			Position: lakeview.Position{
				X:      x,
				Y:      y,
				Width:  width,
				Height: height,
			},
		})
		x += width
		rowHeight = max(rowHeight, height)
	}
	return placements
}

// Overlaps reports whether any two placements share a grid cell.
func Overlaps(placements []Placement) bool {
	for i := range placements {
		for j := i + 1; j < len(placements); j++ {
			if placements[i].Position.Overlaps(placements[j].Position) {
				return true
			}
		}
	}
	return false
}

// Fits reports whether every placement lies within a grid gridWidth columns wide.
func Fits(placements []Placement, gridWidth int) bool {
	for _, p := range placements {
		if p.Position.X < 0 || p.Position.Y < 0 || p.Position.Width < 1 || p.Position.Height < 1 {
			return false
		}
		if p.Position.X+p.Position.Width > gridWidth {
			return false
		}
	}
	return true
}
