// Package editor implements the manual point editor: bounded coordinate input
// for adding a point and a labeled selection list for removing one.
package editor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"annotator/internal/model"
)

// Option is one entry of the remove list. Index is zero-based.
type Option struct {
	Index int    `json:"index"`
	Label string `json:"label"`
}

// Bounds limits the add inputs to 0 <= x <= Width and 0 <= y <= Height.
type Bounds struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Clamp pulls (x, y) inside the bounds, as the numeric inputs do.
func (b Bounds) Clamp(x, y float64) (float64, float64) {
	return lo.Clamp(x, 0, float64(b.Width)), lo.Clamp(y, 0, float64(b.Height))
}

// View is what the editor shows for one image.
type View struct {
	Key     string   `json:"key"`
	Bounds  Bounds   `json:"bounds"`
	Options []Option `json:"options"`
}

// NewView builds the editor view for the current detections.
func NewView(key string, bounds Bounds, detections []model.Detection) View {
	return View{Key: key, Bounds: bounds, Options: Options(detections)}
}

// FormatLabel returns "Point {i+1}: ({x}, {y})" with coordinates truncated to integers.
func FormatLabel(i int, d model.Detection) string {
	return fmt.Sprintf("Point %d: (%d, %d)", i+1, int(d.X), int(d.Y))
}

// Options lists one option per detection, in list order.
func Options(detections []model.Detection) []Option {
	return lo.Map(detections, func(d model.Detection, i int) Option {
		return Option{Index: i, Label: FormatLabel(i, d)}
	})
}

// ParseIndex recovers the zero-based index from a label built by FormatLabel.
func ParseIndex(label string) (int, bool) {
	head, _, found := strings.Cut(label, ":")
	if !found {
		return 0, false
	}
	fields := strings.Fields(head)
	if len(fields) != 2 || fields[0] != "Point" {
		return 0, false
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}

// Add returns an add instruction for (x, y) once confirmed. Coordinates are
// clamped to the bounds first.
func Add(bounds Bounds, x, y float64, confirm bool) model.EditResult {
	if !confirm {
		return model.EditResult{}
	}
	x, y = bounds.Clamp(x, y)
	return model.AddPoint(x, y)
}

// Selection identifies the option chosen in the remove list. Index takes
// precedence over Label, which is parsed only when Index is nil.
type Selection struct {
	Index *int   `json:"index"`
	Label string `json:"label"`
}

// Remove returns a remove-by-index instruction once confirmed. An empty
// detection list, a missing selection or an unparsable label yields no action.
// The index is not checked against the list.
func Remove(detections []model.Detection, sel Selection, confirm bool) model.EditResult {
	if len(detections) == 0 || !confirm {
		return model.EditResult{}
	}
	if sel.Index != nil {
		if *sel.Index < 0 {
			return model.EditResult{}
		}
		return model.RemoveIndex(*sel.Index)
	}
	if i, ok := ParseIndex(sel.Label); ok {
		return model.RemoveIndex(i)
	}
	return model.EditResult{}
}
