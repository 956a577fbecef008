// Package overlay renders detection points over an image and maps clicks on the
// rendered figure back to image coordinates.
//
// The figure uses a plotting coordinate system with y increasing upward, while
// detections use image coordinates with y increasing downward. Every y value
// crossing that boundary goes through ToPlotY or ToImageY.
package overlay

import (
	"fmt"
	"image"
	"strings"

	"annotator/internal/model"
)

// Mode is the active editing mode of the overlay controls.
type Mode string

const (
	ModeNone   Mode = ""
	ModeAdd    Mode = "add"
	ModeRemove Mode = "remove"
	ModeROI    Mode = "roi"
)

// Controls lists the editing modes offered when editing is enabled. They are mutually exclusive.
var Controls = []Mode{ModeAdd, ModeRemove, ModeROI}

// ParseMode converts a request value into a Mode. Unknown values map to ModeNone.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAdd:
		return ModeAdd
	case ModeRemove:
		return ModeRemove
	case ModeROI:
		return ModeROI
	}
	return ModeNone
}

const (
	MarkerLineWidth = 2
	MarkerLineColor = "white"
	MarkerOpacity   = 0.8
)

// Palette holds marker colors by provenance.
type Palette struct {
	Added   string `json:"added"`
	Grid    string `json:"grid"`
	ROI     string `json:"roi"`
	Default string `json:"default"`
}

// DefaultPalette matches the colors used by the detection tools.
var DefaultPalette = Palette{
	Added:   "green",
	Grid:    "red",
	ROI:     "blue",
	Default: "red",
}

// MarkerStyle controls the linear size mapping size = Base + Scale*conf.
type MarkerStyle struct {
	Base  float64 `json:"base"`
	Scale float64 `json:"scale"`
}

var DefaultMarkerStyle = MarkerStyle{Base: 4, Scale: 6}

// Marker is one rendered detection.
type Marker struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`       // plot space, y up
	ImageY float64 `json:"image_y"` // original detection y, shown on hover
	Size   float64 `json:"size"`
	Color  string  `json:"color"`
	Hover  string  `json:"hover"`
}

// Background places the image under the markers. X/Y is the top-left corner in plot space.
type Background struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	SizeX float64 `json:"sizex"`
	SizeY float64 `json:"sizey"`
}

// Figure is the full render descriptor of the overlay widget.
type Figure struct {
	Key           string     `json:"key"`
	ImageWidth    int        `json:"image_width"`
	ImageHeight   int        `json:"image_height"`
	DisplayHeight int        `json:"display_height"`
	XRange        [2]float64 `json:"x_range"`
	YRange        [2]float64 `json:"y_range"`
	Background    Background `json:"background"`
	Markers       []Marker   `json:"markers"`
	LineWidth     float64    `json:"line_width"`
	LineColor     string     `json:"line_color"`
	Opacity       float64    `json:"opacity"`
	Controls      []Mode     `json:"controls"`
}

// Click is a click on the figure in plot space.
type Click struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Renderer builds overlay figures. It holds only presentation settings.
type Renderer struct {
	palette Palette
	style   MarkerStyle
}

// NewRenderer returns a Renderer with the given palette and marker style.
func NewRenderer(palette Palette, style MarkerStyle) *Renderer {
	return &Renderer{palette: palette, style: style}
}

// Palette returns the renderer palette.
func (r *Renderer) Palette() Palette { return r.palette }

// ToPlotY converts an image y (down) to a plot y (up).
func ToPlotY(imageHeight int, y float64) float64 {
	return float64(imageHeight) - y
}

// ToImageY converts a plot y (up) back to an image y (down).
func ToImageY(imageHeight int, plotY float64) float64 {
	return float64(imageHeight) - plotY
}

// MarkerColor picks a color by precedence: manual, then "grid" in method, then "roi", then default.
func (r *Renderer) MarkerColor(d model.Detection) string {
	switch {
	case d.Manual:
		return r.palette.Added
	case strings.Contains(d.Method, "grid"):
		return r.palette.Grid
	case strings.Contains(d.Method, "roi"):
		return r.palette.ROI
	default:
		return r.palette.Default
	}
}

// MarkerSize maps confidence linearly to a marker size. Confidence is not clamped.
func (r *Renderer) MarkerSize(conf float64) float64 {
	return r.style.Base + r.style.Scale*conf
}

// Render builds the figure for img and detections. The detection slice is not modified.
func (r *Renderer) Render(key string, img image.Image, detections []model.Detection, height int, editing bool) Figure {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	fig := Figure{
		Key:           key,
		ImageWidth:    w,
		ImageHeight:   h,
		DisplayHeight: height,
		XRange:        [2]float64{0, float64(w)},
		YRange:        [2]float64{0, float64(h)},
		Background:    Background{X: 0, Y: float64(h), SizeX: float64(w), SizeY: float64(h)},
		Markers:       make([]Marker, 0, len(detections)),
		LineWidth:     MarkerLineWidth,
		LineColor:     MarkerLineColor,
		Opacity:       MarkerOpacity,
	}

	for _, d := range detections {
		fig.Markers = append(fig.Markers, Marker{
			X:      d.X,
			Y:      ToPlotY(h, d.Y),
			ImageY: d.Y,
			Size:   r.MarkerSize(d.Conf),
			Color:  r.MarkerColor(d),
			Hover:  fmt.Sprintf("Conf: %.3f", d.Conf),
		})
	}

	if editing {
		fig.Controls = append([]Mode(nil), Controls...)
	}
	return fig
}

// HandleClick maps a click in plot space to an edit instruction in image space.
// It returns an empty result when editing is off, there is no click, or the mode
// is not add/remove.
func HandleClick(imageHeight int, editing bool, mode Mode, click *Click) model.EditResult {
	if !editing || click == nil {
		return model.EditResult{}
	}

	x := click.X
	y := ToImageY(imageHeight, click.Y)

	switch mode {
	case ModeAdd:
		return model.AddPoint(x, y)
	case ModeRemove:
		return model.RemovePoint(x, y)
	}
	return model.EditResult{}
}
