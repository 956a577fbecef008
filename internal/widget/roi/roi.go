// Package roi sizes a drawable canvas for an image and maps a rectangle drawn on
// that canvas back to image pixel coordinates.
package roi

import (
	"image"

	"annotator/internal/model"
)

// Canvas drawing style.
const (
	DrawingMode = "rect"
	FillColor   = "rgba(255, 0, 0, 0.2)"
	StrokeColor = "#ff0000"
	StrokeWidth = 2
)

// Canvas describes the drawable surface placed over the image.
type Canvas struct {
	Key         string  `json:"key"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	ImageWidth  int     `json:"image_width"`
	ImageHeight int     `json:"image_height"`
	DrawingMode string  `json:"drawing_mode"`
	FillColor   string  `json:"fill_color"`
	StrokeColor string  `json:"stroke_color"`
	StrokeWidth float64 `json:"stroke_width"`
	Toolbar     bool    `json:"toolbar"`
}

// CanvasObject is one shape read back from the canvas, in canvas pixels.
type CanvasObject struct {
	Type   string  `json:"type"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CanvasResult is the canvas state after the user has drawn. PixelWidth and
// PixelHeight are the canvas dimensions the objects were drawn against.
type CanvasResult struct {
	Objects     []CanvasObject `json:"objects"`
	PixelWidth  int            `json:"pixel_width"`
	PixelHeight int            `json:"pixel_height"`
}

// DisplaySize returns the canvas size for an image shown at the given height.
// The height is always the requested one. The width follows the aspect ratio
// only when the image is taller than the requested height, so the image is
// never upscaled horizontally.
func DisplaySize(imageWidth, imageHeight, height int) (int, int) {
	if imageHeight > height && imageHeight > 0 {
		return int(float64(imageWidth) * float64(height) / float64(imageHeight)), height
	}
	return imageWidth, height
}

// NewCanvas builds the canvas settings for img.
func NewCanvas(key string, img image.Image, height int) Canvas {
	b := img.Bounds()
	w, h := DisplaySize(b.Dx(), b.Dy(), height)
	return Canvas{
		Key:         key,
		Width:       w,
		Height:      h,
		ImageWidth:  b.Dx(),
		ImageHeight: b.Dy(),
		DrawingMode: DrawingMode,
		FillColor:   FillColor,
		StrokeColor: StrokeColor,
		StrokeWidth: StrokeWidth,
		Toolbar:     true,
	}
}

// Select maps the last drawn object to image coordinates. Earlier objects are
// ignored. It returns nil when nothing was drawn, the last object is not a
// rectangle, or any dimension is zero.
func Select(imageWidth, imageHeight int, res *CanvasResult) *model.ROI {
	if res == nil || len(res.Objects) == 0 {
		return nil
	}
	obj := res.Objects[len(res.Objects)-1]
	if obj.Type != DrawingMode {
		return nil
	}
	if imageWidth <= 0 || imageHeight <= 0 || res.PixelWidth <= 0 || res.PixelHeight <= 0 {
		return nil
	}

	sx := float64(imageWidth) / float64(res.PixelWidth)
	sy := float64(imageHeight) / float64(res.PixelHeight)

	return &model.ROI{
		X1: int(obj.Left * sx),
		Y1: int(obj.Top * sy),
		X2: int((obj.Left + obj.Width) * sx),
		Y2: int((obj.Top + obj.Height) * sy),
	}
}

// SelectResult wraps Select in an EditResult carrying only the ROI.
func SelectResult(imageWidth, imageHeight int, res *CanvasResult) model.EditResult {
	return model.EditResult{ROI: Select(imageWidth, imageHeight, res)}
}
