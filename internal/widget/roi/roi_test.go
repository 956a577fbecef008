package roi

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annotator/internal/model"
)

func TestDisplaySize(t *testing.T) {
	tests := []struct {
		name         string
		w, h, height int
		wantW, wantH int
	}{
		{"taller image is downscaled", 1600, 1200, 600, 800, 600},
		{"shorter image keeps width", 400, 300, 600, 400, 600},
		{"equal height", 640, 600, 600, 640, 600},
		{"truncates width", 1000, 700, 600, 857, 600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := DisplaySize(tt.w, tt.h, tt.height)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestNewCanvas(t *testing.T) {
	c := NewCanvas("roi-1", image.NewRGBA(image.Rect(0, 0, 1600, 1200)), 600)
	require.Equal(t, "roi-1", c.Key)
	require.Equal(t, 800, c.Width)
	require.Equal(t, 600, c.Height)
	require.Equal(t, 1600, c.ImageWidth)
	require.Equal(t, 1200, c.ImageHeight)
	require.Equal(t, "rect", c.DrawingMode)
	require.Equal(t, "rgba(255, 0, 0, 0.2)", c.FillColor)
	require.Equal(t, "#ff0000", c.StrokeColor)
	require.Equal(t, 2.0, c.StrokeWidth)
	require.True(t, c.Toolbar)
}

func TestSelect_UsesLastRect(t *testing.T) {
	res := &CanvasResult{
		PixelWidth:  800,
		PixelHeight: 600,
		Objects: []CanvasObject{
			{Type: "rect", Left: 1, Top: 1, Width: 5, Height: 5},
			{Type: "rect", Left: 100, Top: 50, Width: 200, Height: 100},
		},
	}

	roi := Select(1600, 1200, res)
	require.NotNil(t, roi)
	require.Equal(t, model.ROI{X1: 200, Y1: 100, X2: 600, Y2: 300}, *roi)
}

func TestSelect_Truncates(t *testing.T) {
	res := &CanvasResult{
		PixelWidth:  300,
		PixelHeight: 300,
		Objects:     []CanvasObject{{Type: "rect", Left: 10.5, Top: 20.9, Width: 33.3, Height: 44.4}},
	}
	roi := Select(1000, 700, res)
	require.NotNil(t, roi)

	sx, sy := 1000.0/300, 700.0/300
	assert.Equal(t, int(10.5*sx), roi.X1)
	assert.Equal(t, int(20.9*sy), roi.Y1)
	assert.Equal(t, int((10.5+33.3)*sx), roi.X2)
	assert.Equal(t, int((20.9+44.4)*sy), roi.Y2)
}

func TestSelect_ScaleConsistent(t *testing.T) {
	for left := 0.0; left < 50; left += 3.7 {
		for w := 1.0; w < 120; w += 11.3 {
			res := &CanvasResult{
				PixelWidth:  640,
				PixelHeight: 480,
				Objects:     []CanvasObject{{Type: "rect", Left: left, Top: left, Width: w, Height: w}},
			}
			roi := Select(1920, 1000, res)
			require.NotNil(t, roi)

			sx := 1920.0 / 640
			want := int(math.Round(w * sx))
			assert.InDelta(t, want, roi.Width(), 1, "left=%v w=%v", left, w)
		}
	}
}

func TestSelect_None(t *testing.T) {
	require.Nil(t, Select(100, 100, nil))
	require.Nil(t, Select(100, 100, &CanvasResult{PixelWidth: 100, PixelHeight: 100}))

	notRect := &CanvasResult{
		PixelWidth:  100,
		PixelHeight: 100,
		Objects: []CanvasObject{
			{Type: "rect", Width: 10, Height: 10},
			{Type: "circle", Width: 10, Height: 10},
		},
	}
	require.Nil(t, Select(100, 100, notRect))

	rect := &CanvasResult{Objects: []CanvasObject{{Type: "rect", Width: 10, Height: 10}}}
	require.Nil(t, Select(100, 100, rect), "zero canvas size")

	rect.PixelWidth, rect.PixelHeight = 50, 50
	require.Nil(t, Select(0, 100, rect), "zero image width")
	require.Nil(t, Select(100, -1, rect), "negative image height")

	require.True(t, SelectResult(100, 100, nil).Empty())
}

func TestSelectResult_CarriesOnlyROI(t *testing.T) {
	res := &CanvasResult{
		PixelWidth:  10,
		PixelHeight: 10,
		Objects:     []CanvasObject{{Type: "rect", Left: 1, Top: 2, Width: 3, Height: 4}},
	}
	r := SelectResult(10, 10, res)
	require.Equal(t, model.ActionNone, r.Action)
	require.Nil(t, r.Point)
	require.Nil(t, r.Index)
	require.Equal(t, model.ROI{X1: 1, Y1: 2, X2: 4, Y2: 6}, *r.ROI)
}

func TestBackground(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1600, 1200))
	bg := Background(img, NewCanvas("", img, 600))
	require.Equal(t, 800, bg.Bounds().Dx())
	require.Equal(t, 600, bg.Bounds().Dy())

	same := Background(img, Canvas{})
	require.Equal(t, img.Bounds().Size(), same.Bounds().Size())
}

func TestPreview(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.White)
		}
	}

	r := model.ROI{X1: 100, Y1: 100, X2: 180, Y2: 180}
	out := Preview(img, r)
	require.Equal(t, img.Bounds().Size(), out.Bounds().Size())

	// Interior is tinted red, the source stays white.
	cr, cg, cb, _ := out.At(140, 140).RGBA()
	assert.Greater(t, cr, cg)
	assert.Greater(t, cr, cb)
	sr, sg, sb, _ := img.At(140, 140).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{sr, sg, sb})

	assert.Equal(t, "ROI selected: (100, 100) to (180, 180)", Caption(r))
}
