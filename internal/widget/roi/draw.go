package roi

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"annotator/internal/model"
)

var font *truetype.Font

func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

var (
	fill   = color.NRGBA{R: 255, A: 51}
	stroke = color.NRGBA{R: 255, A: 255}
)

// Background scales img to the canvas size so it can be drawn under the canvas.
func Background(img image.Image, c Canvas) *image.NRGBA {
	if c.Width <= 0 || c.Height <= 0 {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, c.Width, c.Height, imaging.Lanczos)
}

// Caption is the message shown once an ROI has been selected.
func Caption(r model.ROI) string {
	return fmt.Sprintf("ROI selected: (%d, %d) to (%d, %d)", r.X1, r.Y1, r.X2, r.Y2)
}

// Preview draws r on a copy of img with the canvas style and a caption in the top left corner.
func Preview(img image.Image, r model.ROI) image.Image {
	dc := gg.NewContextForImage(img)

	x, y := float64(min(r.X1, r.X2)), float64(min(r.Y1, r.Y2))
	w, h := float64(abs(r.Width())), float64(abs(r.Height()))

	dc.DrawRectangle(x, y, w, h)
	dc.SetColor(fill)
	dc.FillPreserve()
	dc.SetColor(stroke)
	dc.SetLineWidth(StrokeWidth)
	dc.Stroke()

	size := float64(dc.Height()) / 30
	if size < 10 {
		size = 10
	}
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: size}))
	text := Caption(r)
	tw, th := dc.MeasureString(text)

	dc.SetColor(color.NRGBA{A: 160})
	dc.DrawRectangle(0, 0, tw+size, th+size)
	dc.Fill()
	dc.SetColor(color.White)
	dc.DrawStringAnchored(text, size/2, size/2, 0, 1)

	return dc.Image()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
