package overlay

import (
	"fmt"
	"image"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"annotator/internal/model"
)

// screenDPI is the pixel density used to convert display pixels to plot lengths.
const screenDPI = 96

func pixels(px float64) vg.Length {
	return vg.Length(px) * vg.Inch / screenDPI
}

// RenderPNG rasterizes the overlay to PNG at the requested display height.
// The image is drawn as the plot background and markers are placed with the same
// y flip as Render.
func (r *Renderer) RenderPNG(out io.Writer, img image.Image, detections []model.Detection, height int) error {
	fig := r.Render("", img, detections, height, false)
	if fig.ImageWidth <= 0 || fig.ImageHeight <= 0 {
		return fmt.Errorf("empty image %dx%d", fig.ImageWidth, fig.ImageHeight)
	}
	if height <= 0 {
		height = fig.ImageHeight
	}

	p := plot.New()
	p.HideAxes()
	p.X.Min, p.X.Max = fig.XRange[0], fig.XRange[1]
	p.Y.Min, p.Y.Max = fig.YRange[0], fig.YRange[1]
	p.Add(plotter.NewImage(img, 0, 0, float64(fig.ImageWidth), float64(fig.ImageHeight)))

	if len(fig.Markers) > 0 {
		xys := make(plotter.XYs, len(fig.Markers))
		fills := make([]draw.GlyphStyle, len(fig.Markers))
		rings := make([]draw.GlyphStyle, len(fig.Markers))

		outline, err := ParseColor(fig.LineColor, fig.Opacity)
		if err != nil {
			return err
		}

		for i, m := range fig.Markers {
			xys[i].X, xys[i].Y = m.X, m.Y

			fill, err := ParseColor(m.Color, fig.Opacity)
			if err != nil {
				return err
			}
			radius := pixels(m.Size / 2)
			fills[i] = draw.GlyphStyle{Color: fill, Radius: radius, Shape: draw.CircleGlyph{}}
			rings[i] = draw.GlyphStyle{Color: outline, Radius: radius + pixels(fig.LineWidth/2), Shape: draw.RingGlyph{}}
		}

		ringScatter, err := plotter.NewScatter(xys)
		if err != nil {
			return fmt.Errorf("marker outline: %w", err)
		}
		ringScatter.GlyphStyleFunc = func(i int) draw.GlyphStyle { return rings[i] }

		fillScatter, err := plotter.NewScatter(xys)
		if err != nil {
			return fmt.Errorf("markers: %w", err)
		}
		fillScatter.GlyphStyleFunc = func(i int) draw.GlyphStyle { return fills[i] }

		p.Add(fillScatter, ringScatter)
	}

	displayWidth := float64(fig.ImageWidth) * float64(height) / float64(fig.ImageHeight)
	wt, err := p.WriterTo(pixels(displayWidth), pixels(float64(height)), "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	if _, err := wt.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}
