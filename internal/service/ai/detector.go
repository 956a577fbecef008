// Package ai finds point-like blobs in images so that the editor starts from
// automatic detections instead of an empty list.
package ai

import (
	"errors"
	"image"

	"annotator/internal/dto"
	"annotator/internal/model"
)

// Detection methods stored on automatic results. The overlay colors them by
// the "grid" and "roi" substrings.
const (
	MethodGrid = "grid_blob"
	MethodROI  = "roi_blob"
)

const (
	// DetectionThreshold is the minimum confidence kept from the blob detector.
	DetectionThreshold = 0.1
	// DefaultGridTile is the tile side used when the configured one is not positive.
	DefaultGridTile = 128
)

// ErrDetectorUnavailable is returned when the binary was built without OpenCV support.
var ErrDetectorUnavailable = errors.New("point detector not available (build with -tags gocv)")

// ToDetections converts raw detector output to detections of imageID.
func ToDetections(imageID int64, results []dto.DetectionResult) []model.Detection {
	out := make([]model.Detection, 0, len(results))
	for _, r := range results {
		out = append(out, model.Detection{
			ImageID: imageID,
			X:       r.X,
			Y:       r.Y,
			Conf:    r.Confidence,
			Method:  r.Method,
		})
	}
	return out
}

// tiles splits bounds into squares of side tile, clipping the last row and column.
func tiles(bounds image.Rectangle, tile int) []image.Rectangle {
	if tile <= 0 {
		tile = DefaultGridTile
	}
	var out []image.Rectangle
	for y := bounds.Min.Y; y < bounds.Max.Y; y += tile {
		for x := bounds.Min.X; x < bounds.Max.X; x += tile {
			out = append(out, image.Rect(x, y, x+tile, y+tile).Intersect(bounds))
		}
	}
	return out
}

// roiRect converts roi to a rectangle clipped to bounds. Corner order does not matter.
func roiRect(roi model.ROI, bounds image.Rectangle) image.Rectangle {
	return image.Rect(roi.X1, roi.Y1, roi.X2, roi.Y2).Intersect(bounds)
}

// confidence maps a blob diameter to [0, 1] relative to the tile size.
func confidence(size float64, tile int) float64 {
	if tile <= 0 {
		tile = DefaultGridTile
	}
	c := size / (float64(tile) / 4)
	if c > 1 {
		return 1
	}
	if c < 0 {
		return 0
	}
	return c
}
