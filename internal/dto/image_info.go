package dto

import (
	"encoding/json"

	"annotator/internal/model"
)

// ImageInfo is one row of the image list.
type ImageInfo struct {
	model.Image
	Detections int `json:"detections"`
}

// MarshalJSON adds the upload date and time-of-day in the gallery format.
func (p ImageInfo) MarshalJSON() ([]byte, error) {
	type Alias ImageInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      p.UploadedAt.Format("02-01-2006"),
		TimeOfDay: p.UploadedAt.Format("15:04"),
		Alias:     (Alias)(p),
	})
}

// ImageDetail is an image record together with its current detection list.
type ImageDetail struct {
	Image      *model.Image      `json:"image"`
	Detections []model.Detection `json:"detections"`
}
