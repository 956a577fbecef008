package model

import "time"

// Image represents a stored image record.
type Image struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	FilePath   string    `json:"filepath"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	FileSize   int64     `json:"filesize"`
	UploadedAt time.Time `json:"uploaded_at"`
	ROI        *ROI      `json:"roi"` // Last ROI selected for this image
}
