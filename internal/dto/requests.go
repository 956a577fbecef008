package dto

import (
	"annotator/internal/model"
	"annotator/internal/widget/overlay"
	"annotator/internal/widget/roi"
)

// ClickRequest is a click on the overlay figure.
type ClickRequest struct {
	Key     string         `json:"key"`
	Mode    string         `json:"mode"`
	Editing *bool          `json:"editing"` // defaults to true
	Click   *overlay.Click `json:"click"`
}

// CanvasRequest is the ROI canvas state read back after drawing.
type CanvasRequest struct {
	Key string `json:"key"`
	roi.CanvasResult
}

// AddRequest confirms a manually entered point.
type AddRequest struct {
	Key     string  `json:"key"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Confirm bool    `json:"confirm"`
}

// RemoveRequest confirms a selection from the remove list.
type RemoveRequest struct {
	Key     string `json:"key"`
	Index   *int   `json:"index"`
	Label   string `json:"label"`
	Confirm bool   `json:"confirm"`
}

// EditResponse reports an edit instruction and whether it changed the detection list.
type EditResponse struct {
	Key        string            `json:"key"`
	Result     model.EditResult  `json:"result"`
	Applied    bool              `json:"applied"`
	Detections []model.Detection `json:"detections"`
}

// DetectResponse is returned when a detection job is queued.
type DetectResponse struct {
	Queued bool       `json:"queued"`
	ROI    *model.ROI `json:"roi,omitempty"`
}

// ViewerMessage is pushed to websocket viewers of an image after its detections change.
type ViewerMessage struct {
	Type       string            `json:"type"`
	ImageID    int64             `json:"image_id"`
	Detections []model.Detection `json:"detections"`
}
