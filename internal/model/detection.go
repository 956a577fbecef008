package model

import "encoding/json"

// DefaultConfidence is used when a detection arrives without a conf value.
const DefaultConfidence = 1.0

// MethodManual tags detections added by hand through the editor or a click.
const MethodManual = "manual"

// Detection is a labeled point in image space (top-left origin, y down).
type Detection struct {
	ID      int64   `json:"id,omitempty"`
	ImageID int64   `json:"image_id,omitempty"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Conf    float64 `json:"conf"`
	Manual  bool    `json:"manual"`
	Method  string  `json:"method"`
}

// NewDetection returns a detection at (x, y) with default metadata.
func NewDetection(x, y float64) Detection {
	return Detection{X: x, Y: y, Conf: DefaultConfidence}
}

// UnmarshalJSON applies the conf default when the field is absent.
func (d *Detection) UnmarshalJSON(data []byte) error {
	type Alias Detection
	aux := struct {
		Conf *float64 `json:"conf"`
		*Alias
	}{
		Alias: (*Alias)(d),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Conf != nil {
		d.Conf = *aux.Conf
	} else {
		d.Conf = DefaultConfidence
	}
	return nil
}
