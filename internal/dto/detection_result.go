package dto

// DetectionResult is a raw point found by the automatic detector, in image pixels.
type DetectionResult struct {
	X          float64
	Y          float64
	Radius     float64
	Confidence float64
	Method     string
}
