//go:build !gocv
// +build !gocv

package ai

import (
	"annotator/internal/config"
	"annotator/internal/dto"
	"annotator/internal/logger"
	"annotator/internal/model"
)

// DetectorService is the placeholder used when OpenCV is not compiled in.
type DetectorService struct {
	gridTile int
	logger   *logger.Logger
}

// NewDetectorService creates a detector stub (no OpenCV).
func NewDetectorService(config *config.Config, logger *logger.Logger) *DetectorService {
	logger.Warning("⚠️  Built without gocv - automatic point detection disabled")
	return &DetectorService{gridTile: config.GridTile, logger: logger}
}

// Available reports whether Detect can run.
func (s *DetectorService) Available() bool { return false }

// Detect returns ErrDetectorUnavailable when built without the gocv tag.
func (s *DetectorService) Detect(imageBytes []byte, roi *model.ROI) ([]dto.DetectionResult, error) {
	return nil, ErrDetectorUnavailable
}
