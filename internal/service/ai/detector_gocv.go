//go:build gocv
// +build gocv

package ai

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"annotator/internal/config"
	"annotator/internal/dto"
	"annotator/internal/logger"
	"annotator/internal/model"
)

// DetectorService runs an OpenCV blob detector over grid tiles or a region of interest.
type DetectorService struct {
	gridTile int
	mutex    sync.Mutex
	logger   *logger.Logger
}

// NewDetectorService creates a detector using the configured grid tile.
func NewDetectorService(config *config.Config, logger *logger.Logger) *DetectorService {
	logger.Info("🔍 Blob detector initialized (tile %d)", config.GridTile)
	return &DetectorService{gridTile: config.GridTile, logger: logger}
}

// Available reports whether Detect can run.
func (s *DetectorService) Available() bool { return true }

// Detect finds blobs in imageBytes. With a nil roi the whole image is scanned
// tile by tile and results are tagged MethodGrid; otherwise only the region is
// scanned and results are tagged MethodROI. Coordinates are image pixels.
func (s *DetectorService) Detect(imageBytes []byte, roi *model.ROI) ([]dto.DetectionResult, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	mat, err := gocv.IMDecode(imageBytes, gocv.IMReadGrayScale)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	bounds := image.Rect(0, 0, mat.Cols(), mat.Rows())

	blur := gocv.NewMat()
	defer blur.Close()
	gocv.GaussianBlur(mat, &blur, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	detector := gocv.NewSimpleBlobDetector()
	defer detector.Close()

	var regions []image.Rectangle
	method := MethodGrid
	if roi != nil {
		r := roiRect(*roi, bounds)
		if r.Empty() {
			return []dto.DetectionResult{}, nil
		}
		regions = []image.Rectangle{r}
		method = MethodROI
	} else {
		regions = tiles(bounds, s.gridTile)
	}

	results := []dto.DetectionResult{}
	for _, r := range regions {
		region := blur.Region(r)
		keypoints := detector.Detect(region)
		region.Close()

		for _, kp := range keypoints {
			conf := confidence(kp.Size, s.gridTile)
			if conf < DetectionThreshold {
				continue
			}
			results = append(results, dto.DetectionResult{
				X:          kp.X + float64(r.Min.X),
				Y:          kp.Y + float64(r.Min.Y),
				Radius:     kp.Size / 2,
				Confidence: conf,
				Method:     method,
			})
		}
	}

	s.logger.Info("🔍 Detected %d points (%s, %d regions)", len(results), method, len(regions))
	return results, nil
}
