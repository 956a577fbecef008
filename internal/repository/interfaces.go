package repository

import (
	"annotator/internal/dto"
	"annotator/internal/model"
)

// ImageRepository defines the interface for image data operations.
type ImageRepository interface {
	// Create operations
	Insert(img *model.Image) (int64, error)

	// Read operations
	GetByID(id int64) (*model.Image, error)
	GetByFilename(filename string) (*model.Image, error)
	GetAll(filter *dto.ImageFilter) ([]model.Image, error)
	GetTotalCount(filter *dto.ImageFilter) (int, error)
	GetDirectorySize() (int64, error)

	// Update operations
	UpdateROI(id int64, roi *model.ROI) error

	// Delete operations
	Delete(id int64) error
	DeleteAll() error
}

// DetectionRepository defines the interface for detection data operations.
// Detections of one image are always returned in insertion (id) order; that
// order is the list order used by index-based removal.
type DetectionRepository interface {
	// Create operations
	Insert(det *model.Detection) (int64, error)
	InsertBatch(detections []model.Detection) error

	// Read operations
	GetByImageID(imageID int64) ([]model.Detection, error)
	CountByImageID(imageID int64) (int, error)
	GetMethods() ([]string, error)

	// Update operations
	Replace(imageID int64, detections []model.Detection) error
	ReplaceByMethod(imageID int64, method string, detections []model.Detection) error

	// Delete operations
	Delete(id int64) error
	DeleteByImageID(imageID int64) error
}
