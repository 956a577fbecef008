package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"annotator/internal/config"
	"annotator/internal/logger"
	"annotator/internal/model"
	"annotator/internal/repository"
)

// ErrUnsupportedImage is returned for uploads that no registered decoder understands.
var ErrUnsupportedImage = errors.New("unsupported image format")

// ImageStore keeps image files on disk and their records in the image repository.
type ImageStore struct {
	imagesDir     string
	mu            sync.Mutex
	logger        *logger.Logger
	imageRepo     repository.ImageRepository
	detectionRepo repository.DetectionRepository
}

// NewImageStore creates an ImageStore rooted at the configured image directory.
func NewImageStore(config *config.Config, logger *logger.Logger, imageRepo repository.ImageRepository, detectionRepo repository.DetectionRepository) *ImageStore {
	return &ImageStore{
		imagesDir:     config.ImageDirectory,
		logger:        logger,
		imageRepo:     imageRepo,
		detectionRepo: detectionRepo,
	}
}

// Dir returns the directory images are written to.
func (s *ImageStore) Dir() string {
	return s.imagesDir
}

// Save validates data as an image, writes it under a fresh name and records it
// together with its initial detections.
func (s *ImageStore) Save(data []byte, originalName string, detections []model.Detection) (*model.Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image %dx%d", ErrUnsupportedImage, cfg.Width, cfg.Height)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}

	filename := storedName(originalName, format)
	fullpath := filepath.Join(s.imagesDir, filename)

	if err := os.WriteFile(fullpath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write image %s: %w", filename, err)
	}

	img := &model.Image{
		Filename: filename,
		FilePath: fullpath,
		Width:    cfg.Width,
		Height:   cfg.Height,
		FileSize: int64(len(data)),
	}

	imageID, err := s.imageRepo.Insert(img)
	if err != nil {
		os.Remove(fullpath)
		return nil, fmt.Errorf("failed to save image record: %w", err)
	}

	if len(detections) > 0 {
		batch := make([]model.Detection, len(detections))
		for i, d := range detections {
			d.ImageID = imageID
			batch[i] = d
		}
		if err := s.detectionRepo.InsertBatch(batch); err != nil {
			err = multierr.Append(fmt.Errorf("failed to save detections for image %s: %w", filename, err), s.imageRepo.Delete(imageID))
			os.Remove(fullpath)
			return nil, err
		}
	}

	s.logger.Info("💾 Stored image %s (%dx%d, %d bytes)", filename, cfg.Width, cfg.Height, len(data))
	return img, nil
}

// Load decodes the stored file of img.
func (s *ImageStore) Load(img *model.Image) (image.Image, error) {
	f, err := os.Open(img.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", img.Filename, err)
	}
	defer f.Close()

	decoded, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", img.Filename, err)
	}
	return decoded, nil
}

// Delete removes the file and the record (with its detections) of img.
// A file that is already gone is not an error.
func (s *ImageStore) Delete(img *model.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(img.FilePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image file %s: %w", img.Filename, err)
	}
	if err := s.imageRepo.Delete(img.ID); err != nil {
		return err
	}

	s.logger.Info("🗑️ Deleted image %s", img.Filename)
	return nil
}

// Clear removes every stored file and then all image and detection records.
// It returns the number of images removed.
func (s *ImageStore) Clear() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	images, err := s.imageRepo.GetAll(nil)
	if err != nil {
		return 0, err
	}

	var errs error
	for _, img := range images {
		if err := os.Remove(img.FilePath); err != nil && !os.IsNotExist(err) {
			errs = multierr.Append(errs, fmt.Errorf("failed to delete image file %s: %w", img.Filename, err))
		}
	}
	if err := s.imageRepo.DeleteAll(); err != nil {
		return 0, multierr.Append(errs, err)
	}

	s.logger.Info("🧹 Cleared %d images from %s", len(images), s.imagesDir)
	return len(images), errs
}

// storedName builds a unique file name that keeps a readable stem of the upload name.
func storedName(originalName, format string) string {
	stem := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	stem = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, stem)
	if strings.Trim(stem, "_") == "" {
		stem = "image"
	}
	if len(stem) > 48 {
		stem = stem[:48]
	}

	ext := format
	if ext == "jpeg" {
		ext = "jpg"
	}
	return fmt.Sprintf("%s_%s.%s", stem, uuid.NewString(), ext)
}
