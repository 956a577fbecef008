package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"sync"

	"annotator/internal/config"
	"annotator/internal/dto"
	"annotator/internal/logger"
	"annotator/internal/model"
	"annotator/internal/repository"
	"annotator/internal/service/ai"
	"annotator/internal/service/storage"
	"annotator/internal/service/websocket"
	"annotator/internal/widget/editor"
	"annotator/internal/widget/overlay"
	"annotator/internal/widget/roi"
)

// QueueSize is the capacity of the detection job queue.
const QueueSize = 100

var (
	ErrImageNotFound     = errors.New("image not found")
	ErrDetectionNotFound = errors.New("detection not found")
	ErrNoROI             = errors.New("no roi selected for image")
	ErrQueueFull         = errors.New("detection queue full")
	ErrStopped           = errors.New("manager stopped")
)

// PointDetector finds points in an encoded image, optionally restricted to a region.
type PointDetector interface {
	Available() bool
	Detect(imageBytes []byte, roi *model.ROI) ([]dto.DetectionResult, error)
}

// DetectionTask asks a worker to run automatic detection on one image.
type DetectionTask struct {
	ImageID int64
	ROI     *model.ROI
}

// Manager owns detection state for stored images. It feeds images and
// detections to the widgets, applies the edits they return and tells viewers
// to re-render.
type Manager struct {
	cfg              *config.Config
	store            *storage.ImageStore
	detector         PointDetector
	websocketService *websocket.HubService
	imageRepo        repository.ImageRepository
	detectionRepo    repository.DetectionRepository
	renderer         *overlay.Renderer
	logger           *logger.Logger

	processingQueue chan DetectionTask
	numWorkers      int

	editMu  sync.Mutex   // serializes read-modify-write of detection lists
	queueMu sync.RWMutex // guards processingQueue against sends after close
	stopped bool
	wg      sync.WaitGroup
}

func NewManager(cfg *config.Config, logger *logger.Logger, store *storage.ImageStore, detector PointDetector,
	websocketService *websocket.HubService, imageRepo repository.ImageRepository, detectionRepo repository.DetectionRepository) *Manager {

	palette := overlay.Palette{
		Added:   cfg.ColorAdded,
		Grid:    cfg.ColorGrid,
		ROI:     cfg.ColorROI,
		Default: cfg.ColorDefault,
	}
	if err := palette.Validate(); err != nil {
		logger.Warning("⚠️  Invalid marker palette, using defaults: %v", err)
		palette = overlay.DefaultPalette
	}

	numWorkers := cfg.ProcessingWorkers
	if numWorkers <= 0 {
		numWorkers = 1
	}

	manager := &Manager{
		cfg:              cfg,
		store:            store,
		detector:         detector,
		websocketService: websocketService,
		imageRepo:        imageRepo,
		detectionRepo:    detectionRepo,
		renderer:         overlay.NewRenderer(palette, overlay.MarkerStyle{Base: cfg.MarkerBase, Scale: cfg.MarkerScale}),
		logger:           logger,
		processingQueue:  make(chan DetectionTask, QueueSize),
		numWorkers:       numWorkers,
	}

	for i := 0; i < manager.numWorkers; i++ {
		manager.wg.Add(1)
		go manager.processingWorker(i)
	}

	manager.logger.Info("🎬 Manager started with %d detection worker(s)", manager.numWorkers)
	return manager
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.websocketService
}

func (m *Manager) GetImageStore() *storage.ImageStore {
	return m.store
}

// Upload stores a new image with optional initial detections. With AutoDetect
// enabled a grid detection job is queued as well.
func (m *Manager) Upload(data []byte, name string, detections []model.Detection) (*model.Image, error) {
	img, err := m.store.Save(data, name, detections)
	if err != nil {
		return nil, err
	}

	if m.cfg.AutoDetect && m.detector.Available() {
		if err := m.enqueue(DetectionTask{ImageID: img.ID}); err != nil {
			m.logger.Warning("⚠️  Auto detection skipped for image %d: %v", img.ID, err)
		}
	}
	return img, nil
}

// GetImage returns the image record or ErrImageNotFound.
func (m *Manager) GetImage(id int64) (*model.Image, error) {
	img, err := m.imageRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("%w: %d", ErrImageNotFound, id)
	}
	return img, nil
}

// Detections returns the current detection list of an image in list order.
func (m *Manager) Detections(id int64) ([]model.Detection, error) {
	if _, err := m.GetImage(id); err != nil {
		return nil, err
	}
	return m.detectionRepo.GetByImageID(id)
}

// ImageDetail returns the image record with its detections.
func (m *Manager) ImageDetail(id int64) (*dto.ImageDetail, error) {
	img, err := m.GetImage(id)
	if err != nil {
		return nil, err
	}
	dets, err := m.detectionRepo.GetByImageID(id)
	if err != nil {
		return nil, err
	}
	return &dto.ImageDetail{Image: img, Detections: dets}, nil
}

// DeleteImage removes an image, its file and its detections.
func (m *Manager) DeleteImage(id int64) error {
	img, err := m.GetImage(id)
	if err != nil {
		return err
	}
	return m.store.Delete(img)
}

// ReplaceDetections overwrites the detection list of an image and notifies viewers.
func (m *Manager) ReplaceDetections(id int64, detections []model.Detection) ([]model.Detection, error) {
	if _, err := m.GetImage(id); err != nil {
		return nil, err
	}

	m.editMu.Lock()
	defer m.editMu.Unlock()

	if err := m.detectionRepo.Replace(id, detections); err != nil {
		return nil, err
	}
	return m.publish(id)
}

// LoadImage returns the record and the decoded pixels of an image.
func (m *Manager) LoadImage(id int64) (*model.Image, image.Image, error) {
	rec, err := m.GetImage(id)
	if err != nil {
		return nil, nil, err
	}
	img, err := m.store.Load(rec)
	if err != nil {
		return nil, nil, err
	}
	return rec, img, nil
}

// DefaultMaxDisplayHeight bounds requested render heights when none is configured.
const DefaultMaxDisplayHeight = 2048

func (m *Manager) maxDisplayHeight() int {
	if m.cfg.MaxDisplayHeight > 0 {
		return m.cfg.MaxDisplayHeight
	}
	return DefaultMaxDisplayHeight
}

// displayHeight resolves a requested height: zero means the configured
// default, and anything above the maximum is capped.
func (m *Manager) displayHeight(height int) int {
	if height <= 0 {
		height = m.cfg.DisplayHeight
	}
	return min(height, m.maxDisplayHeight())
}

// pngHeight caps height further so the rendered width stays within the
// maximum too. The overlay raster keeps the image aspect ratio.
func (m *Manager) pngHeight(img image.Image, height int) int {
	height = m.displayHeight(height)
	b := img.Bounds()
	if height <= 0 {
		height = min(b.Dy(), m.maxDisplayHeight())
	}
	if b.Dx() > b.Dy() && b.Dx() > 0 {
		height = min(height, m.maxDisplayHeight()*b.Dy()/b.Dx())
	}
	return max(height, 1)
}

// Overlay renders the overlay figure of an image.
func (m *Manager) Overlay(id int64, key string, height int, editing bool) (overlay.Figure, error) {
	_, img, err := m.LoadImage(id)
	if err != nil {
		return overlay.Figure{}, err
	}
	dets, err := m.detectionRepo.GetByImageID(id)
	if err != nil {
		return overlay.Figure{}, err
	}
	return m.renderer.Render(key, img, dets, m.displayHeight(height), editing), nil
}

// OverlayPNG writes the overlay of an image as PNG.
func (m *Manager) OverlayPNG(out io.Writer, id int64, height int) error {
	_, img, err := m.LoadImage(id)
	if err != nil {
		return err
	}
	dets, err := m.detectionRepo.GetByImageID(id)
	if err != nil {
		return err
	}
	return m.renderer.RenderPNG(out, img, dets, m.pngHeight(img, height))
}

// Click maps an overlay click to an edit and applies it.
func (m *Manager) Click(id int64, req dto.ClickRequest) (dto.EditResponse, error) {
	rec, err := m.GetImage(id)
	if err != nil {
		return dto.EditResponse{}, err
	}

	editing := req.Editing == nil || *req.Editing
	result := overlay.HandleClick(rec.Height, editing, overlay.ParseMode(req.Mode), req.Click)
	return m.apply(id, req.Key, result)
}

// Canvas returns the ROI canvas settings of an image.
func (m *Manager) Canvas(id int64, key string, height int) (roi.Canvas, image.Image, error) {
	_, img, err := m.LoadImage(id)
	if err != nil {
		return roi.Canvas{}, nil, err
	}
	return roi.NewCanvas(key, img, m.displayHeight(height)), img, nil
}

// CanvasBackground returns the image scaled to its ROI canvas.
func (m *Manager) CanvasBackground(id int64, height int) (image.Image, error) {
	c, img, err := m.Canvas(id, "", height)
	if err != nil {
		return nil, err
	}
	return roi.Background(img, c), nil
}

// SelectROI maps the canvas readback to an ROI and stores it on the image.
// Nothing is stored when no rectangle was drawn.
func (m *Manager) SelectROI(id int64, res roi.CanvasResult) (model.EditResult, error) {
	rec, err := m.GetImage(id)
	if err != nil {
		return model.EditResult{}, err
	}

	result := roi.SelectResult(rec.Width, rec.Height, &res)
	if result.ROI == nil {
		return result, nil
	}

	if err := m.imageRepo.UpdateROI(id, result.ROI); err != nil {
		return model.EditResult{}, err
	}
	m.logger.Info("📐 %s for image %d", roi.Caption(*result.ROI), id)
	return result, nil
}

// ROIPreview draws the stored ROI on the image.
func (m *Manager) ROIPreview(id int64) (image.Image, error) {
	rec, img, err := m.LoadImage(id)
	if err != nil {
		return nil, err
	}
	if rec.ROI == nil {
		return nil, ErrNoROI
	}
	return roi.Preview(img, *rec.ROI), nil
}

// EditorView returns the manual editor view of an image.
func (m *Manager) EditorView(id int64, key string) (editor.View, error) {
	rec, err := m.GetImage(id)
	if err != nil {
		return editor.View{}, err
	}
	dets, err := m.detectionRepo.GetByImageID(id)
	if err != nil {
		return editor.View{}, err
	}
	return editor.NewView(key, editor.Bounds{Width: rec.Width, Height: rec.Height}, dets), nil
}

// EditorAdd applies the add flow of the manual editor.
func (m *Manager) EditorAdd(id int64, req dto.AddRequest) (dto.EditResponse, error) {
	rec, err := m.GetImage(id)
	if err != nil {
		return dto.EditResponse{}, err
	}
	result := editor.Add(editor.Bounds{Width: rec.Width, Height: rec.Height}, req.X, req.Y, req.Confirm)
	return m.apply(id, req.Key, result)
}

// EditorRemove applies the remove flow of the manual editor.
func (m *Manager) EditorRemove(id int64, req dto.RemoveRequest) (dto.EditResponse, error) {
	dets, err := m.Detections(id)
	if err != nil {
		return dto.EditResponse{}, err
	}
	result := editor.Remove(dets, editor.Selection{Index: req.Index, Label: req.Label}, req.Confirm)
	return m.apply(id, req.Key, result)
}

func (m *Manager) apply(id int64, key string, result model.EditResult) (dto.EditResponse, error) {
	applied, dets, err := m.ApplyEdit(id, result)
	if err != nil {
		return dto.EditResponse{}, err
	}
	return dto.EditResponse{Key: key, Result: result, Applied: applied, Detections: dets}, nil
}

// ApplyEdit applies an edit instruction to the detection list of an image and
// returns the updated list. An empty instruction changes nothing.
//
// Add appends a manual detection. Remove by index deletes the i-th detection in
// list order. Remove by point deletes the nearest detection within the
// configured radius.
func (m *Manager) ApplyEdit(id int64, result model.EditResult) (bool, []model.Detection, error) {
	if _, err := m.GetImage(id); err != nil {
		return false, nil, err
	}

	m.editMu.Lock()
	defer m.editMu.Unlock()

	switch {
	case result.Action == model.ActionAdd && result.Point != nil:
		det := model.NewDetection(result.Point.X, result.Point.Y)
		det.ImageID = id
		det.Manual = true
		det.Method = model.MethodManual
		if _, err := m.detectionRepo.Insert(&det); err != nil {
			return false, nil, err
		}
		m.logger.Info("➕ Added point (%.1f, %.1f) to image %d", det.X, det.Y, id)

	case result.Action == model.ActionRemove && (result.Index != nil || result.Point != nil):
		dets, err := m.detectionRepo.GetByImageID(id)
		if err != nil {
			return false, nil, err
		}

		var target int
		if result.Index != nil {
			target = *result.Index
			if target < 0 || target >= len(dets) {
				return false, nil, fmt.Errorf("%w: index %d of %d", ErrDetectionNotFound, target, len(dets))
			}
		} else {
			target = Nearest(dets, *result.Point, m.cfg.RemoveRadius)
			if target < 0 {
				return false, nil, fmt.Errorf("%w: no point within %.1fpx of (%.1f, %.1f)",
					ErrDetectionNotFound, m.cfg.RemoveRadius, result.Point.X, result.Point.Y)
			}
		}

		if err := m.detectionRepo.Delete(dets[target].ID); err != nil {
			return false, nil, err
		}
		m.logger.Info("➖ Removed point %d (%.1f, %.1f) from image %d", target+1, dets[target].X, dets[target].Y, id)

	default:
		dets, err := m.detectionRepo.GetByImageID(id)
		return false, dets, err
	}

	dets, err := m.publish(id)
	return err == nil, dets, err
}

// Nearest returns the index of the detection closest to p within radius, or -1.
// A non-positive radius matches any distance.
func Nearest(detections []model.Detection, p model.Point, radius float64) int {
	best, bestDist := -1, math.Inf(1)
	for i, d := range detections {
		dist := math.Hypot(d.X-p.X, d.Y-p.Y)
		if radius > 0 && dist > radius {
			continue
		}
		if dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}

// publish reloads the detection list and pushes it to viewers of the image.
func (m *Manager) publish(id int64) ([]model.Detection, error) {
	dets, err := m.detectionRepo.GetByImageID(id)
	if err != nil {
		return nil, err
	}
	m.SendToViewers(id, dets)
	return dets, nil
}

// SendToViewers broadcasts the detection list of an image over websocket.
func (m *Manager) SendToViewers(id int64, detections []model.Detection) {
	msg, err := json.Marshal(dto.ViewerMessage{Type: "detections", ImageID: id, Detections: detections})
	if err != nil {
		m.logger.Error("Error encoding viewer message: %v", err)
		return
	}
	m.websocketService.Broadcast(msg, id)
}

// Detect queues automatic detection on an image. With useROI the stored ROI
// restricts the search and ErrNoROI is returned when none is stored.
func (m *Manager) Detect(id int64, useROI bool) (*model.ROI, error) {
	if !m.detector.Available() {
		return nil, ai.ErrDetectorUnavailable
	}
	rec, err := m.GetImage(id)
	if err != nil {
		return nil, err
	}

	task := DetectionTask{ImageID: id}
	if useROI {
		if rec.ROI == nil {
			return nil, ErrNoROI
		}
		task.ROI = rec.ROI
	}
	return task.ROI, m.enqueue(task)
}

func (m *Manager) enqueue(task DetectionTask) error {
	m.queueMu.RLock()
	defer m.queueMu.RUnlock()

	if m.stopped {
		return ErrStopped
	}

	select {
	case m.processingQueue <- task:
		m.logger.Info("📥 Image %d queued for detection", task.ImageID)
		return nil
	default:
		m.logger.Warning("⚠️  Processing queue full - skipping detection for image %d", task.ImageID)
		return ErrQueueFull
	}
}

// processingWorker runs queued detection tasks until the queue is closed.
func (m *Manager) processingWorker(workerID int) {
	defer m.wg.Done()

	m.logger.Info("🔧 Processing worker %d started", workerID)

	for task := range m.processingQueue {
		if err := m.runDetection(task); err != nil {
			m.logger.Error("Detection failed for image %d: %v", task.ImageID, err)
		}
	}

	m.logger.Info("🔧 Processing worker %d stopped", workerID)
}

// runDetection replaces the previous results of the same method with fresh ones.
// Manual points are never touched.
func (m *Manager) runDetection(task DetectionTask) error {
	rec, err := m.GetImage(task.ImageID)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(rec.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	results, err := m.detector.Detect(data, task.ROI)
	if err != nil {
		return err
	}

	method := ai.MethodGrid
	if task.ROI != nil {
		method = ai.MethodROI
	}

	m.editMu.Lock()
	defer m.editMu.Unlock()

	if err := m.detectionRepo.ReplaceByMethod(task.ImageID, method, ai.ToDetections(task.ImageID, results)); err != nil {
		return err
	}

	_, err = m.publish(task.ImageID)
	return err
}

// Stop closes the queue and waits for running detections to finish.
// Later detection requests fail with ErrStopped.
func (m *Manager) Stop() {
	m.queueMu.Lock()
	if m.stopped {
		m.queueMu.Unlock()
		return
	}
	m.stopped = true
	close(m.processingQueue)
	m.queueMu.Unlock()

	m.wg.Wait()
	m.logger.Info("🛑 All processing workers stopped")
}
