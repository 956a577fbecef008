package service

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annotator/internal/config"
	"annotator/internal/dto"
	"annotator/internal/logger"
	"annotator/internal/model"
	"annotator/internal/repository"
	"annotator/internal/repository/sqlite"
	"annotator/internal/service/ai"
	"annotator/internal/service/storage"
	"annotator/internal/service/websocket"
	"annotator/internal/widget/overlay"
	"annotator/internal/widget/roi"
)

type fakeDetector struct {
	available bool
	gate      chan struct{} // when set, Detect waits until it is closed
	mu        sync.Mutex
	calls     []*model.ROI
}

func (f *fakeDetector) Available() bool { return f.available }

func (f *fakeDetector) Detect(_ []byte, r *model.ROI) ([]dto.DetectionResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, r)
	f.mu.Unlock()

	if f.gate != nil {
		<-f.gate
	}

	method := ai.MethodGrid
	if r != nil {
		method = ai.MethodROI
	}
	return []dto.DetectionResult{
		{X: 10, Y: 10, Confidence: 0.5, Method: method},
		{X: 20, Y: 30, Confidence: 0.7, Method: method},
	}, nil
}

func (f *fakeDetector) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// failingReplace rejects every method replacement and counts the attempts.
type failingReplace struct {
	repository.DetectionRepository
	attempts atomic.Int32
}

func (f *failingReplace) ReplaceByMethod(int64, string, []model.Detection) error {
	f.attempts.Add(1)
	return errors.New("disk full")
}

type testEnv struct {
	manager  *Manager
	detector *fakeDetector
	cfg      *config.Config
}

type testSetup struct {
	cfg        *config.Config
	detector   *fakeDetector
	detections repository.DetectionRepository
	release    func()
}

type testOption func(*testSetup)

func newTestManager(t *testing.T, opts ...testOption) *testEnv {
	t.Helper()
	dir := t.TempDir()

	db, err := sqlite.New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)

	setup := &testSetup{
		cfg: &config.Config{
			ImageDirectory:    filepath.Join(dir, "images"),
			DisplayHeight:     600,
			MaxDisplayHeight:  1000,
			MarkerBase:        4,
			MarkerScale:       6,
			ColorAdded:        "green",
			ColorGrid:         "red",
			ColorROI:          "blue",
			ColorDefault:      "red",
			RemoveRadius:      10,
			ProcessingWorkers: 1,
			GridTile:          128,
		},
		detector:   &fakeDetector{available: true},
		detections: sqlite.NewDetectionRepository(db),
	}
	for _, opt := range opts {
		opt(setup)
	}

	log := logger.NewDiscard()
	images := sqlite.NewImageRepository(db)
	store := storage.NewImageStore(setup.cfg, log, images, setup.detections)
	hub := websocket.NewHubService(log)
	go hub.Run()

	m := NewManager(setup.cfg, log, store, setup.detector, hub, images, setup.detections)

	t.Cleanup(func() {
		if setup.release != nil {
			setup.release()
		}
		m.Stop()
		hub.Stop()
		db.Close()
	})
	return &testEnv{manager: m, detector: setup.detector, cfg: setup.cfg}
}

// gated makes detection block until the returned release func is called.
// Release also runs at cleanup, before the manager stops.
func gated() (testOption, func()) {
	gate := make(chan struct{})
	var once sync.Once
	release := func() { once.Do(func() { close(gate) }) }
	return func(s *testSetup) {
		s.detector.gate = gate
		s.release = release
	}, release
}

func withConfig(fn func(*config.Config)) testOption {
	return func(s *testSetup) { fn(s.cfg) }
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func upload(t *testing.T, m *Manager, w, h int, dets ...model.Detection) *model.Image {
	t.Helper()
	img, err := m.Upload(pngBytes(t, w, h), "test.png", dets)
	require.NoError(t, err)
	return img
}

func TestManager_OverlayClickRemovesNearest(t *testing.T) {
	env := newTestManager(t)
	img := upload(t, env.manager, 800, 600, model.Detection{X: 100, Y: 500, Conf: 0.8})

	fig, err := env.manager.Overlay(img.ID, "main", 0, true)
	require.NoError(t, err)
	require.Equal(t, 600, fig.DisplayHeight)
	require.Len(t, fig.Markers, 1)
	require.Equal(t, 100.0, fig.Markers[0].Y)

	resp, err := env.manager.Click(img.ID, dto.ClickRequest{
		Key:   "main",
		Mode:  "remove",
		Click: &overlay.Click{X: 100, Y: 100},
	})
	require.NoError(t, err)
	require.True(t, resp.Applied)
	require.Equal(t, "main", resp.Key)
	require.Equal(t, model.ActionRemove, resp.Result.Action)
	require.Equal(t, model.Point{X: 100, Y: 500}, *resp.Result.Point)
	require.Empty(t, resp.Detections)
}

func TestManager_ClickAddAndNoop(t *testing.T) {
	env := newTestManager(t)
	img := upload(t, env.manager, 400, 300)

	resp, err := env.manager.Click(img.ID, dto.ClickRequest{Mode: "add", Click: &overlay.Click{X: 50, Y: 100}})
	require.NoError(t, err)
	require.True(t, resp.Applied)
	require.Len(t, resp.Detections, 1)
	d := resp.Detections[0]
	assert.Equal(t, 50.0, d.X)
	assert.Equal(t, 200.0, d.Y)
	assert.Equal(t, 1.0, d.Conf)
	assert.True(t, d.Manual)
	assert.Equal(t, model.MethodManual, d.Method)

	off := false
	resp, err = env.manager.Click(img.ID, dto.ClickRequest{Mode: "add", Editing: &off, Click: &overlay.Click{X: 1, Y: 1}})
	require.NoError(t, err)
	require.False(t, resp.Applied)
	require.True(t, resp.Result.Empty())
	require.Len(t, resp.Detections, 1)

	resp, err = env.manager.Click(img.ID, dto.ClickRequest{Mode: "roi", Click: &overlay.Click{X: 1, Y: 1}})
	require.NoError(t, err)
	require.False(t, resp.Applied)
}

func TestManager_RemoveByPointOutsideRadius(t *testing.T) {
	env := newTestManager(t)
	img := upload(t, env.manager, 400, 300, model.Detection{X: 100, Y: 100, Conf: 1})

	_, _, err := env.manager.ApplyEdit(img.ID, model.RemovePoint(150, 150))
	require.ErrorIs(t, err, ErrDetectionNotFound)

	applied, dets, err := env.manager.ApplyEdit(img.ID, model.RemovePoint(105, 104))
	require.NoError(t, err)
	require.True(t, applied)
	require.Empty(t, dets)
}

func TestManager_EditorFlows(t *testing.T) {
	env := newTestManager(t)
	img := upload(t, env.manager, 800, 600,
		model.Detection{X: 1, Y: 1, Conf: 1},
		model.Detection{X: 2, Y: 2, Conf: 1},
		model.Detection{X: 3, Y: 3, Conf: 1},
	)

	view, err := env.manager.EditorView(img.ID, "ed")
	require.NoError(t, err)
	require.Equal(t, 800, view.Bounds.Width)
	require.Len(t, view.Options, 3)
	require.Equal(t, "Point 2: (2, 2)", view.Options[1].Label)

	resp, err := env.manager.EditorRemove(img.ID, dto.RemoveRequest{Label: view.Options[1].Label, Confirm: true})
	require.NoError(t, err)
	require.True(t, resp.Applied)
	require.Equal(t, 1, *resp.Result.Index)
	require.Len(t, resp.Detections, 2)
	require.Equal(t, 3.0, resp.Detections[1].X)

	idx := 5
	_, err = env.manager.EditorRemove(img.ID, dto.RemoveRequest{Index: &idx, Confirm: true})
	require.ErrorIs(t, err, ErrDetectionNotFound)

	resp, err = env.manager.EditorAdd(img.ID, dto.AddRequest{X: 900, Y: -4, Confirm: true})
	require.NoError(t, err)
	require.True(t, resp.Applied)
	require.Equal(t, model.Point{X: 800, Y: 0}, *resp.Result.Point)
	require.Len(t, resp.Detections, 3)

	resp, err = env.manager.EditorAdd(img.ID, dto.AddRequest{X: 1, Y: 1})
	require.NoError(t, err)
	require.False(t, resp.Applied)
}

func TestManager_EditorRemoveOnEmptyList(t *testing.T) {
	env := newTestManager(t)
	img := upload(t, env.manager, 100, 100)

	idx := 0
	resp, err := env.manager.EditorRemove(img.ID, dto.RemoveRequest{Index: &idx, Confirm: true})
	require.NoError(t, err)
	require.False(t, resp.Applied)
	require.Equal(t, model.ActionNone, resp.Result.Action)
}

func TestManager_ROISelectionAndPreview(t *testing.T) {
	env := newTestManager(t)
	img := upload(t, env.manager, 1600, 1200)

	c, _, err := env.manager.Canvas(img.ID, "roi", 600)
	require.NoError(t, err)
	require.Equal(t, 800, c.Width)

	bg, err := env.manager.CanvasBackground(img.ID, 600)
	require.NoError(t, err)
	require.Equal(t, image.Pt(800, 600), bg.Bounds().Size())

	_, err = env.manager.ROIPreview(img.ID)
	require.ErrorIs(t, err, ErrNoROI)

	res, err := env.manager.SelectROI(img.ID, roi.CanvasResult{
		PixelWidth:  c.Width,
		PixelHeight: c.Height,
		Objects:     []roi.CanvasObject{{Type: "rect", Left: 100, Top: 50, Width: 200, Height: 100}},
	})
	require.NoError(t, err)
	require.Equal(t, model.ROI{X1: 200, Y1: 100, X2: 600, Y2: 300}, *res.ROI)

	stored, err := env.manager.GetImage(img.ID)
	require.NoError(t, err)
	require.Equal(t, res.ROI, stored.ROI)

	preview, err := env.manager.ROIPreview(img.ID)
	require.NoError(t, err)
	require.Equal(t, image.Pt(1600, 1200), preview.Bounds().Size())

	res, err = env.manager.SelectROI(img.ID, roi.CanvasResult{PixelWidth: 800, PixelHeight: 600})
	require.NoError(t, err)
	require.Nil(t, res.ROI)
	stored, err = env.manager.GetImage(img.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ROI, "empty drawing keeps the previous roi")
}

func TestManager_DetectReplacesPreviousResults(t *testing.T) {
	env := newTestManager(t)
	img := upload(t, env.manager, 256, 256, model.Detection{X: 5, Y: 5, Conf: 1, Manual: true, Method: model.MethodManual})

	for i := 0; i < 2; i++ {
		_, err := env.manager.Detect(img.ID, false)
		require.NoError(t, err)
		require.Eventually(t, func() bool {
			env.detector.mu.Lock()
			defer env.detector.mu.Unlock()
			return len(env.detector.calls) == i+1
		}, 2*time.Second, 10*time.Millisecond)
	}

	require.Eventually(t, func() bool {
		dets, err := env.manager.Detections(img.ID)
		return err == nil && len(dets) == 3
	}, 2*time.Second, 10*time.Millisecond)

	_, err := env.manager.Detect(img.ID, true)
	require.ErrorIs(t, err, ErrNoROI)
}

func TestManager_DetectWithROI(t *testing.T) {
	env := newTestManager(t)
	img := upload(t, env.manager, 256, 256)

	_, err := env.manager.SelectROI(img.ID, roi.CanvasResult{
		PixelWidth:  256,
		PixelHeight: 256,
		Objects:     []roi.CanvasObject{{Type: "rect", Left: 0, Top: 0, Width: 64, Height: 64}},
	})
	require.NoError(t, err)

	r, err := env.manager.Detect(img.ID, true)
	require.NoError(t, err)
	require.Equal(t, model.ROI{X1: 0, Y1: 0, X2: 64, Y2: 64}, *r)

	require.Eventually(t, func() bool {
		dets, err := env.manager.Detections(img.ID)
		if err != nil || len(dets) != 2 {
			return false
		}
		return dets[0].Method == ai.MethodROI
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManager_DetectUnavailable(t *testing.T) {
	env := newTestManager(t)
	env.detector.available = false
	img := upload(t, env.manager, 10, 10)

	_, err := env.manager.Detect(img.ID, false)
	require.ErrorIs(t, err, ai.ErrDetectorUnavailable)
}

func TestManager_NotFound(t *testing.T) {
	env := newTestManager(t)

	_, err := env.manager.GetImage(42)
	require.ErrorIs(t, err, ErrImageNotFound)
	_, err = env.manager.Overlay(42, "", 0, false)
	require.ErrorIs(t, err, ErrImageNotFound)
	_, _, err = env.manager.ApplyEdit(42, model.AddPoint(1, 1))
	require.ErrorIs(t, err, ErrImageNotFound)
	require.ErrorIs(t, env.manager.DeleteImage(42), ErrImageNotFound)
}

func TestManager_ReplaceAndDelete(t *testing.T) {
	env := newTestManager(t)
	img := upload(t, env.manager, 10, 10, model.Detection{X: 1, Y: 1, Conf: 1})

	dets, err := env.manager.ReplaceDetections(img.ID, []model.Detection{
		{X: 2, Y: 2, Conf: 0.5, Method: "grid"},
		{X: 3, Y: 3, Conf: 0.5, Method: "roi"},
	})
	require.NoError(t, err)
	require.Len(t, dets, 2)
	require.Equal(t, "grid", dets[0].Method)

	var buf bytes.Buffer
	require.NoError(t, env.manager.OverlayPNG(&buf, img.ID, 100))
	_, err = png.Decode(&buf)
	require.NoError(t, err)

	require.NoError(t, env.manager.DeleteImage(img.ID))
	_, err = env.manager.ImageDetail(img.ID)
	require.ErrorIs(t, err, ErrImageNotFound)
}

func TestNearest(t *testing.T) {
	dets := []model.Detection{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 4, Y: 0}}
	assert.Equal(t, 2, Nearest(dets, model.Point{X: 5, Y: 0}, 10))
	assert.Equal(t, -1, Nearest(dets, model.Point{X: 50, Y: 50}, 10))
	assert.Equal(t, 1, Nearest(dets, model.Point{X: 50, Y: 0}, 0))
	assert.Equal(t, -1, Nearest(nil, model.Point{}, 10))
}

// ========================================
// Detection Queue Tests
// ========================================

func TestManager_DetectionFailureKeepsPreviousResults(t *testing.T) {
	failing := &failingReplace{}
	env := newTestManager(t, func(s *testSetup) {
		failing.DetectionRepository = s.detections
		s.detections = failing
	})
	img := upload(t, env.manager, 64, 64, model.Detection{X: 3, Y: 4, Conf: 0.9, Method: ai.MethodGrid})

	_, err := env.manager.Detect(img.ID, false)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return failing.attempts.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	dets, err := env.manager.Detections(img.ID)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, ai.MethodGrid, dets[0].Method)
	assert.Equal(t, 3.0, dets[0].X)
}

func TestManager_QueueFull(t *testing.T) {
	opt, release := gated()
	env := newTestManager(t, opt)
	img := upload(t, env.manager, 32, 32)

	accepted := 0
	var err error
	for i := 0; i < QueueSize+2; i++ {
		if _, err = env.manager.Detect(img.ID, false); err != nil {
			break
		}
		accepted++
	}
	require.ErrorIs(t, err, ErrQueueFull)
	require.GreaterOrEqual(t, accepted, QueueSize)

	release()
	require.Eventually(t, func() bool { return env.detector.callCount() == accepted }, 10*time.Second, 10*time.Millisecond)
}

func TestManager_AutoDetectOnUpload(t *testing.T) {
	env := newTestManager(t, withConfig(func(c *config.Config) { c.AutoDetect = true }))
	img := upload(t, env.manager, 64, 64)

	require.Eventually(t, func() bool {
		dets, err := env.manager.Detections(img.ID)
		return err == nil && len(dets) == 2
	}, 2*time.Second, 10*time.Millisecond)

	dets, err := env.manager.Detections(img.ID)
	require.NoError(t, err)
	assert.Equal(t, ai.MethodGrid, dets[0].Method)
	require.Equal(t, 1, env.detector.callCount())
	assert.Nil(t, env.detector.calls[0], "whole image, no roi")
}

func TestManager_AutoDetectSkippedWhenQueueFull(t *testing.T) {
	opt, release := gated()
	env := newTestManager(t, opt, withConfig(func(c *config.Config) { c.AutoDetect = true }))
	first := upload(t, env.manager, 32, 32)

	queued := 1 // auto detection of the first upload
	for {
		if _, err := env.manager.Detect(first.ID, false); err != nil {
			require.ErrorIs(t, err, ErrQueueFull)
			break
		}
		queued++
	}

	second := upload(t, env.manager, 32, 32)
	require.NotZero(t, second.ID, "upload succeeds without detection")

	release()
	require.Eventually(t, func() bool { return env.detector.callCount() == queued }, 10*time.Second, 10*time.Millisecond)
	require.Never(t, func() bool { return env.detector.callCount() > queued }, 200*time.Millisecond, 20*time.Millisecond)

	dets, err := env.manager.Detections(second.ID)
	require.NoError(t, err)
	require.Empty(t, dets)
}

func TestManager_StopRejectsLateJobs(t *testing.T) {
	env := newTestManager(t, withConfig(func(c *config.Config) { c.AutoDetect = true }))
	img := upload(t, env.manager, 16, 16)

	env.manager.Stop()
	env.manager.Stop()

	require.NotPanics(t, func() {
		_, err := env.manager.Detect(img.ID, false)
		require.ErrorIs(t, err, ErrStopped)
	})
	require.NotPanics(t, func() {
		_, err := env.manager.Upload(pngBytes(t, 16, 16), "late.png", nil)
		require.NoError(t, err)
	})
}

// ========================================
// Display Height Tests
// ========================================

func TestManager_DisplayHeightIsCapped(t *testing.T) {
	env := newTestManager(t)
	img := upload(t, env.manager, 800, 600)

	var buf bytes.Buffer
	require.NoError(t, env.manager.OverlayPNG(&buf, img.ID, 100000))
	rendered, err := png.Decode(&buf)
	require.NoError(t, err)
	size := rendered.Bounds().Size()
	assert.LessOrEqual(t, size.X, env.cfg.MaxDisplayHeight)
	assert.LessOrEqual(t, size.Y, env.cfg.MaxDisplayHeight)
	assert.Greater(t, size.X, size.Y, "aspect ratio kept")

	bg, err := env.manager.CanvasBackground(img.ID, 100000)
	require.NoError(t, err)
	require.Equal(t, image.Pt(800, 1000), bg.Bounds().Size())

	fig, err := env.manager.Overlay(img.ID, "", 100000, false)
	require.NoError(t, err)
	require.Equal(t, 1000, fig.DisplayHeight)

	fig, err = env.manager.Overlay(img.ID, "", 0, false)
	require.NoError(t, err)
	require.Equal(t, 600, fig.DisplayHeight)
}
