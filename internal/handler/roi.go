package handler

import (
	"bytes"
	"image"
	"image/png"
	"net/http"

	"annotator/internal/dto"
	"annotator/internal/logger"
	"annotator/internal/service"
)

func writePNG(w http.ResponseWriter, logger *logger.Logger, img image.Image) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		logger.Error("Error encoding PNG: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(buf.Bytes())
}

// CanvasHandler returns the ROI canvas settings of an image.
func CanvasHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := imageID(r)
		if err != nil {
			http.Error(w, "Invalid image id", http.StatusBadRequest)
			return
		}

		q := r.URL.Query()
		c, _, err := manager.Canvas(id, q.Get("key"), atoiDefault(q.Get("height"), 0))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, c)
	}
}

// CanvasBackgroundHandler serves the image scaled to the canvas size.
func CanvasBackgroundHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := imageID(r)
		if err != nil {
			http.Error(w, "Invalid image id", http.StatusBadRequest)
			return
		}

		bg, err := manager.CanvasBackground(id, atoiDefault(r.URL.Query().Get("height"), 0))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writePNG(w, logger, bg)
	}
}

// SelectROIHandler converts the drawn canvas rectangle to an image ROI and stores it.
func SelectROIHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := imageID(r)
		if err != nil {
			http.Error(w, "Invalid image id", http.StatusBadRequest)
			return
		}

		var req dto.CanvasRequest
		if err := decodeJSON(r, &req); err != nil {
			http.Error(w, "Invalid canvas JSON", http.StatusBadRequest)
			return
		}

		result, err := manager.SelectROI(id, req.CanvasResult)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, dto.EditResponse{Key: req.Key, Result: result, Applied: result.ROI != nil})
	}
}

// ROIPreviewHandler serves the image with its stored ROI drawn on it.
func ROIPreviewHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := imageID(r)
		if err != nil {
			http.Error(w, "Invalid image id", http.StatusBadRequest)
			return
		}

		img, err := manager.ROIPreview(id)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writePNG(w, logger, img)
	}
}

// DetectHandler queues automatic detection, on the stored ROI when useROI is set.
func DetectHandler(manager *service.Manager, logger *logger.Logger, useROI bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := imageID(r)
		if err != nil {
			http.Error(w, "Invalid image id", http.StatusBadRequest)
			return
		}

		roi, err := manager.Detect(id, useROI)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusAccepted, dto.DetectResponse{Queued: true, ROI: roi})
	}
}
