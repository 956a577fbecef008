package handler

import (
	"bytes"
	"net/http"

	"annotator/internal/dto"
	"annotator/internal/logger"
	"annotator/internal/service"
)

// OverlayHandler returns the overlay figure of an image.
// Query: height (display height), editing (bool), key (widget instance).
func OverlayHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := imageID(r)
		if err != nil {
			http.Error(w, "Invalid image id", http.StatusBadRequest)
			return
		}

		q := r.URL.Query()
		fig, err := manager.Overlay(id, q.Get("key"), atoiDefault(q.Get("height"), 0), parseBool(q.Get("editing"), false))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, fig)
	}
}

// OverlayPNGHandler renders the overlay of an image as PNG.
func OverlayPNGHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := imageID(r)
		if err != nil {
			http.Error(w, "Invalid image id", http.StatusBadRequest)
			return
		}

		var buf bytes.Buffer
		if err := manager.OverlayPNG(&buf, id, atoiDefault(r.URL.Query().Get("height"), 0)); err != nil {
			writeError(w, logger, err)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(buf.Bytes())
	}
}

// OverlayClickHandler maps a click on the overlay to an edit and applies it.
func OverlayClickHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := imageID(r)
		if err != nil {
			http.Error(w, "Invalid image id", http.StatusBadRequest)
			return
		}

		var req dto.ClickRequest
		if err := decodeJSON(r, &req); err != nil {
			http.Error(w, "Invalid click JSON", http.StatusBadRequest)
			return
		}

		resp, err := manager.Click(id, req)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, resp)
	}
}
