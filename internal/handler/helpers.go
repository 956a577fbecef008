package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"goji.io/pat"

	"annotator/internal/logger"
	"annotator/internal/service"
	"annotator/internal/service/ai"
	"annotator/internal/service/storage"
)

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseBool reads a query flag; anything unparsable is def.
func parseBool(s string, def bool) bool {
	if v, err := strconv.ParseBool(s); err == nil {
		return v
	}
	return def
}

// imageID reads the :id path parameter.
func imageID(r *http.Request) (int64, error) {
	return strconv.ParseInt(pat.Param(r, "id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// writeError maps service errors to HTTP status codes.
func writeError(w http.ResponseWriter, logger *logger.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrImageNotFound),
		errors.Is(err, service.ErrDetectionNotFound),
		errors.Is(err, service.ErrNoROI):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ai.ErrDetectorUnavailable),
		errors.Is(err, service.ErrQueueFull),
		errors.Is(err, service.ErrStopped):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, storage.ErrUnsupportedImage):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logger.Error("Request failed: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
