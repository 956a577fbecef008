package handler

import (
	"net/http"

	"annotator/internal/dto"
	"annotator/internal/logger"
	"annotator/internal/service"
)

// EditorViewHandler returns the bounds and remove options of the manual editor.
func EditorViewHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := imageID(r)
		if err != nil {
			http.Error(w, "Invalid image id", http.StatusBadRequest)
			return
		}

		view, err := manager.EditorView(id, r.URL.Query().Get("key"))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, view)
	}
}

// EditorAddHandler applies the add flow of the manual editor.
func EditorAddHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := imageID(r)
		if err != nil {
			http.Error(w, "Invalid image id", http.StatusBadRequest)
			return
		}

		var req dto.AddRequest
		if err := decodeJSON(r, &req); err != nil {
			http.Error(w, "Invalid request JSON", http.StatusBadRequest)
			return
		}

		resp, err := manager.EditorAdd(id, req)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, resp)
	}
}

// EditorRemoveHandler applies the remove flow of the manual editor.
func EditorRemoveHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := imageID(r)
		if err != nil {
			http.Error(w, "Invalid image id", http.StatusBadRequest)
			return
		}

		var req dto.RemoveRequest
		if err := decodeJSON(r, &req); err != nil {
			http.Error(w, "Invalid request JSON", http.StatusBadRequest)
			return
		}

		resp, err := manager.EditorRemove(id, req)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, resp)
	}
}
