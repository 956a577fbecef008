package handler

import (
	"encoding/json"
	"io"
	"math"
	"net/http"

	"annotator/internal/config"
	"annotator/internal/dto"
	"annotator/internal/logger"
	"annotator/internal/model"
	"annotator/internal/repository"
	"annotator/internal/service"
)

// maxPageSize caps the limit query parameter of the image list.
const maxPageSize = 200

// GetImagesHandler returns a paginated, optionally method-filtered list of images.
func GetImagesHandler(cfg *config.Config, logger *logger.Logger,
	imageRepo repository.ImageRepository, detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := min(atoiDefault(q.Get("limit"), 24), maxPageSize)
		// keeps (page-1)*limit far from overflowing
		page := min(atoiDefault(q.Get("page"), 1), math.MaxInt32/limit)

		filter := &dto.ImageFilter{
			Method: q.Get("method"),
			Limit:  limit,
			Offset: (page - 1) * limit,
		}

		images, err := imageRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying images from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalSize, err := imageRepo.GetDirectorySize()
		if err != nil {
			logger.Error("Error getting image directory size: %v", err)
			totalSize = 0
		}

		totalCount, err := imageRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting images: %v", err)
			totalCount = len(images)
		}

		methods, err := detectionRepo.GetMethods()
		if err != nil {
			logger.Error("Error listing detection methods: %v", err)
		}
		if methods == nil {
			methods = []string{}
		}

		infos := make([]dto.ImageInfo, 0, len(images))
		for _, img := range images {
			count, err := detectionRepo.CountByImageID(img.ID)
			if err != nil {
				logger.Error("Error counting detections for image %d: %v", img.ID, err)
			}
			infos = append(infos, dto.ImageInfo{Image: img, Detections: count})
		}

		writeJSON(w, logger, http.StatusOK, dto.ImagesData{
			Images:      infos,
			ImagesDir:   cfg.ImageDirectory,
			Size:        totalSize,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
			Methods:     methods,
		})
	}
}

// UploadImageHandler stores a multipart "image" file. An optional "detections"
// form field holds the initial detection list as JSON.
func UploadImageHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maxBytes := cfg.MaxUploadMB << 20
		if maxBytes <= 0 {
			maxBytes = 32 << 20
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

		if err := r.ParseMultipartForm(maxBytes); err != nil {
			http.Error(w, "Invalid multipart form", http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("image")
		if err != nil {
			http.Error(w, "Image file required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, "Unable to read image", http.StatusBadRequest)
			return
		}

		var detections []model.Detection
		if raw := r.FormValue("detections"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &detections); err != nil {
				http.Error(w, "Invalid detections JSON", http.StatusBadRequest)
				return
			}
		}

		img, err := manager.Upload(data, header.Filename, detections)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusCreated, img)
	}
}

// GetImageHandler returns one image with its detections.
func GetImageHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := imageID(r)
		if err != nil {
			http.Error(w, "Invalid image id", http.StatusBadRequest)
			return
		}
		detail, err := manager.ImageDetail(id)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, detail)
	}
}

// DeleteImageHandler removes an image from disk and database.
func DeleteImageHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := imageID(r)
		if err != nil {
			http.Error(w, "Invalid image id", http.StatusBadRequest)
			return
		}
		if err := manager.DeleteImage(id); err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]any{"status": "deleted", "id": id})
	}
}

// ClearImagesHandler deletes every stored image and its detections.
func ClearImagesHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := manager.GetImageStore().Clear(); err != nil {
			writeError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ViewImageHandler serves the stored file of an image.
func ViewImageHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := imageID(r)
		if err != nil {
			http.Error(w, "Invalid image id", http.StatusBadRequest)
			return
		}
		img, err := manager.GetImage(id)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		http.ServeFile(w, r, img.FilePath)
	}
}

// GetDetectionsHandler returns the detection list of an image.
func GetDetectionsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := imageID(r)
		if err != nil {
			http.Error(w, "Invalid image id", http.StatusBadRequest)
			return
		}
		dets, err := manager.Detections(id)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, dets)
	}
}

// PutDetectionsHandler replaces the detection list of an image.
func PutDetectionsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := imageID(r)
		if err != nil {
			http.Error(w, "Invalid image id", http.StatusBadRequest)
			return
		}

		var detections []model.Detection
		if err := decodeJSON(r, &detections); err != nil {
			http.Error(w, "Invalid detections JSON", http.StatusBadRequest)
			return
		}

		dets, err := manager.ReplaceDetections(id, detections)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, dets)
	}
}
