package route

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/cors"
	"goji.io"
	"goji.io/pat"

	"annotator/internal/config"
	"annotator/internal/handler"
	"annotator/internal/logger"
	"annotator/internal/middleware"
	"annotator/internal/repository"
	"annotator/internal/service"
)

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join("static", filepath.Clean("/"+path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers static file serving and API endpoints, and wraps the
// mux with the authentication and CORS middleware.
func SetupRoutes(manager *service.Manager, cfg *config.Config, logger *logger.Logger,
	imageRepo repository.ImageRepository, detectionRepo repository.DetectionRepository) http.Handler {
	mux := goji.NewMux()

	// Static files
	mux.Handle(pat.Get("/static/*"), http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	// Viewers
	mux.HandleFunc(pat.Get("/api/view"), handler.ViewWebsocketHandler(manager, logger))

	// Images
	mux.HandleFunc(pat.Get("/api/images"), handler.GetImagesHandler(cfg, logger, imageRepo, detectionRepo))
	mux.HandleFunc(pat.Post("/api/images"), handler.UploadImageHandler(manager, cfg, logger))
	mux.HandleFunc(pat.Delete("/api/images"), handler.ClearImagesHandler(manager, logger))
	mux.HandleFunc(pat.Get("/api/images/:id"), handler.GetImageHandler(manager, logger))
	mux.HandleFunc(pat.Delete("/api/images/:id"), handler.DeleteImageHandler(manager, logger))
	mux.HandleFunc(pat.Get("/api/images/:id/file"), handler.ViewImageHandler(manager, logger))
	mux.HandleFunc(pat.Get("/api/images/:id/detections"), handler.GetDetectionsHandler(manager, logger))
	mux.HandleFunc(pat.Put("/api/images/:id/detections"), handler.PutDetectionsHandler(manager, logger))

	// Point overlay
	mux.HandleFunc(pat.Get("/api/images/:id/overlay"), handler.OverlayHandler(manager, logger))
	mux.HandleFunc(pat.Get("/api/images/:id/overlay.png"), handler.OverlayPNGHandler(manager, logger))
	mux.HandleFunc(pat.Post("/api/images/:id/overlay/click"), handler.OverlayClickHandler(manager, logger))

	// ROI selector
	mux.HandleFunc(pat.Get("/api/images/:id/roi/canvas"), handler.CanvasHandler(manager, logger))
	mux.HandleFunc(pat.Get("/api/images/:id/roi/background"), handler.CanvasBackgroundHandler(manager, logger))
	mux.HandleFunc(pat.Post("/api/images/:id/roi"), handler.SelectROIHandler(manager, logger))
	mux.HandleFunc(pat.Get("/api/images/:id/roi/preview"), handler.ROIPreviewHandler(manager, logger))
	mux.HandleFunc(pat.Post("/api/images/:id/roi/detect"), handler.DetectHandler(manager, logger, true))
	mux.HandleFunc(pat.Post("/api/images/:id/detect"), handler.DetectHandler(manager, logger, false))

	// Manual editor
	mux.HandleFunc(pat.Get("/api/images/:id/editor"), handler.EditorViewHandler(manager, logger))
	mux.HandleFunc(pat.Post("/api/images/:id/editor/add"), handler.EditorAddHandler(manager, logger))
	mux.HandleFunc(pat.Post("/api/images/:id/editor/remove"), handler.EditorRemoveHandler(manager, logger))

	// Log endpoints
	for level, file := range handler.LogFiles {
		mux.HandleFunc(pat.Get("/logs/"+level), handler.ShowLogsHandler(cfg, file))
		mux.HandleFunc(pat.Post("/logs/"+level+"/clear"), handler.ClearLogsHandler(logger, file))
	}

	// Auth endpoints
	mux.HandleFunc(pat.Post("/auth/login"), handler.LoginHandler(cfg, logger))
	mux.HandleFunc(pat.Get("/auth/logout"), handler.LogoutHandler)

	// Automatic HTML handler mapping for example: /settings -> /static/settings.html
	mux.HandleFunc(pat.Get("/*"), dynamicHTMLHandler)

	return cors.AllowAll().Handler(middleware.AuthMiddleware(cfg)(mux))
}
