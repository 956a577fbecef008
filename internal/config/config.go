package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           int
	Password       string
	ImageDirectory string
	DatabasePath   string
	LogDirectory   string
	LogMaxSizeMB   int
	MaxUploadMB    int64

	DisplayHeight    int     // Domyślna wysokość widgetów w pikselach
	MaxDisplayHeight int     // Górny limit wysokości renderowania
	MarkerBase       float64 // Rozmiar markera przy conf = 0
	MarkerScale      float64 // Przyrost rozmiaru na jednostkę conf
	ColorAdded       string
	ColorGrid        string
	ColorROI         string
	ColorDefault     string
	RemoveRadius     float64 // Promień (px) przy usuwaniu punktu kliknięciem

	ProcessingWorkers int  // Liczba worker threads do detekcji
	GridTile          int  // Rozmiar kafelka dla detekcji "grid"
	AutoDetect        bool // Uruchom detekcję po każdym uploadzie
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	// Brak pliku .env nie jest błędem
	_ = godotenv.Load()

	return &Config{
		Port:           getEnvAsInt("PORT", 8080),
		Password:       getEnv("PASSWORD", "annotator"),
		ImageDirectory: getEnv("IMAGE_DIR", filepath.Join(".", "images")),
		DatabasePath:   getEnv("DB_PATH", filepath.Join(".", "data", "annotator.db")),
		LogDirectory:   getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogMaxSizeMB:   getEnvAsInt("LOG_MAX_SIZE_MB", 10),
		MaxUploadMB:    getEnvAsInt64("MAX_UPLOAD_MB", 32),

		DisplayHeight:    getEnvAsInt("DISPLAY_HEIGHT", 600),
		MaxDisplayHeight: getEnvAsInt("MAX_DISPLAY_HEIGHT", 2048),
		MarkerBase:       getEnvAsFloat("MARKER_BASE", 4),
		MarkerScale:      getEnvAsFloat("MARKER_SCALE", 6),
		ColorAdded:       getEnv("COLOR_ADDED", "green"),
		ColorGrid:        getEnv("COLOR_GRID", "red"),
		ColorROI:         getEnv("COLOR_ROI", "blue"),
		ColorDefault:     getEnv("COLOR_DEFAULT", "red"),
		RemoveRadius:     getEnvAsFloat("REMOVE_RADIUS", 10),

		ProcessingWorkers: getEnvAsInt("PROCESSING_WORKERS", 2),
		GridTile:          getEnvAsInt("GRID_TILE", 128),
		AutoDetect:        getEnvAsBool("AUTO_DETECT", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}
