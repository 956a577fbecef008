package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"annotator/internal/model"
	"annotator/internal/repository/sqlite"
)

// Registers images that already sit in a directory. A sidecar <name>.json next
// to an image holds its initial detections as a JSON array.
func main() {
	imagesDir := flag.String("images", "images", "Directory containing images")
	dbPath := flag.String("db", "data/annotator.db", "Database path")
	flag.Parse()

	fmt.Printf("Migrating images from %s to database %s\n", *imagesDir, *dbPath)

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	images := sqlite.NewImageRepository(db)
	detections := sqlite.NewDetectionRepository(db)

	files, err := os.ReadDir(*imagesDir)
	if err != nil {
		log.Fatalf("Failed to read images directory: %v", err)
	}

	migrated, skipped, points := 0, 0, 0
	for _, file := range files {
		if file.IsDir() || strings.EqualFold(filepath.Ext(file.Name()), ".json") {
			continue
		}

		existing, err := images.GetByFilename(file.Name())
		if err != nil {
			log.Fatalf("Failed to query %s: %v", file.Name(), err)
		}
		if existing != nil {
			skipped++
			continue
		}

		path := filepath.Join(*imagesDir, file.Name())
		img, err := readImage(path)
		if err != nil {
			log.Printf("⚠️  Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}

		dets, err := readSidecar(path)
		if err != nil {
			log.Printf("⚠️  Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}

		id, err := images.Insert(img)
		if err != nil {
			log.Fatalf("Failed to insert %s: %v", file.Name(), err)
		}
		for i := range dets {
			dets[i].ImageID = id
		}
		if err := detections.InsertBatch(dets); err != nil {
			log.Fatalf("Failed to insert detections for %s: %v", file.Name(), err)
		}

		migrated++
		points += len(dets)
	}

	fmt.Printf("✅ Migrated %d images with %d detections\n", migrated, points)
	if skipped > 0 {
		fmt.Printf("⚠️  Skipped %d files (already present, unreadable or not images)\n", skipped)
	}

	total, err := images.GetTotalCount(nil)
	if err == nil {
		size, _ := images.GetDirectorySize()
		fmt.Printf("\n📊 Database Statistics:\n")
		fmt.Printf("   Total images: %d\n", total)
		fmt.Printf("   Total size: %d bytes\n", size)
	}
}

func readImage(path string) (*model.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("not an image: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	return &model.Image{
		Filename:   info.Name(),
		FilePath:   path,
		Width:      cfg.Width,
		Height:     cfg.Height,
		FileSize:   info.Size(),
		UploadedAt: info.ModTime(),
	}, nil
}

func readSidecar(path string) ([]model.Detection, error) {
	data, err := os.ReadFile(strings.TrimSuffix(path, filepath.Ext(path)) + ".json")
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var dets []model.Detection
	if err := json.Unmarshal(data, &dets); err != nil {
		return nil, fmt.Errorf("invalid detections file: %w", err)
	}
	return dets, nil
}
