package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"annotator/internal/dto"
	"annotator/internal/model"
)

const imageColumns = `i.id, i.filename, i.filepath, i.width, i.height, i.filesize,
	i.roi_x1, i.roi_y1, i.roi_x2, i.roi_y2, i.uploaded_at`

// ImageRepository implements repository.ImageRepository for SQLite.
type ImageRepository struct {
	db *DB
}

// NewImageRepository creates a new SQLite image repository.
func NewImageRepository(db *DB) *ImageRepository {
	return &ImageRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (*model.Image, error) {
	var img model.Image
	var x1, y1, x2, y2 sql.NullInt64
	if err := row.Scan(&img.ID, &img.Filename, &img.FilePath, &img.Width, &img.Height, &img.FileSize,
		&x1, &y1, &x2, &y2, &img.UploadedAt); err != nil {
		return nil, err
	}
	if x1.Valid && y1.Valid && x2.Valid && y2.Valid {
		img.ROI = &model.ROI{X1: int(x1.Int64), Y1: int(y1.Int64), X2: int(x2.Int64), Y2: int(y2.Int64)}
	}
	return &img, nil
}

// Insert adds a new image record to the database.
func (r *ImageRepository) Insert(img *model.Image) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	if img.UploadedAt.IsZero() {
		img.UploadedAt = time.Now()
	}

	result, err := r.db.Conn().Exec(`
		INSERT INTO images (filename, filepath, width, height, filesize, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, img.Filename, img.FilePath, img.Width, img.Height, img.FileSize, img.UploadedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert image: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read image id: %w", err)
	}
	img.ID = id
	return id, nil
}

// GetByID retrieves an image by its ID. It returns nil, nil when no image matches.
func (r *ImageRepository) GetByID(id int64) (*model.Image, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	img, err := scanImage(r.db.Conn().QueryRow(`SELECT `+imageColumns+` FROM images i WHERE i.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return img, nil
}

// GetByFilename retrieves an image by its filename. It returns nil, nil when no image matches.
func (r *ImageRepository) GetByFilename(filename string) (*model.Image, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	img, err := scanImage(r.db.Conn().QueryRow(`SELECT `+imageColumns+` FROM images i WHERE i.filename = ?`, filename))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return img, nil
}

func filterClause(filter *dto.ImageFilter) (string, []any) {
	if filter == nil || filter.Method == "" {
		return "", nil
	}
	return ` AND EXISTS (SELECT 1 FROM detections d WHERE d.image_id = i.id AND d.method LIKE ?)`,
		[]any{"%" + filter.Method + "%"}
}

// GetAll retrieves images matching the filter, newest first.
func (r *ImageRepository) GetAll(filter *dto.ImageFilter) ([]model.Image, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := filterClause(filter)
	query := `SELECT ` + imageColumns + ` FROM images i WHERE 1=1` + where + ` ORDER BY i.uploaded_at DESC, i.id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	var images []model.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, *img)
	}

	return images, rows.Err()
}

// GetTotalCount returns the total count of images matching the filter.
func (r *ImageRepository) GetTotalCount(filter *dto.ImageFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := filterClause(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM images i WHERE 1=1`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return count, nil
}

// GetDirectorySize returns the summed size of all stored image files.
func (r *ImageRepository) GetDirectorySize() (int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var size int64
	if err := r.db.Conn().QueryRow(`SELECT COALESCE(SUM(filesize), 0) FROM images`).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to sum image sizes: %w", err)
	}
	return size, nil
}

// UpdateROI stores roi as the selected region of the image. A nil roi clears it.
func (r *ImageRepository) UpdateROI(id int64, roi *model.ROI) error {
	r.db.Lock()
	defer r.db.Unlock()

	var args []any
	if roi == nil {
		args = []any{nil, nil, nil, nil, id}
	} else {
		args = []any{roi.X1, roi.Y1, roi.X2, roi.Y2, id}
	}

	if _, err := r.db.Conn().Exec(`
		UPDATE images SET roi_x1 = ?, roi_y1 = ?, roi_x2 = ?, roi_y2 = ? WHERE id = ?
	`, args...); err != nil {
		return fmt.Errorf("failed to update roi: %w", err)
	}
	return nil
}

// Delete removes an image and its detections.
func (r *ImageRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM detections WHERE image_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM images WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// DeleteAll removes all images and their detections.
func (r *ImageRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM detections`); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM images`); err != nil {
		return fmt.Errorf("failed to delete images: %w", err)
	}

	return nil
}
