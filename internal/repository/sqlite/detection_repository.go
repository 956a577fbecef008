package sqlite

import (
	"database/sql"
	"fmt"

	"annotator/internal/model"
)

const insertDetection = `
	INSERT INTO detections (image_id, x, y, conf, manual, method)
	VALUES (?, ?, ?, ?, ?, ?)
`

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// Insert adds a new detection record to the database.
func (r *DetectionRepository) Insert(det *model.Detection) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(insertDetection, det.ImageID, det.X, det.Y, det.Conf, det.Manual, det.Method)
	if err != nil {
		return 0, fmt.Errorf("failed to insert detection: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read detection id: %w", err)
	}
	det.ID = id
	return id, nil
}

// InsertBatch adds multiple detections in a single transaction.
func (r *DetectionRepository) InsertBatch(detections []model.Detection) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertAll(tx, detections); err != nil {
		return err
	}
	return tx.Commit()
}

func insertAll(tx *sql.Tx, detections []model.Detection) error {
	stmt, err := tx.Prepare(insertDetection)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, det := range detections {
		if _, err := stmt.Exec(det.ImageID, det.X, det.Y, det.Conf, det.Manual, det.Method); err != nil {
			return fmt.Errorf("failed to insert detection: %w", err)
		}
	}
	return nil
}

// GetByImageID retrieves all detections for an image in list order.
func (r *DetectionRepository) GetByImageID(imageID int64) ([]model.Detection, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, image_id, x, y, conf, manual, method
		FROM detections WHERE image_id = ? ORDER BY id
	`, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	detections := []model.Detection{}
	for rows.Next() {
		var det model.Detection
		if err := rows.Scan(&det.ID, &det.ImageID, &det.X, &det.Y, &det.Conf, &det.Manual, &det.Method); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, det)
	}

	return detections, rows.Err()
}

// CountByImageID returns the number of detections stored for an image.
func (r *DetectionRepository) CountByImageID(imageID int64) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM detections WHERE image_id = ?`, imageID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count detections: %w", err)
	}
	return count, nil
}

// GetMethods returns a list of all distinct detection methods.
func (r *DetectionRepository) GetMethods() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT DISTINCT method FROM detections ORDER BY method`)
	if err != nil {
		return nil, fmt.Errorf("failed to query methods: %w", err)
	}
	defer rows.Close()

	var methods []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("failed to scan method: %w", err)
		}
		methods = append(methods, m)
	}

	return methods, rows.Err()
}

// Replace swaps the whole detection list of an image in one transaction.
// Image ids on the given detections are ignored.
func (r *DetectionRepository) Replace(imageID int64, detections []model.Detection) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM detections WHERE image_id = ?`, imageID); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	batch := make([]model.Detection, len(detections))
	for i, d := range detections {
		d.ImageID = imageID
		batch[i] = d
	}
	if err := insertAll(tx, batch); err != nil {
		return err
	}

	return tx.Commit()
}

// Delete removes a single detection by id.
func (r *DetectionRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM detections WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete detection: %w", err)
	}
	return nil
}

// DeleteByImageID removes all detections for a specific image.
func (r *DetectionRepository) DeleteByImageID(imageID int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM detections WHERE image_id = ?`, imageID); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}
	return nil
}

// ReplaceByMethod swaps the detections of an image produced by one method in
// one transaction. Detections of other methods are kept. Image ids and methods
// on the given detections are overwritten.
func (r *DetectionRepository) ReplaceByMethod(imageID int64, method string, detections []model.Detection) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM detections WHERE image_id = ? AND method = ?`, imageID, method); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	batch := make([]model.Detection, len(detections))
	for i, d := range detections {
		d.ImageID = imageID
		d.Method = method
		batch[i] = d
	}
	if err := insertAll(tx, batch); err != nil {
		return err
	}

	return tx.Commit()
}
