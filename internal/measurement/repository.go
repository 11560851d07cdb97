package measurement

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/geocontrol/geocontrol-core/internal/infrastructure/database"
)

// timeLayout is fixed-width so that the text column sorts chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Repository persists measurements by sensor row id.
type Repository interface {
	// Append stores ms for the sensor in a single transaction.
	Append(ctx context.Context, sensorID int64, ms []Measurement) error

	// ListBySensor returns the sensor's measurements inside w, oldest first.
	ListBySensor(ctx context.Context, sensorID int64, w Window) ([]Measurement, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed measurement repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Append inserts every measurement with its timestamp normalised to UTC.
func (r *SQLiteRepository) Append(ctx context.Context, sensorID int64, ms []Measurement) error {
	if len(ms) == 0 {
		return nil
	}
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO measurements (sensor_id, created_at, value) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing measurement insert: %w", err)
		}
		defer stmt.Close()

		for _, m := range ms {
			if _, err := stmt.ExecContext(ctx, sensorID, formatTime(m.CreatedAt), m.Value); err != nil {
				return fmt.Errorf("inserting measurement for sensor %d: %w", sensorID, err)
			}
		}
		return nil
	})
}

// ListBySensor returns the sensor's measurements inside w, oldest first.
// An empty window returns an empty slice without touching the store.
func (r *SQLiteRepository) ListBySensor(ctx context.Context, sensorID int64, w Window) ([]Measurement, error) {
	ms := make([]Measurement, 0)
	if w.Empty() {
		return ms, nil
	}

	query := `SELECT created_at, value FROM measurements WHERE sensor_id = ?`
	args := []any{sensorID}
	if w.Start != nil {
		query += ` AND created_at >= ?`
		args = append(args, formatTime(*w.Start))
	}
	if w.End != nil {
		query += ` AND created_at <= ?`
		args = append(args, formatTime(*w.End))
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying measurements for sensor %d: %w", sensorID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var m Measurement
		var createdAt string
		if err := rows.Scan(&createdAt, &m.Value); err != nil {
			return nil, fmt.Errorf("scanning measurement row: %w", err)
		}
		if m.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing measurement time %q: %w", createdAt, err)
		}
		ms = append(ms, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating measurement rows: %w", err)
	}
	return ms, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
