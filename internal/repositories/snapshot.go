package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotistats/internal/models"
	"github.com/desertthunder/spotistats/internal/shared"
)

const snapshotColumns = "id, sequence, kind, time_range, items, taken_at, created_at, updated_at, deleted_at"

// SnapshotRepository implements models.Repository[*models.Snapshot].
//
// Items are stored as a JSON array in a single column.
type SnapshotRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.Snapshot] = (*SnapshotRepository)(nil)

// NewSnapshotRepository creates a new SnapshotRepository with the given database connection
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Create inserts a new snapshot with generated ID and sequence
func (r *SnapshotRepository) Create(snapshot *models.Snapshot) error {
	sequence, err := NextSequence(r.db, "snapshots")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	snapshot.SetID(shared.GenerateID())
	snapshot.SetSequence(sequence)

	if err := snapshot.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	items, err := json.Marshal(snapshot.Items())
	if err != nil {
		return fmt.Errorf("failed to encode snapshot items: %w", err)
	}

	query := `
		INSERT INTO snapshots (id, sequence, kind, time_range, items, taken_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		snapshot.ID(),
		sequence,
		string(snapshot.Kind()),
		string(snapshot.TimeRange()),
		string(items),
		snapshot.TakenAt(),
		snapshot.CreatedAt(),
		snapshot.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return nil
}

// Get retrieves a snapshot by ID, excluding soft-deleted snapshots
func (r *SnapshotRepository) Get(id string) (*models.Snapshot, error) {
	query := "SELECT " + snapshotColumns + " FROM snapshots WHERE id = ? AND deleted_at IS NULL"
	return r.scan(r.db.QueryRow(query, id))
}

// Latest returns the most recent snapshot for kind and range.
func (r *SnapshotRepository) Latest(kind models.MusicType, timeRange models.TimeRange) (*models.Snapshot, error) {
	query := "SELECT " + snapshotColumns + `
		FROM snapshots
		WHERE kind = ? AND time_range = ? AND deleted_at IS NULL
		ORDER BY taken_at DESC, sequence DESC
		LIMIT 1`
	return r.scan(r.db.QueryRow(query, string(kind), string(timeRange)))
}

// Delete soft-deletes a snapshot by ID
func (r *SnapshotRepository) Delete(id string) error {
	result, err := r.db.Exec("UPDATE snapshots SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSnapshotNotFound, id)
	}

	return nil
}

// List retrieves snapshots matching criteria ("kind", "time_range", "limit"), newest first.
func (r *SnapshotRepository) List(criteria map[string]any) ([]*models.Snapshot, error) {
	query := "SELECT " + snapshotColumns + " FROM snapshots WHERE deleted_at IS NULL"
	args := []any{}

	if kind, ok := criteria["kind"].(string); ok && kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}

	if timeRange, ok := criteria["time_range"].(string); ok && timeRange != "" {
		query += " AND time_range = ?"
		args = append(args, timeRange)
	}

	query += " ORDER BY taken_at DESC, sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.Snapshot
	for rows.Next() {
		snapshot, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return snapshots, nil
}

func (r *SnapshotRepository) scan(row scanner) (*models.Snapshot, error) {
	var (
		id        string
		sequence  int
		kind      string
		timeRange string
		rawItems  string
		takenAt   time.Time
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := row.Scan(&id, &sequence, &kind, &timeRange, &rawItems, &takenAt, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	var items []models.RankedItem
	if err := json.Unmarshal([]byte(rawItems), &items); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot items: %w", err)
	}

	snapshot := models.NewSnapshot(models.MusicType(kind), models.TimeRange(timeRange), takenAt, items)
	snapshot.SetID(id)
	snapshot.SetSequence(sequence)
	snapshot.SetCreatedAt(createdAt)
	snapshot.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		snapshot.SetDeletedAt(&deletedAt.Time)
	}

	return snapshot, nil
}
