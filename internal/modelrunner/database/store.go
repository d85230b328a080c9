package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/mumuon/modelrunner/internal/modelrunner/common"
)

// Config mirrors the tile-service's DatabaseConfig: a Postgres DSN built
// from discrete fields rather than a single connection string, matching
// how the rest of this codebase's configuration is assembled from
// environment variables.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c Config) dsn() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Store wraps the shared connection pool both JobTable and RegionTable
// operate over.
type Store struct {
	conn *sql.DB
}

// Open connects to Postgres, pings it, and tunes the connection pool the
// way the tile-service's NewDatabase does.
func Open(cfg Config) (*Store, error) {
	db, err := sql.Open("postgres", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	slog.Info("database connected successfully")

	return &Store{conn: db}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// JobTable persists JobItem rows and applies the conditional counter
// increments region completions drive.
type JobTable struct {
	store *Store
}

func NewJobTable(store *Store) *JobTable {
	return &JobTable{store: store}
}

// CreateJobItem persists a new job with region_count=0, before the image's
// regions have been computed.
func (t *JobTable) CreateJobItem(ctx context.Context, jobID, imageID string) error {
	_, err := t.store.conn.ExecContext(ctx, `
		INSERT INTO job_item (job_id, image_id, region_count, region_success, region_error, status)
		VALUES ($1, $2, 0, 0, 0, 'IN_PROGRESS')
		ON CONFLICT (image_id) DO NOTHING
	`, jobID, imageID)
	if err != nil {
		return fmt.Errorf("failed to create job item: %w", err)
	}
	return nil
}

// SetRegionCount records the number of regions an image was divided into,
// once tiling has run.
func (t *JobTable) SetRegionCount(ctx context.Context, imageID string, regionCount int) error {
	_, err := t.store.conn.ExecContext(ctx, `
		UPDATE job_item SET region_count = $1 WHERE image_id = $2
	`, regionCount, imageID)
	if err != nil {
		return fmt.Errorf("failed to set region count: %w", err)
	}
	return nil
}

// RecordRegionOutcome conditionally increments region_success or
// region_error by exactly 1, guarded by the invariant
// region_success + region_error < region_count. The caller supplies
// regionID so the database-level uniqueness check in region_completions
// rejects a retried completion for the same region.
func (t *JobTable) RecordRegionOutcome(ctx context.Context, imageID, regionID string, succeeded bool) error {
	tx, err := t.store.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO region_completions (image_id, region_id) VALUES ($1, $2)
	`, imageID, regionID); err != nil {
		return &common.ConditionalUpdateConflictError{Table: "region_completions", Key: regionID}
	}

	column := "region_success"
	if !succeeded {
		column = "region_error"
	}
	query := fmt.Sprintf(`
		UPDATE job_item SET %s = %s + 1
		WHERE image_id = $1 AND region_success + region_error < region_count
	`, column, column)

	result, err := tx.ExecContext(ctx, query, imageID)
	if err != nil {
		return fmt.Errorf("failed to update job item counters: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return &common.ConditionalUpdateConflictError{Table: "job_item", Key: imageID}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit region outcome: %w", err)
	}
	return nil
}

// RecordRegionOutcomeWithRetry retries RecordRegionOutcome up to maxRetries
// times on ConditionalUpdateConflictError, per the error table's
// read-modify-write retry policy. A conflict from region_completions (the
// region already completed) is not retried — it signals an idempotent
// duplicate, not a transient race.
func (t *JobTable) RecordRegionOutcomeWithRetry(ctx context.Context, imageID, regionID string, succeeded bool, maxRetries int) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = t.RecordRegionOutcome(ctx, imageID, regionID, succeeded)
		if lastErr == nil {
			return nil
		}
		var conflict *common.ConditionalUpdateConflictError
		if !isConditionalConflict(lastErr, &conflict) {
			return lastErr
		}
		if conflict.Table == "region_completions" {
			return nil
		}
	}
	return lastErr
}

func isConditionalConflict(err error, target **common.ConditionalUpdateConflictError) bool {
	if c, ok := err.(*common.ConditionalUpdateConflictError); ok {
		*target = c
		return true
	}
	return false
}

// GetJobItem reads back the current counters for status determination.
func (t *JobTable) GetJobItem(ctx context.Context, imageID string) (*JobItem, error) {
	item := &JobItem{}
	err := t.store.conn.QueryRowContext(ctx, `
		SELECT job_id, image_id, region_count, region_success, region_error, status
		FROM job_item WHERE image_id = $1
	`, imageID).Scan(&item.JobID, &item.ImageID, &item.RegionCount, &item.RegionSuccess, &item.RegionError, &item.Status)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job item not found: %s", imageID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query job item: %w", err)
	}
	return item, nil
}

// SetJobStatus finalizes a job's terminal status and processing_duration.
func (t *JobTable) SetJobStatus(ctx context.Context, imageID, status string, duration time.Duration) error {
	_, err := t.store.conn.ExecContext(ctx, `
		UPDATE job_item SET status = $1, processing_duration_ms = $2 WHERE image_id = $3
	`, status, duration.Milliseconds(), imageID)
	if err != nil {
		return fmt.Errorf("failed to set job status: %w", err)
	}
	return nil
}

// RegionTable persists RegionRequestItem rows. Unlike JobItem, a region's
// counters are owned by a single region processor, so updates are plain
// read-then-write rather than conditional.
type RegionTable struct {
	store *Store
}

func NewRegionTable(store *Store) *RegionTable {
	return &RegionTable{store: store}
}

// CreateRegionRequestItem persists a region's initial tile allocation.
func (t *RegionTable) CreateRegionRequestItem(ctx context.Context, item *RegionRequestItem) error {
	_, err := t.store.conn.ExecContext(ctx, `
		INSERT INTO region_request_item
			(job_id, image_id, region_id, total_tiles, succeeded_tile_count, succeeded_tiles, failed_tile_count, failed_tiles)
		VALUES ($1, $2, $3, $4, 0, '[]', 0, '[]')
		ON CONFLICT (image_id, region_id) DO NOTHING
	`, item.JobID, item.ImageID, item.RegionID, item.TotalTiles)
	if err != nil {
		return fmt.Errorf("failed to create region request item: %w", err)
	}
	return nil
}

// RecordTileOutcome appends a tile key to succeeded_tiles or failed_tiles
// and bumps the matching count.
func (t *RegionTable) RecordTileOutcome(ctx context.Context, imageID, regionID, tileKey string, succeeded bool) error {
	countColumn, listColumn := "succeeded_tile_count", "succeeded_tiles"
	if !succeeded {
		countColumn, listColumn = "failed_tile_count", "failed_tiles"
	}

	var current []byte
	if err := t.store.conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM region_request_item WHERE image_id = $1 AND region_id = $2
	`, listColumn), imageID, regionID).Scan(&current); err != nil {
		return fmt.Errorf("failed to read tile list: %w", err)
	}

	var tiles []string
	if err := json.Unmarshal(current, &tiles); err != nil {
		return fmt.Errorf("failed to decode tile list: %w", err)
	}
	tiles = append(tiles, tileKey)
	encoded, err := json.Marshal(tiles)
	if err != nil {
		return fmt.Errorf("failed to encode tile list: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE region_request_item SET %s = %s + 1, %s = $1
		WHERE image_id = $2 AND region_id = $3
	`, countColumn, countColumn, listColumn)
	if _, err := t.store.conn.ExecContext(ctx, query, encoded, imageID, regionID); err != nil {
		return fmt.Errorf("failed to update tile outcome: %w", err)
	}
	return nil
}

// FinalizeRegion writes the final processing_duration once every tile has
// reported an outcome.
func (t *RegionTable) FinalizeRegion(ctx context.Context, imageID, regionID string, duration time.Duration) error {
	_, err := t.store.conn.ExecContext(ctx, `
		UPDATE region_request_item SET processing_duration_ms = $1
		WHERE image_id = $2 AND region_id = $3
	`, duration.Milliseconds(), imageID, regionID)
	if err != nil {
		return fmt.Errorf("failed to finalize region: %w", err)
	}
	return nil
}

// GetRegionRequestItem reads back a region's current counters.
func (t *RegionTable) GetRegionRequestItem(ctx context.Context, imageID, regionID string) (*RegionRequestItem, error) {
	item := &RegionRequestItem{ImageID: imageID, RegionID: regionID}
	var succeeded, failed []byte
	err := t.store.conn.QueryRowContext(ctx, `
		SELECT job_id, total_tiles, succeeded_tile_count, succeeded_tiles, failed_tile_count, failed_tiles
		FROM region_request_item WHERE image_id = $1 AND region_id = $2
	`, imageID, regionID).Scan(&item.JobID, &item.TotalTiles, &item.SucceededTileCount, &succeeded, &item.FailedTileCount, &failed)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("region request item not found: %s/%s", imageID, regionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query region request item: %w", err)
	}
	if err := json.Unmarshal(succeeded, &item.SucceededTiles); err != nil {
		return nil, fmt.Errorf("failed to decode succeeded tiles: %w", err)
	}
	if err := json.Unmarshal(failed, &item.FailedTiles); err != nil {
		return nil, fmt.Errorf("failed to decode failed tiles: %w", err)
	}
	return item, nil
}
