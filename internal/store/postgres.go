package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS document_blobs (
	sha256     TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	size       INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS extraction_jobs (
	id           UUID PRIMARY KEY,
	name         TEXT NOT NULL,
	blob_url     TEXT NOT NULL,
	status       TEXT NOT NULL,
	error        TEXT,
	result       JSONB,
	meta         JSONB,
	stats        JSONB,
	created_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);
ALTER TABLE extraction_jobs ADD COLUMN IF NOT EXISTS error TEXT;`

// PostgresStore keeps blobs and job records in PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool and creates the tables if needed
func NewPostgresStore(dsn string, maxOpenConns int) (*PostgresStore, error) {
	if dsn == "" {
		return nil, persistErr("postgres store", errors.New("dsn is required"))
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, persistErr("open postgres", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	s := NewPostgresStoreWithDB(db)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreWithDB wraps an existing pool without migrating
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return persistErr("migrate", err)
	}
	return nil
}

// PutBlob stores data once per content hash
func (s *PostgresStore) PutBlob(ctx context.Context, data []byte) (string, error) {
	key := blobKey(data)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO document_blobs (sha256, data, size) VALUES ($1, $2, $3) ON CONFLICT (sha256) DO NOTHING`,
		key, data, len(data))
	if err != nil {
		return "", persistErr("put blob", err)
	}
	return "pg://blobs/" + key, nil
}

// CreateJob inserts a running job
func (s *PostgresStore) CreateJob(ctx context.Context, name, blobURL string) (*Job, error) {
	job := &Job{
		ID:        uuid.NewString(),
		Name:      name,
		BlobURL:   blobURL,
		Status:    StatusRunning,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extraction_jobs (id, name, blob_url, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
		job.ID, job.Name, job.BlobURL, job.Status, job.CreatedAt)
	if err != nil {
		return nil, persistErr("create job", err)
	}
	return job, nil
}

// CompleteJob stores the result, meta and stats as JSONB
func (s *PostgresStore) CompleteJob(ctx context.Context, jobID string, result *model.JobResult, meta model.Meta, stats model.JobMetrics) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return persistErr("marshal result", err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return persistErr("marshal meta", err)
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return persistErr("marshal stats", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE extraction_jobs SET status = $2, result = $3, meta = $4, stats = $5, completed_at = $6 WHERE id = $1`,
		jobID, StatusCompleted, resultJSON, metaJSON, statsJSON, time.Now().UTC())
	if err != nil {
		return persistErr("complete job", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistErr("complete job", err)
	}
	if n == 0 {
		return persistErr("complete job", fmt.Errorf("job %s not found", jobID))
	}
	return nil
}

// FailJob marks a job failed and records why
func (s *PostgresStore) FailJob(ctx context.Context, jobID string, meta model.Meta, reason string) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return persistErr("marshal meta", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE extraction_jobs SET status = $2, error = $3, meta = $4, completed_at = $5 WHERE id = $1`,
		jobID, StatusFailed, reason, metaJSON, time.Now().UTC())
	if err != nil {
		return persistErr("fail job", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistErr("fail job", err)
	}
	if n == 0 {
		return persistErr("fail job", fmt.Errorf("job %s not found", jobID))
	}
	return nil
}

// Close closes the pool
func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
