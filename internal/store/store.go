package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
)

// ErrPersistence wraps every store failure. Callers log it and carry on.
var ErrPersistence = errors.New("persistence failure")

// Job statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Job is a persisted extraction job record
type Job struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	BlobURL     string     `json:"blob_url"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Store persists source documents and job records
type Store interface {
	PutBlob(ctx context.Context, data []byte) (string, error)
	CreateJob(ctx context.Context, name, blobURL string) (*Job, error)
	CompleteJob(ctx context.Context, jobID string, result *model.JobResult, meta model.Meta, stats model.JobMetrics) error
	FailJob(ctx context.Context, jobID string, meta model.Meta, reason string) error
	Close() error
}

// NewStore creates the store selected by cfg.Driver. An empty driver or
// "none" disables persistence and returns a nil Store.
func NewStore(cfg model.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "file":
		s, err := NewFileStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres", "postgresql":
		s, err := NewPostgresStore(cfg.DSN, cfg.MaxOpenConns)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s (supported: file, postgres)", cfg.Driver)
	}
}

// blobKey is the content address of data
func blobKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
