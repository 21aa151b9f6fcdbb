package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
)

// Record is the on-disk form of a job
type Record struct {
	Job    Job               `json:"job"`
	Meta   *model.Meta       `json:"meta,omitempty"`
	Stats  *model.JobMetrics `json:"stats,omitempty"`
	Result *model.JobResult  `json:"result,omitempty"`
}

// FileStore keeps content-addressed blobs and JSON job records under a directory
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, persistErr("file store", errors.New("directory is required"))
	}
	for _, sub := range []string{"blobs", "jobs"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, persistErr("create store directory", err)
		}
	}
	return &FileStore{dir: dir}, nil
}

// PutBlob stores data once per content hash and returns a file URL
func (s *FileStore) PutBlob(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", persistErr("put blob", err)
	}
	path := filepath.Join(s.dir, "blobs", blobKey(data))
	if _, err := os.Stat(path); err != nil {
		if err := writeAtomic(path, data); err != nil {
			return "", persistErr("put blob", err)
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + filepath.ToSlash(abs), nil
}

// CreateJob writes a running job record
func (s *FileStore) CreateJob(ctx context.Context, name, blobURL string) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, persistErr("create job", err)
	}
	rec := Record{Job: Job{
		ID:        uuid.NewString(),
		Name:      name,
		BlobURL:   blobURL,
		Status:    StatusRunning,
		CreatedAt: time.Now().UTC(),
	}}
	if err := s.write(rec); err != nil {
		return nil, persistErr("create job", err)
	}
	return &rec.Job, nil
}

// CompleteJob attaches the result to an existing job record
func (s *FileStore) CompleteJob(ctx context.Context, jobID string, result *model.JobResult, meta model.Meta, stats model.JobMetrics) error {
	if err := ctx.Err(); err != nil {
		return persistErr("complete job", err)
	}
	rec, err := s.Load(jobID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	rec.Job.Status = StatusCompleted
	rec.Job.CompletedAt = &now
	rec.Meta = &meta
	rec.Stats = &stats
	rec.Result = result
	if err := s.write(*rec); err != nil {
		return persistErr("complete job", err)
	}
	return nil
}

// FailJob closes a job record that could not produce a result
func (s *FileStore) FailJob(ctx context.Context, jobID string, meta model.Meta, reason string) error {
	if err := ctx.Err(); err != nil {
		return persistErr("fail job", err)
	}
	rec, err := s.Load(jobID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	rec.Job.Status = StatusFailed
	rec.Job.Error = reason
	rec.Job.CompletedAt = &now
	rec.Meta = &meta
	if err := s.write(*rec); err != nil {
		return persistErr("fail job", err)
	}
	return nil
}

// Load reads a job record
func (s *FileStore) Load(jobID string) (*Record, error) {
	data, err := os.ReadFile(s.jobPath(jobID))
	if err != nil {
		return nil, persistErr("load job", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, persistErr("load job", err)
	}
	return &rec, nil
}

// Close is a no-op
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) jobPath(jobID string) string {
	return filepath.Join(s.dir, "jobs", filepath.Base(jobID)+".json")
}

func (s *FileStore) write(rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return writeAtomic(s.jobPath(rec.Job.ID), data)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
