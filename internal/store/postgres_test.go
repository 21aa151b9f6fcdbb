package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStoreWithDB(db), mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS document_blobs`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutBlob(t *testing.T) {
	s, mock := newMockStore(t)
	data := []byte("policy text")

	mock.ExpectExec(`INSERT INTO document_blobs`).
		WithArgs(blobKey(data), data, len(data)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	url, err := s.PutBlob(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "pg://blobs/"+blobKey(data), url)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutBlobError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO document_blobs`).
		WillReturnError(errors.New("connection refused"))

	_, err := s.PutBlob(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorContains(t, err, "connection refused")
}

func TestPostgresStore_CreateJob(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO extraction_jobs`).
		WithArgs(sqlmock.AnyArg(), "policy.pdf.txt", "pg://blobs/abc", StatusRunning, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	job, err := s.CreateJob(context.Background(), "policy.pdf.txt", "pg://blobs/abc")
	require.NoError(t, err)
	assert.Len(t, job.ID, 36)
	assert.Equal(t, StatusRunning, job.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteJob(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE extraction_jobs SET status`).
		WithArgs("job-1", StatusCompleted, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.CompleteJob(context.Background(), "job-1", &model.JobResult{}, model.Meta{JobID: "job-1"}, model.JobMetrics{ParsedChunks: 2})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteJobNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE extraction_jobs SET status`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.CompleteJob(context.Background(), "job-missing", &model.JobResult{}, model.Meta{}, model.JobMetrics{})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorContains(t, err, "not found")
}

func TestPostgresStore_FailJob(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE extraction_jobs SET status = \$2, error = \$3`).
		WithArgs("job-1", StatusFailed, "panic: boom", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.FailJob(context.Background(), "job-1", model.Meta{JobID: "job-1"}, "panic: boom"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FailJobNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE extraction_jobs SET status`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.FailJob(context.Background(), "job-missing", model.Meta{}, "panic: boom")
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorContains(t, err, "not found")
}
