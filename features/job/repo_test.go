package job_test

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"textvault/features/job"
)

func TestPostgresRepo_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)

	j := &job.Job{
		UploadID: "u1",
		Handler:  "ingestion-worker",
		Payload:  json.RawMessage(`{"upload_id":"u1"}`),
		Error:    "embedding quota",
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO failed_jobs (upload_id, handler, payload, error) VALUES ($1, $2, $3, $4) RETURNING id, created_at, retries")).
		WithArgs(j.UploadID, j.Handler, j.Payload, j.Error).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "retries"}).AddRow("j1", time.Now(), 0))

	err = repo.Save(context.Background(), j)
	assert.NoError(t, err)
	assert.Equal(t, "j1", j.ID)
}

func TestPostgresRepo_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)

	rows := sqlmock.NewRows([]string{"id", "upload_id", "handler", "payload", "error", "retries", "created_at"}).
		AddRow("j1", "u1", "ingestion-worker", []byte(`{"upload_id":"u1"}`), "boom", 0, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, upload_id, handler, payload, error, retries, created_at FROM failed_jobs ORDER BY created_at DESC")).
		WillReturnRows(rows)

	jobs, err := repo.List(context.Background())
	assert.NoError(t, err)
	assert.Len(t, jobs, 1)
	assert.Equal(t, "u1", jobs[0].UploadID)
}

func TestPostgresRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)

	rows := sqlmock.NewRows([]string{"id", "upload_id", "handler", "payload", "error", "retries", "created_at"}).
		AddRow("j1", "u1", "ingestion-worker", []byte(`{}`), "boom", 1, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, upload_id, handler, payload, error, retries, created_at FROM failed_jobs WHERE id = $1")).
		WithArgs("j1").
		WillReturnRows(rows)

	j, err := repo.Get(context.Background(), "j1")
	assert.NoError(t, err)
	assert.Equal(t, "j1", j.ID)
	assert.Equal(t, 1, j.Retries)
}

func TestPostgresRepo_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM failed_jobs WHERE id = $1")).
		WithArgs("j1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Delete(context.Background(), "j1"))
}

func TestPostgresRepo_Count(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM failed_jobs")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.Count(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 4, count)
}
