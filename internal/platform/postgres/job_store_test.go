package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagworks/tagworks-api/internal/domain"
	"github.com/tagworks/tagworks-api/internal/store"
)

var jobColumns = []string{
	"job_uuid", "config_uuid", "config_type", "job_status", "task_count",
	"tasks_ran", "tasks_success", "tasks_failed", "creation_time", "completion_time",
}

func TestPostgresJobStore_Create(t *testing.T) {
	db, mock := newMockDB(t)
	jobStore := NewPostgresJobStore(db, nil)

	job, err := domain.NewJob(uuid.New(), domain.ConfigTypeDynamicTable)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO jobs`).
		WithArgs(
			job.ID, job.ConfigID, string(job.ConfigType), string(job.Status),
			int64(0), int64(0), int64(0), int64(0), job.CreationTime,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = jobStore.Create(context.Background(), job)
	assert.NoError(t, err)
}

func TestPostgresJobStore_Create_InvalidJob(t *testing.T) {
	db, _ := newMockDB(t)
	jobStore := NewPostgresJobStore(db, nil)

	job := &domain.Job{ID: uuid.New(), Status: domain.JobStatusPending}

	err := jobStore.Create(context.Background(), job)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestPostgresJobStore_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	jobStore := NewPostgresJobStore(db, nil)

	jobID := uuid.New()
	configID := uuid.New()
	created := time.Now().UTC().Truncate(time.Second)
	completed := created.Add(5 * time.Minute)

	mock.ExpectQuery(`SELECT (.+) FROM jobs`).
		WithArgs(jobID).
		WillReturnRows(sqlmock.NewRows(jobColumns).AddRow(
			jobID.String(), configID.String(), "DYNAMIC_TAG_TABLE", "SUCCESS",
			2500, 2500, 2400, 100, created, completed,
		))

	job, err := jobStore.GetByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, jobID, job.ID)
	assert.Equal(t, domain.ConfigTypeDynamicTable, job.ConfigType)
	assert.Equal(t, domain.JobStatusSuccess, job.Status)
	assert.Equal(t, 2400, job.TasksSuccess)
	require.NotNil(t, job.CompletionTime)
	assert.True(t, completed.Equal(*job.CompletionTime))
}

func TestPostgresJobStore_GetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	jobStore := NewPostgresJobStore(db, nil)

	jobID := uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM jobs`).
		WithArgs(jobID).
		WillReturnRows(sqlmock.NewRows(jobColumns))

	job, err := jobStore.GetByID(context.Background(), jobID)
	assert.Nil(t, job)
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestPostgresJobStore_ListByConfig(t *testing.T) {
	db, mock := newMockDB(t)
	jobStore := NewPostgresJobStore(db, nil)

	configID := uuid.New()
	created := time.Now().UTC()

	mock.ExpectQuery(`SELECT (.+) FROM jobs`).
		WithArgs(configID).
		WillReturnRows(sqlmock.NewRows(jobColumns).
			AddRow(uuid.New().String(), configID.String(), "STATIC_TAG_ASSET", "RUNNING",
				100, 40, 38, 2, created, nil).
			AddRow(uuid.New().String(), configID.String(), "STATIC_TAG_ASSET", "SUCCESS",
				100, 100, 100, 0, created.Add(-time.Hour), created))

	jobs, err := jobStore.ListByConfig(context.Background(), configID)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, domain.JobStatusRunning, jobs[0].Status)
	assert.Nil(t, jobs[0].CompletionTime)
	assert.NotNil(t, jobs[1].CompletionTime)
}

func TestPostgresJobStore_Complete(t *testing.T) {
	db, mock := newMockDB(t)
	jobStore := NewPostgresJobStore(db, nil)

	jobID := uuid.New()
	completedAt := time.Now().UTC()

	mock.ExpectExec(`UPDATE jobs`).
		WithArgs("SUCCESS", 100, 100, 0, completedAt, jobID, "SUCCESS", "ERROR").
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := jobStore.Complete(context.Background(), jobID, domain.JobStatusSuccess, 100, 100, 0, completedAt)
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestPostgresJobStore_Complete_AlreadyTerminal(t *testing.T) {
	db, mock := newMockDB(t)
	jobStore := NewPostgresJobStore(db, nil)

	jobID := uuid.New()
	completedAt := time.Now().UTC()

	// A job that already reached a terminal status matches no rows and the
	// completion write is reported as not applied rather than an error.
	mock.ExpectExec(`UPDATE jobs`).
		WithArgs("ERROR", 100, 98, 2, completedAt, jobID, "SUCCESS", "ERROR").
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := jobStore.Complete(context.Background(), jobID, domain.JobStatusError, 100, 98, 2, completedAt)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestPostgresJobStore_SetTaskCount_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	jobStore := NewPostgresJobStore(db, nil)

	jobID := uuid.New()
	mock.ExpectExec(`UPDATE jobs SET task_count`).
		WithArgs(2500, jobID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := jobStore.SetTaskCount(context.Background(), jobID, 2500)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}
