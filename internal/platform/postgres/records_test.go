package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordInsert(t *testing.T) {
	id := uuid.New()
	created := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	query, args, err := NewRecord().
		Set("job_uuid", ID(id)).
		Set("job_status", String("PENDING")).
		Set("task_count", Int(0)).
		Set("creation_time", Timestamp(created)).
		Insert("jobs")
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO jobs (job_uuid, job_status, task_count, creation_time) VALUES ($1, $2, $3, $4)",
		query)
	require.Len(t, args, 4)
	assert.Equal(t, id, args[0])
	assert.Equal(t, "PENDING", args[1])
	assert.Equal(t, int64(0), args[2])
	assert.Equal(t, created, args[3])
}

func TestRecordTypedEncoders(t *testing.T) {
	query, args, err := NewRecord().
		Set("enabled", Bool(true)).
		Set("fields", JSON(map[string]any{"domain": "finance"})).
		Set("completion_time", NullableTimestamp(nil)).
		Set("start_time", Timestamp(time.Time{})).
		Insert("settings")
	require.NoError(t, err)

	assert.Contains(t, query, "VALUES ($1, $2, $3, $4)")
	assert.Equal(t, true, args[0])
	assert.JSONEq(t, `{"domain":"finance"}`, string(args[1].([]byte)))
	assert.Nil(t, args[2])
	assert.Nil(t, args[3]) // zero time encodes as NULL
}

func TestRecordInsertEmpty(t *testing.T) {
	_, _, err := NewRecord().Insert("jobs")
	assert.Error(t, err)
}

func TestRecordJSONEncodeError(t *testing.T) {
	_, _, err := NewRecord().
		Set("fields", JSON(make(chan int))).
		Insert("configs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fields")
}
