package queue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagworks/tagworks-api/internal/config"
)

func testQueueConfig(enqueueURL string) config.QueueConfig {
	return config.QueueConfig{
		EnqueueURL:            enqueueURL,
		TaskHandlerURL:        "https://tagworks.example.com/tasks/run",
		SplitHandlerURL:       "https://tagworks.example.com/jobs/split",
		ServiceAccount:        "tagger@example.iam.gserviceaccount.com",
		SigningKey:            "test-signing-key-that-is-long-enough!!",
		DispatchParallelism:   4,
		RequestTimeoutSeconds: 5,
	}
}

func TestNewIdentitySigner_ShortKey(t *testing.T) {
	cfg := testQueueConfig("https://queue.example.com/enqueue")
	cfg.SigningKey = "too-short"

	_, err := NewIdentitySigner(cfg)
	assert.Error(t, err)
}

func TestIdentitySigner_SignAndVerify(t *testing.T) {
	signer, err := NewIdentitySigner(testQueueConfig("https://queue.example.com/enqueue"))
	require.NoError(t, err)

	token, err := signer.Sign("https://tagworks.example.com/tasks/run")
	require.NoError(t, err)

	email, err := signer.Verify(token, "https://tagworks.example.com/tasks/run")
	require.NoError(t, err)
	assert.Equal(t, "tagger@example.iam.gserviceaccount.com", email)
}

func TestIdentitySigner_Verify_WrongAudience(t *testing.T) {
	signer, err := NewIdentitySigner(testQueueConfig("https://queue.example.com/enqueue"))
	require.NoError(t, err)

	token, err := signer.Sign("https://tagworks.example.com/tasks/run")
	require.NoError(t, err)

	_, err = signer.Verify(token, "https://elsewhere.example.com/hook")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIdentitySigner_Verify_Expired(t *testing.T) {
	signer, err := NewIdentitySigner(testQueueConfig("https://queue.example.com/enqueue"))
	require.NoError(t, err)

	// Mint in the past, beyond lifetime plus clock skew.
	signer.timeFunc = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := signer.Sign("https://tagworks.example.com/tasks/run")
	require.NoError(t, err)

	signer.timeFunc = time.Now
	_, err = signer.Verify(token, "https://tagworks.example.com/tasks/run")
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestHTTPWorkQueue_Enqueue(t *testing.T) {
	var received Dispatch
	var authHeader string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testQueueConfig(srv.URL)
	signer, err := NewIdentitySigner(cfg)
	require.NoError(t, err)
	workQueue := NewHTTPWorkQueue(cfg, signer, nil)

	d := Dispatch{
		TaskID:    uuid.New(),
		TargetURL: cfg.TaskHandlerURL,
		Payload:   map[string]any{"job_uuid": uuid.New().String()},
	}

	err = workQueue.Enqueue(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, d.TaskID, received.TaskID)
	assert.Equal(t, cfg.TaskHandlerURL, received.TargetURL)

	// The bearer token must verify against the dispatch target audience.
	require.True(t, strings.HasPrefix(authHeader, "Bearer "))
	email, err := signer.Verify(strings.TrimPrefix(authHeader, "Bearer "), cfg.TaskHandlerURL)
	require.NoError(t, err)
	assert.Equal(t, cfg.ServiceAccount, email)
}

func TestHTTPWorkQueue_Enqueue_DuplicateTaskName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	cfg := testQueueConfig(srv.URL)
	signer, err := NewIdentitySigner(cfg)
	require.NoError(t, err)
	workQueue := NewHTTPWorkQueue(cfg, signer, nil)

	err = workQueue.Enqueue(context.Background(), Dispatch{TaskID: uuid.New(), TargetURL: cfg.TaskHandlerURL})
	assert.NoError(t, err)
}

func TestHTTPWorkQueue_Enqueue_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue full", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testQueueConfig(srv.URL)
	signer, err := NewIdentitySigner(cfg)
	require.NoError(t, err)
	workQueue := NewHTTPWorkQueue(cfg, signer, nil)

	err = workQueue.Enqueue(context.Background(), Dispatch{TaskID: uuid.New(), TargetURL: cfg.TaskHandlerURL})
	assert.ErrorIs(t, err, ErrDispatchRejected)
}

func TestHTTPWorkQueue_Enqueue_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	cfg := testQueueConfig(srv.URL)
	signer, err := NewIdentitySigner(cfg)
	require.NoError(t, err)
	workQueue := NewHTTPWorkQueue(cfg, signer, nil)

	err = workQueue.Enqueue(context.Background(), Dispatch{TaskID: uuid.New(), TargetURL: cfg.TaskHandlerURL})
	assert.ErrorIs(t, err, ErrDispatchRejected)
}
