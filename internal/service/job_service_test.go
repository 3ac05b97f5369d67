package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagworks/tagworks-api/internal/domain"
	"github.com/tagworks/tagworks-api/internal/queue"
	"github.com/tagworks/tagworks-api/internal/store"
)

const testSplitURL = "https://tagworks.example.com/api/jobs/split"

type jobServiceFixture struct {
	jobStore    *fakeJobStore
	shardStore  *fakeShardStore
	configStore *fakeConfigStore
	workQueue   *fakeWorkQueue
	service     JobService
	cfg         *domain.TagConfig
}

func newJobServiceFixture(t *testing.T) *jobServiceFixture {
	t.Helper()

	f := &jobServiceFixture{
		jobStore:    newFakeJobStore(),
		shardStore:  newFakeShardStore(),
		configStore: newFakeConfigStore(),
		workQueue:   newFakeWorkQueue(),
	}

	var err error
	f.service, err = NewJobService(f.jobStore, f.shardStore, f.configStore, f.workQueue, testSplitURL, nil)
	require.NoError(t, err)

	f.cfg, err = domain.NewTagConfig(
		domain.ConfigTypeDynamicTable,
		"tagger@example.iam.gserviceaccount.com",
		map[string]any{"data_domain": "finance"},
		"bigquery/project/ds/*", "",
		uuid.New(), "data_governance", "my-project", "us-central1",
		domain.RefreshModeOnDemand, 0, "",
	)
	require.NoError(t, err)
	require.NoError(t, f.configStore.Create(context.Background(), f.cfg))

	return f
}

func TestCreateJob_EnqueuesSplitWork(t *testing.T) {
	f := newJobServiceFixture(t)
	ctx := context.Background()

	job, err := f.service.CreateJob(ctx, f.cfg, map[string]any{"requested_by": "pipeline-7"})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Zero(t, job.TaskCount)

	dispatches := f.workQueue.all()
	require.Len(t, dispatches, 1)
	// The job ID is the queue dedup name for the split task.
	assert.Equal(t, job.ID, dispatches[0].TaskID)
	assert.Equal(t, testSplitURL, dispatches[0].TargetURL)

	payload, ok := dispatches[0].Payload.(SplitWorkPayload)
	require.True(t, ok)
	assert.Equal(t, job.ID, payload.JobID)
	assert.Equal(t, f.cfg.ID, payload.ConfigID)
	assert.Equal(t, f.cfg.Type, payload.ConfigType)

	meta, ok := f.jobStore.metadata[job.ID]
	require.True(t, ok)
	assert.Equal(t, "pipeline-7", meta.Metadata["requested_by"])
}

func TestCreateJob_EnqueueFailure(t *testing.T) {
	f := newJobServiceFixture(t)
	f.workQueue.rejectFn = func(queue.Dispatch) bool { return true }

	_, err := f.service.CreateJob(context.Background(), f.cfg, nil)
	require.Error(t, err)
}

func TestGetStatus_PercentComplete(t *testing.T) {
	f := newJobServiceFixture(t)
	ctx := context.Background()

	job, err := f.service.CreateJob(ctx, f.cfg, nil)
	require.NoError(t, err)

	require.NoError(t, f.jobStore.SetTaskCount(ctx, job.ID, 3))
	require.NoError(t, f.jobStore.UpdateProgress(ctx, job.ID, 1, 1, 0))

	report, err := f.service.GetStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusRunning, report.Status)
	assert.InDelta(t, 33.33, report.PercentComplete, 0.001)
}

func TestGetStatus_UnknownJob(t *testing.T) {
	f := newJobServiceFixture(t)

	_, err := f.service.GetStatus(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestComputeCompletion_PartialProgress(t *testing.T) {
	f := newJobServiceFixture(t)
	ctx := context.Background()

	job, err := f.service.CreateJob(ctx, f.cfg, nil)
	require.NoError(t, err)
	require.NoError(t, f.jobStore.SetTaskCount(ctx, job.ID, 3))

	shard, err := domain.NewShard(job.ID, 0)
	require.NoError(t, err)
	require.NoError(t, f.shardStore.Create(ctx, shard))
	require.NoError(t, f.shardStore.ApplyDelta(ctx, shard.ID, domain.ShardDelta{Success: 2}))

	report, err := f.service.ComputeCompletion(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusRunning, report.Status)
	assert.Equal(t, 2, report.TasksRan)
	assert.InDelta(t, 66.67, report.PercentComplete, 0.001)
	assert.Nil(t, report.CompletionTime)
}

func TestComputeCompletion_TerminalWithFailure(t *testing.T) {
	f := newJobServiceFixture(t)
	ctx := context.Background()

	job, err := f.service.CreateJob(ctx, f.cfg, nil)
	require.NoError(t, err)
	require.NoError(t, f.jobStore.SetTaskCount(ctx, job.ID, 3))

	shard, err := domain.NewShard(job.ID, 0)
	require.NoError(t, err)
	require.NoError(t, f.shardStore.Create(ctx, shard))
	require.NoError(t, f.shardStore.ApplyDelta(ctx, shard.ID, domain.ShardDelta{Success: 2, Failed: 1}))

	report, err := f.service.ComputeCompletion(ctx, job.ID)
	require.NoError(t, err)
	// Any failed task makes the terminal status ERROR.
	assert.Equal(t, domain.JobStatusError, report.Status)
	assert.Equal(t, 3, report.TasksRan)
	assert.Equal(t, 2, report.TasksSuccess)
	assert.Equal(t, 1, report.TasksFailed)
	assert.Equal(t, float64(100), report.PercentComplete)
	require.NotNil(t, report.CompletionTime)
}

func TestComputeCompletion_CompletionTimeSetOnce(t *testing.T) {
	f := newJobServiceFixture(t)
	ctx := context.Background()

	job, err := f.service.CreateJob(ctx, f.cfg, nil)
	require.NoError(t, err)
	require.NoError(t, f.jobStore.SetTaskCount(ctx, job.ID, 1))

	shard, err := domain.NewShard(job.ID, 0)
	require.NoError(t, err)
	require.NoError(t, f.shardStore.Create(ctx, shard))
	require.NoError(t, f.shardStore.ApplyDelta(ctx, shard.ID, domain.ShardDelta{Success: 1}))

	first, err := f.service.ComputeCompletion(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, first.CompletionTime)

	time.Sleep(5 * time.Millisecond)

	second, err := f.service.ComputeCompletion(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, second.CompletionTime)
	assert.True(t, first.CompletionTime.Equal(*second.CompletionTime))
}

func TestComputeCompletion_ZeroTaskCountNeverTerminal(t *testing.T) {
	f := newJobServiceFixture(t)
	ctx := context.Background()

	job, err := f.service.CreateJob(ctx, f.cfg, nil)
	require.NoError(t, err)

	// Explosion has not recorded a count yet; whatever the shard sums say,
	// the job must not complete.
	report, err := f.service.ComputeCompletion(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusRunning, report.Status)
	assert.Nil(t, report.CompletionTime)
	assert.Zero(t, report.PercentComplete)
}

func TestGetConfigByJob(t *testing.T) {
	f := newJobServiceFixture(t)
	ctx := context.Background()

	job, err := f.service.CreateJob(ctx, f.cfg, nil)
	require.NoError(t, err)

	cfg, err := f.service.GetConfigByJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, f.cfg.ID, cfg.ID)
}
