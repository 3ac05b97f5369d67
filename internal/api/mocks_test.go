package api

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tagworks/tagworks-api/internal/domain"
	"github.com/tagworks/tagworks-api/internal/service"
)

// mockJobService is a mock implementation of the service.JobService interface.
type mockJobService struct {
	createJobFn         func(ctx context.Context, cfg *domain.TagConfig, metadata map[string]any) (*domain.Job, error)
	getJobFn            func(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)
	getStatusFn         func(ctx context.Context, jobID uuid.UUID) (*service.JobStatusReport, error)
	setStatusFn         func(ctx context.Context, jobID uuid.UUID, status domain.JobStatus) error
	computeCompletionFn func(ctx context.Context, jobID uuid.UUID) (*service.JobStatusReport, error)
	listByConfigFn      func(ctx context.Context, configID uuid.UUID) ([]*domain.Job, error)
	getConfigByJobFn    func(ctx context.Context, jobID uuid.UUID) (*domain.TagConfig, error)
}

func (m *mockJobService) CreateJob(ctx context.Context, cfg *domain.TagConfig, metadata map[string]any) (*domain.Job, error) {
	return m.createJobFn(ctx, cfg, metadata)
}

func (m *mockJobService) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	return m.getJobFn(ctx, jobID)
}

func (m *mockJobService) GetStatus(ctx context.Context, jobID uuid.UUID) (*service.JobStatusReport, error) {
	return m.getStatusFn(ctx, jobID)
}

func (m *mockJobService) SetStatus(ctx context.Context, jobID uuid.UUID, status domain.JobStatus) error {
	return m.setStatusFn(ctx, jobID, status)
}

func (m *mockJobService) ComputeCompletion(ctx context.Context, jobID uuid.UUID) (*service.JobStatusReport, error) {
	return m.computeCompletionFn(ctx, jobID)
}

func (m *mockJobService) ListByConfig(ctx context.Context, configID uuid.UUID) ([]*domain.Job, error) {
	return m.listByConfigFn(ctx, configID)
}

func (m *mockJobService) GetConfigByJob(ctx context.Context, jobID uuid.UUID) (*domain.TagConfig, error) {
	return m.getConfigByJobFn(ctx, jobID)
}

// mockConfigService is a mock implementation of the service.ConfigService interface.
type mockConfigService struct {
	createConfigFn        func(ctx context.Context, cfg *domain.TagConfig) (*domain.TagConfig, error)
	getConfigFn           func(ctx context.Context, serviceAccount string, configType domain.ConfigType, id uuid.UUID) (*domain.TagConfig, error)
	listConfigsFn         func(ctx context.Context, serviceAccount string, configType domain.ConfigType, templateID uuid.UUID) ([]*domain.TagConfig, error)
	deleteConfigFn        func(ctx context.Context, serviceAccount string, configType domain.ConfigType, id uuid.UUID) error
	purgeInactiveFn       func(ctx context.Context, serviceAccount string, configType domain.ConfigType) (int, error)
	setSchedulingStatusFn func(ctx context.Context, configType domain.ConfigType, id uuid.UUID, status domain.SchedulingStatus) error
	rescheduleFn          func(ctx context.Context, cfg *domain.TagConfig, now time.Time) error
}

func (m *mockConfigService) CreateConfig(ctx context.Context, cfg *domain.TagConfig) (*domain.TagConfig, error) {
	return m.createConfigFn(ctx, cfg)
}

func (m *mockConfigService) GetConfig(ctx context.Context, serviceAccount string, configType domain.ConfigType, id uuid.UUID) (*domain.TagConfig, error) {
	return m.getConfigFn(ctx, serviceAccount, configType, id)
}

func (m *mockConfigService) ListConfigs(ctx context.Context, serviceAccount string, configType domain.ConfigType, templateID uuid.UUID) ([]*domain.TagConfig, error) {
	return m.listConfigsFn(ctx, serviceAccount, configType, templateID)
}

func (m *mockConfigService) DeleteConfig(ctx context.Context, serviceAccount string, configType domain.ConfigType, id uuid.UUID) error {
	return m.deleteConfigFn(ctx, serviceAccount, configType, id)
}

func (m *mockConfigService) PurgeInactiveConfigs(ctx context.Context, serviceAccount string, configType domain.ConfigType) (int, error) {
	return m.purgeInactiveFn(ctx, serviceAccount, configType)
}

func (m *mockConfigService) SetSchedulingStatus(ctx context.Context, configType domain.ConfigType, id uuid.UUID, status domain.SchedulingStatus) error {
	return m.setSchedulingStatusFn(ctx, configType, id, status)
}

func (m *mockConfigService) IncrementVersionAndReschedule(ctx context.Context, cfg *domain.TagConfig, now time.Time) error {
	return m.rescheduleFn(ctx, cfg, now)
}

// mockCoordinator is a mock implementation of the TaskCoordinator interface.
type mockCoordinator struct {
	explodeFn      func(ctx context.Context, job *domain.Job, items []domain.WorkItem) (int, error)
	updateStatusFn func(ctx context.Context, shardID, taskID uuid.UUID, status domain.TaskStatus) (bool, error)
}

func (m *mockCoordinator) ExplodeAndDispatch(ctx context.Context, job *domain.Job, items []domain.WorkItem) (int, error) {
	return m.explodeFn(ctx, job, items)
}

func (m *mockCoordinator) UpdateTaskStatus(ctx context.Context, shardID, taskID uuid.UUID, status domain.TaskStatus) (bool, error) {
	return m.updateStatusFn(ctx, shardID, taskID, status)
}

// mockResolver is a mock implementation of the service.WorkItemResolver interface.
type mockResolver struct {
	resolveFn func(ctx context.Context, cfg *domain.TagConfig) ([]domain.WorkItem, error)
}

func (m *mockResolver) Resolve(ctx context.Context, cfg *domain.TagConfig) ([]domain.WorkItem, error) {
	return m.resolveFn(ctx, cfg)
}

// mockScheduler is a mock implementation of the SchedulerRunner interface.
type mockScheduler struct {
	runReadyFn func(ctx context.Context, now time.Time) (int, error)
}

func (m *mockScheduler) RunReady(ctx context.Context, now time.Time) (int, error) {
	return m.runReadyFn(ctx, now)
}

// testConfig returns a valid ACTIVE config owned by the given account.
func testConfig(serviceAccount string) *domain.TagConfig {
	cfg, err := domain.NewTagConfig(
		domain.ConfigTypeDynamicTable,
		serviceAccount,
		map[string]any{"data_owner": "analytics"},
		"bigquery/project/dataset/orders",
		"",
		uuid.New(),
		"data_governance",
		"tag-project",
		"us-central1",
		domain.RefreshModeAuto,
		12,
		domain.RefreshUnitHours,
	)
	if err != nil {
		panic(err)
	}
	return cfg
}
