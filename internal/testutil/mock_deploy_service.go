package testutil

import (
	"context"

	"github.com/haatos/simple-cd/internal/service"
	"github.com/haatos/simple-cd/internal/store"
	"github.com/stretchr/testify/mock"
)

type MockDeployService struct {
	mock.Mock
}

func (m *MockDeployService) CreateTarget(
	ctx context.Context,
	t *store.Target,
) (*store.Target, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Target), args.Error(1)
}

func (m *MockDeployService) UpdateTarget(ctx context.Context, t *store.Target) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockDeployService) UpdateTargetSchedule(
	ctx context.Context,
	id int64,
	schedule, branch *string,
) error {
	args := m.Called(ctx, id, schedule, branch)
	return args.Error(0)
}

func (m *MockDeployService) UpdateTargetScheduleJobID(
	ctx context.Context,
	id int64,
	jobID *string,
) error {
	args := m.Called(ctx, id, jobID)
	return args.Error(0)
}

func (m *MockDeployService) DeleteTarget(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDeployService) GetTargetByID(
	ctx context.Context,
	id int64,
) (*store.Target, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Target), args.Error(1)
}

func (m *MockDeployService) ListTargets(ctx context.Context) ([]*store.Target, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.Target), args.Error(1)
}

func (m *MockDeployService) ListScheduledTargets(ctx context.Context) ([]*store.Target, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.Target), args.Error(1)
}

func (m *MockDeployService) CollectRunArtifacts(
	ctx context.Context,
	targetID, runID int64,
) (string, error) {
	args := m.Called(ctx, targetID, runID)
	return args.String(0), args.Error(1)
}

func (m *MockDeployService) CreateRun(
	ctx context.Context,
	targetID int64,
	branch string,
) (*store.Run, error) {
	args := m.Called(ctx, targetID, branch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Run), args.Error(1)
}

func (m *MockDeployService) DeleteRun(ctx context.Context, runID int64) error {
	args := m.Called(ctx, runID)
	return args.Error(0)
}

func (m *MockDeployService) GetRunByID(ctx context.Context, runID int64) (*store.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Run), args.Error(1)
}

func (m *MockDeployService) ListLatestTargetRuns(
	ctx context.Context,
	id, limit int64,
) ([]store.Run, error) {
	args := m.Called(ctx, id, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.Run), args.Error(1)
}

func (m *MockDeployService) ListTargetRunsPaginated(
	ctx context.Context,
	id, limit, offset int64,
) ([]store.Run, error) {
	args := m.Called(ctx, id, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.Run), args.Error(1)
}

func (m *MockDeployService) GetTargetRunCount(ctx context.Context, id int64) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDeployService) InitializeRunQueues(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDeployService) GetTargetRunQueue(id int64) (*service.RunQueue, bool) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*service.RunQueue), args.Bool(1)
}

func (m *MockDeployService) EnqueueRun(run *store.Run) error {
	args := m.Called(run)
	return args.Error(0)
}

func (m *MockDeployService) ShutdownAll() {
	m.Called()
}
