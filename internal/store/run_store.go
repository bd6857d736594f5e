package store

import (
	"context"
	"time"
)

type RunStatus string

const (
	StatusQueued    RunStatus = "queued"
	StatusRunning   RunStatus = "running"
	StatusCancelled RunStatus = "cancelled"
	StatusFailed    RunStatus = "failed"
	StatusPassed    RunStatus = "passed"
)

type Run struct {
	RunID            int64 `param:"run_id"`
	RunTargetID      int64
	Branch           string
	WorkingDirectory *string
	Output           *string
	Artifacts        *string
	// FailedStage holds the name of the deploy stage that failed, if any.
	FailedStage *string
	ErrorDetail *string
	Status      RunStatus
	CreatedOn   time.Time
	StartedOn   *time.Time
	EndedOn     *time.Time
	Archive     bool

	TargetName string
}

type RunStore interface {
	CreateRun(context.Context, int64, string) (*Run, error)
	ReadRunByID(context.Context, int64) (*Run, error)
	UpdateRunStartedOn(context.Context, int64, string, RunStatus, *time.Time) error
	UpdateRunEndedOn(context.Context, int64, RunStatus, *string, *string, *string, *time.Time) error
	AppendRunOutput(context.Context, int64, string) error
	DeleteRun(context.Context, int64) error
	ListTargetRuns(context.Context, int64) ([]Run, error)
	ListLatestTargetRuns(context.Context, int64, int64) ([]Run, error)
	ListTargetRunsPaginated(context.Context, int64, int64, int64) ([]Run, error)
	CountTargetRuns(context.Context, int64) (int64, error)
}
