package store

import (
	"context"
)

type Target struct {
	TargetID           int64
	TargetCredentialID int64
	Name               string
	Description        string
	// Git repository holding the stack app and deploy manifest
	Repository string
	// Deploy manifest path within the repository
	ManifestPath string
	// Deployment account ID
	AccountID string
	// Deployment region
	Region string
	// Space separated ECR repository names deployed by the stack
	ServiceUnits string
	// Deploy schedule in cron syntax
	Schedule *string
	// Git branch for scheduled deploys
	ScheduleBranch *string
	// Scheduled job ID
	ScheduleJobID *string
}

type TargetRunData struct {
	TargetID            int64
	CredentialID        int64
	Repository          string
	ManifestPath        string
	AccountID           string
	Region              string
	ServiceUnits        string
	AccessKeyID         string
	SecretAccessKeyHash string

	SecretAccessKey []byte
}

type TargetStore interface {
	CreateTarget(context.Context, *Target) (*Target, error)
	ReadTargetByID(context.Context, int64) (*Target, error)
	ReadTargetRunData(context.Context, int64) (*TargetRunData, error)
	UpdateTarget(context.Context, *Target) error
	UpdateTargetSchedule(context.Context, int64, *string, *string, *string) error
	UpdateTargetScheduleJobID(context.Context, int64, *string) error
	DeleteTarget(context.Context, int64) error
	ListTargets(context.Context) ([]*Target, error)
	ListScheduledTargets(context.Context) ([]*Target, error)
}
