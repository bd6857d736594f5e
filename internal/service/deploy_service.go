package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/haatos/simple-cd/internal"
	"github.com/haatos/simple-cd/internal/security"
	"github.com/haatos/simple-cd/internal/store"
	"github.com/haatos/simple-cd/internal/util"
)

type TargetWriter interface {
	CreateTarget(context.Context, *store.Target) (*store.Target, error)
	UpdateTarget(context.Context, *store.Target) error
	UpdateTargetSchedule(context.Context, int64, *string, *string, *string) error
	UpdateTargetScheduleJobID(context.Context, int64, *string) error
	DeleteTarget(context.Context, int64) error
}

type TargetReader interface {
	ReadTargetByID(context.Context, int64) (*store.Target, error)
	ReadTargetRunData(context.Context, int64) (*store.TargetRunData, error)
	ListTargets(context.Context) ([]*store.Target, error)
	ListScheduledTargets(context.Context) ([]*store.Target, error)
}

type TargetStore interface {
	TargetWriter
	TargetReader
}

type RunWriter interface {
	CreateRun(context.Context, int64, string) (*store.Run, error)
	UpdateRunStartedOn(context.Context, int64, string, store.RunStatus, *time.Time) error
	UpdateRunEndedOn(
		context.Context, int64, store.RunStatus, *string, *string, *string, *time.Time,
	) error
	AppendRunOutput(context.Context, int64, string) error
	DeleteRun(context.Context, int64) error
}

type RunReader interface {
	ReadRunByID(context.Context, int64) (*store.Run, error)
	ListTargetRuns(context.Context, int64) ([]store.Run, error)
	ListLatestTargetRuns(context.Context, int64, int64) ([]store.Run, error)
	ListTargetRunsPaginated(context.Context, int64, int64, int64) ([]store.Run, error)
	CountTargetRuns(context.Context, int64) (int64, error)
}

type RunStore interface {
	RunWriter
	RunReader
}

type DeployService struct {
	targetStore     TargetStore
	runStore        RunStore
	credentialStore CredentialStore
	apiKeyStore     store.APIKeyStore
	scheduler       gocron.Scheduler
	aesEncrypter    security.Encrypter
	workspace       string

	mu     sync.Mutex
	queues map[int64]*RunQueue
}

func NewDeployService(
	targetStore TargetStore,
	runStore RunStore,
	credentialStore CredentialStore,
	apiKeyStore store.APIKeyStore,
	scheduler gocron.Scheduler,
	aesEncrypter security.Encrypter,
	workspace string,
) *DeployService {
	return &DeployService{
		targetStore:     targetStore,
		runStore:        runStore,
		credentialStore: credentialStore,
		apiKeyStore:     apiKeyStore,
		scheduler:       scheduler,
		aesEncrypter:    aesEncrypter,
		workspace:       workspace,
		queues:          make(map[int64]*RunQueue),
	}
}

func (s *DeployService) InitializeRunQueues(ctx context.Context) error {
	targets, err := s.ListTargets(ctx)
	if err != nil {
		return err
	}

	ids := make([]int64, len(targets))
	for i, t := range targets {
		ids[i] = t.TargetID
	}

	s.AddRunQueues(ids, internal.Config.QueueSize)
	s.StartRunQueues()
	return nil
}

func (s *DeployService) CreateTarget(
	ctx context.Context,
	t *store.Target,
) (*store.Target, error) {
	t, err := s.targetStore.CreateTarget(ctx, t)
	if err != nil {
		return nil, err
	}
	s.AddRunQueue(t.TargetID, internal.Config.QueueSize)
	if err := s.StartRunQueue(t.TargetID); err != nil {
		return t, err
	}
	return t, nil
}

func (s *DeployService) GetTargetByID(
	ctx context.Context,
	targetID int64,
) (*store.Target, error) {
	return s.targetStore.ReadTargetByID(ctx, targetID)
}

// GetTargetRunData resolves everything a run needs, including the decrypted
// secret access key. The plaintext key lives only in the returned struct.
func (s *DeployService) GetTargetRunData(
	ctx context.Context,
	id int64,
) (*store.TargetRunData, error) {
	trd, err := s.targetStore.ReadTargetRunData(ctx, id)
	if err != nil {
		return nil, err
	}

	secretAccessKey, err := s.aesEncrypter.DecryptAES(trd.SecretAccessKeyHash)
	if err != nil {
		return nil, err
	}
	trd.SecretAccessKey = secretAccessKey

	return trd, nil
}

func (s *DeployService) ListTargets(
	ctx context.Context,
) ([]*store.Target, error) {
	targets, err := s.targetStore.ListTargets(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return targets, nil
}

func (s *DeployService) ListScheduledTargets(
	ctx context.Context,
) ([]*store.Target, error) {
	targets, err := s.targetStore.ListScheduledTargets(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return targets, nil
}

func (s *DeployService) UpdateTarget(
	ctx context.Context,
	t *store.Target,
) error {
	return s.targetStore.UpdateTarget(ctx, t)
}

func (s *DeployService) UpdateTargetSchedule(
	ctx context.Context,
	id int64,
	schedule, branch *string,
) error {
	t, err := s.targetStore.ReadTargetByID(ctx, id)
	if err != nil {
		return err
	}

	if schedule == nil && t.Schedule != nil && s.scheduler != nil {
		if err := s.scheduler.RemoveJob(uuid.MustParse(*t.ScheduleJobID)); err != nil {
			log.Println("unable to remove existing job: ", err)
		}
	} else {
		jobID, err := s.ScheduleTargetRun(t.TargetID, *schedule, *branch)
		if err != nil {
			return err
		}
		err = s.targetStore.UpdateTargetSchedule(
			ctx,
			t.TargetID,
			schedule,
			branch,
			jobID,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *DeployService) UpdateTargetScheduleJobID(
	ctx context.Context,
	targetID int64,
	jobID *string,
) error {
	return s.targetStore.UpdateTargetScheduleJobID(ctx, targetID, jobID)
}

func (s *DeployService) DeleteTarget(
	ctx context.Context, targetID int64,
) error {
	err := s.targetStore.DeleteTarget(ctx, targetID)
	if err != nil {
		return err
	}
	s.RemoveRunQueue(targetID)
	return nil
}

func (s *DeployService) CreateRun(
	ctx context.Context,
	targetID int64,
	branch string,
) (*store.Run, error) {
	return s.runStore.CreateRun(ctx, targetID, branch)
}

func (s *DeployService) GetRunByID(
	ctx context.Context, runID int64,
) (*store.Run, error) {
	return s.runStore.ReadRunByID(ctx, runID)
}

func (s *DeployService) UpdateRunStartedOn(
	ctx context.Context,
	runID int64,
	workingDirectory string,
	status store.RunStatus,
	startedOn *time.Time,
) error {
	return s.runStore.UpdateRunStartedOn(
		ctx, runID, workingDirectory, status, startedOn,
	)
}

func (s *DeployService) UpdateRunEndedOn(
	ctx context.Context,
	runID int64,
	status store.RunStatus,
	artifacts, failedStage, errorDetail *string,
	endedOn *time.Time,
) error {
	return s.runStore.UpdateRunEndedOn(
		ctx, runID, status, artifacts, failedStage, errorDetail, endedOn,
	)
}

func (s *DeployService) AppendRunOutput(
	ctx context.Context,
	runID int64,
	out string,
) error {
	return s.runStore.AppendRunOutput(ctx, runID, out)
}

func (s *DeployService) DeleteRun(
	ctx context.Context, runID int64,
) error {
	return s.runStore.DeleteRun(ctx, runID)
}

func (s *DeployService) ListTargetRuns(
	ctx context.Context,
	targetID int64,
) ([]store.Run, error) {
	runs, err := s.runStore.ListTargetRuns(ctx, targetID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return runs, nil
}

func (s *DeployService) ListLatestTargetRuns(
	ctx context.Context,
	targetID, limit int64,
) ([]store.Run, error) {
	return s.runStore.ListLatestTargetRuns(ctx, targetID, limit)
}

func (s *DeployService) ListTargetRunsPaginated(
	ctx context.Context,
	targetID, limit, offset int64,
) ([]store.Run, error) {
	return s.runStore.ListTargetRunsPaginated(
		ctx, targetID, limit, offset,
	)
}

func (s *DeployService) GetTargetRunCount(
	ctx context.Context, id int64,
) (int64, error) {
	return s.runStore.CountTargetRuns(ctx, id)
}

func (s *DeployService) GetAPIKeyByValue(
	ctx context.Context,
	value string,
) (*store.APIKey, error) {
	return s.apiKeyStore.ReadAPIKeyByValue(ctx, value)
}

// CollectRunArtifacts copies the run's collected stack output, cdk.out by
// default, into the artifacts directory served to clients.
func (s *DeployService) CollectRunArtifacts(
	ctx context.Context,
	targetID, runID int64,
) (string, error) {
	if exists, _ := util.PathExists("artifacts"); !exists {
		os.Mkdir("artifacts", os.ModePerm)
	}

	r, err := s.GetRunByID(ctx, runID)
	if err != nil {
		return "", err
	}
	if r.Artifacts == nil {
		return "", fmt.Errorf("run %d has no artifacts", runID)
	}

	artifactsDir := path.Join("artifacts", fmt.Sprintf("%d", r.RunID))
	if exists, _ := util.PathExists(artifactsDir); exists {
		return artifactsDir, nil
	}

	if err := copyDirectory(
		filepath.Join(s.workspace, *r.Artifacts), artifactsDir,
	); err != nil {
		return "", err
	}

	return artifactsDir, nil
}

func copyDirectory(srcPath, dstPath string) error {
	entries, err := os.ReadDir(srcPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dstPath, os.ModePerm); err != nil {
		return err
	}

	for _, e := range entries {
		srcFilePath := filepath.Join(srcPath, e.Name())
		dstFilePath := filepath.Join(dstPath, e.Name())

		if e.IsDir() {
			if err := copyDirectory(srcFilePath, dstFilePath); err != nil {
				return err
			}
		} else {
			if err := copyFile(srcFilePath, dstFilePath); err != nil {
				return err
			}
		}
	}

	return nil
}

func copyFile(srcPath, dstPath string) error {
	srcFile, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return err
	}

	return nil
}

func (s *DeployService) ScheduleTargetRun(
	targetID int64,
	schedule, branch string,
) (*string, error) {
	if s.scheduler == nil {
		return nil, nil
	}
	job, err := s.scheduler.NewJob(
		gocron.CronJob(schedule, false),
		gocron.NewTask(func() {
			if r, err := s.CreateRun(
				context.Background(),
				targetID,
				branch,
			); err == nil {
				if err := s.EnqueueRun(r); err != nil {
					log.Println("queue is full")
					return
				}
			}
		}))
	if err != nil {
		return nil, fmt.Errorf("error scheduling deploy job: %+w", err)
	}
	return util.AsPtr(job.ID().String()), nil
}

func (s *DeployService) AddRunQueues(ids []int64, maxRuns int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.queues[id] = NewRunQueue(s, s.workspace, maxRuns)
	}
}

func (s *DeployService) StartRunQueues() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.queues {
		go s.queues[i].Run()
	}
}

func (s *DeployService) AddRunQueue(id int64, maxRuns int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[id] = NewRunQueue(s, s.workspace, maxRuns)
}

func (s *DeployService) StartRunQueue(id int64) error {
	rq, ok := s.GetTargetRunQueue(id)
	if !ok {
		return fmt.Errorf("run queue for target %d does not exist", id)
	}
	go rq.Run()
	return nil
}

func (s *DeployService) GetTargetRunQueue(id int64) (*RunQueue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rq, ok := s.queues[id]
	return rq, ok
}

func (s *DeployService) RemoveRunQueue(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queues, id)
}

func (s *DeployService) EnqueueRun(r *store.Run) error {
	rq, ok := s.GetTargetRunQueue(r.RunTargetID)
	if !ok {
		return fmt.Errorf("run queue for target %d does not exist", r.RunTargetID)
	}

	return rq.Enqueue(r)
}

func (s *DeployService) ShutdownAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var wg sync.WaitGroup
	for _, rq := range s.queues {
		wg.Go(func() {
			rq.Shutdown()
		})
	}
	wg.Wait()
}
