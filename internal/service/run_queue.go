package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/haatos/simple-cd/internal"
	"github.com/haatos/simple-cd/internal/awsenv"
	"github.com/haatos/simple-cd/internal/engine"
	"github.com/haatos/simple-cd/internal/pipeline"
	"github.com/haatos/simple-cd/internal/registry"
	"github.com/haatos/simple-cd/internal/store"
	"github.com/haatos/simple-cd/internal/util"
)

// RunRecorder is the slice of the deploy service a queue needs to record
// run progress.
type RunRecorder interface {
	GetTargetRunData(ctx context.Context, id int64) (*store.TargetRunData, error)
	GetRunByID(ctx context.Context, id int64) (*store.Run, error)
	UpdateRunStartedOn(
		ctx context.Context,
		runID int64,
		workingDirectory string,
		status store.RunStatus,
		startedOn *time.Time,
	) error
	UpdateRunEndedOn(
		ctx context.Context,
		runID int64,
		status store.RunStatus,
		artifacts, failedStage, errorDetail *string,
		endedOn *time.Time,
	) error
	AppendRunOutput(ctx context.Context, runID int64, out string) error
}

func NewRunQueue(recorder RunRecorder, workspace string, maxRuns int64) *RunQueue {
	return &RunQueue{
		recorder:         recorder,
		workspace:        workspace,
		OutputSSEClients: NewSSEClientMap[string](),
		StatusSSEClients: NewSSEClientMap[store.Run](),
		queue:            make(chan *store.Run, maxRuns),
		done:             make(chan struct{}),
		cancelRunMap:     NewCancelMap[int64](),
	}
}

// RunQueue executes deploy runs for a single target one at a time, so two
// runs never race against the same account and region.
type RunQueue struct {
	recorder         RunRecorder
	workspace        string
	OutputSSEClients *SSEClientMap[string]
	StatusSSEClients *SSEClientMap[store.Run]

	queue        chan *store.Run
	done         chan struct{}
	cancelRunMap *CancelMap[int64]

	outputCh chan string
	statusCh chan store.Run
	mu       sync.Mutex
}

func (rq *RunQueue) CancelRun(runID int64) {
	rq.cancelRunMap.Call(runID)
}

func (rq *RunQueue) Enqueue(r *store.Run) error {
	select {
	case rq.queue <- r:
		return nil
	default:
		return NewErrRunQueueFull()
	}
}

func (rq *RunQueue) Run() {
	for {
		select {
		case run := <-rq.queue:
			rq.outputCh = make(chan string)
			rq.statusCh = make(chan store.Run)

			ctx, cancel := context.WithCancel(context.Background())
			rq.cancelRunMap.AddCancel(run.RunID, cancel)

			go rq.handleOutput(ctx, run.RunID)
			go rq.handleStatus()

			if err := rq.processRun(ctx, run); err != nil {
				endedOn := time.Now().UTC()
				run.EndedOn = &endedOn
				if _, ok := err.(RunCancelError); ok {
					run.Status = store.StatusCancelled
				} else {
					run.Status = store.StatusFailed
				}
				if sqlErr := rq.recorder.UpdateRunEndedOn(
					context.Background(),
					run.RunID,
					run.Status,
					run.Artifacts,
					run.FailedStage,
					run.ErrorDetail,
					run.EndedOn,
				); sqlErr != nil {
					log.Println("err updating run status to failed:", errors.Join(err, sqlErr))
				}
				log.Println("err processing deploy run:", err)
				r, err := rq.recorder.GetRunByID(context.Background(), run.RunID)
				if err != nil {
					log.Println("err getting run by id")
				} else {
					run = r
					rq.statusCh <- *r
				}

				failMessage := `
=============================================
FAIL || Deploy pipeline failed.
=============================================
`
				rq.outputCh <- failMessage
			}

			close(rq.outputCh)
			close(rq.statusCh)
			rq.cancelRunMap.RemoveCancel(run.RunID)
		case <-rq.done:
			close(rq.queue)
			return
		}
	}
}

func (rq *RunQueue) Shutdown() {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	select {
	case <-rq.done:
	default:
		close(rq.done)
	}
}

func (rq *RunQueue) handleOutput(ctx context.Context, runID int64) {
	for out := range rq.outputCh {
		if err := rq.recorder.AppendRunOutput(ctx, runID, out); err != nil {
			log.Printf("err appending run output: %+v\n", err)
		}
		rq.OutputSSEClients.SendToClients(out)
	}
}

func (rq *RunQueue) handleStatus() {
	for r := range rq.statusCh {
		rq.StatusSSEClients.SendToClients(r)
	}
}

func (rq *RunQueue) processRun(
	ctx context.Context,
	run *store.Run,
) error {
	trd, err := rq.recorder.GetTargetRunData(ctx, run.RunTargetID)
	if err != nil {
		rq.outputCh <- fmt.Sprintf("err getting target/credential: %+v\n", err)
		return err
	}
	workdir := time.Now().UTC().Format(internal.RunDirLayout)

	// update run status to running
	run.Status = store.StatusRunning
	startedOn := time.Now().UTC()
	run.StartedOn = &startedOn

	if err := rq.recorder.UpdateRunStartedOn(
		context.Background(),
		run.RunID,
		workdir,
		run.Status,
		run.StartedOn,
	); err != nil {
		rq.outputCh <- "err updating run started on"
		return err
	}

	r, err := rq.recorder.GetRunByID(context.Background(), run.RunID)
	if err != nil {
		rq.outputCh <- "err getting run by ID"
		return err
	}
	*run = *r
	rq.statusCh <- *r

	runDir := filepath.Join(rq.workspace, workdir)
	if err := cloneRepository(ctx, runDir, trd.Repository, run.Branch); err != nil {
		rq.outputCh <- "err cloning repository\n"
		run.ErrorDetail = util.AsPtr(err.Error())
		return err
	}
	rq.outputCh <- fmt.Sprintf("Cloned repository %s\n", trd.Repository)

	repoDir := filepath.Join(runDir, repositoryDir(trd.Repository))
	manifest, err := ReadDeployManifest(filepath.Join(repoDir, trd.ManifestPath))
	if err != nil {
		rq.outputCh <- "err reading deploy manifest\n"
		run.ErrorDetail = util.AsPtr(err.Error())
		return err
	}
	rq.outputCh <- fmt.Sprintf(
		"Parsed deploy manifest. Deploying stack %s to %s/%s...\n",
		manifest.Stack, trd.AccountID, trd.Region,
	)

	cfg := &pipeline.Config{
		Region:       trd.Region,
		AccountID:    trd.AccountID,
		ServiceUnits: pipeline.ParseServiceUnits(trd.ServiceUnits),
		Credentials: pipeline.Credentials{
			AccessKeyID:     trd.AccessKeyID,
			SecretAccessKey: string(trd.SecretAccessKey),
		},
	}

	runCtx, cancel := context.WithTimeout(
		ctx, time.Duration(internal.Config.RunTimeoutMinutes),
	)
	defer cancel()

	awsCfg, err := awsenv.NewConfig(runCtx, cfg)
	if err != nil {
		rq.outputCh <- fmt.Sprintf("err assembling aws config: %+v\n", err)
		run.ErrorDetail = util.AsPtr(err.Error())
		return err
	}
	if err := awsenv.VerifyIdentity(runCtx, sts.NewFromConfig(awsCfg), cfg); err != nil {
		rq.outputCh <- fmt.Sprintf("err verifying caller identity: %+v\n", err)
		run.ErrorDetail = util.AsPtr(err.Error())
		return err
	}
	rq.outputCh <- fmt.Sprintf("Verified caller identity for account %s\n", trd.AccountID)

	eng := engine.NewCDKEngine(repoDir)
	eng.Output = func(s string) { rq.outputCh <- s }
	eng.Checker = engine.NewConvergenceChecker(awsCfg)
	resolver := registry.NewECRResolverWithClient(
		ecr.NewFromConfig(awsCfg), manifest.ImageTag,
	)

	runner := pipeline.NewRunner(eng, resolver)
	runner.SetOutput(func(s string) { rq.outputCh <- s })

	results, err := runner.Run(runCtx, cfg, manifest.StackDefinition())
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return RunCancelError{Message: "deploy run cancelled by user"}
		}
		for _, res := range results {
			if !res.Succeeded() {
				run.FailedStage = util.AsPtr(string(res.Stage))
				run.ErrorDetail = util.AsPtr(res.ErrorDetail)
			}
		}
		if run.ErrorDetail == nil {
			run.ErrorDetail = util.AsPtr(err.Error())
		}
		return err
	}

	if manifest.Artifacts != "" {
		run.Artifacts = util.AsPtr(filepath.Join(
			workdir, repositoryDir(trd.Repository), manifest.AppDir, manifest.Artifacts,
		))
	}

	passMessage := `
=============================================
PASS || Stack bootstrapped and updated.
=============================================
`
	rq.outputCh <- passMessage

	// update run status and artifacts
	run.Status = store.StatusPassed
	run.EndedOn = util.AsPtr(time.Now().UTC())
	if err := rq.recorder.UpdateRunEndedOn(
		context.Background(),
		run.RunID,
		run.Status,
		run.Artifacts,
		nil,
		nil,
		run.EndedOn,
	); err != nil {
		rq.outputCh <- "err updating run ended on"
		return err
	}

	r, err = rq.recorder.GetRunByID(context.Background(), run.RunID)
	if err != nil {
		rq.outputCh <- "err getting run by id"
		return err
	}

	*run = *r
	rq.statusCh <- *r

	return nil
}
