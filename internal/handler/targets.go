package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/haatos/simple-cd/internal"
	"github.com/haatos/simple-cd/internal/pipeline"
	"github.com/haatos/simple-cd/internal/service"
	"github.com/haatos/simple-cd/internal/store"
	"github.com/haatos/simple-cd/internal/util"
	"github.com/labstack/echo/v4"
)

const maxRunsPerPage int64 = 10

func SetupTargetRoutes(
	g *echo.Group,
	deployService DeployServicer,
	apiKeyService APIKeyServicer,
) {
	h := NewTargetHandler(deployService, apiKeyService)
	g.POST(
		"/api/targets/:target_id/webhook-trigger/:branch",
		h.PostRunWebhookTrigger,
	)
	targetsGroup := g.Group("/api/targets", APIKeyAuth(apiKeyService))
	targetsGroup.GET("", h.GetTargets)
	targetsGroup.POST("", h.PostTarget)
	targetsGroup.GET("/:target_id", h.GetTarget)
	targetsGroup.PATCH("/:target_id", h.PatchTarget)
	targetsGroup.DELETE("/:target_id", h.DeleteTarget)
	targetsGroup.PATCH("/:target_id/schedule", h.PatchTargetSchedule)
	targetsGroup.GET("/:target_id/latest-runs", h.GetLatestRuns)
	targetsGroup.POST("/:target_id/runs", h.PostRun)
	targetsGroup.GET("/:target_id/runs", h.GetRuns)
	targetsGroup.GET("/:target_id/runs/:run_id", h.GetRun)
	targetsGroup.DELETE("/:target_id/runs/:run_id", h.DeleteRun)
	targetsGroup.GET("/:target_id/runs/:run_id/output", h.GetRunOutput)
	targetsGroup.GET("/:target_id/runs/:run_id/status", h.GetRunStatus)
	targetsGroup.GET("/:target_id/runs/:run_id/artifacts", h.GetRunArtifacts)
	targetsGroup.POST("/:target_id/runs/:run_id/cancel", h.PostCancelRun)
}

type TargetWriter interface {
	CreateTarget(ctx context.Context, t *store.Target) (*store.Target, error)
	UpdateTarget(ctx context.Context, t *store.Target) error
	UpdateTargetSchedule(ctx context.Context, id int64, schedule, branch *string) error
	UpdateTargetScheduleJobID(ctx context.Context, id int64, jobID *string) error
	DeleteTarget(ctx context.Context, id int64) error
}

type TargetReader interface {
	GetTargetByID(ctx context.Context, id int64) (*store.Target, error)
	ListTargets(ctx context.Context) ([]*store.Target, error)
	ListScheduledTargets(ctx context.Context) ([]*store.Target, error)
	CollectRunArtifacts(ctx context.Context, targetID, runID int64) (string, error)
}

type RunWriter interface {
	CreateRun(ctx context.Context, targetID int64, branch string) (*store.Run, error)
	DeleteRun(ctx context.Context, runID int64) error
}

type RunReader interface {
	GetRunByID(ctx context.Context, runID int64) (*store.Run, error)
	ListLatestTargetRuns(ctx context.Context, id, limit int64) ([]store.Run, error)
	ListTargetRunsPaginated(ctx context.Context, id, limit, offset int64) ([]store.Run, error)
	GetTargetRunCount(ctx context.Context, id int64) (int64, error)
}

type RunQueueServicer interface {
	InitializeRunQueues(ctx context.Context) error
	GetTargetRunQueue(id int64) (*service.RunQueue, bool)
	EnqueueRun(run *store.Run) error
	ShutdownAll()
}

type DeployServicer interface {
	TargetWriter
	TargetReader
	RunWriter
	RunReader
	RunQueueServicer
}

type TargetHandler struct {
	deployService DeployServicer
	apiKeyService APIKeyServicer
}

func NewTargetHandler(
	deployService DeployServicer,
	apiKeyService APIKeyServicer,
) *TargetHandler {
	return &TargetHandler{
		deployService: deployService,
		apiKeyService: apiKeyService,
	}
}

func (h *TargetHandler) GetTargets(c echo.Context) error {
	targets, err := h.deployService.ListTargets(c.Request().Context())
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return newError(err,
			http.StatusInternalServerError, "something went wrong listing targets",
		)
	}
	return c.JSON(http.StatusOK, targets)
}

func (h *TargetHandler) PostTarget(c echo.Context) error {
	tp := new(TargetParams)
	if err := c.Bind(tp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid target data")
	}

	if tp.Region == "" {
		tp.Region = pipeline.DefaultRegion
	}
	if tp.ManifestPath == "" {
		tp.ManifestPath = internal.DefaultManifestPath
	}

	t, err := h.deployService.CreateTarget(c.Request().Context(), &store.Target{
		TargetCredentialID: tp.TargetCredentialID,
		Name:               strings.TrimSpace(tp.Name),
		Description:        strings.TrimSpace(tp.Description),
		Repository:         strings.TrimSpace(tp.Repository),
		ManifestPath:       tp.ManifestPath,
		AccountID:          strings.TrimSpace(tp.AccountID),
		Region:             tp.Region,
		ServiceUnits:       strings.TrimSpace(tp.ServiceUnits),
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return newError(err,
				http.StatusConflict,
				fmt.Sprintf("a target with the name %s already exists", tp.Name),
			)
		}
		if isForeignKeyConstraintError(err) {
			return newError(err, http.StatusBadRequest, "invalid credential id")
		}
		return newError(err, http.StatusInternalServerError, "unable to create target")
	}

	return c.JSON(http.StatusCreated, t)
}

func (h *TargetHandler) GetTarget(c echo.Context) error {
	tp := new(TargetParams)
	if err := c.Bind(tp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid target data")
	}

	t, err := h.deployService.GetTargetByID(c.Request().Context(), tp.TargetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "target not found")
		}
		return newError(err,
			http.StatusInternalServerError, "something went wrong getting target data",
		)
	}

	return c.JSON(http.StatusOK, t)
}

func (h *TargetHandler) PatchTarget(c echo.Context) error {
	tp := new(TargetParams)
	if err := c.Bind(tp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid target data")
	}

	err := h.deployService.UpdateTarget(c.Request().Context(), &store.Target{
		TargetID:           tp.TargetID,
		TargetCredentialID: tp.TargetCredentialID,
		Name:               strings.TrimSpace(tp.Name),
		Description:        strings.TrimSpace(tp.Description),
		Repository:         strings.TrimSpace(tp.Repository),
		ManifestPath:       tp.ManifestPath,
		AccountID:          strings.TrimSpace(tp.AccountID),
		Region:             tp.Region,
		ServiceUnits:       strings.TrimSpace(tp.ServiceUnits),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "target not found")
		}
		return newError(err,
			http.StatusInternalServerError, "something went wrong updating the target",
		)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *TargetHandler) PatchTargetSchedule(c echo.Context) error {
	tp := new(TargetParams)
	if err := c.Bind(tp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid target data")
	}

	if err := h.deployService.UpdateTargetSchedule(
		c.Request().Context(), tp.TargetID, tp.Schedule, tp.ScheduleBranch,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusBadRequest, "invalid target id")
		}
		return newError(err,
			http.StatusInternalServerError, "unable to update target schedule",
		)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *TargetHandler) DeleteTarget(c echo.Context) error {
	tp := new(TargetParams)
	if err := c.Bind(tp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid target data")
	}

	if tp.TargetID == 0 {
		return newError(errors.New("target id was zero"),
			http.StatusBadRequest, "invalid target id",
		)
	}

	t, err := h.deployService.GetTargetByID(c.Request().Context(), tp.TargetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "target not found")
		}
		return newError(err, http.StatusInternalServerError, "unable to delete target")
	}

	if err := h.deployService.DeleteTarget(c.Request().Context(), t.TargetID); err != nil {
		return newError(err, http.StatusInternalServerError, "unable to delete target")
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *TargetHandler) PostRun(c echo.Context) error {
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid run data")
	}
	if rp.Branch == "" {
		rp.Branch = "main"
	}

	t, err := h.deployService.GetTargetByID(c.Request().Context(), rp.TargetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "target not found")
		}
		return newError(err, http.StatusInternalServerError, "unable to read target data")
	}

	r, err := h.deployService.CreateRun(c.Request().Context(), t.TargetID, rp.Branch)
	if err != nil {
		return newError(err, http.StatusInternalServerError, "unable to create deploy run")
	}

	if err := h.deployService.EnqueueRun(r); err != nil {
		return newError(err, http.StatusConflict, "deploy run queue is full")
	}

	return c.JSON(http.StatusCreated, r)
}

func (h *TargetHandler) PostRunWebhookTrigger(c echo.Context) error {
	apiKeyValue := c.Request().Header.Get(internal.WebhookTriggerKeyHeader)
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid run data")
	}
	if rp.Branch == "" {
		rp.Branch = "main"
	}

	_, err := h.apiKeyService.GetAPIKeyByValue(c.Request().Context(), apiKeyValue)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid api key")
	}

	t, err := h.deployService.GetTargetByID(c.Request().Context(), rp.TargetID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "target not found")
	}

	r, err := h.deployService.CreateRun(c.Request().Context(), t.TargetID, rp.Branch)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "unable to create run")
	}

	if err := h.deployService.EnqueueRun(r); err != nil {
		return echo.NewHTTPError(
			http.StatusConflict, "deploy run queue is full",
		).WithInternal(err)
	}

	return c.NoContent(http.StatusCreated)
}

func (h *TargetHandler) GetRun(c echo.Context) error {
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid run data")
	}

	r, err := h.deployService.GetRunByID(c.Request().Context(), rp.RunID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "run not found")
		}
		return newError(err, http.StatusInternalServerError, "unable to read run data")
	}

	return c.JSON(http.StatusOK, r)
}

func (h *TargetHandler) DeleteRun(c echo.Context) error {
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid run data")
	}

	if err := h.deployService.DeleteRun(c.Request().Context(), rp.RunID); err != nil {
		return newError(err, http.StatusInternalServerError, "unable to delete run")
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *TargetHandler) GetLatestRuns(c echo.Context) error {
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid target data")
	}

	runs, err := h.deployService.ListLatestTargetRuns(c.Request().Context(), rp.TargetID, 3)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return newError(err, http.StatusBadRequest, "unable to list deploy runs")
	}

	return c.JSON(http.StatusOK, runs)
}

type RunsPage struct {
	Runs     []store.Run `json:"runs"`
	Page     int64       `json:"page"`
	MaxPages int64       `json:"max_pages"`
	Count    int64       `json:"count"`
}

func (h *TargetHandler) GetRuns(c echo.Context) error {
	lrp := new(ListRunsParams)
	if err := c.Bind(lrp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid request data")
	}

	count, err := h.deployService.GetTargetRunCount(c.Request().Context(), lrp.TargetID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return newError(err, http.StatusInternalServerError, "unable to count deploy runs")
	}

	maxPages := count / maxRunsPerPage
	if maxPages >= 1 {
		maxPages++
	}

	page := max(lrp.Page, 1)
	runs, err := h.deployService.ListTargetRunsPaginated(
		c.Request().Context(),
		lrp.TargetID,
		maxRunsPerPage,
		(page-1)*maxRunsPerPage,
	)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return newError(err, http.StatusInternalServerError, "error listing deploy runs")
	}

	return c.JSON(http.StatusOK, RunsPage{
		Runs:     runs,
		Page:     page,
		MaxPages: maxPages,
		Count:    count,
	})
}

func (h *TargetHandler) GetRunArtifacts(c echo.Context) error {
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid target or run ID")
	}

	artifactsDir, err := h.deployService.CollectRunArtifacts(
		c.Request().Context(),
		rp.TargetID,
		rp.RunID,
	)
	if err != nil {
		return newError(err,
			http.StatusInternalServerError, "unable to collect run artifacts",
		)
	}

	archive := path.Join("artifacts", fmt.Sprintf("%d.zip", rp.RunID))
	if exists, _ := util.PathExists(archive); !exists {
		archive, err = util.ArchiveDirectory(artifactsDir)
		if err != nil {
			return newError(err,
				http.StatusInternalServerError, "unable to archive collected output",
			)
		}
	}

	return c.File(archive)
}

func (h *TargetHandler) GetRunOutput(c echo.Context) error {
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid request ID")
	}

	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	rq, ok := h.deployService.GetTargetRunQueue(rp.TargetID)
	if !ok {
		return nil
	}

	id := uuid.NewString()

	rq.OutputSSEClients.AddClient(id)
	defer rq.OutputSSEClients.RemoveClient(id)

	for {
		select {
		case <-c.Request().Context().Done():
			// client disconnected
			return nil
		case out := <-rq.OutputSSEClients.GetClient(id):
			// worker's output channel has data
			event := &Event{Data: []byte(out)}
			if err := event.MarshalTo(w); err != nil {
				log.Println("err marshaling event data:", err)
			}
			w.Flush()
		default:
			// no new data, just wait
			time.Sleep(1 * time.Second)
		}
	}
}

func (h *TargetHandler) GetRunStatus(c echo.Context) error {
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid request ID")
	}

	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	rq, ok := h.deployService.GetTargetRunQueue(rp.TargetID)
	if !ok {
		return nil
	}

	id := uuid.NewString()
	rq.StatusSSEClients.AddClient(id)
	defer rq.StatusSSEClients.RemoveClient(id)

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case out := <-rq.StatusSSEClients.GetClient(id):
			b, err := json.Marshal(out)
			if err != nil {
				log.Println("err marshaling run status:", err)
				continue
			}
			event := &Event{Data: b}
			if err := event.MarshalTo(w); err != nil {
				log.Println("err marshaling event data:", err)
			}
			w.Flush()
		default:
			time.Sleep(3 * time.Second)
		}
	}
}

func (h *TargetHandler) PostCancelRun(c echo.Context) error {
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid target or run ID")
	}

	rq, ok := h.deployService.GetTargetRunQueue(rp.TargetID)
	if !ok {
		return newError(nil, http.StatusNotFound, "run queue not found")
	}

	rq.CancelRun(rp.RunID)

	return c.NoContent(http.StatusAccepted)
}

// ScheduleTargets re-registers cron jobs for every target that had a
// schedule when the server last shut down.
func ScheduleTargets(
	deployService DeployServicer,
	deployScheduler gocron.Scheduler,
) {
	scheduledTargets, err := deployService.ListScheduledTargets(context.Background())
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		log.Fatal(err)
	}
	for _, t := range scheduledTargets {
		job, err := deployScheduler.NewJob(
			gocron.CronJob(*t.Schedule, false),
			gocron.NewTask(func() {
				runScheduledDeploy(deployService, t.TargetID, *t.ScheduleBranch)
			}),
		)
		if err != nil {
			log.Println("err re-scheduling target:", err)
			continue
		}
		jobID := job.ID().String()
		if err := deployService.UpdateTargetScheduleJobID(
			context.Background(), t.TargetID, &jobID,
		); err != nil {
			log.Println("err updating re-scheduled target job id:", err)
		}
	}
}

func runScheduledDeploy(deployService DeployServicer, targetID int64, branch string) {
	r, err := deployService.CreateRun(context.Background(), targetID, branch)
	if err != nil {
		log.Println("err creating scheduled run:", err)
		return
	}
	if err := deployService.EnqueueRun(r); err != nil {
		log.Println("deploy run queue is full")
	}
}
