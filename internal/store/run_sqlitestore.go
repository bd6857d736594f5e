package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/haatos/simple-cd/internal"
)

type RunSQLiteStore struct {
	rdb, rwdb *sql.DB
}

func NewRunSQLiteStore(rdb, rwdb *sql.DB) *RunSQLiteStore {
	return &RunSQLiteStore{rdb, rwdb}
}

func (store *RunSQLiteStore) CreateRun(
	ctx context.Context,
	targetID int64,
	branch string,
) (*Run, error) {
	r := &Run{
		RunTargetID: targetID,
		Branch:      branch,
		Status:      StatusQueued,
	}
	query := `insert into runs (
		run_target_id,
		branch,
		status
	)
	values ($1, $2, $3)
	returning run_id, created_on`
	if err := sqlscan.Get(ctx, store.rwdb, r, query, r.RunTargetID, r.Branch, r.Status); err != nil {
		return nil, err
	}
	return r, nil
}

func (store *RunSQLiteStore) ReadRunByID(ctx context.Context, id int64) (*Run, error) {
	r := &Run{RunID: id}
	query := "select * from runs where run_id = $1"
	if err := sqlscan.Get(ctx, store.rdb, r, query, r.RunID); err != nil {
		return nil, err
	}
	return r, nil
}

func (store *RunSQLiteStore) UpdateRunStartedOn(
	ctx context.Context,
	id int64,
	workingDirectory string,
	status RunStatus,
	startedOn *time.Time,
) error {
	query := `update runs
	set working_directory = $1,
		status = $2,
		started_on = $3
	where run_id = $4`
	_, err := store.rwdb.ExecContext(
		ctx, query,
		workingDirectory,
		status,
		startedOn.Format(internal.DBTimestampLayout),
		id,
	)
	return err
}

func (store *RunSQLiteStore) UpdateRunEndedOn(
	ctx context.Context,
	id int64,
	status RunStatus,
	artifacts, failedStage, errorDetail *string,
	endedOn *time.Time,
) error {
	query := `update runs
	set status = $1,
		artifacts = $2,
		failed_stage = $3,
		error_detail = $4,
		ended_on = $5
	where run_id = $6`
	_, err := store.rwdb.ExecContext(
		ctx, query,
		status,
		artifacts,
		failedStage,
		errorDetail,
		endedOn.Format(internal.DBTimestampLayout),
		id,
	)
	return err
}

func (store *RunSQLiteStore) AppendRunOutput(ctx context.Context, id int64, out string) error {
	tx, err := store.rwdb.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	r := &Run{RunID: id}
	readQuery := `select * from runs where run_id = $1`
	err = sqlscan.Get(ctx, tx, r, readQuery, r.RunID)
	if err != nil {
		return err
	}

	var existingOutput string
	if r.Output != nil {
		existingOutput = *r.Output
	}
	updateQuery := `update runs
	set output = $1
	where run_id = $2`
	_, err = tx.ExecContext(ctx, updateQuery, existingOutput+out, r.RunID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (store *RunSQLiteStore) DeleteRun(ctx context.Context, id int64) error {
	query := "delete from runs where run_id = $1"
	_, err := store.rwdb.ExecContext(ctx, query, id)
	return err
}

func (store *RunSQLiteStore) ListTargetRuns(
	ctx context.Context,
	targetID int64,
) ([]Run, error) {
	query := `select * from runs
	where run_target_id = $1`
	runs := make([]Run, 0)
	err := sqlscan.Select(ctx, store.rdb, &runs, query, targetID)
	return runs, err
}

func (store *RunSQLiteStore) ListTargetRunsPaginated(
	ctx context.Context,
	targetID, limit, offset int64,
) ([]Run, error) {
	query := `select
		r.run_id,
		r.run_target_id,
		r.branch,
		r.status,
		r.failed_stage,
		r.error_detail,
		r.created_on,
		r.started_on,
		r.ended_on,
		t.name as target_name
	from runs r
	join targets t
	on r.run_target_id = t.target_id
	where run_target_id = $1
	order by created_on desc limit $2 offset $3`
	runs := make([]Run, 0)
	err := sqlscan.Select(ctx, store.rdb, &runs, query, targetID, limit, offset)
	return runs, err
}

func (store *RunSQLiteStore) ListLatestTargetRuns(
	ctx context.Context,
	targetID, limit int64,
) ([]Run, error) {
	query := `select * from runs
	where run_target_id = $1
	order by created_on desc limit $2`
	runs := make([]Run, 0)
	err := sqlscan.Select(ctx, store.rdb, &runs, query, targetID, limit)
	return runs, err
}

func (store *RunSQLiteStore) CountTargetRuns(
	ctx context.Context,
	targetID int64,
) (int64, error) {
	var count int64
	query := `select count(*) from runs where run_target_id = $1`
	err := sqlscan.Get(ctx, store.rdb, &count, query, targetID)
	return count, err
}
