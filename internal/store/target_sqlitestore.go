package store

import (
	"context"
	"database/sql"

	"github.com/georgysavva/scany/v2/sqlscan"
)

type TargetSQLiteStore struct {
	rdb, rwdb *sql.DB
}

func NewTargetSQLiteStore(rdb, rwdb *sql.DB) *TargetSQLiteStore {
	return &TargetSQLiteStore{rdb, rwdb}
}

func (store *TargetSQLiteStore) CreateTarget(
	ctx context.Context,
	t *Target,
) (*Target, error) {
	query := `insert into targets (
		target_credential_id,
		name,
		description,
		repository,
		manifest_path,
		account_id,
		region,
		service_units
	)
	values ($1, $2, $3, $4, $5, $6, $7, $8)
	returning target_id`
	if err := sqlscan.Get(
		ctx, store.rwdb, t, query,
		t.TargetCredentialID,
		t.Name,
		t.Description,
		t.Repository,
		t.ManifestPath,
		t.AccountID,
		t.Region,
		t.ServiceUnits,
	); err != nil {
		return nil, err
	}
	return t, nil
}

func (store *TargetSQLiteStore) ReadTargetByID(
	ctx context.Context,
	id int64,
) (*Target, error) {
	t := &Target{TargetID: id}
	query := "select * from targets where target_id = $1"
	if err := sqlscan.Get(ctx, store.rdb, t, query, t.TargetID); err != nil {
		return nil, err
	}
	return t, nil
}

func (store *TargetSQLiteStore) ReadTargetRunData(
	ctx context.Context,
	id int64,
) (*TargetRunData, error) {
	trd := new(TargetRunData)
	query := `select
		t.target_id,
		t.repository,
		t.manifest_path,
		t.account_id,
		t.region,
		t.service_units,
		c.credential_id,
		c.access_key_id,
		c.secret_access_key_hash
	from targets t
	join credentials c
	on t.target_credential_id = c.credential_id
	where t.target_id = $1`
	err := sqlscan.Get(ctx, store.rdb, trd, query, id)
	if err != nil {
		return nil, err
	}
	return trd, nil
}

func (store *TargetSQLiteStore) UpdateTarget(ctx context.Context, t *Target) error {
	query := `update targets
	set target_credential_id = $1,
		name = $2,
		description = $3,
		repository = $4,
		manifest_path = $5,
		account_id = $6,
		region = $7,
		service_units = $8
	where target_id = $9`
	_, err := store.rwdb.ExecContext(
		ctx, query,
		t.TargetCredentialID,
		t.Name,
		t.Description,
		t.Repository,
		t.ManifestPath,
		t.AccountID,
		t.Region,
		t.ServiceUnits,
		t.TargetID,
	)
	return err
}

func (store *TargetSQLiteStore) DeleteTarget(ctx context.Context, id int64) error {
	query := "delete from targets where target_id = $1"
	_, err := store.rwdb.ExecContext(ctx, query, id)
	return err
}

func (store *TargetSQLiteStore) ListTargets(ctx context.Context) ([]*Target, error) {
	query := "select * from targets"
	targets := make([]*Target, 0)
	err := sqlscan.Select(ctx, store.rdb, &targets, query)
	return targets, err
}

func (store *TargetSQLiteStore) ListScheduledTargets(ctx context.Context) ([]*Target, error) {
	query := "select * from targets where schedule is not null"
	targets := make([]*Target, 0)
	err := sqlscan.Select(ctx, store.rdb, &targets, query)
	return targets, err
}

func (store *TargetSQLiteStore) UpdateTargetSchedule(
	ctx context.Context,
	id int64,
	schedule, branch, jobID *string,
) error {
	query := `update targets
	set schedule = $1,
		schedule_branch = $2,
		schedule_job_id = $3
	where target_id = $4`
	_, err := store.rwdb.ExecContext(ctx, query, schedule, branch, jobID, id)
	return err
}

func (store *TargetSQLiteStore) UpdateTargetScheduleJobID(
	ctx context.Context,
	id int64,
	jobID *string,
) error {
	query := `update targets
	set schedule_job_id = $1
	where target_id = $2`
	_, err := store.rwdb.ExecContext(ctx, query, jobID, id)
	return err
}
