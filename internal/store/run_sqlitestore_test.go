package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"testing"
	"time"

	"github.com/haatos/simple-cd/internal"
	"github.com/haatos/simple-cd/internal/util"
	"github.com/stretchr/testify/suite"
)

type runSQLiteStoreSuite struct {
	runStore        *RunSQLiteStore
	targetStore     *TargetSQLiteStore
	credentialStore *CredentialSQLiteStore
	db              *sql.DB
	suite.Suite
}

func TestRunSQLiteStore(t *testing.T) {
	suite.Run(t, new(runSQLiteStoreSuite))
}

func (suite *runSQLiteStoreSuite) SetupSuite() {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		log.Fatal(err)
	}
	suite.db = db
	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	if err != nil {
		log.Fatal(err)
	}

	RunMigrations(db, internal.MigrationsDir)

	suite.runStore = NewRunSQLiteStore(db, db)
	suite.targetStore = NewTargetSQLiteStore(db, db)
	suite.credentialStore = NewCredentialSQLiteStore(db, db)
}

func (suite *runSQLiteStoreSuite) TearDownSuite() {
	_ = suite.db.Close()
}

func (suite *runSQLiteStoreSuite) TestRunSQLiteStore_CreateRun() {
	suite.Run("success - run created as queued", func() {
		// arrange
		target := suite.createTarget()

		// act
		r, err := suite.runStore.CreateRun(context.Background(), target.TargetID, "main")

		// assert
		suite.NoError(err)
		suite.NotNil(r)
		suite.NotEqual(0, r.RunID)
		suite.Equal(StatusQueued, r.Status)
		suite.False(r.CreatedOn.IsZero())
	})
}

func (suite *runSQLiteStoreSuite) TestRunSQLiteStore_UpdateRunStartedOn() {
	suite.Run("success - run marked running", func() {
		// arrange
		run := suite.createRun()
		startedOn := time.Now().UTC()

		// act
		updateErr := suite.runStore.UpdateRunStartedOn(
			context.Background(),
			run.RunID,
			"20240101_000000000",
			StatusRunning,
			&startedOn,
		)
		r, readErr := suite.runStore.ReadRunByID(context.Background(), run.RunID)

		// assert
		suite.NoError(updateErr)
		suite.NoError(readErr)
		suite.Equal(StatusRunning, r.Status)
		suite.NotNil(r.WorkingDirectory)
		suite.NotNil(r.StartedOn)
	})
}

func (suite *runSQLiteStoreSuite) TestRunSQLiteStore_UpdateRunEndedOn() {
	suite.Run("success - failed run records stage and error detail", func() {
		// arrange
		run := suite.createRun()
		endedOn := time.Now().UTC()

		// act
		updateErr := suite.runStore.UpdateRunEndedOn(
			context.Background(),
			run.RunID,
			StatusFailed,
			nil,
			util.AsPtr("bootstrap"),
			util.AsPtr("permission error: user is not authorized"),
			&endedOn,
		)
		r, readErr := suite.runStore.ReadRunByID(context.Background(), run.RunID)

		// assert
		suite.NoError(updateErr)
		suite.NoError(readErr)
		suite.Equal(StatusFailed, r.Status)
		suite.Equal("bootstrap", *r.FailedStage)
		suite.Equal("permission error: user is not authorized", *r.ErrorDetail)
		suite.NotNil(r.EndedOn)
	})
	suite.Run("success - passed run has no failed stage", func() {
		// arrange
		run := suite.createRun()
		endedOn := time.Now().UTC()

		// act
		updateErr := suite.runStore.UpdateRunEndedOn(
			context.Background(),
			run.RunID,
			StatusPassed,
			util.AsPtr("artifacts/1"),
			nil,
			nil,
			&endedOn,
		)
		r, readErr := suite.runStore.ReadRunByID(context.Background(), run.RunID)

		// assert
		suite.NoError(updateErr)
		suite.NoError(readErr)
		suite.Equal(StatusPassed, r.Status)
		suite.Nil(r.FailedStage)
		suite.Nil(r.ErrorDetail)
		suite.Equal("artifacts/1", *r.Artifacts)
	})
}

func (suite *runSQLiteStoreSuite) TestRunSQLiteStore_AppendRunOutput() {
	suite.Run("success - output is appended", func() {
		// arrange
		run := suite.createRun()

		// act
		err1 := suite.runStore.AppendRunOutput(context.Background(), run.RunID, "line one\n")
		err2 := suite.runStore.AppendRunOutput(context.Background(), run.RunID, "line two\n")
		r, readErr := suite.runStore.ReadRunByID(context.Background(), run.RunID)

		// assert
		suite.NoError(err1)
		suite.NoError(err2)
		suite.NoError(readErr)
		suite.Equal("line one\nline two\n", *r.Output)
	})
}

func (suite *runSQLiteStoreSuite) TestRunSQLiteStore_ListTargetRuns() {
	suite.Run("success - runs listed and counted", func() {
		// arrange
		target := suite.createTarget()
		for range 3 {
			_, err := suite.runStore.CreateRun(context.Background(), target.TargetID, "main")
			suite.NoError(err)
		}

		// act
		runs, listErr := suite.runStore.ListTargetRuns(context.Background(), target.TargetID)
		latest, latestErr := suite.runStore.ListLatestTargetRuns(
			context.Background(), target.TargetID, 2,
		)
		count, countErr := suite.runStore.CountTargetRuns(
			context.Background(), target.TargetID,
		)

		// assert
		suite.NoError(listErr)
		suite.NoError(latestErr)
		suite.NoError(countErr)
		suite.Len(runs, 3)
		suite.Len(latest, 2)
		suite.Equal(int64(3), count)
	})
}

func (suite *runSQLiteStoreSuite) TestRunSQLiteStore_ListTargetRunsPaginated() {
	suite.Run("success - paginated runs include target name", func() {
		// arrange
		target := suite.createTarget()
		_, err := suite.runStore.CreateRun(context.Background(), target.TargetID, "main")
		suite.NoError(err)

		// act
		runs, listErr := suite.runStore.ListTargetRunsPaginated(
			context.Background(), target.TargetID, 10, 0,
		)

		// assert
		suite.NoError(listErr)
		suite.Len(runs, 1)
		suite.Equal(target.Name, runs[0].TargetName)
	})
}

func (suite *runSQLiteStoreSuite) createTarget() *Target {
	c, err := suite.credentialStore.CreateCredential(
		context.Background(),
		fmt.Sprintf("AKIA%d", time.Now().UTC().UnixNano()),
		"deploy credential",
		"hash",
	)
	suite.NoError(err)
	t, err := suite.targetStore.CreateTarget(context.Background(), &Target{
		TargetCredentialID: c.CredentialID,
		Name:               fmt.Sprintf("target%d", time.Now().UTC().UnixNano()),
		Repository:         "git@example.com:org/microservices.git",
		ManifestPath:       internal.DefaultManifestPath,
		AccountID:          "123456789012",
		Region:             "us-east-1",
		ServiceUnits:       "rest-api-lambda websocket-lambda webhook-lambda mqtt-lambda",
	})
	suite.NoError(err)
	return t
}

func (suite *runSQLiteStoreSuite) createRun() *Run {
	target := suite.createTarget()
	r, err := suite.runStore.CreateRun(context.Background(), target.TargetID, "main")
	suite.NoError(err)
	return r
}
