package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"slices"
	"testing"
	"time"

	"github.com/haatos/simple-cd/internal"
	"github.com/haatos/simple-cd/internal/util"
	"github.com/stretchr/testify/suite"
)

type targetSQLiteStoreSuite struct {
	targetStore     *TargetSQLiteStore
	credentialStore *CredentialSQLiteStore
	db              *sql.DB
	suite.Suite
}

func TestTargetSQLiteStore(t *testing.T) {
	suite.Run(t, new(targetSQLiteStoreSuite))
}

func (suite *targetSQLiteStoreSuite) SetupSuite() {
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

	suite.targetStore = NewTargetSQLiteStore(db, db)
	suite.credentialStore = NewCredentialSQLiteStore(db, db)
}

func (suite *targetSQLiteStoreSuite) TearDownSuite() {
	_ = suite.db.Close()
}

func (suite *targetSQLiteStoreSuite) TestTargetSQLiteStore_CreateTarget() {
	suite.Run("success - target created", func() {
		// arrange
		c := suite.createCredential()

		// act
		t, err := suite.targetStore.CreateTarget(context.Background(), &Target{
			TargetCredentialID: c.CredentialID,
			Name:               fmt.Sprintf("microservices%d", time.Now().UTC().UnixNano()),
			Description:        "microservices stack deploy",
			Repository:         "git@example.com:org/microservices.git",
			ManifestPath:       internal.DefaultManifestPath,
			AccountID:          "123456789012",
			Region:             "us-east-1",
			ServiceUnits:       "rest-api-lambda websocket-lambda webhook-lambda mqtt-lambda",
		})

		// assert
		suite.NoError(err)
		suite.NotNil(t)
		suite.NotEqual(0, t.TargetID)
	})
	suite.Run("failure - missing credential violates foreign key", func() {
		// arrange
		target := &Target{
			TargetCredentialID: 99999,
			Name:               fmt.Sprintf("orphan%d", time.Now().UTC().UnixNano()),
			Repository:         "git@example.com:org/microservices.git",
			ManifestPath:       internal.DefaultManifestPath,
			AccountID:          "123456789012",
			Region:             "us-east-1",
			ServiceUnits:       "rest-api-lambda",
		}

		// act
		_, err := suite.targetStore.CreateTarget(context.Background(), target)

		// assert
		suite.Error(err)
	})
}

func (suite *targetSQLiteStoreSuite) TestTargetSQLiteStore_ReadTargetByID() {
	suite.Run("success - target found", func() {
		// arrange
		expectedTarget := suite.createTarget()

		// act
		t, err := suite.targetStore.ReadTargetByID(
			context.Background(), expectedTarget.TargetID,
		)

		// assert
		suite.NoError(err)
		suite.Equal(expectedTarget.Name, t.Name)
		suite.Equal(expectedTarget.AccountID, t.AccountID)
		suite.Equal(expectedTarget.Region, t.Region)
		suite.Equal(expectedTarget.ServiceUnits, t.ServiceUnits)
	})
	suite.Run("failure - target not found", func() {
		// act
		t, err := suite.targetStore.ReadTargetByID(context.Background(), 43241)

		// assert
		suite.Error(err)
		suite.True(errors.Is(err, sql.ErrNoRows))
		suite.Nil(t)
	})
}

func (suite *targetSQLiteStoreSuite) TestTargetSQLiteStore_ReadTargetRunData() {
	suite.Run("success - run data joins target and credential", func() {
		// arrange
		c := suite.createCredential()
		target := suite.createTargetWithCredential(c)

		// act
		trd, err := suite.targetStore.ReadTargetRunData(
			context.Background(), target.TargetID,
		)

		// assert
		suite.NoError(err)
		suite.Equal(target.TargetID, trd.TargetID)
		suite.Equal(c.CredentialID, trd.CredentialID)
		suite.Equal(c.AccessKeyID, trd.AccessKeyID)
		suite.Equal(c.SecretAccessKeyHash, trd.SecretAccessKeyHash)
		suite.Equal(target.AccountID, trd.AccountID)
		suite.Equal(target.Region, trd.Region)
		suite.Equal(target.ServiceUnits, trd.ServiceUnits)
	})
}

func (suite *targetSQLiteStoreSuite) TestTargetSQLiteStore_UpdateTarget() {
	suite.Run("success - target updates", func() {
		// arrange
		target := suite.createTarget()
		target.Description = "updated description"
		target.Region = "eu-west-1"
		target.ServiceUnits = "rest-api-lambda"

		// act
		updateErr := suite.targetStore.UpdateTarget(context.Background(), target)
		t, readErr := suite.targetStore.ReadTargetByID(
			context.Background(), target.TargetID,
		)

		// assert
		suite.NoError(updateErr)
		suite.NoError(readErr)
		suite.Equal("updated description", t.Description)
		suite.Equal("eu-west-1", t.Region)
		suite.Equal("rest-api-lambda", t.ServiceUnits)
	})
}

func (suite *targetSQLiteStoreSuite) TestTargetSQLiteStore_UpdateTargetSchedule() {
	suite.Run("success - schedule set and listed", func() {
		// arrange
		target := suite.createTarget()

		// act
		err := suite.targetStore.UpdateTargetSchedule(
			context.Background(),
			target.TargetID,
			util.AsPtr("0 4 * * *"),
			util.AsPtr("main"),
			util.AsPtr("job-id"),
		)
		scheduled, listErr := suite.targetStore.ListScheduledTargets(context.Background())

		// assert
		suite.NoError(err)
		suite.NoError(listErr)
		suite.True(slices.ContainsFunc(scheduled, func(t *Target) bool {
			return t.TargetID == target.TargetID
		}))
	})
}

func (suite *targetSQLiteStoreSuite) TestTargetSQLiteStore_DeleteTarget() {
	suite.Run("success - target is deleted", func() {
		// arrange
		target := suite.createTarget()

		// act
		deleteErr := suite.targetStore.DeleteTarget(context.Background(), target.TargetID)
		t, readErr := suite.targetStore.ReadTargetByID(
			context.Background(), target.TargetID,
		)

		// assert
		suite.NoError(deleteErr)
		suite.Error(readErr)
		suite.Nil(t)
	})
}

func (suite *targetSQLiteStoreSuite) TestTargetSQLiteStore_ListTargets() {
	suite.Run("success - targets found", func() {
		// arrange
		target := suite.createTarget()

		// act
		targets, err := suite.targetStore.ListTargets(context.Background())

		// assert
		suite.NoError(err)
		suite.True(len(targets) >= 1)
		suite.True(slices.ContainsFunc(targets, func(t *Target) bool {
			return t.TargetID == target.TargetID
		}))
	})
}

func (suite *targetSQLiteStoreSuite) createCredential() *Credential {
	c, err := suite.credentialStore.CreateCredential(
		context.Background(),
		fmt.Sprintf("AKIA%d", time.Now().UTC().UnixNano()),
		"deploy credential",
		"hash",
	)
	suite.NoError(err)
	return c
}

func (suite *targetSQLiteStoreSuite) createTarget() *Target {
	return suite.createTargetWithCredential(suite.createCredential())
}

func (suite *targetSQLiteStoreSuite) createTargetWithCredential(c *Credential) *Target {
	t, err := suite.targetStore.CreateTarget(context.Background(), &Target{
		TargetCredentialID: c.CredentialID,
		Name:               fmt.Sprintf("target%d", time.Now().UTC().UnixNano()),
		Description:        "microservices stack deploy",
		Repository:         "git@example.com:org/microservices.git",
		ManifestPath:       internal.DefaultManifestPath,
		AccountID:          "123456789012",
		Region:             "us-east-1",
		ServiceUnits:       "rest-api-lambda websocket-lambda webhook-lambda mqtt-lambda",
	})
	suite.NoError(err)
	return t
}
