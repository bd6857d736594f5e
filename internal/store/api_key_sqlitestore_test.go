package store

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"testing"

	"github.com/google/uuid"
	"github.com/haatos/simple-cd/internal"
	"github.com/stretchr/testify/suite"
)

type apiKeySQLiteStoreSuite struct {
	apiKeyStore *APIKeySQLiteStore
	db          *sql.DB
	suite.Suite
}

func TestAPIKeySQLiteStore(t *testing.T) {
	suite.Run(t, new(apiKeySQLiteStoreSuite))
}

func (suite *apiKeySQLiteStoreSuite) SetupSuite() {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		log.Fatal(err)
	}
	suite.db = db

	RunMigrations(db, internal.MigrationsDir)

	suite.apiKeyStore = NewAPIKeySQLiteStore(db, db)
}

func (suite *apiKeySQLiteStoreSuite) TearDownSuite() {
	_ = suite.db.Close()
}

func (suite *apiKeySQLiteStoreSuite) TestAPIKeySQLiteStore_CreateAPIKey() {
	suite.Run("success - api key created", func() {
		// arrange
		value := uuid.NewString()

		// act
		key, err := suite.apiKeyStore.CreateAPIKey(context.Background(), value)

		// assert
		suite.NoError(err)
		suite.NotNil(key)
		suite.NotEqual(0, key.ID)
		suite.Equal(value, key.Value)
	})
}

func (suite *apiKeySQLiteStoreSuite) TestAPIKeySQLiteStore_ReadAPIKeyByValue() {
	suite.Run("success - api key found by value", func() {
		// arrange
		value := uuid.NewString()
		created, err := suite.apiKeyStore.CreateAPIKey(context.Background(), value)
		suite.NoError(err)

		// act
		key, readErr := suite.apiKeyStore.ReadAPIKeyByValue(context.Background(), value)

		// assert
		suite.NoError(readErr)
		suite.Equal(created.ID, key.ID)
	})
	suite.Run("failure - unknown value", func() {
		// act
		key, err := suite.apiKeyStore.ReadAPIKeyByValue(
			context.Background(), uuid.NewString(),
		)

		// assert
		suite.Error(err)
		suite.True(errors.Is(err, sql.ErrNoRows))
		suite.Nil(key)
	})
}

func (suite *apiKeySQLiteStoreSuite) TestAPIKeySQLiteStore_DeleteAPIKey() {
	suite.Run("success - api key deleted", func() {
		// arrange
		created, err := suite.apiKeyStore.CreateAPIKey(
			context.Background(), uuid.NewString(),
		)
		suite.NoError(err)

		// act
		deleteErr := suite.apiKeyStore.DeleteAPIKey(context.Background(), created.ID)
		key, readErr := suite.apiKeyStore.ReadAPIKeyByID(context.Background(), created.ID)

		// assert
		suite.NoError(deleteErr)
		suite.Error(readErr)
		suite.Nil(key)
	})
}
