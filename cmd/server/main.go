package main

import (
	"context"
	"log"

	"github.com/haatos/simple-cd/internal"
	"github.com/haatos/simple-cd/internal/handler"
	"github.com/haatos/simple-cd/internal/security"
	"github.com/haatos/simple-cd/internal/service"
	"github.com/haatos/simple-cd/internal/settings"
	"github.com/haatos/simple-cd/internal/store"
	"github.com/haatos/simple-cd/internal/util"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	_ "modernc.org/sqlite"
)

func main() {
	if exists, _ := util.PathExists(internal.DotEnvPath); exists {
		settings.ReadDotenv(internal.DotEnvPath)
	}
	settings.Settings = settings.NewSettings()
	internal.InitializeConfiguration()

	encrypter := security.NewAESEncrypter(security.NewHashKey())

	rdb := store.InitDatabase(true)
	defer rdb.Close()
	rwdb := store.InitDatabase(false)
	defer rwdb.Close()
	store.RunMigrations(rwdb, internal.MigrationsDir)

	deployScheduler := service.NewScheduler()
	defer deployScheduler.Shutdown()

	credSvc := service.NewCredentialService(
		store.NewCredentialSQLiteStore(rdb, rwdb),
		encrypter,
	)
	apiKeySvc := service.NewAPIKeyService(
		store.NewAPIKeySQLiteStore(rdb, rwdb),
		service.NewUUIDGen(),
	)
	deploySvc := service.NewDeployService(
		store.NewTargetSQLiteStore(rdb, rwdb),
		store.NewRunSQLiteStore(rdb, rwdb),
		store.NewCredentialSQLiteStore(rdb, rwdb),
		store.NewAPIKeySQLiteStore(rdb, rwdb),
		deployScheduler,
		encrypter,
		settings.Settings.Workspace,
	)
	if err := deploySvc.InitializeRunQueues(context.Background()); err != nil {
		log.Fatal(err)
	}
	defer deploySvc.ShutdownAll()

	handler.ScheduleTargets(deploySvc, deployScheduler)
	deployScheduler.Start()

	e := setupEcho()
	root := e.Group("")
	handler.SetupTargetRoutes(root, deploySvc, apiKeySvc)
	handler.SetupCredentialRoutes(root, credSvc, apiKeySvc)
	handler.SetupAPIKeyRoutes(root, apiKeySvc)

	configGroup := root.Group("/api/config", handler.APIKeyAuth(apiKeySvc))
	configGroup.GET("", handler.GetConfig)
	configGroup.POST("", handler.PostConfig)

	internal.GracefulShutdown(e, settings.Settings.Port)
}

func setupEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Use(
		middleware.CORSWithConfig(internal.GetCORSConfig()),
		middleware.RateLimiterWithConfig(internal.GetRateLimiterConfig()),
	)
	return e
}
