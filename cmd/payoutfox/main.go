package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PayoutFox/app/controllers"
	"github.com/ManuelReschke/PayoutFox/app/repository"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/cache"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/config"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/constants"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/database"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/env"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/router"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/webhook"
)

func main() {
	env.SetupEnvFile()

	app, db, err := NewApplication(context.Background())
	if err != nil {
		log.Fatalf("[Server] Startup failed: %v", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Warnf("[Server] Closing database: %v", err)
		}
	}()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("[Server] Shutting down")
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
	if err := app.Listen(addr); err != nil {
		log.Errorf("[Server] Listen: %v", err)
	}
}

func NewApplication(ctx context.Context) (*fiber.App, *gorm.DB, error) {
	settlement, err := config.LoadSettlement()
	if err != nil {
		return nil, nil, err
	}

	db, err := database.Open(database.ConfigFromEnv())
	if err != nil {
		return nil, nil, err
	}
	repos := repository.NewRepositories(db)

	var (
		redisClient    redis.UniversalClient
		limiterStorage fiber.Storage
	)
	cacheCfg := cache.ConfigFromEnv()
	if cacheCfg.Enabled() {
		client, err := cache.Connect(ctx, cacheCfg)
		if err != nil {
			log.Warnf("[Server] Cache unavailable, triage counters and shared rate limits disabled: %v", err)
		} else {
			redisClient = client
			limiterStorage = router.NewLimiterStorage(cacheCfg)
		}
	}
	counters := counter.NewRecorder(redisClient)

	if !settlement.Readiness().Ready {
		log.Warnw("[Server] Payout provider not ready", "reasons", settlement.Readiness().Reasons)
	}

	basePath := findBasePath()

	app := fiber.New(fiber.Config{
		AppName:   "PayoutFox",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics, only with credentials
	if user, pass := env.GetEnv("METRICS_USER", ""), env.GetEnv("METRICS_PASSWORD", ""); user != "" && pass != "" {
		app.Get("/metrics", basicauth.New(basicauth.Config{
			Users: map[string]string{user: pass},
		}), monitor.New())
	}

	// SWAGGER / OPENAPI
	if basePath != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: constants.DocsBasePath,
			FilePath: basePath + constants.OpenAPIFile,
			Path:     constants.DocsPath,
		}))
	} else {
		log.Warn("[Server] OpenAPI document not found, docs disabled")
	}

	// ROUTER
	router.InstallRouter(app, router.Deps{
		Webhook:        controllers.NewWebhookController(webhook.NewReceiver(settlement.ProviderAPIKey, repos, counters)),
		Health:         controllers.NewHealthController(settlement, repos, counters),
		LimiterStorage: limiterStorage,
	})

	return app, db, nil
}

// findBasePath locates the project root from the usual working directories.
func findBasePath() string {
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/payoutfox to project root
		"../../../", // Fallback
	}
	for _, path := range basePaths {
		if _, err := os.Stat(path + constants.OpenAPIFile); err == nil {
			return path
		}
	}
	return ""
}
