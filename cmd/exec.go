package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/redis/go-redis/v9"

	"volunteer-hub/config"
	"volunteer-hub/handlers"
	"volunteer-hub/internal/docstore"
	"volunteer-hub/monitoring"
	"volunteer-hub/security"
	"volunteer-hub/services"
	"volunteer-hub/utils"
)

func Start() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	log := setupLogger(cfg.Environment)
	log.Info("starting volunteer-hub", slog.String("env", cfg.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := utils.NewRedisClient(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	monitor := monitoring.NewMonitor()
	if cfg.EnableMetrics {
		go monitoring.Serve(ctx, cfg.MetricsPort, log)
	}

	store := docstore.NewRedisStore(redisClient,
		docstore.WithLogger(log),
		docstore.WithMaxRetries(cfg.TxMaxRetries),
		docstore.WithRetryHook(monitor.TrackTxRetry),
	)

	// Initialize services
	roleService := services.NewRoleService(store, cfg.RoleCacheTTL, log)
	profileService := services.NewProfileService(store, roleService, log)
	notifier := services.NewTaskNotifier(newPublisher(cfg, log), monitor, log)
	ledger := services.NewSignupLedger(store, notifier, monitor, log)
	eventService := services.NewEventService(store, roleService, log)
	announcementService := services.NewAnnouncementService(store, roleService, log)

	registry := services.NewBoardRegistry(ctx, store, cfg.BoardIdleTTL, monitor, log)
	defer registry.Close()
	eventService.OnDeleted(registry.Drop)
	go registry.Run(ctx, cfg.CleanupInterval)

	rateLimiter := security.NewRateLimiter(redisClient, cfg.SignupRateLimit, cfg.SignupRateWindow, log)

	// Initialize handlers
	signupHandler := handlers.NewSignupHandler(ledger, registry, roleService, log)
	eventHandler := handlers.NewEventHandler(eventService, log)
	announcementHandler := handlers.NewAnnouncementHandler(announcementService, log)
	roleHandler := handlers.NewRoleHandler(roleService)

	app := pocketbase.New()

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.Environment == config.EnvDevelopment,
	})
	app.RootCmd.AddCommand(newAuditCmd(ledger, eventService))

	setupProfileHooks(app, profileService, log)

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		syncProfiles(ctx, se.App, profileService, log)

		api := se.Router.Group("/api/v1")
		api.BindFunc(rateLimiter.AntiBotMiddleware())

		// Events
		api.GET("/events", eventHandler.ListEvents)
		api.GET("/events/{eventId}", eventHandler.GetEvent)
		api.POST("/events", eventHandler.CreateEvent).Bind(apis.RequireAuth())
		api.DELETE("/events/{eventId}", eventHandler.DeleteEvent).Bind(apis.RequireAuth())
		api.POST("/events/{eventId}/tasks", eventHandler.CreateTask).Bind(apis.RequireAuth())

		// Task board
		api.GET("/events/{eventId}/board", signupHandler.Board).Bind(apis.RequireAuth())
		api.GET("/events/{eventId}/my-tasks", signupHandler.MyTasks).Bind(apis.RequireAuth())
		api.GET("/events/{eventId}/audit", signupHandler.Audit).Bind(apis.RequireAuth())
		api.GET("/events/{eventId}/tasks/{taskId}/signups", signupHandler.Signups).Bind(apis.RequireAuth())

		// Signups
		api.POST("/events/{eventId}/tasks/{taskId}/signup", signupHandler.SignUp).
			Bind(apis.RequireAuth()).
			BindFunc(rateLimiter.SignupRateLimit())
		api.POST("/events/{eventId}/tasks/{taskId}/cancel", signupHandler.Cancel).
			Bind(apis.RequireAuth()).
			BindFunc(rateLimiter.SignupRateLimit())

		// Announcements
		api.GET("/announcements", announcementHandler.List)
		api.POST("/announcements", announcementHandler.Post).Bind(apis.RequireAuth())

		api.GET("/me/role", roleHandler.MyRole).Bind(apis.RequireAuth())

		se.Router.GET("/health", healthHandler(redisClient))

		log.Info("server routes registered")
		return se.Next()
	})

	if err := app.Start(); err != nil {
		return fmt.Errorf("pocketbase: %w", err)
	}
	return nil
}

// newPublisher returns a PubNub publisher behind a circuit breaker, or a
// no-op publisher when PubNub keys are not configured.
func newPublisher(cfg *config.Config, log *slog.Logger) services.Publisher {
	if cfg.PubNubPublishKey == "" || cfg.PubNubSubscribeKey == "" {
		log.Warn("pubnub not configured, task updates will not be pushed")
		return services.NoopPublisher{}
	}

	breaker := utils.NewCircuitBreaker(utils.Settings{
		Name: "pubnub",
		OnStateChange: func(name string, from, to utils.State) {
			log.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return services.NewPubNubPublisher(cfg, breaker)
}

func healthHandler(redisClient *redis.Client) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if err := utils.RedisHealthCheck(e.Request.Context(), redisClient); err != nil {
			return e.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	}
}
