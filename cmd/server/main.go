package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-planner/internal/config"
	"github.com/yukikurage/task-planner/internal/database"
	"github.com/yukikurage/task-planner/internal/handlers"
	"github.com/yukikurage/task-planner/internal/lifecycle"
	"github.com/yukikurage/task-planner/internal/middleware"
	"github.com/yukikurage/task-planner/internal/replication"
	"github.com/yukikurage/task-planner/internal/repository"
	"github.com/yukikurage/task-planner/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	if cfg.GinMode != gin.ReleaseMode {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("invalid timezone", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		os.Exit(1)
	}

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}

	// Run migrations
	if err := database.Migrate(db); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	repo := repository.NewTaskRepository(db)
	persister := services.NewPersister(repo, cfg.SaveDebounce, logger)
	engine := lifecycle.NewEngine(lifecycle.WithLogger(logger))

	var broadcaster replication.Broadcaster = replication.NewLocalHub()
	if cfg.ReplicationEnabled {
		redisBroadcaster := replication.NewRedisBroadcaster(cfg.RedisAddr(), cfg.ReplicationChannel, logger)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisBroadcaster.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Error("failed to reach redis", slog.String("addr", cfg.RedisAddr()), slog.Any("error", err))
			os.Exit(1)
		}
		broadcaster = redisBroadcaster
	}

	planner := services.NewPlannerService(engine, repo, persister, broadcaster, loc, logger)
	if err := planner.Load(context.Background()); err != nil {
		logger.Error("failed to load tasks", slog.Any("error", err))
		os.Exit(1)
	}

	listenCtx, stopListening := context.WithCancel(context.Background())
	go func() {
		if err := planner.Listen(listenCtx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, replication.ErrClosed) {
			logger.Error("replication stopped", slog.Any("error", err))
		}
	}()

	scheduler := services.NewSchedulerService(loc, logger)
	if _, err := scheduler.Schedule(cfg.MissedSweepSpec, "missed-sweep", planner.SweepOverdue); err != nil {
		logger.Error("invalid sweep schedule", slog.String("spec", cfg.MissedSweepSpec), slog.Any("error", err))
		os.Exit(1)
	}
	if _, err := scheduler.ScheduleInterval(time.Minute, "flush", persister.Flush); err != nil {
		logger.Error("failed to schedule flush", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler.Start()

	// Initialize handlers
	taskHandler := handlers.NewTaskHandler(planner)
	occurrenceHandler := handlers.NewOccurrenceHandler(planner)
	calendarHandler := handlers.NewCalendarHandler(planner)

	r := gin.New()
	r.Use(middleware.RequestLogger(logger), gin.Recovery())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Task Planner API is running",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		tasks := api.Group("/tasks")
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.POST("", taskHandler.CreateTask)
			tasks.GET("/:id", middleware.RequireTask(planner), taskHandler.GetTask)
			tasks.DELETE("/:id", taskHandler.DeleteTask)
			tasks.POST("/:id/transition", taskHandler.TransitionTask)
		}

		occurrences := api.Group("/occurrences")
		{
			occurrences.PATCH("/:occurrence_id", occurrenceHandler.EditOccurrence)
			occurrences.DELETE("/:occurrence_id", occurrenceHandler.ExcludeOccurrence)
			occurrences.POST("/:occurrence_id/transition", occurrenceHandler.TransitionOccurrence)
		}

		api.GET("/calendar", calendarHandler.GetCalendar)
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.Any("error", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown server", slog.Any("error", err))
	}
	scheduler.Stop()
	stopListening()

	// Pending edits are written before the process exits.
	if err := persister.Flush(ctx); err != nil {
		logger.Error("failed to flush tasks", slog.Any("error", err))
	}
	if err := broadcaster.Close(); err != nil {
		logger.Error("failed to close broadcaster", slog.Any("error", err))
	}

	logger.Info("server stopped")
}
