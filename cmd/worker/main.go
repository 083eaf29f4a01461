package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-tracker/internal/database"
	"github.com/hugh/go-tracker/internal/tasks"
	"github.com/hugh/go-tracker/pkg/config"
	"github.com/hugh/go-tracker/pkg/queue"
	"github.com/hugh/go-tracker/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting Go-Tracker worker")

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Create Asynq server and client
	srv := queue.NewServer(&cfg.Redis, 10)
	client := queue.NewClient(&cfg.Redis)
	defer client.Close()

	// Create task handler
	handler := tasks.NewHandler(db, logger, cfg.Invites.Retention())

	// Register handlers
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	// Handle shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Enqueue maintenance tasks on the configured cron schedule
	go runMaintenanceSchedule(ctx, client, cfg.Maintenance.Cron, logger)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		srv.Shutdown()
		cancel()
	}()

	logger.Info("worker started, waiting for tasks...")

	// Start the server
	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
	}

	// Close database connection
	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}

// runMaintenanceSchedule sleeps until each cron tick and enqueues the
// maintenance tasks. Tasks go to the low queue so they never crowd out
// user-facing work.
func runMaintenanceSchedule(ctx context.Context, client *asynq.Client, cronExpr string, logger *slog.Logger) {
	schedule, err := util.ParseCronSchedule(cronExpr)
	if err != nil {
		logger.Error("invalid maintenance cron expression", "expr", cronExpr, "error", err)
		return
	}

	for {
		next := schedule.Next(time.Now().UTC())
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		for _, task := range []*asynq.Task{
			tasks.NewPruneRateLimitsTask(),
			tasks.NewPurgeInvitationsTask(),
		} {
			if _, err := client.EnqueueContext(ctx, task, asynq.Queue("low")); err != nil {
				logger.Error("failed to enqueue maintenance task", "type", task.Type(), "error", err)
			}
		}
	}
}
