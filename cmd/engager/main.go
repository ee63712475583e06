package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/STRATINT/engager/internal/api"
	"github.com/STRATINT/engager/internal/auth"
	"github.com/STRATINT/engager/internal/config"
	"github.com/STRATINT/engager/internal/database"
	"github.com/STRATINT/engager/internal/engage"
	"github.com/STRATINT/engager/internal/logging"
	"github.com/STRATINT/engager/internal/metrics"
	"github.com/STRATINT/engager/internal/queries"
	"github.com/STRATINT/engager/internal/server"
	"github.com/STRATINT/engager/internal/social"
	"github.com/STRATINT/engager/internal/storage"
	"github.com/joho/godotenv"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		os.Exit(hashPassword(os.Args[2:]))
	}

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	envErr := godotenv.Load(envFile)

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		logger.Warn("failed to read env file", "path", envFile, "error", envErr)
	}

	if err := cfg.X.Validate(); err != nil {
		logger.Error("invalid X configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("engager stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("engager stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("starting engager",
		"dry_run", cfg.Engagement.DryRun,
		"like", cfg.Engagement.DoLike,
		"follow", cfg.Engagement.DoFollow,
		"queries_path", cfg.Paths.Queries,
		"seen_path", cfg.Paths.Seen,
		"sessions", cfg.Sessions.Enabled)

	collector, err := metrics.NewCollector()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	var (
		db        *sql.DB
		actionLog *database.ActionLogRepository
	)
	if cfg.Database.URL != "" {
		logger.Info("connecting to database", "database", cfg.Database.Redacted())
		db, err = database.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()

		// Non-fatal: the loop runs without a usable action log and logs each failed write.
		if err := database.RunMigrations(ctx, db, database.Migrations(), logger); err != nil {
			logger.Warn("failed to run migrations, continuing anyway", "error", err)
		}
		actionLog = database.NewActionLogRepository(db)
	}

	client := social.NewXClient(cfg.X, logger.With("component", "x"))
	pacer := engage.NewPacer(engage.TimerSleeper{}, engage.UniformJitter{}, collector)
	status := engage.NewStatusBoard()

	deps := engage.Deps{
		Settings:   cfg.Engagement,
		Gate:       engage.NewSessionGate(cfg.Sessions),
		Queries:    queries.File{Path: cfg.Paths.Queries},
		SeenStore:  storage.NewSeenFile(cfg.Paths.Seen),
		Pager:      engage.NewSearchPager(client, pacer, collector, logger),
		Filter:     engage.NewFilterPipeline(cfg.Engagement, nil),
		Dispatcher: engage.NewActionDispatcher(client, pacer, logger),
		Pacer:      pacer,
		Recorder:   collector,
		Status:     status,
		Logger:     logger,
	}
	if actionLog != nil {
		deps.ActionLog = actionLog
	}
	loop := engage.NewRunLoop(deps)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	if cfg.Server.Port != "" {
		mux := http.NewServeMux()
		routes := api.Deps{
			Status:   status,
			Auth:     cfg.Auth,
			Metrics:  collector.Handler(),
			Location: cfg.Sessions.Location,
		}
		if db != nil {
			routes.Actions = actionLog
			routes.Health = func(ctx context.Context) error { return database.HealthCheck(ctx, db) }
		}
		api.SetupRoutes(mux, routes, logger)

		srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))
		go func() {
			err := srv.Run(runCtx)
			if err != nil {
				cancel()
			}
			serverErr <- err
		}()
	} else {
		close(serverErr)
	}

	loopErr := loop.Run(runCtx)
	cancel()
	if err := <-serverErr; err != nil {
		return err
	}
	if loopErr != nil && !errors.Is(loopErr, context.Canceled) {
		return loopErr
	}
	return nil
}

func hashPassword(args []string) int {
	if len(args) != 1 || args[0] == "" {
		fmt.Fprintln(os.Stderr, "usage: engager hash-password <password>")
		return 2
	}

	hash, err := auth.HashPassword(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, "hash password:", err)
		return 1
	}
	fmt.Println(hash)
	return 0
}
