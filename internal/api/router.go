package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/STRATINT/engager/internal/auth"
	"github.com/STRATINT/engager/internal/config"
	"github.com/STRATINT/engager/internal/engage"
	"github.com/STRATINT/engager/internal/models"
)

// ActionLogReader is the read side of the action log.
type ActionLogReader interface {
	List(ctx context.Context, limit int, kind models.ActionKind) ([]models.ActionLog, error)
	CountSince(ctx context.Context, kind models.ActionKind, since time.Time) (int, error)
}

// Deps groups what the status API serves. Actions, Health and Metrics are
// optional.
type Deps struct {
	Status   *engage.StatusBoard
	Actions  ActionLogReader
	Auth     config.AuthConfig
	Health   func(ctx context.Context) error
	Metrics  http.Handler
	Location *time.Location
}

// SetupRoutes configures all status server routes.
func SetupRoutes(mux *http.ServeMux, deps Deps, logger *slog.Logger) {
	statusHandler := NewStatusHandler(deps.Status, deps.Actions, deps.Health, deps.Location, logger)

	mux.HandleFunc("/healthz", statusHandler.Healthz)

	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics)
	}

	if !auth.Enabled(deps.Auth) {
		logger.Warn("ADMIN_JWT_SECRET or ADMIN_PASSWORD_HASH not set, status API disabled")
		return
	}

	authHandler := NewAuthHandler(deps.Auth, logger)
	authMiddleware := auth.Middleware(deps.Auth)

	// Authentication routes (public)
	mux.HandleFunc("/api/auth/login", authHandler.Login)

	// Status routes (protected)
	mux.Handle("/api/status", authMiddleware(http.HandlerFunc(statusHandler.Status)))
	if deps.Actions != nil {
		mux.Handle("/api/actions", authMiddleware(http.HandlerFunc(statusHandler.Actions)))
	}
}
