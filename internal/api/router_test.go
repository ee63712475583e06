package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/STRATINT/engager/internal/auth"
	"github.com/STRATINT/engager/internal/config"
	"github.com/STRATINT/engager/internal/engage"
	"github.com/STRATINT/engager/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeActionLog struct {
	entries  []models.ActionLog
	lastKind models.ActionKind
	since    time.Time
}

func (f *fakeActionLog) List(_ context.Context, limit int, kind models.ActionKind) ([]models.ActionLog, error) {
	f.lastKind = kind
	if limit < len(f.entries) {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

func (f *fakeActionLog) CountSince(_ context.Context, kind models.ActionKind, since time.Time) (int, error) {
	f.since = since
	if kind == models.ActionLike {
		return 3, nil
	}
	return 1, nil
}

func newTestMux(t *testing.T, deps Deps) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	SetupRoutes(mux, deps, discardLogger())
	return mux
}

func testAuthConfig(t *testing.T) config.AuthConfig {
	t.Helper()
	hash, err := auth.HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	return config.AuthConfig{JWTSecret: "s3cret", AdminPasswordHash: hash, TokenDuration: time.Hour}
}

func login(t *testing.T, mux http.Handler, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(LoginRequest{Password: password})
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))
	return rr
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name   string
		health func(context.Context) error
		want   int
	}{
		{name: "no database", want: http.StatusOK},
		{name: "database up", health: func(context.Context) error { return nil }, want: http.StatusOK},
		{name: "database down", health: func(context.Context) error { return errors.New("connection refused") }, want: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newTestMux(t, Deps{Status: engage.NewStatusBoard(), Health: tt.health})
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestAPIDisabledWithoutCredentials(t *testing.T) {
	mux := newTestMux(t, Deps{Status: engage.NewStatusBoard()})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status API to be unmounted, got %d", rr.Code)
	}
}

func TestLoginAndStatus(t *testing.T) {
	board := engage.NewStatusBoard()
	mux := newTestMux(t, Deps{Status: board, Auth: testAuthConfig(t)})

	if rr := login(t, mux, "wrong"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected wrong password to be rejected, got %d", rr.Code)
	}

	rr := login(t, mux, "correct horse")
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp LoginResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil || resp.Token == "" {
		t.Fatalf("unexpected login response %v, %v", resp, err)
	}

	unauth := httptest.NewRecorder()
	mux.ServeHTTP(unauth, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if unauth.Code != http.StatusUnauthorized {
		t.Errorf("expected status to require a token, got %d", unauth.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	status := httptest.NewRecorder()
	mux.ServeHTTP(status, req)
	if status.Code != http.StatusOK {
		t.Fatalf("status code = %d", status.Code)
	}

	var snap engage.Snapshot
	if err := json.NewDecoder(status.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.State != engage.StateStarting || snap.LastPass != nil {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestLoginRejectsBadMethodAndBody(t *testing.T) {
	mux := newTestMux(t, Deps{Status: engage.NewStatusBoard(), Auth: testAuthConfig(t)})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/auth/login", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader([]byte("{"))))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestActions(t *testing.T) {
	cfg := testAuthConfig(t)
	token, err := auth.GenerateToken("admin", cfg.JWTSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	actions := &fakeActionLog{entries: []models.ActionLog{
		{ID: "1", Kind: models.ActionLike, Outcome: models.OutcomeOK},
		{ID: "2", Kind: models.ActionFollow, Outcome: models.OutcomeError},
	}}
	mux := newTestMux(t, Deps{Status: engage.NewStatusBoard(), Auth: cfg, Actions: actions, Location: time.UTC})

	get := func(target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		return rr
	}

	rr := get("/api/actions?kind=like&limit=1")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var body struct {
		Actions []models.ActionLog        `json:"actions"`
		Count   int                       `json:"count"`
		Today   map[models.ActionKind]int `json:"today"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 1 || actions.lastKind != models.ActionLike {
		t.Errorf("unexpected listing %+v (kind %q)", body, actions.lastKind)
	}
	if body.Today[models.ActionLike] != 3 || body.Today[models.ActionFollow] != 1 {
		t.Errorf("unexpected daily counts %v", body.Today)
	}
	if actions.since.Hour() != 0 || actions.since.Minute() != 0 {
		t.Errorf("expected counts since midnight, got %v", actions.since)
	}

	if rr := get("/api/actions?kind=retweet"); rr.Code != http.StatusBadRequest {
		t.Errorf("expected unknown kind to be rejected, got %d", rr.Code)
	}
}
