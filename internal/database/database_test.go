package database

import (
	"context"
	"errors"
	"testing"
)

func TestConnectRequiresURL(t *testing.T) {
	db, err := Connect(context.Background(), "")
	if !errors.Is(err, ErrNoURL) {
		t.Fatalf("expected ErrNoURL, got %v", err)
	}
	if db != nil {
		t.Error("expected no handle without a URL")
	}
}

func TestConnectFailsWhenUnreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}

	// Port 1 on loopback refuses connections immediately.
	db, err := Connect(context.Background(), "postgres://engager@127.0.0.1:1/engager?sslmode=disable&connect_timeout=1")
	if err == nil {
		db.Close()
		t.Fatal("expected an error for an unreachable database")
	}
	if db != nil {
		t.Error("expected no handle on failure")
	}
}
