package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.HTTPAddr != ":8000" {
		t.Errorf("expected HTTPAddr :8000, got %s", cfg.HTTPAddr)
	}
	if cfg.GRPCAddr != ":50051" {
		t.Errorf("expected GRPCAddr :50051, got %s", cfg.GRPCAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("expected MetricsAddr :9090, got %s", cfg.MetricsAddr)
	}
	if cfg.Storage.Kind != domain.BackendMemory {
		t.Errorf("expected memory backend, got %s", cfg.Storage.Kind)
	}
	if cfg.ProcessTimeUnit != time.Second {
		t.Errorf("expected 1s time unit, got %s", cfg.ProcessTimeUnit)
	}
	if cfg.JWTSecret == "" {
		t.Error("JWTSecret should not be empty")
	}
	if cfg.VerificationKey != "key" {
		t.Errorf("expected verification key 'key', got %s", cfg.VerificationKey)
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.ShutdownTimeout = time.Second
	return cfg
}

func TestRun_GracefulShutdown(t *testing.T) {
	cfg := testConfig()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_SQLBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Kind = domain.BackendSQL

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	err := Run(ctx, cfg)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestRun_InvalidStorageBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Kind = "invalid-backend"

	err := Run(context.Background(), cfg)
	if !errors.Is(err, domain.ErrUnknownBackend) {
		t.Fatalf("expected unknown backend error, got %v", err)
	}
}

func TestRun_EmptyJWTSecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = ""

	if err := Run(context.Background(), cfg); err == nil {
		t.Fatal("expected error for empty jwt secret")
	}
}

func TestRun_BusyHTTPPort(t *testing.T) {
	cfg := testConfig()
	busy := findFreeListener(t)
	cfg.HTTPAddr = busy.Addr().String()

	if err := Run(context.Background(), cfg); err == nil {
		t.Fatal("expected listen error for busy port")
	}
}
