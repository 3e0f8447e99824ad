package storage

import (
	"context"
	"fmt"
	"log/slog"

	"hucha/internal/config"
	"hucha/internal/ledger"
	"hucha/internal/storage/memory"
	"hucha/internal/storage/postgres"
)

// BackendType represents the configured storage backend.
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// OpenStore builds the ledger store selected by cfg.DataBackend.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ledger.Store, CleanupFunc, error) {
	if logger == nil {
		logger = slog.Default()
	}

	backend := BackendType(cfg.DataBackend)
	if !backend.IsValid() {
		return nil, nil, fmt.Errorf("invalid backend type: %s", backend)
	}

	switch backend {
	case SQLiteBackend:
		store, err := NewSQLiteStore(cfg.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return store, store.Close, nil

	case PostgresBackend:
		store, err := postgres.NewStore(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
		}
		logger.Info("Initialized Postgres backend")
		return store, func() error { store.Close(); return nil }, nil

	case MemoryBackend:
		logger.Info("Initialized memory backend")
		return memory.New(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported backend type: %s", backend)
	}
}
