package main

import (
	"context"
	"fmt"

	"github.com/copperpot/copperpot/internal/bus"
	"github.com/copperpot/copperpot/internal/config"
	"github.com/copperpot/copperpot/internal/service"
	"github.com/copperpot/copperpot/internal/storage"
)

// initStorage opens the database and brings its schema up to date.
func initStorage(ctx context.Context) (service.Storage, error) {
	cfg := config.FromViper()

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initBus builds the configured notification sink.
func initBus() (bus.Publisher, error) {
	cfg := config.FromViper()
	return bus.New(cfg.Bus)
}

// currentUserID resolves the user the command operates as.
func currentUserID() string {
	return config.FromViper().UserID
}
