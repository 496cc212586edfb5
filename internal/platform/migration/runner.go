// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package migration applies the SQL files under data/migrations with
// golang-migrate. The server runs [RunUp] before it accepts traffic.
package migration

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// Registers the "pgx5" database scheme.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	// Registers the "file" source scheme.
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// ErrDirty is returned when a previous migration failed halfway.
var ErrDirty = errors.New("migration: database is dirty")

// open builds a migrator for the directory at path and the database at dsn.
func open(dsn, path string, logger *slog.Logger) (*migrate.Migrate, func(), error) {
	migrator, err := migrate.New("file://"+path, pgx5DSN(dsn))
	if err != nil {
		return nil, nil, fmt.Errorf("migration: open %s: %w", path, err)
	}
	migrator.Log = &slogBridge{logger: logger}

	closeFn := func() {
		sourceErr, dbErr := migrator.Close()
		if err := errors.Join(sourceErr, dbErr); err != nil {
			logger.Warn("migration_close_failed", slog.Any("error", err))
		}
	}
	return migrator, closeFn, nil
}

// RunUp applies every pending up migration. A dirty database is refused
// with [ErrDirty] so an operator can repair it by hand.
func RunUp(dsn, path string, logger *slog.Logger) error {
	migrator, closeFn, err := open(dsn, path, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	from, err := version(migrator)
	if err != nil {
		return err
	}

	switch err := migrator.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("migration_up_to_date", slog.Uint64("version", uint64(from)))
		return nil
	case err != nil:
		return fmt.Errorf("migration: up: %w", err)
	}

	to, err := version(migrator)
	if err != nil {
		return err
	}

	logger.Info("migration_applied",
		slog.Uint64("from_version", uint64(from)),
		slog.Uint64("to_version", uint64(to)),
	)
	return nil
}

// Version reports the schema version recorded in the database, 0 when no
// migration has run yet.
func Version(dsn, path string, logger *slog.Logger) (uint, error) {
	migrator, closeFn, err := open(dsn, path, logger)
	if err != nil {
		return 0, err
	}
	defer closeFn()

	return version(migrator)
}

func version(migrator *migrate.Migrate) (uint, error) {
	current, dirty, err := migrator.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("migration: read version: %w", err)
	case dirty:
		return current, fmt.Errorf("%w at version %d", ErrDirty, current)
	}
	return current, nil
}

// pgx5DSN rewrites postgres:// and postgresql:// URLs to the pgx5:// scheme
// golang-migrate's pgx driver registers. Other inputs are returned unchanged.
func pgx5DSN(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dsn, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}

// slogBridge implements migrate.Logger on top of slog at debug level.
type slogBridge struct {
	logger *slog.Logger
}

func (bridge *slogBridge) Printf(format string, args ...any) {
	bridge.logger.Debug("migration_progress", slog.String("detail", strings.TrimSpace(fmt.Sprintf(format, args...))))
}

func (bridge *slogBridge) Verbose() bool { return false }
