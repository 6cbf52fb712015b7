package main

import (
	"context"
	"fmt"

	"github.com/lox/downforce/cmd/downforce/shared"
	"github.com/lox/downforce/internal/store/migrations"
)

// MigrateCmd applies or reverts the Postgres schema.
type MigrateCmd struct {
	Up      MigrateUpCmd      `cmd:"" help:"Apply all pending migrations"`
	Down    MigrateDownCmd    `cmd:"" help:"Revert the most recent migration"`
	Version MigrateVersionCmd `cmd:"" help:"Print the current schema version"`
}

// MigrateFlags are shared by the migrate subcommands.
type MigrateFlags struct {
	DatabaseURL string `kong:"name='database-url',env='DATABASE_URL',required,help='Postgres connection string'"`
	Debug       bool   `kong:"help='Enable debug logging'"`
}

type MigrateUpCmd struct {
	MigrateFlags `embed:""`
}

func (c *MigrateUpCmd) Run() error {
	logger := shared.SetupLogger(shared.Level(c.Debug))
	ctx := shared.SetupSignalHandler()
	if err := migrations.Up(ctx, c.DatabaseURL, logger); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	logger.Info().Msg("Migrations applied")
	return nil
}

type MigrateDownCmd struct {
	MigrateFlags `embed:""`
}

func (c *MigrateDownCmd) Run() error {
	logger := shared.SetupLogger(shared.Level(c.Debug))
	ctx := shared.SetupSignalHandler()
	if err := migrations.Down(ctx, c.DatabaseURL, logger); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	logger.Info().Msg("Reverted one migration")
	return nil
}

type MigrateVersionCmd struct {
	MigrateFlags `embed:""`
}

func (c *MigrateVersionCmd) Run() error {
	logger := shared.SetupLogger(shared.Level(c.Debug))
	v, err := migrations.Version(context.Background(), c.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("migrate version: %w", err)
	}
	fmt.Println(v)
	return nil
}
