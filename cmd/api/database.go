package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bryanwahyu/sessionlens/internal/config"
	"github.com/bryanwahyu/sessionlens/internal/infra/db/mysql"
	"github.com/bryanwahyu/sessionlens/internal/infra/db/postgres"
	"github.com/bryanwahyu/sessionlens/internal/infra/db/sqlite"
	"github.com/bryanwahyu/sessionlens/internal/infra/db/sqlstore"
)

type database struct {
	DB      *sql.DB
	Dialect sqlstore.Dialect
	migrate func(context.Context, *sql.DB) error
}

func openDatabase(ctx context.Context, cfg *config.Config) (*database, error) {
	var (
		d   = &database{}
		err error
	)
	switch cfg.Database.Driver {
	case "postgres":
		d.DB, err = postgres.Connect(ctx, cfg.PostgresDSN())
		d.Dialect, d.migrate = sqlstore.Postgres, postgres.Migrate
	case "mysql":
		d.DB, err = mysql.Connect(ctx, cfg.MySQLDSN())
		d.Dialect, d.migrate = sqlstore.MySQL, mysql.Migrate
	case "sqlite":
		d.DB, err = sqlite.Open(ctx, cfg.Database.Path)
		d.Dialect, d.migrate = sqlstore.SQLite, sqlite.Migrate
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("%s connect: %w", cfg.Database.Driver, err)
	}
	return d, nil
}

func (d *database) Migrate(ctx context.Context) error {
	return d.migrate(ctx, d.DB)
}
