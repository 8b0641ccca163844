package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrator applies embedded goose migrations over a database/sql connection.
type Migrator struct {
	databaseURL string
	fsys        fs.FS
}

func NewMigrator(databaseURL string, fsys fs.FS) *Migrator {
	return &Migrator{databaseURL: databaseURL, fsys: fsys}
}

func (m *Migrator) open() (*sql.DB, error) {
	sqlDB, err := sql.Open("pgx", m.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return sqlDB, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	sqlDB, err := m.open()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	goose.SetBaseFS(m.fsys)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Status prints the goose migration status to stdout.
func (m *Migrator) Status(ctx context.Context) error {
	sqlDB, err := m.open()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	goose.SetBaseFS(m.fsys)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.StatusContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	return nil
}
