// Package db loads the emission-factor table from Postgres. The database is
// a read-only source consulted once at startup; no request or result state
// is ever written back.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var MigrationsFS embed.FS

// Migrate applies the embedded migrations, which create and seed the
// emission_factors table.
func Migrate(sqlDB *sql.DB) error {
	srcDriver, err := iofs.New(MigrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	dbDriver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// LoadEmissionFactors reads every factor row. The result feeds an immutable
// carbon.Table; the connection can be closed afterwards.
func LoadEmissionFactors(ctx context.Context, sqlDB *sql.DB) (map[string]float64, error) {
	rows, err := sqlDB.QueryContext(ctx, `SELECT name, carbon_kg FROM emission_factors`)
	if err != nil {
		return nil, fmt.Errorf("query emission factors: %w", err)
	}
	defer rows.Close()

	factors := make(map[string]float64)
	for rows.Next() {
		var name string
		var kg float64
		if err := rows.Scan(&name, &kg); err != nil {
			return nil, fmt.Errorf("scan emission factor: %w", err)
		}
		factors[name] = kg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read emission factors: %w", err)
	}
	if len(factors) == 0 {
		return nil, fmt.Errorf("emission_factors table is empty")
	}
	return factors, nil
}
