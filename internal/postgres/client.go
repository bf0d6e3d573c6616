package postgres

import (
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/relaycrm/billing/internal/config"
	ierr "github.com/relaycrm/billing/internal/errors"
	"github.com/relaycrm/billing/internal/logger"
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
)

// NewDB opens the postgres connection pool used by all repositories.
func NewDB(cfg *config.Configuration, log *logger.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Postgres.GetDSN())
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to connect to postgres").
			Mark(ierr.ErrDatabase)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	log.Infow("connected to postgres",
		"host", cfg.Postgres.Host,
		"database", cfg.Postgres.DBName)

	return db, nil
}
