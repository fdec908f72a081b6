// Package pgdb wraps a *sql.DB with the logger and dial configuration shared
// by every store-postgres handler, mirroring the teacher's helper.Database.
package pgdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/siherrmann/graphrag/internal/errs"
)

// Config dials a single Postgres instance.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the libpq connection string.
func (c Config) DSN() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, sslmode,
	)
}

// Database is the shared connection handle passed to every store handler.
type Database struct {
	Instance *sql.DB
	Logger   *slog.Logger
}

// New opens and pings a connection pool for cfg.
func New(cfg Config, logger *slog.Logger) (*Database, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, errs.New(errs.ConfigError, "open database", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, errs.New(errs.UpstreamTransient, "ping database", err)
	}

	logger.Info("connected to postgres", "host", cfg.Host, "dbname", cfg.DBName)

	return &Database{Instance: db, Logger: logger}, nil
}

// Close releases the underlying pool.
func (d *Database) Close() error {
	return d.Instance.Close()
}
