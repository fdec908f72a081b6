// Package testdb reconstructs the teacher's helper.MustStartPostgresContainer
// and friends (pruned from the retrieval pack) from their observable contract
// in sql/main_test.go and example/basic/main.go: a pgvector-enabled Postgres
// container, started once per test binary, dialed through env vars.
package testdb

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/siherrmann/graphrag/internal/pgdb"
)

const (
	testUser     = "user"
	testPassword = "password"
	testDBName   = "database"
)

// MustStartPostgresContainer starts a pgvector/pgvector Postgres container
// and returns its teardown func and bound host port.
func MustStartPostgresContainer() (func(ctx context.Context, opts ...testcontainers.TerminateOption) error, string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	container, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase(testDBName),
		postgres.WithUsername(testUser),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, "", fmt.Errorf("start postgres container: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return nil, "", fmt.Errorf("resolve mapped port: %w", err)
	}

	return container.Terminate, port.Port(), nil
}

// SetTestDatabaseConfigEnvs points the config-loading env vars at a
// container's bound port, scoped to t via t.Setenv.
func SetTestDatabaseConfigEnvs(t *testing.T, dbPort string) {
	t.Setenv("GRAPHRAG_DB_HOST", "localhost")
	t.Setenv("GRAPHRAG_DB_PORT", dbPort)
	t.Setenv("GRAPHRAG_DB_USER", testUser)
	t.Setenv("GRAPHRAG_DB_PASSWORD", testPassword)
	t.Setenv("GRAPHRAG_DB_NAME", testDBName)
	t.Setenv("GRAPHRAG_DB_SSLMODE", "disable")
}

// NewDatabaseConfiguration reads a pgdb.Config from the GRAPHRAG_DB_* envs.
func NewDatabaseConfiguration() (pgdb.Config, error) {
	cfg := pgdb.Config{
		Host:     os.Getenv("GRAPHRAG_DB_HOST"),
		Port:     os.Getenv("GRAPHRAG_DB_PORT"),
		User:     os.Getenv("GRAPHRAG_DB_USER"),
		Password: os.Getenv("GRAPHRAG_DB_PASSWORD"),
		DBName:   os.Getenv("GRAPHRAG_DB_NAME"),
		SSLMode:  os.Getenv("GRAPHRAG_DB_SSLMODE"),
	}
	if cfg.Host == "" || cfg.Port == "" {
		return cfg, fmt.Errorf("missing GRAPHRAG_DB_HOST/GRAPHRAG_DB_PORT")
	}
	return cfg, nil
}

// NewTestDatabase dials cfg, failing the test immediately on error.
func NewTestDatabase(t *testing.T, cfg pgdb.Config) *pgdb.Database {
	db, err := pgdb.New(cfg, nil)
	if err != nil {
		t.Fatalf("connect test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
