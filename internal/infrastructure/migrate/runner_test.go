package migrate_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/popeskul/wa-inbox/internal/infrastructure/migrate"
)

const migrationsPath = "../../../migrations"

func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("migrations"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestRunner_Lifecycle(t *testing.T) {
	dsn := startPostgres(t)
	runner := migrate.NewRunner(&migrate.Config{DatabaseURL: dsn, MigrationsPath: migrationsPath}, zaptest.NewLogger(t))

	version, dirty, err := runner.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	require.NoError(t, runner.Up())
	version, dirty, err = runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()

	var tables int
	require.NoError(t, db.Get(&tables, `SELECT count(*) FROM information_schema.tables WHERE table_name IN ('conversations', 'messages', 'clients')`))
	assert.Equal(t, 3, tables)

	// A second run is a no-op.
	require.NoError(t, runner.Up())

	require.NoError(t, runner.Rollback())
	version, _, err = runner.Version()
	require.NoError(t, err)
	assert.Zero(t, version)

	require.NoError(t, runner.Steps(1))
	version, _, err = runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestRunner_Force(t *testing.T) {
	dsn := startPostgres(t)
	runner := migrate.NewRunner(&migrate.Config{DatabaseURL: dsn, MigrationsPath: migrationsPath}, zaptest.NewLogger(t))

	require.NoError(t, runner.Force(1))

	version, dirty, err := runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestRunner_BadMigrationsPath(t *testing.T) {
	dsn := startPostgres(t)
	runner := migrate.NewRunner(&migrate.Config{DatabaseURL: dsn, MigrationsPath: "./does-not-exist"}, zaptest.NewLogger(t))

	err := runner.Up()
	assert.ErrorContains(t, err, "failed to create migrate instance")
}
