package testutil

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/bivex/subscription-renewals/internal/infrastructure/persistence/migrations"
)

// TestDB holds a migrated PostgreSQL container and a pool connected to it
type TestDB struct {
	ConnString string
	Pool       *pgxpool.Pool
}

// StartPostgres starts a PostgreSQL container, applies every migration and
// returns a pool. The container is terminated when the test ends.
func StartPostgres(ctx context.Context, t *testing.T) *TestDB {
	t.Helper()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("renewals_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	connString, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, migrations.Up(connString))

	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(ctx))

	return &TestDB{ConnString: connString, Pool: pool}
}

// Truncate empties every renewal table
func (db *TestDB) Truncate(ctx context.Context, t *testing.T) {
	t.Helper()
	_, err := db.Pool.Exec(ctx, `TRUNCATE renewal_audit_log, subscription_payments, subscriptions, subscribers`)
	require.NoError(t, err)
}

// StartRedis starts a Redis container and returns a connected client
func StartRedis(ctx context.Context, t *testing.T) *goredis.Client {
	t.Helper()

	ctr, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	uri, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := goredis.ParseURL(uri)
	require.NoError(t, err)

	client := goredis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}
