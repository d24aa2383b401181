// Package dbtest starts a throwaway postgres for tests.
package dbtest

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"ticket-to-ride-server/internal/database"
)

const image = "postgres:16-alpine"

// Start runs a migrated postgres container for the duration of t. It skips
// in -short mode and when no container runtime is available.
func Start(t *testing.T) database.Service {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, image,
		postgres.WithDatabase("ticket"),
		postgres.WithUsername("ticket"),
		postgres.WithPassword("ticket"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	svc, err := database.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	require.NoError(t, database.Migrate(ctx, svc.Pool(), logger))
	return svc
}
