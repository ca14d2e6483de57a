package injector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forcetrace/forcetrace/internal/config"
	"github.com/forcetrace/forcetrace/internal/correlation"
	"github.com/forcetrace/forcetrace/internal/database"
	"github.com/forcetrace/forcetrace/internal/logger"
	"github.com/forcetrace/forcetrace/internal/scanner"
	"github.com/forcetrace/forcetrace/pkg/types"
)

func newTestProcessor(t *testing.T) (*Processor, *database.Store, *scanner.Result) {
	t.Helper()

	log, err := logger.New(config.LoggerConfig{Level: "error", Format: "json"})
	require.NoError(t, err)

	store, err := database.NewStore(config.DatabaseConfig{
		Driver:          "sqlite3",
		DSN:             ":memory:",
		MaxConnections:  1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Defaults()
	registry := correlation.NewRegistry(store)
	sc := scanner.New(store, registry, cfg.Scanner, log)
	scanResult, err := sc.Scan(context.Background(), "acme.my.salesforce.com", "full", "")
	require.NoError(t, err)
	require.Greater(t, scanResult.Injections, 0)

	return NewProcessor(store, cfg.Injector, log), store, scanResult
}

func TestProcessBatch_DrivesInjectionsToInjected(t *testing.T) {
	proc, store, scanResult := newTestProcessor(t)
	ctx := context.Background()

	result, err := proc.ProcessBatch(ctx, 100, "")
	require.NoError(t, err)

	assert.Equal(t, scanResult.Injections, result.Processed)
	assert.Zero(t, result.Skipped)
	assert.Zero(t, result.Errors)
	assert.Len(t, result.Details, scanResult.Injections)
	for _, d := range result.Details {
		assert.Equal(t, "injected", d.Status)
		assert.NotEmpty(t, d.Token)
	}

	pending, err := store.ListPendingInjections(ctx, 0, "")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessBatch_SecondRunFindsNothing(t *testing.T) {
	proc, _, _ := newTestProcessor(t)
	ctx := context.Background()

	_, err := proc.ProcessBatch(ctx, 100, "")
	require.NoError(t, err)

	second, err := proc.ProcessBatch(ctx, 100, "")
	require.NoError(t, err)
	assert.Zero(t, second.Processed)
	assert.Empty(t, second.Details)
}

func TestProcessBatch_RespectsBatchSize(t *testing.T) {
	proc, _, scanResult := newTestProcessor(t)
	ctx := context.Background()

	result, err := proc.ProcessBatch(ctx, 2, "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)

	rest, err := proc.ProcessBatch(ctx, 100, "")
	require.NoError(t, err)
	assert.Equal(t, scanResult.Injections-2, rest.Processed)
}

func TestProcessBatch_VulnTypeFilter(t *testing.T) {
	proc, store, _ := newTestProcessor(t)
	ctx := context.Background()

	result, err := proc.ProcessBatch(ctx, 100, string(types.VulnSOQLInjection))
	require.NoError(t, err)
	require.Greater(t, result.Processed, 0)
	for _, d := range result.Details {
		assert.Equal(t, types.VulnSOQLInjection, d.VulnType)
	}

	// Everything else is still pending.
	pending, err := store.ListPendingInjections(ctx, 0, "")
	require.NoError(t, err)
	for _, ic := range pending {
		assert.NotEqual(t, types.VulnSOQLInjection, ic.Injection.ContextType)
	}
}

func TestProcessBatch_MarksEndpointsTesting(t *testing.T) {
	proc, store, _ := newTestProcessor(t)
	ctx := context.Background()

	result, err := proc.ProcessBatch(ctx, 100, "")
	require.NoError(t, err)
	require.Greater(t, result.Processed, 0)

	ic, err := store.GetInjectionByToken(ctx, result.Details[0].Token)
	require.NoError(t, err)
	assert.Equal(t, types.EndpointStatusTesting, ic.Endpoint.Status)
	assert.Equal(t, types.InjectionStatusInjected, ic.Injection.Status)
}
