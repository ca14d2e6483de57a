package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forcetrace/forcetrace/internal/config"
	"github.com/forcetrace/forcetrace/internal/logger"
	"github.com/forcetrace/forcetrace/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	log, err := logger.New(config.LoggerConfig{Level: "error", Format: "json"})
	require.NoError(t, err)

	store, err := NewStore(config.DatabaseConfig{
		Driver:          "sqlite3",
		DSN:             ":memory:",
		MaxConnections:  1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedChain(t *testing.T, store *Store, token string) (*types.Target, *types.Endpoint, *types.Injection) {
	t.Helper()
	ctx := context.Background()

	target := &types.Target{
		Domain:    "acme.my.salesforce.com",
		TechStack: []string{"Salesforce Platform", "Lightning Experience"},
		Status:    types.TargetStatusScanning,
		SessionID: "session-1",
	}
	require.NoError(t, store.CreateTarget(ctx, target))

	endpoint := &types.Endpoint{
		TargetID:   target.ID,
		Path:       "/services/data/v59.0/query",
		Method:     "GET",
		Params:     []string{"q"},
		RiskLevel:  types.RiskCritical,
		InputClass: "soql_query",
		Status:     types.EndpointStatusDiscovered,
	}
	require.NoError(t, store.CreateEndpoint(ctx, endpoint))

	injection := &types.Injection{
		EndpointID:  endpoint.ID,
		Token:       token,
		Param:       "q",
		ContextType: types.VulnSOQLInjection,
		Status:      types.InjectionStatusPending,
	}
	require.NoError(t, store.CreateInjection(ctx, injection))

	return target, endpoint, injection
}

func TestGetInjectionByToken_JoinsContext(t *testing.T) {
	store := newTestStore(t)
	target, endpoint, injection := seedChain(t, store, "SOQL_aabbccddeeff")

	ic, err := store.GetInjectionByToken(context.Background(), "SOQL_aabbccddeeff")
	require.NoError(t, err)

	assert.Equal(t, injection.ID, ic.Injection.ID)
	assert.Equal(t, endpoint.ID, ic.Endpoint.ID)
	assert.Equal(t, target.ID, ic.Target.ID)
	assert.Equal(t, []string{"q"}, ic.Endpoint.Params)
	assert.Equal(t, []string{"Salesforce Platform", "Lightning Experience"}, ic.Target.TechStack)
}

func TestGetInjectionByToken_Unknown(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetInjectionByToken(context.Background(), "SOQL_000000000000")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestMarkInjected_ClaimsOnce(t *testing.T) {
	store := newTestStore(t)
	_, _, injection := seedChain(t, store, "SOQL_aabbccddeeff")
	ctx := context.Background()

	claimed, err := store.MarkInjected(ctx, injection.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	// Second claim loses: the row is no longer pending.
	claimed, err = store.MarkInjected(ctx, injection.ID)
	require.NoError(t, err)
	assert.False(t, claimed)

	ic, err := store.GetInjectionByToken(ctx, "SOQL_aabbccddeeff")
	require.NoError(t, err)
	assert.Equal(t, types.InjectionStatusInjected, ic.Injection.Status)
	assert.NotNil(t, ic.Injection.InjectedAt)
}

func TestListPendingInjections_FilterAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, endpoint, _ := seedChain(t, store, "SOQL_aabbccddee01")
	for i, cat := range []types.VulnCategory{types.VulnSOQLInjection, types.VulnIDOR, types.VulnIDOR} {
		require.NoError(t, store.CreateInjection(ctx, &types.Injection{
			EndpointID:  endpoint.ID,
			Token:       "TOKN_aabbccddee0" + string(rune('2'+i)),
			Param:       "p",
			ContextType: cat,
			Status:      types.InjectionStatusPending,
		}))
	}

	all, err := store.ListPendingInjections(ctx, 0, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	idorOnly, err := store.ListPendingInjections(ctx, 0, string(types.VulnIDOR))
	require.NoError(t, err)
	assert.Len(t, idorOnly, 2)

	limited, err := store.ListPendingInjections(ctx, 2, "")
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestListPendingInjections_ExcludesClaimed(t *testing.T) {
	store := newTestStore(t)
	_, _, injection := seedChain(t, store, "SOQL_aabbccddeeff")
	ctx := context.Background()

	_, err := store.MarkInjected(ctx, injection.ID)
	require.NoError(t, err)

	pending, err := store.ListPendingInjections(ctx, 0, "")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRecordCallback_FirstIsCanonical(t *testing.T) {
	store := newTestStore(t)
	_, _, injection := seedChain(t, store, "SOQL_aabbccddeeff")
	ctx := context.Background()

	first := &types.Callback{
		InjectionID:  injection.ID,
		CallbackType: types.CallbackDNS,
		SourceIP:     "96.43.144.5",
		DelaySeconds: 4000,
		Confidence:   types.ConfidenceHigh,
	}
	require.NoError(t, store.RecordCallback(ctx, first))
	assert.False(t, first.IsDuplicate)

	second := &types.Callback{
		InjectionID:  injection.ID,
		CallbackType: types.CallbackHTTP,
		Confidence:   types.ConfidenceMedium,
	}
	require.NoError(t, store.RecordCallback(ctx, second))
	assert.True(t, second.IsDuplicate)

	canonical, err := store.CountCallbacks(ctx, injection.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, canonical)

	total, err := store.CountCallbacks(ctx, injection.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestRecordCallback_ConstraintBacksTheRace(t *testing.T) {
	store := newTestStore(t)
	_, _, injection := seedChain(t, store, "SOQL_aabbccddeeff")
	ctx := context.Background()

	// Simulate the losing side of a race: a caller that believes it is
	// canonical inserts after another canonical row already exists.
	require.NoError(t, store.RecordCallback(ctx, &types.Callback{
		InjectionID: injection.ID,
		Confidence:  types.ConfidenceHigh,
	}))

	loser := &types.Callback{
		InjectionID: injection.ID,
		Confidence:  types.ConfidenceHigh,
	}
	require.NoError(t, store.RecordCallback(ctx, loser))
	assert.True(t, loser.IsDuplicate)
}

func TestCreateFinding_AndQueryByInjection(t *testing.T) {
	store := newTestStore(t)
	_, endpoint, injection := seedChain(t, store, "SOQL_aabbccddeeff")
	ctx := context.Background()

	callback := &types.Callback{InjectionID: injection.ID, Confidence: types.ConfidenceHigh}
	require.NoError(t, store.RecordCallback(ctx, callback))

	finding := &types.Finding{
		EndpointID:  endpoint.ID,
		CallbackID:  callback.ID,
		Title:       "SOQL Injection via q parameter",
		Description: "confirmed",
		Severity:    types.SeverityCritical,
		Evidence:    types.Evidence{Token: "SOQL_aabbccddeeff", ConfidenceScore: 10},
	}
	require.NoError(t, store.CreateFinding(ctx, finding))
	assert.Equal(t, "open", finding.Status)

	byEndpoint, err := store.GetFindingsForEndpoint(ctx, endpoint.ID)
	require.NoError(t, err)
	require.Len(t, byEndpoint, 1)
	assert.Equal(t, "SOQL_aabbccddeeff", byEndpoint[0].Evidence.Token)

	byInjection, err := store.GetFindingsForInjection(ctx, injection.ID)
	require.NoError(t, err)
	require.Len(t, byInjection, 1)
	assert.Equal(t, finding.ID, byInjection[0].ID)
}

func TestAppendLog_RejectsEmptyMessage(t *testing.T) {
	store := newTestStore(t)
	target, _, _ := seedChain(t, store, "SOQL_aabbccddeeff")

	err := store.AppendLog(context.Background(), target.ID, "s", types.LogInfo, "")
	assert.Error(t, err)
}

func TestListLogs_OrderedBySequence(t *testing.T) {
	store := newTestStore(t)
	target, _, _ := seedChain(t, store, "SOQL_aabbccddeeff")
	ctx := context.Background()

	require.NoError(t, store.AppendLog(ctx, target.ID, "s", types.LogInfo, "first"))
	require.NoError(t, store.AppendLog(ctx, target.ID, "s", types.LogWarn, "second"))
	require.NoError(t, store.AppendLog(ctx, target.ID, "s", types.LogSuccess, "third"))

	logs, err := store.ListLogs(ctx, target.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "first", logs[0].Message)
	assert.Equal(t, "third", logs[2].Message)
}

func TestGetTargetMetrics(t *testing.T) {
	store := newTestStore(t)
	target, endpoint, injection := seedChain(t, store, "SOQL_aabbccddeeff")
	ctx := context.Background()

	callback := &types.Callback{InjectionID: injection.ID, Confidence: types.ConfidenceHigh}
	require.NoError(t, store.RecordCallback(ctx, callback))
	require.NoError(t, store.CreateFinding(ctx, &types.Finding{
		EndpointID: endpoint.ID,
		CallbackID: callback.ID,
		Title:      "t",
		Severity:   types.SeverityCritical,
	}))

	metrics, err := store.GetTargetMetrics(ctx, target.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, metrics.Endpoints)
	assert.Equal(t, 1, metrics.ByRisk["critical"])
	assert.Equal(t, 1, metrics.Injections)
	assert.Equal(t, 1, metrics.PendingInjections)
	assert.GreaterOrEqual(t, metrics.PendingAgeSeconds, int64(0))
	assert.Equal(t, 1, metrics.Callbacks)
	assert.Equal(t, 1, metrics.Findings)
	assert.Equal(t, 1, metrics.BySeverity["critical"])
}
