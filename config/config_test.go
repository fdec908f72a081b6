package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.EnableGraphRAG)
	assert.Equal(t, GraphStoreRelational, cfg.GraphStore)
	assert.Equal(t, "default", cfg.DefaultNamespace)
	assert.Equal(t, 20000, cfg.ClusterSummaryDailyTokenBudget)
	assert.Equal(t, 400, cfg.ClusterSummaryMaxTokensPer)
	assert.Equal(t, 15, cfg.ClusterSummaryRateLimitPerMin)
}

func TestLoad_InvalidGraphStore(t *testing.T) {
	t.Setenv("GRAPH_STORE", "nonsense")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	t.Setenv("ENABLE_GRAPHRAG", "false")
	t.Setenv("DEFAULT_NAMESPACE", "acme")
	t.Setenv("INDEX_SCHEDULE_INTERVAL_SECONDS", "120")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.EnableGraphRAG)
	assert.Equal(t, "acme", cfg.DefaultNamespace)
	assert.Equal(t, 120*time.Second, cfg.IndexScheduleInterval)
}
