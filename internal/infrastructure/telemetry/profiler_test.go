package telemetry

import (
	"context"
	"strings"
	"testing"

	"github.com/grafana/pyroscope-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewProfiler_Disabled(t *testing.T) {
	p, err := NewProfiler(ProfilerConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestNewProfiler_RequiresAddress(t *testing.T) {
	_, err := NewProfiler(ProfilerConfig{Enabled: true, ApplicationName: "erp-ledger"}, zap.NewNop())
	assert.Error(t, err)
}

func TestParseProfileTypes(t *testing.T) {
	types, err := parseProfileTypes(nil)
	require.NoError(t, err)
	assert.Equal(t, []pyroscope.ProfileType{pyroscope.ProfileCPU, pyroscope.ProfileInuseSpace}, types)

	types, err = parseProfileTypes([]string{" CPU ", "mutex_count"})
	require.NoError(t, err)
	assert.Equal(t, []pyroscope.ProfileType{pyroscope.ProfileCPU, pyroscope.ProfileMutexCount}, types)

	_, err = parseProfileTypes([]string{"wall"})
	assert.ErrorContains(t, err, "wall")
}

func TestSanitizeLabels(t *testing.T) {
	pairs := sanitizeLabels(map[string]string{
		"Entry-Type": "PAYROLL",
		"tenant_id":  "3f1c",
		"operation":  OperationPostEntry,
		"empty":      "",
		"region":     strings.Repeat("x", MaxLabelValueLength+10),
	})
	assert.Equal(t, []string{
		"entry_type", "PAYROLL",
		"operation", "post_entry",
		"region", strings.Repeat("x", MaxLabelValueLength),
	}, pairs)
}

func TestSanitizeLabelKey(t *testing.T) {
	assert.Equal(t, "event_type", sanitizeLabelKey("Event Type"))
	assert.Equal(t, "ab1", sanitizeLabelKey("a.b!1"))
	assert.Empty(t, sanitizeLabelKey("..."))
}

func TestWithProfilingLabels_RunsFn(t *testing.T) {
	ran := 0
	WithProfilingLabels(context.Background(), LedgerOperationLabels(OperationReverseEntry, ""), func(context.Context) { ran++ })
	WithProfilingLabels(context.Background(), map[string]string{"tenant_id": "x"}, func(context.Context) { ran++ })
	assert.Equal(t, 2, ran)
}

func TestLedgerOperationLabels(t *testing.T) {
	assert.Equal(t, map[string]string{"operation": "generate_entry"}, LedgerOperationLabels(OperationGenerate, ""))
	assert.Equal(t, map[string]string{"operation": "post_entry", "entry_type": "INVENTORY"},
		LedgerOperationLabels(OperationPostEntry, "INVENTORY"))
}
