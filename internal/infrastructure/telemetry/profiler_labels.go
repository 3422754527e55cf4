package telemetry

import (
	"context"
	"slices"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys.
const (
	ProfilingLabelOperation = "operation"
	ProfilingLabelEntryType = "entry_type"
	ProfilingLabelEventType = "event_type"
	ProfilingLabelRegion    = "region"
	ProfilingLabelRoute     = "route"
	ProfilingLabelMethod    = "method"
)

// Ledger operations that carry profiling labels.
const (
	OperationPostEntry    = "post_entry"
	OperationReverseEntry = "reverse_entry"
	OperationGenerate     = "generate_entry"
	OperationOutboxBatch  = "outbox_batch"
)

// MaxLabelValueLength bounds label values.
const MaxLabelValueLength = 128

// highCardinalityLabels never become profiling labels; per-document ids
// would explode the number of series.
var highCardinalityLabels = map[string]bool{
	"tenant_id":        true,
	"journal_entry_id": true,
	"reference_id":     true,
	"event_id":         true,
	"trace_id":         true,
	"span_id":          true,
}

// WithProfilingLabels runs fn with pprof labels attached, so Pyroscope can
// slice CPU time by ledger operation.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// LedgerOperationLabels labels a posting engine operation. entryType may be empty.
func LedgerOperationLabels(operation, entryType string) map[string]string {
	labels := map[string]string{ProfilingLabelOperation: operation}
	if entryType != "" {
		labels[ProfilingLabelEntryType] = entryType
	}
	return labels
}

// sanitizeLabels returns sorted key/value pairs with empty, oversized and
// high-cardinality labels removed.
func sanitizeLabels(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	pairs := make([]string, 0, len(labels)*2)
	for _, k := range keys {
		v := labels[k]
		key := sanitizeLabelKey(k)
		if key == "" || v == "" || highCardinalityLabels[key] {
			continue
		}
		if len(v) > MaxLabelValueLength {
			v = v[:MaxLabelValueLength]
		}
		pairs = append(pairs, key, v)
	}
	return pairs
}

// sanitizeLabelKey lower-cases the key and keeps only [a-z0-9_].
func sanitizeLabelKey(key string) string {
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(key))
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return -1
	}, key)
}
