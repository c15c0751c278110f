package types

// Compaction thresholds per spec §3. Tunable constants, not configuration —
// original_source/memory/compactor.rs uses a simpler round-based scheme;
// these exact values are spec.md's, and supersede it.
const (
	MaxBeforeCompaction = 48
	KeepRecentAfter     = 18
	MaxSummaryItems     = 8
)

// CompactState is consulted by pkg/context before every LLM call.
type CompactState struct {
	MaxBeforeCompaction int
	KeepRecentAfter     int
	MaxSummaryItems     int
}

// DefaultCompactState returns the spec's tuned thresholds.
func DefaultCompactState() CompactState {
	return CompactState{
		MaxBeforeCompaction: MaxBeforeCompaction,
		KeepRecentAfter:     KeepRecentAfter,
		MaxSummaryItems:     MaxSummaryItems,
	}
}
