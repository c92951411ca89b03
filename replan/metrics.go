package replan

import "sync/atomic"

// Metrics is a lightweight in-process counters struct giving the manager
// minimal ambient observability: how many replans succeeded, how many
// rolled back, how many hot-swaps landed, and how many obstructions the
// collision-check thread observed. It is not a metrics service (out of
// scope per SPEC_FULL §1's "visualization... harness" exclusion); it exists
// so S6-style shutdown and liveness tests have something to assert on and so
// a field deployment has a cheap place to look.
type Metrics struct {
	replansSucceeded  atomic.Int64
	replansRolledBack atomic.Int64
	hotSwaps          atomic.Int64
	obstructions      atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of Metrics' counters.
type MetricsSnapshot struct {
	ReplansSucceeded  int64
	ReplansRolledBack int64
	HotSwaps          int64
	Obstructions      int64
}

func (m *Metrics) recordReplanSuccess() { m.replansSucceeded.Add(1) }
func (m *Metrics) recordRollback()      { m.replansRolledBack.Add(1) }
func (m *Metrics) recordHotSwap()       { m.hotSwaps.Add(1) }
func (m *Metrics) recordObstruction()   { m.obstructions.Add(1) }

// Snapshot returns a consistent-enough point-in-time read of every counter.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		ReplansSucceeded:  m.replansSucceeded.Load(),
		ReplansRolledBack: m.replansRolledBack.Load(),
		HotSwaps:          m.hotSwaps.Load(),
		Obstructions:      m.obstructions.Load(),
	}
}
