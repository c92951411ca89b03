package replanpath

import "gonum.org/v1/gonum/floats"

// Metric assigns a non-negative cost to moving between two configurations.
// Implementations must be safe to use from a single goroutine only; callers
// that need to share a Metric across threads must Clone it first, matching
// the thread-local-instance contract described for the checker and metric
// adapters in the manager design.
type Metric interface {
	// Cost returns the non-negative cost of the straight-line segment a->b.
	Cost(a, b Configuration) float64
	// Clone returns a thread-local copy of the metric that shares only
	// immutable state with the original.
	Clone() Metric
}

// L2Metric is the default Metric: plain Euclidean distance in joint space.
type L2Metric struct{}

// NewL2Metric constructs the default Euclidean metric.
func NewL2Metric() *L2Metric { return &L2Metric{} }

// Cost implements Metric.
func (m *L2Metric) Cost(a, b Configuration) float64 {
	if len(a) != len(b) {
		return 0
	}
	return floats.Distance(ToFloats(a), ToFloats(b), 2)
}

// Clone implements Metric. L2Metric carries no mutable state, so cloning is
// a no-op copy.
func (m *L2Metric) Clone() Metric { return &L2Metric{} }
