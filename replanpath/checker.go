package replanpath

import "context"

// Checker validates configurations and edges against a live collision model.
// The real geometric scene checker is an external collaborator (see SPEC_FULL
// §1): this interface is the seam the replanning engine calls through, and
// BoundsOnlyChecker below is a trivial stand-in suitable for tests and for
// embedding applications that have not yet wired a real scene checker.
//
// Implementations must be thread-clonable: each long-lived thread in the
// manager owns its own Clone() so collision queries never race each other.
type Checker interface {
	// CheckSegment reports whether the straight-line joint-space segment
	// from -> to is collision free.
	CheckSegment(ctx context.Context, from, to Configuration) bool
	// CheckEdge reports whether e's cached endpoints are still collision
	// free. It exists alongside CheckSegment so revalidation passes can
	// validate a whole Edge without needing to resolve its endpoint node
	// ids back through the owning Tree first.
	CheckEdge(ctx context.Context, e *Edge) bool
	// Clone returns a thread-local copy of the checker.
	Clone() Checker
}

// BoundsOnlyChecker treats any segment whose endpoints respect Bounds as
// valid. It never consults geometry, and exists so the engine can be
// exercised end to end before a real scene checker is wired in.
type BoundsOnlyChecker struct {
	Bounds Bounds
}

// NewBoundsOnlyChecker constructs a BoundsOnlyChecker for the given bounds.
func NewBoundsOnlyChecker(b Bounds) *BoundsOnlyChecker {
	return &BoundsOnlyChecker{Bounds: b}
}

// CheckSegment implements Checker.
func (c *BoundsOnlyChecker) CheckSegment(_ context.Context, from, to Configuration) bool {
	if c.Bounds == nil {
		return true
	}
	return InBounds(from, c.Bounds) && InBounds(to, c.Bounds)
}

// CheckEdge implements Checker.
func (c *BoundsOnlyChecker) CheckEdge(ctx context.Context, e *Edge) bool {
	return c.CheckSegment(ctx, e.ParentQ(), e.ChildQ())
}

// Clone implements Checker. Bounds is immutable after construction so it is
// safe to share.
func (c *BoundsOnlyChecker) Clone() Checker {
	return &BoundsOnlyChecker{Bounds: c.Bounds}
}

// CheckedCache remembers the validity of node-to-node segments that have
// already been confirmed during the current replanning call, so repeated
// rewire attempts over overlapping neighborhoods don't re-issue the same
// collision query. Keys are node ids, not pointers, so a cache survives
// cloning the tree it was built against only if node ids are preserved by
// the clone (which Tree.Clone guarantees).
type CheckedCache struct {
	valid map[[2]int]bool
}

// NewCheckedCache returns an empty cache.
func NewCheckedCache() *CheckedCache {
	return &CheckedCache{valid: make(map[[2]int]bool)}
}

func cacheKey(a, b int) [2]int {
	if a <= b {
		return [2]int{a, b}
	}
	return [2]int{b, a}
}

// Get returns the cached validity for the unordered pair (a, b), and whether
// an entry exists at all.
func (c *CheckedCache) Get(a, b int) (valid bool, found bool) {
	if c == nil {
		return false, false
	}
	valid, found = c.valid[cacheKey(a, b)]
	return valid, found
}

// Set records the validity of the segment between node ids a and b.
func (c *CheckedCache) Set(a, b int, valid bool) {
	if c == nil {
		return
	}
	c.valid[cacheKey(a, b)] = valid
}
