package replanpath

import (
	"math/rand"

	"github.com/pkg/errors"

	"go.viam.com/rdk/referenceframe"
)

// Configuration is a point in the robot's joint space: a fixed-length vector
// of joint values. We reuse referenceframe.Input rather than a bare []float64
// so that values round-trip cleanly through the rest of the rdk ecosystem the
// replanner is meant to sit next to.
type Configuration []referenceframe.Input

// Bounds gives the [Min, Max] joint limits a Configuration must respect, one
// Limit per dimension, in the same order as the Configuration itself.
type Bounds []referenceframe.Limit

// ErrDimensionMismatch is returned whenever two configurations, or a
// configuration and a Bounds, disagree on dimensionality.
var ErrDimensionMismatch = errors.New("replanpath: dimension mismatch")

// Dim returns the dimensionality of q.
func (q Configuration) Dim() int { return len(q) }

// Clone returns an independent copy of q.
func (q Configuration) Clone() Configuration {
	out := make(Configuration, len(q))
	copy(out, q)
	return out
}

// ToFloats flattens q into a plain []float64, the representation most linear
// algebra helpers (gonum, metrics) want to operate on.
func ToFloats(q Configuration) []float64 {
	out := make([]float64, len(q))
	for i, v := range q {
		out[i] = v.Value
	}
	return out
}

// FromFloats is the inverse of ToFloats.
func FromFloats(vals []float64) Configuration {
	out := make(Configuration, len(vals))
	for i, v := range vals {
		out[i] = referenceframe.Input{Value: v}
	}
	return out
}

// InBounds reports whether every dimension of q falls within b.
func InBounds(q Configuration, b Bounds) bool {
	if len(q) != len(b) {
		return false
	}
	for i, v := range q {
		if v.Value < b[i].Min || v.Value > b[i].Max {
			return false
		}
	}
	return true
}

// Clamp returns a copy of q with every dimension clipped into b.
func Clamp(q Configuration, b Bounds) Configuration {
	out := q.Clone()
	for i := range out {
		if i >= len(b) {
			break
		}
		if out[i].Value < b[i].Min {
			out[i].Value = b[i].Min
		} else if out[i].Value > b[i].Max {
			out[i].Value = b[i].Max
		}
	}
	return out
}

// SampleUniform draws a Configuration uniformly at random from b.
func SampleUniform(b Bounds, rnd *rand.Rand) Configuration {
	out := make(Configuration, len(b))
	for i, lim := range b {
		out[i] = referenceframe.Input{Value: lim.Min + rnd.Float64()*(lim.Max-lim.Min)}
	}
	return out
}

// Lerp linearly interpolates between a and b at fraction t in [0, 1].
func Lerp(a, b Configuration, t float64) (Configuration, error) {
	if len(a) != len(b) {
		return nil, ErrDimensionMismatch
	}
	out := make(Configuration, len(a))
	for i := range a {
		out[i] = referenceframe.Input{Value: a[i].Value + (b[i].Value-a[i].Value)*t}
	}
	return out, nil
}
