package replanpath

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Ball is a sampling region: a uniform ball of the given radius centered on
// center. Balls are used to bias sampling toward a freshly discovered
// obstruction.
type Ball struct {
	Center Configuration
	Radius float64
}

// LocalInformedSampler draws configurations biased toward an ellipsoid with
// foci Start and Goal and a cost upper bound (the informed-RRT* sampling
// region of Gammell et al.), optionally mixed with a set of balls. With
// balls present, a draw is with probability 1/2 taken uniformly from one
// random ball (clamped into Bounds) and otherwise from the ellipsoid, per
// SPEC_FULL §4.1.
type LocalInformedSampler struct {
	start, goal Configuration
	bounds      Bounds
	costMax     float64
	metric      Metric
	rnd         *rand.Rand
	balls       []Ball

	dim          int
	center       []float64
	rotation     *mat.Dense // n x n, aligns e1 with (goal-start)
	cMin         float64
}

// NewLocalInformedSampler constructs a sampler between start and goal. A
// costMax of math.Inf(1) degenerates to uniform sampling over bounds.
func NewLocalInformedSampler(start, goal Configuration, bounds Bounds, costMax float64, metric Metric, rnd *rand.Rand) *LocalInformedSampler {
	s := &LocalInformedSampler{
		start: start, goal: goal, bounds: bounds, costMax: costMax, metric: metric, rnd: rnd,
		dim: len(start),
	}
	s.cMin = metric.Cost(start, goal)
	if !math.IsInf(costMax, 1) && s.cMin > 0 {
		a1 := make([]float64, s.dim)
		sf := ToFloats(start)
		gf := ToFloats(goal)
		s.center = make([]float64, s.dim)
		for i := range a1 {
			a1[i] = (gf[i] - sf[i]) / s.cMin
			s.center[i] = (sf[i] + gf[i]) / 2
		}
		s.rotation = rotationToWorldFrame(a1)
	}
	return s
}

// AddBall registers an additional sampling region. Balls are ordered by
// insertion but Sample picks among them uniformly.
func (s *LocalInformedSampler) AddBall(center Configuration, radius float64) {
	s.balls = append(s.balls, Ball{Center: center, Radius: radius})
}

// Sample draws a single configuration. It never fails for finite Bounds.
func (s *LocalInformedSampler) Sample() Configuration {
	if len(s.balls) > 0 && s.rnd.Float64() < 0.5 {
		return s.sampleBall(s.balls[s.rnd.Intn(len(s.balls))])
	}
	return s.sampleEllipsoid()
}

func (s *LocalInformedSampler) sampleBall(b Ball) Configuration {
	v := sampleUnitBall(s.dim, s.rnd)
	center := ToFloats(b.Center)
	out := make([]float64, s.dim)
	for i := range out {
		out[i] = center[i] + v[i]*b.Radius
	}
	return Clamp(FromFloats(out), s.bounds)
}

func (s *LocalInformedSampler) sampleEllipsoid() Configuration {
	if s.rotation == nil {
		// costMax is infinite, or start == goal: fall back to uniform
		// sampling over the full configuration bounds.
		return SampleUniform(s.bounds, s.rnd)
	}
	v := sampleUnitBall(s.dim, s.rnd)
	radii := make([]float64, s.dim)
	radii[0] = s.costMax / 2
	if s.dim > 1 {
		r := math.Sqrt(math.Max(s.costMax*s.costMax-s.cMin*s.cMin, 0)) / 2
		for i := 1; i < s.dim; i++ {
			radii[i] = r
		}
	}
	scaled := make([]float64, s.dim)
	for i := range scaled {
		scaled[i] = v[i] * radii[i]
	}
	rotated := make([]float64, s.dim)
	rv := mat.NewVecDense(s.dim, scaled)
	out := mat.NewVecDense(s.dim, nil)
	out.MulVec(s.rotation, rv)
	for i := 0; i < s.dim; i++ {
		rotated[i] = out.AtVec(i) + s.center[i]
	}
	return Clamp(FromFloats(rotated), s.bounds)
}

// sampleUnitBall draws a point uniformly from the n-dimensional unit ball
// via rejection sampling against the unit cube.
func sampleUnitBall(n int, rnd *rand.Rand) []float64 {
	for {
		v := make([]float64, n)
		normSq := 0.0
		for i := range v {
			v[i] = rnd.Float64()*2 - 1
			normSq += v[i] * v[i]
		}
		if normSq <= 1 {
			return v
		}
	}
}

// rotationToWorldFrame builds the rotation matrix that maps the first
// standard basis vector onto the unit vector a1, following the construction
// used by informed RRT* to orient its hyperellipsoid sampling region (Gammell,
// Srinivasa, Lavalle 2014): factor a1 * e1^T with an SVD and recompose with a
// sign correction on the last singular vector so the result is a proper
// rotation (determinant +1) rather than a reflection.
func rotationToWorldFrame(a1 []float64) *mat.Dense {
	n := len(a1)
	m := mat.NewDense(n, n, nil)
	m.Set(0, 0, a1[0])
	for i := 1; i < n; i++ {
		m.Set(i, 0, a1[i])
	}

	var svd mat.SVD
	ok := svd.Factorize(m, mat.SVDFull)
	if !ok {
		return identity(n)
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	lambda := identity(n)
	lambda.Set(n-1, n-1, sign(det(&u))*sign(det(&v)))

	var tmp mat.Dense
	tmp.Mul(&u, lambda)
	var c mat.Dense
	c.Mul(&tmp, v.T())
	return &c
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

func det(m *mat.Dense) float64 {
	return mat.Det(m)
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
