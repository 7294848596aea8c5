package noise

import (
	"fmt"
	"math"
	"sort"
)

// Keyframe is a single control point of a Curve.
type Keyframe struct {
	Time       float64 `mapstructure:"time" json:"time"`
	Value      float64 `mapstructure:"value" json:"value"`
	InTangent  float64 `mapstructure:"in_tangent" json:"in_tangent"`
	OutTangent float64 `mapstructure:"out_tangent" json:"out_tangent"`
}

// Curve is a 1D keyframed lookup evaluated with cubic Hermite segments.
// Inputs outside the key range clamp to the first/last key value.
type Curve struct {
	Keys []Keyframe `mapstructure:"keys" json:"keys"`
}

// ConstantCurve returns a curve that evaluates to v everywhere.
func ConstantCurve(v float64) Curve {
	return Curve{Keys: []Keyframe{{Time: 0, Value: v}}}
}

// LinearCurve returns a straight ramp from (t0,v0) to (t1,v1).
func LinearCurve(t0, v0, t1, v1 float64) Curve {
	slope := 0.0
	if t1 != t0 {
		slope = (v1 - v0) / (t1 - t0)
	}
	return Curve{Keys: []Keyframe{
		{Time: t0, Value: v0, InTangent: slope, OutTangent: slope},
		{Time: t1, Value: v1, InTangent: slope, OutTangent: slope},
	}}
}

// Validate reports non-finite values and keys that are not strictly increasing in time.
func (c Curve) Validate() error {
	for i, k := range c.Keys {
		for _, v := range []float64{k.Time, k.Value, k.InTangent, k.OutTangent} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("key %d has a non-finite component", i)
			}
		}
		if i > 0 && k.Time <= c.Keys[i-1].Time {
			return fmt.Errorf("key %d time %.4f is not after key %d time %.4f", i, k.Time, i-1, c.Keys[i-1].Time)
		}
	}
	return nil
}

// Evaluate returns the curve value at t. An empty curve evaluates to 0.
func (c Curve) Evaluate(t float64) float64 {
	keys := c.Keys
	switch len(keys) {
	case 0:
		return 0
	case 1:
		return keys[0].Value
	}

	if t <= keys[0].Time {
		return keys[0].Value
	}
	last := keys[len(keys)-1]
	if t >= last.Time {
		return last.Value
	}

	idx := sort.Search(len(keys), func(i int) bool {
		return keys[i].Time > t
	})
	k0, k1 := keys[idx-1], keys[idx]

	dt := k1.Time - k0.Time
	if dt <= 0 {
		return k0.Value
	}
	s := (t - k0.Time) / dt
	s2 := s * s
	s3 := s2 * s

	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2

	return h00*k0.Value + h10*dt*k0.OutTangent + h01*k1.Value + h11*dt*k1.InTangent
}
