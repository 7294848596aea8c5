package noise

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurveEvaluate(t *testing.T) {
	tests := []struct {
		name  string
		curve Curve
		t     float64
		want  float64
	}{
		{name: "empty", curve: Curve{}, t: 0.5, want: 0},
		{name: "constant", curve: ConstantCurve(0.7), t: 3, want: 0.7},
		{name: "linear midpoint", curve: LinearCurve(0, 0, 1, 2), t: 0.5, want: 1},
		{name: "linear quarter", curve: LinearCurve(0, 0, 1, 2), t: 0.25, want: 0.5},
		{name: "clamp below", curve: LinearCurve(0, 1, 1, 3), t: -4, want: 1},
		{name: "clamp above", curve: LinearCurve(0, 1, 1, 3), t: 9, want: 3},
		{name: "flat tangents ease", curve: Curve{Keys: []Keyframe{{Time: 0, Value: 0}, {Time: 1, Value: 1}}}, t: 0.5, want: 0.5},
		{
			name: "three keys hits middle key",
			curve: Curve{Keys: []Keyframe{
				{Time: 0, Value: 0},
				{Time: 0.5, Value: 1},
				{Time: 1, Value: 0},
			}},
			t:    0.5,
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.curve.Evaluate(tt.t), 1e-9)
		})
	}
}

func TestCurveValidate(t *testing.T) {
	assert.NoError(t, LinearCurve(0, 0, 1, 1).Validate())
	assert.NoError(t, Curve{}.Validate())
	assert.Error(t, Curve{Keys: []Keyframe{{Time: 1}, {Time: 0.5}}}.Validate())
	assert.Error(t, Curve{Keys: []Keyframe{{Time: 0}, {Time: 0}}}.Validate())
	assert.Error(t, Curve{Keys: []Keyframe{{Time: 0, Value: math.Inf(1)}}}.Validate())
}
