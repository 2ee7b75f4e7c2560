package vision

import (
	"image/color"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sif/internal/testutil"
)

func TestColorHistogramNormalised(t *testing.T) {
	h := ColorHistogram(testutil.TexturedImage(testutil.SmallSize, 1), 32)
	require.Len(t, h, 32*32*32)
	var sq float64
	for _, v := range h {
		sq += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(sq), 1e-9)
	assert.Nil(t, ColorHistogram(nil, 32))
}

func TestHistogramCorrelation(t *testing.T) {
	scene := ColorHistogram(testutil.TexturedImage(testutil.SmallSize, 1), 32)
	assert.InDelta(t, 1.0, HistogramCorrelation(scene, scene), 1e-9)

	red := ColorHistogram(testutil.CreateTestImage(40, 40, color.RGBA{255, 0, 0, 255}), 8)
	blue := ColorHistogram(testutil.CreateTestImage(40, 40, color.RGBA{0, 0, 255, 255}), 8)
	assert.Less(t, HistogramCorrelation(red, blue), 0.4)
	assert.InDelta(t, 1.0, HistogramCorrelation(red, red), 1e-9)
}

func TestHistogramCorrelationDegenerate(t *testing.T) {
	flat := Histogram{0.5, 0.5, 0.5, 0.5}
	other := Histogram{1, 0, 0, 0}
	assert.InDelta(t, 1.0, HistogramCorrelation(flat, flat), 0)
	assert.InDelta(t, 0.0, HistogramCorrelation(flat, other), 0)
	assert.InDelta(t, 0.0, HistogramCorrelation(flat, Histogram{1}), 0)
	assert.InDelta(t, 0.0, HistogramCorrelation(nil, nil), 0)
}

// TestHistogramCorrelation_Bounds verifies correlation stays in [-1,1] and is symmetric.
func TestHistogramCorrelation_Bounds(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("correlation is bounded and symmetric", prop.ForAll(
		func(a, b []float64) bool {
			ha, hb := Histogram(a), Histogram(b)
			r := HistogramCorrelation(ha, hb)
			if r < -1 || r > 1 || math.IsNaN(r) {
				return false
			}
			return math.Abs(r-HistogramCorrelation(hb, ha)) < 1e-12
		},
		gen.SliceOfN(16, gen.Float64Range(0, 1)),
		gen.SliceOfN(16, gen.Float64Range(0, 1)),
	))

	properties.TestingRun(t)
}
