package retrieval

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sif/internal/utils"
	"github.com/MeKo-Tech/sif/internal/vision"
)

func TestSelectTopContours(t *testing.T) {
	p := newFakePrims()
	cfg := DefaultConfig().Logo

	tiny := square(0, 5)                                               // area 25, perimeter 20
	thin := vision.Contour{{X: 0, Y: 0}, {X: 45, Y: 0}, {X: 45, Y: 1}} // area 22.5, perimeter ~91
	small := square(1, 8)                                              // area 64, perimeter 32
	mid := square(2, 30)
	big := square(3, 60)
	huge := square(4, 90)

	got := SelectTopContours(p, []vision.Contour{tiny, small, mid, thin, huge, big}, cfg)
	require.Len(t, got, 3)
	assert.Equal(t, huge, got[0])
	assert.Equal(t, big, got[1])
	assert.Equal(t, mid, got[2])

	got = SelectTopContours(p, []vision.Contour{tiny, thin, small}, cfg)
	require.Len(t, got, 2)
	assert.Equal(t, thin, got[0])
	assert.Equal(t, small, got[1])

	assert.Empty(t, SelectTopContours(p, []vision.Contour{tiny}, cfg))
	assert.Empty(t, SelectTopContours(p, nil, cfg))
}

func TestComplexity(t *testing.T) {
	p := vision.NewDefault(vision.DefaultOptions())
	assert.Equal(t, 4, Complexity(p, square(0, 40), 0.01))

	// A 12-point star keeps far more vertices than the gate tolerance allows.
	var star vision.Contour
	for i := range 24 {
		r := 50.0
		if i%2 == 1 {
			r = 20
		}
		a := float64(i) * math.Pi / 12
		star = append(star, utils.Point{X: 100 + r*math.Cos(a), Y: 100 + r*math.Sin(a)})
	}
	assert.Greater(t, Complexity(p, star, 0.01), 4+DefaultConfig().Logo.ComplexityTolerance)
}

func TestHuSimilarity(t *testing.T) {
	h := [7]float64{0.2, 0.01, 1e-4, 1e-5, -1e-9, 1e-7, 1e-10}
	assert.InDelta(t, 1.0, HuSimilarity(h, h), 1e-12)

	other := h
	other[0] = 0.02 // one decade away in the first invariant
	assert.InDelta(t, math.Exp(-1), HuSimilarity(h, other), 1e-9)

	flipped := h
	flipped[4] = 1e-9 // sign flip moves the transformed value across zero
	assert.Less(t, HuSimilarity(h, flipped), 1e-6)
}

func TestShapeSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, ShapeSimilarity(0), 1e-12)
	assert.InDelta(t, math.Exp(-2), ShapeSimilarity(2), 1e-12)
}

func TestBestShapeMatch_IndependentMaxima(t *testing.T) {
	f := newFakePrims()
	a, b := square(1, 40), square(2, 40)
	// a is the best Hu pair, b the best shape pair.
	f.setShape(a, 0.9, 0.2, 4)
	f.setShape(b, 0.3, 0.8, 4)

	hu, shape := BestShapeMatch(f, []vision.Contour{square(0, 40)}, []vision.Contour{a, b})
	assert.InDelta(t, 0.9, hu, 1e-9)
	assert.InDelta(t, 0.8, shape, 1e-9)

	hu, shape = BestShapeMatch(f, nil, []vision.Contour{a})
	assert.Zero(t, hu)
	assert.Zero(t, shape)
}

func TestComplexityGate(t *testing.T) {
	f := newFakePrims()
	query := []queryShape{{contour: square(0, 40), complexity: 4}, {contour: square(0, 41), complexity: 30}}
	cfg := DefaultConfig().Logo

	near, far, second := square(1, 40), square(2, 40), square(3, 40)
	f.complexity[near[0]] = 12
	f.complexity[far[0]] = 13
	f.complexity[second[0]] = 25

	kept := complexityGate(f, query, []vision.Contour{near, far, second}, cfg)
	require.Len(t, kept, 2)
	assert.Equal(t, near, kept[0])
	assert.Equal(t, second, kept[1])
}
