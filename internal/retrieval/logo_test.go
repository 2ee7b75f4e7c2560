package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sif/internal/dataset"
	"github.com/MeKo-Tech/sif/internal/vision"
)

func logoQuery() *profile {
	return &profile{id: 0, orb: 60, sift: 60, contours: []vision.Contour{square(0, 40)}}
}

func logoCandidate(f *fakePrims, id int, huSim, shapeSim float64, complexity, siftGood int) *profile {
	c := square(id, 40)
	f.setShape(c, huSim, shapeSim, complexity)
	return &profile{id: id, sift: 60, siftGood: siftGood, contours: []vision.Contour{c}}
}

func TestLogoRoute_PerfectMatchScoresOne(t *testing.T) {
	f := newFakePrims()
	q := newQuery(t, f, logoQuery())
	items := []dataset.Item{
		f.item(logoCandidate(f, 1, 1, 1, 4, 50), "logos/a.png", dataset.PartitionLogo),
	}

	e := NewEngine(DefaultConfig(), WithPrimitives(f), WithWorkers(1))
	results, err := e.RunLogoRoute(context.Background(), prepare(t, e, q), items)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, RouteLogo, r.Route)
	assert.InDelta(t, 1.0, r.Score, 1e-9)
	assert.InDelta(t, 1.0, r.Cues.Gate, 1e-9)
	assert.Equal(t, 50, r.Cues.GoodMatches)
	assert.Len(t, r.Matches, 50)
	assert.Len(t, r.Keypoints, 60)
}

func TestLogoRoute_Gates(t *testing.T) {
	tests := []struct {
		name    string
		build   func(f *fakePrims) *profile
		part    dataset.Partition
		outcome Outcome
	}{
		{
			name:    "general partition skipped",
			build:   func(f *fakePrims) *profile { return logoCandidate(f, 1, 1, 1, 4, 50) },
			part:    dataset.PartitionGeneral,
			outcome: OutcomeSkipped,
		},
		{
			name:    "no contours",
			build:   func(*fakePrims) *profile { return &profile{id: 1, sift: 60, siftGood: 50} },
			part:    dataset.PartitionLogo,
			outcome: RejectContours,
		},
		{
			name: "contour below both floors",
			build: func(*fakePrims) *profile {
				return &profile{id: 1, sift: 60, contours: []vision.Contour{square(1, 5)}}
			},
			part:    dataset.PartitionLogo,
			outcome: RejectContours,
		},
		{
			name:    "complexity off by nine",
			build:   func(f *fakePrims) *profile { return logoCandidate(f, 1, 1, 1, 13, 50) },
			part:    dataset.PartitionLogo,
			outcome: RejectComplexity,
		},
		{
			name:    "complexity off by eight",
			build:   func(f *fakePrims) *profile { return logoCandidate(f, 1, 1, 1, 12, 50) },
			part:    dataset.PartitionLogo,
			outcome: OutcomeAccepted,
		},
		{
			name:    "shape gate just below",
			build:   func(f *fakePrims) *profile { return logoCandidate(f, 1, 0.5, 0.35, 4, 50) },
			part:    dataset.PartitionLogo,
			outcome: RejectShape,
		},
		{
			name:    "strong hu alone clears the gate",
			build:   func(f *fakePrims) *profile { return logoCandidate(f, 1, 0.9, 1e-9, 4, 50) },
			part:    dataset.PartitionLogo,
			outcome: OutcomeAccepted,
		},
		{
			name: "no candidate descriptors",
			build: func(f *fakePrims) *profile {
				p := logoCandidate(f, 1, 1, 1, 4, 0)
				p.sift = 0
				return p
			},
			part:    dataset.PartitionLogo,
			outcome: RejectDescriptors,
		},
		{
			name:    "fused score below minimum",
			build:   func(f *fakePrims) *profile { return logoCandidate(f, 1, 0.5, 0.4, 4, 0) },
			part:    dataset.PartitionLogo,
			outcome: RejectScore,
		},
		{
			name:    "descriptor support lifts the score",
			build:   func(f *fakePrims) *profile { return logoCandidate(f, 1, 0.5, 0.4, 4, 10) },
			part:    dataset.PartitionLogo,
			outcome: OutcomeAccepted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakePrims()
			q := newQuery(t, f, logoQuery())
			items := []dataset.Item{f.item(tt.build(f), "c.png", tt.part)}

			e := NewEngine(DefaultConfig(), WithPrimitives(f), WithWorkers(1))
			run, err := e.runLogo(context.Background(), prepare(t, e, q), items, nil)
			require.NoError(t, err)
			assert.Equal(t, 1, run.outcomes[tt.outcome], "outcomes: %v", run.outcomes)
			assert.Equal(t, tt.outcome == OutcomeAccepted, len(run.results) == 1)
		})
	}
}

func TestLogoRoute_SkippedItemsAreNotProcessed(t *testing.T) {
	f := newFakePrims()
	q := newQuery(t, f, logoQuery())
	items := []dataset.Item{
		f.item(logoCandidate(f, 1, 1, 1, 4, 50), "general/a.png", dataset.PartitionGeneral),
		f.item(logoCandidate(f, 2, 1, 1, 4, 50), "logos/b.png", dataset.PartitionLogo),
	}

	e := NewEngine(DefaultConfig(), WithPrimitives(f), WithWorkers(1))
	results, err := e.RunLogoRoute(context.Background(), prepare(t, e, q), items)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "logos/b.png", results[0].Path)
	// One edge map for the query, one for the logo item.
	assert.Equal(t, int32(2), f.edgeCalls.Load())
}

func TestLogoRoute_QueryWithoutContoursEvaluatesNothing(t *testing.T) {
	for name, query := range map[string]*profile{
		"no contours":    {id: 0, orb: 60, sift: 60},
		"only tiny ones": {id: 0, orb: 60, sift: 60, contours: []vision.Contour{square(0, 3)}},
		"no descriptors": {id: 0, orb: 60, contours: []vision.Contour{square(0, 40)}},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFakePrims()
			q := newQuery(t, f, query)
			items := []dataset.Item{
				f.item(logoCandidate(f, 1, 1, 1, 4, 50), "logos/a.png", dataset.PartitionLogo),
			}
			obs := &recordingObserver{}

			e := NewEngine(DefaultConfig(), WithPrimitives(f), WithObserver(obs))
			results, err := e.RunLogoRoute(context.Background(), prepare(t, e, q), items)
			require.ErrorIs(t, err, ErrNoQuerySignal)
			assert.Empty(t, results)
			assert.Equal(t, int32(1), f.edgeCalls.Load())
			assert.Zero(t, obs.evaluated.Load())
		})
	}
}

func TestLogoRoute_QuerySIFTExtractedOnce(t *testing.T) {
	f := newFakePrims()
	q := newQuery(t, f, logoQuery())
	var items []dataset.Item
	for i := 1; i <= 5; i++ {
		items = append(items, f.item(logoCandidate(f, i, 1, 1, 4, 20), pathFor(i), dataset.PartitionLogo))
	}

	e := NewEngine(DefaultConfig(), WithPrimitives(f), WithWorkers(3))
	pq := prepare(t, e, q)
	before := f.detectCalls.Load()
	results, err := e.RunLogoRoute(context.Background(), pq, items)
	require.NoError(t, err)
	assert.Len(t, results, 5)
	// One query extraction plus one per candidate.
	assert.Equal(t, int32(6), f.detectCalls.Load()-before)
}
