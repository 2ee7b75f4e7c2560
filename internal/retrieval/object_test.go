package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sif/internal/dataset"
)

func newQuery(t *testing.T, f *fakePrims, p *profile) Query {
	t.Helper()
	g := f.add(p)
	return Query{Name: "query", Gray: g, Color: g}
}

func objectCandidate(id int, color float64, good, inliers int) *profile {
	return &profile{id: id, color: color, orb: 60, good: good, inliers: inliers}
}

func prepare(t *testing.T, e *Engine, q Query) *PreparedQuery {
	t.Helper()
	pq, err := e.PrepareQuery(q)
	require.NoError(t, err)
	return pq
}

func TestObjectRoute_RanksSurvivors(t *testing.T) {
	f := newFakePrims()
	q := newQuery(t, f, &profile{id: 0, orb: 60})
	items := []dataset.Item{
		f.item(objectCandidate(1, 0.9, 55, 20), "a.png", dataset.PartitionGeneral),
		f.item(objectCandidate(2, 0.9, 55, 50), "b.png", dataset.PartitionGeneral),
		f.item(objectCandidate(3, 0.9, 55, 30), "c.png", dataset.PartitionGeneral),
	}

	e := NewEngine(DefaultConfig(), WithPrimitives(f), WithWorkers(1))
	results, err := e.RunObjectRoute(context.Background(), prepare(t, e, q), items)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []string{"b.png", "c.png", "a.png"}, []string{results[0].Path, results[1].Path, results[2].Path})
	for _, r := range results {
		assert.Equal(t, RouteObject, r.Route)
		assert.Len(t, r.Matches, r.Cues.Inliers)
		assert.InDelta(t, 1.0, r.Cues.Spatial, 1e-9)
		assert.NotNil(t, r.Item)
	}

	// 50 inliers span rows 0..4 of the query grid: a 90x40 hull over 100x100.
	best := results[0]
	assert.InDelta(t, 0.36, best.Cues.Coverage, 1e-9)
	want := 0.4*1 + 0.3*0.36 + 0.15*0.95 + 0.15*1
	assert.InDelta(t, want, best.Score, 1e-9)
}

func TestObjectRoute_ColorThresholdIsInclusive(t *testing.T) {
	f := newFakePrims()
	q := newQuery(t, f, &profile{id: 0, orb: 60})
	items := []dataset.Item{
		f.item(objectCandidate(1, 0.4, 40, 20), "exact.png", dataset.PartitionGeneral),
		f.item(objectCandidate(2, 0.399999, 40, 20), "below.png", dataset.PartitionGeneral),
	}

	e := NewEngine(DefaultConfig(), WithPrimitives(f), WithWorkers(1))
	results, err := e.RunObjectRoute(context.Background(), prepare(t, e, q), items)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "exact.png", results[0].Path)
}

func TestObjectRoute_Gates(t *testing.T) {
	tests := []struct {
		name    string
		cand    *profile
		outcome Outcome
	}{
		{"low color", objectCandidate(1, 0.1, 40, 20), RejectColor},
		{"no descriptors", &profile{id: 1, color: 0.9}, RejectMatches},
		{"too few good matches", objectCandidate(1, 0.9, 9, 9), RejectMatches},
		{"zero inliers", objectCandidate(1, 0.9, 40, 0), RejectInliers},
		{"fit fails", objectCandidate(1, 0.9, 40, -1), RejectInliers},
		{"ten good matches", objectCandidate(1, 0.9, 10, 10), OutcomeAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakePrims()
			q := newQuery(t, f, &profile{id: 0, orb: 60})
			items := []dataset.Item{f.item(tt.cand, "c.png", dataset.PartitionGeneral)}

			e := NewEngine(DefaultConfig(), WithPrimitives(f), WithWorkers(1))
			run, err := e.runObject(context.Background(), prepare(t, e, q), items, nil)
			require.NoError(t, err)
			assert.Equal(t, 1, run.outcomes[tt.outcome])
			if tt.outcome == OutcomeAccepted {
				assert.Len(t, run.results, 1)
			} else {
				assert.Empty(t, run.results)
			}
		})
	}
}

func TestObjectRoute_ZeroInliersNeverSurfaces(t *testing.T) {
	f := newFakePrims()
	q := newQuery(t, f, &profile{id: 0, orb: 60})
	// Perfect colour and plenty of good matches cannot rescue a candidate
	// without inliers.
	items := []dataset.Item{
		f.item(objectCandidate(1, 1.0, 60, 0), "zero.png", dataset.PartitionGeneral),
		f.item(objectCandidate(2, 0.5, 12, 3), "weak.png", dataset.PartitionGeneral),
	}

	e := NewEngine(DefaultConfig(), WithPrimitives(f))
	results, err := e.RunObjectRoute(context.Background(), prepare(t, e, q), items)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "weak.png", results[0].Path)
}

func TestObjectRoute_QueryWithoutDescriptors(t *testing.T) {
	f := newFakePrims()
	q := newQuery(t, f, &profile{id: 0})
	items := []dataset.Item{f.item(objectCandidate(1, 0.9, 40, 20), "a.png", dataset.PartitionGeneral)}

	e := NewEngine(DefaultConfig(), WithPrimitives(f))
	results, err := e.RunObjectRoute(context.Background(), prepare(t, e, q), items)
	require.ErrorIs(t, err, ErrNoQuerySignal)
	assert.Empty(t, results)
}

func TestObjectRoute_CompactnessFeedsShapeTerm(t *testing.T) {
	f := newFakePrims()
	q := newQuery(t, f, &profile{id: 0, orb: 60})
	items := []dataset.Item{f.item(objectCandidate(1, 0.9, 40, 30), "a.png", dataset.PartitionGeneral)}

	off := NewEngine(DefaultConfig(), WithPrimitives(f), WithWorkers(1))
	base, err := off.RunObjectRoute(context.Background(), prepare(t, off, q), items)
	require.NoError(t, err)
	require.Len(t, base, 1)
	assert.Greater(t, base[0].Cues.Compactness, 0.0)

	cfg := DefaultConfig()
	cfg.Object.UseCompactness = true
	on := NewEngine(cfg, WithPrimitives(f), WithWorkers(1))
	boosted, err := on.RunObjectRoute(context.Background(), prepare(t, on, q), items)
	require.NoError(t, err)
	require.Len(t, boosted, 1)

	assert.InDelta(t, base[0].Score+0.15*base[0].Cues.Compactness, boosted[0].Score, 1e-9)
}

func TestObjectRoute_DeterministicAcrossWorkers(t *testing.T) {
	f := newFakePrims()
	q := newQuery(t, f, &profile{id: 0, orb: 60})
	var items []dataset.Item
	for i := 1; i <= 24; i++ {
		// Several candidates share a score so the path tie-break is exercised.
		inliers := 10 + (i%4)*10
		items = append(items, f.item(objectCandidate(i, 0.8, 45, inliers), pathFor(i), dataset.PartitionGeneral))
	}

	sequential := NewEngine(DefaultConfig(), WithPrimitives(f), WithWorkers(1))
	want, err := sequential.RunObjectRoute(context.Background(), prepare(t, sequential, q), items)
	require.NoError(t, err)
	require.Len(t, want, 24)

	parallel := NewEngine(DefaultConfig(), WithPrimitives(f), WithWorkers(6))
	for range 3 {
		got, err := parallel.RunObjectRoute(context.Background(), prepare(t, parallel, q), items)
		require.NoError(t, err)
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].Path, got[i].Path)
			assert.InDelta(t, want[i].Score, got[i].Score, 1e-12)
		}
	}
}

func TestObjectRoute_Cancelled(t *testing.T) {
	f := newFakePrims()
	q := newQuery(t, f, &profile{id: 0, orb: 60})
	items := []dataset.Item{
		f.item(objectCandidate(1, 0.9, 40, 20), "a.png", dataset.PartitionGeneral),
		f.item(objectCandidate(2, 0.9, 40, 20), "b.png", dataset.PartitionGeneral),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		e := NewEngine(DefaultConfig(), WithPrimitives(f), WithWorkers(workers))
		_, err := e.RunObjectRoute(ctx, prepare(t, e, q), items)
		require.ErrorIs(t, err, context.Canceled)
	}
}

func pathFor(i int) string {
	return string(rune('a'+i%26)) + string(rune('a'+i/26)) + ".png"
}
