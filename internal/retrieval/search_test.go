package retrieval

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sif/internal/dataset"
	"github.com/MeKo-Tech/sif/internal/vision"
)

func searchCorpus(f *fakePrims) []dataset.Item {
	return []dataset.Item{
		f.item(objectCandidate(1, 0.9, 40, 30), "general/airplane.png", dataset.PartitionGeneral),
		f.item(logoCandidate(f, 2, 1, 1, 4, 50), "logos/star.png", dataset.PartitionLogo),
	}
}

func TestSearch_ClassifiesAndDispatches(t *testing.T) {
	f := newFakePrims()
	q := newQuery(t, f, logoQuery())
	items := searchCorpus(f)
	obs := &recordingObserver{}

	e := NewEngine(DefaultConfig(), WithPrimitives(f), WithObserver(obs))
	res, err := e.Search(context.Background(), q, items, RouteAuto)
	require.NoError(t, err)

	// 60 keypoints on 100x100 is sparse and square: a logo.
	assert.Equal(t, RouteLogo, res.Classified)
	assert.Equal(t, RouteLogo, res.Route)
	assert.False(t, res.Forced)
	assert.Equal(t, 60, res.Stats.Keypoints)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "logos/star.png", res.Results[0].Path)
	assert.Equal(t, 1, res.Outcomes[OutcomeSkipped])
	assert.Equal(t, 1, res.Outcomes[OutcomeAccepted])
	assert.Empty(t, res.NoSignal)

	assert.Equal(t, int32(1), obs.started.Load())
	assert.Equal(t, int32(2), obs.evaluated.Load())
	assert.Equal(t, int32(1), obs.finished.Load())
}

func TestSearch_ForcedRoute(t *testing.T) {
	f := newFakePrims()
	q := newQuery(t, f, logoQuery())
	items := searchCorpus(f)

	e := NewEngine(DefaultConfig(), WithPrimitives(f))
	res, err := e.Search(context.Background(), q, items, RouteObject)
	require.NoError(t, err)

	assert.Equal(t, RouteLogo, res.Classified)
	assert.Equal(t, RouteObject, res.Route)
	assert.True(t, res.Forced)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "general/airplane.png", res.Results[0].Path)
	assert.Equal(t, 1, res.Outcomes[RejectColor])
}

func TestSearch_NoSignalIsNotAnError(t *testing.T) {
	f := newFakePrims()
	q := newQuery(t, f, &profile{id: 0, orb: 60, sift: 60})
	items := searchCorpus(f)

	e := NewEngine(DefaultConfig(), WithPrimitives(f))
	res, err := e.Search(context.Background(), q, items, RouteLogo)
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Contains(t, res.NoSignal, "no query contours")
}

func TestSearch_Progress(t *testing.T) {
	f := newFakePrims()
	q := newQuery(t, f, logoQuery())
	items := searchCorpus(f)
	progress := &countingProgress{}

	e := NewEngine(DefaultConfig(), WithPrimitives(f), WithWorkers(2))
	_, err := e.SearchWithProgress(context.Background(), q, items, RouteObject, progress)
	require.NoError(t, err)
	assert.Equal(t, 2, progress.total)
	assert.Equal(t, 2, progress.last)
	assert.True(t, progress.completed)
}

func TestSearch_InvalidQuery(t *testing.T) {
	e := NewEngine(DefaultConfig(), WithPrimitives(newFakePrims()))
	_, err := e.Search(context.Background(), Query{}, nil, RouteAuto)
	require.ErrorIs(t, err, ErrInvalidQuery)

	_, err = NewQuery("empty", image.NewRGBA(image.Rect(0, 0, 0, 0)))
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestSearch_DefaultPrimitivesEndToEnd(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 120, 120))
	for y := range 120 {
		for x := range 120 {
			img.Set(x, y, color.White)
		}
	}
	for y := 30; y < 90; y++ {
		for x := 30; x < 90; x++ {
			img.Set(x, y, color.Black)
		}
	}
	q, err := NewQuery("square", img)
	require.NoError(t, err)

	logo := dataset.Item{Path: "logos/square.png", Gray: q.Gray, Color: img, Partition: dataset.PartitionLogo}

	e := NewEngine(DefaultConfig(), WithPrimitives(vision.NewDefault(vision.DefaultOptions())))
	res, err := e.Search(context.Background(), q, []dataset.Item{logo}, RouteLogo)
	require.NoError(t, err)

	assert.Equal(t, RouteLogo, res.Route)
	assert.LessOrEqual(t, len(res.Results), 1)
	for _, r := range res.Results {
		assert.InDelta(t, 1.0, r.Cues.Hu, 1e-9)
		assert.InDelta(t, 1.0, r.Cues.Shape, 1e-9)
	}
}

type countingProgress struct {
	total     int
	last      int
	completed bool
}

func (p *countingProgress) OnStart(total int)         { p.total = total }
func (p *countingProgress) OnProgress(current, _ int) { p.last = current }
func (p *countingProgress) OnComplete()               { p.completed = true }
