package retrieval

import (
	"context"
	"fmt"

	"github.com/MeKo-Tech/sif/internal/dataset"
	"github.com/MeKo-Tech/sif/internal/vision"
)

// RunObjectRoute scores every corpus item with the colour, descriptor and
// geometry cascade and returns the survivors ranked.
func (e *Engine) RunObjectRoute(ctx context.Context, pq *PreparedQuery, items []dataset.Item) ([]Result, error) {
	run, err := e.runObject(ctx, pq, items, nil)
	return run.results, err
}

func (e *Engine) runObject(
	ctx context.Context,
	pq *PreparedQuery,
	items []dataset.Item,
	progress ProgressCallback,
) (scanResult, error) {
	if pq == nil {
		return scanResult{}, ErrInvalidQuery
	}
	if pq.Descriptors.Len() == 0 {
		return scanResult{}, fmt.Errorf("%w: no ORB descriptors", ErrNoQuerySignal)
	}
	hist := pq.histogram()
	return e.scan(ctx, RouteObject, len(items), progress, func(i int) (*Result, Outcome) {
		res, outcome := e.evaluateObject(pq, hist, &items[i])
		if outcome != OutcomeAccepted {
			e.logger.Debug("Candidate rejected",
				"path", items[i].Path, "route", RouteObject, "stage", outcome)
		}
		return res, outcome
	})
}

func (e *Engine) evaluateObject(pq *PreparedQuery, queryHist vision.Histogram, it *dataset.Item) (*Result, Outcome) {
	cfg := e.cfg.Object
	if it.Gray == nil || it.Color == nil {
		return nil, RejectInvalid
	}

	color := e.prims.HistogramCorrelation(queryHist, e.prims.ColorHistogram(it.Color, cfg.HistogramBins))
	if color < cfg.ColorThreshold {
		return nil, RejectColor
	}

	kps, des := e.prims.DetectAndDescribe(it.Gray, nil, vision.ORB)
	if des.Len() == 0 {
		return nil, RejectMatches
	}
	good := RatioTest(e.prims.MatchNearestTwo(pq.Descriptors, des), cfg.Ratio)
	if len(good) < cfg.MinMatches {
		return nil, RejectMatches
	}

	v := VerifyGeometry(e.prims, cfg, pq.Keypoints, kps, good, pq.Size())
	if len(v.Inliers) == 0 {
		return nil, RejectInliers
	}

	spatial := SpatialConsistency(pq.Keypoints, kps, v.Inliers)
	compactness := ShapeCompactness(e.prims, kps, v.Inliers, cfg.MinCompactnessInliers)
	shape := 0.0
	if cfg.UseCompactness {
		shape = compactness
	}
	score := FuseObject(cfg.Weights, cfg.InlierNorm, ObjectCues{
		Inliers:  len(v.Inliers),
		Coverage: v.Coverage,
		Color:    color,
		Spatial:  spatial,
		Shape:    shape,
	})

	return &Result{
		Path:  it.Path,
		Rel:   it.Rel,
		Route: RouteObject,
		Score: score,
		Cues: Cues{
			Color:       color,
			Inliers:     len(v.Inliers),
			Coverage:    v.Coverage,
			Spatial:     spatial,
			Compactness: compactness,
			GoodMatches: len(good),
		},
		Matches:   v.Inliers,
		Keypoints: kps,
		Item:      it,
	}, OutcomeAccepted
}
