package retrieval

import (
	"context"
	"fmt"

	"github.com/MeKo-Tech/sif/internal/dataset"
	"github.com/MeKo-Tech/sif/internal/vision"
)

// RunLogoRoute scores the logo partition with the contour, shape and SIFT
// cascade and returns the survivors ranked. Items outside the logo
// partition are skipped. A query without selectable contours or SIFT
// descriptors returns ErrNoQuerySignal before any item is evaluated.
func (e *Engine) RunLogoRoute(ctx context.Context, pq *PreparedQuery, items []dataset.Item) ([]Result, error) {
	run, err := e.runLogo(ctx, pq, items, nil)
	return run.results, err
}

func (e *Engine) runLogo(
	ctx context.Context,
	pq *PreparedQuery,
	items []dataset.Item,
	progress ProgressCallback,
) (scanResult, error) {
	if pq == nil {
		return scanResult{}, ErrInvalidQuery
	}
	shapes := pq.topShapes()
	if len(shapes) == 0 {
		return scanResult{}, fmt.Errorf("%w: no query contours", ErrNoQuerySignal)
	}
	_, des := pq.sift()
	if des.Len() == 0 {
		return scanResult{}, fmt.Errorf("%w: no SIFT descriptors", ErrNoQuerySignal)
	}
	return e.scan(ctx, RouteLogo, len(items), progress, func(i int) (*Result, Outcome) {
		res, outcome := e.evaluateLogo(pq, shapes, &items[i])
		if outcome != OutcomeAccepted && outcome != OutcomeSkipped {
			e.logger.Debug("Candidate rejected",
				"path", items[i].Path, "route", RouteLogo, "stage", outcome)
		}
		return res, outcome
	})
}

func (e *Engine) evaluateLogo(pq *PreparedQuery, shapes []queryShape, it *dataset.Item) (*Result, Outcome) {
	cfg := e.cfg.Logo
	if it.Partition != dataset.PartitionLogo {
		return nil, OutcomeSkipped
	}
	if it.Gray == nil {
		return nil, RejectInvalid
	}

	contours := SelectTopContours(e.prims, e.extractContours(it.Gray), cfg)
	if len(contours) == 0 {
		return nil, RejectContours
	}
	kept := complexityGate(e.prims, shapes, contours, cfg)
	if len(kept) == 0 {
		return nil, RejectComplexity
	}

	queryContours := make([]vision.Contour, len(shapes))
	for i, s := range shapes {
		queryContours[i] = s.contour
	}
	hu, shape := BestShapeMatch(e.prims, queryContours, kept)
	gate := GateScore(cfg, hu, shape)
	if gate < cfg.ShapeGate {
		return nil, RejectShape
	}

	kps, des := e.prims.DetectAndDescribe(it.Gray, nil, vision.SIFT)
	if des.Len() == 0 {
		return nil, RejectDescriptors
	}
	_, queryDes := pq.sift()
	good := RatioTest(e.prims.MatchNearestTwo(queryDes, des), cfg.Ratio)

	score := FuseLogo(cfg.Weights, cfg.MatchNorm, LogoCues{Hu: hu, Shape: shape, GoodMatches: len(good)})
	if score < cfg.MinScore {
		return nil, RejectScore
	}

	return &Result{
		Path:  it.Path,
		Rel:   it.Rel,
		Route: RouteLogo,
		Score: score,
		Cues: Cues{
			Hu:          hu,
			Shape:       shape,
			Gate:        gate,
			GoodMatches: len(good),
		},
		Matches:   good,
		Keypoints: kps,
		Item:      it,
	}, OutcomeAccepted
}
