package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/sif/internal/dataset"
)

// SearchResult is the outcome of one query against a corpus.
type SearchResult struct {
	Query      string          `json:"query"`
	Route      Route           `json:"route"`
	Classified Route           `json:"classified"`
	Forced     bool            `json:"forced"`
	Stats      QueryStats      `json:"stats"`
	Results    []Result        `json:"results"`
	Outcomes   map[Outcome]int `json:"outcomes"`
	NoSignal   string          `json:"no_signal,omitempty"`
	Elapsed    time.Duration   `json:"elapsed"`
}

// Search prepares the query, classifies it unless forced is set, and runs
// the chosen route over items.
func (e *Engine) Search(ctx context.Context, q Query, items []dataset.Item, forced Route) (*SearchResult, error) {
	return e.SearchWithProgress(ctx, q, items, forced, nil)
}

// SearchWithProgress is Search with scan progress reporting. A query that
// lacks signal for its route yields an empty result with NoSignal set, not
// an error.
func (e *Engine) SearchWithProgress(
	ctx context.Context,
	q Query,
	items []dataset.Item,
	forced Route,
	progress ProgressCallback,
) (*SearchResult, error) {
	start := time.Now()

	pq, err := e.PrepareQuery(q)
	if err != nil {
		return nil, err
	}
	stats := e.Stats(pq)
	res := &SearchResult{
		Query:      q.Name,
		Classified: e.cfg.Classifier.Decide(stats),
		Stats:      stats,
		Outcomes:   map[Outcome]int{},
	}
	res.Route = res.Classified
	if forced != RouteAuto {
		res.Route = forced
		res.Forced = true
	}

	e.logger.Info("Query classified",
		"query", q.Name,
		"route", res.Route,
		"classified", res.Classified,
		"forced", res.Forced,
		"keypoints", stats.Keypoints,
		"density", stats.Density,
		"aspect", stats.Aspect,
	)

	e.observer.QueryStarted(res.Route)

	var run scanResult
	switch res.Route {
	case RouteLogo:
		run, err = e.runLogo(ctx, pq, items, progress)
	case RouteObject:
		run, err = e.runObject(ctx, pq, items, progress)
	default:
		return nil, fmt.Errorf("unsupported route %q", res.Route)
	}

	switch {
	case errors.Is(err, ErrNoQuerySignal):
		res.NoSignal = err.Error()
		e.logger.Warn("Query has no usable signal", "query", q.Name, "route", res.Route, "error", err)
	case err != nil:
		return nil, fmt.Errorf("%s route: %w", res.Route, err)
	default:
		res.Results = run.results
		res.Outcomes = run.outcomes
	}

	res.Elapsed = time.Since(start)
	e.observer.QueryFinished(res.Route, len(res.Results), res.Elapsed)
	e.logger.Info("Query finished",
		"query", q.Name,
		"route", res.Route,
		"results", len(res.Results),
		"elapsed", res.Elapsed.Round(time.Millisecond),
	)
	return res, nil
}
