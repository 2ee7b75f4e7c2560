package benchmark

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MeKo-Tech/sif/internal/dataset"
	"github.com/MeKo-Tech/sif/internal/retrieval"
)

// RouteResult compares both cascades for one query.
type RouteResult struct {
	Query      string
	ImageSize  string
	Classified retrieval.Route
	Object     Result
	Logo       Result
	// ObjectHits and LogoHits count the ranked results of the warmup run.
	ObjectHits int
	LogoHits   int
	// ObjectOverLogo is the object route's total duration divided by the
	// logo route's; zero when either run failed.
	ObjectOverLogo float64
}

func (r RouteResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s, classified %s)\n", r.Query, r.ImageSize, r.Classified)
	fmt.Fprintf(&b, "  object: %s, %d results\n", r.Object, r.ObjectHits)
	fmt.Fprintf(&b, "  logo:   %s, %d results\n", r.Logo, r.LogoHits)
	if r.ObjectOverLogo > 0 {
		fmt.Fprintf(&b, "  object/logo: %.2fx", r.ObjectOverLogo)
	}
	return b.String()
}

// RouteBenchmark times forced object and logo searches over one corpus.
type RouteBenchmark struct {
	engine  *retrieval.Engine
	items   []dataset.Item
	queries []retrieval.Query
	results []RouteResult
	mu      sync.Mutex
}

// NewRouteBenchmark benchmarks engine against items.
func NewRouteBenchmark(engine *retrieval.Engine, items []dataset.Item) *RouteBenchmark {
	return &RouteBenchmark{engine: engine, items: items}
}

// AddQuery registers a query image.
func (b *RouteBenchmark) AddQuery(q retrieval.Query) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queries = append(b.queries, q)
}

// Run benchmarks every query on both routes. A warmup search per route
// records the classification and hit counts; a failing warmup aborts.
func (b *RouteBenchmark) Run(ctx context.Context, iterations int) ([]RouteResult, error) {
	if iterations < 1 {
		return nil, fmt.Errorf("iterations must be positive, got %d", iterations)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.results = make([]RouteResult, 0, len(b.queries))
	for _, q := range b.queries {
		res, err := b.benchmarkQuery(ctx, q, iterations)
		if err != nil {
			return b.results, fmt.Errorf("benchmark %s: %w", q.Name, err)
		}
		b.results = append(b.results, res)
	}
	return b.results, nil
}

func (b *RouteBenchmark) benchmarkQuery(ctx context.Context, q retrieval.Query, iterations int) (RouteResult, error) {
	bounds := q.Gray.Bounds()
	out := RouteResult{
		Query: q.Name,
		ImageSize: fmt.Sprintf("%dx%d (%.2fMP)", bounds.Dx(), bounds.Dy(),
			float64(bounds.Dx()*bounds.Dy())/1e6),
	}

	suite := NewSuite()
	for _, route := range []retrieval.Route{retrieval.RouteObject, retrieval.RouteLogo} {
		warm, err := b.engine.Search(ctx, q, b.items, route)
		if err != nil {
			return out, err
		}
		out.Classified = warm.Classified
		if route == retrieval.RouteObject {
			out.ObjectHits = len(warm.Results)
		} else {
			out.LogoHits = len(warm.Results)
		}
		suite.Add(string(route), func() error {
			_, err := b.engine.Search(ctx, q, b.items, route)
			return err
		})
	}

	out.Object = suite.Run(string(retrieval.RouteObject), iterations)
	out.Logo = suite.Run(string(retrieval.RouteLogo), iterations)
	if out.Object.Error == nil && out.Logo.Error == nil && out.Logo.Duration > 0 {
		out.ObjectOverLogo = float64(out.Object.Duration) / float64(out.Logo.Duration)
	}
	return out, nil
}

// Results returns the results of the last Run.
func (b *RouteBenchmark) Results() []RouteResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.results
}

// PrintDetailedResults writes a human-readable report.
func (b *RouteBenchmark) PrintDetailedResults(w io.Writer) {
	results := b.Results()
	_, _ = fmt.Fprintf(w, "Route benchmark over %d corpus items\n", len(b.items))
	_, _ = fmt.Fprintln(w, "====================================")
	for _, r := range results {
		_, _ = fmt.Fprintln(w, r.String())
	}
	if len(results) == 0 {
		return
	}

	var sum float64
	n := 0
	for _, r := range results {
		if r.ObjectOverLogo > 0 {
			sum += r.ObjectOverLogo
			n++
		}
	}
	if n > 0 {
		_, _ = fmt.Fprintf(w, "\nMean object/logo cost ratio: %.2fx over %d queries\n", sum/float64(n), n)
	}
}

// WriteCSV writes one row per query with per-iteration averages in ms.
func WriteCSV(w io.Writer, results []RouteResult) error {
	if _, err := fmt.Fprintln(w, "query,size,classified,object_ms,logo_ms,object_hits,logo_hits,object_over_logo"); err != nil {
		return err
	}
	for _, r := range results {
		size, _, _ := strings.Cut(r.ImageSize, " ")
		_, err := fmt.Fprintf(w, "%s,%s,%s,%.2f,%.2f,%d,%d,%.2f\n",
			filepath.Base(r.Query),
			size,
			r.Classified,
			float64(r.Object.Average().Microseconds())/1000,
			float64(r.Logo.Average().Microseconds())/1000,
			r.ObjectHits,
			r.LogoHits,
			r.ObjectOverLogo,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
