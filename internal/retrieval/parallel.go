package retrieval

import (
	"context"
	"sync"
)

// evaluation is the outcome of scoring one corpus item.
type evaluation struct {
	index   int
	result  *Result
	outcome Outcome
}

// scanResult is the collected output of one corpus scan.
type scanResult struct {
	results  []Result
	outcomes map[Outcome]int
}

// scan evaluates n corpus items with a bounded worker pool and collects the
// survivors by corpus index, so the output does not depend on scheduling.
func (e *Engine) scan(
	ctx context.Context,
	route Route,
	n int,
	progress ProgressCallback,
	eval func(i int) (*Result, Outcome),
) (scanResult, error) {
	if progress == nil {
		progress = NoOpProgressCallback{}
	}
	progress.OnStart(n)
	defer progress.OnComplete()

	records := make([]*evaluation, n)
	record := func(ev evaluation, done int) {
		records[ev.index] = &ev
		e.observer.CandidateEvaluated(route, ev.outcome)
		progress.OnProgress(done, n)
	}

	// For a single item or a single worker, evaluate sequentially in corpus order
	if n <= 1 || e.workers == 1 {
		for i := range n {
			if err := ctx.Err(); err != nil {
				return scanResult{}, err
			}
			res, outcome := eval(i)
			record(evaluation{index: i, result: res, outcome: outcome}, i+1)
		}
		return collect(records), nil
	}

	jobs := make(chan int, n)
	results := make(chan evaluation, n)

	var wg sync.WaitGroup
	for range min(e.workers, n) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case i, ok := <-jobs:
					if !ok {
						return
					}
					res, outcome := eval(i)
					select {
					case results <- evaluation{index: i, result: res, outcome: outcome}:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range n {
			if ctx.Err() != nil {
				return
			}
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	done := 0
	for ev := range results {
		done++
		record(ev, done)
	}

	if err := ctx.Err(); err != nil {
		return scanResult{}, err
	}
	return collect(records), nil
}

func collect(records []*evaluation) scanResult {
	out := scanResult{outcomes: make(map[Outcome]int)}
	for _, ev := range records {
		if ev == nil {
			continue
		}
		out.outcomes[ev.outcome]++
		if ev.result != nil {
			out.results = append(out.results, *ev.result)
		}
	}
	Rank(out.results)
	return out
}
