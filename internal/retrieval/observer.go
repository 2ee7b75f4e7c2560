package retrieval

import "time"

// Observer receives query lifecycle events. Implementations must be safe for
// concurrent use: CandidateEvaluated is called from worker goroutines.
type Observer interface {
	QueryStarted(route Route)
	CandidateEvaluated(route Route, outcome Outcome)
	QueryFinished(route Route, results int, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) QueryStarted(Route)                      {}
func (nopObserver) CandidateEvaluated(Route, Outcome)       {}
func (nopObserver) QueryFinished(Route, int, time.Duration) {}
