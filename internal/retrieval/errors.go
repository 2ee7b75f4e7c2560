package retrieval

import "errors"

var (
	// ErrNoQuerySignal means the query itself produced no usable features or
	// contours for the chosen route. The route returns no results.
	ErrNoQuerySignal = errors.New("query has no usable signal")

	// ErrInvalidQuery is returned for nil or zero-area query images.
	ErrInvalidQuery = errors.New("invalid query image")
)

// Outcome is the fate of one corpus item under one route.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	// OutcomeSkipped marks items outside the route's partition.
	OutcomeSkipped Outcome = "skipped"

	RejectColor       Outcome = "color"
	RejectMatches     Outcome = "matches"
	RejectInliers     Outcome = "inliers"
	RejectContours    Outcome = "contours"
	RejectComplexity  Outcome = "complexity"
	RejectShape       Outcome = "shape"
	RejectDescriptors Outcome = "descriptors"
	RejectScore       Outcome = "score"
	RejectInvalid     Outcome = "invalid"
)

// Outcomes lists every outcome in reporting order.
func Outcomes() []Outcome {
	return []Outcome{
		OutcomeAccepted, OutcomeSkipped,
		RejectColor, RejectMatches, RejectInliers, RejectContours,
		RejectComplexity, RejectShape, RejectDescriptors, RejectScore, RejectInvalid,
	}
}
