package retrieval

import (
	"sort"

	"github.com/MeKo-Tech/sif/internal/dataset"
	"github.com/MeKo-Tech/sif/internal/vision"
)

// Cues records every signal computed for a surviving candidate.
type Cues struct {
	Color       float64 `json:"color,omitempty"`
	Inliers     int     `json:"inliers,omitempty"`
	Coverage    float64 `json:"coverage,omitempty"`
	Spatial     float64 `json:"spatial,omitempty"`
	Compactness float64 `json:"compactness,omitempty"`
	Hu          float64 `json:"hu,omitempty"`
	Shape       float64 `json:"shape,omitempty"`
	Gate        float64 `json:"gate,omitempty"`
	GoodMatches int     `json:"good_matches,omitempty"`
}

// Result is one ranked corpus item. Matches are the inlier matches on the
// object route and the good matches on the logo route. Keypoints are the
// candidate's keypoints the matches index into.
type Result struct {
	Path      string            `json:"path"`
	Rel       string            `json:"rel"`
	Route     Route             `json:"route"`
	Score     float64           `json:"score"`
	Cues      Cues              `json:"cues"`
	Matches   []vision.Match    `json:"-"`
	Keypoints []vision.KeyPoint `json:"-"`
	Item      *dataset.Item     `json:"-"`
}

// Rank orders results by descending score. Equal scores are ordered by
// ascending path.
func Rank(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Path < results[j].Path
	})
}

// TopK returns at most k leading results. k <= 0 returns all of them.
func TopK(results []Result, k int) []Result {
	if k <= 0 || k >= len(results) {
		return results
	}
	return results[:k]
}
