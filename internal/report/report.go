// Package report formats ranked search results and renders match overlays.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/sif/internal/retrieval"
)

// OutputFormat selects how a report is written.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatCSV  OutputFormat = "csv"
)

// ParseFormat validates a format name. Empty selects text.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (expected text, json or csv)", s)
	}
}

// Entry is one reported result.
type Entry struct {
	Rank      int            `json:"rank"`
	Path      string         `json:"path"`
	Score     float64        `json:"score"`
	Matches   int            `json:"matches"`
	Keypoints int            `json:"keypoints"`
	Cues      retrieval.Cues `json:"cues"`
}

// Report is the serialisable summary of one search.
type Report struct {
	Query      string                    `json:"query"`
	Route      retrieval.Route           `json:"route"`
	Classified retrieval.Route           `json:"classified"`
	Forced     bool                      `json:"forced"`
	Stats      retrieval.QueryStats      `json:"stats"`
	NoSignal   string                    `json:"no_signal,omitempty"`
	Total      int                       `json:"total"`
	Collapsed  int                       `json:"collapsed,omitempty"`
	Outcomes   map[retrieval.Outcome]int `json:"outcomes,omitempty"`
	ElapsedMs  int64                     `json:"elapsed_ms"`
	Results    []Entry                   `json:"results"`
}

// Options controls which results make it into a report.
type Options struct {
	TopK            int
	Dedupe          bool
	DedupeThreshold int
}

// DefaultDedupeThreshold is the dHash Hamming distance at or below which two
// results count as the same picture.
const DefaultDedupeThreshold = 10

// Build summarises a search result.
func Build(res *retrieval.SearchResult, opts Options) *Report {
	results := res.Results
	collapsed := 0
	if opts.Dedupe {
		threshold := opts.DedupeThreshold
		if threshold <= 0 {
			threshold = DefaultDedupeThreshold
		}
		kept := Dedupe(results, threshold)
		collapsed = len(results) - len(kept)
		results = kept
	}
	total := len(results)
	results = retrieval.TopK(results, opts.TopK)

	rep := &Report{
		Query:      res.Query,
		Route:      res.Route,
		Classified: res.Classified,
		Forced:     res.Forced,
		Stats:      res.Stats,
		NoSignal:   res.NoSignal,
		Total:      total,
		Collapsed:  collapsed,
		Outcomes:   res.Outcomes,
		ElapsedMs:  res.Elapsed.Milliseconds(),
		Results:    make([]Entry, len(results)),
	}
	for i, r := range results {
		rep.Results[i] = Entry{
			Rank:      i + 1,
			Path:      r.Path,
			Score:     r.Score,
			Matches:   len(r.Matches),
			Keypoints: len(r.Keypoints),
			Cues:      r.Cues,
		}
	}
	return rep
}

// Dedupe drops results whose fingerprint is within threshold of a
// better-ranked kept result. Results without fingerprints are always kept.
func Dedupe(results []retrieval.Result, threshold int) []retrieval.Result {
	var kept []retrieval.Result
	for _, r := range results {
		duplicate := false
		for _, k := range kept {
			if r.Item == nil || k.Item == nil {
				continue
			}
			if d, ok := r.Item.Distance(*k.Item); ok && d <= threshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, r)
		}
	}
	return kept
}

// Format writes rep to w. precision is the number of score decimals for the
// text and CSV formats.
func Format(w io.Writer, rep *Report, format OutputFormat, precision int) error {
	if rep == nil {
		return fmt.Errorf("nil report")
	}
	if precision < 0 {
		precision = 4
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case FormatCSV:
		return writeCSV(w, rep, precision)
	case FormatText, "":
		return writeText(w, rep, precision)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func writeText(w io.Writer, rep *Report, precision int) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n", rep.Query)
	if rep.Forced {
		fmt.Fprintf(&b, "Route: %s (forced, classified %s)\n", rep.Route, rep.Classified)
	} else {
		fmt.Fprintf(&b, "Route: %s\n", rep.Route)
	}
	fmt.Fprintf(&b, "Keypoints: %d  Density: %.5f  Aspect: %.2f\n",
		rep.Stats.Keypoints, rep.Stats.Density, rep.Stats.Aspect)
	if rep.NoSignal != "" {
		fmt.Fprintf(&b, "No usable signal: %s\n", rep.NoSignal)
	}
	fmt.Fprintf(&b, "Results: %d shown of %d", len(rep.Results), rep.Total)
	if rep.Collapsed > 0 {
		fmt.Fprintf(&b, " (%d near-duplicates collapsed)", rep.Collapsed)
	}
	fmt.Fprintf(&b, " in %v\n", time.Duration(rep.ElapsedMs)*time.Millisecond)
	for _, e := range rep.Results {
		fmt.Fprintf(&b, "%3d. %s  score=%.*f  matches=%d\n", e.Rank, e.Path, precision, e.Score, e.Matches)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeCSV(w io.Writer, rep *Report, precision int) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"rank", "path", "route", "score", "matches", "keypoints"})
	for _, e := range rep.Results {
		_ = cw.Write([]string{
			strconv.Itoa(e.Rank),
			e.Path,
			string(rep.Route),
			strconv.FormatFloat(e.Score, 'f', precision, 64),
			strconv.Itoa(e.Matches),
			strconv.Itoa(e.Keypoints),
		})
	}
	cw.Flush()
	return cw.Error()
}
