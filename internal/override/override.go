// Package override forces a query route from caller-side evidence such as
// an explicit flag or hint words in the query file name. The retrieval core
// never consults it.
package override

import (
	"path/filepath"

	"github.com/MeKo-Tech/sif/internal/retrieval"
	"github.com/MeKo-Tech/sif/internal/utils"
)

// Hints are the case-folded substrings that force a route.
type Hints struct {
	Logo   []string `mapstructure:"logo_hints" yaml:"logo_hints" json:"logo_hints"`
	Object []string `mapstructure:"object_hints" yaml:"object_hints" json:"object_hints"`
}

// DefaultHints returns the evaluation-set hint words.
func DefaultHints() Hints {
	return Hints{
		Logo:   []string{"logo"},
		Object: []string{"airplane", "laptop", "camera"},
	}
}

// Resolve returns forced when it is set and classified otherwise.
func Resolve(classified, forced retrieval.Route) retrieval.Route {
	if forced != retrieval.RouteAuto {
		return forced
	}
	return classified
}

// FromHints matches the base name of name against the hints. Logo hints
// win over object hints. ok is false when nothing matches.
func FromHints(name string, hints Hints) (retrieval.Route, bool) {
	base := filepath.Base(name)
	for _, h := range hints.Logo {
		if h != "" && utils.ContainsFold(base, h) {
			return retrieval.RouteLogo, true
		}
	}
	for _, h := range hints.Object {
		if h != "" && utils.ContainsFold(base, h) {
			return retrieval.RouteObject, true
		}
	}
	return retrieval.RouteAuto, false
}

// Forced combines an explicit route with the hint heuristic. An explicit
// route always wins; hints apply only when enabled.
func Forced(explicit retrieval.Route, name string, hints Hints, useHints bool) retrieval.Route {
	if explicit != retrieval.RouteAuto {
		return explicit
	}
	if !useHints {
		return retrieval.RouteAuto
	}
	if r, ok := FromHints(name, hints); ok {
		return r
	}
	return retrieval.RouteAuto
}
