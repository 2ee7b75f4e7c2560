package retrieval

import (
	"fmt"
	"strings"
)

// Route selects which cascade evaluates the corpus.
type Route string

const (
	// RouteAuto lets the classifier decide.
	RouteAuto Route = ""
	// RouteLogo runs the contour/shape cascade over the logo partition.
	RouteLogo Route = "logo"
	// RouteObject runs the colour/feature/geometry cascade over the whole corpus.
	RouteObject Route = "object"
)

func (r Route) String() string {
	if r == RouteAuto {
		return "auto"
	}
	return string(r)
}

// ParseRoute accepts "auto" (or empty), "logo" and "object", case-insensitively.
func ParseRoute(s string) (Route, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return RouteAuto, nil
	case "logo":
		return RouteLogo, nil
	case "object":
		return RouteObject, nil
	default:
		return RouteAuto, fmt.Errorf("unknown route %q (expected auto, logo or object)", s)
	}
}
