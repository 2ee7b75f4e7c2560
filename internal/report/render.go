package report

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/MeKo-Tech/sif/internal/retrieval"
	"github.com/MeKo-Tech/sif/internal/utils"
	"github.com/MeKo-Tech/sif/internal/vision"
)

// DefaultMaxLines caps the correspondences drawn by RenderMatches.
const DefaultMaxLines = 30

// sideBySide pastes query and candidate next to each other at the query's
// height and returns the canvas with the candidate's scale and x offset.
func sideBySide(query, candidate image.Image) (*image.RGBA, float64, float64, float64) {
	q := utils.ToNRGBA(query)
	h := q.Bounds().Dy()
	c := utils.ResizeToHeight(candidate, h)
	sx := float64(c.Bounds().Dx()) / float64(candidate.Bounds().Dx())
	sy := float64(h) / float64(candidate.Bounds().Dy())

	canvas := imaging.New(q.Bounds().Dx()+c.Bounds().Dx(), h, color.White)
	canvas = imaging.Paste(canvas, q, image.Pt(0, 0))
	canvas = imaging.Paste(canvas, c, image.Pt(q.Bounds().Dx(), 0))

	rgba := image.NewRGBA(canvas.Bounds())
	draw.Draw(rgba, rgba.Bounds(), canvas, image.Point{}, draw.Src)
	return rgba, sx, sy, float64(q.Bounds().Dx())
}

// RenderPair draws query and candidate side by side.
func RenderPair(query, candidate image.Image) *image.RGBA {
	if query == nil || candidate == nil {
		return nil
	}
	canvas, _, _, _ := sideBySide(query, candidate)
	return canvas
}

// RenderMatches draws query and candidate side by side with up to maxLines
// correspondences, each in its own hue. Keypoints are in the coordinates of
// images anchored at the origin.
func RenderMatches(
	query, candidate image.Image,
	queryKps, candKps []vision.KeyPoint,
	matches []vision.Match,
	maxLines int,
) *image.RGBA {
	if query == nil || candidate == nil {
		return nil
	}
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	canvas, sx, sy, offset := sideBySide(query, candidate)

	n := min(len(matches), maxLines)
	for i, m := range matches[:n] {
		if m.QueryIdx >= len(queryKps) || m.TrainIdx >= len(candKps) {
			continue
		}
		col := colorful.Hsv(float64(i)*360/float64(n), 0.9, 0.95)
		a := queryKps[m.QueryIdx].Point()
		c := candKps[m.TrainIdx].Point()
		b := utils.Point{X: c.X*sx + offset, Y: c.Y * sy}
		utils.DrawLine(canvas, a, b, col, 1)
		utils.DrawCircle(canvas, a, 3, col)
		utils.DrawCircle(canvas, b, 3, col)
	}
	return canvas
}

// WriteOverlay renders the best result of res into dir and returns the file
// path. Object results show their inlier correspondences, logo results the
// plain pair. It returns "" when there is nothing to render.
func WriteOverlay(dir string, res *retrieval.SearchResult, query image.Image, queryKps []vision.KeyPoint) (string, error) {
	if dir == "" || res == nil || len(res.Results) == 0 || query == nil {
		return "", nil
	}
	best := res.Results[0]
	if best.Item == nil || best.Item.Color == nil {
		return "", nil
	}

	var img *image.RGBA
	if best.Route == retrieval.RouteObject {
		img = RenderMatches(query, best.Item.Color, queryKps, best.Keypoints, best.Matches, DefaultMaxLines)
	} else {
		img = RenderPair(query, best.Item.Color)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create overlay dir: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(res.Query), filepath.Ext(res.Query))
	if base == "" || base == "." {
		base = "query"
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s_best.png", base, res.Route))
	if err := imaging.Save(img, path); err != nil {
		return "", fmt.Errorf("save overlay: %w", err)
	}
	return path, nil
}
