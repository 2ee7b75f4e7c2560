package retrieval

import (
	"fmt"
	"image"
	"sync"

	"github.com/MeKo-Tech/sif/internal/utils"
	"github.com/MeKo-Tech/sif/internal/vision"
)

// Query is a validated query image.
type Query struct {
	Name  string
	Gray  *image.Gray
	Color image.Image
}

// NewQuery validates img and derives its grayscale variant.
func NewQuery(name string, img image.Image) (Query, error) {
	if err := utils.ValidateImage(img); err != nil {
		return Query{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	return Query{Name: name, Gray: utils.ToGray(img), Color: img}, nil
}

// Size returns the query dimensions.
func (q Query) Size() image.Point {
	if q.Gray == nil {
		return image.Point{}
	}
	return q.Gray.Bounds().Size()
}

// queryShape is one selected query contour with its complexity.
type queryShape struct {
	contour    vision.Contour
	complexity int
}

// PreparedQuery holds the query-side artifacts shared read-only by every
// corpus evaluation. Route-specific artifacts are computed on first use.
type PreparedQuery struct {
	Query

	// Keypoints and Descriptors are ORB features with text regions masked.
	Keypoints   []vision.KeyPoint
	Descriptors *vision.Descriptors

	engine *Engine

	histOnce sync.Once
	hist     vision.Histogram

	contourOnce sync.Once
	contours    []vision.Contour

	shapeOnce sync.Once
	shapes    []queryShape

	siftOnce sync.Once
	siftKps  []vision.KeyPoint
	siftDes  *vision.Descriptors
}

// PrepareQuery extracts the text-masked ORB features used by both the
// classifier and the object route.
func (e *Engine) PrepareQuery(q Query) (*PreparedQuery, error) {
	if q.Gray == nil || q.Color == nil || q.Size().X == 0 || q.Size().Y == 0 {
		return nil, ErrInvalidQuery
	}
	mask := e.prims.TextRegionMask(q.Gray)
	kps, des := e.prims.DetectAndDescribe(q.Gray, mask, vision.ORB)
	return &PreparedQuery{Query: q, Keypoints: kps, Descriptors: des, engine: e}, nil
}

func (pq *PreparedQuery) histogram() vision.Histogram {
	pq.histOnce.Do(func() {
		pq.hist = pq.engine.prims.ColorHistogram(pq.Color, pq.engine.cfg.Object.HistogramBins)
	})
	return pq.hist
}

// Contours returns every external contour of the query edge map.
func (pq *PreparedQuery) Contours() []vision.Contour {
	pq.contourOnce.Do(func() {
		pq.contours = pq.engine.extractContours(pq.Gray)
	})
	return pq.contours
}

func (pq *PreparedQuery) topShapes() []queryShape {
	pq.shapeOnce.Do(func() {
		e := pq.engine
		for _, c := range SelectTopContours(e.prims, pq.Contours(), e.cfg.Logo) {
			pq.shapes = append(pq.shapes, queryShape{
				contour:    c,
				complexity: Complexity(e.prims, c, e.cfg.Logo.ApproxEpsilon),
			})
		}
	})
	return pq.shapes
}

func (pq *PreparedQuery) sift() ([]vision.KeyPoint, *vision.Descriptors) {
	pq.siftOnce.Do(func() {
		pq.siftKps, pq.siftDes = pq.engine.prims.DetectAndDescribe(pq.Gray, nil, vision.SIFT)
	})
	return pq.siftKps, pq.siftDes
}

func (e *Engine) extractContours(gray *image.Gray) []vision.Contour {
	edges := e.prims.ExtractEdges(gray, e.cfg.Logo.CannyLow, e.cfg.Logo.CannyHigh)
	if edges == nil {
		return nil
	}
	return e.prims.ExtractContours(edges)
}
