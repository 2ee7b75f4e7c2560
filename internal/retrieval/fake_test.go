package retrieval

import (
	"image"
	"math"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/sif/internal/dataset"
	"github.com/MeKo-Tech/sif/internal/utils"
	"github.com/MeKo-Tech/sif/internal/vision"
)

// profile pins what the fake primitives report for one image.
type profile struct {
	id       int
	gray     *image.Gray
	color    float64 // histogram correlation against the query
	orb      int     // ORB descriptor count
	good     int     // ORB pairs that pass the ratio test
	inliers  int     // homography inliers, -1 makes the fit fail
	sift     int
	siftGood int
	contours []vision.Contour
}

// fakePrims serves pinned outputs keyed by image identity. Geometry
// helpers (hull, area, perimeter) fall through to the real implementation.
type fakePrims struct {
	*vision.Default

	byGray     map[*image.Gray]*profile
	byID       map[int]*profile
	hu         map[utils.Point][7]float64
	shapeDist  map[utils.Point]float64
	complexity map[utils.Point]int

	edgeCalls   atomic.Int32
	detectCalls atomic.Int32
}

func newFakePrims() *fakePrims {
	return &fakePrims{
		Default:    vision.NewDefault(vision.DefaultOptions()),
		byGray:     map[*image.Gray]*profile{},
		byID:       map[int]*profile{},
		hu:         map[utils.Point][7]float64{},
		shapeDist:  map[utils.Point]float64{},
		complexity: map[utils.Point]int{},
	}
}

// add registers a profile and returns its image.
func (f *fakePrims) add(p *profile) *image.Gray {
	p.gray = image.NewGray(image.Rect(0, 0, 100, 100))
	f.byGray[p.gray] = p
	f.byID[p.id] = p
	return p.gray
}

// item wraps a registered profile as a corpus item.
func (f *fakePrims) item(p *profile, path string, part dataset.Partition) dataset.Item {
	g := f.add(p)
	return dataset.Item{Path: path, Rel: path, Gray: g, Color: g, Partition: part}
}

// square returns a square contour anchored at the profile's offset.
func square(id int, side float64) vision.Contour {
	x := float64(id * 1000)
	return vision.Contour{{X: x, Y: 0}, {X: x + side, Y: 0}, {X: x + side, Y: side}, {X: x, Y: side}}
}

// setShape pins the Hu similarity and shape similarity a contour achieves
// against an all-ones query Hu vector, and its complexity.
func (f *fakePrims) setShape(c vision.Contour, huSim, shapeSim float64, complexity int) {
	var h [7]float64
	for i := range h {
		h[i] = 1
	}
	h[0] = math.Pow(10, math.Log(huSim))
	f.hu[c[0]] = h
	f.shapeDist[c[0]] = -math.Log(shapeSim)
	f.complexity[c[0]] = complexity
}

func keypoints(id, n int) []vision.KeyPoint {
	kps := make([]vision.KeyPoint, n)
	for i := range n {
		kps[i] = vision.KeyPoint{X: float64(id*1000 + (i%10)*10), Y: float64((i / 10) * 10)}
	}
	return kps
}

func (f *fakePrims) ColorHistogram(img image.Image, _ int) vision.Histogram {
	g, _ := img.(*image.Gray)
	if p, ok := f.byGray[g]; ok {
		return vision.Histogram{float64(p.id)}
	}
	return nil
}

func (f *fakePrims) HistogramCorrelation(_, b vision.Histogram) float64 {
	if len(b) == 0 {
		return 0
	}
	return f.byID[int(b[0])].color
}

func (f *fakePrims) TextRegionMask(*image.Gray) *image.Gray { return nil }

func (f *fakePrims) DetectAndDescribe(gray, _ *image.Gray, method vision.Method) ([]vision.KeyPoint, *vision.Descriptors) {
	f.detectCalls.Add(1)
	p, ok := f.byGray[gray]
	if !ok {
		return nil, nil
	}
	n := p.orb
	if method == vision.SIFT {
		n = p.sift
	}
	if n == 0 {
		return nil, nil
	}
	des := &vision.Descriptors{Method: method}
	for i := range n {
		if method == vision.ORB {
			des.Binary = append(des.Binary, []byte{byte(p.id), byte(i)})
		} else {
			des.Float = append(des.Float, []float32{float32(p.id), float32(i)})
		}
	}
	return keypoints(p.id, n), des
}

func (f *fakePrims) MatchNearestTwo(q, t *vision.Descriptors) []vision.MatchPair {
	if q.Len() == 0 || t.Len() == 0 {
		return nil
	}
	var p *profile
	good := 0
	if t.Method == vision.ORB {
		p = f.byID[int(t.Binary[0][0])]
		good = p.good
	} else {
		p = f.byID[int(t.Float[0][0])]
		good = p.siftGood
	}
	n := min(q.Len(), t.Len())
	pairs := make([]vision.MatchPair, n)
	for i := range n {
		best := 9.0
		if i < good {
			best = 1
		}
		pairs[i] = vision.MatchPair{
			Best:      vision.Match{QueryIdx: i, TrainIdx: i, Distance: best},
			Second:    vision.Match{QueryIdx: i, TrainIdx: (i + 1) % n, Distance: 10},
			HasSecond: true,
		}
	}
	return pairs
}

func (f *fakePrims) FitHomography(src, dst []utils.Point, _ float64) (vision.Homography, []bool, bool) {
	p := f.byID[int(dst[0].X)/1000]
	if p.inliers < 0 {
		return vision.Homography{}, nil, false
	}
	mask := make([]bool, len(src))
	for i := range min(p.inliers, len(mask)) {
		mask[i] = true
	}
	return vision.Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}, mask, true
}

func (f *fakePrims) ExtractEdges(gray *image.Gray, _, _ float64) *image.Gray {
	f.edgeCalls.Add(1)
	return gray
}

func (f *fakePrims) ExtractContours(edges *image.Gray) []vision.Contour {
	if p, ok := f.byGray[edges]; ok {
		return p.contours
	}
	return nil
}

func (f *fakePrims) ApproxVertexCount(c vision.Contour, eps float64) int {
	if v, ok := f.complexity[c[0]]; ok {
		return v
	}
	return f.Default.ApproxVertexCount(c, eps)
}

func (f *fakePrims) HuMoments(c vision.Contour) [7]float64 {
	if h, ok := f.hu[c[0]]; ok {
		return h
	}
	return [7]float64{1, 1, 1, 1, 1, 1, 1}
}

func (f *fakePrims) MatchShapes(_, b vision.Contour) float64 {
	return f.shapeDist[b[0]]
}

// recordingObserver counts lifecycle events.
type recordingObserver struct {
	started   atomic.Int32
	evaluated atomic.Int32
	finished  atomic.Int32
}

func (o *recordingObserver) QueryStarted(Route)                      { o.started.Add(1) }
func (o *recordingObserver) CandidateEvaluated(Route, Outcome)       { o.evaluated.Add(1) }
func (o *recordingObserver) QueryFinished(Route, int, time.Duration) { o.finished.Add(1) }
