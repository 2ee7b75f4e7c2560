package vision

import (
	"image"

	"github.com/MeKo-Tech/sif/internal/utils"
)

// 8-neighbourhood in clockwise order (image coordinates): E, SE, S, SW, W, NW, N, NE.
var (
	ndx = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	ndy = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
)

const dirWest = 4

// componentBox is the axis-aligned extent of a labelled component.
type componentBox struct {
	minX, minY, maxX, maxY int
	startX, startY         int
	count                  int
}

// ExternalContours labels 8-connected components of non-zero pixels,
// traces the outer boundary of each with Moore-neighbour tracing and drops
// boundaries nested inside another one. Contours are returned in raster
// order of their first pixel.
func ExternalContours(edges *image.Gray) []Contour {
	b := edges.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	labels, comps := labelComponents(edges, w, h)
	contours := make([]Contour, 0, len(comps))
	boxes := make([]componentBox, 0, len(comps))
	for i, c := range comps {
		pts := traceBoundary(labels, w, h, int32(i+1), c)
		if len(pts) == 0 {
			continue
		}
		contours = append(contours, pts)
		boxes = append(boxes, c)
	}
	return dropNested(contours, boxes)
}

// labelComponents assigns 8-connected labels starting at 1.
func labelComponents(edges *image.Gray, w, h int) ([]int32, []componentBox) {
	labels := make([]int32, w*h)
	var comps []componentBox
	queue := make([]int, 0, 256)
	next := int32(1)

	on := func(x, y int) bool {
		return edges.Pix[y*edges.Stride+x] != 0
	}

	for y := range h {
		for x := range w {
			idx := y*w + x
			if !on(x, y) || labels[idx] != 0 {
				continue
			}
			st := componentBox{minX: x, minY: y, maxX: x, maxY: y, startX: x, startY: y}
			labels[idx] = next
			queue = append(queue[:0], idx)
			for len(queue) > 0 {
				ci := queue[0]
				queue = queue[1:]
				cx, cy := ci%w, ci/w
				st.count++
				st.minX, st.maxX = min(st.minX, cx), max(st.maxX, cx)
				st.minY, st.maxY = min(st.minY, cy), max(st.maxY, cy)
				for k := range 8 {
					nx, ny := cx+ndx[k], cy+ndy[k]
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					ni := ny*w + nx
					if labels[ni] == 0 && on(nx, ny) {
						labels[ni] = next
						queue = append(queue, ni)
					}
				}
			}
			comps = append(comps, st)
			next++
		}
	}
	return labels, comps
}

// traceBoundary walks the outer boundary of one component clockwise,
// starting from its first pixel in raster order. Tracing stops when the
// start pixel is about to be left through the same move as the first step.
func traceBoundary(labels []int32, w, h int, label int32, c componentBox) Contour {
	isLabel := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && labels[y*w+x] == label
	}

	sx, sy := c.startX, c.startY
	pts := Contour{{X: float64(sx), Y: float64(sy)}}
	cx, cy := sx, sy
	back := dirWest
	firstX, firstY := -1, -1
	maxSteps := 4*c.count + 8

	for range maxSteps {
		nx, ny, dir, ok := nextBoundaryPixel(isLabel, cx, cy, back)
		if !ok {
			return pts
		}
		if cx == sx && cy == sy {
			if firstX < 0 {
				firstX, firstY = nx, ny
			} else if nx == firstX && ny == firstY {
				break
			}
		}
		cx, cy = nx, ny
		back = (dir + 4) % 8
		pts = append(pts, utils.Point{X: float64(cx), Y: float64(cy)})
	}

	if n := len(pts); n >= 2 && pts[0] == pts[n-1] {
		pts = pts[:n-1]
	}
	return pts
}

// nextBoundaryPixel scans the Moore neighbourhood clockwise, starting just
// after the direction pointing back to the previous pixel.
func nextBoundaryPixel(isLabel func(x, y int) bool, cx, cy, back int) (int, int, int, bool) {
	for k := 1; k <= 8; k++ {
		d := (back + k) % 8
		tx, ty := cx+ndx[d], cy+ndy[d]
		if isLabel(tx, ty) {
			return tx, ty, d, true
		}
	}
	return 0, 0, 0, false
}

// dropNested removes contours whose start point lies inside a larger
// contour's polygon.
func dropNested(contours []Contour, boxes []componentBox) []Contour {
	if len(contours) < 2 {
		return contours
	}
	areas := make([]float64, len(contours))
	for i, c := range contours {
		areas[i] = utils.PolygonArea(c)
	}
	out := contours[:0:0]
	for i, c := range contours {
		nested := false
		for j := range contours {
			if i == j || areas[j] <= areas[i] || !boxContains(boxes[j], boxes[i]) {
				continue
			}
			if pointInPolygon(c[0], contours[j]) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, c)
		}
	}
	return out
}

func boxContains(outer, inner componentBox) bool {
	return inner.minX >= outer.minX && inner.maxX <= outer.maxX &&
		inner.minY >= outer.minY && inner.maxY <= outer.maxY
}

// pointInPolygon is the even-odd ray casting test.
func pointInPolygon(p utils.Point, poly []utils.Point) bool {
	inside := false
	n := len(poly)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			xCross := a.X + (p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if p.X < xCross {
				inside = !inside
			}
		}
	}
	return inside
}
