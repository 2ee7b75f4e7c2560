package vision

import (
	"math"
	"math/bits"
)

// MatchNearestTwo finds, for every query descriptor, its nearest and
// second-nearest train descriptors by brute force. Binary descriptors use
// Hamming distance, float descriptors Euclidean distance. Descriptor sets
// of different methods, or an empty train set, produce no pairs.
func MatchNearestTwo(query, train *Descriptors) []MatchPair {
	if query.Len() == 0 || train.Len() == 0 || query.Method != train.Method {
		return nil
	}

	dist := func(qi, ti int) float64 {
		if query.Method == ORB {
			return float64(hamming(query.Binary[qi], train.Binary[ti]))
		}
		return euclidean(query.Float[qi], train.Float[ti])
	}

	n, m := query.Len(), train.Len()
	pairs := make([]MatchPair, 0, n)
	for qi := range n {
		best, second := math.Inf(1), math.Inf(1)
		bestIdx, secondIdx := -1, -1
		for ti := range m {
			d := dist(qi, ti)
			switch {
			case d < best:
				second, secondIdx = best, bestIdx
				best, bestIdx = d, ti
			case d < second:
				second, secondIdx = d, ti
			}
		}
		p := MatchPair{Best: Match{QueryIdx: qi, TrainIdx: bestIdx, Distance: best}}
		if secondIdx >= 0 {
			p.Second = Match{QueryIdx: qi, TrainIdx: secondIdx, Distance: second}
			p.HasSecond = true
		}
		pairs = append(pairs, p)
	}
	return pairs
}

func hamming(a, b []byte) int {
	n := min(len(a), len(b))
	d := 0
	for i := range n {
		d += bits.OnesCount8(a[i] ^ b[i])
	}
	return d
}

func euclidean(a, b []float32) float64 {
	n := min(len(a), len(b))
	var s float64
	for i := range n {
		diff := float64(a[i]) - float64(b[i])
		s += diff * diff
	}
	return math.Sqrt(s)
}
