package hmm

import (
	"math"
	"math/rand"
)

const (
	kmeansRestarts = 10
	kmeansMaxIter  = 300
	kmeansTol      = 1e-4
)

// KMeans clusters x into k centers with k-means++ seeding, keeping the
// lowest-inertia result over several restarts. The same seed always yields
// the same centers.
func KMeans(x [][]float64, k int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	var best [][]float64
	bestInertia := math.Inf(1)
	for r := 0; r < kmeansRestarts; r++ {
		centers, inertia := lloyd(x, seedCenters(x, k, rng))
		if inertia < bestInertia {
			best, bestInertia = centers, inertia
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	d := 0.0
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return d
}

func seedCenters(x [][]float64, k int, rng *rand.Rand) [][]float64 {
	centers := make([][]float64, 0, k)
	centers = append(centers, clone(x[rng.Intn(len(x))]))

	dist := make([]float64, len(x))
	for i, p := range x {
		dist[i] = sqDist(p, centers[0])
	}
	for len(centers) < k {
		total := 0.0
		for _, d := range dist {
			total += d
		}
		next := 0
		if total > 0 {
			target := rng.Float64() * total
			acc := 0.0
			for i, d := range dist {
				acc += d
				if acc >= target {
					next = i
					break
				}
			}
		} else {
			next = rng.Intn(len(x))
		}
		c := clone(x[next])
		centers = append(centers, c)
		for i, p := range x {
			if d := sqDist(p, c); d < dist[i] {
				dist[i] = d
			}
		}
	}
	return centers
}

func lloyd(x [][]float64, centers [][]float64) ([][]float64, float64) {
	k, dim := len(centers), len(centers[0])
	assign := make([]int, len(x))
	inertia := 0.0
	for iter := 0; iter < kmeansMaxIter; iter++ {
		inertia = 0
		for i, p := range x {
			best, bestD := 0, math.Inf(1)
			for c := range centers {
				if d := sqDist(p, centers[c]); d < bestD {
					best, bestD = c, d
				}
			}
			assign[i] = best
			inertia += bestD
		}

		sums := newMatrix(k, dim)
		counts := make([]int, k)
		for i, p := range x {
			c := assign[i]
			counts[c]++
			for d := range p {
				sums[c][d] += p[d]
			}
		}

		shift := 0.0
		for c := range centers {
			if counts[c] == 0 {
				// empty cluster takes the point farthest from its center
				far, farD := 0, -1.0
				for i, p := range x {
					if d := sqDist(p, centers[assign[i]]); d > farD {
						far, farD = i, d
					}
				}
				shift += sqDist(centers[c], x[far])
				centers[c] = clone(x[far])
				continue
			}
			next := make([]float64, dim)
			for d := range next {
				next[d] = sums[c][d] / float64(counts[c])
			}
			shift += sqDist(centers[c], next)
			centers[c] = next
		}
		if shift <= kmeansTol*kmeansTol {
			break
		}
	}
	return centers, inertia
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
