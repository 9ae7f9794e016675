package model

import (
	"fmt"
)

// Clusterer partitions scaled feature vectors into cluster IDs 0..K()-1.
type Clusterer interface {
	Features() []string
	K() int
	Assign(m Matrix) ([]int, error)
}

// KMeans assigns each vector to its nearest centroid.
type KMeans struct {
	features  []string
	centroids [][]float64
}

// NewKMeans creates a nearest-centroid clusterer.
func NewKMeans(features []string, centroids [][]float64) (*KMeans, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("clusterer has no features")
	}
	if len(centroids) == 0 {
		return nil, fmt.Errorf("clusterer has no centroids")
	}
	k := &KMeans{
		features:  append([]string(nil), features...),
		centroids: make([][]float64, len(centroids)),
	}
	for i, c := range centroids {
		if len(c) != len(features) {
			return nil, fmt.Errorf("centroid %d has %d dimensions, expected %d", i, len(c), len(features))
		}
		k.centroids[i] = append([]float64(nil), c...)
	}
	return k, nil
}

// Features returns the fitted column order.
func (k *KMeans) Features() []string {
	return append([]string(nil), k.features...)
}

// K returns the number of clusters.
func (k *KMeans) K() int {
	return len(k.centroids)
}

// Assign returns the nearest centroid index per row by squared Euclidean
// distance. Equal distances resolve to the lower index.
func (k *KMeans) Assign(m Matrix) ([]int, error) {
	if err := checkColumns(m.Columns, k.features); err != nil {
		return nil, err
	}
	if err := checkRows(m); err != nil {
		return nil, err
	}

	out := make([]int, len(m.Rows))
	for i, row := range m.Rows {
		best, bestDist := 0, squaredDistance(row, k.centroids[0])
		for c := 1; c < len(k.centroids); c++ {
			if d := squaredDistance(row, k.centroids[c]); d < bestDist {
				best, bestDist = c, d
			}
		}
		out[i] = best
	}
	return out, nil
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
