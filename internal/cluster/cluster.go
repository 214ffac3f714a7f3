// Package cluster groups segments into a fixed number of speakers.
//
// Assign runs bottom-up agglomerative clustering with average linkage over
// Euclidean distance and stops when exactly k clusters remain. Merges are
// deterministic: among equally close pairs the one with the lowest indices
// wins, so the same input always yields the same labels.
package cluster

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	derrors "diarizer/internal/errors"
	"diarizer/internal/features"
)

// DefaultSpeakers is the speaker count used when the caller does not request one
const DefaultSpeakers = 2

const stage = "cluster"

// ValidateK checks that n points can be split into k clusters
func ValidateK(n, k int) error {
	if k <= 0 {
		e := derrors.New(derrors.KindClusterConfig, stage, "speaker count must be positive")
		e.Speakers = k
		return e
	}
	if n < k {
		e := derrors.New(derrors.KindClusterConfig, stage,
			fmt.Sprintf("cannot split %d segments into %d speakers", n, k))
		e.Speakers = k
		return e
	}
	return nil
}

// Assign returns one label in [0, k) per point, in input order. Labels are
// numbered by first appearance, so points[0] always gets label 0.
func Assign(points [][]float64, k int) ([]int, error) {
	if err := ValidateK(len(points), k); err != nil {
		return nil, err
	}
	dims := len(points[0])
	for i, p := range points {
		if len(p) != dims {
			return nil, derrors.New(derrors.KindClusterConfig, stage,
				fmt.Sprintf("point %d has %d dimensions, expected %d", i, len(p), dims))
		}
	}

	n := len(points)
	dist := distanceMatrix(points)

	// members[c] lists the points of cluster c; a nil entry is a cluster
	// absorbed by a merge
	members := make([][]int, n)
	for i := range members {
		members[i] = []int{i}
	}

	for active := n; active > k; active-- {
		a, b := closestPair(dist, members)

		na, nb := float64(len(members[a])), float64(len(members[b]))
		for c := range members {
			if members[c] == nil || c == a || c == b {
				continue
			}
			d := (na*dist[a][c] + nb*dist[b][c]) / (na + nb)
			dist[a][c] = d
			dist[c][a] = d
		}
		members[a] = append(members[a], members[b]...)
		members[b] = nil
	}

	return labelsByFirstAppearance(members, n), nil
}

// AssignVectors clusters feature vectors on their clustering view
func AssignVectors(vs []features.FeatureVector, k int) ([]int, error) {
	if err := ValidateK(len(vs), k); err != nil {
		return nil, err
	}
	return Assign(features.ClusteringMatrix(vs), k)
}

func distanceMatrix(points [][]float64) [][]float64 {
	n := len(points)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := floats.Distance(points[i], points[j], 2)
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

// closestPair returns the live clusters a < b with the smallest linkage
// distance. Scanning in index order with a strict comparison keeps the
// lowest pair on ties.
func closestPair(dist [][]float64, members [][]int) (int, int) {
	best := math.Inf(1)
	a, b := -1, -1
	for i := range members {
		if members[i] == nil {
			continue
		}
		for j := i + 1; j < len(members); j++ {
			if members[j] == nil {
				continue
			}
			if dist[i][j] < best || a < 0 {
				best = dist[i][j]
				a, b = i, j
			}
		}
	}
	return a, b
}

func labelsByFirstAppearance(members [][]int, n int) []int {
	clusterOf := make([]int, n)
	for c, pts := range members {
		for _, p := range pts {
			clusterOf[p] = c
		}
	}

	labels := make([]int, n)
	remap := make(map[int]int)
	for i, c := range clusterOf {
		label, ok := remap[c]
		if !ok {
			label = len(remap)
			remap[c] = label
		}
		labels[i] = label
	}
	return labels
}
