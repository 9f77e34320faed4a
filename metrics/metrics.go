// Package metrics computes confusion matrices and per-class classification
// reports for integer class labels.
package metrics

import (
	"fmt"
	"os"
	"sort"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// Labels returns the sorted union of the labels seen in yTrue and yPred.
func Labels(yTrue, yPred []int) []int {
	seen := map[int]struct{}{}
	for _, v := range yTrue {
		seen[v] = struct{}{}
	}
	for _, v := range yPred {
		seen[v] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// ConfusionMatrix counts yTrue (rows) against yPred (columns) over labels.
// Pairs whose label is not in labels are ignored.
func ConfusionMatrix(yTrue, yPred, labels []int) (*mat.Dense, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("confusion matrix: %d true vs %d predicted labels", len(yTrue), len(yPred))
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("confusion matrix: no labels")
	}
	idx := make(map[int]int, len(labels))
	for i, l := range labels {
		idx[l] = i
	}
	cm := mat.NewDense(len(labels), len(labels), nil)
	for i := range yTrue {
		r, ok1 := idx[yTrue[i]]
		c, ok2 := idx[yPred[i]]
		if !ok1 || !ok2 {
			continue
		}
		cm.Set(r, c, cm.At(r, c)+1)
	}
	return cm, nil
}

// ClassAccuracy returns correct / support for every class 0..n-1. A class
// with no true samples scores 0. Labels outside the range are ignored.
func ClassAccuracy(yTrue, yPred []int, n int) []float64 {
	acc := make([]float64, n)
	support := make([]float64, n)
	for i, t := range yTrue {
		if t < 0 || t >= n {
			continue
		}
		support[t]++
		if i < len(yPred) && yPred[i] == t {
			acc[t]++
		}
	}
	for c := range acc {
		if support[c] > 0 {
			acc[c] /= support[c]
		}
	}
	return acc
}

// SaveNPY writes m to path in NumPy .npy format.
func SaveNPY(path string, m mat.Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := npyio.Write(f, m); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Dense stacks equally long rows into a matrix.
func Dense(rows [][]float64) *mat.Dense {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil
	}
	m := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, r := range rows {
		m.SetRow(i, r)
	}
	return m
}
