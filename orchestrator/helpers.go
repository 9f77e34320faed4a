package orchestrator

import (
	"fmt"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/mat"
)

func (p *Pipeline) out(name string) string { return filepath.Join(p.cfg.Paths.Outputs, name) }

func predictionsName(dset, mode string) string { return fmt.Sprintf("%s_predictions_%s.csv", dset, mode) }
func probsName(dset, mode string) string { return fmt.Sprintf("%s_probs_%s.npy", dset, mode) }
func cmName(dset, tag string) string { return fmt.Sprintf("%s_cm%s.npy", dset, tag) }
func plotName(dset string) string { return fmt.Sprintf("%s_conf_matrix_best_model.png", dset) }
func evaluationName(dset, tag string) string { return fmt.Sprintf("%s_evaluation%s.csv", dset, tag) }
func summaryName(dset, tag string) string { return fmt.Sprintf("%s_summary%s.json", dset, tag) }

// topConfusions returns the k largest off-diagonal cells of cm.
func topConfusions(cm *mat.Dense, labels []int, k int) []Confusion {
	r, c := cm.Dims()
	var out []Confusion
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if i == j {
				continue
			}
			if v := int(cm.At(i, j)); v > 0 {
				out = append(out, Confusion{True: labels[i], Pred: labels[j], Count: v})
			}
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Count > out[b].Count })
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func misclassified(yTrue, yPred []int) int {
	n := 0
	for i := range yTrue {
		if yTrue[i] != yPred[i] {
			n++
		}
	}
	return n
}
