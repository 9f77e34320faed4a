// Package inference scores test recordings with a Net and averages repeated
// or overlapping window predictions per recording.
package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"gonum.org/v1/gonum/floats"

	"github.com/maastricht-university/audioclf-eval/dataset"
	"github.com/maastricht-university/audioclf-eval/model"
)

var ErrNaNOutput = errors.New("model output contains NaN")

// Result holds the final per-file predictions along with the averaged class
// scores they were taken from.
type Result struct {
	Pred []int       // argmax of Avg, one per file
	Avg  [][]float64 // files x classes
}

// Options tunes progress reporting. A nil Progress discards it.
type Options struct {
	Progress io.Writer
}

func (o Options) progress() *mpb.Progress {
	w := o.Progress
	if w == nil {
		w = io.Discard
	}
	return mpb.New(mpb.WithWidth(64), mpb.WithOutput(w))
}

func addBar(p *mpb.Progress, name string, total int) *mpb.Bar {
	return p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(name),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.EwmaETA(decor.ET_STYLE_GO, 60),
		),
	)
}

// score runs every batch of l through net and returns rows in index order.
func score(ctx context.Context, net model.Net, l *dataset.Loader, bar *mpb.Bar) ([][]float32, error) {
	out := make([][]float32, l.Len())
	err := l.Each(ctx, func(b dataset.Batch) error {
		rows, err := net.Predict(ctx, b.Wave)
		if err != nil {
			return err
		}
		if len(rows) != len(b.Wave) {
			return fmt.Errorf("model returned %d rows for %d windows", len(rows), len(b.Wave))
		}
		for j, r := range rows {
			if hasNaN(r) {
				return fmt.Errorf("%w (window %d)", ErrNaNOutput, b.Index[j])
			}
			out[b.Index[j]] = r
		}
		if bar != nil {
			bar.Increment()
		}
		return nil
	})
	return out, err
}

func hasNaN(r []float32) bool {
	for _, v := range r {
		if math.IsNaN(float64(v)) {
			return true
		}
	}
	return false
}

// mean averages equally shaped rows element-wise.
func mean(rows [][]float32) ([]float64, error) {
	if len(rows) == 0 {
		return nil, dataset.ErrNoWindows
	}
	acc := make([]float64, len(rows[0]))
	tmp := make([]float64, len(rows[0]))
	for i, r := range rows {
		if len(r) != len(acc) {
			return nil, fmt.Errorf("row %d has %d classes, want %d", i, len(r), len(acc))
		}
		for j, v := range r {
			tmp[j] = float64(v)
		}
		floats.Add(acc, tmp)
	}
	floats.Scale(1/float64(len(rows)), acc)
	return acc, nil
}

func argmax(v []float64) int {
	if len(v) == 0 {
		return -1
	}
	return floats.MaxIdx(v)
}
