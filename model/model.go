// Package model loads trained classifier weights and runs forward passes.
package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/maastricht-university/audioclf-eval/clients"
	cfg "github.com/maastricht-university/audioclf-eval/config"
)

// Net scores a batch of equally sized waveforms and returns one row of class
// scores per input.
type Net interface {
	Predict(ctx context.Context, waves [][]float32) ([][]float32, error)
	Close() error
}

var ErrModelNotFound = errors.New("model file not found")

// Open builds the Net selected by c.Model.Backend.
func Open(ctx context.Context, c *cfg.Root) (Net, error) {
	var (
		net Net
		err error
	)
	switch c.Model.Backend {
	case cfg.BackendONNX:
		if _, serr := os.Stat(c.Model.Path); serr != nil {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, c.Model.Path)
		}
		net, err = NewONNX(ONNXConfig{
			ModelPath:  c.Model.Path,
			InputName:  c.Model.InputName,
			OutputName: c.Model.OutputName,
			Library:    c.Model.ORTLibrary,
		})
	case cfg.BackendHTTP:
		net, err = NewRemote(ctx, c.Model.URL, clients.NewHTTP(cfg.DurSeconds(c.Model.Timeout)))
	default:
		return nil, fmt.Errorf("unknown model backend %q", c.Model.Backend)
	}
	if err != nil {
		return nil, err
	}
	if c.Inference.ApplySoftmax {
		net = WithSoftmax(net)
	}
	return net, nil
}

// Softmax normalizes each row in place into probabilities.
func Softmax(rows [][]float32) {
	for _, r := range rows {
		if len(r) == 0 {
			continue
		}
		m := r[0]
		for _, v := range r[1:] {
			if v > m {
				m = v
			}
		}
		var sum float64
		for i, v := range r {
			e := math.Exp(float64(v - m))
			r[i] = float32(e)
			sum += e
		}
		for i := range r {
			r[i] = float32(float64(r[i]) / sum)
		}
	}
}

type softmaxNet struct{ Net }

// WithSoftmax wraps n so its outputs are probabilities instead of logits.
func WithSoftmax(n Net) Net { return softmaxNet{n} }

func (s softmaxNet) Predict(ctx context.Context, waves [][]float32) ([][]float32, error) {
	out, err := s.Net.Predict(ctx, waves)
	if err != nil {
		return nil, err
	}
	Softmax(out)
	return out, nil
}
