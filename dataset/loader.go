package dataset

import (
	"context"
	"fmt"
	"math/rand"

	"golang.org/x/sync/errgroup"
)

// Source yields fixed-length windows by index. rng drives any random
// cropping; implementations must not retain it.
type Source interface {
	Len() int
	Item(i int, rng *rand.Rand) ([]float32, error)
}

// Files is a Source over WAV files, one randomly cropped window per file.
type Files struct {
	Paths      []string
	SampleRate int
	Window     int // samples
}

func (f *Files) Len() int { return len(f.Paths) }

func (f *Files) Item(i int, rng *rand.Rand) ([]float32, error) {
	s, err := ReadWAV(f.Paths[i], f.SampleRate)
	if err != nil {
		return nil, err
	}
	return Crop(s, f.Window, rng), nil
}

// Windows is a Source over windows already held in memory.
type Windows [][]float32

func (w Windows) Len() int { return len(w) }

func (w Windows) Item(i int, _ *rand.Rand) ([]float32, error) { return w[i], nil }

type Batch struct {
	Index []int
	Wave  [][]float32
}

// Loader walks a Source in order, batch by batch, decoding the items of
// one batch concurrently on at most workers goroutines.
type Loader struct {
	src       Source
	batchSize int
	workers   int
	rng       *rand.Rand
}

func NewLoader(src Source, batchSize, workers int, seed int64) *Loader {
	if batchSize < 1 {
		batchSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Loader{src: src, batchSize: batchSize, workers: workers, rng: rand.New(rand.NewSource(seed))}
}

func (l *Loader) Len() int { return l.src.Len() }

func (l *Loader) NumBatches() int { return (l.src.Len() + l.batchSize - 1) / l.batchSize }

// Each calls fn for every batch in index order. Random crops differ between
// passes but are reproducible for a given seed.
func (l *Loader) Each(ctx context.Context, fn func(Batch) error) error {
	n := l.src.Len()
	for start := 0; start < n; start += l.batchSize {
		end := start + l.batchSize
		if end > n {
			end = n
		}
		b := Batch{Index: make([]int, end-start), Wave: make([][]float32, end-start)}
		// seeds are drawn up front so results do not depend on scheduling
		seeds := make([]int64, end-start)
		for j := range seeds {
			seeds[j] = l.rng.Int63()
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(l.workers)
		for j := range b.Wave {
			j := j
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				w, err := l.src.Item(start+j, rand.New(rand.NewSource(seeds[j])))
				if err != nil {
					return fmt.Errorf("item %d: %w", start+j, err)
				}
				b.Index[j] = start + j
				b.Wave[j] = w
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
	}
	return nil
}
