package inference

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maastricht-university/audioclf-eval/dataset"
)

// meanNet scores class 0 with the window's first sample and class 1 with
// one minus it.
type meanNet struct {
	mu    sync.Mutex
	calls int
}

func (m *meanNet) Predict(_ context.Context, waves [][]float32) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	out := make([][]float32, len(waves))
	for i, w := range waves {
		out[i] = []float32{w[0], 1 - w[0]}
	}
	return out, nil
}

func (m *meanNet) Close() error { return nil }

type nanNet struct{}

func (nanNet) Predict(_ context.Context, waves [][]float32) ([][]float32, error) {
	out := make([][]float32, len(waves))
	for i := range out {
		out[i] = []float32{0, float32(math.NaN())}
	}
	return out, nil
}

func (nanNet) Close() error { return nil }

// randomSource returns windows whose first sample is 0 or 1 at random.
type randomSource int

func (r randomSource) Len() int { return int(r) }

func (randomSource) Item(_ int, rng *rand.Rand) ([]float32, error) {
	return []float32{float32(rng.Intn(2))}, nil
}

func TestKRandomAveragesRounds(t *testing.T) {
	net := &meanNet{}
	l := dataset.NewLoader(randomSource(5), 2, 2, 7)

	res, err := KRandom(context.Background(), net, l, 4, Options{})
	require.NoError(t, err)

	require.Len(t, res.Rounds, 4)
	require.Len(t, res.Avg, 5)
	require.Len(t, res.Pred, 5)
	assert.Equal(t, 4*3, net.calls)

	for i := 0; i < 5; i++ {
		var sum float64
		for r := 0; r < 4; r++ {
			sum += float64(res.Rounds[r][i][0])
		}
		assert.InDelta(t, sum/4, res.Avg[i][0], 1e-9)
		assert.InDelta(t, 1.0, res.Avg[i][0]+res.Avg[i][1], 1e-9)
		if res.Avg[i][0] > res.Avg[i][1] {
			assert.Equal(t, 0, res.Pred[i])
		} else if res.Avg[i][0] < res.Avg[i][1] {
			assert.Equal(t, 1, res.Pred[i])
		}
	}
}

func TestKRandomReproducible(t *testing.T) {
	run := func() []int {
		res, err := KRandom(context.Background(), &meanNet{}, dataset.NewLoader(randomSource(20), 4, 3, 11), 3, Options{})
		require.NoError(t, err)
		return res.Pred
	}
	assert.Equal(t, run(), run())
}

func TestKRandomNaN(t *testing.T) {
	_, err := KRandom(context.Background(), nanNet{}, dataset.NewLoader(randomSource(3), 2, 1, 0), 2, Options{})
	require.ErrorIs(t, err, ErrNaNOutput)
}

func TestKRandomRejectsZeroK(t *testing.T) {
	_, err := KRandom(context.Background(), &meanNet{}, dataset.NewLoader(randomSource(1), 1, 1, 0), 0, Options{})
	require.Error(t, err)
}

func TestAllAveragesWindows(t *testing.T) {
	files := []dataset.Windows{
		{{1}, {1}, {0}}, // mean 2/3 -> class 0
		{{0}, {0}, {1}}, // mean 1/3 -> class 1
		{{0.5}, {0.75}}, // mean 0.625 -> class 0
	}
	windows := func(_ context.Context, i int) (dataset.Source, error) { return files[i], nil }
	newLoader := func(s dataset.Source) *dataset.Loader { return dataset.NewLoader(s, 2, 2, 0) }

	res, err := All(context.Background(), &meanNet{}, len(files), windows, newLoader, Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 0}, res.Pred)
	assert.InDelta(t, 2.0/3, res.Avg[0][0], 1e-6)
	assert.InDelta(t, 0.625, res.Avg[2][0], 1e-6)
	assert.Len(t, res.PerFile[0], 3)
	assert.Len(t, res.PerFile[2], 2)
}

func TestAllNoWindows(t *testing.T) {
	windows := func(_ context.Context, i int) (dataset.Source, error) { return dataset.Windows{}, nil }
	newLoader := func(s dataset.Source) *dataset.Loader { return dataset.NewLoader(s, 1, 1, 0) }
	_, err := All(context.Background(), &meanNet{}, 1, windows, newLoader, Options{})
	require.ErrorIs(t, err, dataset.ErrNoWindows)
}

func TestAllNaN(t *testing.T) {
	windows := func(_ context.Context, i int) (dataset.Source, error) { return dataset.Windows{{1}}, nil }
	newLoader := func(s dataset.Source) *dataset.Loader { return dataset.NewLoader(s, 1, 1, 0) }
	_, err := All(context.Background(), nanNet{}, 2, windows, newLoader, Options{})
	require.ErrorIs(t, err, ErrNaNOutput)
}

func writeWAV(t *testing.T, path string, data []int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	enc := wav.NewEncoder(f, 8000, 16, 1, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{Data: data, Format: &audio.Format{SampleRate: 8000, NumChannels: 1}, SourceBitDepth: 16}))
	require.NoError(t, enc.Close())
}

func TestSnippetWindows(t *testing.T) {
	dir := t.TempDir()
	snipDir := filepath.Join(dir, "snips")
	require.NoError(t, os.MkdirAll(snipDir, 0o755))

	long := filepath.Join(dir, "a.wav")
	writeWAV(t, long, make([]int, 100))
	writeWAV(t, filepath.Join(snipDir, "a_0.wav"), make([]int, 40))
	writeWAV(t, filepath.Join(snipDir, "a_1.wav"), make([]int, 40))
	other := filepath.Join(dir, "b.wav")
	writeWAV(t, other, make([]int, 100))

	fn := SnippetWindows([]string{long, other}, snipDir, 8000, 40, 40)

	src, err := fn(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Len())

	// no snippets for b: the recording itself is segmented, 40+40+20
	src, err = fn(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, src.Len())
}
