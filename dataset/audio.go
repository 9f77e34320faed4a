package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/go-audio/wav"
	resampling "github.com/tphakala/go-audio-resampling"
)

// ReadWAV decodes a PCM WAV file into mono float32 samples in [-1, 1] at
// sampleRate Hz. Multi-channel audio is averaged down to one channel.
func ReadWAV(path string, sampleRate int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s: not a valid WAV file", path)
	}

	var divisor float64
	switch dec.BitDepth {
	case 8:
		divisor = 128.0
	case 16:
		divisor = 32768.0
	case 24:
		divisor = 8388608.0
	case 32:
		divisor = 2147483648.0
	default:
		return nil, fmt.Errorf("%s: unsupported bit depth %d", path, dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%s: decode: %w", path, err)
	}
	chans := int(dec.NumChans)
	if chans < 1 {
		chans = 1
	}

	mono := make([]float64, len(buf.Data)/chans)
	for i := range mono {
		sum := 0
		for c := 0; c < chans; c++ {
			sum += buf.Data[i*chans+c]
		}
		v := float64(sum) / float64(chans)
		if dec.BitDepth == 8 {
			// 8-bit WAV is unsigned
			v -= 128
		}
		mono[i] = v / divisor
	}

	if src := int(dec.SampleRate); src != sampleRate && len(mono) > 0 {
		mono, err = resample(mono, src, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	out := make([]float32, len(mono))
	for i, v := range mono {
		out[i] = float32(v)
	}
	return out, nil
}

func resample(in []float64, from, to int) ([]float64, error) {
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}
	out, err := rs.Process(in)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}
	tail, err := rs.Flush()
	if err != nil {
		return nil, fmt.Errorf("resample flush: %w", err)
	}
	out = append(out, tail...)
	// output is cut or zero padded to the nominal length
	want := int(math.Round(float64(len(in)) * float64(to) / float64(from)))
	if len(out) > want {
		return out[:want], nil
	}
	return append(out, make([]float64, want-len(out))...), nil
}

// ErrNoWindows is returned when a recording yields no window to score.
var ErrNoWindows = errors.New("no windows")

// Crop returns exactly n samples. Longer input is cut at a random offset drawn
// from rng, shorter input is zero padded at the end.
func Crop(samples []float32, n int, rng *rand.Rand) []float32 {
	out := make([]float32, n)
	if len(samples) <= n {
		copy(out, samples)
		return out
	}
	off := 0
	if rng != nil {
		off = rng.Intn(len(samples) - n + 1)
	}
	copy(out, samples[off:off+n])
	return out
}

// Segment splits a recording into windows of n samples every hop samples.
// A trailing partial window is kept, zero padded, when it holds at least
// half a window.
func Segment(samples []float32, n, hop int) [][]float32 {
	if n <= 0 || len(samples) == 0 {
		return nil
	}
	if hop <= 0 {
		hop = n
	}
	if len(samples) <= n {
		return [][]float32{Crop(samples, n, nil)}
	}
	var out [][]float32
	t0 := 0
	for ; t0+n <= len(samples); t0 += hop {
		w := make([]float32, n)
		copy(w, samples[t0:t0+n])
		out = append(out, w)
	}
	if t0 < len(samples) && len(samples)-t0 >= n/2 {
		out = append(out, Crop(samples[t0:], n, nil))
	}
	return out
}
