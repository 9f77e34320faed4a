package inference

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/maastricht-university/audioclf-eval/dataset"
	"github.com/maastricht-university/audioclf-eval/model"
)

// WindowsFunc returns the windows to score for the i-th test file.
type WindowsFunc func(ctx context.Context, i int) (dataset.Source, error)

// AllResult adds the individual outputs per file, files x windows x classes.
type AllResult struct {
	Result
	PerFile [][][]float32
}

// All scores every window of every test file and predicts the argmax of the
// per-file mean. newLoader wraps each file's windows into a Loader.
func All(ctx context.Context, net model.Net, files int, windows WindowsFunc, newLoader func(dataset.Source) *dataset.Loader, opt Options) (*AllResult, error) {
	p := opt.progress()
	bar := addBar(p, "files ", files)
	defer p.Wait()

	res := &AllResult{
		Result:  Result{Pred: make([]int, files), Avg: make([][]float64, files)},
		PerFile: make([][][]float32, files),
	}
	for i := 0; i < files; i++ {
		src, err := windows(ctx, i)
		if err != nil {
			bar.Abort(false)
			return nil, fmt.Errorf("file %d: %w", i, err)
		}
		if src.Len() == 0 {
			bar.Abort(false)
			return nil, fmt.Errorf("file %d: %w", i, dataset.ErrNoWindows)
		}
		rows, err := score(ctx, net, newLoader(src), nil)
		if err != nil {
			bar.Abort(false)
			return nil, fmt.Errorf("file %d: %w", i, err)
		}
		avg, err := mean(rows)
		if err != nil {
			bar.Abort(false)
			return nil, fmt.Errorf("file %d: %w", i, err)
		}
		res.PerFile[i] = rows
		res.Avg[i] = avg
		res.Pred[i] = argmax(avg)
		log.WithFields(log.Fields{"file": i, "windows": len(rows), "pred": res.Pred[i]}).Debug("scored")
		bar.Increment()
	}
	bar.SetTotal(-1, true)
	return res, nil
}

// SnippetWindows resolves windows for a test file: its preprocessed
// <name>_*.wav snippets under snippetDir when present, otherwise the file
// itself cut into consecutive windows.
func SnippetWindows(paths []string, snippetDir string, sampleRate, window, hop int) WindowsFunc {
	return func(_ context.Context, i int) (dataset.Source, error) {
		if snippetDir != "" {
			snips, err := dataset.SnippetPaths(snippetDir, paths[i])
			if err != nil {
				return nil, err
			}
			if len(snips) > 0 {
				return &dataset.Files{Paths: snips, SampleRate: sampleRate, Window: window}, nil
			}
		}
		s, err := dataset.ReadWAV(paths[i], sampleRate)
		if err != nil {
			return nil, err
		}
		return dataset.Windows(dataset.Segment(s, window, hop)), nil
	}
}
