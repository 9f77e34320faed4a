package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	cfg "github.com/maastricht-university/audioclf-eval/config"
	"github.com/maastricht-university/audioclf-eval/dataset"
	"github.com/maastricht-university/audioclf-eval/figure"
	"github.com/maastricht-university/audioclf-eval/inference"
	"github.com/maastricht-university/audioclf-eval/metrics"
	"github.com/maastricht-university/audioclf-eval/model"
)

// OpenFunc builds the network a pipeline scores with.
type OpenFunc func(ctx context.Context, c *cfg.Root) (model.Net, error)

type Pipeline struct {
	cfg      *cfg.Root
	open     OpenFunc
	progress io.Writer
	now      func() time.Time
}

type Option func(*Pipeline)

// WithNet replaces the config-driven model factory.
func WithNet(open OpenFunc) Option { return func(p *Pipeline) { p.open = open } }

// WithProgress sends progress bars to w; they are discarded by default.
func WithProgress(w io.Writer) Option { return func(p *Pipeline) { p.progress = w } }

func NewPipeline(c *cfg.Root, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: c, open: model.Open, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run scores the test set and analyses the predictions it wrote.
func (p *Pipeline) Run(ctx context.Context) (*InferOutput, *Analysis, error) {
	inf, err := p.Infer(ctx)
	if err != nil {
		return nil, nil, err
	}
	an, err := p.ErrorAnalysis(predictionsName(p.cfg.Eval.Dset, inf.Mode), p.cfg.Eval.Tag)
	if err != nil {
		return inf, nil, err
	}
	return inf, an, nil
}

// Infer loads the metadata and the model, runs the configured inference mode
// and writes the predictions table and averaged class scores.
func (p *Pipeline) Infer(ctx context.Context) (*InferOutput, error) {
	c := p.cfg
	if c.Paths.Metadata == "" {
		return nil, fmt.Errorf("paths.metadata is required for inference")
	}
	meta, err := dataset.LoadMetadata(c.Paths.Metadata)
	if err != nil {
		return nil, err
	}
	paths := dataset.Resolve(c.Paths.Data, meta.Paths())
	if len(paths) != meta.Len() {
		return nil, fmt.Errorf("%s: missing %q column", c.Paths.Metadata, dataset.ColPath)
	}

	net, err := p.open(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer net.Close()

	fields := log.Fields{"mode": c.Inference.Mode, "files": len(paths), "batch_size": c.Loader.BatchSize}
	if c.Inference.Mode == cfg.ModeKRandom {
		fields["k"] = c.Inference.K
	}
	log.WithFields(fields).Info("inference started")
	start := p.now()

	opt := inference.Options{Progress: p.progress}
	var res inference.Result
	switch c.Inference.Mode {
	case cfg.ModeKRandom:
		src := &dataset.Files{Paths: paths, SampleRate: c.Audio.SampleRate, Window: c.WindowSamples()}
		l := dataset.NewLoader(src, c.Loader.BatchSize, c.Loader.NumWorkers, c.Loader.Seed)
		kr, err := inference.KRandom(ctx, net, l, c.Inference.K, opt)
		if err != nil {
			return nil, err
		}
		res = kr.Result
	case cfg.ModeAll:
		windows := inference.SnippetWindows(paths, c.Paths.Snippets, c.Audio.SampleRate, c.WindowSamples(), c.HopSamples())
		newLoader := func(s dataset.Source) *dataset.Loader {
			return dataset.NewLoader(s, c.Loader.BatchSize, c.Loader.NumWorkers, c.Loader.Seed)
		}
		all, err := inference.All(ctx, net, len(paths), windows, newLoader, opt)
		if err != nil {
			return nil, err
		}
		res = all.Result
	default:
		return nil, fmt.Errorf("unknown inference mode %q", c.Inference.Mode)
	}

	withPred, err := meta.WithPredictions(res.Pred)
	if err != nil {
		return nil, err
	}
	if err := mkOutputs(c.Paths.Outputs); err != nil {
		return nil, err
	}
	out := &InferOutput{
		Mode:        c.Inference.Mode,
		Files:       len(paths),
		Predictions: p.out(predictionsName(c.Eval.Dset, c.Inference.Mode)),
		Probs:       p.out(probsName(c.Eval.Dset, c.Inference.Mode)),
		Pred:        res.Pred,
	}
	if err := writePredictions(out.Predictions, withPred); err != nil {
		return nil, fmt.Errorf("write predictions: %w", err)
	}
	if m := metrics.Dense(res.Avg); m != nil {
		if err := metrics.SaveNPY(out.Probs, m); err != nil {
			return nil, err
		}
	}
	if err := writeConfig(c.Paths.Outputs, c.Eval.Dset, c); err != nil {
		log.WithError(err).Warn("config snapshot not written")
	}

	log.WithFields(log.Fields{
		"mode":    out.Mode,
		"files":   out.Files,
		"elapsed": p.now().Sub(start).Round(time.Millisecond),
		"output":  out.Predictions,
	}).Info("inference done")
	return out, nil
}

// ErrorAnalysis reads a predictions file from the outputs directory (the
// k-random one when filename is empty) and writes the confusion matrix, its
// plot, the classification report and a JSON summary. tag is appended to the
// artifact names.
func (p *Pipeline) ErrorAnalysis(filename, tag string) (*Analysis, error) {
	c := p.cfg
	dset := c.Eval.Dset
	if filename == "" {
		filename = predictionsName(dset, cfg.ModeKRandom)
	}
	predPath := p.out(filename)

	meta, err := dataset.LoadMetadata(predPath)
	if err != nil {
		return nil, err
	}
	yTrue, err := meta.Labels()
	if err != nil {
		return nil, err
	}
	yPred, err := meta.Predictions()
	if err != nil {
		return nil, err
	}

	labels := metrics.Labels(yTrue, yPred)
	cm, err := metrics.ConfusionMatrix(yTrue, yPred, labels)
	if err != nil {
		return nil, err
	}

	an := &Analysis{
		Labels:         labels,
		ConfusionNPY:   p.out(cmName(dset, tag)),
		ConfusionPlot:  p.out(plotName(dset)),
		EvaluationCSV:  p.out(evaluationName(dset, tag)),
		SummaryJSON:    p.out(summaryName(dset, tag)),
		MisclassifiedN: misclassified(yTrue, yPred),
	}
	if err := metrics.SaveNPY(an.ConfusionNPY, cm); err != nil {
		return nil, err
	}
	if err := figure.ConfusionMatrix(cm, labels, an.ConfusionPlot, dset, c.Eval.VMax); err != nil {
		return nil, fmt.Errorf("plot confusion matrix: %w", err)
	}

	rep, err := metrics.NewReport(yTrue, yPred, labels)
	if err != nil {
		return nil, err
	}
	an.Accuracy = rep.Accuracy
	if c.Eval.NClasses > 0 {
		an.ClassAccuracy = metrics.ClassAccuracy(yTrue, yPred, c.Eval.NClasses)
	}
	f, err := os.Create(an.EvaluationCSV)
	if err != nil {
		return nil, err
	}
	if err := rep.WriteCSV(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("write evaluation: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	sum := Summary{
		RunID:         runID(p.now()),
		Dset:          dset,
		Tag:           tag,
		GeneratedAt:   p.now(),
		Predictions:   predPath,
		Files:         len(yTrue),
		Accuracy:      rep.Accuracy,
		MacroF1:       rep.Macro.F1,
		WeightedF1:    rep.Weighted.F1,
		ClassAccuracy: an.ClassAccuracy,
		Artifacts:     []string{an.ConfusionNPY, an.ConfusionPlot, an.EvaluationCSV},
		Confusions:    topConfusions(cm, labels, 10),
	}
	if err := writeJSON(an.SummaryJSON, sum); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"dset":          dset,
		"files":         len(yTrue),
		"accuracy":      fmt.Sprintf("%.3f", rep.Accuracy),
		"misclassified": an.MisclassifiedN,
	}).Info("error analysis done")
	log.Debug("\n" + rep.String())
	return an, nil
}
