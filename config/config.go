package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid config")

const (
	ModeKRandom = "k-random"
	ModeAll     = "all"

	BackendONNX = "onnx"
	BackendHTTP = "http"
)

type Pipeline struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	LogLvl  string `yaml:"log_level"`
}
type Audio struct {
	SampleRate int     `yaml:"sample_rate"`
	Period     float64 `yaml:"period"` // window length, sec
	Hop        float64 `yaml:"hop"`    // segmenting stride, sec; 0 means period
}
type Loader struct {
	BatchSize  int   `yaml:"batch_size"`
	NumWorkers int   `yaml:"num_workers"`
	Seed       int64 `yaml:"seed"`
}
type Model struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	URL        string `yaml:"url"`
	InputName  string `yaml:"input_name"`
	OutputName string `yaml:"output_name"`
	ORTLibrary string `yaml:"ort_library"`
	Timeout    int    `yaml:"timeout"` // sec, http backend
}
type Inference struct {
	Mode         string `yaml:"mode"`
	K            int    `yaml:"k"`
	ApplySoftmax bool   `yaml:"apply_softmax"`
}
type Paths struct {
	Metadata string `yaml:"metadata"`
	Data     string `yaml:"data"`
	Snippets string `yaml:"snippets"`
	Outputs  string `yaml:"outputs"`
}
type Eval struct {
	Dset     string  `yaml:"dset"`
	Tag      string  `yaml:"tag"`
	NClasses int     `yaml:"n_classes"`
	VMax     float64 `yaml:"vmax"`
}
type Root struct {
	Pipeline  Pipeline  `yaml:"pipeline"`
	Audio     Audio     `yaml:"audio"`
	Loader    Loader    `yaml:"loader"`
	Model     Model     `yaml:"model"`
	Inference Inference `yaml:"inference"`
	Paths     Paths     `yaml:"paths"`
	Eval      Eval      `yaml:"eval"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("pipeline.name", "audioclf-eval")
	v.SetDefault("pipeline.version", "0.1.0")
	v.SetDefault("pipeline.log_level", "info")
	v.SetDefault("audio.sample_rate", 32000)
	v.SetDefault("audio.period", 5.0)
	v.SetDefault("audio.hop", 0.0)
	v.SetDefault("loader.batch_size", 16)
	v.SetDefault("loader.num_workers", 4)
	v.SetDefault("loader.seed", 42)
	v.SetDefault("model.backend", BackendONNX)
	v.SetDefault("model.path", "")
	v.SetDefault("model.url", "")
	v.SetDefault("model.input_name", "wave")
	v.SetDefault("model.output_name", "logits")
	v.SetDefault("model.ort_library", "")
	v.SetDefault("model.timeout", 60)
	v.SetDefault("inference.mode", ModeKRandom)
	v.SetDefault("inference.k", 1)
	v.SetDefault("inference.apply_softmax", false)
	v.SetDefault("paths.metadata", "")
	v.SetDefault("paths.data", "data/test")
	v.SetDefault("paths.snippets", "")
	v.SetDefault("paths.outputs", "outputs")
	v.SetDefault("eval.dset", "test")
	v.SetDefault("eval.tag", "")
	v.SetDefault("eval.n_classes", 0)
	v.SetDefault("eval.vmax", 10.0)
}

// Load reads the YAML config at path, or the first one found under the
// CONFIG_ENV search list when path is empty. AUDIOEVAL_<SECTION>_<KEY>
// environment variables override file values. The result is not validated;
// callers apply their own overrides and then call Validate.
func Load(path string) (*Root, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("AUDIOEVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	defaults(v)

	if path == "" {
		path = find()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Root
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" }); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Dump writes the resolved config as YAML.
func (c *Root) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

func find() string {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	guess := []string{
		filepath.Join("config", env, "config.yaml"),
		"config.yaml",
	}
	for _, p := range guess {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (c *Root) Validate() error {
	switch {
	case c.Audio.SampleRate <= 0:
		return fmt.Errorf("%w: audio.sample_rate must be positive", ErrInvalid)
	case c.Audio.Period <= 0:
		return fmt.Errorf("%w: audio.period must be positive", ErrInvalid)
	case c.Audio.Hop < 0:
		return fmt.Errorf("%w: audio.hop must not be negative", ErrInvalid)
	case c.Loader.BatchSize <= 0:
		return fmt.Errorf("%w: loader.batch_size must be positive", ErrInvalid)
	case c.Inference.K < 1:
		return fmt.Errorf("%w: inference.k must be >= 1", ErrInvalid)
	}
	switch c.Inference.Mode {
	case ModeKRandom, ModeAll:
	default:
		return fmt.Errorf("%w: unknown inference.mode %q", ErrInvalid, c.Inference.Mode)
	}
	switch c.Model.Backend {
	case BackendONNX, BackendHTTP:
	default:
		return fmt.Errorf("%w: unknown model.backend %q", ErrInvalid, c.Model.Backend)
	}
	return nil
}

// WindowSamples is the number of samples in one window.
func (c *Root) WindowSamples() int { return int(c.Audio.Period * float64(c.Audio.SampleRate)) }

// HopSamples is the stride used to cut long recordings into windows.
func (c *Root) HopSamples() int {
	if c.Audio.Hop <= 0 {
		return c.WindowSamples()
	}
	return int(c.Audio.Hop * float64(c.Audio.SampleRate))
}

func DurSeconds(n int) time.Duration { return time.Duration(n) * time.Second }
