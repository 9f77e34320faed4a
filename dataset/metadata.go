package dataset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const (
	ColPath      = "path"
	ColLabel     = "label"
	ColPredicted = "predicted_class_id"
)

// Metadata is the table of test instances: one row per file with at least a
// path and an integer label.
type Metadata struct {
	df dataframe.DataFrame
}

func ReadMetadata(r io.Reader) (*Metadata, error) {
	df := dataframe.ReadCSV(r,
		dataframe.WithTypes(map[string]series.Type{
			ColPath:      series.String,
			ColLabel:     series.Int,
			ColPredicted: series.Int,
		}),
	)
	if err := df.Error(); err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	if !hasCol(df, ColLabel) {
		return nil, fmt.Errorf("metadata: missing column %q", ColLabel)
	}
	return &Metadata{df: df}, nil
}

func LoadMetadata(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadMetadata(f)
}

func hasCol(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

func (m *Metadata) Len() int { return m.df.Nrow() }

func (m *Metadata) Paths() []string {
	if !hasCol(m.df, ColPath) {
		return nil
	}
	return m.df.Col(ColPath).Records()
}

func (m *Metadata) Labels() ([]int, error) { return m.ints(ColLabel) }

func (m *Metadata) Predictions() ([]int, error) { return m.ints(ColPredicted) }

func (m *Metadata) ints(col string) ([]int, error) {
	if !hasCol(m.df, col) {
		return nil, fmt.Errorf("metadata: missing column %q", col)
	}
	v, err := m.df.Col(col).Int()
	if err != nil {
		return nil, fmt.Errorf("metadata: column %q: %w", col, err)
	}
	return v, nil
}

// WithPredictions returns a copy of the table with a predicted_class_id
// column set to pred.
func (m *Metadata) WithPredictions(pred []int) (*Metadata, error) {
	if len(pred) != m.Len() {
		return nil, fmt.Errorf("metadata: %d predictions for %d rows", len(pred), m.Len())
	}
	df := m.df.Mutate(series.New(pred, series.Int, ColPredicted))
	if err := df.Error(); err != nil {
		return nil, err
	}
	return &Metadata{df: df}, nil
}

func (m *Metadata) WriteCSV(w io.Writer) error { return m.df.WriteCSV(w) }

// Resolve joins relative metadata paths onto dir. Absolute paths are kept.
func Resolve(dir string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if dir == "" || filepath.IsAbs(p) {
			out[i] = p
			continue
		}
		out[i] = filepath.Join(dir, p)
	}
	return out
}

// SnippetPaths lists the preprocessed snippets of a long recording:
// <dir>/<name>_*.wav where name is the file's base name minus its last four
// characters (the ".wav" the snippet writer strips), whatever they are.
func SnippetPaths(dir, path string) ([]string, error) {
	name := filepath.Base(path)
	if len(name) > 4 {
		name = name[:len(name)-4]
	}
	matches, err := filepath.Glob(filepath.Join(dir, globEscape(name)+"_*.wav"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}
