package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	cfg "github.com/maastricht-university/audioclf-eval/config"
	"github.com/maastricht-university/audioclf-eval/dataset"
)

func runID(now time.Time) string { return "run_" + now.Format("20060102-150405") }

func mkOutputs(root string) error { return os.MkdirAll(root, 0o755) }

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writePredictions(path string, m *dataset.Metadata) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := m.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeConfig snapshots the resolved config next to the artifacts.
func writeConfig(dir, dset string, c *cfg.Root) error {
	f, err := os.Create(filepath.Join(dir, dset+"_config.yaml"))
	if err != nil {
		return err
	}
	if err := c.Dump(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
