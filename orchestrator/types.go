package orchestrator

import "time"

// InferOutput names what an inference run wrote.
type InferOutput struct {
	Mode        string
	Files       int
	Predictions string // csv: metadata + predicted_class_id
	Probs       string // npy: files x classes averaged scores
	Pred        []int
}

// Analysis is the outcome of an error analysis over a predictions file.
type Analysis struct {
	Labels   []int
	Accuracy float64
	// ClassAccuracy covers classes 0..eval.n_classes-1, nil when unset.
	ClassAccuracy  []float64
	ConfusionNPY   string
	ConfusionPlot  string
	EvaluationCSV  string
	SummaryJSON    string
	MisclassifiedN int
}

// Summary is persisted next to the artifacts of an analysis.
type Summary struct {
	RunID       string    `json:"run_id"`
	Dset        string    `json:"dset"`
	Tag         string    `json:"tag,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	Predictions string    `json:"predictions_file"`
	Files       int       `json:"n_files"`
	Accuracy    float64   `json:"accuracy"`
	MacroF1     float64   `json:"macro_f1"`
	WeightedF1  float64   `json:"weighted_f1"`
	Artifacts   []string  `json:"artifacts"`
	// ClassAccuracy is indexed by class id.
	ClassAccuracy []float64 `json:"class_accuracy,omitempty"`
	// Confusions lists the most frequent true -> predicted mistakes.
	Confusions []Confusion `json:"top_confusions,omitempty"`
}

type Confusion struct {
	True  int `json:"true"`
	Pred  int `json:"predicted"`
	Count int `json:"count"`
}
