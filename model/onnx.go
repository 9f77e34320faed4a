package model

import (
	"context"
	"fmt"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

type ONNXConfig struct {
	ModelPath  string
	InputName  string // [batch, samples] float32
	OutputName string // [batch, classes] float32
	Library    string // onnxruntime shared library, optional
}

// ONNX runs an exported classifier through ONNX Runtime on the CPU.
type ONNX struct {
	session *ort.DynamicAdvancedSession
	cfg     ONNXConfig
	mu      sync.Mutex
}

var (
	ortInitMu   sync.Mutex
	ortInitDone bool
)

var ortSearchPaths = []string{
	"./libonnxruntime.so",
	"/usr/local/lib/libonnxruntime.so",
	"/usr/lib/libonnxruntime.so",
	"./libonnxruntime.dylib",
	"/opt/homebrew/lib/libonnxruntime.dylib",
}

func initRuntime(lib string) error {
	ortInitMu.Lock()
	defer ortInitMu.Unlock()
	if ortInitDone {
		return nil
	}

	if lib == "" {
		lib = os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")
	}
	if lib == "" {
		for _, p := range ortSearchPaths {
			if _, err := os.Stat(p); err == nil {
				lib = p
				break
			}
		}
	}
	if lib == "" {
		return fmt.Errorf("onnxruntime shared library not found")
	}
	log.WithField("library", lib).Debug("using onnxruntime")
	ort.SetSharedLibraryPath(lib)
	if err := ort.InitializeEnvironment(); err != nil {
		return err
	}
	ortInitDone = true
	return nil
}

func NewONNX(c ONNXConfig) (*ONNX, error) {
	if err := initRuntime(c.Library); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}

	inName, outName := c.InputName, c.OutputName
	if inName == "" || outName == "" {
		inputs, outputs, err := ort.GetInputOutputInfo(c.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("failed to get model info: %w", err)
		}
		if len(inputs) == 0 || len(outputs) == 0 {
			return nil, fmt.Errorf("%s: model has no inputs or outputs", c.ModelPath)
		}
		if inName == "" {
			inName = inputs[0].Name
		}
		if outName == "" {
			outName = outputs[0].Name
		}
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(c.ModelPath, []string{inName}, []string{outName}, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	c.InputName, c.OutputName = inName, outName

	log.WithFields(log.Fields{"model": c.ModelPath, "input": inName, "output": outName}).Info("model loaded")
	return &ONNX{session: session, cfg: c}, nil
}

func (m *ONNX) Predict(ctx context.Context, waves [][]float32) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(waves) == 0 {
		return nil, nil
	}
	n := len(waves[0])
	flat := make([]float32, 0, len(waves)*n)
	for i, w := range waves {
		if len(w) != n {
			return nil, fmt.Errorf("wave %d has %d samples, want %d", i, len(w), n)
		}
		flat = append(flat, w...)
	}

	input, err := ort.NewTensor(ort.NewShape(int64(len(waves)), int64(n)), flat)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	m.mu.Lock()
	outputs := []ort.Value{nil}
	err = m.session.Run([]ort.Value{input}, outputs)
	m.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to run inference: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	t, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}
	shape := t.GetShape()
	if len(shape) != 2 || int(shape[0]) != len(waves) {
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}
	data := t.GetData()
	classes := int(shape[1])
	out := make([][]float32, len(waves))
	for i := range out {
		row := make([]float32, classes)
		copy(row, data[i*classes:(i+1)*classes])
		out[i] = row
	}
	return out, nil
}

func (m *ONNX) Close() error {
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}
