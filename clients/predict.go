package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// --- Model server (/predict) ---
type PredictReq struct {
	Waves [][]float32 `json:"waves"`
}
type PredictResp struct {
	Outputs [][]float32 `json:"outputs"`
	Model   string      `json:"model,omitempty"`
}

func (h *HTTP) Predict(ctx context.Context, url string, waves [][]float32) (*PredictResp, error) {
	b, err := json.Marshal(PredictReq{Waves: waves})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/predict", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("predict %s: %s", resp.Status, string(body))
	}

	var out PredictResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("predict decode: %w", err)
	}
	if len(out.Outputs) != len(waves) {
		return nil, fmt.Errorf("predict: %d outputs for %d inputs", len(out.Outputs), len(waves))
	}
	return &out, nil
}

// --- Health (/health) ---
type HealthResp struct {
	Status  string `json:"status"`
	Model   string `json:"model"`
	Classes int    `json:"n_classes"`
}

func (h *HTTP) Health(ctx context.Context, url string) (*HealthResp, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("health %s: %s", resp.Status, string(body))
	}

	var out HealthResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("health decode: %w", err)
	}
	return &out, nil
}
