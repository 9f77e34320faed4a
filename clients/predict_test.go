package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var req PredictReq
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		out := PredictResp{Model: "cnn"}
		for _, w := range req.Waves {
			out.Outputs = append(out.Outputs, []float32{float32(len(w)), 0})
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	resp, err := NewHTTP(time.Second).Predict(context.Background(), srv.URL, [][]float32{{1, 2, 3}, {4}})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3, 0}, {1, 0}}, resp.Outputs)
	assert.Equal(t, "cnn", resp.Model)
}

func TestPredictStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTP(0).Predict(context.Background(), srv.URL, [][]float32{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestPredictCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"outputs": [[1, 2]]}`))
	}))
	defer srv.Close()

	_, err := NewHTTP(0).Predict(context.Background(), srv.URL, [][]float32{{1}, {2}})
	require.Error(t, err)
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status": "ok", "model": "cnn", "n_classes": 66}`))
	}))
	defer srv.Close()

	h, err := NewHTTP(0).Health(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 66, h.Classes)
}
