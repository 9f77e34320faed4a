package model

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/maastricht-university/audioclf-eval/clients"
)

// Remote delegates forward passes to a model server speaking the /predict
// protocol of the clients package.
type Remote struct {
	url  string
	http *clients.HTTP
}

// NewRemote checks the server is up before returning.
func NewRemote(ctx context.Context, url string, h *clients.HTTP) (*Remote, error) {
	if url == "" {
		return nil, fmt.Errorf("model.url is required for the http backend")
	}
	hr, err := h.Health(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("model server: %w", err)
	}
	log.WithFields(log.Fields{"url": url, "model": hr.Model, "classes": hr.Classes}).Info("model server ready")
	return &Remote{url: url, http: h}, nil
}

func (r *Remote) Predict(ctx context.Context, waves [][]float32) ([][]float32, error) {
	resp, err := r.http.Predict(ctx, r.url, waves)
	if err != nil {
		return nil, err
	}
	return resp.Outputs, nil
}

func (r *Remote) Close() error { return nil }
