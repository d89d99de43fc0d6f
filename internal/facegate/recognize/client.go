// Package recognize calls the face-recognition sidecar. The sidecar owns
// the ML model and GPU; this process only ships JPEG frames to it and
// reads back face boxes with their embedding vectors.
package recognize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/jmsoler/facegate/internal/facegate/types"
)

// Client is an HTTP types.Recognizer backed by the recognition sidecar.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
}

// ClientConfig holds sidecar connection tunables. Zero values get
// defaults.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration // per-frame timeout, default 2s
}

func NewClient(cfg ClientConfig, logger *log.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

type detectResponse struct {
	Faces []struct {
		Box struct {
			Top    int `json:"top"`
			Right  int `json:"right"`
			Bottom int `json:"bottom"`
			Left   int `json:"left"`
		} `json:"box"`
		Vector []float64 `json:"vector"`
	} `json:"faces"`
}

// Detect ships one JPEG frame to the sidecar and returns the faces it
// found. Zero faces is a normal result; an error means the frame was
// not analyzed and the caller should move on to the next one.
func (c *Client) Detect(ctx context.Context, frame types.Frame) ([]types.Detection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/detect", bytes.NewReader(frame.Data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recognizer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("recognizer returned %s", resp.Status)
	}

	var dr detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("decode recognizer response: %w", err)
	}

	detections := make([]types.Detection, 0, len(dr.Faces))
	for _, f := range dr.Faces {
		detections = append(detections, types.Detection{
			Box: types.Box{
				Top:    f.Box.Top,
				Right:  f.Box.Right,
				Bottom: f.Box.Bottom,
				Left:   f.Box.Left,
			},
			Vector: f.Vector,
		})
	}
	return detections, nil
}
