// Package faceapi implements pkg/embeddings' FaceEmbedder against an HTTP
// face-analysis sidecar. The sidecar accepts a raw JPEG frame and returns
// the embedding of the largest detected face.
package faceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/solacelabs/solace/pkg/embeddings"
	"github.com/solacelabs/solace/pkg/identity"
)

// DefaultBaseURL is the default sidecar URL.
const DefaultBaseURL = "http://localhost:8810"

// Config holds configuration for the face sidecar client.
type Config struct {
	// BaseURL is the sidecar URL. Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Timeout bounds a single embed call. Defaults to 10s.
	Timeout time.Duration
}

// Embedder calls the face-analysis sidecar.
type Embedder struct {
	baseURL    string
	httpClient *http.Client
}

// embedResponse is the sidecar's response body.
type embedResponse struct {
	FaceFound bool      `json:"face_found"`
	Embedding []float32 `json:"embedding"`
}

// NewEmbedder creates a face embedder backed by the sidecar.
func NewEmbedder(cfg Config) (*Embedder, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Embedder{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// EmbedFace sends the frame to the sidecar and returns the face embedding.
func (e *Embedder) EmbedFace(ctx context.Context, frame []byte) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/embed", bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", embeddings.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", embeddings.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: sidecar returned status %d: %s", embeddings.ErrEmbedding, resp.StatusCode, string(body))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", embeddings.ErrEmbedding, err)
	}

	if !embedResp.FaceFound || len(embedResp.Embedding) == 0 {
		return nil, identity.ErrNoFace
	}

	return embedResp.Embedding, nil
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.FaceEmbedder = (*Embedder)(nil)
