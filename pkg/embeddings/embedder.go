// Package embeddings
package embeddings

import (
	"context"
	"errors"
)

// ErrEmbedding is returned when embedding generation fails.
var ErrEmbedding = errors.New("embedding failed")

// TextEmbedder converts text into a vector embedding.
type TextEmbedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}

// FaceEmbedder extracts a face embedding from a camera frame.
type FaceEmbedder interface {
	// EmbedFace returns the embedding of the most prominent face in the
	// frame, or identity.ErrNoFace when the frame contains none.
	EmbedFace(ctx context.Context, frame []byte) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
