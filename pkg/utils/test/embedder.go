package testutils

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/solacelabs/solace/pkg/identity"
	"github.com/solacelabs/solace/pkg/vector"
)

// DeterministicVector derives a vector of the given size from a seed
// string. The same seed always produces the same vector, and distinct seeds
// produce vectors that are far apart under cosine similarity.
func DeterministicVector(seed string, dims int) []float32 {
	h := fnv.New64a()
	h.Write([]byte(seed))
	state := h.Sum64()

	out := make([]float32, dims)
	for i := range out {
		// xorshift64
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		out[i] = float32(int64(state%2000)-1000) / 1000.0
	}
	return out
}

// MockTextEmbedder is a test embedder that returns predictable embeddings
type MockTextEmbedder struct {
	Embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches
	FailOn string
}

func NewMockTextEmbedder() *MockTextEmbedder {
	return &MockTextEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockTextEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	return DeterministicVector(text, vector.MemoryDimensions), nil
}

func (m *MockTextEmbedder) Close() error {
	return nil
}

// MockFaceEmbedder is a test face embedder keyed by frame contents
type MockFaceEmbedder struct {
	Embeddings map[string][]float32

	// NoFaceOn causes EmbedFace to report no face when the frame matches
	NoFaceOn string

	// FailOn causes EmbedFace to return an error when the frame matches
	FailOn string
}

func NewMockFaceEmbedder() *MockFaceEmbedder {
	return &MockFaceEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockFaceEmbedder) EmbedFace(_ context.Context, frame []byte) ([]float32, error) {
	key := string(frame)

	if m.FailOn != "" && key == m.FailOn {
		return nil, fmt.Errorf("mock face embedding failure for: %s", key)
	}
	if m.NoFaceOn != "" && key == m.NoFaceOn {
		return nil, identity.ErrNoFace
	}

	if emb, ok := m.Embeddings[key]; ok {
		return emb, nil
	}

	return DeterministicVector(key, vector.FaceDimensions), nil
}

func (m *MockFaceEmbedder) Close() error {
	return nil
}
