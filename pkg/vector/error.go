package vector

import "errors"

var (
	// ErrDimensionMismatch is returned when an embedding does not match
	// the collection's configured size.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")
)
