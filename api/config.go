// Package api provides the HTTP API server for recognition, caregiver
// management, and memory capture.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8420")
	ListenAddr string

	// ContextMemoryLimit caps memories returned by the context endpoint.
	ContextMemoryLimit int
}
