package identity

import "errors"

var (
	// ErrAlreadyConfirmed is returned when confirming a person who is not in
	// the temporary state. Confirmation is never a silent no-op.
	ErrAlreadyConfirmed = errors.New("person already confirmed")

	// ErrNoFrames is returned when a recognition request carries no frames.
	ErrNoFrames = errors.New("no frames provided")

	// ErrNoFace is returned by a face embedder when no face is detected in
	// an image. Per-frame, this is a skip rather than a batch failure.
	ErrNoFace = errors.New("no face detected")
)
