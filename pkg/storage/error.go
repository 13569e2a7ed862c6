package storage

// NotFoundError is returned when a referenced person or memory does not
// exist. It is surfaced to the caller and never retried.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return e.Kind + " not found"
	}
	return e.Kind + " not found: " + e.ID
}

// PersonNotFound builds a NotFoundError for a person id.
func PersonNotFound(id string) NotFoundError {
	return NotFoundError{Kind: "person", ID: id}
}

// MemoryNotFound builds a NotFoundError for a memory id.
func MemoryNotFound(id string) NotFoundError {
	return NotFoundError{Kind: "memory", ID: id}
}
