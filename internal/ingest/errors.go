package ingest

import "errors"

// Failure classes surfaced by the orchestrator. Callers wrap these with
// fmt.Errorf("...: %w", Err...) so the worker can pick a policy per class.
var (
	// ErrNotFound marks an unknown upload or an empty chunk set where one
	// was required.
	ErrNotFound = errors.New("not found")

	// ErrConfiguration marks an invalid pipeline configuration, e.g. an
	// unsupported embedding provider. Fatal for the item, worth an alert.
	ErrConfiguration = errors.New("pipeline configuration invalid")

	// ErrUnsupportedFormat marks a content type the reader cannot parse.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrTransient marks a network or vendor failure while reading,
	// chunking, enriching or embedding. The worker retries these with
	// backoff before giving up.
	ErrTransient = errors.New("transient integration failure")

	// ErrPersistence marks a chunk store write/patch/delete failure.
	ErrPersistence = errors.New("chunk store persistence failure")
)

// IsTransient reports whether err should be retried by the worker.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsNotFound reports whether err denotes a missing upload or chunk set.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
