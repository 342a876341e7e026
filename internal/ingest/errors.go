package ingest

import "errors"

var (
	// ErrMalformedEvent rejects an event before any state mutation: missing
	// session/room id or an unrecognized event type. Not retryable.
	ErrMalformedEvent = errors.New("malformed interaction event")

	// ErrPersistence surfaces a failed reduce-and-persist cycle after the
	// bounded retries are exhausted. Retryable: nothing was pushed to
	// observers and the durable state is whatever the last successful
	// persist wrote.
	ErrPersistence = errors.New("failed to persist session aggregate")
)
