package medrag

import (
	"errors"
	"fmt"
)

// ErrEmptyIndex is returned by the Retriever when the collection has zero
// entries. It distinguishes "the knowledge base was never ingested" from
// "no relevant match was found"; callers are expected to tell the operator
// to run ingestion rather than silently answering from nothing.
var ErrEmptyIndex = errors.New("medrag: index is empty, run ingestion first")

// ValidationError reports a malformed raw source unit. It is fatal to that
// unit only: the normalizer skips it and the batch continues.
type ValidationError struct {
	// Unit identifies the offending unit (source file plus ordinal).
	Unit string
	// Reason explains what was missing or malformed.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("medrag: invalid unit %s: %s", e.Unit, e.Reason)
}

// ServiceError wraps a failure of an external collaborator (the vector
// index, the embedding service, or the generation service). It is a
// recoverable condition: query mode converts it into a degraded answer and
// ingestion mode into a chunk failure report.
type ServiceError struct {
	// Service names the collaborator: "index", "embedding", "generation".
	Service string
	// Err is the underlying failure.
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("medrag: %s service unavailable: %v", e.Service, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ConfigError reports a missing or invalid configuration value (credential,
// endpoint, collection name). It is fatal at startup, before any ingestion
// or query proceeds.
type ConfigError struct {
	// Key is the configuration key or environment variable at fault.
	Key string
	// Reason explains why the value is unusable.
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("medrag: configuration error for %s: %s", e.Key, e.Reason)
}
