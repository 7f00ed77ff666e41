package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidEncoding indicates a record's raw text is not valid UTF-8.
	// Per-record and recoverable: the record is skipped and audit-logged.
	ErrInvalidEncoding = errors.New("invalid text encoding")

	// ErrEmptyRecord indicates a record's canonical text is empty.
	// Per-record and recoverable: the record is skipped and audit-logged.
	ErrEmptyRecord = errors.New("empty record after canonicalization")

	// ErrInvalidRecord indicates an input line failed schema validation.
	// Per-record and recoverable.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrConfiguration indicates an invalid parameter combination.
	// Fatal: the run aborts before any data is read.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrManifestIntegrity indicates the manifest cannot be built soundly,
	// e.g. an empty surviving set or a content hash collision with
	// differing bytes. Fatal: nothing is published.
	ErrManifestIntegrity = errors.New("manifest integrity violation")

	// ErrRunInProgress indicates another run holds the dedup lock
	ErrRunInProgress = errors.New("dedup run already in progress")

	// ErrSourceExhausted signals the end of a record source's stream
	ErrSourceExhausted = errors.New("record source exhausted")
)
