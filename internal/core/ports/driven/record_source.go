package driven

import "context"

// RecordSource streams one batch of raw JSONL lines from upstream storage
// (S3/MinIO or local filesystem)
type RecordSource interface {
	// Open starts reading the batch and returns a reader over its lines
	Open(ctx context.Context) (RecordReader, error)

	// Name identifies the batch, used for logging and as the default
	// source ID for records that carry none
	Name() string
}

// RecordReader iterates the raw lines of one batch.
// Implementations are not safe for concurrent use.
type RecordReader interface {
	// Next returns the next non-empty line. After the last line it
	// returns domain.ErrSourceExhausted.
	Next(ctx context.Context) ([]byte, error)

	// Close releases the underlying stream
	Close() error
}
