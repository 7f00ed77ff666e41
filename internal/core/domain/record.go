package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// recordNamespace seeds SHA-1 UUIDs for records that arrive without an ID,
// so re-processing an identical batch assigns identical IDs.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://custodia-labs.io/corpora/record"))

// Record is a single dataset entry flowing through the dedup pipeline
type Record struct {
	RecordID      string    `json:"record_id"`
	SourceID      string    `json:"source_id"`
	RawText       string    `json:"raw_text"`
	CanonicalText string    `json:"canonical_text,omitempty"` // Filled by the canonicalizer
	ContentHash   string    `json:"content_hash,omitempty"`   // Hex SHA-256 of CanonicalText
	Position      int       `json:"position"`                 // Zero-based position in the input batch
	IngestedAt    time.Time `json:"ingested_at"`
}

// DeriveRecordID builds a deterministic ID for a record that arrived
// without one, from its source, batch position, and raw text.
func DeriveRecordID(sourceID string, position int, rawText string) string {
	name := fmt.Sprintf("%s\x00%d\x00%s", sourceID, position, rawText)
	return uuid.NewSHA1(recordNamespace, []byte(name)).String()
}

// ComputeContentHash returns the hex SHA-256 digest of canonical text.
// Hash equality alone does not make two records exact duplicates; callers
// must confirm byte equality of the canonical texts.
func ComputeContentHash(canonicalText string) string {
	sum := sha256.Sum256([]byte(canonicalText))
	return hex.EncodeToString(sum[:])
}

// NewRunID returns a unique identifier for a pipeline run.
func NewRunID() string {
	return uuid.NewString()
}
