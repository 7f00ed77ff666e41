package domain

import "time"

// ExclusionReason classifies why a record was left out of a dataset version
type ExclusionReason string

const (
	// ReasonEncodingError marks records whose raw text was not valid UTF-8
	// or whose input line failed validation
	ReasonEncodingError ExclusionReason = "encoding_error"

	// ReasonEmptyAfterCanonicalization marks records whose canonical text
	// came out empty
	ReasonEmptyAfterCanonicalization ExclusionReason = "empty_after_canonicalization"

	// ReasonExactDuplicateOf marks byte-identical duplicates of a survivor
	ReasonExactDuplicateOf ExclusionReason = "exact_duplicate_of"

	// ReasonNearDuplicateOf marks confirmed near duplicates of a cluster
	// representative
	ReasonNearDuplicateOf ExclusionReason = "near_duplicate_of"
)

// AuditEntry records one excluded record, making every exclusion decision
// reviewable after the fact.
type AuditEntry struct {
	RecordID    string          `json:"record_id"`
	SourceID    string          `json:"source_id"`
	Reason      ExclusionReason `json:"reason"`
	DuplicateOf string          `json:"duplicate_of,omitempty"` // Surviving record for duplicate reasons
	Detail      string          `json:"detail,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
