package domain

import "time"

// Attestation is the verified identity of a published manifest, recovered
// from a signed token. Downstream eval runners compare it against the
// manifest they fetched.
type Attestation struct {
	VersionID   string    `json:"version_id"`
	RecordCount int       `json:"record_count"`
	CreatedAt   time.Time `json:"created_at"`
	IssuedAt    time.Time `json:"issued_at"`
}
