package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// ManifestRecord is one surviving record as listed in a dataset manifest
type ManifestRecord struct {
	RecordID    string `json:"record_id"`
	ContentHash string `json:"content_hash"`
	SourceID    string `json:"source_id"`
}

// DatasetManifest is the immutable description of one published dataset
// version. Field order is stable and part of the manifest format.
type DatasetManifest struct {
	VersionID   string           `json:"version_id"`
	CreatedAt   time.Time        `json:"created_at"`
	RecordCount int              `json:"record_count"`
	Records     []ManifestRecord `json:"records"`
}

// VersionSummary is the listing view of a published dataset version
type VersionSummary struct {
	VersionID   string    `json:"version_id"`
	CreatedAt   time.Time `json:"created_at"`
	RecordCount int       `json:"record_count"`
}

// Snapshot bundles everything one run publishes: the manifest, the
// surviving records in manifest order, and the audit log.
type Snapshot struct {
	Manifest *DatasetManifest `json:"manifest"`
	Records  []*Record        `json:"records"`
	Audit    []AuditEntry     `json:"audit"`
}

// VersionDiff describes how the surviving content changed between two
// published versions, compared by content hash.
type VersionDiff struct {
	From    string           `json:"from"`
	To      string           `json:"to"`
	Added   []ManifestRecord `json:"added"`
	Removed []ManifestRecord `json:"removed"`
}

// ComputeVersionID derives the content-addressed version identifier from an
// ordered list of content hashes. Identical surviving content yields the
// identical version on any run, host, or date.
func ComputeVersionID(orderedHashes []string) string {
	h := sha256.New()
	for _, ch := range orderedHashes {
		h.Write([]byte(ch))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NewManifest builds the manifest for a surviving record set. Records are
// sorted by RecordID and the version ID is computed over their content
// hashes in that order. An empty surviving set is a fatal integrity error:
// it means the batch produced no content, which always indicates an
// upstream problem rather than a legitimately empty dataset.
func NewManifest(survivors []*Record, createdAt time.Time) (*DatasetManifest, error) {
	if len(survivors) == 0 {
		return nil, fmt.Errorf("%w: surviving record set is empty", ErrManifestIntegrity)
	}

	sorted := make([]*Record, len(survivors))
	copy(sorted, survivors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].RecordID < sorted[j].RecordID
	})

	records := make([]ManifestRecord, 0, len(sorted))
	hashes := make([]string, 0, len(sorted))
	seen := make(map[string]string, len(sorted))
	for _, r := range sorted {
		if r.ContentHash == "" {
			return nil, fmt.Errorf("%w: record %s has no content hash", ErrManifestIntegrity, r.RecordID)
		}
		if prev, collides := seen[r.ContentHash]; collides {
			return nil, fmt.Errorf("%w: records %s and %s share content hash %s after deduplication",
				ErrManifestIntegrity, prev, r.RecordID, r.ContentHash)
		}
		seen[r.ContentHash] = r.RecordID
		records = append(records, ManifestRecord{
			RecordID:    r.RecordID,
			ContentHash: r.ContentHash,
			SourceID:    r.SourceID,
		})
		hashes = append(hashes, r.ContentHash)
	}

	return &DatasetManifest{
		VersionID:   ComputeVersionID(hashes),
		CreatedAt:   createdAt,
		RecordCount: len(records),
		Records:     records,
	}, nil
}
