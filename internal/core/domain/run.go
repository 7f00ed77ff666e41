package domain

import "time"

// DedupStats holds per-run accounting for one batch
type DedupStats struct {
	Input           int `json:"input"`
	Survivors       int `json:"survivors"`
	ExactDuplicates int `json:"exact_duplicates"`
	NearDuplicates  int `json:"near_duplicates"`
	Rejected        int `json:"rejected"`
	CandidatePairs  int `json:"candidate_pairs"`
	ConfirmedPairs  int `json:"confirmed_pairs"`
}

// DedupRate returns the fraction of input records removed as duplicates.
func (s DedupStats) DedupRate() float64 {
	if s.Input == 0 {
		return 0
	}
	return float64(s.ExactDuplicates+s.NearDuplicates) / float64(s.Input)
}

// RunResult represents the outcome of one pipeline run
type RunResult struct {
	RunID       string     `json:"run_id"`
	VersionID   string     `json:"version_id,omitempty"`
	Success     bool       `json:"success"`
	DryRun      bool       `json:"dry_run,omitempty"`
	Stats       DedupStats `json:"stats"`
	Error       string     `json:"error,omitempty"`
	Duration    float64    `json:"duration_seconds"`
	StartedAt   time.Time  `json:"started_at"`
	Attestation string     `json:"attestation,omitempty"` // Signed manifest token when attestation is configured
}
