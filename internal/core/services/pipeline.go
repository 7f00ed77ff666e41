package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/corpora-core/internal/canonical"
	"github.com/custodia-labs/corpora-core/internal/cluster"
	"github.com/custodia-labs/corpora-core/internal/core/domain"
	"github.com/custodia-labs/corpora-core/internal/core/ports/driven"
	"github.com/custodia-labs/corpora-core/internal/ingest"
	"github.com/custodia-labs/corpora-core/internal/minhash"
	"github.com/custodia-labs/corpora-core/internal/similarity"
	"github.com/custodia-labs/corpora-core/internal/worker"
)

const (
	// runLockName is the lock every dedup run contends on. The content
	// index allows at most one writer, so all runs share one name.
	runLockName = "dedup-run"

	// defaultLockTTL covers a typical batch with slack; the lock is
	// extended before the persist phase for long runs.
	defaultLockTTL = 5 * time.Minute
)

// DedupPipeline coordinates the dataset deduplication pipeline.
// It implements the 9-step batch flow:
//  1. Acquire the run lock (single index writer)
//  2. Stream and decode records from the source
//  3. Canonicalize + fingerprint in parallel
//  4. Exact-match dedup against batch and persisted index (input order)
//  5. LSH bucketing over surviving signatures
//  6. Confirm candidate pairs in parallel
//  7. Resolve clusters, select representatives
//  8. Build the manifest; persist artifacts, manifest, and index
//  9. Release the lock and report the result
type DedupPipeline struct {
	source    driven.RecordSource
	index     driven.ContentIndex
	manifests driven.ManifestStore
	artifacts driven.ArtifactStore
	lock      driven.RunLock
	attestor  driven.ManifestAttestor
	params    domain.Params
	pool      *worker.Pool
	dryRun    bool
	lockTTL   time.Duration
	logger    *slog.Logger
}

// DedupPipelineConfig holds dependencies for DedupPipeline.
type DedupPipelineConfig struct {
	Source    driven.RecordSource
	Index     driven.ContentIndex     // Optional: cross-batch exact dedup when set
	Manifests driven.ManifestStore
	Artifacts driven.ArtifactStore    // Optional: snapshot files when set
	Lock      driven.RunLock          // Optional: run serialization when set
	Attestor  driven.ManifestAttestor // Optional: signed manifests when set
	Params    domain.Params
	DryRun    bool
	LockTTL   time.Duration // TTL for the run lock (default: 5m)
	Logger    *slog.Logger
}

// NewDedupPipeline creates a new dedup pipeline.
func NewDedupPipeline(cfg DedupPipelineConfig) *DedupPipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = defaultLockTTL
	}

	return &DedupPipeline{
		source:    cfg.Source,
		index:     cfg.Index,
		manifests: cfg.Manifests,
		artifacts: cfg.Artifacts,
		lock:      cfg.Lock,
		attestor:  cfg.Attestor,
		params:    cfg.Params,
		pool:      worker.NewPool(cfg.Params.Workers),
		dryRun:    cfg.DryRun,
		lockTTL:   lockTTL,
		logger:    logger,
	}
}

// Run executes one batch end to end.
// This is the main entry point for the dedup pipeline.
func (p *DedupPipeline) Run(ctx context.Context) (*domain.RunResult, error) {
	startTime := time.Now().UTC()
	runID := domain.NewRunID()

	p.logger.Info("starting dedup run",
		"run_id", runID,
		"source", p.source.Name(),
		"dry_run", p.dryRun,
	)

	// Parameters are validated before any data is read
	if err := p.params.Validate(); err != nil {
		return p.failRun(ctx, runID, startTime, nil, err)
	}

	// Step 1: Acquire the run lock
	if p.lock != nil {
		acquired, err := p.lock.Acquire(ctx, runLockName, p.lockTTL)
		if err != nil {
			return p.failRun(ctx, runID, startTime, nil, fmt.Errorf("failed to acquire run lock: %w", err))
		}
		if !acquired {
			return p.failRun(ctx, runID, startTime, nil, domain.ErrRunInProgress)
		}
		defer func() {
			if err := p.lock.Release(ctx, runLockName); err != nil {
				p.logger.Warn("failed to release run lock", "error", err)
			}
		}()
	}

	stats := domain.DedupStats{}
	var audit []domain.AuditEntry

	// Step 2: Stream and decode records
	records, decodeAudit, err := p.readBatch(ctx, startTime)
	if err != nil {
		return p.failRun(ctx, runID, startTime, &stats, err)
	}
	audit = append(audit, decodeAudit...)
	stats.Input = len(records) + len(decodeAudit)
	stats.Rejected = len(decodeAudit)

	p.logger.Debug("batch read", "run_id", runID, "records", len(records), "rejected_lines", len(decodeAudit))

	// Step 3: Canonicalize and fingerprint in parallel
	kept, signatures, stageAudit, err := p.canonicalizeAll(ctx, records, startTime)
	if err != nil {
		return p.failRun(ctx, runID, startTime, &stats, err)
	}
	audit = append(audit, stageAudit...)
	stats.Rejected += len(stageAudit)

	// Step 4: Exact-match dedup, sequential in input order
	kept, signatures, stageAudit, err = p.exactDedup(ctx, kept, signatures, startTime)
	if err != nil {
		return p.failRun(ctx, runID, startTime, &stats, err)
	}
	audit = append(audit, stageAudit...)
	stats.ExactDuplicates = len(stageAudit)

	p.logger.Debug("exact dedup complete",
		"run_id", runID,
		"survivors", len(kept),
		"exact_duplicates", stats.ExactDuplicates,
	)

	byID := make(map[string]*domain.Record, len(kept))
	for _, rec := range kept {
		byID[rec.RecordID] = rec
	}

	// Step 5: LSH bucketing over the surviving signatures
	pairs := p.findCandidates(kept, signatures)
	stats.CandidatePairs = len(pairs)

	// Step 6: Confirm candidate pairs in parallel
	confirmed, err := p.confirmPairs(ctx, pairs, byID)
	if err != nil {
		return p.failRun(ctx, runID, startTime, &stats, err)
	}
	stats.ConfirmedPairs = len(confirmed)

	p.logger.Debug("confirmation complete",
		"run_id", runID,
		"candidate_pairs", stats.CandidatePairs,
		"confirmed_pairs", stats.ConfirmedPairs,
	)

	// Step 7: Resolve clusters and select representatives
	survivors, stageAudit := p.resolveClusters(kept, confirmed, byID, startTime)
	audit = append(audit, stageAudit...)
	stats.NearDuplicates = len(stageAudit)
	stats.Survivors = len(survivors)

	// Step 8: Build the manifest and persist
	manifest, err := domain.NewManifest(survivors, startTime)
	if err != nil {
		return p.failRun(ctx, runID, startTime, &stats, err)
	}

	if p.dryRun {
		// Nothing is published: staged index inserts are discarded and
		// the would-be version is only reported
		if p.index != nil {
			if err := p.index.Rollback(ctx); err != nil {
				p.logger.Warn("failed to roll back content index after dry run", "error", err)
			}
		}
		return p.report(runID, manifest.VersionID, "", startTime, stats), nil
	}

	if p.lock != nil {
		if err := p.lock.Extend(ctx, runLockName, p.lockTTL); err != nil {
			p.logger.Warn("failed to extend run lock before persist", "error", err)
		}
	}

	if err := p.persist(ctx, manifest, survivors, audit, byID); err != nil {
		return p.failRun(ctx, runID, startTime, &stats, err)
	}

	attestation := ""
	if p.attestor != nil {
		token, err := p.attestor.Attest(manifest)
		if err != nil {
			p.logger.Warn("failed to attest manifest", "version_id", manifest.VersionID, "error", err)
		} else {
			attestation = token
		}
	}

	result := p.report(runID, manifest.VersionID, attestation, startTime, stats)

	p.logger.Info("dedup run completed",
		"run_id", runID,
		"version_id", manifest.VersionID,
		"duration_seconds", result.Duration,
		"input", stats.Input,
		"survivors", stats.Survivors,
		"exact_duplicates", stats.ExactDuplicates,
		"near_duplicates", stats.NearDuplicates,
		"rejected", stats.Rejected,
	)

	return result, nil
}

// readBatch streams the source and decodes every line. Invalid lines are
// audit-logged and skipped; source failures abort the run.
func (p *DedupPipeline) readBatch(ctx context.Context, startTime time.Time) ([]*domain.Record, []domain.AuditEntry, error) {
	decoder, err := ingest.NewDecoder(p.source.Name(), startTime)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build record decoder: %w", err)
	}

	reader, err := p.source.Open(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open record source: %w", err)
	}
	defer reader.Close()

	var records []*domain.Record
	var audit []domain.AuditEntry
	position := 0

	for {
		line, err := reader.Next(ctx)
		if errors.Is(err, domain.ErrSourceExhausted) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read record source: %w", err)
		}

		rec, err := decoder.DecodeLine(line, position)
		if err != nil {
			p.logger.Warn("rejecting undecodable line",
				"source", p.source.Name(),
				"position", position,
				"error", err,
			)
			audit = append(audit, domain.AuditEntry{
				RecordID:  domain.DeriveRecordID(p.source.Name(), position, string(line)),
				SourceID:  p.source.Name(),
				Reason:    domain.ReasonEncodingError,
				Detail:    err.Error(),
				CreatedAt: startTime,
			})
			position++
			continue
		}

		records = append(records, rec)
		position++
	}

	return records, audit, nil
}

// canonicalizeAll canonicalizes and fingerprints records on the worker
// pool, then classifies per-record failures in input order. Returned
// records carry canonical text and content hash; the signature at
// position i belongs to the record at position i.
func (p *DedupPipeline) canonicalizeAll(
	ctx context.Context,
	records []*domain.Record,
	startTime time.Time,
) ([]*domain.Record, []minhash.Signature, []domain.AuditEntry, error) {
	canonicalizer := canonical.New(canonical.Config{CaseFold: p.params.CaseFold})
	generator := minhash.NewGenerator(p.params.ShingleSize, p.params.SignatureSize)

	results := make([]struct {
		sig minhash.Signature
		err error
	}, len(records))

	err := p.pool.ForEach(ctx, len(records), func(ctx context.Context, i int) error {
		rec := records[i]
		canonicalText, err := canonicalizer.Canonicalize(rec.RawText)
		if err != nil {
			results[i].err = err
			return nil
		}
		rec.CanonicalText = canonicalText
		rec.ContentHash = domain.ComputeContentHash(canonicalText)
		results[i].sig = generator.Sketch(canonicalText)
		return nil
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("canonicalization stage aborted: %w", err)
	}

	kept := make([]*domain.Record, 0, len(records))
	signatures := make([]minhash.Signature, 0, len(records))
	var audit []domain.AuditEntry

	for i, rec := range records {
		if stageErr := results[i].err; stageErr != nil {
			reason := domain.ReasonEncodingError
			if errors.Is(stageErr, domain.ErrEmptyRecord) {
				reason = domain.ReasonEmptyAfterCanonicalization
			}
			p.logger.Warn("rejecting record",
				"record_id", rec.RecordID,
				"source", rec.SourceID,
				"reason", reason,
			)
			audit = append(audit, domain.AuditEntry{
				RecordID:  rec.RecordID,
				SourceID:  rec.SourceID,
				Reason:    reason,
				Detail:    stageErr.Error(),
				CreatedAt: startTime,
			})
			continue
		}
		kept = append(kept, rec)
		signatures = append(signatures, results[i].sig)
	}

	return kept, signatures, audit, nil
}

// exactDedup removes records whose content hash was already seen in this
// batch or in the persisted index. The first occurrence in input order
// survives. A hash shared by differing canonical texts is a fatal
// integrity error.
func (p *DedupPipeline) exactDedup(
	ctx context.Context,
	records []*domain.Record,
	signatures []minhash.Signature,
	startTime time.Time,
) ([]*domain.Record, []minhash.Signature, []domain.AuditEntry, error) {
	firstByHash := make(map[string]*domain.Record, len(records))
	kept := make([]*domain.Record, 0, len(records))
	keptSigs := make([]minhash.Signature, 0, len(records))
	var audit []domain.AuditEntry

	for i, rec := range records {
		if first, ok := firstByHash[rec.ContentHash]; ok {
			if first.CanonicalText != rec.CanonicalText {
				return nil, nil, nil, fmt.Errorf(
					"%w: records %s and %s share hash %s with differing content",
					domain.ErrManifestIntegrity, first.RecordID, rec.RecordID, rec.ContentHash,
				)
			}
			audit = append(audit, domain.AuditEntry{
				RecordID:    rec.RecordID,
				SourceID:    rec.SourceID,
				Reason:      domain.ReasonExactDuplicateOf,
				DuplicateOf: first.RecordID,
				CreatedAt:   startTime,
			})
			continue
		}

		if p.index != nil {
			exists, err := p.index.Contains(ctx, rec.ContentHash)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("failed to query content index: %w", err)
			}
			if exists {
				// The survivor lives in a previously published version;
				// the index keeps hashes only, so the entry is referenced
				// by hash rather than record ID
				audit = append(audit, domain.AuditEntry{
					RecordID:  rec.RecordID,
					SourceID:  rec.SourceID,
					Reason:    domain.ReasonExactDuplicateOf,
					Detail:    fmt.Sprintf("content hash %s already in persisted index", rec.ContentHash),
					CreatedAt: startTime,
				})
				continue
			}
			if err := p.index.Insert(ctx, rec.ContentHash); err != nil {
				return nil, nil, nil, fmt.Errorf("failed to stage content hash: %w", err)
			}
		}

		firstByHash[rec.ContentHash] = rec
		kept = append(kept, rec)
		keptSigs = append(keptSigs, signatures[i])
	}

	return kept, keptSigs, audit, nil
}

// findCandidates buckets the surviving signatures and returns the
// deduplicated candidate pairs.
func (p *DedupPipeline) findCandidates(records []*domain.Record, signatures []minhash.Signature) []domain.DuplicatePair {
	index := minhash.NewIndex(p.params.BandCount, p.params.RowsPerBand)
	for i, rec := range records {
		index.Add(rec.RecordID, signatures[i])
	}
	return index.CandidatePairs()
}

// confirmPairs runs Levenshtein confirmation over the candidate pairs on
// the worker pool and returns the confirmed subset in candidate order.
func (p *DedupPipeline) confirmPairs(
	ctx context.Context,
	pairs []domain.DuplicatePair,
	byID map[string]*domain.Record,
) ([]domain.DuplicatePair, error) {
	confirmer := similarity.NewConfirmer(p.params.MaxDistance)

	type verdict struct {
		distance  float64
		confirmed bool
	}
	verdicts := make([]verdict, len(pairs))

	err := p.pool.ForEach(ctx, len(pairs), func(ctx context.Context, i int) error {
		a := byID[pairs[i].A]
		b := byID[pairs[i].B]
		distance, ok := confirmer.Confirm(a.CanonicalText, b.CanonicalText)
		verdicts[i] = verdict{distance: distance, confirmed: ok}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("confirmation stage aborted: %w", err)
	}

	confirmed := make([]domain.DuplicatePair, 0, len(pairs))
	for i, pair := range pairs {
		if !verdicts[i].confirmed {
			continue
		}
		pair.NormalizedDistance = verdicts[i].distance
		confirmed = append(confirmed, pair)
	}

	return confirmed, nil
}

// resolveClusters unions the confirmed pairs, selects representatives,
// and returns the surviving records in input order plus audit entries
// for the excluded cluster members.
func (p *DedupPipeline) resolveClusters(
	records []*domain.Record,
	confirmed []domain.DuplicatePair,
	byID map[string]*domain.Record,
	startTime time.Time,
) ([]*domain.Record, []domain.AuditEntry) {
	clusters := cluster.Resolve(confirmed, byID)

	excluded := make(map[string]string) // member ID -> representative ID
	for _, c := range clusters {
		for _, member := range c.Members {
			if member != c.Representative {
				excluded[member] = c.Representative
			}
		}
	}

	survivors := make([]*domain.Record, 0, len(records))
	var audit []domain.AuditEntry
	for _, rec := range records {
		rep, isDuplicate := excluded[rec.RecordID]
		if !isDuplicate {
			survivors = append(survivors, rec)
			continue
		}
		audit = append(audit, domain.AuditEntry{
			RecordID:    rec.RecordID,
			SourceID:    rec.SourceID,
			Reason:      domain.ReasonNearDuplicateOf,
			DuplicateOf: rep,
			CreatedAt:   startTime,
		})
	}

	return survivors, audit
}

// persist publishes the run's outputs in recovery-safe order: artifact
// files first, then the manifest row, then the index commit. A crash
// between the steps heals on re-run because the version ID is
// reproducible and both the manifest save and index inserts are
// idempotent.
func (p *DedupPipeline) persist(
	ctx context.Context,
	manifest *domain.DatasetManifest,
	survivors []*domain.Record,
	audit []domain.AuditEntry,
	byID map[string]*domain.Record,
) error {
	if p.artifacts != nil {
		ordered := make([]*domain.Record, 0, len(survivors))
		for _, mr := range manifest.Records {
			if rec, ok := byID[mr.RecordID]; ok {
				ordered = append(ordered, rec)
			}
		}
		snap := &domain.Snapshot{
			Manifest: manifest,
			Records:  ordered,
			Audit:    audit,
		}
		if err := p.artifacts.WriteSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("failed to write artifact snapshot: %w", err)
		}
	}

	if err := p.manifests.Save(ctx, manifest, audit); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}

	if p.index != nil {
		if err := p.index.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit content index: %w", err)
		}
	}

	return nil
}

// report assembles the run result.
func (p *DedupPipeline) report(runID, versionID, attestation string, startTime time.Time, stats domain.DedupStats) *domain.RunResult {
	return &domain.RunResult{
		RunID:       runID,
		VersionID:   versionID,
		Success:     true,
		DryRun:      p.dryRun,
		Stats:       stats,
		Duration:    time.Since(startTime).Seconds(),
		StartedAt:   startTime,
		Attestation: attestation,
	}
}

// failRun rolls back staged index state, logs, and returns the failed
// result. A failed run is equivalent to no run: nothing it staged
// survives.
func (p *DedupPipeline) failRun(
	ctx context.Context,
	runID string,
	startTime time.Time,
	stats *domain.DedupStats,
	err error,
) (*domain.RunResult, error) {
	duration := time.Since(startTime).Seconds()

	p.logger.Error("dedup run failed", "run_id", runID, "duration_seconds", duration, "error", err)

	if p.index != nil {
		if rbErr := p.index.Rollback(ctx); rbErr != nil {
			p.logger.Warn("failed to roll back content index", "run_id", runID, "error", rbErr)
		}
	}

	result := &domain.RunResult{
		RunID:     runID,
		Success:   false,
		DryRun:    p.dryRun,
		Error:     err.Error(),
		Duration:  duration,
		StartedAt: startTime,
	}
	if stats != nil {
		result.Stats = *stats
	}
	return result, err
}
