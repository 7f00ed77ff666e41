package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/custodia-labs/corpora-core/internal/core/domain"
	"github.com/custodia-labs/corpora-core/internal/core/ports/driven/mocks"
)

// baseSentence repeated n times yields texts whose word 5-gram sets are
// identical for any n >= 2, so two different repetition counts are a
// guaranteed LSH candidate pair while still differing in edit distance.
const baseSentence = "the model answers the question"

func repeatedSentence(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = baseSentence
	}
	return strings.Join(parts, " ")
}

// Test helper to create DedupPipeline with mocks
func createTestPipeline(t *testing.T, lines ...string) (
	*DedupPipeline,
	*mocks.MockContentIndex,
	*mocks.MockManifestStore,
	*mocks.MockArtifactStore,
	*mocks.MockRunLock,
) {
	t.Helper()

	index := mocks.NewMockContentIndex()
	manifests := mocks.NewMockManifestStore()
	artifacts := mocks.NewMockArtifactStore()
	lock := mocks.NewMockRunLock()

	pipeline := NewDedupPipeline(DedupPipelineConfig{
		Source:    mocks.NewMockRecordSource("eval-batch", lines...),
		Index:     index,
		Manifests: manifests,
		Artifacts: artifacts,
		Lock:      lock,
		Params:    domain.DefaultParams(),
	})

	return pipeline, index, manifests, artifacts, lock
}

func findAuditEntry(entries []domain.AuditEntry, reason domain.ExclusionReason) (domain.AuditEntry, bool) {
	for _, e := range entries {
		if e.Reason == reason {
			return e, true
		}
	}
	return domain.AuditEntry{}, false
}

// TestNewDedupPipeline tests basic pipeline creation
func TestNewDedupPipeline(t *testing.T) {
	pipeline, _, _, _, _ := createTestPipeline(t)
	if pipeline == nil {
		t.Fatal("expected non-nil pipeline")
	}
	if pipeline.logger == nil {
		t.Error("expected non-nil logger")
	}
	if pipeline.lockTTL != defaultLockTTL {
		t.Errorf("expected default lock TTL, got %v", pipeline.lockTTL)
	}
}

// TestRun_FiveRecordScenario tests the full pipeline over a batch holding
// a base record, a near duplicate, an exact duplicate, an unrelated
// record, and an invalid line
func TestRun_FiveRecordScenario(t *testing.T) {
	r1Text := repeatedSentence(6)
	r2Text := repeatedSentence(5) // prefix of r1, normalized distance 31/185
	r4Text := "ribosomal proteins assemble before nuclear export in eukaryotic cells"

	lines := []string{
		fmt.Sprintf(`{"id": "r1", "text": %q, "ingested_at": "2026-01-01T00:00:00Z"}`, r1Text),
		fmt.Sprintf(`{"id": "r2", "text": %q, "ingested_at": "2026-01-02T00:00:00Z"}`, r2Text),
		fmt.Sprintf(`{"id": "r3", "text": %q, "ingested_at": "2026-01-03T00:00:00Z"}`, r1Text),
		fmt.Sprintf(`{"id": "r4", "text": %q, "ingested_at": "2026-01-04T00:00:00Z"}`, r4Text),
		"{\"id\": \"r5\", \"text\": \"\xff\xfe\"}",
	}

	pipeline, index, manifests, artifacts, lock := createTestPipeline(t, lines...)
	ctx := context.Background()

	result, err := pipeline.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatal("expected Success=true")
	}

	if result.Stats.Input != 5 {
		t.Errorf("expected 5 input records, got %d", result.Stats.Input)
	}
	if result.Stats.Survivors != 2 {
		t.Errorf("expected 2 survivors, got %d", result.Stats.Survivors)
	}
	if result.Stats.ExactDuplicates != 1 {
		t.Errorf("expected 1 exact duplicate, got %d", result.Stats.ExactDuplicates)
	}
	if result.Stats.NearDuplicates != 1 {
		t.Errorf("expected 1 near duplicate, got %d", result.Stats.NearDuplicates)
	}
	if result.Stats.Rejected != 1 {
		t.Errorf("expected 1 rejected record, got %d", result.Stats.Rejected)
	}
	if result.Stats.ConfirmedPairs != 1 {
		t.Errorf("expected 1 confirmed pair, got %d", result.Stats.ConfirmedPairs)
	}

	// The version is content-addressed: survivors r1 and r4 sorted by
	// record ID, hashed over their content hashes
	wantVersion := domain.ComputeVersionID([]string{
		domain.ComputeContentHash(r1Text),
		domain.ComputeContentHash(r4Text),
	})
	if result.VersionID != wantVersion {
		t.Errorf("expected version %s, got %s", wantVersion, result.VersionID)
	}

	// Verify the published manifest
	manifest, err := manifests.Get(ctx, result.VersionID)
	if err != nil {
		t.Fatalf("manifest not published: %v", err)
	}
	if manifest.RecordCount != 2 {
		t.Errorf("expected record count 2, got %d", manifest.RecordCount)
	}
	if manifest.Records[0].RecordID != "r1" || manifest.Records[1].RecordID != "r4" {
		t.Errorf("expected manifest records r1, r4, got %s, %s",
			manifest.Records[0].RecordID, manifest.Records[1].RecordID)
	}

	// Verify the audit trail
	audit, err := manifests.AuditEntries(ctx, result.VersionID)
	if err != nil {
		t.Fatalf("audit entries not published: %v", err)
	}
	if len(audit) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(audit))
	}
	if exact, ok := findAuditEntry(audit, domain.ReasonExactDuplicateOf); !ok {
		t.Error("expected an exact_duplicate_of audit entry")
	} else {
		if exact.RecordID != "r3" {
			t.Errorf("expected exact duplicate r3, got %s", exact.RecordID)
		}
		if exact.DuplicateOf != "r1" {
			t.Errorf("expected r3 to duplicate r1, got %s", exact.DuplicateOf)
		}
	}
	if near, ok := findAuditEntry(audit, domain.ReasonNearDuplicateOf); !ok {
		t.Error("expected a near_duplicate_of audit entry")
	} else {
		if near.RecordID != "r2" {
			t.Errorf("expected near duplicate r2, got %s", near.RecordID)
		}
		if near.DuplicateOf != "r1" {
			t.Errorf("expected r2 to duplicate r1, got %s", near.DuplicateOf)
		}
	}
	if _, ok := findAuditEntry(audit, domain.ReasonEncodingError); !ok {
		t.Error("expected an encoding_error audit entry for the invalid line")
	}

	// Verify persisted state: r1, r2, and r4 hashes were staged and
	// committed (r2 passed exact dedup before losing cluster resolution)
	if !index.Committed() {
		t.Error("expected content index to be committed")
	}
	if index.PersistedCount() != 3 {
		t.Errorf("expected 3 persisted hashes, got %d", index.PersistedCount())
	}

	// Verify the artifact snapshot
	snap := artifacts.LastSnapshot()
	if snap == nil {
		t.Fatal("expected an artifact snapshot")
	}
	if len(snap.Records) != 2 {
		t.Errorf("expected 2 snapshot records, got %d", len(snap.Records))
	}
	if len(snap.Audit) != 3 {
		t.Errorf("expected 3 snapshot audit entries, got %d", len(snap.Audit))
	}

	// Verify the lock was taken and released
	if lock.AcquireCalls() != 1 {
		t.Errorf("expected 1 lock acquisition, got %d", lock.AcquireCalls())
	}
	if lock.IsHeld(runLockName) {
		t.Error("expected run lock to be released")
	}
}

// TestRun_EmptySource tests that a batch yielding no survivors aborts
func TestRun_EmptySource(t *testing.T) {
	pipeline, index, manifests, _, lock := createTestPipeline(t)
	ctx := context.Background()

	result, err := pipeline.Run(ctx)
	if err == nil {
		t.Fatal("expected error for empty batch")
	}
	if !errors.Is(err, domain.ErrManifestIntegrity) {
		t.Errorf("expected ErrManifestIntegrity, got %v", err)
	}
	if result.Success {
		t.Error("expected Success=false")
	}
	if result.Error == "" {
		t.Error("expected error message in result")
	}

	if manifests.SaveCalls() != 0 {
		t.Error("expected no manifest to be published")
	}
	if index.Committed() {
		t.Error("expected content index to stay uncommitted")
	}
	if !index.RolledBack() {
		t.Error("expected content index to be rolled back")
	}
	if lock.IsHeld(runLockName) {
		t.Error("expected run lock to be released on failure")
	}
}

// TestRun_InvalidParams tests that bad parameters abort before any work
func TestRun_InvalidParams(t *testing.T) {
	index := mocks.NewMockContentIndex()
	manifests := mocks.NewMockManifestStore()
	lock := mocks.NewMockRunLock()

	params := domain.DefaultParams()
	params.BandCount = 7 // 7 * 8 != 128

	pipeline := NewDedupPipeline(DedupPipelineConfig{
		Source:    mocks.NewMockRecordSource("eval-batch", `{"text": "hello"}`),
		Index:     index,
		Manifests: manifests,
		Lock:      lock,
		Params:    params,
	})

	result, err := pipeline.Run(context.Background())
	if err == nil {
		t.Fatal("expected configuration error")
	}
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
	if result.Success {
		t.Error("expected Success=false")
	}
	if lock.AcquireCalls() != 0 {
		t.Error("expected no lock acquisition before validation")
	}
	if manifests.SaveCalls() != 0 {
		t.Error("expected no manifest to be published")
	}
}

// TestRun_LockHeld tests that a concurrent run is refused
func TestRun_LockHeld(t *testing.T) {
	pipeline, _, manifests, _, lock := createTestPipeline(t, `{"text": "hello world content"}`)
	lock.SetLockHeld(runLockName, time.Minute)

	result, err := pipeline.Run(context.Background())
	if err == nil {
		t.Fatal("expected error when the run lock is held")
	}
	if !errors.Is(err, domain.ErrRunInProgress) {
		t.Errorf("expected ErrRunInProgress, got %v", err)
	}
	if result.Success {
		t.Error("expected Success=false")
	}
	if manifests.SaveCalls() != 0 {
		t.Error("expected no manifest to be published")
	}
}

// TestRun_PersistedIndexHit tests cross-batch exact deduplication
func TestRun_PersistedIndexHit(t *testing.T) {
	knownText := "previously published record text"
	pipeline, index, manifests, _, _ := createTestPipeline(t,
		fmt.Sprintf(`{"id": "old", "text": %q}`, knownText),
		`{"id": "new", "text": "genuinely new record text"}`,
	)
	index.SeedPersisted(domain.ComputeContentHash(knownText))

	ctx := context.Background()
	result, err := pipeline.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Stats.Survivors != 1 {
		t.Errorf("expected 1 survivor, got %d", result.Stats.Survivors)
	}
	if result.Stats.ExactDuplicates != 1 {
		t.Errorf("expected 1 exact duplicate, got %d", result.Stats.ExactDuplicates)
	}

	audit, _ := manifests.AuditEntries(ctx, result.VersionID)
	entry, ok := findAuditEntry(audit, domain.ReasonExactDuplicateOf)
	if !ok {
		t.Fatal("expected an exact_duplicate_of audit entry")
	}
	if entry.RecordID != "old" {
		t.Errorf("expected record old to be excluded, got %s", entry.RecordID)
	}
	if entry.DuplicateOf != "" {
		t.Errorf("cross-batch duplicates have no in-batch survivor, got %s", entry.DuplicateOf)
	}
	if !strings.Contains(entry.Detail, "persisted index") {
		t.Errorf("expected detail to reference the persisted index, got %q", entry.Detail)
	}
}

// TestRun_DryRun tests that a dry run computes the version but persists
// nothing
func TestRun_DryRun(t *testing.T) {
	lines := []string{
		`{"id": "a", "text": "first record of the trial batch"}`,
		`{"id": "b", "text": "second record of the trial batch"}`,
	}

	index := mocks.NewMockContentIndex()
	manifests := mocks.NewMockManifestStore()
	artifacts := mocks.NewMockArtifactStore()

	pipeline := NewDedupPipeline(DedupPipelineConfig{
		Source:    mocks.NewMockRecordSource("eval-batch", lines...),
		Index:     index,
		Manifests: manifests,
		Artifacts: artifacts,
		Params:    domain.DefaultParams(),
		DryRun:    true,
	})

	result, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Error("expected Success=true")
	}
	if !result.DryRun {
		t.Error("expected DryRun=true in result")
	}
	if result.VersionID == "" {
		t.Error("expected the would-be version to be reported")
	}

	if manifests.SaveCalls() != 0 {
		t.Error("expected no manifest to be published on dry run")
	}
	if artifacts.WriteCalls() != 0 {
		t.Error("expected no artifacts to be written on dry run")
	}
	if index.Committed() {
		t.Error("expected content index to stay uncommitted on dry run")
	}
	if index.PersistedCount() != 0 || index.StagedCount() != 0 {
		t.Error("expected content index to be left untouched on dry run")
	}

	// The dry run reports the same version a real run would publish
	wet, _, _, _, _ := createTestPipeline(t, lines...)
	wetResult, err := wet.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wetResult.VersionID != result.VersionID {
		t.Errorf("dry run version %s differs from real run version %s",
			result.VersionID, wetResult.VersionID)
	}
}

// TestRun_Idempotence tests that identical input from identical starting
// state publishes an identical version
func TestRun_Idempotence(t *testing.T) {
	lines := []string{
		`{"id": "a", "text": "the first stable record"}`,
		`{"id": "b", "text": "the second stable record"}`,
		`{"id": "c", "text": "the third stable record"}`,
	}

	first, _, _, _, _ := createTestPipeline(t, lines...)
	r1, err := first.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, _, _, _, _ := createTestPipeline(t, lines...)
	r2, err := second.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r1.VersionID != r2.VersionID {
		t.Errorf("identical input should publish identical versions: %s vs %s",
			r1.VersionID, r2.VersionID)
	}
}

// TestRun_ShuffledInput tests that input order changes neither cluster
// membership nor representatives
func TestRun_ShuffledInput(t *testing.T) {
	a := fmt.Sprintf(`{"id": "a", "text": %q, "ingested_at": "2026-01-01T00:00:00Z"}`, repeatedSentence(6))
	b := fmt.Sprintf(`{"id": "b", "text": %q, "ingested_at": "2026-01-02T00:00:00Z"}`, repeatedSentence(5))
	c := `{"id": "c", "text": "an unrelated record about astronomy and telescopes"}`

	orders := [][]string{
		{a, b, c},
		{c, b, a},
		{b, c, a},
	}

	var versions []string
	for _, lines := range orders {
		pipeline, _, manifests, _, _ := createTestPipeline(t, lines...)
		result, err := pipeline.Run(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		manifest, err := manifests.Get(context.Background(), result.VersionID)
		if err != nil {
			t.Fatalf("manifest not published: %v", err)
		}
		if manifest.RecordCount != 2 {
			t.Fatalf("expected 2 survivors, got %d", manifest.RecordCount)
		}
		if manifest.Records[0].RecordID != "a" || manifest.Records[1].RecordID != "c" {
			t.Errorf("expected survivors a and c, got %s and %s",
				manifest.Records[0].RecordID, manifest.Records[1].RecordID)
		}

		versions = append(versions, result.VersionID)
	}

	if versions[0] != versions[1] || versions[1] != versions[2] {
		t.Errorf("input order should not change the version: %v", versions)
	}
}

// TestRun_HealsAfterInterruptedPersist tests that a run failing between
// manifest save and index commit heals on retry
func TestRun_HealsAfterInterruptedPersist(t *testing.T) {
	lines := []string{
		`{"id": "a", "text": "the first stable record"}`,
		`{"id": "b", "text": "the second stable record"}`,
	}
	pipeline, index, manifests, _, _ := createTestPipeline(t, lines...)
	ctx := context.Background()

	index.CommitFn = func() error {
		return errors.New("connection reset during commit")
	}

	result, err := pipeline.Run(ctx)
	if err == nil {
		t.Fatal("expected error when index commit fails")
	}
	if result.Success {
		t.Error("expected Success=false")
	}
	if manifests.SaveCalls() != 1 {
		t.Fatalf("expected the manifest to be saved before the failing commit, got %d saves", manifests.SaveCalls())
	}
	if !index.RolledBack() {
		t.Error("expected staged hashes to be rolled back")
	}

	published, err := manifests.Latest(ctx)
	if err != nil {
		t.Fatalf("expected the manifest row to survive the failed run: %v", err)
	}

	// Retry with the commit failure cleared
	index.CommitFn = nil
	retried, err := pipeline.Run(ctx)
	if err != nil {
		t.Fatalf("retry should heal, got: %v", err)
	}
	if retried.VersionID != published.VersionID {
		t.Errorf("retry should republish the same version: %s vs %s",
			retried.VersionID, published.VersionID)
	}
	if !index.Committed() {
		t.Error("expected content index to be committed on retry")
	}
	if index.PersistedCount() != 2 {
		t.Errorf("expected 2 persisted hashes after retry, got %d", index.PersistedCount())
	}
}

// TestRun_CaseFolding tests that case folding is opt-in
func TestRun_CaseFolding(t *testing.T) {
	// Texts differ only in letter case, far apart in edit distance
	lines := []string{
		`{"id": "upper", "text": "SEOUL IS THE CAPITAL OF KOREA"}`,
		`{"id": "lower", "text": "seoul is the capital of korea"}`,
	}

	folded := domain.DefaultParams()
	folded.CaseFold = true

	foldedPipeline := NewDedupPipeline(DedupPipelineConfig{
		Source:    mocks.NewMockRecordSource("eval-batch", lines...),
		Manifests: mocks.NewMockManifestStore(),
		Params:    folded,
	})
	foldedResult, err := foldedPipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if foldedResult.Stats.Survivors != 1 {
		t.Errorf("case folding should merge the records, got %d survivors", foldedResult.Stats.Survivors)
	}
	if foldedResult.Stats.ExactDuplicates != 1 {
		t.Errorf("expected 1 exact duplicate with case folding, got %d", foldedResult.Stats.ExactDuplicates)
	}

	plainPipeline, _, _, _, _ := createTestPipeline(t, lines...)
	plainResult, err := plainPipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plainResult.Stats.Survivors != 2 {
		t.Errorf("without case folding both records should survive, got %d", plainResult.Stats.Survivors)
	}
}

// TestRun_SourceOpenFails tests error when the source cannot be opened
func TestRun_SourceOpenFails(t *testing.T) {
	source := mocks.NewMockRecordSource("eval-batch")
	source.OpenErr = errors.New("bucket unreachable")

	pipeline := NewDedupPipeline(DedupPipelineConfig{
		Source:    source,
		Manifests: mocks.NewMockManifestStore(),
		Params:    domain.DefaultParams(),
	})

	result, err := pipeline.Run(context.Background())
	if err == nil {
		t.Fatal("expected error when source open fails")
	}
	if result.Success {
		t.Error("expected Success=false")
	}
	if !strings.Contains(result.Error, "failed to open record source") {
		t.Errorf("expected error to mention the source, got: %s", result.Error)
	}
}

// TestRun_ManifestSaveFails tests that a failed publish leaves the index
// uncommitted
func TestRun_ManifestSaveFails(t *testing.T) {
	pipeline, index, manifests, _, _ := createTestPipeline(t,
		`{"id": "a", "text": "some record content here"}`,
	)
	manifests.SaveFn = func(manifest *domain.DatasetManifest, audit []domain.AuditEntry) error {
		return errors.New("database unavailable")
	}

	result, err := pipeline.Run(context.Background())
	if err == nil {
		t.Fatal("expected error when manifest save fails")
	}
	if result.Success {
		t.Error("expected Success=false")
	}
	if index.Committed() {
		t.Error("expected content index to stay uncommitted after failed save")
	}
	if !index.RolledBack() {
		t.Error("expected staged hashes to be rolled back")
	}
}

// TestRun_Attestation tests that a configured attestor signs the
// published manifest
func TestRun_Attestation(t *testing.T) {
	attestor := mocks.NewMockManifestAttestor()
	pipeline := NewDedupPipeline(DedupPipelineConfig{
		Source:    mocks.NewMockRecordSource("eval-batch", `{"id": "a", "text": "attested record content"}`),
		Manifests: mocks.NewMockManifestStore(),
		Attestor:  attestor,
		Params:    domain.DefaultParams(),
	})

	result, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Attestation != "attest:"+result.VersionID {
		t.Errorf("expected attestation token for the version, got %q", result.Attestation)
	}

	claims, err := attestor.Verify(result.Attestation)
	if err != nil {
		t.Fatalf("token should verify: %v", err)
	}
	if claims.VersionID != result.VersionID {
		t.Errorf("expected attested version %s, got %s", result.VersionID, claims.VersionID)
	}
}

// TestRun_AttestorFailureDoesNotFailRun tests that attestation is best
// effort once the manifest is durable
func TestRun_AttestorFailureDoesNotFailRun(t *testing.T) {
	attestor := mocks.NewMockManifestAttestor()
	attestor.AttestFn = func(manifest *domain.DatasetManifest) (string, error) {
		return "", errors.New("signing key unavailable")
	}

	manifests := mocks.NewMockManifestStore()
	pipeline := NewDedupPipeline(DedupPipelineConfig{
		Source:    mocks.NewMockRecordSource("eval-batch", `{"id": "a", "text": "attested record content"}`),
		Manifests: manifests,
		Attestor:  attestor,
		Params:    domain.DefaultParams(),
	})

	result, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Error("expected Success=true, the manifest was already published")
	}
	if result.Attestation != "" {
		t.Errorf("expected no attestation token, got %q", result.Attestation)
	}
	if manifests.SaveCalls() != 1 {
		t.Error("expected the manifest to be published despite the attestor failure")
	}
}
