package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/custodia-labs/corpora-core/internal/core/domain"
)

func writeSpecFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write spec file: %v", err)
	}
	return path
}

func TestLoadDatasetSpec(t *testing.T) {
	path := writeSpecFile(t, `
metadata:
  name: mmlu-ko
spec:
  storage:
    bucket: eval-datasets
    path: mmlu-ko/raw
    format: jsonl
  deduplication:
    shingle_size: 3
    max_distance: 0.25
    case_fold: true
`)

	spec, err := LoadDatasetSpec(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Metadata.Name != "mmlu-ko" {
		t.Errorf("expected name mmlu-ko, got %s", spec.Metadata.Name)
	}
	if spec.Spec.Storage.Bucket != "eval-datasets" || spec.Spec.Storage.Path != "mmlu-ko/raw" {
		t.Errorf("unexpected storage coordinates: %+v", spec.Spec.Storage)
	}
	if spec.Spec.Storage.Format != "jsonl" {
		t.Errorf("expected format jsonl, got %s", spec.Spec.Storage.Format)
	}

	params := domain.DefaultParams()
	spec.Spec.Deduplication.Apply(&params)
	if params.ShingleSize != 3 {
		t.Errorf("override should set shingle size 3, got %d", params.ShingleSize)
	}
	if params.MaxDistance != 0.25 {
		t.Errorf("override should set max distance 0.25, got %g", params.MaxDistance)
	}
	if !params.CaseFold {
		t.Error("override should enable case folding")
	}
	// Untouched fields keep their defaults
	if params.SignatureSize != domain.DefaultSignatureSize {
		t.Errorf("signature size should stay default, got %d", params.SignatureSize)
	}
}

func TestLoadDatasetSpecInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing name", "spec:\n  storage:\n    bucket: b\n    path: p\n"},
		{"missing storage", "metadata:\n  name: x\n"},
		{"not yaml", "{{{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSpecFile(t, tt.content)
			_, err := LoadDatasetSpec(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, domain.ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestLoadDatasetSpecMissingFile(t *testing.T) {
	_, err := LoadDatasetSpec(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDedupOverridesNilApply(t *testing.T) {
	params := domain.DefaultParams()
	var overrides *DedupOverrides
	overrides.Apply(&params)

	if params != domain.DefaultParams() {
		t.Error("nil overrides should not change params")
	}
}
