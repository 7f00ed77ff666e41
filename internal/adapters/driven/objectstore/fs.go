package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/corpora-core/internal/core/domain"
	"github.com/custodia-labs/corpora-core/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.RecordSource  = (*FileSource)(nil)
	_ driven.ArtifactStore = (*FileArtifactStore)(nil)
)

// FileSource reads a batch from a local JSONL file. Used for local
// pipeline runs and CI fixtures; production batches come from S3.
type FileSource struct {
	path string
	name string
}

// NewFileSource creates a record source over a local JSONL file.
// The source name is the file name without its extension.
func NewFileSource(path string) *FileSource {
	base := filepath.Base(path)
	return &FileSource{
		path: path,
		name: strings.TrimSuffix(base, filepath.Ext(base)),
	}
}

// Name identifies the batch.
func (s *FileSource) Name() string {
	return s.name
}

// Open starts reading the batch.
func (s *FileSource) Open(ctx context.Context) (driven.RecordReader, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open batch file %s: %w", s.path, err)
	}
	return newLineReader(f), nil
}

// FileArtifactStore writes snapshots under a local root directory, one
// subdirectory per version.
type FileArtifactStore struct {
	root string
}

// NewFileArtifactStore creates an artifact store rooted at dir.
func NewFileArtifactStore(dir string) *FileArtifactStore {
	return &FileArtifactStore{root: dir}
}

// WriteSnapshot writes manifest.json, records.jsonl, and audit.jsonl
// under the version's directory. Rewriting a version replaces its files
// with identical content, so retried runs are safe.
func (s *FileArtifactStore) WriteSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	manifestJSON, recordsJSONL, auditJSONL, err := snapshotFiles(snap)
	if err != nil {
		return err
	}

	dir := filepath.Join(s.root, snap.Manifest.VersionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	files := map[string][]byte{
		manifestFile: manifestJSON,
		recordsFile:  recordsJSONL,
		auditFile:    auditJSONL,
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("write snapshot file %s: %w", name, err)
		}
	}
	return nil
}
