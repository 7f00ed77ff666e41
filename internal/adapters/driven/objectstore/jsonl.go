// Package objectstore provides record sources and artifact stores over
// object storage and the local filesystem. Batches arrive as JSONL
// objects; snapshots are published as a manifest.json plus records and
// audit JSONL files under the version's prefix.
package objectstore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/custodia-labs/corpora-core/internal/core/domain"
)

const (
	manifestFile = "manifest.json"
	recordsFile  = "records.jsonl"
	auditFile    = "audit.jsonl"

	// maxLineBytes caps a single JSONL line. Eval prompts run long but
	// a multi-megabyte line is a malformed batch, not a record.
	maxLineBytes = 4 * 1024 * 1024
)

// lineReader iterates the non-empty lines of a JSONL stream.
type lineReader struct {
	rc      io.ReadCloser
	scanner *bufio.Scanner
}

func newLineReader(rc io.ReadCloser) *lineReader {
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &lineReader{rc: rc, scanner: scanner}
}

// Next returns a copy of the next non-empty line, or ErrSourceExhausted
// after the last one.
func (r *lineReader) Next(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, fmt.Errorf("read batch line: %w", err)
			}
			return nil, domain.ErrSourceExhausted
		}
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		// The scanner reuses its buffer between calls.
		out := make([]byte, len(line))
		copy(out, line)
		return out, nil
	}
}

func (r *lineReader) Close() error {
	return r.rc.Close()
}

// snapshotFiles renders a snapshot into its three published files.
func snapshotFiles(snap *domain.Snapshot) (manifestJSON, recordsJSONL, auditJSONL []byte, err error) {
	manifestJSON, err = json.MarshalIndent(snap.Manifest, "", "  ")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode manifest: %w", err)
	}
	manifestJSON = append(manifestJSON, '\n')

	var records bytes.Buffer
	enc := json.NewEncoder(&records)
	for _, rec := range snap.Records {
		if err := enc.Encode(rec); err != nil {
			return nil, nil, nil, fmt.Errorf("encode record %s: %w", rec.RecordID, err)
		}
	}

	var audit bytes.Buffer
	enc = json.NewEncoder(&audit)
	for _, entry := range snap.Audit {
		if err := enc.Encode(entry); err != nil {
			return nil, nil, nil, fmt.Errorf("encode audit entry %s: %w", entry.RecordID, err)
		}
	}

	return manifestJSON, records.Bytes(), audit.Bytes(), nil
}
