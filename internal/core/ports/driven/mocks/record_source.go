package mocks

import (
	"context"

	"github.com/custodia-labs/corpora-core/internal/core/domain"
	"github.com/custodia-labs/corpora-core/internal/core/ports/driven"
)

// MockRecordSource is a mock implementation of RecordSource serving lines
// from memory.
type MockRecordSource struct {
	name  string
	lines [][]byte

	// Custom behavior hooks (optional)
	OpenErr error
	ReadErr error
}

// NewMockRecordSource creates a source named name serving the given lines.
func NewMockRecordSource(name string, lines ...string) *MockRecordSource {
	raw := make([][]byte, len(lines))
	for i, line := range lines {
		raw[i] = []byte(line)
	}
	return &MockRecordSource{name: name, lines: raw}
}

func (m *MockRecordSource) Open(ctx context.Context) (driven.RecordReader, error) {
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	return &mockRecordReader{lines: m.lines, readErr: m.ReadErr}, nil
}

func (m *MockRecordSource) Name() string {
	return m.name
}

type mockRecordReader struct {
	lines   [][]byte
	pos     int
	readErr error
}

func (r *mockRecordReader) Next(ctx context.Context) ([]byte, error) {
	if r.readErr != nil {
		return nil, r.readErr
	}
	if r.pos >= len(r.lines) {
		return nil, domain.ErrSourceExhausted
	}
	line := r.lines[r.pos]
	r.pos++
	return line, nil
}

func (r *mockRecordReader) Close() error {
	return nil
}
