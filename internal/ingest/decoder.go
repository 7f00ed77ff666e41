package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/custodia-labs/corpora-core/internal/core/domain"
)

// recordSchema is the fixed shape every input line must satisfy before it
// enters the pipeline. At least one text-bearing field is required; IDs,
// sources, and timestamps are optional and defaulted.
const recordSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"source": {"type": "string", "minLength": 1},
		"text": {"type": "string"},
		"question": {"type": "string"},
		"query": {"type": "string"},
		"prompt": {"type": "string"},
		"input": {"type": "string"},
		"context": {"type": "string"},
		"choices": {"type": "array"},
		"ingested_at": {"type": "string"}
	},
	"anyOf": [
		{"required": ["text"]},
		{"required": ["question"]},
		{"required": ["query"]},
		{"required": ["prompt"]},
		{"required": ["input"]},
		{"required": ["context"]}
	]
}`

// textFields are joined in this order when extracting a line's content,
// matching the upstream dataset shapes (MMLU, ARC, KLUE and friends).
var textFields = []string{"question", "query", "text", "prompt", "input", "context"}

// Decoder turns raw JSONL lines into domain records, validating each line
// against the record schema at the ingestion boundary.
type Decoder struct {
	schema        *jsonschema.Schema
	defaultSource string
	runStart      time.Time
}

// NewDecoder creates a decoder. defaultSource names records whose lines
// carry no source field; runStart stamps records whose lines carry no
// ingestion timestamp.
func NewDecoder(defaultSource string, runStart time.Time) (*Decoder, error) {
	schema, err := jsonschema.CompileString("record.schema.json", recordSchema)
	if err != nil {
		return nil, fmt.Errorf("compile record schema: %w", err)
	}
	return &Decoder{
		schema:        schema,
		defaultSource: defaultSource,
		runStart:      runStart,
	}, nil
}

// DecodeLine validates and decodes one JSONL line. position is the
// zero-based line number within the batch; it feeds derived record IDs so
// identical batches produce identical IDs. Lines that are not valid UTF-8
// wrap domain.ErrInvalidEncoding; other validation failures wrap
// domain.ErrInvalidRecord. Both are recoverable per-record.
func (d *Decoder) DecodeLine(line []byte, position int) (*domain.Record, error) {
	// Checked on the raw bytes: encoding/json would silently coerce invalid
	// sequences to U+FFFD, and a mangled record must be rejected, not mangled
	if !utf8.Valid(line) {
		return nil, fmt.Errorf("%w: line %d is not valid UTF-8", domain.ErrInvalidEncoding, position)
	}

	var decoded any
	if err := json.Unmarshal(line, &decoded); err != nil {
		return nil, fmt.Errorf("%w: line %d is not valid JSON: %v", domain.ErrInvalidRecord, position, err)
	}
	if err := d.schema.Validate(decoded); err != nil {
		return nil, fmt.Errorf("%w: line %d failed schema validation: %v", domain.ErrInvalidRecord, position, err)
	}

	fields, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: line %d is not an object", domain.ErrInvalidRecord, position)
	}

	// Empty extracted text passes through: the canonicalizer classifies
	// it as empty_after_canonicalization with the rest of the audit trail
	text := ExtractText(fields)

	source := d.defaultSource
	if s, ok := fields["source"].(string); ok && s != "" {
		source = s
	}

	ingestedAt := d.runStart
	if ts, ok := fields["ingested_at"].(string); ok && ts != "" {
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d has malformed ingested_at %q", domain.ErrInvalidRecord, position, ts)
		}
		ingestedAt = parsed
	}

	id, _ := fields["id"].(string)
	if id == "" {
		id = domain.DeriveRecordID(source, position, text)
	}

	return &domain.Record{
		RecordID:   id,
		SourceID:   source,
		RawText:    text,
		Position:   position,
		IngestedAt: ingestedAt,
	}, nil
}

// ExtractText joins every present text-bearing field plus stringified
// choices entries with single spaces.
func ExtractText(fields map[string]any) string {
	var parts []string
	for _, name := range textFields {
		if v, ok := fields[name].(string); ok {
			parts = append(parts, v)
		}
	}
	if choices, ok := fields["choices"].([]any); ok {
		for _, choice := range choices {
			parts = append(parts, fmt.Sprintf("%v", choice))
		}
	}
	return strings.Join(parts, " ")
}
