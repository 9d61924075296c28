// Package document reads and writes whole schemas as JSON or YAML documents.
// The JSON form is also what storage backends persist.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tordrt/schemasync/internal/schema"
)

// Format identifies a document encoding
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// ErrInvalidDocument is matched by every InvalidDocumentError
var ErrInvalidDocument = errors.New("invalid schema document")

// InvalidDocumentError describes why a document was rejected
type InvalidDocumentError struct {
	Reason string
	Err    error
}

func (e *InvalidDocumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrInvalidDocument, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidDocument, e.Reason)
}

func (e *InvalidDocumentError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrInvalidDocument) match
func (e *InvalidDocumentError) Is(target error) bool { return target == ErrInvalidDocument }

func invalid(format string, args ...any) error {
	return &InvalidDocumentError{Reason: fmt.Sprintf(format, args...)}
}

// ParseFormat accepts json, yaml or yml in any case
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	}
	return "", fmt.Errorf("unsupported document format: %s (supported: json, yaml)", s)
}

// FormatFromPath picks the format from a file extension, defaulting to JSON
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	}
	return JSON
}

// Encode writes s to w
func Encode(w io.Writer, s schema.Schema, format Format) error {
	s = normalize(s)
	switch format {
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("failed to encode yaml document: %w", err)
		}
		return enc.Close()
	case JSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("failed to encode json document: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unsupported document format: %s", format)
}

// Decode reads and validates a schema document. Malformed or inconsistent
// documents produce an *InvalidDocumentError.
func Decode(r io.Reader, format Format) (schema.Schema, error) {
	var s schema.Schema
	switch format {
	case YAML:
		if err := yaml.NewDecoder(r).Decode(&s); err != nil {
			if errors.Is(err, io.EOF) {
				return schema.Schema{}, invalid("empty document")
			}
			return schema.Schema{}, &InvalidDocumentError{Reason: "malformed yaml", Err: err}
		}
	case JSON, "":
		if err := json.NewDecoder(r).Decode(&s); err != nil {
			if errors.Is(err, io.EOF) {
				return schema.Schema{}, invalid("empty document")
			}
			return schema.Schema{}, &InvalidDocumentError{Reason: "malformed json", Err: err}
		}
	default:
		return schema.Schema{}, fmt.Errorf("unsupported document format: %s", format)
	}

	s = normalize(s)
	if err := Validate(s); err != nil {
		return schema.Schema{}, err
	}
	return s, nil
}

// Marshal returns the JSON document for s
func Marshal(s schema.Schema) ([]byte, error) {
	data, err := json.Marshal(normalize(s))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

// Unmarshal parses and validates a JSON document
func Unmarshal(data []byte) (schema.Schema, error) {
	return Decode(bytes.NewReader(data), JSON)
}

// Validate checks that every entity has an id unique in its scope and that
// relation types are known. Dangling relation endpoints are allowed.
func Validate(s schema.Schema) error {
	tableIDs := make(map[string]bool, len(s.Tables))
	for i, t := range s.Tables {
		if t.ID == "" {
			return invalid("table %d (%q) has no id", i, t.Name)
		}
		if tableIDs[t.ID] {
			return invalid("duplicate table id %q", t.ID)
		}
		tableIDs[t.ID] = true

		colIDs := make(map[string]bool, len(t.Columns))
		for j, c := range t.Columns {
			if c.ID == "" {
				return invalid("column %d (%q) of table %q has no id", j, c.Name, t.Name)
			}
			if colIDs[c.ID] {
				return invalid("duplicate column id %q in table %q", c.ID, t.Name)
			}
			colIDs[c.ID] = true
		}
	}

	relIDs := make(map[string]bool, len(s.Relations))
	for i, r := range s.Relations {
		if r.ID == "" {
			return invalid("relation %d has no id", i)
		}
		if relIDs[r.ID] {
			return invalid("duplicate relation id %q", r.ID)
		}
		relIDs[r.ID] = true
		if !r.Type.Valid() {
			return invalid("relation %q has unknown type %q", r.ID, r.Type)
		}
	}
	return nil
}

// normalize replaces nil slices with empty ones and defaults relation types
func normalize(s schema.Schema) schema.Schema {
	s = s.Clone()
	for i := range s.Relations {
		if s.Relations[i].Type == "" {
			s.Relations[i].Type = schema.OneToMany
		}
	}
	return s
}
