package codec

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quillblog/quill/internal/apperr"
)

// DocumentVersion is the current export format version.
const DocumentVersion = 1

// Format is an export file format.
type Format string

const (
	// FormatJSON encodes documents as indented JSON.
	FormatJSON Format = "json"
	// FormatYAML encodes documents as YAML.
	FormatYAML Format = "yaml"
)

// Document is a full settings export. It keeps keys flat so an import
// recreates exactly the exported keys.
type Document struct {
	Version    int             `json:"version"    yaml:"version"`
	ExportedAt time.Time       `json:"exportedAt" yaml:"exportedAt"`
	Settings   []DocumentEntry `json:"settings"   yaml:"settings"`
}

// DocumentEntry is one exported setting with its decoded value.
type DocumentEntry struct {
	Key   string `json:"key"   yaml:"key"`
	Group string `json:"group" yaml:"group"`
	Value any    `json:"value" yaml:"value"`
}

// FormatFromPath picks the format from a file name, defaulting to JSON.
func FormatFromPath(path string) Format {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return FormatYAML
	}

	return FormatJSON
}

// NewDocument builds an export document from stored entries.
func NewDocument(entries []Entry, now time.Time) Document {
	doc := Document{
		Version:    DocumentVersion,
		ExportedAt: now.UTC(),
		Settings:   make([]DocumentEntry, 0, len(entries)),
	}

	for _, e := range entries {
		doc.Settings = append(doc.Settings, DocumentEntry{Key: e.Key, Group: e.Group, Value: e.Value.Decode()})
	}

	return doc
}

// Entries converts the document back into flat entries.
func (d Document) Entries() ([]Entry, error) {
	if d.Version > DocumentVersion {
		return nil, apperr.Validation("unsupported document version %d", d.Version)
	}

	out := make([]Entry, 0, len(d.Settings))

	for i, s := range d.Settings {
		v, err := ValueOf(s.Value)
		if err != nil {
			return nil, fmt.Errorf("settings[%d] %s: %w", i, s.Key, err)
		}

		out = append(out, Entry{Key: s.Key, Value: v, Group: s.Group})
	}

	return out, nil
}

// EncodeDocument writes doc to w.
func EncodeDocument(w io.Writer, doc Document, format Format) error {
	if format == FormatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2) //nolint:mnd

		if err := enc.Encode(doc); err != nil {
			return err
		}

		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(doc)
}

// DecodeDocument reads a document from r.
func DecodeDocument(r io.Reader, format Format) (Document, error) {
	var (
		doc Document
		err error
	)

	if format == FormatYAML {
		err = yaml.NewDecoder(r).Decode(&doc)
	} else {
		err = json.NewDecoder(r).Decode(&doc)
	}

	if err != nil {
		return Document{}, apperr.Validation("decode %s document: %v", format, err)
	}

	return doc, nil
}
