package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/poiesic/clinicalner/core"
)

// Batch is a decoded artifact.
type Batch struct {
	Name   string
	Path   string
	Digest string
	// Legacy is set for bare JSON arrays without an envelope. They carry no digest.
	Legacy    bool
	Envelope  Envelope
	Documents []*core.ProcessedDocument
}

// wireEnvelope keeps the documents raw so the digest covers the bytes on disk.
type wireEnvelope struct {
	FormatVersion int             `json:"format_version"`
	RunID         string          `json:"run_id"`
	Sequence      int             `json:"sequence"`
	CreatedAt     time.Time       `json:"created_at"`
	DocumentCount int             `json:"document_count"`
	Digest        string          `json:"digest"`
	Documents     json.RawMessage `json:"documents"`
}

// List returns the paths of all artifacts in dir sorted by file name.
// Hidden and temporary files are ignored.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, FileExt) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}

// Load reads and decodes the artifact at path, verifying its digest.
// Entity maps are normalized so every label is present.
func Load(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return Decode(filepath.Base(path), path, data)
}

// Decode parses artifact bytes. name and path are recorded on the result.
func Decode(name, path string, data []byte) (*Batch, error) {
	batch := &Batch{Name: name, Path: path}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: %s: empty file", ErrInvalidArtifact, name)
	}

	if trimmed[0] == '[' {
		docs, err := decodeDocuments(name, trimmed)
		if err != nil {
			return nil, err
		}
		batch.Documents = docs
		batch.Legacy = true
	} else {
		var wire wireEnvelope
		if err := json.Unmarshal(trimmed, &wire); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArtifact, name, err)
		}
		if wire.FormatVersion < 1 {
			return nil, fmt.Errorf("%w: %s: missing format_version", ErrInvalidArtifact, name)
		}
		if wire.FormatVersion > FormatVersion {
			return nil, fmt.Errorf("%w: %s: version %d", ErrUnsupportedVersion, name, wire.FormatVersion)
		}

		digest, err := digestRaw(wire.Documents)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArtifact, name, err)
		}
		if digest != wire.Digest {
			return nil, fmt.Errorf("%w: %s: recorded %s, computed %s", ErrDigestMismatch, name, wire.Digest, digest)
		}

		docs, err := decodeDocuments(name, wire.Documents)
		if err != nil {
			return nil, err
		}
		batch.Documents = docs
		if len(batch.Documents) != wire.DocumentCount {
			return nil, fmt.Errorf("%w: %s: document_count %d, found %d", ErrInvalidArtifact, name, wire.DocumentCount, len(batch.Documents))
		}
		batch.Digest = digest
		batch.Envelope = Envelope{
			FormatVersion: wire.FormatVersion,
			RunID:         wire.RunID,
			Sequence:      wire.Sequence,
			CreatedAt:     wire.CreatedAt,
			DocumentCount: wire.DocumentCount,
			Digest:        wire.Digest,
		}
	}

	if batch.Legacy {
		digest, err := digestRaw(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArtifact, name, err)
		}
		batch.Digest = digest
	}

	batch.Envelope.Documents = batch.Documents
	return batch, nil
}
