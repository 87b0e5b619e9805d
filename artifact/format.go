// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package artifact

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/poiesic/clinicalner/core"
)

const (
	// FormatVersion is written into every envelope.
	FormatVersion = 1

	// FilePrefix starts every artifact file name.
	FilePrefix = "clinical_notes_batch_"

	// FileExt is the artifact file extension.
	FileExt = ".json"

	digestPrefix    = "blake2b-256:"
	timestampLayout = "20060102T150405"
)

// Envelope is the on-disk form of one batch.
type Envelope struct {
	FormatVersion int                       `json:"format_version"`
	RunID         string                    `json:"run_id"`
	Sequence      int                       `json:"sequence"`
	CreatedAt     time.Time                 `json:"created_at"`
	DocumentCount int                       `json:"document_count"`
	Digest        string                    `json:"digest"`
	Documents     []*core.ProcessedDocument `json:"documents"`
}

// ArtifactInfo describes a written artifact.
type ArtifactInfo struct {
	Name      string
	Path      string
	Sequence  int
	Documents int
	FirstID   int64
	LastID    int64
	Digest    string
}

// FileName builds the artifact name for a run and sequence number.
// Names sort by run start, then run id, then sequence.
func FileName(runStart time.Time, runID string, sequence int) string {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s%s_%s_%06d%s", FilePrefix, runStart.UTC().Format(timestampLayout), short, sequence, FileExt)
}

// Digest hashes the compact JSON encoding of documents.
func Digest(compactDocuments []byte) (string, error) {
	h, err := blake2b.New(32, nil)
	if err != nil {
		return "", err
	}
	h.Write(compactDocuments)
	return digestPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

// digestRaw compacts an encoded document array and hashes it.
func digestRaw(raw []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return Digest(buf.Bytes())
}
