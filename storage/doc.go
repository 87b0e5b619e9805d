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


// Package storage provides the storage abstraction layer for clinicalner.
//
// The pipeline touches two kinds of storage:
//
//   - the relational notes table (storage/postgres): NoteSource, NoteWriter,
//     MetadataStore and NoteQuery
//   - local run state (storage/badger): CheckpointRepository for resumable
//     extraction and LedgerRepository recording applied batch artifacts
//
// Consumers depend on these interfaces so tests can substitute fakes, sqlmock
// or an in-memory badger instance.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support.
package storage
