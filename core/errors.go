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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidNote indicates a RawNote failed validation.
	ErrInvalidNote = errors.New("invalid note")

	// ErrMissingText indicates the note text column is NULL.
	ErrMissingText = errors.New("note text is missing")

	// ErrInvalidID indicates a negative note identifier.
	ErrInvalidID = errors.New("note id must not be negative")

	// ErrInvalidDocument indicates a ProcessedDocument failed validation.
	ErrInvalidDocument = errors.New("invalid processed document")

	// ErrLengthMismatch indicates text_length disagrees with the cleaned text.
	ErrLengthMismatch = errors.New("text_length does not match cleaned text")

	// ErrCountMismatch indicates total_entities disagrees with the entity lists.
	ErrCountMismatch = errors.New("total_entities does not match entity lists")

	// ErrDensityMismatch indicates semantic_density disagrees with total_entities/text_length.
	ErrDensityMismatch = errors.New("semantic density does not match entity count and text length")

	// ErrInvalidDensity indicates a negative or non-finite semantic density.
	ErrInvalidDensity = errors.New("semantic density must be a finite, non-negative number")
)
