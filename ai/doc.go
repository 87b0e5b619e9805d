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


// Package ai provides abstractions for the entity recognition model used by clinicalner.
//
// The pipeline treats the model as a black box that, given text, a label set
// and a confidence threshold, returns labeled spans. Everything else (grouping
// by label, retries, fail-soft handling) lives in package transform.
//
// # Implementation Packages
//
//   - ai/openai: production implementation prompting an OpenAI-compatible chat model
//   - ai/mock: test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEntityExtractor) return
// INTERFACE types. Test constructors (mock.NewMockEntityExtractor) return
// CONCRETE types so tests can inject behavior and assert on call counts.
//
//	provider, err := openai.NewProvider(config)  // returns ai.AIProvider
//	defer provider.Close()
//
//	entities, err := provider.EntityExtractor().PredictEntities(ctx,
//	    "Patient reports headache; prescribed ibuprofen.", core.Labels, 0.5)
package ai
