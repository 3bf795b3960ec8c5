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

// Package storage provides the vector index backend abstraction.
//
// A Store keeps at most one entry per key within a namespace and answers
// top-k cosine similarity queries. Two backends are provided:
//
//   - storage/badger: embedded BadgerDB, on disk or in memory
//   - storage/pinecone: a Pinecone index through the official Go SDK
//
// # Constructor Return Type Pattern
//
// Public backend constructors return the storage.Store interface:
//
//	store, err := badger.NewStore(backend)  // returns storage.Store
//
// Internal constructors may return concrete types.
//
// # Atomicity
//
// Upsert replaces an entry in one step. Readers observe either the previous
// entry or the new one, never a mix.
//
// # Thread Safety
//
// All Store implementations must be safe for concurrent use.
//
// # Context Support
//
// All Store methods accept context.Context for cancellation and timeouts.
package storage
