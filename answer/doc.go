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

// Package answer composes assistant replies from retrieved instructor context.
//
// A Composer builds one stateless generation request per user turn: the fixed
// behavior prompt with the context block appended, followed by the full
// conversation history. The reply arrives as a single-use Stream of text
// chunks which callers concatenate in arrival order, typically with Collect.
//
// When the stream fails, whatever was already received is kept as the final
// assistant content and the failure is reported as
// core.ErrGenerationInterrupted (or core.ErrGenerationUnavailable when
// nothing arrived at all).
package answer
