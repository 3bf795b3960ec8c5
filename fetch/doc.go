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

// Package fetch retrieves instructor pages and parses them into document trees.
//
// Two fetchers implement the Fetcher interface:
//
//   - HTTPFetcher: plain GET over net/http, parsed with goquery
//   - ChromeFetcher: headless Chrome via chromedp, for pages built by script
//
// Every fetcher rejects malformed URLs with core.ErrInvalidURL before any
// network call. Network failures and timeouts are reported as
// core.ErrFetchUnavailable, non-success statuses as *core.FetchStatusError.
package fetch
