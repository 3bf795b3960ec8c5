// Package ingestion provides the pipeline that turns a submitted URL into an index entry.
//
// Each submission walks a strict state machine:
//
//	Fetching → Extracting → Embedding → Upserting → Done
//
// Any stage may fail, which ends the submission in Failed with the stage
// and cause recorded in a *StageError. Stages never run in parallel within
// one submission and no stage is retried internally. Independent
// submissions share nothing and may run concurrently; IngestAll fans a
// batch out over a worker pool.
//
// Re-submitting a URL is safe: the record is re-extracted and overwrites
// the previous entry under the same name.
package ingestion
