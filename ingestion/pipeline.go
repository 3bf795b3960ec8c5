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

package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/profmatch/core"
	"github.com/poiesic/profmatch/fetch"
)

// Extractor turns a parsed page into a validated record.
type Extractor interface {
	Extract(doc *goquery.Document) (*core.InstructorRecord, error)
}

// RecordEmbedder embeds a validated record.
type RecordEmbedder interface {
	EmbedRecord(ctx context.Context, record *core.InstructorRecord) (core.Vector, error)
}

// Indexer upserts an entry into the vector index.
type Indexer interface {
	Upsert(ctx context.Context, key string, vector core.Vector, record *core.InstructorRecord) error
}

// Outcome is the terminal state of one submission.
type Outcome struct {
	URL     string
	Stage   Stage                  // StageDone on success, StageFailed otherwise
	Record  *core.InstructorRecord // Stored record, nil on failure
	Err     *StageError            // nil on success
	Elapsed time.Duration
}

// Succeeded reports whether the submission reached StageDone.
func (o *Outcome) Succeeded() bool {
	return o.Stage == StageDone
}

// Pipeline orchestrates Fetch → Extract → Embed → Upsert for submitted URLs.
type Pipeline struct {
	fetcher   fetch.Fetcher
	extractor Extractor
	embedder  RecordEmbedder
	index     Indexer
	pool      *ants.Pool
	observer  Observer
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size used by IngestAll.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithObserver attaches stage hooks.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) error {
		if o == nil {
			o = &noopObserver{}
		}
		p.observer = o
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "ingestion")
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	fetcher fetch.Fetcher,
	extractor Extractor,
	embedder RecordEmbedder,
	index Indexer,
	opts ...Option,
) (*Pipeline, error) {
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		fetcher:   fetcher,
		extractor: extractor,
		embedder:  embedder,
		index:     index,
		pool:      pool,
		observer:  &noopObserver{},
		logger:    slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	return p, nil
}

// run executes one stage, reporting it to the observer.
func (p *Pipeline) run(ctx context.Context, url string, stage Stage, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: stage, URL: url, Err: err}
	}
	p.observer.StageStarted(url, stage)
	start := time.Now()
	err := fn()
	p.observer.StageFinished(url, stage, time.Since(start), err)
	if err != nil {
		return &StageError{Stage: stage, URL: url, Err: err}
	}
	return nil
}

// Ingest processes one submitted URL. On failure the returned error is the
// outcome's *StageError; the outcome is always non-nil.
func (p *Pipeline) Ingest(ctx context.Context, url string) (*Outcome, error) {
	start := time.Now()
	logger := p.logger.With("url", url)
	outcome := &Outcome{URL: url}

	var (
		doc    *goquery.Document
		record *core.InstructorRecord
		vector core.Vector
	)

	err := p.run(ctx, url, StageFetching, func() (err error) {
		doc, err = p.fetcher.Fetch(ctx, url)
		return err
	})
	if err == nil {
		err = p.run(ctx, url, StageExtracting, func() (err error) {
			record, err = p.extractor.Extract(doc)
			if err == nil && record.SourceURL == "" {
				record.SourceURL = url
			}
			return err
		})
	}
	if err == nil {
		err = p.run(ctx, url, StageEmbedding, func() (err error) {
			vector, err = p.embedder.EmbedRecord(ctx, record)
			return err
		})
	}
	if err == nil {
		err = p.run(ctx, url, StageUpserting, func() error {
			return p.index.Upsert(ctx, record.Name, vector, record)
		})
	}

	outcome.Elapsed = time.Since(start)
	if err != nil {
		stageErr := err.(*StageError)
		outcome.Stage = StageFailed
		outcome.Err = stageErr
		logger.Warn("ingestion failed", "stage", stageErr.Stage, "retryable", stageErr.Retryable(), "err", stageErr.Err)
		p.observer.Finished(outcome)
		return outcome, stageErr
	}

	outcome.Stage = StageDone
	outcome.Record = record
	logger.Info("ingested instructor", "key", record.Name, "dimension", len(vector), "elapsed", outcome.Elapsed)
	p.observer.Finished(outcome)
	return outcome, nil
}

// IngestAll processes independent submissions in parallel on the worker pool.
// Outcomes are returned in input order.
func (p *Pipeline) IngestAll(ctx context.Context, urls []string) []Outcome {
	outcomes := make([]Outcome, len(urls))
	var wg sync.WaitGroup

	for i, url := range urls {
		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			outcome, _ := p.Ingest(ctx, url)
			outcomes[i] = *outcome
		})
		if submitErr != nil {
			wg.Done()
			outcomes[i] = Outcome{
				URL:   url,
				Stage: StageFailed,
				Err:   &StageError{Stage: StageFetching, URL: url, Err: fmt.Errorf("worker pool: %w", submitErr)},
			}
		}
	}

	wg.Wait()
	return outcomes
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
