// Package pinecone implements storage.Store on a Pinecone serverless or pod index.
//
// Every instructor is one vector whose id is the index key and whose metadata
// carries the record fields. Each namespace gets its own index connection.
package pinecone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"github.com/poiesic/profmatch/core"
	"github.com/poiesic/profmatch/storage"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Config describes how to reach one Pinecone index.
type Config struct {
	// Host is the index host, e.g. "rag-abc123.svc.us-east-1.pinecone.io".
	Host    string
	APIKey  string
	Timeout time.Duration
}

// indexConn is the part of *pinecone.IndexConnection the store uses.
type indexConn interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	FetchVectors(ctx context.Context, ids []string) (*pinecone.FetchVectorsResponse, error)
	DeleteVectorsById(ctx context.Context, ids []string) error
	DescribeIndexStats(ctx context.Context) (*pinecone.DescribeIndexStatsResponse, error)
	Close() error
}

// dialer opens a connection scoped to one namespace.
type dialer func(namespace string) (indexConn, error)

// Store keeps one index connection per namespace.
type Store struct {
	dial    dialer
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	conns  map[string]indexConn
	closed bool
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "pinecone")
		return nil
	}
}

// withDialer replaces the SDK connection factory.
func withDialer(d dialer) Option {
	return func(s *Store) error {
		if d == nil {
			return errors.New("pinecone: dialer cannot be nil")
		}
		s.dial = d
		return nil
	}
}

// NewStore creates a Pinecone-backed store.
func NewStore(cfg Config, opts ...Option) (storage.Store, error) {
	host := strings.TrimSuffix(strings.TrimSpace(cfg.Host), "/")
	host = strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://")
	if host == "" {
		return nil, errors.New("pinecone: host is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("pinecone: api key is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	s := &Store{
		timeout: timeout,
		logger:  slog.Default().With("component", "pinecone"),
		conns:   map[string]indexConn{},
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.dial == nil {
		client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.APIKey})
		if err != nil {
			return nil, fmt.Errorf("pinecone: %w", err)
		}
		s.dial = func(namespace string) (indexConn, error) {
			idx, err := client.Index(pinecone.NewIndexConnParams{Host: host, Namespace: namespace})
			if err != nil {
				return nil, err
			}
			return idx, nil
		}
	}
	return s, nil
}

func (s *Store) conn(namespace string) (indexConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}
	if c, ok := s.conns[namespace]; ok {
		return c, nil
	}
	c, err := s.dial(namespace)
	if err != nil {
		return nil, fmt.Errorf("%w: connect namespace %q: %w", storage.ErrUnavailable, namespace, err)
	}
	s.conns[namespace] = c
	return c, nil
}

func (s *Store) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Upsert writes one vector; Pinecone replaces any vector with the same id.
func (s *Store) Upsert(ctx context.Context, namespace string, entry *core.IndexEntry) error {
	if entry == nil || entry.Key == "" {
		return fmt.Errorf("%w: entry key is required", storage.ErrInvalidQuery)
	}
	c, err := s.conn(namespace)
	if err != nil {
		return err
	}
	md, err := toMetadata(entry)
	if err != nil {
		return err
	}
	values := []float32(entry.Vector)

	ctx, cancel := s.callContext(ctx)
	defer cancel()
	n, err := c.UpsertVectors(ctx, []*pinecone.Vector{{Id: entry.Key, Values: &values, Metadata: md}})
	if err != nil {
		return translate("upsert", err)
	}
	s.logger.Debug("upserted vector", "namespace", namespace, "key", entry.Key, "count", n)
	return nil
}

// Query runs a top-k similarity search with metadata included.
func (s *Store) Query(ctx context.Context, namespace string, vec []float32, k int) ([]storage.Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", storage.ErrInvalidQuery)
	}
	c, err := s.conn(namespace)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.callContext(ctx)
	defer cancel()
	resp, err := c.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vec,
		TopK:            uint32(k),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, translate("query", err)
	}

	matches := make([]storage.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		record := fromMetadata(m.Vector.Metadata)
		if record.Name == "" {
			record.Name = m.Vector.Id
		}
		matches = append(matches, storage.Match{Key: m.Vector.Id, Record: record, Score: m.Score})
	}
	return matches, nil
}

// Get fetches one vector by id.
func (s *Store) Get(ctx context.Context, namespace, key string) (*core.IndexEntry, error) {
	c, err := s.conn(namespace)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.callContext(ctx)
	defer cancel()
	resp, err := c.FetchVectors(ctx, []string{key})
	if err != nil {
		return nil, translate("fetch", err)
	}
	v, ok := resp.Vectors[key]
	if !ok || v == nil {
		return nil, storage.ErrNotFound
	}

	entry := &core.IndexEntry{Key: v.Id, Record: fromMetadata(v.Metadata)}
	if v.Values != nil {
		entry.Vector = append(core.Vector(nil), (*v.Values)...)
	}
	if v.Metadata != nil {
		if t, err := time.Parse(time.RFC3339Nano, v.Metadata.GetFields()["updated_at"].GetStringValue()); err == nil {
			entry.UpdatedAt = t
		}
	}
	return entry, nil
}

// Delete removes one vector by id.
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	c, err := s.conn(namespace)
	if err != nil {
		return err
	}

	ctx, cancel := s.callContext(ctx)
	defer cancel()
	if err := c.DeleteVectorsById(ctx, []string{key}); err != nil {
		return translate("delete", err)
	}
	return nil
}

// Count reads the namespace vector count from the index statistics.
func (s *Store) Count(ctx context.Context, namespace string) (int, error) {
	c, err := s.conn(namespace)
	if err != nil {
		return 0, err
	}

	ctx, cancel := s.callContext(ctx)
	defer cancel()
	stats, err := c.DescribeIndexStats(ctx)
	if err != nil {
		return 0, translate("describe_index_stats", err)
	}
	summary, ok := stats.Namespaces[namespace]
	if !ok || summary == nil {
		return 0, nil
	}
	return int(summary.VectorCount), nil
}

// Close closes every namespace connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	for ns, c := range s.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close namespace %q: %w", ns, err))
		}
	}
	s.conns = nil
	return errors.Join(errs...)
}

// translate maps SDK and gRPC failures onto storage errors.
func translate(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: pinecone %s: %w", storage.ErrUnavailable, op, err)
	}
	switch status.Code(err) {
	case codes.Canceled:
		return fmt.Errorf("pinecone %s: %w: %w", op, context.Canceled, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted,
		codes.Aborted, codes.Internal, codes.Unknown:
		return fmt.Errorf("%w: pinecone %s: %w", storage.ErrUnavailable, op, err)
	default:
		// InvalidArgument, FailedPrecondition, Unauthenticated, PermissionDenied, NotFound...
		return fmt.Errorf("%w: pinecone %s: %w", storage.ErrRejected, op, err)
	}
}

// toMetadata builds the per-vector payload. Pinecone rejects null values, so
// empty fields are omitted.
func toMetadata(e *core.IndexEntry) (*pinecone.Metadata, error) {
	fields := map[string]any{"name": e.Record.Name}
	set := func(key, value string) {
		if value != "" {
			fields[key] = value
		}
	}
	set("department", e.Record.Department)
	set("rating", e.Record.RatingRaw)
	set("review", e.Record.FirstReview())
	set("source_url", e.Record.SourceURL)
	if !e.UpdatedAt.IsZero() {
		fields["updated_at"] = e.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	if len(e.Record.ReviewSnippets) > 0 {
		reviews := make([]any, len(e.Record.ReviewSnippets))
		for i, r := range e.Record.ReviewSnippets {
			reviews[i] = r
		}
		fields["reviews"] = reviews
	}

	md, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return md, nil
}

func fromMetadata(md *pinecone.Metadata) core.InstructorRecord {
	f := md.GetFields()
	r := core.InstructorRecord{
		Name:       f["name"].GetStringValue(),
		Department: f["department"].GetStringValue(),
		RatingRaw:  f["rating"].GetStringValue(),
		SourceURL:  f["source_url"].GetStringValue(),
	}
	for _, v := range f["reviews"].GetListValue().GetValues() {
		if s := v.GetStringValue(); s != "" {
			r.ReviewSnippets = append(r.ReviewSnippets, s)
		}
	}
	// Entries written by older clients only carried the single review field.
	if len(r.ReviewSnippets) == 0 {
		if review := f["review"].GetStringValue(); review != "" {
			r.ReviewSnippets = []string{review}
		}
	}
	return r
}
