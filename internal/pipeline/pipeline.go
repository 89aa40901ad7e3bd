package pipeline

import (
	"cmp"
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"github.com/workaholic-kv/workaholic/internal/content"
	"github.com/workaholic-kv/workaholic/internal/kv"
	"github.com/workaholic-kv/workaholic/internal/metrics"
)

// Table is the complete derived contents of one namespace, sorted by key.
type Table struct {
	Namespace string
	Rows      []content.Entry
	// Digest is a blake3 hash over the canonical rows. Identical input
	// yields an identical digest.
	Digest string
}

// Result is the outcome of Run.
type Result struct {
	Items    []content.Entry
	Tables   []Table
	Dropped  []*EntryError
	Failures []*StageError
}

// Err returns a *BuildError when any namespace failed, nil otherwise.
func (r *Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return &BuildError{Failures: r.Failures}
}

// Map returns the tables keyed by namespace.
func (r *Result) Map() map[string][]content.Entry {
	out := make(map[string][]content.Entry, len(r.Tables))
	for _, table := range r.Tables {
		out[table.Namespace] = table.Rows
	}
	return out
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for dropped entries and failed stages.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithMetrics records build counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline runs a fixed list of plugins.
type Pipeline struct {
	plugins []Plugin
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// New validates the registrations and returns a Pipeline. Every plugin needs
// a namespace and at least one capability, and namespaces must be unique.
func New(plugins []Plugin, opts ...Option) (*Pipeline, error) {
	seen := make(map[string]bool, len(plugins))
	for i, plugin := range plugins {
		if plugin.Namespace == "" {
			return nil, fmt.Errorf("plugin %d: missing namespace", i)
		}
		if plugin.Transformer == nil && plugin.Indexer == nil {
			return nil, fmt.Errorf("plugin %s: neither transformer nor indexer", plugin.Namespace)
		}
		if seen[plugin.Namespace] {
			return nil, fmt.Errorf("plugin %s: namespace registered twice", plugin.Namespace)
		}
		seen[plugin.Namespace] = true
	}

	p := &Pipeline{
		plugins: slices.Clone(plugins),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run transforms raw and indexes the result. A namespace whose index stage
// fails is left out of Result.Tables and reported in Result.Failures; the
// returned error is Result.Err(). Only cancellation aborts the run.
func (p *Pipeline) Run(ctx context.Context, raw []content.Entry) (*Result, error) {
	started := time.Now()
	result := &Result{}

	if p.metrics != nil {
		p.metrics.BuildEntriesTotal.Add(float64(len(raw)))
	}

	items := raw
	for _, plugin := range p.plugins {
		if plugin.Transformer == nil {
			continue
		}
		next, dropped, err := p.transform(ctx, plugin, items)
		if err != nil {
			return nil, err
		}
		result.Dropped = append(result.Dropped, dropped...)
		items = next
	}
	result.Items = items

	tables, failures := p.index(ctx, items)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result.Tables = tables
	result.Failures = failures

	if p.metrics != nil {
		p.metrics.BuildDuration.Observe(time.Since(started).Seconds())
	}

	p.log.Info().
		Int("raw", len(raw)).
		Int("items", len(items)).
		Int("tables", len(tables)).
		Int("dropped", len(result.Dropped)).
		Int("failed", len(failures)).
		Dur("elapsed", time.Since(started)).
		Msg("Build pipeline finished")

	return result, result.Err()
}

// Write replaces every produced namespace in store. Namespaces that failed
// to index keep their previous contents. Write failures are added to the
// result and reported together with index failures.
func (p *Pipeline) Write(ctx context.Context, store kv.Store, result *Result) error {
	for _, table := range result.Tables {
		if err := store.ReplaceNamespace(ctx, table.Namespace, table.Rows); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			result.Failures = p.fail(result.Failures, &StageError{Namespace: table.Namespace, Stage: StageWrite, Err: err})
			continue
		}
		if p.metrics != nil {
			p.metrics.BuildRowsTotal.WithLabelValues(table.Namespace).Add(float64(len(table.Rows)))
		}
	}
	return result.Err()
}

// Build runs the pipeline and writes every successful table to store.
func (p *Pipeline) Build(ctx context.Context, store kv.Store, raw []content.Entry) (*Result, error) {
	result, err := p.Run(ctx, raw)
	if result == nil {
		return nil, err
	}
	return result, p.Write(ctx, store, result)
}

func (p *Pipeline) transform(ctx context.Context, plugin Plugin, items []content.Entry) ([]content.Entry, []*EntryError, error) {
	outputs := make([][]content.Entry, len(items))
	var (
		mu      sync.Mutex
		dropped []*EntryError
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, entry := range items {
		g.Go(func() error {
			out, err := safeTransform(gctx, plugin.Transformer, entry)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				entryErr := &EntryError{Plugin: plugin.Namespace, Key: entry.Key, Err: err}
				p.log.Warn().
					Str("plugin", plugin.Namespace).
					Str("key", entry.Key).
					Err(err).
					Msg("Dropping entry after failed transform")
				if p.metrics != nil {
					p.metrics.TransformFailuresTotal.WithLabelValues(plugin.Namespace).Inc()
				}
				mu.Lock()
				dropped = append(dropped, entryErr)
				mu.Unlock()
				return nil
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	next := make([]content.Entry, 0, len(items))
	for _, out := range outputs {
		next = append(next, out...)
	}
	slices.SortStableFunc(dropped, func(a, b *EntryError) int { return cmp.Compare(a.Key, b.Key) })
	return next, dropped, nil
}

func (p *Pipeline) index(ctx context.Context, items []content.Entry) ([]Table, []*StageError) {
	var indexers []Plugin
	for _, plugin := range p.plugins {
		if plugin.Indexer != nil {
			indexers = append(indexers, plugin)
		}
	}

	tables := make([]*Table, len(indexers))
	errs := make([]error, len(indexers))

	var wg sync.WaitGroup
	for i, plugin := range indexers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows, err := safeIndex(ctx, plugin.Indexer, slices.Clone(items))
			if err != nil {
				errs[i] = err
				return
			}
			table, err := canonicalTable(plugin.Namespace, rows)
			if err != nil {
				errs[i] = err
				return
			}
			tables[i] = table
		}()
	}
	wg.Wait()

	var (
		out      []Table
		failures []*StageError
	)
	for i, plugin := range indexers {
		if errs[i] != nil {
			failures = p.fail(failures, &StageError{Namespace: plugin.Namespace, Stage: StageIndex, Err: errs[i]})
			continue
		}
		out = append(out, *tables[i])
	}
	return out, failures
}

func (p *Pipeline) fail(failures []*StageError, failure *StageError) []*StageError {
	p.log.Error().
		Str("namespace", failure.Namespace).
		Str("stage", failure.Stage).
		Err(failure.Err).
		Msg("Namespace stage failed, keeping previous contents")
	if p.metrics != nil {
		p.metrics.BuildStageFailuresTotal.WithLabelValues(failure.Namespace).Inc()
	}
	return append(failures, failure)
}

func safeTransform(ctx context.Context, t Transformer, entry content.Entry) (out []content.Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.Transform(ctx, entry)
}

func safeIndex(ctx context.Context, ix Indexer, items []content.Entry) (out []content.Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return ix.Index(ctx, items)
}

// canonicalTable sorts rows by key, rejects duplicate keys and computes the
// table digest.
func canonicalTable(namespace string, rows []content.Entry) (*Table, error) {
	rows = slices.Clone(rows)
	slices.SortStableFunc(rows, func(a, b content.Entry) int { return cmp.Compare(a.Key, b.Key) })
	for i := 1; i < len(rows); i++ {
		if rows[i].Key == rows[i-1].Key {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, rows[i].Key)
		}
	}

	digest, err := digestRows(rows)
	if err != nil {
		return nil, err
	}
	return &Table{Namespace: namespace, Rows: rows, Digest: digest}, nil
}

func digestRows(rows []content.Entry) (string, error) {
	hasher := blake3.New()
	var size [8]byte
	write := func(data []byte) {
		binary.BigEndian.PutUint64(size[:], uint64(len(data)))
		_, _ = hasher.Write(size[:])
		_, _ = hasher.Write(data)
	}

	for _, row := range rows {
		write([]byte(row.Key))
		write(row.Value)
		if row.IsBinary {
			write([]byte{1})
		} else {
			write([]byte{0})
		}
		meta, err := json.Marshal(row.Metadata)
		if err != nil {
			return "", fmt.Errorf("digest %q: %w", row.Key, err)
		}
		write(meta)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
