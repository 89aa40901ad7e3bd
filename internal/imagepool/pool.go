// Package imagepool decodes, resizes and re-encodes images with bounded
// concurrency.
package imagepool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"

	// Decoders for every source format the pool accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"golang.org/x/sync/semaphore"

	"github.com/workaholic-kv/workaholic/internal/metrics"
)

var (
	// ErrEncoding wraps every decode or encode failure.
	ErrEncoding = errors.New("image encoding failed")
	// ErrClosed is returned by Encode after Close.
	ErrClosed = errors.New("image pool closed")
)

// DefaultWidth is the maximum width of encoded variants.
const DefaultWidth = 500

// Variant is one encoded rendition of a source image.
type Variant struct {
	// Extension is the file extension without the dot, e.g. "webp".
	Extension string
	Data      []byte
}

// Option configures a Pool.
type Option func(*Pool)

// WithWidth sets the maximum width. Narrower images are not upscaled.
func WithWidth(width int) Option {
	return func(p *Pool) { p.width = width }
}

// WithEncoders replaces the default encoder set.
func WithEncoders(encoders ...Encoder) Option {
	return func(p *Pool) { p.encoders = encoders }
}

// WithMetrics records encode counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pool) { p.metrics = m }
}

// Pool runs at most size encodes at once.
type Pool struct {
	sem      *semaphore.Weighted
	width    int
	encoders []Encoder
	metrics  *metrics.Metrics

	mu     sync.Mutex
	closed bool
	active sync.WaitGroup
}

// New creates a Pool. A size of zero or less uses the number of CPUs.
func New(size int, opts ...Option) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{
		sem:      semaphore.NewWeighted(int64(size)),
		width:    DefaultWidth,
		encoders: DefaultEncoders(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// With runs fn with a fresh pool and closes the pool however fn returns.
func With(ctx context.Context, size int, fn func(*Pool) error, opts ...Option) (err error) {
	pool := New(size, opts...)
	defer func() {
		if closeErr := pool.Close(); err == nil {
			err = closeErr
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(pool)
}

// Encode decodes data, scales it down to the pool width and runs every
// encoder. Variants from encoders that succeeded are returned even when
// another encoder failed; the failures are joined into the error.
func (p *Pool) Encode(ctx context.Context, data []byte) ([]Variant, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.active.Add(1)
	p.mu.Unlock()
	defer p.active.Done()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	started := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.ImageEncodeDuration.Observe(time.Since(started).Seconds())
		}
	}()

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		p.failed()
		return nil, fmt.Errorf("%w: decode: %w", ErrEncoding, err)
	}
	img := Resize(src, p.width)

	variants := make([]Variant, 0, len(p.encoders))
	var errs []error
	for _, encoder := range p.encoders {
		if err := ctx.Err(); err != nil {
			return variants, err
		}
		var buf bytes.Buffer
		if err := encoder.Encode(&buf, img); err != nil {
			p.failed()
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrEncoding, encoder.Extension(), err))
			continue
		}
		if p.metrics != nil {
			p.metrics.ImagesEncodedTotal.WithLabelValues(encoder.Extension()).Inc()
		}
		variants = append(variants, Variant{Extension: encoder.Extension(), Data: buf.Bytes()})
	}
	return variants, errors.Join(errs...)
}

// Close rejects new work and waits for in-flight encodes to finish.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.active.Wait()
	return nil
}

func (p *Pool) failed() {
	if p.metrics != nil {
		p.metrics.ImageFailuresTotal.Inc()
	}
}
