// Package query dispatches namespace lookups to the handler registered for
// each namespace.
package query

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/workaholic-kv/workaholic/internal/kv"
	"github.com/workaholic-kv/workaholic/internal/metrics"
)

// ErrUnknownNamespace is matched by every *UnknownNamespaceError.
var ErrUnknownNamespace = errors.New("unknown namespace")

// UnknownNamespaceError names the namespace that has no handler.
type UnknownNamespaceError struct {
	Namespace string
}

func (e *UnknownNamespaceError) Error() string {
	return fmt.Sprintf("unknown namespace %q", e.Namespace)
}

func (e *UnknownNamespaceError) Is(target error) bool {
	return target == ErrUnknownNamespace
}

// Options carries per-request hints.
type Options struct {
	// Accept is the HTTP Accept header used for content negotiation.
	Accept string
}

// Handler answers a lookup within one namespace. A nil result with a nil
// error means not found.
type Handler func(ctx context.Context, key string, opts Options) (any, error)

// Factory builds a handler bound to the store.
type Factory func(store kv.Reader) Handler

// Registration binds a namespace to its handler factory.
type Registration struct {
	Namespace string
	Factory   Factory
}

// Router is a fixed dispatch table from namespace to handler.
type Router struct {
	handlers map[string]Handler
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

// New builds every handler against store. Registering a namespace twice
// panics.
func New(store kv.Reader, registrations ...Registration) *Router {
	r := &Router{
		handlers: make(map[string]Handler, len(registrations)),
		log:      zerolog.Nop(),
	}
	for _, reg := range registrations {
		if _, exists := r.handlers[reg.Namespace]; exists {
			panic(fmt.Sprintf("query: namespace %q registered twice", reg.Namespace))
		}
		r.handlers[reg.Namespace] = reg.Factory(store)
	}
	return r
}

// WithLogger sets the logger for failed lookups.
func (r *Router) WithLogger(log zerolog.Logger) *Router {
	r.log = log
	return r
}

// WithMetrics records per-namespace counters on m.
func (r *Router) WithMetrics(m *metrics.Metrics) *Router {
	r.metrics = m
	return r
}

// Namespaces lists the registered namespaces in sorted order.
func (r *Router) Namespaces() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Query runs the handler registered for namespace. It fails with
// *UnknownNamespaceError when there is none; otherwise the handler's
// result, including a nil "not found", is returned unchanged.
func (r *Router) Query(ctx context.Context, namespace, key string, opts Options) (any, error) {
	handler, ok := r.handlers[namespace]
	if !ok {
		r.observe(namespace, "unknown", 0)
		return nil, &UnknownNamespaceError{Namespace: namespace}
	}

	started := time.Now()
	result, err := handler(ctx, key, opts)
	elapsed := time.Since(started)

	switch {
	case err != nil:
		r.observe(namespace, "error", elapsed)
		r.log.Warn().Str("namespace", namespace).Str("key", key).Err(err).Msg("Query failed")
		return nil, err
	case result == nil:
		r.observe(namespace, "not_found", elapsed)
	default:
		r.observe(namespace, "ok", elapsed)
	}
	return result, nil
}

func (r *Router) observe(namespace, outcome string, elapsed time.Duration) {
	if r.metrics == nil {
		return
	}
	if outcome == "unknown" {
		// Unknown names are caller input; keep them out of the label set.
		r.metrics.QueriesTotal.WithLabelValues("unknown", outcome).Inc()
		return
	}
	r.metrics.QueriesTotal.WithLabelValues(namespace, outcome).Inc()
	r.metrics.QueryDuration.WithLabelValues(namespace).Observe(elapsed.Seconds())
}
