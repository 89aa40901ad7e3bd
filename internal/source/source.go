// Package source serves posts from a slow origin through a key/value cache.
//
// Each cached record carries the time it was written. Records older than
// MaxAge are stale and trigger a synchronous origin fetch; the refreshed
// record is written back in the background. The store's TTL, much longer
// than MaxAge, evicts records that are never read again.
package source

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/workaholic-kv/workaholic/internal/clock"
	"github.com/workaholic-kv/workaholic/internal/content"
	"github.com/workaholic-kv/workaholic/internal/kv"
	"github.com/workaholic-kv/workaholic/internal/metrics"
	"github.com/workaholic-kv/workaholic/internal/plugins"
)

const (
	DefaultNamespace = "cache"
	DefaultMaxAge    = 300 * time.Second
	DefaultTTL       = 7 * 24 * time.Hour
	DefaultTimeout   = 10 * time.Second

	manifestKey     = "blog"
	postKeyPrefix   = "blog/"
	timestampField  = "timestamp"
	originFanOut    = 8
	writeBackWindow = 30 * time.Second
)

// requiredFields must be present in every post's frontmatter.
var requiredFields = []string{"title", "description", "date"}

// Config configures a Source.
type Config struct {
	// Namespace is the store namespace holding cached records.
	Namespace string
	// Path is the origin directory holding the posts.
	Path    string
	MaxAge  time.Duration
	TTL     time.Duration
	Timeout time.Duration
	Clock   clock.Clock
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Post is a post's metadata and, when read individually, its body.
type Post struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	Content     string    `json:"content,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Source is a cache-aside reader over an Origin.
type Source struct {
	store  kv.Store
	origin Origin
	cfg    Config
	parser plugins.FrontmatterOptions

	writes sync.WaitGroup
}

// New creates a Source. Zero config values take the package defaults.
func New(store kv.Store, origin Origin, cfg Config) *Source {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return &Source{
		store:  store,
		origin: origin,
		cfg:    cfg,
		parser: plugins.FrontmatterOptions{Required: requiredFields},
	}
}

// isStale reports whether a record written at timestamp is older than maxAge.
func isStale(timestamp, now time.Time, maxAge time.Duration) bool {
	return now.Sub(timestamp) > maxAge
}

// GetPosts returns every post, newest first, without bodies. A fresh,
// non-empty manifest is answered from the cache alone.
func (s *Source) GetPosts(ctx context.Context) ([]Post, error) {
	if posts, ok := s.cachedPosts(ctx); ok {
		s.lookup("posts", "fresh")
		return posts, nil
	}

	listCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	entries, err := s.origin.ListDirectory(listCtx, s.cfg.Path)
	cancel()
	s.originRequest("list", err)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrUpstream, s.cfg.Path, err)
	}

	var slugs []string
	for _, entry := range entries {
		if entry.Type == TypeFile && content.IsDocument(entry.Name) {
			slugs = append(slugs, content.Slug(entry.Name))
		}
	}
	slices.Sort(slugs)

	posts := make([]Post, len(slugs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(originFanOut)
	for i, slug := range slugs {
		g.Go(func() error {
			post, err := s.GetPost(gctx, slug)
			if err != nil {
				return err
			}
			post.Content = ""
			posts[i] = *post
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	manifest, err := json.Marshal(slugs)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	s.writeBack(ctx, manifestKey, manifest, content.Metadata{})

	sortPosts(posts)
	return posts, nil
}

// cachedPosts answers from the manifest when it is fresh and every post it
// lists is still cached.
func (s *Source) cachedPosts(ctx context.Context) ([]Post, bool) {
	record, err := s.store.GetWithMetadata(ctx, s.cfg.Namespace, manifestKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.cfg.Logger.Warn().Err(err).Msg("Reading post manifest failed")
		}
		s.lookup("posts", "cold")
		return nil, false
	}
	written, ok := record.Metadata.Time(timestampField)
	if !ok || isStale(written, s.cfg.Clock.Now(), s.cfg.MaxAge) {
		s.lookup("posts", "stale")
		return nil, false
	}

	var slugs []string
	if err := json.Unmarshal(record.Value, &slugs); err != nil || len(slugs) == 0 {
		s.lookup("posts", "cold")
		return nil, false
	}

	keys, err := kv.ListAll(ctx, s.store, s.cfg.Namespace, postKeyPrefix)
	if err != nil {
		s.cfg.Logger.Warn().Err(err).Msg("Listing cached posts failed")
		return nil, false
	}
	bySlug := make(map[string]content.Metadata, len(keys))
	for _, key := range keys {
		bySlug[strings.TrimPrefix(key.Name, postKeyPrefix)] = key.Metadata
	}

	posts := make([]Post, 0, len(slugs))
	for _, slug := range slugs {
		meta, ok := bySlug[slug]
		if !ok {
			s.lookup("posts", "stale")
			return nil, false
		}
		posts = append(posts, postFromMetadata(slug, meta))
	}
	sortPosts(posts)
	return posts, true
}

// GetPost returns one post with its body, from the cache when fresh and
// from the origin otherwise.
func (s *Source) GetPost(ctx context.Context, slug string) (*Post, error) {
	key := postKeyPrefix + slug

	record, err := s.store.GetWithMetadata(ctx, s.cfg.Namespace, key)
	switch {
	case err == nil:
		if written, ok := record.Metadata.Time(timestampField); ok && !isStale(written, s.cfg.Clock.Now(), s.cfg.MaxAge) {
			s.lookup("post", "fresh")
			post := postFromMetadata(slug, record.Metadata)
			post.Content = string(record.Value)
			return &post, nil
		}
		s.lookup("post", "stale")
	case errors.Is(err, kv.ErrNotFound):
		s.lookup("post", "cold")
	default:
		s.cfg.Logger.Warn().Str("slug", slug).Err(err).Msg("Reading cached post failed")
		s.lookup("post", "cold")
	}

	filePath := path.Join(s.cfg.Path, slug+content.DocumentExtensions[0])
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	data, err := s.origin.GetFile(fetchCtx, filePath)
	cancel()
	s.originRequest("get", err)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", ErrUpstream, filePath, err)
	}

	parsed, err := plugins.Frontmatter(s.parser).Transformer.Transform(ctx, content.Entry{
		Key:   slug + content.DocumentExtensions[0],
		Value: data,
	})
	if err != nil {
		return nil, err
	}
	entry := parsed[0]

	meta := content.Metadata{"slug": slug}
	for _, field := range requiredFields {
		meta[field] = entry.Metadata.Text(field)
	}
	s.writeBack(ctx, key, entry.Value, meta)

	post := postFromMetadata(slug, meta)
	post.Content = entry.Text()
	post.Timestamp = s.cfg.Clock.Now()
	return &post, nil
}

// Wait blocks until every scheduled write-back has finished.
func (s *Source) Wait() {
	s.writes.Wait()
}

// writeBack stores value in the background, stamped with the current time.
// Failures are logged and never reach the caller.
func (s *Source) writeBack(ctx context.Context, key string, value []byte, meta content.Metadata) {
	meta = maps.Clone(meta)
	if meta == nil {
		meta = content.Metadata{}
	}
	meta[timestampField] = s.cfg.Clock.Now().UnixMilli()

	detached := context.WithoutCancel(ctx)
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		writeCtx, cancel := context.WithTimeout(detached, writeBackWindow)
		defer cancel()

		err := s.store.Put(writeCtx, s.cfg.Namespace, key, value, kv.PutOptions{Metadata: meta, TTL: s.cfg.TTL})
		if err != nil {
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.WriteBackFailuresTotal.Inc()
			}
			s.cfg.Logger.Error().
				Str("namespace", s.cfg.Namespace).
				Str("key", key).
				Err(err).
				Msg("Cache write-back failed")
		}
	}()
}

func postFromMetadata(slug string, meta content.Metadata) Post {
	post := Post{
		Slug:        slug,
		Title:       meta.Text("title"),
		Description: meta.Text("description"),
		Date:        meta.Text("date"),
	}
	post.Timestamp, _ = meta.Time(timestampField)
	return post
}

func sortPosts(posts []Post) {
	slices.SortStableFunc(posts, func(a, b Post) int {
		if c := cmp.Compare(b.Date, a.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.Slug, b.Slug)
	})
}

func (s *Source) lookup(kind, state string) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.CacheLookupsTotal.WithLabelValues(kind, state).Inc()
	}
}

func (s *Source) originRequest(operation string, err error) {
	if s.cfg.Metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.cfg.Metrics.OriginRequestsTotal.WithLabelValues(operation, outcome).Inc()
}
