package plugins

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"

	"github.com/workaholic-kv/workaholic/internal/content"
	"github.com/workaholic-kv/workaholic/internal/imagepool"
	"github.com/workaholic-kv/workaholic/internal/kv"
	"github.com/workaholic-kv/workaholic/internal/metrics"
	"github.com/workaholic-kv/workaholic/internal/pipeline"
	"github.com/workaholic-kv/workaholic/internal/query"
)

// ErrUnrecognizedContentType is returned when a downloaded image has neither
// a known extension nor an image content type.
var ErrUnrecognizedContentType = errors.New("unrecognized image content type")

// NamespaceImages is the namespace holding encoded image variants.
const NamespaceImages = "images"

// ImagePathPrefix is the local path that rewritten image metadata points at.
const ImagePathPrefix = "/images/"

const imageBodyLimit = 32 * 1024 * 1024

// ImagesOptions configures the image download and encode plugin.
type ImagesOptions struct {
	// Field is the metadata field holding the image URL. Defaults to "image".
	Field       string
	Client      *http.Client
	Timeout     time.Duration
	Width       int
	Concurrency int
	Encoders    []imagepool.Encoder
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics
}

// Image is a negotiated image variant returned by the images handler. The
// caller must close Body.
type Image struct {
	Key         string
	ContentType string
	ETag        string
	Body        io.ReadCloser
}

// Images downloads the image each document links to, stores it next to the
// document and encodes every downloaded image into the configured formats.
func Images(opts ImagesOptions) pipeline.Plugin {
	if opts.Field == "" {
		opts.Field = "image"
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Width <= 0 {
		opts.Width = imagepool.DefaultWidth
	}

	return pipeline.Plugin{
		Namespace: NamespaceImages,
		Transformer: pipeline.TransformFunc(func(ctx context.Context, entry content.Entry) ([]content.Entry, error) {
			return downloadTransform(ctx, opts, entry)
		}),
		Indexer: pipeline.IndexFunc(func(ctx context.Context, entries []content.Entry) ([]content.Entry, error) {
			return encodeImages(ctx, opts, entries)
		}),
	}
}

func downloadTransform(ctx context.Context, opts ImagesOptions, entry content.Entry) ([]content.Entry, error) {
	link, ok := entry.Metadata.String(opts.Field)
	if !ok || !content.IsDocument(entry.Key) || !isRemote(link) {
		return []content.Entry{entry}, nil
	}

	slug := content.Slug(entry.Key)
	fetchCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	image, err := DownloadImage(fetchCtx, opts.Client, link, slug)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		opts.Logger.Warn().
			Str("key", entry.Key).
			Str("url", link).
			Err(err).
			Msg("Skipping image download")
		return []content.Entry{entry}, nil
	}

	rewritten := entry.WithMetadata(content.Metadata{opts.Field: ImagePathPrefix + slug})
	return []content.Entry{rewritten, image}, nil
}

func isRemote(link string) bool {
	return strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://")
}

// DownloadImage fetches rawURL into a binary entry keyed slug plus the
// image extension. The extension comes from the final response URL, falling
// back to the content type.
func DownloadImage(ctx context.Context, client *http.Client, rawURL, slug string) (content.Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return content.Entry{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", previewUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return content.Entry{}, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return content.Entry{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	extension, err := imageExtension(resp)
	if err != nil {
		return content.Entry{}, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, imageBodyLimit))
	if err != nil {
		return content.Entry{}, fmt.Errorf("read body: %w", err)
	}

	return content.Entry{Key: slug + extension, Value: data, IsBinary: true}, nil
}

func imageExtension(resp *http.Response) (string, error) {
	extension := strings.ToLower(path.Ext(resp.Request.URL.Path))
	if slices.Contains(content.ImageExtensions, extension) {
		return extension, nil
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w (%q) from %s", ErrUnrecognizedContentType, contentType, resp.Request.URL)
	}
	subtype, ok := strings.CutPrefix(mediaType, "image/")
	if !ok {
		return "", fmt.Errorf("%w (%q) from %s", ErrUnrecognizedContentType, contentType, resp.Request.URL)
	}
	if subtype == "jpeg" {
		subtype = "jpg"
	}
	extension = "." + subtype
	if !slices.Contains(content.ImageExtensions, extension) {
		return "", fmt.Errorf("%w (%q) from %s", ErrUnrecognizedContentType, contentType, resp.Request.URL)
	}
	return extension, nil
}

// encodeImages encodes every binary image entry. An image that fails is
// logged and contributes whatever variants did succeed.
func encodeImages(ctx context.Context, opts ImagesOptions, entries []content.Entry) ([]content.Entry, error) {
	var sources []content.Entry
	for _, entry := range entries {
		if entry.IsBinary && content.IsImage(entry.Key) {
			sources = append(sources, entry)
		}
	}
	if len(sources) == 0 {
		return nil, nil
	}

	poolOpts := []imagepool.Option{imagepool.WithWidth(opts.Width), imagepool.WithMetrics(opts.Metrics)}
	if len(opts.Encoders) > 0 {
		poolOpts = append(poolOpts, imagepool.WithEncoders(opts.Encoders...))
	}

	var (
		mu   sync.Mutex
		rows []content.Entry
	)
	err := imagepool.With(ctx, opts.Concurrency, func(pool *imagepool.Pool) error {
		var wg sync.WaitGroup
		for _, source := range sources {
			wg.Add(1)
			go func() {
				defer wg.Done()
				variants, err := pool.Encode(ctx, source.Value)
				if err != nil {
					opts.Logger.Warn().
						Str("key", source.Key).
						Int("variants", len(variants)).
						Err(err).
						Msg("Image encoding incomplete")
				}
				base := content.TrimExtension(source.Key)
				mu.Lock()
				defer mu.Unlock()
				for _, variant := range variants {
					rows = append(rows, variantEntry(base, variant))
				}
			}()
		}
		wg.Wait()
		return ctx.Err()
	}, poolOpts...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func variantEntry(base string, variant imagepool.Variant) content.Entry {
	sum := blake3.Sum256(variant.Data)
	return content.Entry{
		Key:   base + "." + variant.Extension,
		Value: variant.Data,
		Metadata: content.Metadata{
			"contentType": query.ContentType(variant.Extension),
			"etag":        hex.EncodeToString(sum[:16]),
		},
		IsBinary: true,
	}
}

// ImagesHandler serves the best variant of an image for the Accept header.
// key is the rewritten image path without its prefix; an image extension on
// it is ignored so "a.jpg" and "a" name the same variants.
func ImagesHandler(store kv.Reader) query.Handler {
	return func(ctx context.Context, key string, opts query.Options) (any, error) {
		base := key
		if content.IsImage(key) {
			base = content.TrimExtension(key)
		}
		keys, err := kv.ListAll(ctx, store, NamespaceImages, base+".")
		if err != nil {
			return nil, err
		}

		etags := map[string]string{}
		var available []string
		for _, info := range keys {
			if content.TrimExtension(info.Name) != base {
				continue
			}
			extension := strings.TrimPrefix(path.Ext(info.Name), ".")
			available = append(available, extension)
			etags[extension], _ = info.Metadata.String("etag")
		}

		extension := query.NegotiateImage(opts.Accept, available)
		if extension == "" {
			return nil, nil
		}

		variantKey := base + "." + extension
		body, err := store.GetStream(ctx, NamespaceImages, variantKey)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return &Image{
			Key:         variantKey,
			ContentType: query.ContentType(extension),
			ETag:        etags[extension],
			Body:        body,
		}, nil
	}
}
