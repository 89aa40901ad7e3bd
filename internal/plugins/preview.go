package plugins

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/workaholic-kv/workaholic/internal/content"
	"github.com/workaholic-kv/workaholic/internal/pipeline"
)

const (
	previewUserAgent = "workaholic/1.0 (link-preview)"
	previewBodyLimit = 5 * 1024 * 1024
)

// PreviewOptions configures the link preview transform.
type PreviewOptions struct {
	// Field is the metadata field holding the link. Defaults to "url".
	Field   string
	Client  *http.Client
	Timeout time.Duration
	Logger  zerolog.Logger
}

// LinkPreview is the OpenGraph data of a page.
type LinkPreview struct {
	SiteName    string
	Title       string
	Description string
	Image       string
}

// Preview enriches entries that carry a link with the title, description
// and image of the linked page. Fields already present on the entry win.
// A page that cannot be fetched leaves the entry unchanged.
func Preview(opts PreviewOptions) pipeline.Plugin {
	if opts.Field == "" {
		opts.Field = "url"
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	return pipeline.Plugin{
		Namespace: "preview",
		Transformer: pipeline.TransformFunc(func(ctx context.Context, entry content.Entry) ([]content.Entry, error) {
			link, ok := entry.Metadata.String(opts.Field)
			if !ok || link == "" {
				return []content.Entry{entry}, nil
			}

			fetchCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
			defer cancel()

			preview, err := FetchPreview(fetchCtx, opts.Client, link)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				opts.Logger.Warn().
					Str("key", entry.Key).
					Str("url", link).
					Err(err).
					Msg("Link preview unavailable")
				return []content.Entry{entry}, nil
			}

			extra := content.Metadata{}
			for field, value := range preview.Fields() {
				if !entry.Metadata.Has(field) {
					extra[field] = value
				}
			}
			return []content.Entry{entry.WithMetadata(extra)}, nil
		}),
	}
}

// Fields applies the per-site rules: Flickr contributes its title and
// image, GitHub only its image, every other site all three fields.
func (p LinkPreview) Fields() content.Metadata {
	fields := content.Metadata{}
	set := func(key, value string) {
		if value != "" {
			fields[key] = value
		}
	}
	switch p.SiteName {
	case "Flickr":
		set("title", p.Title)
		set("image", p.Image)
	case "GitHub":
		set("image", p.Image)
	default:
		set("title", p.Title)
		set("description", p.Description)
		set("image", p.Image)
	}
	return fields
}

// FetchPreview downloads rawURL and extracts its OpenGraph data.
func FetchPreview(ctx context.Context, client *http.Client, rawURL string) (*LinkPreview, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", previewUserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, previewBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	preview := extractPreview(doc)
	if preview.Image != "" {
		if ref, err := url.Parse(preview.Image); err == nil {
			preview.Image = resp.Request.URL.ResolveReference(ref).String()
		}
	}
	return &preview, nil
}

func extractPreview(doc *html.Node) LinkPreview {
	meta := map[string]string{}
	var title string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				key := strings.ToLower(attr(n, "property"))
				if key == "" {
					key = strings.ToLower(attr(n, "name"))
				}
				if key != "" {
					if _, seen := meta[key]; !seen {
						meta[key] = strings.TrimSpace(attr(n, "content"))
					}
				}
			case "title":
				if title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "body":
				// OpenGraph data lives in the head.
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	first := func(keys ...string) string {
		for _, key := range keys {
			if value := meta[key]; value != "" {
				return value
			}
		}
		return ""
	}

	preview := LinkPreview{
		SiteName:    first("og:site_name"),
		Title:       first("og:title", "twitter:title"),
		Description: first("og:description", "twitter:description", "description"),
		Image:       first("og:image", "og:image:url", "twitter:image"),
	}
	if preview.Title == "" {
		preview.Title = title
	}
	return preview
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
