// Package github reads repository contents through the GitHub REST API.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/workaholic-kv/workaholic/internal/source"
)

const (
	// DefaultBaseURL is the public GitHub API.
	DefaultBaseURL = "https://api.github.com"

	apiVersion       = "2022-11-28"
	maxResponseBytes = 16 << 20
)

// The origin sentinels are shared with the content source so callers can
// match them without knowing which origin is configured.
var (
	ErrNotFound     = source.ErrNotFound
	ErrNotDirectory = source.ErrNotDirectory
	ErrNotFile      = source.ErrNotFile
)

// Config configures a Client. Token is optional; anonymous requests are
// subject to a much lower rate limit.
type Config struct {
	BaseURL    string
	Owner      string
	Repo       string
	Ref        string
	Token      string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client implements source.Origin over the contents endpoint.
type Client struct {
	baseURL    string
	owner      string
	repo       string
	ref        string
	token      string
	httpClient *http.Client
	responses  *responseCache
	log        zerolog.Logger
}

var _ source.Origin = (*Client)(nil)

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("github: API client requires HTTPS (got %q)", baseURL)
	}
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, errors.New("github: owner and repo are required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		owner:      cfg.Owner,
		repo:       cfg.Repo,
		ref:        cfg.Ref,
		token:      cfg.Token,
		httpClient: httpClient,
		responses:  newResponseCache(),
		log:        cfg.Logger.With().Str("component", "github").Logger(),
	}, nil
}

// contentItem is one object of the contents API. Directory listings are a
// JSON array of these; files are a single object with base64 content.
type contentItem struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// ListDirectory lists the entries under dir.
func (c *Client) ListDirectory(ctx context.Context, dir string) ([]source.DirEntry, error) {
	body, err := c.contents(ctx, dir)
	if err != nil {
		return nil, err
	}
	if !isArray(body) {
		return nil, fmt.Errorf("github: %s: %w", dir, ErrNotDirectory)
	}

	var items []contentItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("github: decoding listing of %s: %w", dir, err)
	}

	entries := make([]source.DirEntry, 0, len(items))
	for _, item := range items {
		entryType := source.TypeFile
		if item.Type == "dir" {
			entryType = source.TypeDirectory
		}
		entries = append(entries, source.DirEntry{Name: item.Name, Path: item.Path, Type: entryType})
	}
	return entries, nil
}

// GetFile returns the decoded contents of the file at name.
func (c *Client) GetFile(ctx context.Context, name string) ([]byte, error) {
	body, err := c.contents(ctx, name)
	if err != nil {
		return nil, err
	}
	if isArray(body) {
		return nil, fmt.Errorf("github: %s: %w", name, ErrNotFile)
	}

	var item contentItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("github: decoding %s: %w", name, err)
	}
	if item.Type != "file" {
		return nil, fmt.Errorf("github: %s is a %s: %w", name, item.Type, ErrNotFile)
	}
	if item.Encoding != "" && item.Encoding != "base64" {
		return nil, fmt.Errorf("github: %s: unsupported encoding %q", name, item.Encoding)
	}

	// The API wraps base64 content at 60 columns.
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(item.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("github: decoding content of %s: %w", name, err)
	}
	return data, nil
}

func (c *Client) contents(ctx context.Context, name string) ([]byte, error) {
	segments := strings.Split(strings.Trim(name, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		c.baseURL, url.PathEscape(c.owner), url.PathEscape(c.repo), strings.Join(segments, "/"))
	if c.ref != "" {
		endpoint += "?ref=" + url.QueryEscape(c.ref)
	}
	return c.get(ctx, endpoint)
}

// get performs a conditional GET, answering 304 from the ETag cache.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("github: creating request: %w", err)
	}
	request.Header.Set("Accept", "application/vnd.github+json")
	request.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}
	etag, cached, hasCached := c.responses.lookup(endpoint)
	if hasCached {
		request.Header.Set("If-None-Match", etag)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("github: GET %s: %w", endpoint, err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotModified && hasCached {
		c.log.Debug().Str("url", endpoint).Msg("Contents not modified")
		return cached, nil
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("github: reading response body: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, parseAPIError(response.StatusCode, body)
	}

	c.responses.remember(endpoint, response.Header.Get("ETag"), body)
	return body, nil
}

func isArray(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	return strings.HasPrefix(trimmed, "[")
}
