// Package mcp exposes content queries and posts as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/workaholic-kv/workaholic/internal/plugins"
	"github.com/workaholic-kv/workaholic/internal/query"
	"github.com/workaholic-kv/workaholic/internal/source"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// maxInlineImage bounds the image bytes returned inline by content_query.
const maxInlineImage = 4 << 20

// Server wraps the MCP server with the content tools.
type Server struct {
	server *mcp.Server
	router *query.Router
	posts  *source.Source
}

// NewServer creates a server answering from router. posts may be nil, in
// which case the post tools report that no origin is configured.
func NewServer(router *query.Router, posts *source.Source) *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "workaholic",
			Version: Version,
		}, nil),
		router: router,
		posts:  posts,
	}

	s.registerTools()

	return s
}

// Run serves over stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "content_query",
		Description: "Look up a key in a content namespace (data, list, tags, images, blog)",
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "content_posts",
		Description: "List every blog post, newest first",
	}, s.handlePosts)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "content_post",
		Description: "Read one blog post by slug",
	}, s.handlePost)
}

type QueryInput struct {
	Namespace string `json:"namespace" jsonschema:"The namespace to query"`
	Key       string `json:"key,omitempty" jsonschema:"The key within the namespace; empty lists the root bucket"`
	Accept    string `json:"accept,omitempty" jsonschema:"Accept header used to pick an image format"`
}

type QueryOutput struct {
	Found  bool `json:"found"`
	Result any  `json:"result,omitempty"`
}

// ImageOutput is the inline form of a negotiated image.
type ImageOutput struct {
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
	ETag        string `json:"etag"`
	Data        string `json:"data"`
}

type PostsInput struct{}

type PostsOutput struct {
	Posts []source.Post `json:"posts"`
}

type PostInput struct {
	Slug string `json:"slug" jsonschema:"The post slug"`
}

type PostOutput struct {
	Post source.Post `json:"post"`
}

func (s *Server) handleQuery(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (*mcp.CallToolResult, QueryOutput, error) {
	if input.Namespace == "" {
		return nil, QueryOutput{}, errors.New("namespace is required")
	}

	result, err := s.router.Query(ctx, input.Namespace, input.Key, query.Options{Accept: input.Accept})
	if err != nil {
		return nil, QueryOutput{}, fmt.Errorf("failed to query %s: %w", input.Namespace, err)
	}
	if result == nil {
		return nil, QueryOutput{Found: false}, nil
	}

	if image, ok := result.(*plugins.Image); ok {
		inline, err := inlineImage(image)
		if err != nil {
			return nil, QueryOutput{}, err
		}
		result = inline
	}
	return nil, QueryOutput{Found: true, Result: result}, nil
}

func inlineImage(image *plugins.Image) (*ImageOutput, error) {
	defer image.Body.Close()
	data, err := io.ReadAll(io.LimitReader(image.Body, maxInlineImage+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", image.Key, err)
	}
	if len(data) > maxInlineImage {
		return nil, fmt.Errorf("image %s is too large to return inline", image.Key)
	}
	return &ImageOutput{
		Key:         image.Key,
		ContentType: image.ContentType,
		ETag:        image.ETag,
		Data:        base64.StdEncoding.EncodeToString(data),
	}, nil
}

func (s *Server) handlePosts(ctx context.Context, _ *mcp.CallToolRequest, _ PostsInput) (*mcp.CallToolResult, PostsOutput, error) {
	if s.posts == nil {
		return nil, PostsOutput{}, errors.New("no content origin configured")
	}
	posts, err := s.posts.GetPosts(ctx)
	if err != nil {
		return nil, PostsOutput{}, fmt.Errorf("failed to list posts: %w", err)
	}
	return nil, PostsOutput{Posts: posts}, nil
}

func (s *Server) handlePost(ctx context.Context, _ *mcp.CallToolRequest, input PostInput) (*mcp.CallToolResult, PostOutput, error) {
	if s.posts == nil {
		return nil, PostOutput{}, errors.New("no content origin configured")
	}
	if input.Slug == "" {
		return nil, PostOutput{}, errors.New("slug is required")
	}
	post, err := s.posts.GetPost(ctx, input.Slug)
	if errors.Is(err, source.ErrNotFound) {
		return nil, PostOutput{}, fmt.Errorf("post not found: %s", input.Slug)
	}
	if err != nil {
		return nil, PostOutput{}, fmt.Errorf("failed to get post: %w", err)
	}
	return nil, PostOutput{Post: *post}, nil
}
