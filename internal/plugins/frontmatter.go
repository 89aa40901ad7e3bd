// Package plugins holds the build plugins and the matching query handlers
// for each derived namespace.
package plugins

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/workaholic-kv/workaholic/internal/content"
	"github.com/workaholic-kv/workaholic/internal/pipeline"
)

const frontmatterDelimiter = "---"

var (
	markdownOnce   sync.Once
	markdownParser goldmark.Markdown
)

func getMarkdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownParser = goldmark.New()
	})
	return markdownParser
}

// FrontmatterOptions configures the frontmatter transform.
type FrontmatterOptions struct {
	// Required lists fields every document with a frontmatter block must set.
	Required []string
	// Summaries fills a missing title from the first heading and a missing
	// description from the first paragraph of the body.
	Summaries bool
}

// Frontmatter splits the YAML block at the top of each document into
// metadata and keeps the remaining body as the value.
func Frontmatter(opts FrontmatterOptions) pipeline.Plugin {
	return pipeline.Plugin{
		Namespace: "frontmatter",
		Transformer: pipeline.TransformFunc(func(_ context.Context, entry content.Entry) ([]content.Entry, error) {
			if entry.IsBinary || !content.IsDocument(entry.Key) {
				return []content.Entry{entry}, nil
			}
			parsed, err := parseFrontmatter(entry, opts)
			if err != nil {
				return nil, err
			}
			return []content.Entry{parsed}, nil
		}),
	}
}

func parseFrontmatter(entry content.Entry, opts FrontmatterOptions) (content.Entry, error) {
	header, body, found := splitFrontmatter(entry.Text())
	if !found {
		return entry, nil
	}

	var fields map[string]any
	if err := yaml.Unmarshal([]byte(header), &fields); err != nil {
		return content.Entry{}, &content.ValidationError{Key: entry.Key, Reason: "malformed frontmatter: " + err.Error()}
	}

	if opts.Summaries {
		title, description := summarize([]byte(body))
		if _, ok := fields["title"]; !ok && title != "" {
			fields = withField(fields, "title", title)
		}
		if _, ok := fields["description"]; !ok && description != "" {
			fields = withField(fields, "description", description)
		}
	}

	for _, field := range opts.Required {
		if value, ok := fields[field]; !ok || value == nil || value == "" {
			return content.Entry{}, &content.ValidationError{Key: entry.Key, Field: field, Reason: "is required"}
		}
	}

	out := entry.WithMetadata(fields)
	out.Value = []byte(body)
	return out, nil
}

func withField(fields map[string]any, key string, value any) map[string]any {
	if fields == nil {
		fields = make(map[string]any)
	}
	fields[key] = value
	return fields
}

// splitFrontmatter returns the YAML between a leading "---" line and the
// next "---" line, and the body after it.
func splitFrontmatter(src string) (header, body string, found bool) {
	src = strings.TrimPrefix(src, "\ufeff")
	first, rest, ok := cutLine(src)
	if !ok || strings.TrimRight(first, " \t\r") != frontmatterDelimiter {
		return "", src, false
	}

	var lines []string
	for {
		line, remaining, more := cutLine(rest)
		if strings.TrimRight(line, " \t\r") == frontmatterDelimiter {
			return strings.Join(lines, "\n"), remaining, true
		}
		if !more {
			return "", src, false
		}
		lines = append(lines, line)
		rest = remaining
	}
}

func cutLine(s string) (line, rest string, more bool) {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", s != ""
}

// summarize returns the text of the first heading and first paragraph.
func summarize(src []byte) (title, description string) {
	doc := getMarkdown().Parser().Parse(text.NewReader(src))
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node.Kind() {
		case ast.KindHeading:
			if title == "" {
				title = plainText(node, src)
			}
			return ast.WalkSkipChildren, nil
		case ast.KindParagraph:
			if description == "" {
				description = plainText(node, src)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return title, description
}

func plainText(node ast.Node, src []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(node, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := child.(type) {
		case *ast.Text:
			buf.Write(n.Segment.Value(src))
			if n.SoftLineBreak() || n.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(n.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}
