package source

import (
	"context"
	"errors"

	"github.com/workaholic-kv/workaholic/internal/kv"
	"github.com/workaholic-kv/workaholic/internal/query"
)

// NamespaceBlog is the query namespace answered by the content source.
const NamespaceBlog = "blog"

// Registration exposes the source through the query router. The empty key
// lists every post; any other key is a slug.
func (s *Source) Registration() query.Registration {
	return query.Registration{
		Namespace: NamespaceBlog,
		Factory: func(kv.Reader) query.Handler {
			return func(ctx context.Context, key string, _ query.Options) (any, error) {
				if key == "" {
					return s.GetPosts(ctx)
				}
				post, err := s.GetPost(ctx, key)
				if errors.Is(err, ErrNotFound) {
					return nil, nil
				}
				if err != nil {
					return nil, err
				}
				return post, nil
			}
		},
	}
}
