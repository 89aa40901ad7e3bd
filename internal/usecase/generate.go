package usecase

import (
	"context"

	"github.com/workaholic-kv/workaholic/internal/content"
	"github.com/workaholic-kv/workaholic/internal/filesystem"
	"github.com/workaholic-kv/workaholic/internal/pipeline"
)

// Generate runs the pipeline over sourcePath without touching any store
// and returns the derived tables keyed by namespace.
func Generate(ctx context.Context, pipe *pipeline.Pipeline, sourcePath string) (map[string][]content.Entry, error) {
	raw, err := filesystem.Load(ctx, sourcePath)
	if err != nil {
		return nil, err
	}
	result, err := pipe.Run(ctx, raw)
	if result == nil {
		return nil, err
	}
	return result.Map(), err
}
