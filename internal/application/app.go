// Package application wires the store, the build pipeline, the query
// router and the content source from a loaded configuration.
package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/workaholic-kv/workaholic/internal/clock"
	"github.com/workaholic-kv/workaholic/internal/config"
	"github.com/workaholic-kv/workaholic/internal/database"
	"github.com/workaholic-kv/workaholic/internal/git"
	"github.com/workaholic-kv/workaholic/internal/github"
	"github.com/workaholic-kv/workaholic/internal/logger"
	"github.com/workaholic-kv/workaholic/internal/metrics"
	"github.com/workaholic-kv/workaholic/internal/pipeline"
	"github.com/workaholic-kv/workaholic/internal/plugins"
	"github.com/workaholic-kv/workaholic/internal/query"
	"github.com/workaholic-kv/workaholic/internal/services"
	"github.com/workaholic-kv/workaholic/internal/source"
	"github.com/workaholic-kv/workaholic/internal/usecase"
)

// ErrNoOrigin is returned by PostSource when no origin is configured.
var ErrNoOrigin = errors.New("no content origin configured")

// Options overrides the collaborators New would otherwise create.
type Options struct {
	// DBPath defaults to config.GetDBPath().
	DBPath     string
	Clock      clock.Clock
	HTTPClient *http.Client
	// Origin replaces the configured origin.
	Origin source.Origin
}

// App holds every long-lived component of a process.
type App struct {
	Config   config.Config
	Log      zerolog.Logger
	DB       *database.Context
	Store    *services.KVService
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Source   *source.Source
	Router   *query.Router

	clock      clock.Clock
	httpClient *http.Client
}

// New opens the database and builds the router and, when an origin is
// configured, the content source.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger, opts Options) (*App, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	dbCtx, err := database.CreateDatabase(opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app := &App{
		Config:     cfg,
		Log:        log,
		DB:         dbCtx,
		Store:      services.NewKVService(dbCtx, clk),
		Registry:   registry,
		Metrics:    metrics.New(registry),
		clock:      clk,
		httpClient: httpClient,
	}

	origin := opts.Origin
	if origin == nil {
		origin, err = newOrigin(ctx, cfg.Origin, httpClient, log)
		if err != nil {
			_ = database.CloseDatabase(dbCtx)
			return nil, err
		}
	}

	registrations := plugins.Registrations()
	if origin != nil {
		app.Source = source.New(app.Store, origin, source.Config{
			Path:    cfg.Origin.Path,
			MaxAge:  cfg.Cache.MaxAge,
			TTL:     cfg.Cache.TTL,
			Timeout: cfg.Cache.Timeout,
			Clock:   clk,
			Logger:  logger.Component(log, "source"),
			Metrics: app.Metrics,
		})
		registrations = append(registrations, app.Source.Registration())
	}

	app.Router = query.New(app.Store, registrations...).
		WithLogger(logger.Component(log, "query")).
		WithMetrics(app.Metrics)
	return app, nil
}

// newOrigin returns nil without error when the configured origin lacks the
// fields it needs; commands that do not read posts still work.
func newOrigin(ctx context.Context, cfg config.OriginConfig, httpClient *http.Client, log zerolog.Logger) (source.Origin, error) {
	switch cfg.Kind {
	case "git":
		repo, err := git.Open(ctx, cfg.RepoDir, cfg.Ref)
		if err != nil {
			if errors.Is(err, git.ErrNotRepository) {
				log.Debug().Err(err).Msg("Git origin unavailable")
				return nil, nil
			}
			return nil, err
		}
		log.Debug().Str("root", repo.Root()).Str("ref", cfg.Ref).Msg("Using git origin")
		return repo, nil
	default:
		if cfg.Owner == "" || cfg.Repo == "" {
			return nil, nil
		}
		return github.NewClient(github.Config{
			BaseURL:    cfg.BaseURL,
			Owner:      cfg.Owner,
			Repo:       cfg.Repo,
			Ref:        cfg.Ref,
			Token:      cfg.Token,
			HTTPClient: httpClient,
			Logger:     log,
		})
	}
}

// Plugins returns the build plugins in the order their transforms run.
func (a *App) Plugins() []pipeline.Plugin {
	build := a.Config.Build
	log := logger.Component(a.Log, "build")

	list := []pipeline.Plugin{
		plugins.Collection(build.Collections),
		plugins.Frontmatter(plugins.FrontmatterOptions{Required: build.Required, Summaries: build.Summaries}),
	}
	if build.Previews {
		list = append(list, plugins.Preview(plugins.PreviewOptions{
			Field:   build.PreviewField,
			Client:  a.httpClient,
			Timeout: build.DownloadTimeout,
			Logger:  log,
		}))
	}

	var order plugins.Comparator
	if len(build.ListOrder) > 0 {
		order = plugins.ExplicitOrder(build.ListOrder, plugins.ByDateDesc("date"))
	}

	return append(list,
		plugins.Images(plugins.ImagesOptions{
			Client:      a.httpClient,
			Timeout:     build.DownloadTimeout,
			Width:       build.ImageWidth,
			Concurrency: build.Concurrency,
			Logger:      log,
			Metrics:     a.Metrics,
		}),
		plugins.List(order),
		plugins.Tags(build.TagField),
		plugins.Data(),
	)
}

// Pipeline builds the configured pipeline.
func (a *App) Pipeline() (*pipeline.Pipeline, error) {
	return pipeline.New(a.Plugins(),
		pipeline.WithLogger(logger.Component(a.Log, "pipeline")),
		pipeline.WithMetrics(a.Metrics),
	)
}

// Build returns the build use case over the configured pipeline.
func (a *App) Build() (*usecase.Build, error) {
	pipe, err := a.Pipeline()
	if err != nil {
		return nil, err
	}
	return usecase.NewBuild(a.DB, pipe, a.clock, logger.Component(a.Log, "build")), nil
}

// PostSource returns the content source or ErrNoOrigin.
func (a *App) PostSource() (*source.Source, error) {
	if a.Source == nil {
		return nil, ErrNoOrigin
	}
	return a.Source, nil
}

// Close waits for pending cache writes and closes the database.
func (a *App) Close() error {
	if a.Source != nil {
		a.Source.Wait()
	}
	return database.CloseDatabase(a.DB)
}
