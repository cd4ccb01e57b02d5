// Package app wires configuration to the dataset backends and the offer service.
package app

import (
	"context"
	"fmt"
	"time"

	"college-predictor/internal/common/config"
	"college-predictor/internal/common/database"
	"college-predictor/internal/common/logger"
	"college-predictor/internal/common/observability"
	"college-predictor/internal/cutoff"
	"college-predictor/internal/dataset"
)

// Check is a named dependency probe for readiness endpoints.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Application holds the service and the connections it owns.
type Application struct {
	cfg     *config.Config
	service *cutoff.Service
	dataset cutoff.Dataset
	checks  []Check
	closers []func() error
	logger  logger.Logger
}

type Option func(*options)

type options struct {
	obs          *observability.Observability
	dataset      cutoff.Dataset
	retries      int
	initialDelay time.Duration
}

// WithObservability routes spans and query metrics through obs.
func WithObservability(obs *observability.Observability) Option {
	return func(o *options) { o.obs = obs }
}

// WithDataset skips backend construction and serves from ds.
func WithDataset(ds cutoff.Dataset) Option {
	return func(o *options) { o.dataset = ds }
}

// WithConnectRetries sets how often backend connections are attempted.
func WithConnectRetries(attempts int, initialDelay time.Duration) Option {
	return func(o *options) {
		o.retries = attempts
		o.initialDelay = initialDelay
	}
}

// New builds the application from cfg. On error every opened connection is closed.
func New(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...Option) (*Application, error) {
	o := options{retries: 5, initialDelay: 2 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	a := &Application{cfg: cfg, logger: log}

	categories := cutoff.NewCategorySet(cfg.Dataset.Categories)
	if categories.Len() == 0 {
		categories = cutoff.NewCategorySet(cutoff.DefaultCategories)
	}

	catalog, err := loadCatalog(cfg.Catalog)
	if err != nil {
		return nil, err
	}

	ds := o.dataset
	if ds == nil {
		ds, err = a.openDataset(ctx, categories, o)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	a.dataset = ds

	presentation := cutoff.Presentation{
		PageSize:    cfg.Presentation.PageSize,
		MaxPages:    cfg.Presentation.MaxPages,
		ExportCap:   cfg.Presentation.ExportCap,
		ExportBlock: cfg.Presentation.ExportBlock,
	}

	var svcOpts []cutoff.Option
	if o.obs != nil {
		svcOpts = append(svcOpts, cutoff.WithTracer(o.obs.Tracer()), cutoff.WithRecorder(o.obs))
	}
	a.service = cutoff.NewService(ds, categories, catalog, presentation, log.WithFields(map[string]interface{}{
		"component": "cutoff",
	}), svcOpts...)

	log.Info("Application initialized", map[string]interface{}{
		"backend":    cfg.Dataset.Backend,
		"rounds":     cfg.Dataset.Rounds,
		"categories": categories.Len(),
		"groups":     len(catalog.Groups()),
		"cache":      cfg.Dataset.Cache.Enabled,
	})
	return a, nil
}

func loadCatalog(cc config.CatalogConfig) (*cutoff.Catalog, error) {
	if cc.File == "" {
		return cutoff.DefaultCatalog()
	}
	return cutoff.LoadCatalog(cc.File)
}

func (a *Application) layout(categories cutoff.CategorySet) dataset.Layout {
	return dataset.Layout{
		Rounds:            a.cfg.Dataset.Rounds,
		InstitutionColumn: a.cfg.Dataset.InstitutionColumn,
		ProgramColumn:     a.cfg.Dataset.ProgramColumn,
		Categories:        categories,
		MaxRows:           a.cfg.Dataset.MaxRows,
	}
}

func (a *Application) openDataset(ctx context.Context, categories cutoff.CategorySet, o options) (cutoff.Dataset, error) {
	layout := a.layout(categories)
	dbCfg := a.cfg.Database

	var ds cutoff.Dataset
	switch a.cfg.Dataset.Backend {
	case config.BackendPostgres, config.BackendSQLite:
		var client *database.SQLClient
		var err error
		if a.cfg.Dataset.Backend == config.BackendPostgres {
			client, err = database.NewPostgres(dbCfg.Postgres)
		} else {
			client, err = database.NewSQLite(dbCfg.SQLite)
		}
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		if err := a.connect(ctx, client.Dialect, client.Ping, o); err != nil {
			return nil, err
		}
		store, err := dataset.NewSQLStore(client.DB, client.Dialect, layout, a.logger)
		if err != nil {
			return nil, err
		}
		ds = store

	case config.BackendElasticsearch:
		client, err := database.NewElasticsearch(dbCfg.Elasticsearch)
		if err != nil {
			return nil, err
		}
		if err := a.connect(ctx, "elasticsearch", client.Ping, o); err != nil {
			return nil, err
		}
		store, err := dataset.NewESStore(client.Client, layout, a.logger)
		if err != nil {
			return nil, err
		}
		ds = store

	default:
		return nil, fmt.Errorf("unsupported dataset backend %q", a.cfg.Dataset.Backend)
	}

	if !a.cfg.Dataset.Cache.Enabled {
		return ds, nil
	}

	redis := database.NewRedis(dbCfg.Redis)
	a.closers = append(a.closers, redis.Close)
	if err := a.connect(ctx, "redis", redis.Ping, o); err != nil {
		return nil, err
	}
	return dataset.NewCachedDataset(ds, redis.Client, a.cfg.Dataset.Cache.Namespace, a.cfg.Dataset.CacheTTL(), a.logger), nil
}

// connect pings with exponential backoff and registers the probe for readiness.
func (a *Application) connect(ctx context.Context, name string, ping func(context.Context) error, o options) error {
	err := RetryWithBackoff(ctx, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return ping(pingCtx)
	}, o.retries, o.initialDelay, a.logger, name+" connection")
	if err != nil {
		return err
	}
	a.checks = append(a.checks, Check{Name: name, Ping: ping})
	a.logger.Info("Connected", map[string]interface{}{"dependency": name})
	return nil
}

func (a *Application) Service() *cutoff.Service {
	return a.service
}

func (a *Application) Dataset() cutoff.Dataset {
	return a.dataset
}

// Checks returns the dependency probes in connection order.
func (a *Application) Checks() []Check {
	out := make([]Check, len(a.checks))
	copy(out, a.checks)
	return out
}

// Close releases connections in reverse order of opening.
func (a *Application) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
