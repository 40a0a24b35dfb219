package query

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/sanketb-14/Streamline-sub000/internal/config"
	"github.com/sanketb-14/Streamline-sub000/internal/models"
	"github.com/sanketb-14/Streamline-sub000/internal/observability"
	"github.com/sanketb-14/Streamline-sub000/internal/repository"
)

// Store runs compiled catalog queries. repository.VideoRepository satisfies it.
type Store interface {
	Query(ctx context.Context, q repository.Query) ([]*models.Video, int64, error)
}

// Page is one page of results.
type Page struct {
	Items    []*models.Video
	Total    int64
	Page     int
	PageSize int
	// Fields is the effective projection.
	Fields []repository.Field
}

// Engine parses requests and serves pages from the catalog.
type Engine struct {
	store   Store
	opts    Options
	cache   PageCache
	metrics *observability.Metrics
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache serves repeated requests from cache.
func WithCache(c PageCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithMetrics records query latency and cache lookups.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine over store.
func NewEngine(store Store, cfg config.QueryConfig, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		opts: Options{
			Strict:       cfg.Strict,
			DefaultLimit: cfg.DefaultLimit,
			MaxLimit:     cfg.MaxLimit,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = observability.WithComponent(e.logger, "query")
	return e
}

// Invalidate drops cached pages after a catalog change.
func (e *Engine) Invalidate(ctx context.Context) {
	if e.cache != nil {
		e.cache.Invalidate(ctx)
	}
}

// BuildPage parses values and returns the requested page. Invalid input is
// an *InvalidParameterError.
func (e *Engine) BuildPage(ctx context.Context, values url.Values) (*Page, error) {
	spec, err := Parse(values, e.opts)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, spec)
}

// Run executes a parsed Spec.
func (e *Engine) Run(ctx context.Context, spec *Spec) (*Page, error) {
	fields := spec.Fields
	if fields == nil {
		fields = DefaultFields()
	}
	page := &Page{Items: []*models.Video{}, Page: spec.Page, PageSize: spec.Limit, Fields: fields}

	// min > max matches nothing; no need to ask the store.
	if spec.Views.Empty() || (spec.Date.From != nil && spec.Date.To != nil && spec.Date.From.After(*spec.Date.To)) {
		return page, nil
	}

	if e.cache != nil {
		if cached, ok := e.cache.Load(ctx, spec); ok {
			e.metrics.CacheLookup(true)
			return cached, nil
		}
		e.metrics.CacheLookup(false)
	}

	start := time.Now()
	items, total, err := e.store.Query(ctx, Compile(spec))
	e.metrics.ObserveQuery(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	page.Items, page.Total = items, total

	e.logger.DebugContext(ctx, "query executed",
		slog.String("sort", spec.SortName),
		slog.Int("page", spec.Page),
		slog.Int("limit", spec.Limit),
		slog.Int64("total", total),
		slog.Duration("duration", time.Since(start)),
	)

	if e.cache != nil {
		e.cache.Store(ctx, spec, page)
	}
	return page, nil
}

// Compile turns a Spec into a typed catalog query.
func Compile(spec *Spec) repository.Query {
	q := repository.Query{
		Search: spec.Search,
		Sort:   spec.Sort,
		Offset: spec.Offset(),
		Limit:  spec.Limit,
		Fields: spec.Fields,
	}

	if len(spec.Tags) > 0 {
		tags := make([]any, len(spec.Tags))
		for i, t := range spec.Tags {
			tags[i] = t
		}
		q.Predicates = append(q.Predicates, repository.In(repository.FieldTags, tags...))
	}
	if spec.Date.From != nil || spec.Date.To != nil {
		q.Predicates = append(q.Predicates, repository.Range(repository.FieldCreatedAt, timeOrNil(spec.Date.From), timeOrNil(spec.Date.To)))
	}
	if spec.Views.Min != nil || spec.Views.Max != nil {
		q.Predicates = append(q.Predicates, repository.Range(repository.FieldViews, intOrNil(spec.Views.Min), intOrNil(spec.Views.Max)))
	}
	return q
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func intOrNil(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}
