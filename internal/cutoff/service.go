package cutoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"college-predictor/internal/common/logger"
	"college-predictor/internal/common/metrics"
)

const (
	modePage   = "page"
	modeExport = "export"
)

// Dataset exposes the per-round cutoff tables. Implementations return the
// records of one round with the cutoff read from the given category column.
type Dataset interface {
	ScanRound(ctx context.Context, round Round, category Category) ([]CutoffRecord, error)
}

// Recorder receives one observation per finished query.
type Recorder interface {
	RecordQuery(ctx context.Context, mode, status string, duration time.Duration)
}

type Option func(*Service)

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// Service answers page and export queries. It keeps no per-request state, so
// one instance serves concurrent callers.
type Service struct {
	dataset      Dataset
	categories   CategorySet
	catalog      *Catalog
	presentation Presentation
	logger       logger.Logger
	tracer       trace.Tracer
	recorder     Recorder
}

func NewService(ds Dataset, categories CategorySet, catalog *Catalog, presentation Presentation, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		dataset:      ds,
		categories:   categories,
		catalog:      catalog,
		presentation: presentation.withDefaults(),
		logger:       log,
		tracer:       noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Categories() CategorySet {
	return s.categories
}

func (s *Service) Catalog() *Catalog {
	return s.catalog
}

func (s *Service) Presentation() Presentation {
	return s.presentation
}

// Validate checks the request against the allow-list and resolves its group.
func (s *Service) Validate(req Request) (Query, error) {
	if req.Rank < 1 {
		return Query{}, fmt.Errorf("%w: %d", ErrInvalidRank, req.Rank)
	}
	category, err := s.categories.Parse(req.Category)
	if err != nil {
		return Query{}, err
	}
	return Query{
		Rank:     req.Rank,
		Category: category,
		Group:    req.Group,
		Programs: s.catalog.Resolve(req.Group),
	}, nil
}

// GetPage returns one page of offers ordered by ascending cutoff.
func (s *Service) GetPage(ctx context.Context, req Request, pageNumber int) (*ResultPage, error) {
	start := time.Now()

	q, err := s.Validate(req)
	if err == nil && pageNumber < 1 {
		err = fmt.Errorf("%w: %d", ErrInvalidPage, pageNumber)
	}
	if err != nil {
		s.observe(ctx, modePage, start, err)
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "cutoff.GetPage", trace.WithAttributes(queryAttributes(q)...))
	defer span.End()

	tables, err := s.scan(ctx, q.Category)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.observe(ctx, modePage, start, err)
		return nil, err
	}

	offers := Reconcile(tables, q.Rank, q.Programs)
	matching := CountMatching(tables, q.Rank, q.Programs)

	page := s.presentation.Paginate(offers, pageNumber, matching)
	page.Rank = q.Rank
	page.Category = q.Category.String()
	page.Group = q.Group

	metrics.ReconciledOffers.WithLabelValues(modePage).Observe(float64(len(offers)))
	s.observe(ctx, modePage, start, nil)
	s.logger.Info("Resolved offer page", map[string]interface{}{
		"rank":          q.Rank,
		"category":      q.Category.String(),
		"group":         q.Group,
		"mode":          modePage,
		"page":          pageNumber,
		"offerCount":    page.OfferCount,
		"matchingCount": page.MatchingCount,
		"totalPages":    page.TotalPages,
		"duration":      time.Since(start).String(),
	})
	return &page, nil
}

// GetExportSet returns at most ExportCap offers in export order.
func (s *Service) GetExportSet(ctx context.Context, req Request) ([]ReconciledOffer, error) {
	start := time.Now()

	q, err := s.Validate(req)
	if err != nil {
		s.observe(ctx, modeExport, start, err)
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "cutoff.GetExportSet", trace.WithAttributes(queryAttributes(q)...))
	defer span.End()

	tables, err := s.scan(ctx, q.Category)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.observe(ctx, modeExport, start, err)
		return nil, err
	}

	offers := Reconcile(tables, q.Rank, q.Programs)
	ordered := s.presentation.ExportOrdering(offers)

	metrics.ReconciledOffers.WithLabelValues(modeExport).Observe(float64(len(offers)))
	s.observe(ctx, modeExport, start, nil)
	s.logger.Info("Built offer export", map[string]interface{}{
		"rank":          q.Rank,
		"category":      q.Category.String(),
		"group":         q.Group,
		"mode":          modeExport,
		"offerCount":    len(offers),
		"exportedCount": len(ordered),
		"duration":      time.Since(start).String(),
	})
	return ordered, nil
}

// scan reads all rounds concurrently. Any failure aborts the whole request,
// since reconciliation needs every round.
func (s *Service) scan(ctx context.Context, category Category) (RoundTables, error) {
	var results [len(Rounds)][]CutoffRecord

	g, gctx := errgroup.WithContext(ctx)
	for i, round := range Rounds {
		g.Go(func() error {
			scanStart := time.Now()
			records, err := s.dataset.ScanRound(gctx, round, category)
			metrics.RoundScanDuration.WithLabelValues(round.String()).Observe(time.Since(scanStart).Seconds())
			if err != nil {
				return fmt.Errorf("scan %s round: %w", round, err)
			}
			results[i] = records
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrQueryTimeout, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrDatasetUnavailable, err)
	}

	tables := make(RoundTables, len(Rounds))
	for i, round := range Rounds {
		tables[round] = results[i]
	}
	return tables, nil
}

func (s *Service) observe(ctx context.Context, mode string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = string(ToStandardError(err).Code)
		s.logger.Warn("Offer query failed", map[string]interface{}{
			"mode":  mode,
			"error": err.Error(),
		})
	}
	elapsed := time.Since(start)
	metrics.OfferRequestsTotal.WithLabelValues(mode, status).Inc()
	metrics.OfferRequestDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	if s.recorder != nil {
		s.recorder.RecordQuery(ctx, mode, status, elapsed)
	}
}

func queryAttributes(q Query) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("offers.rank", q.Rank),
		attribute.String("offers.category", q.Category.String()),
		attribute.String("offers.group", q.Group),
		attribute.Bool("offers.group_filter", q.Programs.Active()),
	}
}
