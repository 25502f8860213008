// Package predict implements the partitioned eligibility query engine: it
// turns a candidate's rank, category and branch into the colleges whose
// closing ranks fall inside the rank window, for every counselling phase.
package predict

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/collegepredictor/internal/college"
	"github.com/onnwee/collegepredictor/internal/rankwindow"
	"github.com/onnwee/collegepredictor/internal/tracing"
)

// Request is a validated-by-caller prediction request. The engine checks it
// again before touching the store.
type Request struct {
	Rank     int
	Category string
	Branch   string
}

// Prediction is the engine's answer: the rank window that was applied and
// the matching colleges keyed by phase. Every phase is present; a phase
// without matches holds an empty slice.
type Prediction struct {
	Window  rankwindow.Window
	Results map[college.Partition][]college.Projection
}

// Engine queries every counselling phase with the same filter, sort, limit
// and projection. It is safe for concurrent use.
type Engine struct {
	store   college.Store
	logger  *slog.Logger
	metrics *Metrics
	timeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTimeout bounds each prediction, across all phases. Zero means the
// caller's context alone decides.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// NewEngine creates an engine over store.
func NewEngine(store college.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate checks a request and returns its parsed category.
func Validate(req Request) (college.Category, error) {
	if req.Rank <= 0 {
		return "", &ValidationError{Field: "rank", Message: "must be a positive number"}
	}
	if req.Category == "" {
		return "", &ValidationError{Field: "categoryGender", Message: "is required"}
	}
	category, err := college.ParseCategory(req.Category)
	if err != nil {
		return "", &ValidationError{Field: "categoryGender", Message: err.Error()}
	}
	if req.Branch == "" {
		return "", &ValidationError{Field: "branchName", Message: "is required"}
	}
	return category, nil
}

// Predict computes the rank window and queries all phases concurrently.
// A failure in any phase cancels the others and fails the whole call with
// a *DataSourceError; partial results are never returned.
func (e *Engine) Predict(ctx context.Context, req Request) (pred *Prediction, err error) {
	category, err := Validate(req)
	if err != nil {
		e.observe(OutcomeValidationError)
		return nil, err
	}

	window, err := rankwindow.Compute(req.Rank)
	if err != nil {
		e.observe(OutcomeValidationError)
		return nil, &ValidationError{Field: "rank", Message: err.Error()}
	}

	ctx, endSpan := tracing.StartSpan(ctx, "predict.colleges",
		attribute.Int("predict.rank", req.Rank),
		attribute.String("predict.category", string(category)),
	)
	defer func() { endSpan(err) }()
	tracing.AddEvent(ctx, "window_computed",
		attribute.Int("predict.min_rank", window.Min),
		attribute.Int("predict.max_rank", window.Max),
	)

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	query := college.Query{
		Category: category,
		MinRank:  window.Min,
		MaxRank:  window.Max,
		Branch:   req.Branch,
		Limit:    college.MaxResultsPerPartition,
	}

	partitions := college.Partitions()
	found := make([][]college.Projection, len(partitions))

	g, gctx := errgroup.WithContext(ctx)
	for i, partition := range partitions {
		g.Go(func() error {
			start := time.Now()
			rows, err := e.store.QueryPartition(gctx, partition, query)
			if err != nil {
				return &DataSourceError{Partition: partition, Err: err}
			}
			if e.metrics != nil {
				e.metrics.ObservePartitionQuery(string(partition), time.Since(start).Seconds(), len(rows))
			}
			found[i] = rows
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.observe(OutcomeDataSourceError)
		e.logger.ErrorContext(ctx, "prediction failed",
			"error", err,
			"rank", req.Rank,
			"category", string(category),
		)
		return nil, err
	}

	results := make(map[college.Partition][]college.Projection, len(partitions))
	total := 0
	for i, partition := range partitions {
		rows := found[i]
		if rows == nil {
			rows = []college.Projection{}
		}
		results[partition] = rows
		total += len(rows)
	}
	tracing.SetAttributes(ctx, attribute.Int("predict.results", total))

	e.observe(OutcomeSuccess)
	e.logger.DebugContext(ctx, "prediction completed",
		"rank", req.Rank,
		"category", string(category),
		"window", window.String(),
	)

	return &Prediction{
		Window:  window,
		Results: results,
	}, nil
}

func (e *Engine) observe(outcome string) {
	if e.metrics != nil {
		e.metrics.IncPredictions(outcome)
	}
}
