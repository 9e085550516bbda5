package core

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/geopoly/internal/logging"
)

// DefaultBatchSize is the number of points evaluated by one batch task.
const DefaultBatchSize = 1000

const tracerName = "github.com/signalsfoundry/geopoly/core"

// Membership is the containment state of a point in a pre-seeded map.
type Membership int8

const (
	Unknown Membership = iota
	Outside
	Inside
)

func membershipOf(in bool) Membership {
	if in {
		return Inside
	}
	return Outside
}

func (m Membership) String() string {
	switch m {
	case Inside:
		return "inside"
	case Outside:
		return "outside"
	default:
		return "unknown"
	}
}

// BatchRecorder receives one observation per batch call. The observability
// collector implements it.
type BatchRecorder interface {
	ObserveBatch(kind string, points, tasks int, elapsed time.Duration, err error)
}

type batchConfig struct {
	workers   int
	batchSize int
	log       logging.Logger
	recorder  BatchRecorder
}

// BatchOption configures a batch containment call.
type BatchOption func(*batchConfig)

// WithWorkers sets the worker pool size. Fewer than 2 workers evaluates
// sequentially on the calling goroutine.
func WithWorkers(n int) BatchOption {
	return func(c *batchConfig) { c.workers = n }
}

// WithBatchSize sets the number of points per task.
func WithBatchSize(n int) BatchOption {
	return func(c *batchConfig) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithLogger sets the logger used for batch diagnostics.
func WithLogger(l logging.Logger) BatchOption {
	return func(c *batchConfig) { c.log = l }
}

// WithRecorder sets a metrics sink for batch calls.
func WithRecorder(r BatchRecorder) BatchOption {
	return func(c *batchConfig) { c.recorder = r }
}

func newBatchConfig(ctx context.Context, opts []BatchOption) batchConfig {
	cfg := batchConfig{workers: 1, batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = logging.LoggerFromContext(ctx)
	}
	if cfg.log == nil {
		cfg.log = logging.Noop()
	}
	return cfg
}

// ContainsBatch evaluates Contains for every point and returns the results in
// input order. Points are split into batches that run on a pool of workers;
// the call returns once every batch has finished. If any batch fails the
// error is returned and no results are.
//
// The context carries tracing and logging only; in-flight batches are not
// cancelled.
func (p *Polygon) ContainsBatch(ctx context.Context, points []r3.Vector, opts ...BatchOption) ([]bool, error) {
	cfg := newBatchConfig(ctx, opts)
	return p.snapshot().containsBatch(ctx, "sequence", points, cfg)
}

// ContainsSet evaluates every point of an unordered set and returns the
// results keyed by point.
func (p *Polygon) ContainsSet(ctx context.Context, points map[r3.Vector]struct{}, opts ...BatchOption) (map[r3.Vector]bool, error) {
	cfg := newBatchConfig(ctx, opts)
	keys := lo.Keys(points)
	results, err := p.snapshot().containsBatch(ctx, "set", keys, cfg)
	if err != nil {
		return nil, err
	}
	out := make(map[r3.Vector]bool, len(keys))
	for i, k := range keys {
		out[k] = results[i]
	}
	return out, nil
}

// ContainsMap fills in every Unknown entry of results. Entries that already
// hold Inside or Outside are left alone. On error the map is not modified.
func (p *Polygon) ContainsMap(ctx context.Context, results map[r3.Vector]Membership, opts ...BatchOption) error {
	cfg := newBatchConfig(ctx, opts)
	pending := make([]r3.Vector, 0, len(results))
	for k, m := range results {
		if m == Unknown {
			pending = append(pending, k)
		}
	}
	in, err := p.snapshot().containsBatch(ctx, "map", pending, cfg)
	if err != nil {
		return err
	}
	for i, k := range pending {
		results[k] = membershipOf(in[i])
	}
	return nil
}

func (s *shape) containsBatch(ctx context.Context, kind string, points []r3.Vector, cfg batchConfig) (results []bool, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "polygon.contains_batch",
		trace.WithAttributes(
			attribute.String("batch.kind", kind),
			attribute.Int("batch.points", len(points)),
			attribute.Int("batch.workers", cfg.workers),
			attribute.Int("batch.size", cfg.batchSize),
		))
	defer span.End()

	start := time.Now()
	tasks := 1
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			cfg.log.Error(ctx, "batch containment failed",
				logging.String("kind", kind),
				logging.Int("points", len(points)),
				logging.Err(err),
			)
		}
		if cfg.recorder != nil {
			cfg.recorder.ObserveBatch(kind, len(points), tasks, time.Since(start), err)
		}
	}()

	if cfg.workers < 2 || len(points) <= cfg.batchSize {
		results = make([]bool, len(points))
		if err := s.evaluate(points, results); err != nil {
			return nil, err
		}
		return results, nil
	}

	chunks := lo.Chunk(points, cfg.batchSize)
	tasks = len(chunks)
	cfg.log.Debug(ctx, "dispatching batch containment",
		logging.String("kind", kind),
		logging.Int("points", len(points)),
		logging.Int("tasks", tasks),
		logging.Int("workers", cfg.workers),
	)

	// Each task owns its chunk and its partial result; the shape is shared
	// read-only.
	partial := make([][]bool, len(chunks))
	var g errgroup.Group
	g.SetLimit(cfg.workers)
	for i, chunk := range chunks {
		g.Go(func() error {
			out := make([]bool, len(chunk))
			if err := s.evaluate(chunk, out); err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}
			partial[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results = make([]bool, 0, len(points))
	for _, out := range partial {
		results = append(results, out...)
	}
	return results, nil
}

// snapshot copies the query geometry so a batch is unaffected by later
// mutators; the edges themselves are shared.
func (p *Polygon) snapshot() *shape {
	s := p.shape
	return &s
}

// evaluate classifies points into out, converting a panic into an error.
func (s *shape) evaluate(points []r3.Vector, out []bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*ContractError); ok {
				err = ce
				return
			}
			err = fmt.Errorf("containment panicked: %v", r)
		}
	}()
	for i, x := range points {
		out[i] = s.contains(x)
	}
	return nil
}
