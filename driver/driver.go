// Package driver moves the engine through time. Driver decides which year
// to load and filters load results; Player is the single goroutine that
// owns the engine and interleaves ticks, loads and interaction commands.
package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TFMV/pubmap/engine"
	"github.com/TFMV/pubmap/logging"
	"github.com/TFMV/pubmap/models"
	"github.com/TFMV/pubmap/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrStaleResponse is returned by Deliver for a result whose request has
// been superseded.
var ErrStaleResponse = errors.New("stale snapshot response")

// EndPolicy decides what auto-advance does at the last year.
type EndPolicy string

const (
	EndWrap EndPolicy = "wrap"
	EndStop EndPolicy = "stop"
)

// Config controls the timeline and the run loop.
type Config struct {
	EndPolicy       EndPolicy     `toml:"end_policy" yaml:"end_policy" json:"end_policy"`
	AutoAdvance     bool          `toml:"auto_advance" yaml:"auto_advance" json:"auto_advance"`
	AdvanceInterval time.Duration `toml:"advance_interval" yaml:"advance_interval" json:"advance_interval"`
	FrameInterval   time.Duration `toml:"frame_interval" yaml:"frame_interval" json:"frame_interval"`
	LoadTimeout     time.Duration `toml:"load_timeout" yaml:"load_timeout" json:"load_timeout"` // 0 disables
	StartYear       int           `toml:"start_year" yaml:"start_year" json:"start_year"`       // 0 means the first year
}

// DefaultConfig advances every 3s at about 60 frames per second.
func DefaultConfig() Config {
	return Config{
		EndPolicy:       EndWrap,
		AutoAdvance:     true,
		AdvanceInterval: 3 * time.Second,
		FrameInterval:   16 * time.Millisecond,
		LoadTimeout:     10 * time.Second,
	}
}

// Validate checks the policy and intervals.
func (c Config) Validate() error {
	switch c.EndPolicy {
	case EndWrap, EndStop:
	default:
		return fmt.Errorf("unknown end_policy %q", c.EndPolicy)
	}
	if c.AdvanceInterval <= 0 || c.FrameInterval <= 0 {
		return fmt.Errorf("advance_interval and frame_interval must be positive")
	}
	if c.LoadTimeout < 0 {
		return fmt.Errorf("load_timeout must be non-negative")
	}
	return nil
}

// Loader fetches the snapshot of one year.
type Loader interface {
	Snapshot(ctx context.Context, year int) (*models.Snapshot, error)
}

// Request is an issued snapshot load. Only the latest request may be
// delivered.
type Request struct {
	Gen     uint64
	Year    int
	ctx     context.Context
	started time.Time
}

// Result is the completion of a Request.
type Result struct {
	Gen      uint64
	Year     int
	Snapshot *models.Snapshot
	Err      error
	Elapsed  time.Duration
}

// Driver is the temporal state machine. Apart from Fetch, its methods must
// be called from the goroutine that owns the engine.
type Driver struct {
	loader  Loader
	min     int
	max     int
	policy  EndPolicy
	timeout time.Duration

	year   int
	gen    uint64
	cancel context.CancelFunc

	log     logging.Logger
	metrics *observability.Collector
}

// New creates a driver over [minYear, maxYear].
func New(loader Loader, minYear, maxYear int, cfg Config, log logging.Logger, metrics *observability.Collector) (*Driver, error) {
	if minYear > maxYear {
		return nil, fmt.Errorf("year range [%d,%d] is empty", minYear, maxYear)
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Driver{
		loader:  loader,
		min:     minYear,
		max:     maxYear,
		policy:  cfg.EndPolicy,
		timeout: cfg.LoadTimeout,
		year:    minYear,
		log:     log,
		metrics: metrics,
	}, nil
}

// Year returns the most recently requested year.
func (d *Driver) Year() int { return d.year }

// Range returns the year bounds.
func (d *Driver) Range() (int, int) { return d.min, d.max }

// Generation returns the id of the latest request.
func (d *Driver) Generation() uint64 { return d.gen }

// SetYear requests year, clamped to the range. Any pending request is
// cancelled.
func (d *Driver) SetYear(ctx context.Context, year int) *Request {
	d.year = min(max(year, d.min), d.max)
	return d.issue(ctx)
}

// Advance requests the next year. At the last year it wraps to the first,
// or, under the stop policy, returns false and issues nothing.
func (d *Driver) Advance(ctx context.Context) (*Request, bool) {
	next := d.year + 1
	if next > d.max {
		if d.policy == EndStop {
			return nil, false
		}
		next = d.min
	}
	d.year = next
	return d.issue(ctx), true
}

func (d *Driver) issue(ctx context.Context) *Request {
	d.CancelPending()
	d.gen++

	var rctx context.Context
	var cancel context.CancelFunc
	if d.timeout > 0 {
		rctx, cancel = context.WithTimeout(ctx, d.timeout)
	} else {
		rctx, cancel = context.WithCancel(ctx)
	}
	d.cancel = cancel
	return &Request{Gen: d.gen, Year: d.year, ctx: rctx, started: time.Now()}
}

// CancelPending cancels the in-flight request, if any.
func (d *Driver) CancelPending() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

// Fetch performs the load for req. It blocks and may run on any goroutine.
func (d *Driver) Fetch(req *Request) Result {
	ctx, span := observability.StartSpan(req.ctx, "snapshot.load",
		attribute.Int("pubmap.year", req.Year),
		attribute.Int64("pubmap.generation", int64(req.Gen)),
	)
	defer span.End()

	snap, err := d.loader.Snapshot(ctx, req.Year)
	if err == nil && snap == nil {
		err = fmt.Errorf("year %d: %w", req.Year, models.ErrSnapshotNotFound)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("pubmap.nodes", len(snap.Nodes)), attribute.Int("pubmap.edges", len(snap.Edges)))
	}
	return Result{Gen: req.Gen, Year: req.Year, Snapshot: snap, Err: err, Elapsed: time.Since(req.started)}
}

// Deliver applies res to eng if it answers the latest request. Stale
// results return ErrStaleResponse and failed loads return their error; in
// both cases eng keeps its current graph and keeps ticking.
func (d *Driver) Deliver(ctx context.Context, eng *engine.Engine, res Result) (*engine.Outcome, error) {
	if res.Gen != d.gen {
		d.metrics.RecordLoad(observability.LoadStale, 0)
		d.log.Debug(ctx, "discarding stale snapshot",
			logging.Int("year", res.Year),
			logging.Any("generation", res.Gen),
			logging.Any("latest", d.gen),
		)
		return nil, fmt.Errorf("year %d: %w", res.Year, ErrStaleResponse)
	}
	d.CancelPending()

	if res.Err != nil {
		outcome := observability.LoadFailed
		if errors.Is(res.Err, context.Canceled) {
			outcome = observability.LoadCancelled
		}
		d.metrics.RecordLoad(outcome, res.Elapsed)
		d.log.Warn(ctx, "snapshot load failed; keeping current layout",
			logging.Int("year", res.Year),
			logging.Err(res.Err),
		)
		return nil, res.Err
	}

	if res.Snapshot.Year == 0 {
		res.Snapshot.Year = res.Year
	}
	out := eng.Load(res.Snapshot)
	d.metrics.RecordLoad(observability.LoadOK, res.Elapsed)
	d.metrics.SetGraph(res.Year, out.Report.Nodes, out.Report.Edges)

	for _, a := range out.Report.Anomalies {
		d.metrics.RecordAnomaly(a.KindName())
		d.log.Warn(ctx, "snapshot anomaly",
			logging.Int("year", res.Year),
			logging.String("kind", a.KindName()),
			logging.String("id", a.ID),
			logging.String("detail", a.Detail),
		)
	}
	for _, id := range out.CancelledDrags {
		d.log.Info(ctx, "drag cancelled; node left the graph", logging.String("id", id))
	}
	d.log.Info(ctx, "snapshot loaded",
		logging.Int("year", res.Year),
		logging.Int("nodes", out.Report.Nodes),
		logging.Int("edges", out.Report.Edges),
		logging.Int("anomalies", len(out.Report.Anomalies)),
		logging.Any("elapsed", res.Elapsed),
	)
	return out, nil
}
