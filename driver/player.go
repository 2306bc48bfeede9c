package driver

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/TFMV/pubmap/engine"
	"github.com/TFMV/pubmap/logging"
	"github.com/TFMV/pubmap/observability"
	"github.com/TFMV/pubmap/physics"
)

// ErrNotRunning is returned by commands sent to a player whose run loop has
// not started or has exited.
var ErrNotRunning = errors.New("player is not running")

// FrameSink receives every published frame on the run loop goroutine. It
// must not block.
type FrameSink func(*engine.Frame)

// Status is a snapshot of the player state.
type Status struct {
	Year     int      `json:"year"`
	Loaded   int      `json:"loaded"`
	MinYear  int      `json:"minYear"`
	MaxYear  int      `json:"maxYear"`
	Playing  bool     `json:"playing"`
	State    string   `json:"state"`
	Dragging []string `json:"dragging,omitempty"`
}

// Player owns an Engine and a Driver and is their only mutator. Ticks,
// load results, auto-advance and commands are serialised through Run.
type Player struct {
	eng     *engine.Engine
	drv     *Driver
	cfg     Config
	log     logging.Logger
	metrics *observability.Collector

	cmds    chan func(context.Context)
	results chan Result
	done    chan struct{}
	running atomic.Bool
	latest  atomic.Pointer[engine.Frame]
	sinks   []FrameSink

	playing bool
	advance *time.Ticker
	dirty   bool
}

// NewPlayer creates a player. Sinks must be added before Run.
func NewPlayer(eng *engine.Engine, drv *Driver, cfg Config, log logging.Logger, metrics *observability.Collector) *Player {
	if log == nil {
		log = logging.Noop()
	}
	p := &Player{
		eng:     eng,
		drv:     drv,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		cmds:    make(chan func(context.Context)),
		results: make(chan Result, 1),
		done:    make(chan struct{}),
		playing: cfg.AutoAdvance,
	}
	p.latest.Store(eng.Frame())
	return p
}

// AddSink registers a frame consumer.
func (p *Player) AddSink(s FrameSink) {
	p.sinks = append(p.sinks, s)
}

// Latest returns the most recently published frame. It is safe to call
// from any goroutine.
func (p *Player) Latest() *engine.Frame {
	return p.latest.Load()
}

// Done is closed when Run returns.
func (p *Player) Done() <-chan struct{} { return p.done }

// Run loads the start year and drives the engine until ctx is cancelled.
func (p *Player) Run(ctx context.Context) error {
	defer close(p.done)
	p.running.Store(true)
	defer p.running.Store(false)

	frames := time.NewTicker(p.cfg.FrameInterval)
	defer frames.Stop()
	p.advance = time.NewTicker(p.cfg.AdvanceInterval)
	defer p.advance.Stop()
	if !p.playing {
		p.advance.Stop()
	}

	start := p.cfg.StartYear
	if start == 0 {
		start, _ = p.drv.Range()
	}
	p.request(ctx, p.drv.SetYear(ctx, start))
	p.log.Info(ctx, "player started", logging.Int("year", p.drv.Year()), logging.Bool("playing", p.playing))

	for {
		select {
		case <-ctx.Done():
			p.drv.CancelPending()
			p.log.Info(ctx, "player stopped")
			return ctx.Err()

		case <-frames.C:
			p.step()

		case <-p.advance.C:
			req, ok := p.drv.Advance(ctx)
			if !ok {
				p.setPlaying(false)
				p.log.Info(ctx, "auto-advance reached the last year", logging.Int("year", p.drv.Year()))
				continue
			}
			p.request(ctx, req)

		case res := <-p.results:
			if _, err := p.drv.Deliver(ctx, p.eng, res); err == nil {
				p.dirty = true
			}

		case fn := <-p.cmds:
			fn(ctx)
			p.dirty = true
		}
	}
}

func (p *Player) step() {
	sim := p.eng.Simulation()
	ticked := sim.State() == physics.Active
	if ticked {
		start := time.Now()
		p.eng.Step()
		p.metrics.ObserveTick(time.Since(start), sim.Alpha())
	}
	if !ticked && !p.dirty {
		return
	}
	p.dirty = false
	p.publish()
}

func (p *Player) publish() {
	f := p.eng.Frame()
	p.latest.Store(f)
	for _, s := range p.sinks {
		s(f)
	}
}

// request fetches in the background and hands the result to the loop.
// Results of superseded requests are still delivered so the driver can
// count and drop them.
func (p *Player) request(ctx context.Context, req *Request) {
	go func() {
		res := p.drv.Fetch(req)
		select {
		case p.results <- res:
		case <-ctx.Done():
		}
	}()
}

func (p *Player) setPlaying(on bool) {
	p.playing = on
	if on {
		p.advance.Reset(p.cfg.AdvanceInterval)
	} else {
		p.advance.Stop()
	}
}

// Do runs fn on the loop goroutine and waits for its error.
func (p *Player) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if !p.running.Load() {
		return ErrNotRunning
	}
	errc := make(chan error, 1)
	cmd := func(loopCtx context.Context) { errc <- fn(loopCtx) }
	select {
	case p.cmds <- cmd:
	case <-p.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetYear selects a year manually and restarts the auto-advance interval.
func (p *Player) SetYear(ctx context.Context, year int) (int, error) {
	var got int
	err := p.Do(ctx, func(loop context.Context) error {
		p.request(loop, p.drv.SetYear(loop, year))
		if p.playing {
			p.advance.Reset(p.cfg.AdvanceInterval)
		}
		got = p.drv.Year()
		return nil
	})
	return got, err
}

// Advance steps to the next year as if the timer fired. It reports false
// when the stop policy holds the timeline at the last year.
func (p *Player) Advance(ctx context.Context) (int, bool, error) {
	var (
		got int
		ok  bool
	)
	err := p.Do(ctx, func(loop context.Context) error {
		var req *Request
		if req, ok = p.drv.Advance(loop); ok {
			p.request(loop, req)
		}
		got = p.drv.Year()
		return nil
	})
	return got, ok, err
}

// SetPlaying starts or pauses auto-advance.
func (p *Player) SetPlaying(ctx context.Context, on bool) error {
	return p.Do(ctx, func(context.Context) error {
		p.setPlaying(on)
		return nil
	})
}

func (p *Player) PinNode(ctx context.Context, id string, x, y float64) error {
	return p.Do(ctx, func(context.Context) error { return p.eng.PinNode(id, x, y) })
}

func (p *Player) MoveNode(ctx context.Context, id string, x, y float64) error {
	return p.Do(ctx, func(context.Context) error { return p.eng.MoveNode(id, x, y) })
}

func (p *Player) UnpinNode(ctx context.Context, id string) error {
	return p.Do(ctx, func(context.Context) error { return p.eng.UnpinNode(id) })
}

// Status reports the timeline and simulation state.
func (p *Player) Status(ctx context.Context) (Status, error) {
	var st Status
	err := p.Do(ctx, func(context.Context) error {
		st.Year = p.drv.Year()
		st.Loaded, _ = p.eng.Year()
		st.MinYear, st.MaxYear = p.drv.Range()
		st.Playing = p.playing
		st.State = p.eng.Simulation().State().String()
		st.Dragging = p.eng.Drag().Active()
		return nil
	})
	return st, err
}
