package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/TFMV/pubmap/engine"
	"github.com/TFMV/pubmap/models"
)

func startPlayer(t *testing.T, cfg Config) (*Player, chan *engine.Frame, context.CancelFunc) {
	t.Helper()
	d, err := New(source(), 2000, 2002, cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	p := NewPlayer(engine.New(engine.DefaultConfig()), d, cfg, nil, nil)
	frames := make(chan *engine.Frame, 256)
	p.AddSink(func(f *engine.Frame) {
		select {
		case frames <- f:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-p.Done()
	})
	waitRunning(t, p)
	return p, frames, cancel
}

func waitRunning(t *testing.T, p *Player) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !p.running.Load() {
		if time.Now().After(deadline) {
			t.Fatal("player did not start")
		}
		time.Sleep(time.Millisecond)
	}
}

func waitYear(t *testing.T, frames chan *engine.Frame, year int) *engine.Frame {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case f := <-frames:
			if f.Year == year && len(f.Nodes) > 0 {
				return f
			}
		case <-timeout:
			t.Fatalf("no frame for year %d", year)
			return nil
		}
	}
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.AutoAdvance = false
	cfg.FrameInterval = time.Millisecond
	cfg.AdvanceInterval = time.Hour
	return cfg
}

func TestPlayerLoadsStartYearAndTicks(t *testing.T) {
	p, frames, _ := startPlayer(t, fastConfig())
	f := waitYear(t, frames, 2000)
	if len(f.Nodes) != 2 {
		t.Errorf("nodes = %d", len(f.Nodes))
	}
	later := waitYear(t, frames, 2000)
	if later.Tick <= f.Tick {
		t.Errorf("ticks did not advance: %d -> %d", f.Tick, later.Tick)
	}
	if p.Latest().Year != 2000 {
		t.Errorf("latest year = %d", p.Latest().Year)
	}
}

func TestPlayerManualYearAndInteraction(t *testing.T) {
	p, frames, _ := startPlayer(t, fastConfig())
	ctx := context.Background()
	waitYear(t, frames, 2000)

	year, err := p.SetYear(ctx, 2001)
	if err != nil || year != 2001 {
		t.Fatalf("SetYear = %d, %v", year, err)
	}
	f := waitYear(t, frames, 2001)
	if _, ok := f.Node("C"); !ok {
		t.Fatal("2001 frame lacks C")
	}

	if err := p.PinNode(ctx, "C", 42, 43); err != nil {
		t.Fatal(err)
	}
	if err := p.MoveNode(ctx, "C", 50, 51); err != nil {
		t.Fatal(err)
	}
	st, err := p.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Dragging) != 1 || st.Dragging[0] != "C" || st.Loaded != 2001 {
		t.Errorf("status = %+v", st)
	}
	if err := p.PinNode(ctx, "nobody", 0, 0); !errors.Is(err, models.ErrNodeNotFound) {
		t.Errorf("pin unknown: %v", err)
	}
	if err := p.UnpinNode(ctx, "C"); err != nil {
		t.Fatal(err)
	}
}

func TestPlayerAdvanceWrapsAndStops(t *testing.T) {
	cfg := fastConfig()
	cfg.EndPolicy = EndStop
	p, frames, _ := startPlayer(t, cfg)
	ctx := context.Background()
	waitYear(t, frames, 2000)

	p.SetYear(ctx, 2002)
	if _, ok, _ := p.Advance(ctx); ok {
		t.Error("advance past the last year under stop policy")
	}
	waitYear(t, frames, 2002)
}

func TestPlayerAutoAdvance(t *testing.T) {
	cfg := fastConfig()
	cfg.AutoAdvance = true
	cfg.AdvanceInterval = 20 * time.Millisecond
	_, frames, _ := startPlayer(t, cfg)

	waitYear(t, frames, 2001)
	waitYear(t, frames, 2002)
	// Wraps back to the first year.
	waitYear(t, frames, 2000)
}

func TestPlayerMissingYearKeepsTicking(t *testing.T) {
	cfg := fastConfig()
	d, _ := New(source(), 2000, 2003, cfg, nil, nil)
	p := NewPlayer(engine.New(engine.DefaultConfig()), d, cfg, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer func() { cancel(); <-p.Done() }()
	go p.Run(ctx)
	waitRunning(t, p)

	deadline := time.Now().Add(3 * time.Second)
	for p.Latest().Year != 2000 || len(p.Latest().Nodes) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("2000 never loaded")
		}
		time.Sleep(2 * time.Millisecond)
	}
	if _, err := p.SetYear(ctx, 2003); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	st, err := p.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Year != 2003 || st.Loaded != 2000 {
		t.Errorf("status = %+v", st)
	}
	if p.Latest().Year != 2000 {
		t.Errorf("frame year = %d", p.Latest().Year)
	}
}

func TestDoBeforeRun(t *testing.T) {
	d, _ := New(source(), 2000, 2002, fastConfig(), nil, nil)
	p := NewPlayer(engine.New(engine.DefaultConfig()), d, fastConfig(), nil, nil)
	if err := p.PinNode(context.Background(), "A", 0, 0); !errors.Is(err, ErrNotRunning) {
		t.Errorf("err = %v", err)
	}
}

func TestRunReturnsOnCancel(t *testing.T) {
	d, _ := New(source(), 2000, 2002, fastConfig(), nil, nil)
	p := NewPlayer(engine.New(engine.DefaultConfig()), d, fastConfig(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx) }()
	waitRunning(t, p)
	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
