package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/TFMV/pubmap/driver"
	"github.com/TFMV/pubmap/engine"
	"github.com/TFMV/pubmap/models"
	"github.com/TFMV/pubmap/observability"
	"github.com/TFMV/pubmap/physics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeController struct {
	mu      sync.Mutex
	year    int
	playing bool
	pinned  map[string][2]float64
	calls   []string
}

func newFake() *fakeController {
	return &fakeController{year: 2000, playing: true, pinned: map[string][2]float64{}}
}

func (f *fakeController) Latest() *engine.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &engine.Frame{
		Year: f.year, Width: 100, Height: 100,
		Nodes: []engine.FrameNode{{ID: "1", Name: "Ada", X: 10, Y: 10, Radius: 5, LabelVisible: true, LabelSize: 10}},
	}
}

func (f *fakeController) Status(context.Context) (driver.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return driver.Status{Year: f.year, Loaded: f.year, MinYear: 2000, MaxYear: 2002, Playing: f.playing}, nil
}

func (f *fakeController) SetYear(_ context.Context, year int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.year = min(max(year, 2000), 2002)
	return f.year, nil
}

func (f *fakeController) Advance(context.Context) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.year == 2002 {
		return f.year, false, nil
	}
	f.year++
	return f.year, true, nil
}

func (f *fakeController) SetPlaying(_ context.Context, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = on
	return nil
}

func (f *fakeController) PinNode(_ context.Context, id string, x, y float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != "1" {
		return fmt.Errorf("pin %q: %w", id, models.ErrNodeNotFound)
	}
	f.pinned[id] = [2]float64{x, y}
	f.calls = append(f.calls, "pin")
	return nil
}

func (f *fakeController) MoveNode(_ context.Context, id string, x, y float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pinned[id]; !ok {
		return fmt.Errorf("move %q: %w", id, physics.ErrNotDragging)
	}
	f.pinned[id] = [2]float64{x, y}
	f.calls = append(f.calls, "move")
	return nil
}

func (f *fakeController) UnpinNode(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pinned[id]; !ok {
		return fmt.Errorf("unpin %q: %w", id, physics.ErrNotDragging)
	}
	delete(f.pinned, id)
	return nil
}

func newTestServer(t *testing.T, ctl Controller) (*Server, *observability.Collector, *httptest.Server) {
	t.Helper()
	metrics, err := observability.NewCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	summary := &models.Summary{Year: [2]int{2000, 2002}}
	cfg := DefaultConfig()
	cfg.Heartbeat = 0
	s := New(cfg, ctl, summary, nil, metrics)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Hub().Close()
		ts.Close()
	})
	return s, metrics, ts
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSummaryAndStatus(t *testing.T) {
	_, _, ts := newTestServer(t, newFake())

	resp, err := http.Get(ts.URL + "/api/summary")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var s models.Summary
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatal(err)
	}
	if s.MinYear() != 2000 || s.MaxYear() != 2002 {
		t.Errorf("summary = %+v", s)
	}

	resp, err = http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var st driver.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Year != 2000 || !st.Playing {
		t.Errorf("status = %+v", st)
	}
}

func TestFrameFormats(t *testing.T) {
	_, _, ts := newTestServer(t, newFake())
	tests := []struct {
		query       string
		code        int
		contentType string
		contains    string
	}{
		{"", http.StatusOK, "application/json", `"year": 2000`},
		{"?format=svg", http.StatusOK, "image/svg+xml", "<circle"},
		{"?format=ascii", http.StatusOK, "text/plain; charset=utf-8", "pubmap 2000"},
		{"?format=png", http.StatusBadRequest, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/api/frame" + tt.query)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.code {
				t.Fatalf("code = %d", resp.StatusCode)
			}
			if tt.contentType != "" && resp.Header.Get("Content-Type") != tt.contentType {
				t.Errorf("content type = %q", resp.Header.Get("Content-Type"))
			}
			var body strings.Builder
			bufio.NewReader(resp.Body).WriteTo(&body)
			if !strings.Contains(body.String(), tt.contains) {
				t.Errorf("body lacks %q", tt.contains)
			}
		})
	}
}

func TestTimelineEndpoints(t *testing.T) {
	ctl := newFake()
	_, _, ts := newTestServer(t, ctl)

	var yr yearResponse
	resp := post(t, ts.URL+"/api/year", `{"year": 1990}`)
	json.NewDecoder(resp.Body).Decode(&yr)
	if yr.Year != 2000 {
		t.Errorf("clamped year = %d", yr.Year)
	}

	resp = post(t, ts.URL+"/api/advance", ``)
	json.NewDecoder(resp.Body).Decode(&yr)
	if yr.Year != 2001 || !yr.Advanced {
		t.Errorf("advance = %+v", yr)
	}

	post(t, ts.URL+"/api/play", `{"playing": false}`)
	if st, _ := ctl.Status(context.Background()); st.Playing {
		t.Error("play toggle ignored")
	}

	if resp := post(t, ts.URL+"/api/year", `{"year":`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body code = %d", resp.StatusCode)
	}
}

func TestNodeInteraction(t *testing.T) {
	ctl := newFake()
	_, _, ts := newTestServer(t, ctl)

	tests := []struct {
		path string
		body string
		code int
	}{
		{"/api/move", `{"id":"1","x":1,"y":2}`, http.StatusConflict},
		{"/api/pin", `{"id":"1","x":1,"y":2}`, http.StatusNoContent},
		{"/api/move", `{"id":"1","x":3,"y":4}`, http.StatusNoContent},
		{"/api/unpin", `{"id":"1"}`, http.StatusNoContent},
		{"/api/unpin", `{"id":"1"}`, http.StatusConflict},
		{"/api/pin", `{"id":"9","x":1,"y":2}`, http.StatusNotFound},
		{"/api/pin", `{"id":"1"}`, http.StatusBadRequest},
		{"/api/unpin", `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if resp := post(t, ts.URL+tt.path, tt.body); resp.StatusCode != tt.code {
			t.Errorf("%s %s: code = %d, want %d", tt.path, tt.body, resp.StatusCode, tt.code)
		}
	}
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	if len(ctl.calls) != 2 {
		t.Errorf("calls = %v", ctl.calls)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, _, ts := newTestServer(t, newFake())
	resp, err := http.Get(ts.URL + "/api/pin")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("code = %d", resp.StatusCode)
	}
}

func TestRequestMetrics(t *testing.T) {
	_, metrics, ts := newTestServer(t, newFake())
	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/api/status")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
	}
	// The count lands after the handler returns, which can trail the response.
	counter := metrics.HTTPRequests.WithLabelValues("GET /api/status", "200")
	deadline := time.Now().Add(time.Second)
	for testutil.ToFloat64(counter) < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := testutil.ToFloat64(counter); got != 3 {
		t.Errorf("requests = %v", got)
	}

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics code = %d", resp.StatusCode)
	}
}

func TestStreamDeliversFrames(t *testing.T) {
	s, _, ts := newTestServer(t, newFake())
	s.Hub().Publish(&engine.Frame{Year: 1999})

	resp, err := http.Get(ts.URL + "/api/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	events := make(chan engine.Frame, 4)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 1<<20), 1<<20)
		for sc.Scan() {
			if data, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
				var f engine.Frame
				if json.Unmarshal([]byte(data), &f) == nil {
					events <- f
				}
			}
		}
	}()

	expect := func(year int) {
		t.Helper()
		select {
		case f := <-events:
			if f.Year != year {
				t.Errorf("frame year = %d, want %d", f.Year, year)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no frame for %d", year)
		}
	}
	expect(1999)

	deadline := time.Now().Add(2 * time.Second)
	for s.Hub().Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	s.Hub().Publish(&engine.Frame{Year: 2001})
	expect(2001)
}

func TestHubDropsStaleFrames(t *testing.T) {
	h := NewHub(nil)
	ch, unsubscribe := h.Subscribe()
	for y := 2000; y < 2005; y++ {
		h.Publish(&engine.Frame{Year: y})
	}
	var f engine.Frame
	json.Unmarshal(<-ch, &f)
	if f.Year != 2004 {
		t.Errorf("pending frame year = %d", f.Year)
	}
	unsubscribe()
	unsubscribe()
	if h.Clients() != 0 {
		t.Errorf("clients = %d", h.Clients())
	}

	h.Close()
	late, _ := h.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscription after close should be closed")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.Addr = ""
	if cfg.Validate() == nil {
		t.Error("empty addr accepted")
	}
}
