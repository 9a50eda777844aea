package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/flow"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/testutil"
)

func runningHub(t *testing.T, cfg Config) *Hub {
	t.Helper()
	h := NewHub(cfg, logger.Nop())
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func newClient(pattern string, buffer int) *client {
	return &client{id: pattern + "-sub", pattern: pattern, events: make(chan Event, buffer)}
}

func receive(t *testing.T, c *client) Event {
	t.Helper()
	select {
	case ev := <-c.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("no event for %s", c.id)
		return Event{}
	}
}

// subscribe opens a stream and returns a reader over its body.
func subscribe(t *testing.T, ctx context.Context, url string) *bufio.Reader {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}
	return bufio.NewReader(resp.Body)
}

// readEvent reads up to the next blank line, skipping comments.
func readEvent(t *testing.T, r *bufio.Reader) (name, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "" && name != "":
			return name, data
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Port != 8081 || cfg.Path != "/stream" || cfg.ClientBuffer != 256 || cfg.KeepAlive != 30*time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Addr() != ":8081" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}

	zero := Config{}
	zero.fill()
	if zero.Port != 0 {
		t.Errorf("fill must keep port 0, got %d", zero.Port)
	}
}

func TestHub_PublishMatchesTopic(t *testing.T) {
	h := runningHub(t, Config{})
	sums, words, all := newClient("sum*", 4), newClient("words", 4), newClient("*", 4)
	for _, c := range []*client{sums, words, all} {
		if !h.subscribe(c) {
			t.Fatal("subscribe failed on a running hub")
		}
	}

	if err := h.Publish(context.Background(), "sums", []byte("3")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if ev := receive(t, sums); ev.Topic != "sums" || string(ev.Data) != "3" {
		t.Errorf("got %+v", ev)
	}
	receive(t, all)
	if len(words.events) != 0 {
		t.Error("words subscriber received a sums event")
	}
	if n := h.ClientCount(); n != 3 {
		t.Errorf("ClientCount() = %d", n)
	}
}

func TestHub_SlowSubscriberDrops(t *testing.T) {
	h := runningHub(t, Config{})
	slow, fast := newClient("*", 1), newClient("*", 8)
	h.subscribe(slow)
	h.subscribe(fast)

	for i := 0; i < 3; i++ {
		if err := h.Publish(context.Background(), "t", []byte("x")); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		receive(t, fast)
	}
	if len(slow.events) != 1 {
		t.Errorf("slow subscriber holds %d events, want 1", len(slow.events))
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	h := runningHub(t, Config{})
	c := newClient("*", 1)
	h.subscribe(c)
	h.unsubscribe(c)
	if _, open := <-c.events; open {
		t.Error("expected the events channel to be closed")
	}
	if n := h.ClientCount(); n != 0 {
		t.Errorf("ClientCount() = %d", n)
	}
}

func TestHub_Stop(t *testing.T) {
	h := NewHub(Config{}, logger.Nop())
	done := make(chan struct{})
	go func() {
		h.Run()
		close(done)
	}()

	c := newClient("*", 1)
	h.subscribe(c)
	h.Stop()
	h.Stop()
	<-done

	if _, open := <-c.events; open {
		t.Error("expected subscribers to be closed on stop")
	}
	if h.subscribe(newClient("*", 1)) {
		t.Error("subscribe must fail on a stopped hub")
	}
	h.unsubscribe(c)
	if err := h.Publish(context.Background(), "t", nil); !apperrors.HasCode(err, apperrors.ErrCodeServiceUnavailable) {
		t.Errorf("expected SERVICE_UNAVAILABLE, got %v", err)
	}
}

func TestHub_PublishHonorsContext(t *testing.T) {
	// No Run loop and a one-slot queue: the second publish blocks.
	h := NewHub(Config{ClientBuffer: 1}, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	if err := h.Publish(ctx, "t", nil); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	cancel()
	if err := h.Publish(ctx, "t", nil); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestServe_StreamsSinkOutput(t *testing.T) {
	comp := NewComponent(Config{}, logger.Nop())
	go comp.Hub().Run()
	defer comp.Hub().Stop()
	srv := httptest.NewServer(comp.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r := subscribe(t, ctx, srv.URL+"/stream?topic=sums")

	name, data := readEvent(t, r)
	if name != EventConnected || !strings.Contains(data, `"topic":"sums"`) {
		t.Fatalf("first event = %s %s", name, data)
	}

	if out := testutil.T(t).WithContext(ctx).Collect(NewSink(comp.Hub(), "sums"), flow.InputOf(map[string]int{"v": 1})); len(out) != 0 {
		t.Fatalf("sink emitted %v", out)
	}

	name, data = readEvent(t, r)
	if name != "sums" || data != `{"v":1}` {
		t.Errorf("got %s %s", name, data)
	}
}

func TestServe_BadPattern(t *testing.T) {
	h := runningHub(t, Config{})
	engine := gin.New()
	engine.GET("/stream", h.Serve)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream?topic=[", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestSink_UnencodableValue(t *testing.T) {
	h := runningHub(t, Config{})
	p := flow.NewProcessor(NewSink(h, "t"))
	bad := make(chan int)

	out, err := p.Collect(context.Background(), flow.InputOf(bad))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Channel != flow.FailureChannel {
		t.Fatalf("expected one failure, got %v", out)
	}
	failed, ok := out[0].Value.(flow.Failed)
	if !ok || !apperrors.HasCode(failed.Err, apperrors.ErrCodeInvalidInput) {
		t.Errorf("unexpected failure %+v", out[0].Value)
	}
}

func TestSink_StoppedHub(t *testing.T) {
	h := NewHub(Config{}, logger.Nop())
	h.Stop()
	p := flow.NewProcessor(NewSink(h, "t"))
	if _, err := p.Collect(context.Background(), flow.InputOf(1)); !apperrors.HasCode(err, apperrors.ErrCodeServiceUnavailable) {
		t.Errorf("expected SERVICE_UNAVAILABLE, got %v", err)
	}
}

func TestComponent_Lifecycle(t *testing.T) {
	comp := NewComponent(Config{Host: "127.0.0.1"}, logger.Nop())
	if h := comp.Health(context.Background()); h.Status != "unhealthy" {
		t.Errorf("health before start = %+v", h)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := comp.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := comp.Start(ctx); !apperrors.HasCode(err, apperrors.ErrCodeAlreadyExists) {
		t.Errorf("second start: expected ALREADY_EXISTS, got %v", err)
	}
	if comp.Name() != "sse" {
		t.Errorf("Name() = %q", comp.Name())
	}

	r := subscribe(t, ctx, "http://"+comp.Addr()+"/stream")
	readEvent(t, r)
	if h := comp.Health(ctx); h.Status != "healthy" || h.Message != "1 subscribers" {
		t.Errorf("health = %+v", h)
	}

	if err := comp.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := r.ReadString('\n'); err == nil {
		t.Error("expected the stream to end on stop")
	}
	if err := comp.Hub().Publish(ctx, "t", nil); !apperrors.HasCode(err, apperrors.ErrCodeServiceUnavailable) {
		t.Errorf("expected SERVICE_UNAVAILABLE after stop, got %v", err)
	}
}
