package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/config"
	"github.com/kbukum/flowkit/flow"
	"github.com/kbukum/flowkit/httpclient"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/redis"
	"github.com/kbukum/flowkit/resilience"
	"github.com/kbukum/flowkit/sse"
	"github.com/kbukum/flowkit/topology"
)

func jsonLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "flowdemo", buf)
}

// stopAfter cancels the run once n emissions have been observed.
func stopAfter(n int, cancel context.CancelFunc) topology.BuildOption {
	seen := 0
	return topology.WithRunnerOptions(flow.WithObserver(flow.ObserverFuncs{
		Emit: func(context.Context, *flow.Processor, flow.Emission) {
			seen++
			if seen == n {
				cancel()
			}
		},
	}))
}

func seeded(def *topology.Definition) *topology.Definition {
	for i := range def.Processors {
		if def.Processors[i].Source {
			def.Processors[i].Params = topology.Params{"seed": 7, "length": 3, "max": 9}
		}
	}
	return def
}

func TestAsPair(t *testing.T) {
	tests := []struct {
		name string
		in   any
		ok   bool
	}{
		{"pair", pair{1, 2}, true},
		{"json array", []any{1.0, "x"}, true},
		{"short array", []any{1.0}, false},
		{"scalar", 3, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := asPair(tt.in); ok != tt.ok {
				t.Errorf("asPair(%v) ok = %v, want %v", tt.in, ok, tt.ok)
			}
		})
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name   string
		op     func(a, b any) (any, bool)
		a, b   any
		want   any
		wantOK bool
	}{
		{"add ints", add, 2, 3, 5, true},
		{"add strings", add, "ab", "cd", "abcd", true},
		{"add mixed numbers", add, 1, 0.5, 1.5, true},
		{"add string and int", add, "a", 1, nil, false},
		{"subtract ints", subtract, 7, 3, 4, true},
		{"subtract floats", subtract, 2.5, 1.0, 1.5, true},
		{"subtract strings", subtract, "ab", "a", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.op(tt.a, tt.b)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("got (%v, %v), want (%v, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestBinary_Routing(t *testing.T) {
	p := flow.NewProcessor(binary(subtract), flow.WithName("minus"))
	tests := []struct {
		name    string
		in      any
		channel string
		value   any
	}{
		{"numbers succeed", pair{5, 2}, flow.DefaultChannel, 3},
		{"words fail", pair{"a", "b"}, flow.FailureChannel, pair{"a", "b"}},
		{"non pair fails", "oops", flow.FailureChannel, "oops"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := p.Collect(context.Background(), flow.InputOf(tt.in))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(out) != 1 {
				t.Fatalf("expected one emission, got %v", out)
			}
			if out[0].Channel != tt.channel || out[0].Value != tt.value {
				t.Errorf("got %s=%v, want %s=%v", out[0].Channel, out[0].Value, tt.channel, tt.value)
			}
		})
	}
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	p := flow.NewProcessor(printResult(&buf))
	if _, err := p.Collect(context.Background(), flow.InputOf(42)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := buf.String(); got != "the result is 42\n" {
		t.Errorf("output = %q", got)
	}
}

func TestLogFailure(t *testing.T) {
	var buf bytes.Buffer
	p := flow.NewProcessor(logFailure("subtract", jsonLogger(&buf)))
	if _, err := p.Collect(context.Background(), flow.InputOf(pair{"ab", "c"})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"level":"error"`, "could not subtract ab and c", `"operation":"subtract"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
}

func TestNewRand_SeedIsDeterministic(t *testing.T) {
	a, b := newRand(42), newRand(42)
	for i := 0; i < 5; i++ {
		if x, y := a.IntN(1000), b.IntN(1000); x != y {
			t.Fatalf("draw %d differs: %d vs %d", i, x, y)
		}
	}
}

func TestGinMode(t *testing.T) {
	if ginMode(true) != gin.DebugMode || ginMode(false) != gin.ReleaseMode {
		t.Errorf("ginMode(true)=%q ginMode(false)=%q", ginMode(true), ginMode(false))
	}
}

func TestRegistry_ParamErrors(t *testing.T) {
	reg := newRegistry(&bytes.Buffer{}, logger.Nop(), connectors{})
	tests := []struct {
		component string
		params    topology.Params
	}{
		{componentNumberPairs, topology.Params{"max": 0}},
		{componentWordPairs, topology.Params{"length": -1}},
		{componentWebhook, nil},
		{componentPublish, nil},
		{componentRedisPop, nil},
		{componentRedisPush, nil},
		{componentKafkaSource, topology.Params{"topic": "t"}},
		{componentKafkaSink, topology.Params{"topic": "t"}},
		{componentHTTPPost, topology.Params{"url": "http://localhost"}},
		{componentHTTPEvents, topology.Params{"url": "http://localhost"}},
	}
	for _, tt := range tests {
		t.Run(tt.component, func(t *testing.T) {
			f, ok := reg.Get(tt.component)
			if !ok {
				t.Fatalf("component %q not registered", tt.component)
			}
			if _, err := f(tt.params); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestPairsDefinition_Webhook(t *testing.T) {
	reg := newRegistry(&bytes.Buffer{}, logger.Nop(), connectors{})
	if err := topology.Check(pairsDefinition(false, false), reg); err != nil {
		t.Fatalf("built-in graph invalid: %v", err)
	}

	def := pairsDefinition(true, false)
	add := def.Processors[3]
	if add.Name != "add" || len(add.Inputs) != 3 || add.Inputs[2] != "webhook" {
		t.Errorf("add inputs = %v", add.Inputs)
	}
	if _, err := topology.Build(def, reg); !apperrors.HasCode(err, apperrors.ErrCodeInvalidConfig) {
		t.Errorf("expected INVALID_CONFIG without a webhook source, got %v", err)
	}
}

func TestPairsPipeline(t *testing.T) {
	var out, logs bytes.Buffer
	reg := newRegistry(&out, jsonLogger(&logs), connectors{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	built, err := topology.Build(seeded(pairsDefinition(false, false)), reg,
		topology.WithLogger(logger.Nop()),
		topology.WithRunnerOptions(flow.WithDropLogging(false)),
		stopAfter(40, cancel),
	)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	err = built.Pipeline.Execute(ctx)
	if !apperrors.HasCode(err, apperrors.ErrCodeCanceled) {
		t.Fatalf("expected CANCELED, got %v", err)
	}
	if n := strings.Count(out.String(), "the result is"); n < 5 {
		t.Errorf("expected printed results, got %d:\n%s", n, out.String())
	}
	if !strings.Contains(logs.String(), "could not subtract") {
		t.Errorf("expected subtract failures in the log:\n%s", logs.String())
	}
	if strings.Contains(logs.String(), "could not add") {
		t.Errorf("add should handle numbers and words:\n%s", logs.String())
	}
}

func TestPairsFile(t *testing.T) {
	def, err := topology.Load("pairs.yaml")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	reg := newRegistry(&bytes.Buffer{}, logger.Nop(), connectors{})
	if err := topology.Check(def, reg); err != nil {
		t.Fatalf("pairs.yaml invalid: %v", err)
	}
	if got, want := len(def.Processors), len(pairsDefinition(false, false).Processors); got != want {
		t.Errorf("pairs.yaml has %d processors, built-in graph has %d", got, want)
	}
}

func TestBuildOptions(t *testing.T) {
	cfg := &config.AppConfig{ServiceConfig: config.ServiceConfig{Name: "flowdemo", Debug: true}}
	cfg.RateLimit = resilience.RateLimiterConfig{Rate: 10000, Burst: 100}
	cfg.ApplyDefaults()

	var out bytes.Buffer
	def := seeded(pairsDefinition(false, false))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := append(buildOptions(cfg, def, logger.Nop(), nil), stopAfter(10, cancel))
	built, err := topology.Build(def, newRegistry(&out, logger.Nop(), connectors{}), opts...)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if err := built.Pipeline.Execute(ctx); !apperrors.HasCode(err, apperrors.ErrCodeCanceled) {
		t.Fatalf("expected CANCELED, got %v", err)
	}
	if out.Len() == 0 {
		t.Error("expected output through the decorated stages")
	}
}

func TestLoadDefinition(t *testing.T) {
	cfg := &config.AppConfig{}
	def, err := loadDefinition(cfg, connectors{})
	if err != nil || def.Name != "pairs" {
		t.Fatalf("built-in definition: %v, %v", def, err)
	}

	cfg.Topology = "missing.yaml"
	if _, err := loadDefinition(cfg, connectors{}); !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestRun_Flags(t *testing.T) {
	if err := run([]string{"--version"}); err != nil {
		t.Errorf("--version: %v", err)
	}
	if err := run([]string{"--no-such-flag"}); err == nil {
		t.Error("expected an error for an unknown flag")
	}
}

func TestOpenConnectors(t *testing.T) {
	cfg := &config.AppConfig{}
	cfg.ApplyDefaults()

	conn, err := openConnectors(cfg, logger.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn.hook != nil || conn.redis != nil || conn.kafka != nil || conn.http != nil {
		t.Errorf("disabled connectors were opened: %+v", conn)
	}

	cfg.Webhook.Enabled = true
	cfg.Redis.Enabled = true
	cfg.Kafka.Enabled = true
	cfg.HTTP.Enabled = true
	conn, err = openConnectors(cfg, logger.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer conn.redis.Close()
	if conn.hook == nil || conn.redis == nil || conn.kafka == nil || conn.http == nil {
		t.Errorf("enabled connectors missing: %+v", conn)
	}

	cfg.Redis.DB = -1
	if _, err := openConnectors(cfg, logger.Nop()); err == nil {
		t.Error("expected an error for a negative redis db")
	}
}

func TestRedisPush(t *testing.T) {
	srv := miniredis.RunT(t)
	rcfg := redis.Config{Enabled: true, Addr: srv.Addr()}
	rcfg.ApplyDefaults()
	client, err := redis.New(rcfg, logger.Nop())
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer client.Close()

	def := seeded(&topology.Definition{
		Name: "push",
		Processors: []topology.ProcessorSpec{
			{Name: "numbers", Component: componentNumberPairs, Source: true},
			{Name: "add", Component: componentAdd, Inputs: []string{"numbers"}},
			{Name: "push", Component: componentRedisPush, Inputs: []string{"add"}, Params: topology.Params{"key": "sums"}},
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg := newRegistry(&bytes.Buffer{}, logger.Nop(), connectors{redis: client})
	built, err := topology.Build(def, reg, topology.WithLogger(logger.Nop()), stopAfter(20, cancel))
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if err := built.Pipeline.Execute(ctx); !apperrors.HasCode(err, apperrors.ErrCodeCanceled) {
		t.Fatalf("expected CANCELED, got %v", err)
	}

	items, err := srv.List("sums")
	if err != nil || len(items) == 0 {
		t.Fatalf("expected sums in redis, got %v (%v)", items, err)
	}
}

func TestHTTPPost(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.Header.Get("Content-Type") == "application/json" {
			posts.Add(1)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, err := httpclient.New(httpclient.Config{Enabled: true}, logger.Nop())
	if err != nil {
		t.Fatalf("http client: %v", err)
	}

	def := seeded(&topology.Definition{
		Name: "post",
		Processors: []topology.ProcessorSpec{
			{Name: "numbers", Component: componentNumberPairs, Source: true},
			{Name: "add", Component: componentAdd, Inputs: []string{"numbers"}},
			{Name: "post", Component: componentHTTPPost, Inputs: []string{"add"}, Params: topology.Params{"url": srv.URL, "method": "PUT"}},
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg := newRegistry(&bytes.Buffer{}, logger.Nop(), connectors{http: client})
	built, err := topology.Build(def, reg, topology.WithLogger(logger.Nop()), stopAfter(20, cancel))
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if err := built.Pipeline.Execute(ctx); !apperrors.HasCode(err, apperrors.ErrCodeCanceled) {
		t.Fatalf("expected CANCELED, got %v", err)
	}
	if posts.Load() == 0 {
		t.Error("expected sums to be sent")
	}
}

func TestPairsDefinition_Publish(t *testing.T) {
	hub := sse.NewHub(sse.Config{}, logger.Nop())
	go hub.Run()
	defer hub.Stop()

	def := seeded(pairsDefinition(false, true))
	last := def.Processors[len(def.Processors)-1]
	if last.Component != componentPublish || len(last.Inputs) != 2 {
		t.Fatalf("unexpected publish processor %+v", last)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg := newRegistry(&bytes.Buffer{}, logger.Nop(), connectors{hub: hub})
	built, err := topology.Build(def, reg, topology.WithLogger(logger.Nop()), stopAfter(20, cancel))
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if err := built.Pipeline.Execute(ctx); !apperrors.HasCode(err, apperrors.ErrCodeCanceled) {
		t.Fatalf("expected CANCELED, got %v", err)
	}
}
