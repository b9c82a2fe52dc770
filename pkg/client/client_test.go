package client

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"microsimview/internal/models"
	"microsimview/pkg/server"
	"microsimview/pkg/simulate"
	"microsimview/pkg/viewer"
	"microsimview/pkg/volume"
)

func newBackend(t *testing.T) *httptest.Server {
	s, err := server.New(simulate.Synthetic{}, server.Options{PlaneCacheMB: 32})
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

var smallSimulation = map[string]interface{}{
	"channels": 3,
	"z":        4,
	"y":        12,
	"x":        16,
	"beads":    6,
	"seed":     42,
}

func TestSimulateEagerAndLazy(t *testing.T) {
	ts := newBackend(t)
	ctx := context.Background()

	eager := New(ts.URL, Options{Timeout: 10 * time.Second})
	result, err := eager.Simulate(ctx, smallSimulation)
	if err != nil {
		t.Fatalf("Eager simulation failed: %v", err)
	}
	if result.Volume == nil {
		t.Fatal("Expected inline volume in eager mode")
	}
	if result.Shape != (models.Shape{C: 3, Z: 4, Y: 12, X: 16}) {
		t.Errorf("Unexpected shape %v", result.Shape.Slice())
	}
	src, err := eager.Source(result)
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}
	if _, ok := src.(*volume.MemorySource); !ok {
		t.Errorf("Expected a MemorySource, got %T", src)
	}

	lazy := New(ts.URL+"/", Options{Timeout: 10 * time.Second, Lazy: true, CacheEntries: 16})
	lazyResult, err := lazy.Simulate(ctx, smallSimulation)
	if err != nil {
		t.Fatalf("Lazy simulation failed: %v", err)
	}
	if lazyResult.Volume != nil {
		t.Error("Expected no inline volume in lazy mode")
	}
	lazySrc, err := lazy.Source(lazyResult)
	if err != nil {
		t.Fatalf("Failed to create lazy source: %v", err)
	}
	if _, ok := lazySrc.(*volume.HTTPSource); !ok {
		t.Fatalf("Expected an HTTPSource, got %T", lazySrc)
	}

	// Same seed, same volume: lazily fetched planes match the inline samples
	for c := 0; c < 3; c++ {
		for z := 0; z < 4; z++ {
			p := lazySrc.Plane(ctx, c, z)
			if p.Filler {
				t.Fatalf("Plane c=%d z=%d fell back to filler", c, z)
			}
			want := result.Volume.PlaneView(c, z)
			for i := range want {
				if p.Data[i] != want[i] {
					t.Fatalf("Plane c=%d z=%d differs at %d: %g vs %g", c, z, i, p.Data[i], want[i])
				}
			}
		}
	}

	info, err := lazy.Info(ctx)
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.ResultID != lazyResult.ID {
		t.Errorf("Expected info for %s, got %s", lazyResult.ID, info.ResultID)
	}
}

func TestSimulateConfigError(t *testing.T) {
	ts := newBackend(t)
	c := New(ts.URL, Options{})
	_, err := c.Simulate(context.Background(), map[string]interface{}{"foo": "bar"})
	if !errors.Is(err, ErrConfig) {
		t.Errorf("Expected ErrConfig, got %v", err)
	}
}

func TestSimulateTransportErrors(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"detail": "Simulation failed: boom"}`)
	}))
	defer failing.Close()

	_, err := New(failing.URL, Options{}).Simulate(context.Background(), map[string]interface{}{})
	if !errors.Is(err, ErrTransport) {
		t.Errorf("Expected ErrTransport for 500, got %v", err)
	}

	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL
	closed.Close()
	_, err = New(url, Options{Timeout: time.Second}).Simulate(context.Background(), map[string]interface{}{})
	if !errors.Is(err, ErrTransport) {
		t.Errorf("Expected ErrTransport for unreachable backend, got %v", err)
	}
}

func TestSimulateMalformed(t *testing.T) {
	bodies := map[string]string{
		"not json":        `{"shape": [1,`,
		"stats mismatch":  `{"shape": [2, 1, 1, 1], "stats": [{"min": 0, "max": 1}]}`,
		"negative shape":  `{"shape": [1, -1, 1, 1], "stats": [{"min": 0, "max": 1}]}`,
		"short zarr data": `{"shape": [1, 1, 1, 2], "stats": [{}], "zarr": {"data": [[[[1]]]]}}`,
		"inverted stats":  `{"shape": [1, 1, 1, 1], "stats": [{"min": 2, "max": 1}]}`,
	}
	for name, body := range bodies {
		body := body
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, body)
		}))
		_, err := New(ts.URL, Options{}).Simulate(context.Background(), map[string]interface{}{})
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: expected ErrMalformed, got %v", name, err)
		}
		ts.Close()
	}
}

func TestTestDataLazySource(t *testing.T) {
	ts := newBackend(t)
	c := New(ts.URL, Options{})
	result, err := c.TestData(context.Background())
	if err != nil {
		t.Fatalf("TestData failed: %v", err)
	}
	if result.Shape != simulate.TestShape {
		t.Fatalf("Unexpected test shape %v", result.Shape.Slice())
	}
	src, err := c.Source(result)
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}
	p := src.Plane(context.Background(), 1, 0)
	if p.Filler {
		t.Fatal("Expected a fetched plane, got filler")
	}
	if got := p.Data[32*64+32]; math.Abs(float64(got)-1) > 1e-6 {
		t.Errorf("Expected test volume centre 1, got %g", got)
	}

	if err := c.Health(context.Background()); err != nil {
		t.Errorf("Health failed: %v", err)
	}
	schema, err := c.Schema(context.Background())
	if err != nil || schema["title"] != "Simulation" {
		t.Errorf("Unexpected schema %v (%v)", schema, err)
	}
}

// TestViewerOverBackend drives a viewer from a lazily loaded simulation
func TestViewerOverBackend(t *testing.T) {
	ts := newBackend(t)
	ctx := context.Background()
	c := New(ts.URL, Options{Lazy: true, CacheEntries: 32, Filler: volume.CheckerboardFiller, Snappy: true})

	result, err := c.Simulate(ctx, smallSimulation)
	if err != nil {
		t.Fatalf("Simulation failed: %v", err)
	}
	src, err := c.Source(result)
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}

	v := viewer.New(viewer.Options{})
	if err := v.LoadResult(result, src); err != nil {
		t.Fatalf("Failed to load result: %v", err)
	}
	v.SetZ(10)
	frame, err := v.Render(ctx)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if frame.Z != 3 {
		t.Errorf("Expected clamped Z 3, got %d", frame.Z)
	}
	if frame.Image.Bounds().Dx() != 16 || frame.Image.Bounds().Dy() != 12 {
		t.Errorf("Expected 16x12 frame, got %v", frame.Image.Bounds())
	}
}
