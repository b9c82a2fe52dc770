// Package server implements the simulation backend: it validates and runs
// simulations, keeps the most recent result in memory, and serves it either
// inline or one (channel, z) plane at a time.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/blang/semver"
	"github.com/coocood/freecache"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/zenazn/goji/web"

	"microsimview/internal/models"
	"microsimview/pkg/logging"
	"microsimview/pkg/simulate"
	"microsimview/pkg/stats"
	"microsimview/pkg/volume"
)

const (
	// Version is the API version reported by the root endpoint
	Version = "0.1.0"

	// Title is the service name reported by the root endpoint
	Title = "Microsim Simulation API"

	// TestResultID identifies the built-in test volume
	TestResultID = "test"

	// maxRequestBytes bounds a simulation request body
	maxRequestBytes = 10 << 20
)

// Options configures the HTTP surface
type Options struct {
	// CORSOrigins are the browser origins allowed to call the API
	CORSOrigins []string

	// PlaneCacheMB sizes the encoded plane cache. Zero disables it.
	PlaneCacheMB int

	// Gzip compresses responses for clients that accept it
	Gzip bool
}

// stored is a volume the chunk endpoint can serve
type stored struct {
	id    string
	vol   *models.Volume
	stats []models.ChannelStats
}

// Server holds the backend state. It is safe for concurrent use.
type Server struct {
	sim     simulate.Simulator
	schema  *jsonschema.Schema
	version semver.Version
	opts    Options
	cache   *freecache.Cache

	test *stored

	mu   sync.RWMutex
	last *stored
}

// New returns a server that runs simulations with sim
func New(sim simulate.Simulator, opts Options) (*Server, error) {
	schema, err := jsonschema.CompileString("simulation.json", sim.Schema())
	if err != nil {
		return nil, fmt.Errorf("cannot compile simulation schema: %w", err)
	}
	ver, err := semver.Make(Version)
	if err != nil {
		return nil, fmt.Errorf("bad API version %q: %w", Version, err)
	}

	s := &Server{
		sim:     sim,
		schema:  schema,
		version: ver,
		opts:    opts,
	}
	if opts.PlaneCacheMB > 0 {
		s.cache = freecache.NewCache(opts.PlaneCacheMB << 20)
	}

	vol := simulate.TestVolume()
	s.test = &stored{id: TestResultID, vol: vol, stats: stats.Compute(vol)}
	return s, nil
}

// current returns the last simulation result, or the test volume if none ran yet
func (s *Server) current() *stored {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last != nil {
		return s.last
	}
	return s.test
}

// lookup finds the volume a chunk request refers to. An empty id means the
// current volume; an id that is neither current nor the test volume is gone.
func (s *Server) lookup(id string) *stored {
	cur := s.current()
	switch id {
	case "", cur.id:
		return cur
	case TestResultID:
		return s.test
	}
	return nil
}

func (s *Server) store(r *stored) {
	s.mu.Lock()
	s.last = r
	s.mu.Unlock()
	if s.cache != nil {
		s.cache.Clear()
	}
}

// Handler returns the routed API with CORS and optional compression applied
func (s *Server) Handler() http.Handler {
	mux := web.New()
	mux.Use(logRequest)

	mux.Get("/", s.rootHandler)
	mux.Get("/health", s.healthHandler)
	mux.Get("/schema/simulation", s.schemaHandler)
	mux.Post("/simulate", s.simulateHandler)
	mux.Get("/data/chunk/:c/:z", s.chunkHandler)
	mux.Get("/data/info", s.infoHandler)
	mux.Get("/test-data", s.testDataHandler)
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "Not Found")
	})

	var h http.Handler = mux
	if s.opts.Gzip {
		h = gzhttp.GzipHandler(h)
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{volume.ResultIDHeader, volume.EncodingHeader},
	})
	return c.Handler(h)
}

// logRequest logs each request with its latency
func logRequest(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tlog := logging.NewTimeLog()
		h.ServeHTTP(w, r)
		tlog.Debugf("%s %s", r.Method, r.URL.Path)
	})
}

// ListenAndServe serves the API on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Errorf("server shutdown: %v\n", err)
		}
	}()

	logging.Infof("%s %s listening on %s\n", Title, s.version, addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return err
}
