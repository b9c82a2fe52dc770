package volume

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/golang/groupcache/lru"
	"github.com/golang/snappy"

	"microsimview/internal/models"
	"microsimview/pkg/logging"
)

// ResultIDHeader carries the result a slice request belongs to
const ResultIDHeader = "X-Result-Id"

// HTTPSource fetches planes one (channel, z) at a time from the backend's
// chunk endpoint (lazy mode). Successfully decoded planes are kept in an LRU.
type HTTPSource struct {
	baseURL  string
	resultID string
	shape    models.Shape
	client   *http.Client
	filler   Filler
	snappy   bool

	mu    sync.Mutex
	cache *lru.Cache
}

// HTTPSourceOptions tunes an HTTPSource. Zero values pick defaults.
type HTTPSourceOptions struct {
	Client       *http.Client
	Filler       Filler
	CacheEntries int

	// Snappy asks the backend for snappy-compressed plane bodies
	Snappy bool
}

// NewHTTPSource returns a lazy source for the result identified by resultID
func NewHTTPSource(baseURL, resultID string, shape models.Shape, opts HTTPSourceOptions) *HTTPSource {
	src := &HTTPSource{
		baseURL:  strings.TrimRight(baseURL, "/"),
		resultID: resultID,
		shape:    shape,
		client:   opts.Client,
		filler:   opts.Filler,
		snappy:   opts.Snappy,
	}
	if src.client == nil {
		src.client = http.DefaultClient
	}
	if src.filler == nil {
		src.filler = ZeroFiller
	}
	if opts.CacheEntries > 0 {
		src.cache = lru.New(opts.CacheEntries)
	}
	return src
}

// Shape returns the declared volume extents
func (h *HTTPSource) Shape() models.Shape {
	return h.shape
}

type planeKey struct {
	result string
	c, z   int
}

// Plane fetches the (c, z) slice. Any failure yields a filler plane of the
// declared dimensions; the error is logged, never returned.
func (h *HTTPSource) Plane(ctx context.Context, c, z int) models.Plane {
	s := h.shape
	if !s.Contains(c, z) {
		logging.Warningf("plane request c=%d z=%d outside shape %v, returning zeroed plane\n", c, z, s.Slice())
		return models.NewZeroPlane(c, z, s.X, s.Y)
	}

	key := planeKey{h.resultID, c, z}
	if data, ok := h.cached(key); ok {
		return models.Plane{Channel: c, Z: z, Width: s.X, Height: s.Y, Data: data}
	}

	data, err := h.fetch(ctx, c, z)
	if err != nil {
		logging.Warningf("slice fetch c=%d z=%d failed, using filler: %v\n", c, z, err)
		p := h.filler(c, z, s.X, s.Y)
		p.Filler = true
		return p
	}
	h.store(key, data)
	return models.Plane{Channel: c, Z: z, Width: s.X, Height: s.Y, Data: data}
}

func (h *HTTPSource) fetch(ctx context.Context, c, z int) ([]float32, error) {
	url := fmt.Sprintf("%s/data/chunk/%d/%d", h.baseURL, c, z)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if h.resultID != "" {
		req.Header.Set(ResultIDHeader, h.resultID)
	}
	if h.snappy {
		req.Header.Set(EncodingHeader, EncodingSnappy)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("GET %s returned status %d", url, resp.StatusCode)
	}

	// One byte past the expected size is enough to detect an oversized body
	expected := h.shape.PlaneLen() * BytesPerSample
	compressed := resp.Header.Get(EncodingHeader) == EncodingSnappy
	limit := int64(expected) + 1
	if compressed {
		limit = int64(snappy.MaxEncodedLen(expected)) + 1
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	wireLen := len(body)
	if compressed {
		if n, err := snappy.DecodedLen(body); err != nil || n != expected {
			return nil, fmt.Errorf("snappy plane from %s decodes to %d bytes, expected %d", url, n, expected)
		}
		if body, err = DecompressPlane(body); err != nil {
			return nil, err
		}
	}
	data, err := DecodePlane(body, h.shape.X, h.shape.Y)
	if err != nil {
		return nil, err
	}
	logging.Debugf("fetched plane c=%d z=%d (%s on the wire)\n", c, z, humanize.Bytes(uint64(wireLen)))
	return data, nil
}

func (h *HTTPSource) cached(key planeKey) ([]float32, bool) {
	if h.cache == nil {
		return nil, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.cache.Get(key)
	if !ok {
		return nil, false
	}
	return v.([]float32), true
}

func (h *HTTPSource) store(key planeKey, data []float32) {
	if h.cache == nil {
		return
	}
	h.mu.Lock()
	h.cache.Add(key, data)
	h.mu.Unlock()
}
