// Package client talks to the simulation backend: it submits simulation
// documents, validates what comes back, and hands out a volume.Source for
// the result.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"microsimview/internal/models"
	"microsimview/pkg/logging"
	"microsimview/pkg/volume"
)

var (
	// ErrConfig means the backend rejected the simulation parameters
	ErrConfig = errors.New("simulation configuration rejected")

	// ErrTransport means the backend could not be reached or failed
	ErrTransport = errors.New("simulation transport error")

	// ErrMalformed means the backend answered with an inconsistent result
	ErrMalformed = errors.New("malformed simulation response")
)

// maxResponseBytes bounds a decoded JSON response
const maxResponseBytes = 1 << 30

// Options configures a Client. Zero values pick defaults.
type Options struct {
	// Timeout bounds each request; zero means no timeout
	Timeout time.Duration

	// Lazy asks the backend to omit inline samples; planes are then fetched on demand
	Lazy bool

	// Filler replaces planes whose lazy fetch failed
	Filler volume.Filler

	// CacheEntries is the number of lazily fetched planes kept per result
	CacheEntries int

	// Snappy requests snappy-compressed plane bodies
	Snappy bool

	// HTTPClient overrides the client built from Timeout
	HTTPClient *http.Client
}

// Client is a backend client. It is safe for concurrent use.
type Client struct {
	baseURL string
	opts    Options
	http    *http.Client
}

// New returns a client for the backend at baseURL
func New(baseURL string, opts Options) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		opts:    opts,
		http:    opts.HTTPClient,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: opts.Timeout}
	}
	return c
}

// BaseURL returns the backend address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// errorDetail extracts the {"detail": ...} message of an error response
func errorDetail(body []byte) string {
	var e struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Detail != "" {
		return e.Detail
	}
	return strings.TrimSpace(string(body))
}

// do runs a request and decodes a 200 JSON response into out
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", ErrTransport, req.URL.Path, err)
	}
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrConfig, errorDetail(body))
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrTransport, req.Method, req.URL.Path,
			resp.StatusCode, errorDetail(body))
	}
	logging.Debugf("%s %s returned %s\n", req.Method, req.URL.Path, humanize.Bytes(uint64(len(body))))

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return c.do(req, out)
}

// Simulate submits a simulation document and returns the validated result.
// Rejected parameters yield ErrConfig; every other failure to obtain a usable
// result is ErrTransport or ErrMalformed.
func (c *Client) Simulate(ctx context.Context, simulation map[string]interface{}) (*models.SimulationResult, error) {
	payload, err := json.Marshal(map[string]interface{}{"simulation": simulation})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	url := c.baseURL + "/simulate"
	if c.opts.Lazy {
		url += "?data=none"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	tlog := logging.NewTimeLog()
	var resp models.SimulateResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	result, err := resp.Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	tlog.Infof("simulation %s returned %v", result.ID, result.Shape.Slice())
	return result, nil
}

// TestData describes the backend's built-in test volume
func (c *Client) TestData(ctx context.Context) (*models.SimulationResult, error) {
	var resp models.SimulateResponse
	if err := c.get(ctx, "/test-data", &resp); err != nil {
		return nil, err
	}
	result, err := resp.Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return result, nil
}

// Info describes the volume the chunk endpoint currently serves
func (c *Client) Info(ctx context.Context) (models.DataInfo, error) {
	var info models.DataInfo
	if err := c.get(ctx, "/data/info", &info); err != nil {
		return info, err
	}
	if _, err := models.ShapeFromSlice(info.Shape); err != nil {
		return info, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return info, nil
}

// Schema returns the backend's simulation document schema
func (c *Client) Schema(ctx context.Context) (map[string]interface{}, error) {
	var schema map[string]interface{}
	if err := c.get(ctx, "/schema/simulation", &schema); err != nil {
		return nil, err
	}
	return schema, nil
}

// Health checks that the backend is up
func (c *Client) Health(ctx context.Context) error {
	var status struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/health", &status); err != nil {
		return err
	}
	if status.Status != "ok" {
		return fmt.Errorf("%w: backend status %q", ErrTransport, status.Status)
	}
	return nil
}

// Source returns the plane source for a result: in memory when the samples
// were shipped inline, otherwise fetched lazily from the chunk endpoint
func (c *Client) Source(result *models.SimulationResult) (volume.Source, error) {
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if result.Volume != nil {
		src, err := volume.NewMemorySource(result.Volume)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return src, nil
	}
	return volume.NewHTTPSource(c.baseURL, result.ID, result.Shape, volume.HTTPSourceOptions{
		Client:       c.http,
		Filler:       c.opts.Filler,
		CacheEntries: c.opts.CacheEntries,
		Snappy:       c.opts.Snappy,
	}), nil
}
