package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DmitriyVTitov/size"
	"github.com/coocood/freecache"
	"github.com/dustin/go-humanize"
	"github.com/twinj/uuid"
	"github.com/zenazn/goji/web"

	"microsimview/internal/models"
	"microsimview/pkg/logging"
	"microsimview/pkg/simulate"
	"microsimview/pkg/stats"
	"microsimview/pkg/transform"
	"microsimview/pkg/viewer"
	"microsimview/pkg/visualization"
	"microsimview/pkg/volume"
)

// writeJSON encodes v before touching the response so encoding failures
// can still be reported as errors
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "cannot encode response: %v", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// writeError sends {"detail": message} with the given status
func writeError(w http.ResponseWriter, r *http.Request, status int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if status >= http.StatusInternalServerError {
		logging.Errorf("%s %s: %s\n", r.Method, r.URL.Path, msg)
	} else {
		logging.Warningf("%s %s: %s\n", r.Method, r.URL.Path, msg)
	}
	body, _ := json.Marshal(map[string]string{"detail": msg})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// BadRequest writes a 400 with a formatted detail message
func BadRequest(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	writeError(w, r, http.StatusBadRequest, format, args...)
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"message": Title,
		"version": s.version.String(),
		"docs":    "/docs",
		"health":  "/health",
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Microsim API is running",
	})
}

func (s *Server) schemaHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, s.sim.Schema())
}

// simulateRequest is the POST /simulate body
type simulateRequest struct {
	Simulation map[string]interface{} `json:"simulation"`
}

func (s *Server) simulateHandler(w http.ResponseWriter, r *http.Request) {
	t0 := time.Now()

	var req simulateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil {
		BadRequest(w, r, "Invalid simulation parameters: %v", err)
		return
	}
	if req.Simulation == nil {
		BadRequest(w, r, "Invalid simulation parameters: missing simulation document")
		return
	}
	if err := s.schema.Validate(req.Simulation); err != nil {
		BadRequest(w, r, "Invalid simulation parameters: %v", err)
		return
	}

	vol, err := s.sim.Run(r.Context(), req.Simulation)
	if errors.Is(err, simulate.ErrInvalidParams) {
		BadRequest(w, r, "Invalid simulation parameters: %s",
			strings.TrimPrefix(err.Error(), simulate.ErrInvalidParams.Error()+": "))
		return
	}
	if err == nil {
		err = vol.Validate()
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Simulation failed: %v", err)
		return
	}

	result := &stored{
		id:    uuid.NewV4().String(),
		vol:   vol,
		stats: stats.Compute(vol),
	}
	zMid := vol.Shape.Z / 2
	preview, err := previewPNG(result, zMid)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Simulation failed: preview: %v", err)
		return
	}
	s.store(result)

	resp := models.SimulateResponse{
		ResultID:   result.id,
		Shape:      vol.Shape.Slice(),
		Dims:       models.DefaultDims,
		DType:      models.DType,
		Zarr:       &models.ZarrArray{Meta: models.NewZarrMeta(vol.Shape)},
		PreviewPNG: preview,
		Stats:      result.stats,
		Elapsed:    time.Since(t0).Seconds(),
		ZSliceUsed: zMid,
	}
	if r.URL.Query().Get("data") == "none" {
		resp.Zarr.Data = [][][][]float32{}
	} else {
		resp.Zarr.Data = models.NestVolume(vol)
	}

	logging.Infof("simulation %s produced %v (%s resident) in %s\n", result.id, vol.Shape.Slice(),
		humanize.Bytes(uint64(size.Of(result))), time.Since(t0))
	writeJSON(w, r, http.StatusOK, resp)
}

// previewPNG composites slice z with each plane stretched over its own
// p1..p99 range and returns it base64 encoded. A plane whose percentiles
// coincide falls back to its min..max.
func previewPNG(result *stored, z int) (string, error) {
	shape := result.vol.Shape
	state := models.ViewState{Z: z, Channels: make([]models.ChannelSettings, shape.C)}
	planes := make([]models.Plane, shape.C)
	windows := make([]models.ChannelStats, shape.C)
	for c := range planes {
		data := result.vol.PlaneView(c, z)
		planes[c] = models.Plane{
			Channel: c,
			Z:       z,
			Width:   shape.X,
			Height:  shape.Y,
			Data:    data,
		}
		ps := stats.Channel(data)
		windows[c] = ps
		if ps.P99 > ps.P1 {
			windows[c].Min, windows[c].Max = ps.P1, ps.P99
		}
		state.Channels[c] = viewer.DefaultChannelSettings(c, result.stats[c])
		state.Channels[c].Contrast = models.FullContrast
	}
	img := visualization.Compose(planes, windows, state, transform.Global, shape.X, shape.Y)
	data, err := visualization.EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (s *Server) chunkHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	ch, err1 := strconv.Atoi(c.URLParams["c"])
	z, err2 := strconv.Atoi(c.URLParams["z"])
	if err1 != nil || err2 != nil {
		BadRequest(w, r, "Invalid indices: c=%s, z=%s", c.URLParams["c"], c.URLParams["z"])
		return
	}

	id := r.Header.Get(volume.ResultIDHeader)
	res := s.lookup(id)
	if res == nil {
		writeError(w, r, http.StatusGone, "Result %s is no longer available", id)
		return
	}
	shape := res.vol.Shape
	if !shape.Contains(ch, z) {
		BadRequest(w, r, "Invalid indices: c=%d, z=%d for shape %v", ch, z, shape.Slice())
		return
	}

	body := s.planeBytes(res, ch, z)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set(volume.ResultIDHeader, res.id)
	if r.Header.Get(volume.EncodingHeader) == volume.EncodingSnappy {
		w.Header().Set(volume.EncodingHeader, volume.EncodingSnappy)
		body = volume.CompressPlane(body)
	}
	w.Write(body)
}

// planeBytes returns the encoded (c, z) plane, using the cache when enabled
func (s *Server) planeBytes(res *stored, c, z int) []byte {
	if s.cache == nil {
		return volume.EncodePlane(res.vol.PlaneView(c, z))
	}
	key := []byte(fmt.Sprintf("%s/%d/%d", res.id, c, z))
	body, err := s.cache.Get(key)
	if err == nil {
		return body
	}
	if err != freecache.ErrNotFound {
		logging.Warningf("plane cache get %s: %v\n", key, err)
	}
	body = volume.EncodePlane(res.vol.PlaneView(c, z))
	if err := s.cache.Set(key, body, 0); err != nil {
		logging.Debugf("not caching plane %s (%s): %v\n", key, humanize.Bytes(uint64(len(body))), err)
	}
	return body
}

func (s *Server) infoHandler(w http.ResponseWriter, r *http.Request) {
	cur := s.current()
	writeJSON(w, r, http.StatusOK, models.DataInfo{
		ResultID: cur.id,
		Shape:    cur.vol.Shape.Slice(),
		DType:    models.DType,
		Chunks:   cur.vol.Shape.Slice(),
	})
}

// testDataHandler describes the built-in test volume. Samples are not
// inlined; clients fetch them through the chunk endpoint.
func (s *Server) testDataHandler(w http.ResponseWriter, r *http.Request) {
	shape := s.test.vol.Shape
	writeJSON(w, r, http.StatusOK, models.SimulateResponse{
		ResultID: TestResultID,
		Shape:    shape.Slice(),
		Dims:     models.DefaultDims,
		DType:    models.DType,
		Zarr:     &models.ZarrArray{Data: [][][][]float32{}},
		Stats:    s.test.stats,
	})
}
