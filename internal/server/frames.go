package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"image/color"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/MeKo-Tech/marbleshade/internal/animation"
	"github.com/MeKo-Tech/marbleshade/internal/scene"
	"github.com/MeKo-Tech/marbleshade/internal/shading"
	"github.com/MeKo-Tech/marbleshade/internal/warp"
)

// lockStripes bounds the per-frame lock table regardless of how many
// distinct times are requested.
const lockStripes = 64

type OnDemandFramesConfig struct {
	// CacheDir stores rendered frames on disk; empty disables the cache.
	// Frames land in a subdirectory named after the render fingerprint.
	CacheDir             string
	PNGCompression       string
	CacheControl         string
	MaxConcurrentRenders int
	RenderTimeout        time.Duration
	// TimePrecision is the number of decimals requested times are rounded to.
	TimePrecision int
	// Warp is applied to /sample coordinates, matching the rendered frames.
	Warp *warp.Warp
}

type OnDemandFrames struct {
	engine *shading.Engine
	gen    *animation.Generator
	logger *slog.Logger
	sem    chan struct{}
	locks  [lockStripes]sync.Mutex
	cfg    OnDemandFramesConfig
	// fingerprint identifies everything that changes frame pixels.
	fingerprint string

	activeRenders  atomic.Int32
	totalRendered  atomic.Int64
	totalFailed    atomic.Int64
	totalSamples   atomic.Int64
	currentRenders sync.Map // frame key -> start time

	queuedRenders atomic.Int32
	queuedFrames  sync.Map // frame key -> queue time
}

// FrameStatus represents the current status of the frame server.
type FrameStatus struct {
	Render       RenderStatus `json:"render"`
	TotalSamples int64        `json:"total_samples"`
}

// RenderStatus contains current render operation status.
type RenderStatus struct {
	ActiveRenders int      `json:"active_renders"`
	TotalRendered int64    `json:"total_rendered"`
	TotalFailed   int64    `json:"total_failed"`
	CurrentFrames []string `json:"current_frames"`
	MaxConcurrent int      `json:"max_concurrent"`
	QueuedRenders int      `json:"queued_renders"`
	QueuedFrames  []string `json:"queued_frames"`
}

// SampleResponse is the JSON body of /sample.
type SampleResponse struct {
	U            float64    `json:"u"`
	V            float64    `json:"v"`
	Time         float64    `json:"t"`
	Pattern      float64    `json:"pattern"`
	Displacement float64    `json:"displacement"`
	Color        [3]float64 `json:"color"`
	Normal       [3]float64 `json:"normal"`
	Offset       [3]float64 `json:"offset"`
}

func NewOnDemandFrames(engine *shading.Engine, renderer *scene.Renderer, cfg OnDemandFramesConfig, logger *slog.Logger) (*OnDemandFrames, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if cfg.MaxConcurrentRenders <= 0 {
		cfg.MaxConcurrentRenders = 1
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = 30 * time.Second
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "no-store"
	}
	if cfg.TimePrecision <= 0 {
		cfg.TimePrecision = 3
	}

	gen, err := animation.NewGenerator(renderer, cfg.CacheDir, logger, animation.GeneratorOptions{
		PNGCompression: cfg.PNGCompression,
	})
	if err != nil {
		return nil, err
	}

	return &OnDemandFrames{
		engine:      engine,
		gen:         gen,
		cfg:         cfg,
		logger:      logger,
		sem:         make(chan struct{}, cfg.MaxConcurrentRenders),
		fingerprint: renderFingerprint(engine, renderer.Options(), cfg.PNGCompression),
	}, nil
}

// Fingerprint returns the cache namespace of this server's frames.
func (f *OnDemandFrames) Fingerprint() string { return f.fingerprint }

// renderFingerprint hashes the engine constants and render options, so
// servers with different settings never share cached frames.
func renderFingerprint(engine *shading.Engine, opts scene.Options, compression string) string {
	h := sha256.New()
	p := engine.Params()
	fmt.Fprintf(h, "light=%v noise=%+v eps=%g height=%g/%g maxdisp=%g\n",
		p.LightDirection, p.Noise, p.Epsilon, p.HeightScale, p.HeightFrequency, p.MaxDisplacement)
	fmt.Fprintf(h, "ramp=%s midtone=%d\n", engine.Ramp().String(), engine.MidToneIndex())
	fmt.Fprintf(h, "size=%dx%d ss=%d seg=%d radius=%g uv=%g warp=%s\n",
		opts.Width, opts.Height, opts.Supersample, opts.Segments, opts.Radius, opts.UVScale, opts.Warp.String())
	fmt.Fprintf(h, "camera=%+v bg=%s label=%t/%s png=%s\n",
		opts.Camera, rgbaString(opts.Background), opts.Label, rgbaString(opts.LabelColor), compression)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func rgbaString(c color.Color) string {
	if c == nil {
		return "nil"
	}
	r, g, b, a := c.RGBA()
	return fmt.Sprintf("%04x%04x%04x%04x", r, g, b, a)
}

// Status returns the current status of the frame server.
func (f *OnDemandFrames) Status() FrameStatus {
	var current []string
	f.currentRenders.Range(func(key, _ any) bool {
		current = append(current, key.(string))
		return true
	})

	var queued []string
	f.queuedFrames.Range(func(key, _ any) bool {
		queued = append(queued, key.(string))
		return true
	})

	return FrameStatus{
		Render: RenderStatus{
			ActiveRenders: int(f.activeRenders.Load()),
			TotalRendered: f.totalRendered.Load(),
			TotalFailed:   f.totalFailed.Load(),
			CurrentFrames: current,
			MaxConcurrent: f.cfg.MaxConcurrentRenders,
			QueuedRenders: int(f.queuedRenders.Load()),
			QueuedFrames:  queued,
		},
		TotalSamples: f.totalSamples.Load(),
	}
}

// StatusHandler returns an HTTP handler for the status endpoint (JSON).
func (f *OnDemandFrames) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		f.writeJSON(w, http.StatusOK, f.Status())
	})
}

// StatusStreamHandler pushes the status as Server-Sent Events every 250ms.
func (f *OnDemandFrames) StatusStreamHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "SSE not supported", http.StatusInternalServerError)
			return
		}

		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()

		f.sendStatusEvent(w, flusher)
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				f.sendStatusEvent(w, flusher)
			}
		}
	})
}

func (f *OnDemandFrames) sendStatusEvent(w http.ResponseWriter, flusher http.Flusher) {
	data, err := json.Marshal(f.Status())
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// FrameHandler serves GET /frame.png?t=<seconds>.
func (f *OnDemandFrames) FrameHandler() http.Handler {
	return http.HandlerFunc(f.serveFrame)
}

// SampleHandler serves GET /sample?u=&v=&t= as JSON.
func (f *OnDemandFrames) SampleHandler() http.Handler {
	return http.HandlerFunc(f.serveSample)
}

func (f *OnDemandFrames) serveFrame(w http.ResponseWriter, r *http.Request) {
	t, err := queryFloat(r, "t", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	t = f.roundTime(t)
	key := f.frameKey(t)

	w.Header().Set("Cache-Control", f.cfg.CacheControl)

	cachePath := ""
	if f.cfg.CacheDir != "" {
		cachePath = filepath.Join(f.cfg.CacheDir, f.fingerprint, key+".png")
		if fileExists(cachePath) {
			http.ServeFile(w, r, cachePath)
			return
		}
	}

	mu := f.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	if cachePath != "" && fileExists(cachePath) {
		http.ServeFile(w, r, cachePath)
		return
	}

	f.queuedRenders.Add(1)
	f.queuedFrames.Store(key, time.Now())

	select {
	case f.sem <- struct{}{}:
		f.queuedRenders.Add(-1)
		f.queuedFrames.Delete(key)
		defer func() { <-f.sem }()
	case <-r.Context().Done():
		f.queuedRenders.Add(-1)
		f.queuedFrames.Delete(key)
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), f.cfg.RenderTimeout)
	defer cancel()

	start := time.Now()
	f.activeRenders.Add(1)
	f.currentRenders.Store(key, start)

	data, err := f.gen.Encode(ctx, t)

	f.activeRenders.Add(-1)
	f.currentRenders.Delete(key)

	if err != nil {
		f.totalFailed.Add(1)
		f.log().Error("failed to render frame", "time", t, "error", err)
		http.Error(w, fmt.Sprintf("failed to render frame at t=%g: %v", t, err), renderErrorStatus(err))
		return
	}
	f.totalRendered.Add(1)
	f.log().Info("frame rendered on-demand", "time", t, "ms", time.Since(start).Milliseconds())

	if cachePath != "" {
		if err := writeCache(cachePath, data); err != nil {
			f.log().Warn("failed to cache frame", "path", cachePath, "error", err)
		}
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		f.log().Error("failed to write response", "error", err)
	}
}

func (f *OnDemandFrames) serveSample(w http.ResponseWriter, r *http.Request) {
	u, err := requiredFloat(r, "u")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	v, err := requiredFloat(r, "v")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	t, err := queryFloat(r, "t", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	uv := mgl64.Vec2{u, v}
	normal := scene.SphereNormal(uv)
	s, err := f.engine.Evaluate(f.cfg.Warp.Apply(uv), normal, t)
	if err != nil {
		http.Error(w, err.Error(), renderErrorStatus(err))
		return
	}
	f.totalSamples.Add(1)

	w.Header().Set("Cache-Control", f.cfg.CacheControl)
	f.writeJSON(w, http.StatusOK, NewSampleResponse(uv, t, s))
}

// NewSampleResponse flattens an engine sample for JSON output.
func NewSampleResponse(uv mgl64.Vec2, t float64, s shading.Sample) SampleResponse {
	return SampleResponse{
		U:            uv.X(),
		V:            uv.Y(),
		Time:         t,
		Pattern:      s.Pattern,
		Displacement: s.Displacement,
		Color:        [3]float64(s.Color),
		Normal:       [3]float64(s.Normal),
		Offset:       [3]float64(s.Offset),
	}
}

func (f *OnDemandFrames) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		f.log().Error("failed to encode response", "error", err)
	}
}

// roundTime snaps t to TimePrecision decimals. Times too large to scale
// already have no fractional digits at that precision and pass through.
func (f *OnDemandFrames) roundTime(t float64) float64 {
	if !f.roundable(t) {
		return t
	}
	scale := math.Pow(10, float64(f.cfg.TimePrecision))
	return math.Round(t*scale) / scale
}

func (f *OnDemandFrames) roundable(t float64) bool {
	scale := math.Pow(10, float64(f.cfg.TimePrecision))
	return !math.IsInf(t*scale, 0) && math.Abs(t) < 1e15
}

func (f *OnDemandFrames) frameKey(t float64) string {
	if !f.roundable(t) {
		// fixed notation of a huge time would exceed file name limits
		return "frame_t" + strconv.FormatFloat(t, 'g', -1, 64)
	}
	return "frame_t" + strconv.FormatFloat(t, 'f', f.cfg.TimePrecision, 64)
}

// lockFor serializes renders of the same key. Distinct keys may share a
// stripe, which only costs parallelism.
func (f *OnDemandFrames) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &f.locks[h.Sum32()%lockStripes]
}

func (f *OnDemandFrames) log() *slog.Logger {
	if f.logger != nil {
		return f.logger
	}
	return slog.Default()
}

// queryFloat parses a float query parameter, returning def when absent.
// Non-finite values parse fine and are rejected by the engine.
func queryFloat(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid parameter %s: %q", name, raw)
	}
	return v, nil
}

func requiredFloat(r *http.Request, name string) (float64, error) {
	if !r.URL.Query().Has(name) {
		return 0, fmt.Errorf("missing parameter %s", name)
	}
	return queryFloat(r, name, 0)
}

func renderErrorStatus(err error) int {
	switch {
	case errors.Is(err, shading.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeCache(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	if err != nil {
		return false
	}
	return !st.IsDir()
}
