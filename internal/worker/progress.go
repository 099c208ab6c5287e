package worker

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Stats is a snapshot of a render run.
type Stats struct {
	Total     int
	Completed int
	Failed    int
	Elapsed   time.Duration
	// FramesPerSecond is the wall-clock throughput of finished frames.
	FramesPerSecond float64
	// RenderTime sums the generator time of every rendered frame.
	RenderTime time.Duration
	// ShadingStart and ShadingEnd bound the shading times rendered so far.
	ShadingStart float64
	ShadingEnd   float64
	// Slowest is the frame with the largest Elapsed.
	Slowest Result
}

// AverageFrame returns the mean generator time per rendered frame.
func (s Stats) AverageFrame() time.Duration {
	rendered := s.Completed - s.Failed
	if rendered <= 0 {
		return 0
	}
	return s.RenderTime / time.Duration(rendered)
}

// ETA extrapolates the remaining wall-clock time from the current rate.
func (s Stats) ETA() time.Duration {
	if s.FramesPerSecond <= 0 || s.Completed >= s.Total {
		return 0
	}
	return time.Duration(float64(s.Total-s.Completed) / s.FramesPerSecond * float64(time.Second))
}

// Progress aggregates frame results and logs them through slog.
type Progress struct {
	logger   *slog.Logger
	now      func() time.Time
	start    time.Time
	lastLog  time.Time
	interval time.Duration
	stats    Stats
	mu       sync.Mutex
}

// NewProgress tracks total frames. A positive interval logs a progress
// line at most that often; zero logs only the summary.
func NewProgress(total int, logger *slog.Logger, interval time.Duration) *Progress {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Progress{
		logger:   logger,
		now:      time.Now,
		interval: interval,
	}
	p.start = p.now()
	p.lastLog = p.start
	p.stats = Stats{
		Total:        total,
		ShadingStart: math.Inf(1),
		ShadingEnd:   math.Inf(-1),
	}
	return p
}

// Observe records one finished frame.
func (p *Progress) Observe(r Result) {
	p.mu.Lock()
	s := &p.stats
	s.Completed++
	if r.Err != nil {
		s.Failed++
	} else {
		s.RenderTime += r.Elapsed
		s.ShadingStart = math.Min(s.ShadingStart, r.Task.Time)
		s.ShadingEnd = math.Max(s.ShadingEnd, r.Task.Time)
		if r.Elapsed > s.Slowest.Elapsed {
			s.Slowest = r
		}
	}
	now := p.now()
	due := p.interval > 0 && (now.Sub(p.lastLog) >= p.interval || s.Completed == s.Total)
	if due {
		p.lastLog = now
	}
	snap := p.snapshot(now)
	p.mu.Unlock()

	if r.Err == nil {
		p.logger.Debug("Frame rendered",
			"frame", r.Task.Index,
			"time", r.Task.Time,
			"ms", r.Elapsed.Milliseconds(),
		)
	}
	if due {
		p.logger.Info("Rendering progress",
			"completed", snap.Completed,
			"total", snap.Total,
			"failed", snap.Failed,
			"fps", round1(snap.FramesPerSecond),
			"shading_time", shadingRange(snap),
			"eta", formatDuration(snap.ETA()),
		)
	}
}

// Callback returns a ProgressFunc suitable for Config.OnProgress.
func (p *Progress) Callback() ProgressFunc {
	return p.Observe
}

// Stats returns the current snapshot.
func (p *Progress) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot(p.now())
}

func (p *Progress) snapshot(now time.Time) Stats {
	s := p.stats
	s.Elapsed = now.Sub(p.start)
	if s.Elapsed > 0 {
		s.FramesPerSecond = float64(s.Completed) / s.Elapsed.Seconds()
	}
	return s
}

// LogSummary logs the final run statistics.
func (p *Progress) LogSummary() {
	s := p.Stats()
	attrs := []any{
		"rendered", s.Completed - s.Failed,
		"total", s.Total,
		"failed", s.Failed,
		"elapsed", formatDuration(s.Elapsed),
		"fps", round1(s.FramesPerSecond),
		"shading_time", shadingRange(s),
		"avg_frame_ms", s.AverageFrame().Milliseconds(),
	}
	if s.Slowest.Elapsed > 0 {
		attrs = append(attrs, "slowest", s.Slowest.Task.String(), "slowest_ms", s.Slowest.Elapsed.Milliseconds())
	}
	if s.Failed > 0 {
		p.logger.Warn("Frame rendering finished with failures", attrs...)
		return
	}
	p.logger.Info("Frame rendering finished", attrs...)
}

func shadingRange(s Stats) string {
	if s.ShadingStart > s.ShadingEnd {
		return "none"
	}
	return fmt.Sprintf("%.3fs..%.3fs", s.ShadingStart, s.ShadingEnd)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
