// Package animation turns frame indices into rendered, encoded frames and
// hands them to a frame store.
package animation

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/marbleshade/internal/scene"
	"github.com/MeKo-Tech/marbleshade/internal/worker"
)

// FrameWriter stores encoded frames somewhere other than the output folder.
type FrameWriter interface {
	WriteFrame(ctx context.Context, index int, time float64, pngData []byte) error
	Location(index int) string
}

// GeneratorOptions holds optional generator settings.
type GeneratorOptions struct {
	// Writer replaces the folder output when set.
	Writer FrameWriter
	// PNGCompression is one of default, speed, best, none.
	PNGCompression string
	// NamePattern is a fmt pattern taking the frame index.
	NamePattern string
	// FPS converts frame indices to shading time; defaults to 30.
	FPS float64
	// StartTime is the shading time of frame 0.
	StartTime float64
}

// Generator renders frames and writes them as PNG.
type Generator struct {
	renderer  *scene.Renderer
	writer    FrameWriter
	logger    *slog.Logger
	encoder   *png.Encoder
	outputDir string
	pattern   string
	fps       float64
	start     float64
}

// NewGenerator prepares a generator writing into outputDir unless opts.Writer is set.
func NewGenerator(renderer *scene.Renderer, outputDir string, logger *slog.Logger, opts GeneratorOptions) (*Generator, error) {
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	level, err := ParsePNGCompression(opts.PNGCompression)
	if err != nil {
		return nil, err
	}
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.NamePattern == "" {
		opts.NamePattern = "frame_%05d.png"
	}

	return &Generator{
		renderer:  renderer,
		writer:    opts.Writer,
		logger:    logger,
		encoder:   &png.Encoder{CompressionLevel: level},
		outputDir: outputDir,
		pattern:   opts.NamePattern,
		fps:       opts.FPS,
		start:     opts.StartTime,
	}, nil
}

func (g *Generator) log() *slog.Logger {
	if g.logger != nil {
		return g.logger
	}
	return slog.Default()
}

// TimeAt returns the shading time of frame index.
func (g *Generator) TimeAt(index int) float64 {
	return g.start + float64(index)/g.fps
}

// Tasks builds worker tasks for frames [0,count).
func (g *Generator) Tasks(count int, force bool) []worker.Task {
	tasks := make([]worker.Task, 0, count)
	for i := 0; i < count; i++ {
		tasks = append(tasks, worker.Task{Index: i, Time: g.TimeAt(i), Force: force})
	}
	return tasks
}

// FramePath returns the folder output path of frame index.
func (g *Generator) FramePath(index int) string {
	return filepath.Join(g.outputDir, fmt.Sprintf(g.pattern, index))
}

// Generate renders one frame and stores it. It returns where the frame went.
func (g *Generator) Generate(ctx context.Context, task worker.Task) (string, error) {
	if g.writer == nil && !task.Force {
		path := g.FramePath(task.Index)
		if _, err := os.Stat(path); err == nil {
			g.log().Debug("Frame already exists; skipping", "frame", task.Index, "path", path)
			return path, nil
		}
	}

	img, err := g.renderer.RenderFrame(ctx, task.Time)
	if err != nil {
		return "", fmt.Errorf("failed to render frame %d: %w", task.Index, err)
	}

	var buf bytes.Buffer
	if err := g.encoder.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode frame %d: %w", task.Index, err)
	}

	if g.writer != nil {
		if err := g.writer.WriteFrame(ctx, task.Index, task.Time, buf.Bytes()); err != nil {
			return "", fmt.Errorf("failed to store frame %d: %w", task.Index, err)
		}
		return g.writer.Location(task.Index), nil
	}

	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	path := g.FramePath(task.Index)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write frame %s: %w", path, err)
	}
	g.log().Debug("Frame written", "frame", task.Index, "time", task.Time, "path", path)
	return path, nil
}

// Encode renders the frame at time and returns PNG bytes without storing it.
func (g *Generator) Encode(ctx context.Context, time float64) ([]byte, error) {
	img, err := g.renderer.RenderFrame(ctx, time)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := g.encoder.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// ParsePNGCompression maps a compression name to a png level.
func ParsePNGCompression(name string) (png.CompressionLevel, error) {
	switch name {
	case "", "default":
		return png.DefaultCompression, nil
	case "speed":
		return png.BestSpeed, nil
	case "best":
		return png.BestCompression, nil
	case "none":
		return png.NoCompression, nil
	default:
		return 0, fmt.Errorf("invalid png compression %q: must be default, speed, best or none", name)
	}
}
