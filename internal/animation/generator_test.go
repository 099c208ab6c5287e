package animation

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/marbleshade/internal/scene"
	"github.com/MeKo-Tech/marbleshade/internal/shading"
	"github.com/MeKo-Tech/marbleshade/internal/worker"
)

type memoryWriter struct {
	mu     sync.Mutex
	frames map[int][]byte
	times  map[int]float64
}

func newMemoryWriter() *memoryWriter {
	return &memoryWriter{frames: map[int][]byte{}, times: map[int]float64{}}
}

func (m *memoryWriter) WriteFrame(_ context.Context, index int, time float64, pngData []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames[index] = append([]byte(nil), pngData...)
	m.times[index] = time
	return nil
}

func (m *memoryWriter) Location(index int) string {
	return fmt.Sprintf("memory#%d", index)
}

func newTestGenerator(t *testing.T, dir string, opts GeneratorOptions) *Generator {
	t.Helper()
	engine, err := shading.NewEngine(shading.DefaultConfig())
	require.NoError(t, err)

	ro := scene.DefaultOptions()
	ro.Width, ro.Height = 32, 32
	ro.Supersample = 1
	ro.Segments = 8
	renderer, err := scene.NewRenderer(engine, ro, nil)
	require.NoError(t, err)

	gen, err := NewGenerator(renderer, dir, nil, opts)
	require.NoError(t, err)
	return gen
}

func TestGenerator_TimeAt(t *testing.T) {
	gen := newTestGenerator(t, t.TempDir(), GeneratorOptions{FPS: 10, StartTime: 2})

	assert.InDelta(t, 2.0, gen.TimeAt(0), 1e-12)
	assert.InDelta(t, 2.5, gen.TimeAt(5), 1e-12)

	tasks := gen.Tasks(3, true)
	require.Len(t, tasks, 3)
	for i, task := range tasks {
		assert.Equal(t, i, task.Index)
		assert.InDelta(t, gen.TimeAt(i), task.Time, 1e-12)
		assert.True(t, task.Force)
	}
}

func TestGenerator_DefaultFPS(t *testing.T) {
	gen := newTestGenerator(t, t.TempDir(), GeneratorOptions{})
	assert.InDelta(t, 1.0, gen.TimeAt(30), 1e-12)
	assert.Equal(t, "frame_00007.png", filepath.Base(gen.FramePath(7)))
}

func TestGenerator_WritesFolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	gen := newTestGenerator(t, dir, GeneratorOptions{PNGCompression: "speed"})

	path, err := gen.Generate(context.Background(), worker.Task{Index: 0, Time: 0})
	require.NoError(t, err)
	assert.Equal(t, gen.FramePath(0), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())
}

func TestGenerator_SkipsExisting(t *testing.T) {
	dir := t.TempDir()
	gen := newTestGenerator(t, dir, GeneratorOptions{})

	path := gen.FramePath(3)
	require.NoError(t, os.WriteFile(path, []byte("placeholder"), 0o644))

	got, err := gen.Generate(context.Background(), worker.Task{Index: 3, Time: 0.1})
	require.NoError(t, err)
	assert.Equal(t, path, got)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "placeholder", string(data))

	_, err = gen.Generate(context.Background(), worker.Task{Index: 3, Time: 0.1, Force: true})
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, "placeholder", string(data))
}

func TestGenerator_UsesWriter(t *testing.T) {
	dir := t.TempDir()
	mem := newMemoryWriter()
	gen := newTestGenerator(t, dir, GeneratorOptions{Writer: mem, FPS: 4})

	pool := worker.New(worker.Config{Workers: 2, Generator: gen})
	results := pool.Run(context.Background(), gen.Tasks(3, false))
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, fmt.Sprintf("memory#%d", r.Task.Index), r.Path)
	}

	require.Len(t, mem.frames, 3)
	assert.InDelta(t, 0.5, mem.times[2], 1e-12)
	_, err := png.Decode(bytes.NewReader(mem.frames[1]))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerator_Cancelled(t *testing.T) {
	gen := newTestGenerator(t, t.TempDir(), GeneratorOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gen.Generate(ctx, worker.Task{Index: 0, Force: true})
	require.ErrorIs(t, err, context.Canceled)
}

func TestGenerator_Encode(t *testing.T) {
	gen := newTestGenerator(t, t.TempDir(), GeneratorOptions{})
	data, err := gen.Encode(context.Background(), 1.5)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
}

func TestParsePNGCompression(t *testing.T) {
	tests := []struct {
		name    string
		want    png.CompressionLevel
		wantErr bool
	}{
		{"", png.DefaultCompression, false},
		{"default", png.DefaultCompression, false},
		{"speed", png.BestSpeed, false},
		{"best", png.BestCompression, false},
		{"none", png.NoCompression, false},
		{"fast", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePNGCompression(tt.name)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewGenerator_Errors(t *testing.T) {
	_, err := NewGenerator(nil, t.TempDir(), nil, GeneratorOptions{})
	require.Error(t, err)

	engine, err := shading.NewEngine(shading.DefaultConfig())
	require.NoError(t, err)
	renderer, err := scene.NewRenderer(engine, scene.DefaultOptions(), nil)
	require.NoError(t, err)
	_, err = NewGenerator(renderer, t.TempDir(), nil, GeneratorOptions{PNGCompression: "huge"})
	require.Error(t, err)
}
