package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWriter_New(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.frames")

	w, err := New(dbPath, Metadata{Name: "Test", Format: "png", Width: 64, Height: 32})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer w.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("Database file was not created")
	}

	var count int
	err = w.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='frames'").Scan(&count)
	if err != nil {
		t.Fatalf("Failed to query schema: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected frames table to exist, got count=%d", count)
	}
}

func TestWriter_BatchFlushOnClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.frames")

	w, err := New(dbPath, Metadata{Name: "Test", Format: "png"})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	total := DefaultBatchSize*2 + 5
	for i := 0; i < total; i++ {
		if err := w.WriteFrame(context.Background(), i, float64(i)/30, []byte("fake png data")); err != nil {
			t.Fatalf("Failed to write frame %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	r, err := OpenReader(dbPath)
	if err != nil {
		t.Fatalf("Failed to open reader: %v", err)
	}
	defer r.Close()

	n, err := r.FrameCount()
	if err != nil {
		t.Fatalf("Failed to count frames: %v", err)
	}
	if n != total {
		t.Errorf("Expected %d frames, got %d", total, n)
	}
}

func TestReader_RoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.frames")

	meta := Metadata{
		Name:        "Marble",
		Format:      "png",
		Description: "test animation",
		Version:     "1.0",
		Ramp:        "1,1,1@0 0,0,0@1",
		Width:       256,
		Height:      128,
		FrameCount:  2,
		FPS:         24,
		StartTime:   1.5,
	}
	w, err := New(dbPath, meta)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	if err := w.WriteFrame(context.Background(), 0, 1.5, []byte("frame zero")); err != nil {
		t.Fatalf("Failed to write frame: %v", err)
	}
	if err := w.WriteFrame(context.Background(), 1, 1.5+1.0/24, []byte("frame one")); err != nil {
		t.Fatalf("Failed to write frame: %v", err)
	}
	// rewriting an index replaces it
	if err := w.WriteFrame(context.Background(), 1, 2, []byte("frame one again")); err != nil {
		t.Fatalf("Failed to write frame: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	r, err := OpenReader(dbPath)
	if err != nil {
		t.Fatalf("Failed to open reader: %v", err)
	}
	defer r.Close()

	got, err := r.Metadata()
	if err != nil {
		t.Fatalf("Failed to read metadata: %v", err)
	}
	if got != meta {
		t.Errorf("Metadata mismatch:\n got  %+v\n want %+v", got, meta)
	}

	data, tm, err := r.ReadFrame(1)
	if err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	if string(data) != "frame one again" || tm != 2 {
		t.Errorf("Unexpected frame 1: %q at %v", data, tm)
	}

	if _, _, err := r.ReadFrame(7); !errors.Is(err, ErrFrameNotFound) {
		t.Errorf("Expected ErrFrameNotFound, got %v", err)
	}
}

func TestOpenReader_MissingTable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	if err := os.WriteFile(dbPath, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenReader(dbPath); err == nil {
		t.Fatal("Expected error for database without frames table")
	}
}

func TestWriter_Location(t *testing.T) {
	w := &Writer{path: "out.frames"}
	if got := w.Location(12); got != "out.frames#12" {
		t.Errorf("Unexpected location %q", got)
	}
}
