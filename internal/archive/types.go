// Package archive stores rendered animation frames in a single SQLite file.
package archive

import (
	"strconv"
)

// Metadata describes an archived animation.
type Metadata struct {
	Name        string  `json:"name"`        // Human-readable animation name
	Format      string  `json:"format"`      // Frame image format (png)
	Description string  `json:"description"` // Free text
	Version     string  `json:"version"`     // Version string
	Ramp        string  `json:"ramp"`        // Color ramp the frames were shaded with
	Width       int     `json:"width"`       // Frame width in pixels
	Height      int     `json:"height"`      // Frame height in pixels
	FrameCount  int     `json:"frame_count"` // Number of frames in the animation
	FPS         float64 `json:"fps"`         // Frames per second
	StartTime   float64 `json:"start_time"`  // Shading time of frame 0 in seconds
}

// ToMap converts Metadata to a map for database insertion.
func (m Metadata) ToMap() map[string]string {
	result := make(map[string]string)

	if m.Name != "" {
		result["name"] = m.Name
	}
	if m.Format != "" {
		result["format"] = m.Format
	}
	if m.Description != "" {
		result["description"] = m.Description
	}
	if m.Version != "" {
		result["version"] = m.Version
	}
	if m.Ramp != "" {
		result["ramp"] = m.Ramp
	}
	if m.Width > 0 {
		result["width"] = strconv.Itoa(m.Width)
	}
	if m.Height > 0 {
		result["height"] = strconv.Itoa(m.Height)
	}
	if m.FrameCount > 0 {
		result["frame_count"] = strconv.Itoa(m.FrameCount)
	}
	if m.FPS > 0 {
		result["fps"] = strconv.FormatFloat(m.FPS, 'g', -1, 64)
	}
	result["start_time"] = strconv.FormatFloat(m.StartTime, 'g', -1, 64)

	return result
}

// metadataFromMap is the inverse of ToMap. Unparseable numbers are left zero.
func metadataFromMap(values map[string]string) Metadata {
	meta := Metadata{
		Name:        values["name"],
		Format:      values["format"],
		Description: values["description"],
		Version:     values["version"],
		Ramp:        values["ramp"],
	}
	meta.Width, _ = strconv.Atoi(values["width"])
	meta.Height, _ = strconv.Atoi(values["height"])
	meta.FrameCount, _ = strconv.Atoi(values["frame_count"])
	meta.FPS, _ = strconv.ParseFloat(values["fps"], 64)
	meta.StartTime, _ = strconv.ParseFloat(values["start_time"], 64)
	return meta
}
