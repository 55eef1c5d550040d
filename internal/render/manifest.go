package render

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest is the YAML record of a run.
type Manifest struct {
	Version    string    `yaml:"version"`
	CreatedAt  time.Time `yaml:"created_at"`
	Expression string    `yaml:"expression"`
	Output     string    `yaml:"output"`
	URL        string    `yaml:"url,omitempty"`
	FPS        int       `yaml:"fps"`
	Width      int       `yaml:"width"`
	Height     int       `yaml:"height"`
	Inputs     Inputs    `yaml:"inputs"`
	Segments   []Segment `yaml:"segments"`
	// TotalSeconds includes the alarm hold of every segment.
	TotalSeconds int `yaml:"total_seconds"`
	// ProbedSeconds is the length ffprobe reports for Output.
	ProbedSeconds float64       `yaml:"probed_seconds,omitempty"`
	Elapsed       time.Duration `yaml:"elapsed"`
}

// NewManifest builds a manifest from a finished run.
func NewManifest(res *RunResult, settings Settings, in Inputs) *Manifest {
	m := &Manifest{
		Version:    "1",
		CreatedAt:  time.Now().UTC(),
		Expression: res.Expression,
		Output:     res.Output,
		FPS:        settings.FPS,
		Width:      settings.Width,
		Height:     settings.Height,
		Inputs:     in,
		Segments:   res.Segments,
		Elapsed:    res.Elapsed,
	}
	for _, s := range res.Segments {
		m.TotalSeconds += s.DurationSeconds + settings.AlarmSeconds
	}
	return m
}

// WriteManifest writes m as YAML to path, creating parent directories.
func WriteManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil { // #nosec G306 - manifest is not sensitive
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from the caller
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return &m, nil
}
