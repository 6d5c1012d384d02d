// Package config loads the application configuration from YAML, layering
// the file's values over built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"aubridge/pkg/mixdown"
)

// Config holds the runtime settings for the bridge and exporter.
type Config struct {
	// Interpreter launches the agent script.
	Interpreter string `yaml:"interpreter"`

	// ScriptPaths are candidate agent script locations, tried in order.
	ScriptPaths []string `yaml:"script_paths"`

	// ExportDir receives mixdown WAV files. Defaults to the temp dir.
	ExportDir string `yaml:"export_dir"`

	// TranscriptDB is the SQLite path for stored transcripts.
	TranscriptDB string `yaml:"transcript_db"`

	// ChunkSize is the mixdown chunk length in frames.
	ChunkSize int `yaml:"chunk_size"`
}

// Default returns the built-in configuration. Script candidates cover an
// installed layout (next to the binary), a development checkout, and a
// plain relative path.
func Default() Config {
	return Config{
		Interpreter:  "python3",
		ScriptPaths:  defaultScriptPaths(),
		ExportDir:    os.TempDir(),
		TranscriptDB: filepath.Join(os.TempDir(), "aubridge-transcripts.db"),
		ChunkSize:    mixdown.DefaultChunkSize,
	}
}

// Load reads a YAML config file over the defaults. Omitted or zero fields
// keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if file.Interpreter != "" {
		cfg.Interpreter = file.Interpreter
	}
	if len(file.ScriptPaths) > 0 {
		cfg.ScriptPaths = file.ScriptPaths
	}
	if file.ExportDir != "" {
		cfg.ExportDir = file.ExportDir
	}
	if file.TranscriptDB != "" {
		cfg.TranscriptDB = file.TranscriptDB
	}
	if file.ChunkSize > 0 {
		cfg.ChunkSize = file.ChunkSize
	}
	return cfg, nil
}

// defaultScriptPaths mirrors the lookup order used by the desktop build:
// the installed share directory, the working tree, a bare relative path,
// and the source tree relative to a deeply nested build output.
func defaultScriptPaths() []string {
	var paths []string

	exeDir := ""
	if exe, err := os.Executable(); err == nil {
		exeDir = filepath.Dir(exe)
		paths = append(paths, filepath.Join(exeDir, "..", "share", "aubridge", "agent_service.py"))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, "agent", "agent_service.py"))
	}
	paths = append(paths, filepath.Join("agent", "agent_service.py"))
	if exeDir != "" {
		paths = append(paths, filepath.Join(exeDir, "..", "..", "..", "..", "agent", "agent_service.py"))
	}

	return paths
}
