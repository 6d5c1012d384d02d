package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"aubridge/pkg/mixdown"
)

// projectFile is the on-disk YAML shape accepted by the export command.
type projectFile struct {
	SampleRate int         `yaml:"sample_rate"`
	Tracks     []trackFile `yaml:"tracks"`
}

type trackFile struct {
	Name       string    `yaml:"name"`
	SampleRate int       `yaml:"sample_rate"`
	Start      float64   `yaml:"start"`
	Muted      bool      `yaml:"muted"`
	Volume     float64   `yaml:"volume"`
	Samples    []float32 `yaml:"samples"`
}

// exportConfig holds configuration for the export command.
type exportConfig struct {
	outDir    string
	chunkSize int
}

// newExportCmd creates the "aubridge export" subcommand.
func newExportCmd() *cobra.Command {
	var cfg exportConfig

	cmd := &cobra.Command{
		Use:   "export <project.yaml>",
		Short: "Mix a project file down to a mono 16-bit WAV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := runExport(args[0], cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfg.outDir, "out", "o", "", "output directory (defaults to the temp dir)")
	cmd.Flags().IntVar(&cfg.chunkSize, "chunk-size", 0, "mix chunk size in frames (0 uses the default)")

	return cmd
}

func runExport(path string, cfg exportConfig) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read project %s: %w", path, err)
	}

	var pf projectFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return "", fmt.Errorf("parse project %s: %w", path, err)
	}

	tracks := make([]mixdown.Track, 0, len(pf.Tracks))
	for _, t := range pf.Tracks {
		vol := t.Volume
		if vol == 0 {
			vol = 1.0
		}
		tracks = append(tracks, mixdown.Track{
			Name:       t.Name,
			SampleRate: t.SampleRate,
			Start:      t.Start,
			Muted:      t.Muted,
			Volume:     vol,
			Samples:    t.Samples,
		})
	}

	exporter := &mixdown.Exporter{ChunkSize: cfg.chunkSize, OutDir: cfg.outDir}
	return exporter.Export(pf.SampleRate, tracks)
}
