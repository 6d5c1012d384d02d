package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"aubridge/pkg/bridge"
	"aubridge/pkg/config"
	"aubridge/pkg/editor"
	"aubridge/pkg/mixdown"
	"aubridge/pkg/transcript"
)

// runConfig holds configuration for the run command.
type runConfig struct {
	configPath string
	verbose    bool
}

// newRunCmd creates the "aubridge run" subcommand.
func newRunCmd() *cobra.Command {
	var cfg runConfig

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the agent bridge and chat on stdin/stdout",
		Long:  "Starts the agent process, forwards stdin lines as user messages,\nand prints bridge events to stdout until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBridge(cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.configPath, "config", "c", "", "path to config YAML (defaults apply when omitted)")
	cmd.Flags().BoolVarP(&cfg.verbose, "verbose", "v", false, "log bridge diagnostics to stderr")

	return cmd
}

func runBridge(cmd *cobra.Command, rc runConfig) error {
	cfg := config.Default()
	if rc.configPath != "" {
		loaded, err := config.Load(rc.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	out := cmd.OutOrStdout()

	store, err := transcript.Open(cfg.TranscriptDB)
	if err != nil {
		return fmt.Errorf("open transcript store: %w", err)
	}
	defer func() { _ = store.Close() }()

	project := demoProject()
	registry := editor.NewRegistry()
	registerActions(registry, project)

	exporter := &mixdown.Exporter{ChunkSize: cfg.ChunkSize, OutDir: cfg.ExportDir}

	var logw io.Writer = io.Discard
	if rc.verbose {
		logw = cmd.ErrOrStderr()
	}

	b := bridge.New(bridge.Options{
		Interpreter: cfg.Interpreter,
		ScriptPaths: cfg.ScriptPaths,
		Actions:     registry,
		State:       project,
		Exporter:    &projectExporter{project: project, exporter: exporter},
		Transcripts: store,
		LogWriter:   logw,
	})

	if err := b.Start(cmd.Context()); err != nil {
		return err
	}
	defer b.Stop()

	if script, err := bridge.ResolveScript(cfg.ScriptPaths); err == nil {
		stop, werr := watchScript(script, func() {
			fmt.Fprintf(out, "! agent script changed on disk, restart to pick it up\n")
		})
		if werr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "aubridge: script watch unavailable: %v\n", werr)
		} else {
			defer stop()
		}
	}

	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		fmt.Fprintf(out, "aubridge ready, type a message and press enter (ctrl-c to quit)\n")
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-sigc:
			fmt.Fprintf(out, "shutting down\n")
			return nil

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			if err := b.SendMessage(line); err != nil {
				return err
			}

		case ev := <-b.Events():
			printEvent(out, b, ev)
			if ev.Kind == bridge.EventCrash {
				return ev.Err
			}
		}
	}
}

// printEvent renders one bridge event for the terminal. Approval requests
// are auto-resolved here: the run harness has no approval UI, so it approves
// in batch mode and says so.
func printEvent(out io.Writer, b *bridge.Bridge, ev bridge.Event) {
	switch ev.Kind {
	case bridge.EventMessage:
		if ev.CanUndo {
			fmt.Fprintf(out, "agent: %s (undoable)\n", ev.Message)
			return
		}
		fmt.Fprintf(out, "agent: %s\n", ev.Message)

	case bridge.EventApproval:
		fmt.Fprintf(out, "agent requests approval: %s\n", ev.Approval.Description)
		if err := b.SendApproval(ev.Approval.ID, true, true); err != nil {
			fmt.Fprintf(out, "! approval failed: %v\n", err)
			return
		}
		fmt.Fprintf(out, "approved automatically\n")

	case bridge.EventFeedback:
		fmt.Fprintf(out, "* %s\n", ev.Message)

	case bridge.EventError:
		fmt.Fprintf(out, "! %s\n", ev.Message)

	case bridge.EventCrash:
		fmt.Fprintf(out, "! %s\n", ev.Message)
	}
}

// projectExporter adapts the project and exporter pair to the bridge's
// single-method export seam.
type projectExporter struct {
	project  *editor.Project
	exporter *mixdown.Exporter
}

func (pe *projectExporter) Export() (string, error) {
	return pe.exporter.Export(pe.project.SampleRate, pe.project.MixTracks())
}

// demoProject builds a small two-track project so state queries and exports
// have something to answer with out of the box.
func demoProject() *editor.Project {
	p := editor.NewProject(44100)

	tone := make([]float32, 44100)
	for i := range tone {
		tone[i] = 0.2
	}
	p.AddTrack(editor.Track{Name: "Voice", SampleRate: 44100, Samples: tone})

	bed := make([]float32, 22050)
	for i := range bed {
		bed[i] = -0.1
	}
	p.AddTrack(editor.Track{Name: "Music", SampleRate: 44100, Start: 0.5, Volume: 0.5, Samples: bed})

	return p
}

// registerActions wires the action codes the agent may dispatch against the
// demo project.
func registerActions(r *editor.Registry, p *editor.Project) {
	r.Register("select_all", func(map[string]any) error {
		p.SetSelection(0, p.TotalDuration())
		return nil
	})
	r.Register("clear_selection", func(map[string]any) error {
		p.SetSelection(0, 0)
		p.SelectClips(nil)
		return nil
	})
	r.Register("set_cursor", func(params map[string]any) error {
		pos, ok := params["position"].(float64)
		if !ok {
			return fmt.Errorf("set_cursor requires a position parameter")
		}
		p.SetCursor(pos)
		return nil
	})
	r.Register("mute_track", func(params map[string]any) error {
		return setTrackMuted(p, params, true)
	})
	r.Register("unmute_track", func(params map[string]any) error {
		return setTrackMuted(p, params, false)
	})
}

func setTrackMuted(p *editor.Project, params map[string]any, muted bool) error {
	id, ok := params["track_id"].(float64)
	if !ok {
		return fmt.Errorf("track mute requires a track_id parameter")
	}
	if p.Track(int64(id)) == nil {
		return fmt.Errorf("no track with id %d", int64(id))
	}
	p.SetMuted(int64(id), muted)
	return nil
}
