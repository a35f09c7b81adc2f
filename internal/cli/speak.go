package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// settle lets the mouth decay to rest before the frame loop stops.
const settle = 400 * time.Millisecond

func newSpeakCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "speak <text>",
		Short: "Synthesize text and animate the avatar while it plays",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			applyEngineFlags(cmd, a)

			withViewer, _ := cmd.Flags().GetBool("viewer")
			e, err := newEngine(a, engineOptions{viewer: withViewer || a.cfg.Viewer.Enabled})
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			loopCtx, cancelLoop := context.WithCancel(ctx)
			loopErr := make(chan error, 1)
			go func() { loopErr <- e.run(loopCtx) }()

			u, speakErr := e.pipeline.Speak(ctx, strings.Join(args, " "))

			select {
			case <-time.After(settle):
			case <-ctx.Done():
			}
			cancelLoop()
			if err := <-loopErr; err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", titleStyle.Render("Utterance"), dimStyle.Render(u.ID))
			fmt.Fprintf(out, "  Outcome:  %s\n", u.Outcome)
			if u.Provider != "" {
				fmt.Fprintf(out, "  Voice:    %s (%s)\n", u.Provider, u.Duration.Round(time.Millisecond))
				fmt.Fprintf(out, "  Cues:     %d from %s\n", u.Cues, u.CueSource)
				fmt.Fprintf(out, "  Audio:    %s\n", u.WavPath)
			}
			return speakErr
		},
	}
	cmd.Flags().Bool("viewer", false, "Serve the animation to browser renderers while speaking")
	addEngineFlags(cmd)
	return cmd
}

func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().String("model", "", "glTF/GLB model to drive (overrides model.path)")
	cmd.Flags().Bool("no-audio", false, "Skip the audio device and animate against the wall clock")
}

func applyEngineFlags(cmd *cobra.Command, a *app) {
	if path, _ := cmd.Flags().GetString("model"); path != "" {
		a.cfg.Model.Path = path
	}
	if off, _ := cmd.Flags().GetBool("no-audio"); off {
		a.cfg.Audio.Enabled = false
	}
}
