package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/normanking/facerig/internal/avatar3d"
	"github.com/normanking/facerig/internal/speech"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the viewer server and speak each line read from stdin",
		Long: `Run the frame loop and the viewer server. Every line on stdin is spoken;
a new line interrupts the one still playing. Lines starting with a slash
are commands:

  /blink              blink now
  /look <yaw> <pitch> hold the gaze on a target, clamped to the saccade range
  /expr <preset>      cross-fade to an expression preset
  /stop               interrupt the current utterance`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			applyEngineFlags(cmd, a)
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				a.cfg.Viewer.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var e *engine
			e, err = newEngine(a, engineOptions{
				viewer:  true,
				onSpeak: func(text string) { speakAsync(ctx, e, text) },
			})
			if err != nil {
				return err
			}
			defer e.Close()

			fmt.Fprintf(cmd.ErrOrStderr(), "%s ws://%s/ws\n", okStyle.Render("Serving"), a.cfg.Viewer.Addr)
			go readLines(ctx, cmd.InOrStdin(), e)
			return e.run(ctx)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (overrides viewer.addr)")
	addEngineFlags(cmd)
	return cmd
}

func speakAsync(ctx context.Context, e *engine, text string) {
	go func() {
		u, err := e.pipeline.Speak(ctx, text)
		if err != nil && u.Outcome == speech.OutcomeFailed {
			e.log.Error().Err(err).Str("utterance", u.ID).Msg("Utterance failed")
		}
	}()
}

func readLines(ctx context.Context, r io.Reader, e *engine) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if err := runControl(e, line); err != nil {
				e.log.Warn().Err(err).Str("line", line).Msg("Bad command")
			}
			continue
		}
		speakAsync(ctx, e, line)
	}
}

var errUsage = errors.New("usage: /blink | /look <yaw> <pitch> | /expr <preset> | /stop")

func runControl(e *engine, line string) error {
	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(fields) == 0 {
		return errUsage
	}
	switch fields[0] {
	case "blink":
		e.session.TriggerBlink()
	case "stop":
		e.pipeline.Cancel()
	case "look":
		if len(fields) != 3 {
			return errUsage
		}
		yaw, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return err
		}
		pitch, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return err
		}
		e.session.LookAt(yaw, pitch)
	case "expr":
		if len(fields) != 2 {
			return errUsage
		}
		p, ok := avatar3d.PresetByName(fields[1])
		if !ok {
			return fmt.Errorf("unknown preset %q", fields[1])
		}
		e.session.SetExpression(p, 0.4)
	default:
		return errUsage
	}
	return nil
}
