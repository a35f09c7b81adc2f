package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/normanking/facerig/internal/audio"
	"github.com/normanking/facerig/internal/avatar3d"
	"github.com/normanking/facerig/internal/bus"
	"github.com/normanking/facerig/internal/config"
	"github.com/normanking/facerig/internal/lipsync"
	"github.com/normanking/facerig/internal/logging"
	"github.com/normanking/facerig/internal/metrics"
	"github.com/normanking/facerig/internal/model"
	"github.com/normanking/facerig/internal/speech"
	"github.com/normanking/facerig/internal/tts"
	"github.com/normanking/facerig/internal/viewer"
)

// app is what every command needs: configuration and a logger.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
}

func loadApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	logCfg := logging.DefaultConfig()
	if cfg.Logging.Dir != "" {
		logCfg.LogDir = cfg.Logging.Dir
	}
	logCfg.NoFile = !cfg.Logging.File
	logCfg.Console = cfg.Logging.Console
	logCfg.Level = logging.LogLevel(cfg.Logging.Level)
	logCfg.ConsoleOut = cmd.ErrOrStderr()

	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) Close() error {
	return a.logger.Close()
}

// engine is the live stack behind speak and serve.
type engine struct {
	app      *app
	log      zerolog.Logger
	bus      *bus.EventBus
	session  *avatar3d.Session
	pipeline *speech.Pipeline
	viewer   *viewer.Server
	watcher  *model.Watcher

	mu     sync.Mutex
	local  *model.Model
	remote bool
}

type engineOptions struct {
	viewer  bool
	onSpeak func(text string)
}

func newEngine(a *app, opts engineOptions) (*engine, error) {
	cfg := a.cfg
	e := &engine{
		app: a,
		log: a.logger.Component("cli"),
		bus: bus.NewEventBus(),
	}
	e.session = avatar3d.NewSession(cfg.Animation, avatar3d.WithLogger(a.logger.Zerolog()))

	if err := os.MkdirAll(filepath.Join(cfg.Runtime.Dir, "audio"), 0755); err != nil {
		return nil, fmt.Errorf("runtime dir: %w", err)
	}

	synth, err := tts.New(a.logger.Component("tts"), cfg)
	if err != nil {
		return nil, err
	}
	oracle, err := lipsync.New(a.logger.Component("lipsync"), cfg)
	if err != nil {
		return nil, err
	}

	var output audio.Output = audio.ClockOutput{}
	if cfg.Audio.Enabled {
		output = audio.NewOtoOutput(cfg.Audio.BufferSize, cfg.Audio.Volume)
	} else {
		e.log.Info().Msg("Audio disabled, animating against the wall clock")
	}
	player := audio.NewPlayer(output, e.bus, a.logger.Component("audio"))

	e.pipeline = speech.NewPipeline(synth, player, e.session, e.bus, a.logger.Zerolog(), speech.Options{
		Oracle: oracle,
	})

	if cfg.Model.Path != "" {
		if err := e.loadModel(); err != nil {
			return nil, err
		}
	}

	if opts.viewer {
		e.viewer = viewer.NewServer(e, a.logger.Zerolog(), viewer.Options{
			Addr:       cfg.Viewer.Addr,
			SendBuffer: cfg.Viewer.SendBuffer,
			Bus:        e.bus,
			OnSpeak:    opts.onSpeak,
			History:    a.logger.GetHistory,
		})
	}
	return e, nil
}

// loadModel binds the session to the configured model and, when asked,
// rebinds on every change to the file.
func (e *engine) loadModel() error {
	cfg := e.app.cfg
	m, err := model.Load(cfg.Model.Path)
	if err != nil {
		return err
	}
	e.setLocal(m)
	e.bus.Publish(bus.Event{Type: bus.EventTypeModelLoaded, Data: map[string]any{bus.KeyPath: m.Path}})
	e.log.Info().Str("path", m.Path).Int("targets", len(m.MorphTargets())).Msg("Model loaded")

	if !cfg.Model.Watch {
		return nil
	}
	w, err := model.NewWatcher(cfg.Model.Path, cfg.Model.Debounce, e.app.logger.Component("model"), func(m *model.Model, err error) {
		if err != nil {
			e.bus.Publish(bus.Event{Type: bus.EventTypeModelFailed, Data: map[string]any{
				bus.KeyPath:  cfg.Model.Path,
				bus.KeyError: err.Error(),
			}})
			return
		}
		e.setLocal(m)
		e.bus.Publish(bus.Event{Type: bus.EventTypeModelReloaded, Data: map[string]any{bus.KeyPath: m.Path}})
	})
	if err != nil {
		return err
	}
	e.watcher = w
	return nil
}

func (e *engine) setLocal(m *model.Model) {
	e.mu.Lock()
	e.local = m
	remote := e.remote
	e.mu.Unlock()
	if !remote {
		e.session.Reload(m)
	}
}

// Reload implements viewer.Reloader. Connected renderers take over the
// binding; when the last one leaves the session falls back to the local model.
func (e *engine) Reload(rig avatar3d.Rig) {
	e.mu.Lock()
	e.remote = rig != nil
	if rig == nil && e.local != nil {
		rig = e.local
	}
	e.mu.Unlock()
	e.session.Reload(rig)
}

// Frame implements avatar3d.FrameSink.
func (e *engine) Frame(f avatar3d.Frame) {
	metrics.ObserveFrame(f, f.Took)
	if e.viewer != nil {
		e.viewer.Frame(f)
	}
}

// run drives the frame loop, plus the viewer when enabled, until ctx is done.
func (e *engine) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.session.Run(ctx, e.app.cfg.FrameInterval(), e)
	})
	if e.viewer != nil {
		g.Go(func() error {
			return e.viewer.ListenAndServe(ctx)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (e *engine) Close() {
	e.pipeline.Cancel()
	if e.watcher != nil {
		e.watcher.Close()
	}
}
