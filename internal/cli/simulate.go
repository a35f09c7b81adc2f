package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/normanking/facerig/internal/avatar3d"
	"github.com/normanking/facerig/internal/lipsync"
	"github.com/normanking/facerig/internal/model"
	"github.com/normanking/facerig/internal/viewer"
)

type simOptions struct {
	cues     string
	fps      int
	seed     int64
	model    string
	stopAt   float64
	tail     float64
	format   string
	channels []string
}

func newSimulateCommand() *cobra.Command {
	var opts simOptions
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a cue track offline and print every frame",
		Long: `Run a cue track through the engine on a manual clock and print one row
per frame. Output is fully determined by the cue file, the seed and the
configuration, so runs can be diffed.

Without --model the engine drives a virtual rig exposing every channel.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			log := a.logger.Component("simulate")
			started := time.Now()
			frames, err := simulate(cmd.Context(), cmd.OutOrStdout(), a.cfg.Animation, opts)
			if err != nil {
				return err
			}
			log.Debug().Int("frames", frames).Dur("took", time.Since(started)).Msg("Simulation finished")
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.cues, "cues", "", "Cue JSON (Rhubarb output or any normalized cue document)")
	cmd.Flags().IntVar(&opts.fps, "fps", 60, "Frames per second")
	cmd.Flags().Int64Var(&opts.seed, "seed", 1, "Seed for blinks, saccades and gestures")
	cmd.Flags().StringVar(&opts.model, "model", "", "glTF/GLB model to bind instead of the virtual rig")
	cmd.Flags().Float64Var(&opts.stopAt, "stop-at", -1, "Stop the utterance at this many seconds")
	cmd.Flags().Float64Var(&opts.tail, "tail", 0.5, "Seconds to keep ticking after the track ends")
	cmd.Flags().StringVar(&opts.format, "format", "csv", "Output format: csv or json")
	cmd.Flags().StringSliceVar(&opts.channels, "channels", nil, "Channels to print (default: every bound channel)")
	_ = cmd.MarkFlagRequired("cues")
	return cmd
}

// simRow is one line of simulate output.
type simRow struct {
	T        float64            `json:"t"`
	Elapsed  float64            `json:"elapsed"`
	Playing  bool               `json:"playing"`
	Symbol   string             `json:"symbol"`
	Openness float32            `json:"openness"`
	Gesture  string             `json:"gesture,omitempty"`
	Head     *avatar3d.HeadPose `json:"head,omitempty"`
	Weights  map[string]float32 `json:"weights"`
}

func simulate(ctx context.Context, w io.Writer, cfg avatar3d.Config, opts simOptions) (int, error) {
	if opts.fps <= 0 {
		return 0, fmt.Errorf("fps must be positive, got %d", opts.fps)
	}
	oracle := &lipsync.FileOracle{Path: opts.cues}
	track, err := oracle.Cues(ctx, "")
	if err != nil {
		return 0, err
	}

	var rig avatar3d.Rig
	if opts.model != "" {
		m, err := model.Load(opts.model)
		if err != nil {
			return 0, err
		}
		rig = m
	} else {
		rig = viewer.NewRemoteRig(avatar3d.ChannelNames[:], nil)
	}

	columns, err := simColumns(rig, cfg.Head, opts.channels)
	if err != nil {
		return 0, err
	}

	clock := avatar3d.NewManualTime(time.Unix(0, 0))
	session := avatar3d.NewSession(cfg,
		avatar3d.WithRand(avatar3d.NewRand(opts.seed)),
		avatar3d.WithTimeSource(clock),
	)
	session.Reload(rig)
	session.Start(track, clock.Now())

	end := track.Duration()
	if opts.stopAt >= 0 && opts.stopAt < end {
		end = opts.stopAt
	}
	dt := 1 / float64(opts.fps)
	n := int(math.Ceil((end + math.Max(opts.tail, 0)) / dt))

	out := newSimWriter(w, opts.format, columns)
	if out == nil {
		return 0, fmt.Errorf("unknown format %q (want csv or json)", opts.format)
	}
	if err := out.header(); err != nil {
		return 0, err
	}

	stopped := false
	for i := 1; i <= n; i++ {
		if opts.stopAt >= 0 && !stopped && float64(i-1)*dt >= opts.stopAt {
			session.Stop()
			stopped = true
		}
		f := session.Tick(dt)
		if err := out.row(f); err != nil {
			return i, err
		}
	}
	return n, out.flush()
}

// simColumns resolves --channels, or lists what the rig binds.
func simColumns(rig avatar3d.Rig, head avatar3d.HeadConfig, names []string) ([]avatar3d.Channel, error) {
	if len(names) == 0 {
		return avatar3d.Bind(rig, head).Bound(), nil
	}
	var out []avatar3d.Channel
	for _, name := range names {
		c, ok := avatar3d.ChannelByName(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown channel %q", name)
		}
		out = append(out, c)
	}
	return out, nil
}

type simWriter struct {
	columns []avatar3d.Channel
	csv     *csv.Writer
	json    *json.Encoder
}

func newSimWriter(w io.Writer, format string, columns []avatar3d.Channel) *simWriter {
	switch format {
	case "csv":
		return &simWriter{columns: columns, csv: csv.NewWriter(w)}
	case "json":
		return &simWriter{columns: columns, json: json.NewEncoder(w)}
	}
	return nil
}

func (s *simWriter) header() error {
	if s.csv == nil {
		return nil
	}
	record := []string{"t", "elapsed", "playing", "symbol", "openness"}
	for _, c := range s.columns {
		record = append(record, c.String())
	}
	return s.csv.Write(record)
}

func (s *simWriter) row(f avatar3d.Frame) error {
	if s.json != nil {
		r := simRow{
			T:        f.Time,
			Elapsed:  f.Elapsed,
			Playing:  f.Playing,
			Symbol:   string(f.Symbol),
			Openness: f.Openness,
			Weights:  make(map[string]float32, len(s.columns)),
		}
		if f.Gesture != avatar3d.GestureNone {
			r.Gesture = f.Gesture.String()
		}
		if f.Head != (avatar3d.HeadPose{}) {
			head := f.Head
			r.Head = &head
		}
		for _, c := range s.columns {
			r.Weights[c.String()] = f.Weights.Get(c)
		}
		return s.json.Encode(r)
	}

	record := []string{
		strconv.FormatFloat(f.Time, 'f', 4, 64),
		strconv.FormatFloat(f.Elapsed, 'f', 4, 64),
		strconv.FormatBool(f.Playing),
		string(f.Symbol),
		strconv.FormatFloat(float64(f.Openness), 'f', 4, 32),
	}
	for _, c := range s.columns {
		record = append(record, strconv.FormatFloat(float64(f.Weights.Get(c)), 'f', 4, 32))
	}
	return s.csv.Write(record)
}

func (s *simWriter) flush() error {
	if s.csv == nil {
		return nil
	}
	s.csv.Flush()
	return s.csv.Error()
}
