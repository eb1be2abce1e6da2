// Command m4apreview plays a short hardcoded note sequence through the
// engine live, using oto for audio output. It exists to hand-verify the
// engine produces sound; it is not a MIDI file player.
package main

import (
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/urfave/cli/v2"

	"github.com/IntuitionAmiga/m4aengine/internal/config"
	"github.com/IntuitionAmiga/m4aengine/internal/engine"
	"github.com/IntuitionAmiga/m4aengine/internal/midi"
	"github.com/IntuitionAmiga/m4aengine/internal/telemetry"
	"github.com/IntuitionAmiga/m4aengine/internal/voicegroup"
)

// engineSource adapts the engine + scheduler pair into an io.Reader oto
// can pull interleaved stereo float32 frames from, mirroring the
// pre-allocated-buffer pattern this engine's audio backend uses.
type engineSource struct {
	mu    sync.Mutex
	eng   *engine.Engine
	sched *midi.Scheduler

	bufL, bufR []float32
}

func (s *engineSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(p) / 8 // stereo float32LE: 4 bytes/channel
	if frames == 0 {
		return 0, nil
	}
	if cap(s.bufL) < frames {
		s.bufL = make([]float32, frames)
		s.bufR = make([]float32, frames)
	}
	bufL, bufR := s.bufL[:frames], s.bufR[:frames]

	s.sched.RenderThrough(s.eng, bufL, bufR)

	for i := 0; i < frames; i++ {
		putFloat32LE(p[i*8:], bufL[i])
		putFloat32LE(p[i*8+4:], bufR[i])
	}
	return frames * 8, nil
}

func putFloat32LE(b []byte, f float32) {
	bits := math.Float32bits(f)
	b[0] = byte(bits)
	b[1] = byte(bits >> 8)
	b[2] = byte(bits >> 16)
	b[3] = byte(bits >> 24)
}

func main() {
	app := &cli.App{
		Name:  "m4apreview",
		Usage: "play a short demo sequence through the m4a engine core",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to an engine defaults YAML file"},
			&cli.IntFlag{Name: "seconds", Value: 4, Usage: "how long to play before exiting"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log := telemetry.New("m4apreview")

	defaults := config.Default()
	if p := c.String("config"); p != "" {
		d, err := config.Load(p)
		if err != nil {
			return err
		}
		defaults = d
	}

	eng, err := engine.New(defaults.SampleRate, engine.WithLogger(log))
	if err != nil {
		return fmt.Errorf("construct engine: %w", err)
	}
	eng.SetMaxPCMChannels(defaults.MaxPCMChannels)
	eng.SetReverb(defaults.ReverbAmount)
	eng.SetAnalogFilter(defaults.AnalogFilter)
	eng.SetVoicegroup(voicegroup.NewDemo())

	events := midi.DemoSequence(float64(defaults.SampleRate))
	sched := midi.NewScheduler(events)

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(defaults.SampleRate),
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4,
	})
	if err != nil {
		return fmt.Errorf("open audio output: %w", err)
	}
	<-ready

	src := &engineSource{eng: eng, sched: sched}
	player := ctx.NewPlayer(src)
	player.Play()
	defer player.Close()

	log.Debug("playing demo sequence", "seconds", c.Int("seconds"))
	time.Sleep(time.Duration(c.Int("seconds")) * time.Second)
	return nil
}
