package pcm

import (
	"testing"

	"github.com/IntuitionAmiga/m4aengine/internal/voicegroup"
)

func newLoopingWave() *voicegroup.WaveData {
	samples := make([]int8, 9)
	for i := range samples[:8] {
		samples[i] = int8(i * 10)
	}
	samples[8] = samples[7]
	return &voicegroup.WaveData{
		Loop:      true,
		Freq:      1 << 20,
		LoopStart: 2,
		Size:      8,
		Samples:   samples,
	}
}

func TestStartThenOn(t *testing.T) {
	var c Channel
	wav := newLoopingWave()
	c.Start(wav, false, 1<<20, voicegroup.ADSR{Attack: 50, Decay: 10, Sustain: 100, Release: 5}, 200, 200, 60, 100, 5, 0, 15)
	if !c.On() {
		t.Fatal("channel not On() immediately after Start")
	}
}

func TestEnvelopeReachesSustain(t *testing.T) {
	var c Channel
	wav := newLoopingWave()
	c.Start(wav, false, 1<<20, voicegroup.ADSR{Attack: 255, Decay: 255, Sustain: 100, Release: 5}, 200, 200, 60, 100, 5, 0, 15)
	// Decay 255 lowers the level by one step per tick (255 -> 254 -> ...),
	// so reaching sustain 100 takes about 156 ticks.
	for i := 0; i < 200; i++ {
		c.TickEnvelope(15)
	}
	if c.st&envMask != envSustain {
		t.Fatalf("expected envelope to settle at sustain, got phase %d", c.st&envMask)
	}
}

func TestStopThenReleaseKillsChannel(t *testing.T) {
	var c Channel
	wav := newLoopingWave()
	c.Start(wav, false, 1<<20, voicegroup.ADSR{Attack: 255, Decay: 255, Sustain: 0, Release: 0}, 200, 200, 60, 100, 5, 0, 15)
	for i := 0; i < 5 && c.On(); i++ {
		c.TickEnvelope(15)
	}
	c.Stop()
	for i := 0; i < 20 && c.On(); i++ {
		c.TickEnvelope(15)
	}
	if c.On() {
		t.Fatal("channel still on after full release with zero sustain/release")
	}
}

func TestMixAdvancesPositionAndLoops(t *testing.T) {
	var c Channel
	wav := newLoopingWave()
	c.Start(wav, false, 3<<21, voicegroup.ADSR{Attack: 255, Decay: 0, Sustain: 255, Release: 5}, 255, 255, 60, 127, 5, 0, 15)
	c.TickEnvelope(15) // fire the start-edge bump so env/envVol are non-zero

	var mixL, mixR int32
	for i := 0; i < 40; i++ {
		c.Mix(&mixL, &mixR)
	}
	if !c.On() {
		t.Fatal("looping channel died during Mix, should loop forever")
	}
}

func TestMixKillsNonLoopingAtEnd(t *testing.T) {
	var c Channel
	wav := newLoopingWave()
	wav.Loop = false
	c.Start(wav, false, 1<<23, voicegroup.ADSR{Attack: 255, Decay: 0, Sustain: 255, Release: 5}, 255, 255, 60, 127, 5, 0, 15)
	c.TickEnvelope(15)

	var mixL, mixR int32
	for i := 0; i < 20 && c.On(); i++ {
		c.Mix(&mixL, &mixR)
	}
	if c.On() {
		t.Fatal("non-looping channel should have died after exhausting its samples")
	}
}

func TestGateTimeFiresOnce(t *testing.T) {
	var c Channel
	c.GateTime = 3
	if c.TickGate() {
		t.Fatal("gate fired too early")
	}
	if c.TickGate() {
		t.Fatal("gate fired too early")
	}
	if !c.TickGate() {
		t.Fatal("gate should have fired on the third tick")
	}
	if c.TickGate() {
		t.Fatal("gate should not refire once GateTime reaches 0")
	}
}
