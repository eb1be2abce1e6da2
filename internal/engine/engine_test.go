package engine

import (
	"testing"

	"github.com/IntuitionAmiga/m4aengine/internal/freqtable"
	"github.com/IntuitionAmiga/m4aengine/internal/voicegroup"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(44100)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func squareVoicegroup() *voicegroup.Voicegroup {
	vg := &voicegroup.Voicegroup{}
	vg.Voices[0] = voicegroup.Voice{
		Kind: voicegroup.KindSquare1,
		Key:  60,
		ADSR: voicegroup.ADSR{Attack: 15, Decay: 15, Sustain: 15, Release: 8},
		Duty: 2,
	}
	return vg
}

func pcmVoicegroup() *voicegroup.Voicegroup {
	samples := make([]int8, 17)
	for i := range samples[:16] {
		samples[i] = int8(i*15 - 120)
	}
	samples[16] = samples[15]
	wav := &voicegroup.WaveData{
		Loop:      true,
		Freq:      1 << 20,
		LoopStart: 4,
		Size:      16,
		Samples:   samples,
	}
	vg := &voicegroup.Voicegroup{}
	vg.Voices[0] = voicegroup.Voice{
		Kind: voicegroup.KindDirectSound,
		Key:  60,
		ADSR: voicegroup.ADSR{Attack: 255, Decay: 40, Sustain: 200, Release: 20},
		Wave: wav,
	}
	return vg
}

// Scenario 1: a square-wave channel produces non-silent, non-NaN output.
func TestSquareChannelProducesSound(t *testing.T) {
	e := newTestEngine(t)
	e.SetVoicegroup(squareVoicegroup())
	e.ProgramChange(0, 0)
	e.CC(0, 0x07, 120)
	e.NoteOn(0, 60, 100)

	outL := make([]float32, 2000)
	outR := make([]float32, 2000)
	e.Process(outL, outR)

	var energy float64
	for i := range outL {
		energy += float64(outL[i]*outL[i] + outR[i]*outR[i])
	}
	if energy == 0 {
		t.Fatal("expected non-zero output energy from a sounding square channel")
	}
}

// Scenario 2: with reverb enabled, the mono sum of a PCM note persists
// audibly past the note's own release.
func TestReverbTailOutlastsRelease(t *testing.T) {
	e := newTestEngine(t)
	e.SetVoicegroup(pcmVoicegroup())
	e.SetReverb(100)
	e.ProgramChange(0, 0)
	e.NoteOn(0, 60, 127)

	outL := make([]float32, 4000)
	outR := make([]float32, 4000)
	e.Process(outL, outR)
	e.NoteOff(0, 60)

	// Render past the channel's own release, then measure a further window
	// in which only the reverb tail remains.
	relL := make([]float32, 4000)
	relR := make([]float32, 4000)
	e.Process(relL, relR)
	if e.pcmCh[0].On() {
		t.Fatal("PCM channel should have finished its release")
	}
	tailL := make([]float32, 1000)
	tailR := make([]float32, 1000)
	e.Process(tailL, tailR)

	var tailEnergy float64
	for i := range tailL {
		tailEnergy += float64(tailL[i]*tailL[i] + tailR[i]*tailR[i])
	}
	if tailEnergy == 0 {
		t.Fatal("expected reverb to leave audible energy after the source note released")
	}
}

// Scenario 3: a looping PCM sample keeps producing sound indefinitely.
func TestLoopingSampleNeverDies(t *testing.T) {
	e := newTestEngine(t)
	e.SetVoicegroup(pcmVoicegroup())
	e.ProgramChange(0, 0)
	e.NoteOn(0, 60, 127)

	outL := make([]float32, 44100)
	outR := make([]float32, 44100)
	e.Process(outL, outR)

	if e.pcmCh[0].On() == false {
		t.Fatal("looping sample should still be on after one second with no NoteOff")
	}
}

// Scenario 4: swapping the voicegroup mid-note does not affect the
// already-playing channel, only subsequent program changes.
func TestVoicegroupSwapIsAtomicForPlayingNotes(t *testing.T) {
	e := newTestEngine(t)
	vg1 := pcmVoicegroup()
	e.SetVoicegroup(vg1)
	e.ProgramChange(0, 0)
	e.NoteOn(0, 60, 127)

	vg2 := squareVoicegroup()
	e.SetVoicegroup(vg2)

	if e.pcmCh[0].Wave != vg1.Voices[0].Wave {
		t.Fatal("swapping voicegroup should not retroactively change an already-playing channel's wave")
	}
}

// Scenario 5: a keysplit-all drumkit voice plays its sub-voice at the
// sub-voice's own pitch, not the incoming MIDI key.
func TestKeysplitAllDrumkit(t *testing.T) {
	e := newTestEngine(t)
	sub := squareVoicegroup()
	vg := &voicegroup.Voicegroup{}
	vg.Voices[0] = voicegroup.Voice{Kind: voicegroup.KindKeysplitAll, SubGroup: sub}
	e.SetVoicegroup(vg)
	e.ProgramChange(0, 0)

	e.NoteOn(0, 36, 127) // sub.Voices[36] is zero-value: resolves as a DirectSound voice with no Wave, dropped
	if e.pcmCh[0].On() || e.cgbCh[0].On() {
		t.Fatal("zero-value sub-voice at key 36 has no wave to play; should not start any channel")
	}

	sub.Voices[36] = voicegroup.Voice{Kind: voicegroup.KindSquare1, Key: 81, ADSR: voicegroup.ADSR{Attack: 15, Decay: 1, Sustain: 15, Release: 5}}
	e.NoteOn(0, 36, 127)
	if !e.cgbCh[0].On() {
		t.Fatal("expected keysplit-all to start the resolved square-1 sub-voice")
	}
	if want := freqtable.MidiKeyToCgbFreq(true, 81, e.tracks[0].PitM); e.cgbCh[0].FreqReg != want {
		t.Fatalf("keysplit-all should play at the sub-voice's own key (81): freq register %d, want %d", e.cgbCh[0].FreqReg, want)
	}
}

// Scenario 6: tempo scaling changes how many LFO ticks fire per unit time.
func TestTempoScalesLFORate(t *testing.T) {
	e := newTestEngine(t)
	e.SetVoicegroup(squareVoicegroup())
	e.ProgramChange(0, 0)
	e.tracks[0].LFOSpeed = 127
	e.tracks[0].Mod = 127
	e.NoteOn(0, 60, 100)

	e.SetTempoBPM(300) // double the default 150
	modAtDoubleTempo := e.tracks[0].ModM
	outL := make([]float32, 1000)
	outR := make([]float32, 1000)
	e.Process(outL, outR)
	fastDelta := e.tracks[0].ModM - modAtDoubleTempo

	e.SetTempoBPM(1)
	modAtSlowTempo := e.tracks[0].ModM
	e.Process(outL, outR)
	slowDelta := e.tracks[0].ModM - modAtSlowTempo

	if abs16(fastDelta) < abs16(slowDelta) {
		t.Fatalf("higher tempo should move the LFO phase at least as fast: fastDelta=%d slowDelta=%d", fastDelta, slowDelta)
	}
}

func abs16(v int16) int16 {
	if v < 0 {
		return -v
	}
	return v
}

func TestProcessPanicsOnMismatchedLengths(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Process to panic on mismatched buffer lengths")
		}
	}()
	e := newTestEngine(t)
	e.Process(make([]float32, 10), make([]float32, 5))
}

func TestAllSoundOffSilencesEverything(t *testing.T) {
	e := newTestEngine(t)
	e.SetVoicegroup(squareVoicegroup())
	e.ProgramChange(0, 0)
	e.NoteOn(0, 60, 100)
	e.AllSoundOff()

	outL := make([]float32, 100)
	outR := make([]float32, 100)
	e.Process(outL, outR)
	for i := range outL {
		if outL[i] != 0 || outR[i] != 0 {
			t.Fatalf("expected silence after AllSoundOff, got non-zero sample at %d", i)
		}
	}
}

func TestSongVolumeIdempotent(t *testing.T) {
	e := newTestEngine(t)
	e.SetSongVolume(64)
	first := e.tracks[0].Volume
	e.SetSongVolume(64)
	if e.tracks[0].Volume != first {
		t.Fatalf("SetSongVolume(64) twice should be idempotent, got %d then %d", first, e.tracks[0].Volume)
	}
}
