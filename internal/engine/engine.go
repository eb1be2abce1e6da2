// Package engine is the m4a sound engine core: it owns 16 tracks, up to
// 12 PCM channels and 4 fixed CGB channels, dispatches MIDI-shaped events
// onto them, and renders stereo float audio one call to Process at a
// time.
//
// The engine is single-threaded and cooperative: every exported method
// must be called from the same goroutine, typically the host's audio
// callback. No goroutine is spawned and no lock is taken inside this
// package.
package engine

import (
	"fmt"

	"github.com/IntuitionAmiga/m4aengine/internal/cgb"
	"github.com/IntuitionAmiga/m4aengine/internal/freqtable"
	"github.com/IntuitionAmiga/m4aengine/internal/pcm"
	"github.com/IntuitionAmiga/m4aengine/internal/reverb"
	"github.com/IntuitionAmiga/m4aengine/internal/telemetry"
	"github.com/IntuitionAmiga/m4aengine/internal/track"
	"github.com/IntuitionAmiga/m4aengine/internal/voicegroup"
)

const (
	numTracks      = 16
	maxPCMChannels = 12
	numCGBChannels = 4

	pcmTickRateHz = 13379 // reference rate for fixed-frequency DirectSound
	vblankHz      = 59.7275
)

// Engine is the m4a synthesis core.
type Engine struct {
	sampleRate float32

	tracks [numTracks]track.Track
	pcmCh  [maxPCMChannels]pcm.Channel
	cgbCh  [numCGBChannels]cgb.Channel
	rv     *reverb.Reverb

	voicegroup *voicegroup.Voicegroup

	masterVolume     uint8
	songMasterVolume uint8
	maxPCMChannels   int

	c15 uint8

	analogFilter bool
	lpL, lpR     float32

	samplesPerTick float32
	tickAccum      float32

	tempoI uint32
	tempoC uint32
	tempoD uint32
	tempoU uint32

	log *telemetry.Logger
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger attaches a telemetry logger; passing nil (the default) makes
// every log call a no-op.
func WithLogger(l *telemetry.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New constructs an engine for the given host sample rate. It returns an
// error only if sampleRate is not positive; allocating the reverb delay
// line has no error path.
func New(sampleRate float32, opts ...Option) (*Engine, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("engine: sample rate must be positive, got %v", sampleRate)
	}
	e := &Engine{
		sampleRate:       sampleRate,
		masterVolume:     15,
		songMasterVolume: 127,
		maxPCMChannels:   5,
		c15:              14,
		analogFilter:     true,
		tempoI:           150,
		tempoD:           150,
		tempoU:           256,
	}
	for i := range e.tracks {
		e.tracks[i] = *track.New()
		e.tracks[i].Refresh()
	}
	e.cgbCh = cgb.NewBank()
	cgb.SetSampleRate(float64(sampleRate))

	e.samplesPerTick = sampleRate / vblankHz
	e.rv = reverb.New(float64(sampleRate))

	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// SetVoicegroup installs the instrument table used by subsequent program
// changes and note-ons. It does not affect already-playing notes.
func (e *Engine) SetVoicegroup(vg *voicegroup.Voicegroup) {
	e.voicegroup = vg
	if e.log != nil {
		name := ""
		if vg != nil {
			name = vg.Name
		}
		e.log.Debug("voicegroup installed", "name", name)
	}
}

// SetSongVolume rescales every track's derived volume from its last CC7
// value.
func (e *Engine) SetSongVolume(v uint8) {
	e.songMasterVolume = v
	for i := range e.tracks {
		t := &e.tracks[i]
		t.Volume = uint8(uint32(t.RawVolume) * uint32(v) / 127)
		t.Refresh()
		e.pushTrackVolume(uint8(i))
	}
}

// SetTempoBPM sets the running tempo; values below 1 are clamped to 1.
func (e *Engine) SetTempoBPM(bpm float64) {
	if bpm < 1 {
		bpm = 1
	}
	e.tempoI = uint32(bpm + 0.5)
}

// SetMasterVolume sets the engine-wide volume (0..15), refreshing every
// active channel's derived mix volume.
func (e *Engine) SetMasterVolume(v uint8) {
	if v > 15 {
		v = 15
	}
	e.masterVolume = v
	for i := range e.pcmCh {
		if e.pcmCh[i].On() {
			e.pcmCh[i].SetVolume(e.pcmCh[i].LeftVol, e.pcmCh[i].RightVol, e.masterVolume)
		}
	}
}

// SetMaxPCMChannels bounds how many of the 12 PCM channel slots are used
// by allocation (1..12).
func (e *Engine) SetMaxPCMChannels(n int) {
	if n < 1 {
		n = 1
	}
	if n > maxPCMChannels {
		n = maxPCMChannels
	}
	e.maxPCMChannels = n
}

// SetReverb sets the reverb wet amount (0..127); 0 disables the effect.
func (e *Engine) SetReverb(amount uint8) {
	if amount > 127 {
		amount = 127
	}
	e.rv.Amount = amount
}

// SetAnalogFilter toggles the post-mix one-pole smoothing filter.
func (e *Engine) SetAnalogFilter(on bool) {
	e.analogFilter = on
}

// ProgramChange resolves track to voiceGroup[program] for subsequent
// note-ons. Out-of-range track/program values are ignored.
func (e *Engine) ProgramChange(trackIdx, program uint8) {
	if int(trackIdx) >= numTracks || program >= 128 || e.voicegroup == nil {
		return
	}
	t := &e.tracks[trackIdx]
	t.Program = program
	t.Voice = &e.voicegroup.Voices[program]
}

// CC applies a MIDI control-change value to a track.
func (e *Engine) CC(trackIdx, controller, value uint8) {
	if int(trackIdx) >= numTracks {
		return
	}
	t := &e.tracks[trackIdx]
	switch controller {
	case 0x01:
		t.SetMod(value)
	case 0x07:
		t.RawVolume = value
		t.Volume = uint8(uint32(value) * uint32(e.songMasterVolume) / 127)
		t.Refresh()
		e.pushTrackVolume(trackIdx)
	case 0x0A:
		t.Pan = int8(value) - 64
		t.Refresh()
		e.pushTrackVolume(trackIdx)
	case 0x14:
		t.BendRange = value
		t.Refresh()
		e.pushTrackPitch(trackIdx)
	case 0x15:
		t.LFOSpeed = value
	case 0x16:
		if value < 3 {
			t.ModT = track.ModType(value)
		}
	case 0x18:
		t.Tune = int8(value) - 64
		t.Refresh()
		e.pushTrackPitch(trackIdx)
	case 0x1A:
		t.LFODelay = value
	case 0x78:
		e.AllSoundOff()
	case 0x7B:
		e.AllNotesOff(trackIdx)
	}
}

// PitchBend applies a 14-bit signed MIDI pitch bend value (0 == centre).
func (e *Engine) PitchBend(trackIdx uint8, bend int16) {
	if int(trackIdx) >= numTracks {
		return
	}
	t := &e.tracks[trackIdx]
	t.Bend = int8(bend >> 7)
	t.Refresh()
	e.pushTrackPitch(trackIdx)
}

func (e *Engine) pushTrackVolume(trackIdx uint8) {
	t := &e.tracks[trackIdx]
	for i := range e.pcmCh[:e.maxPCMChannels] {
		c := &e.pcmCh[i]
		if c.On() && c.TrackIndex == trackIdx {
			l, r := t.ChannelVolume(c.Velocity, c.RhythmPan)
			c.SetVolume(l, r, e.masterVolume)
		}
	}
	for i := range e.cgbCh {
		c := &e.cgbCh[i]
		if c.On() && c.TrackIndex == trackIdx {
			l, r := t.ChannelVolume(127, 0)
			c.RefreshVolume(l, r)
		}
	}
}

func (e *Engine) pushTrackPitch(trackIdx uint8) {
	t := &e.tracks[trackIdx]
	for i := range e.pcmCh[:e.maxPCMChannels] {
		c := &e.pcmCh[i]
		if !c.On() || c.TrackIndex != trackIdx || c.Wave == nil {
			continue
		}
		playKey := effectiveKey(c.MidiKey, t.KeyM)
		if c.FixedFreq {
			continue // fixed-frequency voices never retune
		}
		divFreq := (uint32(16777216)/pcmTickRateHz + 1) >> 1
		scale := float64(pcmTickRateHz) / float64(e.sampleRate)
		base := freqtable.MidiKeyToFreq(c.Wave.Freq, playKey, t.PitM)
		c.SetFrequency(uint32(float64(base) * float64(divFreq) * scale))
	}
	for i := range e.cgbCh {
		c := &e.cgbCh[i]
		if !c.On() || c.TrackIndex != trackIdx {
			continue
		}
		playKey := effectiveKey(c.MidiKey, t.KeyM)
		c.FreqReg = freqtable.MidiKeyToCgbFreq(i != 3, playKey, t.PitM)
	}
}

func effectiveKey(midiKey uint8, keyM int8) uint8 {
	k := int16(midiKey) + int16(keyM)
	if k < 0 {
		k = 0
	}
	if k > 127 {
		k = 127
	}
	return uint8(k)
}

// NoteOn resolves the track's current voice (through keysplit/keysplit-all
// indirection), allocates a channel, and starts playback.
func (e *Engine) NoteOn(trackIdx, key, velocity uint8) {
	if int(trackIdx) >= numTracks || key >= 128 {
		return
	}
	t := &e.tracks[trackIdx]
	if t.Voice == nil {
		return
	}
	voice, playKey, rhythmPan, ok := t.Voice.Resolve(key)
	if !ok {
		if e.log != nil {
			e.log.Debug("note-on dropped: unresolved voice", "track", trackIdx, "key", key)
		}
		return
	}
	t.ArmLFODelay()

	if voice.IsPCM() {
		e.startPCM(trackIdx, t, voice, key, playKey, velocity, rhythmPan)
		return
	}
	if idx, ok := voice.IsCGB(); ok {
		e.startCGB(trackIdx, t, voice, idx, key, playKey)
		return
	}
	if e.log != nil {
		e.log.Debug("note-on dropped: voice has no playable kind", "track", trackIdx)
	}
}

func (e *Engine) startPCM(trackIdx uint8, t *track.Track, voice *voicegroup.Voice, midiKey, playKey, velocity uint8, rhythmPan int8) {
	if voice.Wave == nil {
		if e.log != nil {
			e.log.Debug("note-on dropped: PCM voice has no wave", "track", trackIdx)
		}
		return
	}
	slot := e.allocatePCM(t.Priority, trackIdx)
	if slot < 0 {
		return
	}
	c := &e.pcmCh[slot]

	var freq uint32
	if voice.NoResample {
		scale := float64(pcmTickRateHz) / float64(e.sampleRate)
		freq = uint32(0x800000 * scale)
	} else {
		divFreq := (uint32(16777216)/pcmTickRateHz + 1) >> 1
		scale := float64(pcmTickRateHz) / float64(e.sampleRate)
		base := freqtable.MidiKeyToFreq(voice.Wave.Freq, playKey, t.PitM)
		freq = uint32(float64(base) * float64(divFreq) * scale)
	}

	left, right := t.ChannelVolume(velocity, rhythmPan)
	c.RhythmPan = rhythmPan
	c.Start(voice.Wave, voice.NoResample, freq, voice.ADSR, left, right, midiKey, velocity, t.Priority, trackIdx, e.masterVolume)
}

func (e *Engine) allocatePCM(incomingPriority, incomingTrack uint8) int {
	n := e.maxPCMChannels
	for i := 0; i < n; i++ {
		if !e.pcmCh[i].On() {
			return i
		}
	}
	bestStop := -1
	for i := 0; i < n; i++ {
		if e.pcmCh[i].InRelease() {
			if bestStop < 0 || e.pcmCh[i].Priority < e.pcmCh[bestStop].Priority ||
				(e.pcmCh[i].Priority == e.pcmCh[bestStop].Priority && e.pcmCh[i].TrackIndex > e.pcmCh[bestStop].TrackIndex) {
				bestStop = i
			}
		}
	}
	if bestStop >= 0 {
		return bestStop
	}
	victim := 0
	for i := 1; i < n; i++ {
		if e.pcmCh[i].Priority < e.pcmCh[victim].Priority ||
			(e.pcmCh[i].Priority == e.pcmCh[victim].Priority && e.pcmCh[i].TrackIndex > e.pcmCh[victim].TrackIndex) {
			victim = i
		}
	}
	if incomingPriority >= e.pcmCh[victim].Priority {
		return victim
	}
	return -1
}

func (e *Engine) startCGB(trackIdx uint8, t *track.Track, voice *voicegroup.Voice, idx int, midiKey, playKey uint8) {
	c := &e.cgbCh[idx]
	if c.On() {
		incomingHigher := t.Priority > c.Priority || (t.Priority == c.Priority && trackIdx <= c.TrackIndex)
		if !incomingHigher {
			return
		}
	}

	squareOrWave := idx != 3
	freq := freqtable.MidiKeyToCgbFreq(squareOrWave, playKey, t.PitM)

	sweep := voice.Sweep
	if idx == 0 && sweep&0x77 == 0 {
		sweep = 0x08
	}

	left, right := t.ChannelVolume(127, 0)
	c.Duty = voice.Duty
	c.Wave = voice.WaveTable.SamplesOrNil()
	c.Sweep = sweep
	sevenBit := idx == 3 && voice.NoiseMode7Bit

	c.Start(freq, voice.ADSR.Attack, voice.ADSR.Decay, voice.ADSR.Sustain, voice.ADSR.Release, left, right, midiKey, t.Priority, trackIdx, sevenBit)
}

// NoteOff marks every active channel owned by (track, key) for release.
func (e *Engine) NoteOff(trackIdx, key uint8) {
	if int(trackIdx) >= numTracks {
		return
	}
	for i := range e.pcmCh[:e.maxPCMChannels] {
		c := &e.pcmCh[i]
		if c.On() && c.TrackIndex == trackIdx && c.MidiKey == key {
			c.Stop()
		}
	}
	for i := range e.cgbCh {
		c := &e.cgbCh[i]
		if c.On() && c.TrackIndex == trackIdx && c.MidiKey == key {
			c.Stop()
		}
	}
}

// AllNotesOff releases every active channel owned by track.
func (e *Engine) AllNotesOff(trackIdx uint8) {
	if int(trackIdx) >= numTracks {
		return
	}
	for i := range e.pcmCh {
		if e.pcmCh[i].On() && e.pcmCh[i].TrackIndex == trackIdx {
			e.pcmCh[i].Stop()
		}
	}
	for i := range e.cgbCh {
		if e.cgbCh[i].On() && e.cgbCh[i].TrackIndex == trackIdx {
			e.cgbCh[i].Stop()
		}
	}
}

// AllSoundOff immediately silences every channel, bypassing release.
func (e *Engine) AllSoundOff() {
	e.pcmCh = [maxPCMChannels]pcm.Channel{}
	e.cgbCh = cgb.NewBank()
}

// RefreshVoices re-derives every track's volume/pitch and repushes the
// result to currently active channels; useful after bulk voicegroup or
// config changes.
func (e *Engine) RefreshVoices() {
	for i := range e.tracks {
		e.tracks[i].Refresh()
		e.pushTrackVolume(uint8(i))
	}
}

// Process renders len(outL) stereo sample frames. outL and outR must have
// equal length; a mismatch is a caller bug and panics rather than being
// silently tolerated.
func (e *Engine) Process(outL, outR []float32) {
	if len(outL) != len(outR) {
		panic("engine: Process: outL and outR must have equal length")
	}
	for i := range outL {
		e.tickAccum++
		if e.tickAccum >= e.samplesPerTick {
			e.tickAccum -= e.samplesPerTick
			e.tick()
		}

		var mixL, mixR int32
		for c := range e.pcmCh[:e.maxPCMChannels] {
			e.pcmCh[c].Mix(&mixL, &mixR)
		}
		e.rv.Process(&mixL, &mixR)
		for c := range e.cgbCh {
			e.cgbCh[c].Mix(&mixL, &mixR)
		}

		sampleL := float32(mixL) / 256.0
		sampleR := float32(mixR) / 256.0

		if e.analogFilter {
			e.lpL = e.lpL*0.6 + sampleL*0.4
			e.lpR = e.lpR*0.6 + sampleR*0.4
			sampleL, sampleR = e.lpL, e.lpR
		}

		outL[i] = sampleL
		outR[i] = sampleR
	}
}

func (e *Engine) tick() {
	if e.c15 == 0 {
		e.c15 = 14
	} else {
		e.c15--
	}

	for i := range e.pcmCh[:e.maxPCMChannels] {
		c := &e.pcmCh[i]
		if !c.On() {
			continue
		}
		if c.TickGate() {
			c.Stop()
		}
		c.TickEnvelope(e.masterVolume)
	}
	for i := range e.cgbCh {
		e.cgbCh[i].TickEnvelope(e.c15)
	}

	e.tempoC += e.tempoI
	for e.tempoC >= e.tempoD {
		e.tempoC -= e.tempoD
		e.tickLFO()
	}
}

func (e *Engine) tickLFO() {
	for i := range e.tracks {
		t := &e.tracks[i]
		if t.TickLFO() {
			t.Refresh()
			e.pushTrackVolume(uint8(i))
			e.pushTrackPitch(uint8(i))
		}
	}
}
