// Package track holds the per-MIDI-channel state the engine mutates in
// response to program changes, controllers, pitch bend and the
// modulation LFO, plus the derivation of the per-frame volume/pitch
// values every active channel reads.
package track

import "github.com/IntuitionAmiga/m4aengine/internal/voicegroup"

// ModType selects what the LFO output (ModM) is applied to.
type ModType uint8

const (
	ModVibrato ModType = iota
	ModTremolo
	ModAutoPan
)

// Track is one of the engine's 16 MIDI channels.
type Track struct {
	Program uint8
	Voice   *voicegroup.Voice

	RawVolume uint8 // last CC7 value, 0..127
	Volume    uint8 // RawVolume * songMasterVolume / 127
	VolX      uint8 // external volume multiplier, default 64

	Pan  int8 // -64..63, from CC10
	PanX int8 // external pan adjust

	Bend      int8 // -64..63, derived from 14-bit MIDI pitch bend
	BendRange uint8 // semitones, default 2

	LFOSpeed    uint8
	LFODelay    uint8
	lfoDelayC   uint8
	lfoSpeedC   uint8
	Mod         uint8
	ModT        ModType
	ModM        int16

	KeyShift  int8
	KeyShiftX int8
	Tune      int8
	PitX      int8

	Priority uint8

	// Derived by Refresh(), consumed by channels.
	VolMR uint8
	VolML uint8
	KeyM  int8
	PitM  uint8
}

// New returns a Track with the m4a engine's documented neutral defaults.
func New() *Track {
	return &Track{
		BendRange: 2,
		VolX:      64,
		RawVolume: 127,
		Volume:    127,
		LFOSpeed:  22,
	}
}

func clamp8(v int32, lo, hi int32) int8 {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return int8(v)
}

// Refresh recomputes VolMR/VolML/KeyM/PitM from the track's current
// volume, pan, bend and modulation state. Callers must call this after
// any field it reads changes, and must push the resulting values into
// every channel this track currently owns.
func (t *Track) Refresh() {
	x := int32(t.Volume) * int32(t.VolX) >> 5
	if t.ModT == ModTremolo {
		x = x * (int32(t.ModM) + 128) >> 7
	}

	y := int32(t.Pan)*2 + int32(t.PanX)
	if t.ModT == ModAutoPan {
		y += int32(t.ModM)
	}
	if y < -128 {
		y = -128
	}
	if y > 127 {
		y = 127
	}

	t.VolMR = uint8(clamp8((y+128)*x>>8, 0, 255))
	t.VolML = uint8(clamp8((127-y)*x>>8, 0, 255))

	bendTotal := int32(t.Bend) * int32(t.BendRange)
	pitchVal := (int32(t.Tune)+bendTotal)*4 + int32(t.KeyShift)*256 + int32(t.KeyShiftX)*256 + int32(t.PitX)
	if t.ModT == ModVibrato {
		pitchVal += 16 * int32(t.ModM)
	}
	t.KeyM = int8(pitchVal >> 8)
	t.PitM = uint8(pitchVal)
}

// ChannelVolume derives the per-side 8-bit volumes a channel owned by this
// track should mix at, given its velocity and rhythm pan offset.
func (t *Track) ChannelVolume(velocity uint8, rhythmPan int8) (left, right uint8) {
	panR := 128 + int32(rhythmPan)
	panL := 127 - int32(rhythmPan)
	r := panR * int32(velocity) * int32(t.VolMR) >> 14
	l := panL * int32(velocity) * int32(t.VolML) >> 14
	if r > 255 {
		r = 255
	}
	if l > 255 {
		l = 255
	}
	return uint8(l), uint8(r)
}

// TickLFO advances the modulation LFO by one engine tick. It returns true
// when ModM changed and the caller must repush volume/pitch to every
// active channel this track owns.
func (t *Track) TickLFO() bool {
	if t.LFOSpeed == 0 || t.Mod == 0 {
		return false
	}
	if t.lfoDelayC > 0 {
		t.lfoDelayC--
		return false
	}
	t.lfoSpeedC += t.LFOSpeed
	phase := t.lfoSpeedC
	var val int16
	if int8(phase-0x40) < 0 {
		val = int16(phase)
	} else {
		val = int16(0x80) - int16(phase)
	}
	newModM := int16(t.Mod) * val >> 6
	if newModM != t.ModM {
		t.ModM = newModM
		return true
	}
	return false
}

// SetMod handles CC1 (modulation depth): setting depth to 0 resets the
// LFO phase and output so a later non-zero depth restarts cleanly.
func (t *Track) SetMod(depth uint8) {
	t.Mod = depth
	if depth == 0 {
		t.lfoSpeedC = 0
		t.lfoDelayC = t.LFODelay
		t.ModM = 0
	}
}

// ArmLFODelay resets the LFO delay counter; the engine calls it whenever a
// note starts on this track.
func (t *Track) ArmLFODelay() {
	t.lfoDelayC = t.LFODelay
}
