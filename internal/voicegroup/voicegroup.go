// Package voicegroup holds the instrument and wave-data types the engine
// consumes. Parsing project sources into these types happens outside this
// module; this package only defines the shapes and the tagged voice kind
// the engine switches on.
package voicegroup

// WaveData is a single PCM sample bank borrowed by at most one active PCM
// channel at a time. Samples carries one trailing guard byte equal to the
// final sample so a channel's interpolator can always read one past the
// last real sample without bounds-checking every step.
type WaveData struct {
	Type      uint8
	Loop      bool
	Freq      uint32 // fixed-point: sampleRate*1024 at middle C
	LoopStart uint32
	Size      uint32
	Samples   []int8 // len == Size+1, last entry duplicates Samples[Size-1]
}

// Kind tags which synthesis family a Voice belongs to. The wire byte is
// classified into a Kind once, at this package's boundary; nothing
// downstream branches on the raw byte again.
type Kind uint8

const (
	KindDirectSound Kind = iota
	KindSquare1
	KindSquare2
	KindWave
	KindNoise
	KindKeysplit
	KindKeysplitAll
)

// ADSR carries the four envelope bytes shared by every voice family,
// interpreted according to Kind (0-255 range for PCM, 0-15 for CGB).
type ADSR struct {
	Attack  uint8
	Decay   uint8
	Sustain uint8
	Release uint8
}

// Voice is one of the 128 entries of a Voicegroup. Only the fields
// relevant to Kind are meaningful; the rest are zero.
type Voice struct {
	Kind Kind
	Key  uint8 // natural pitch for DirectSound/CGB; ignored by Keysplit*
	ADSR ADSR

	NoResample bool // type bit 0x08: play at Wave's native rate, no key tracking
	IsCry      bool // type 0x20/0x30: fixed-ADSR, never resampled by velocity curve
	CryReverse bool

	Wave *WaveData // DirectSound / Cry

	Sweep    uint8 // square channels: NR10-style sweep byte
	Duty     uint8 // square channels: initial duty index 0..3
	WaveTable *WaveData // programmable wave channel: 32-nibble table reused as samples
	NoiseMode7Bit bool

	PanSweep uint8 // keysplit-all: (PanSweep&0x80) selects fixed rhythm pan

	SubGroup    *Voicegroup // Keysplit / KeysplitAll
	SplitTable  *[128]uint8 // Keysplit: MIDI key -> sub-voice index
}

// Voicegroup is the fixed 128-entry instrument table addressed by MIDI
// program number.
type Voicegroup struct {
	Name   string
	Voices [128]Voice
}

// Resolve walks the keysplit / keysplit-all indirection for a given raw
// MIDI key and returns the concrete playable voice plus the key that
// should actually be used to compute pitch. Nested keysplits are rejected
// by returning ok=false, matching the engine's drop-on-resolution-failure
// policy.
func (v *Voice) Resolve(key uint8) (voice *Voice, playKey uint8, rhythmPan int8, ok bool) {
	switch v.Kind {
	case KindKeysplitAll:
		if v.SubGroup == nil || int(key) >= len(v.SubGroup.Voices) {
			return nil, 0, 0, false
		}
		sub := &v.SubGroup.Voices[key]
		if sub.Kind == KindKeysplit || sub.Kind == KindKeysplitAll {
			return nil, 0, 0, false
		}
		pan := int8(0)
		if v.PanSweep&0x80 != 0 {
			pan = int8(v.PanSweep-0xC0) * 2
		}
		return sub, sub.Key, pan, true
	case KindKeysplit:
		if v.SubGroup == nil || v.SplitTable == nil {
			return nil, 0, 0, false
		}
		idx := v.SplitTable[key&0x7F]
		if int(idx) >= len(v.SubGroup.Voices) {
			return nil, 0, 0, false
		}
		sub := &v.SubGroup.Voices[idx]
		if sub.Kind == KindKeysplit || sub.Kind == KindKeysplitAll {
			return nil, 0, 0, false
		}
		return sub, key, 0, true
	default:
		return v, key, 0, true
	}
}

// IsPCM reports whether Kind plays through the PCM mixer rather than a CGB
// synth voice.
func (v *Voice) IsPCM() bool {
	return v.Kind == KindDirectSound
}

// SamplesOrNil returns the wave table's raw bytes, or nil if w is nil —
// convenient for the programmable-wave voice, which may not set one.
func (w *WaveData) SamplesOrNil() []int8 {
	if w == nil {
		return nil
	}
	return w.Samples
}

// IsCGB reports whether Kind occupies one of the four fixed CGB channels,
// and which index (0..3) it belongs to.
func (v *Voice) IsCGB() (index int, ok bool) {
	switch v.Kind {
	case KindSquare1:
		return 0, true
	case KindSquare2:
		return 1, true
	case KindWave:
		return 2, true
	case KindNoise:
		return 3, true
	default:
		return 0, false
	}
}
