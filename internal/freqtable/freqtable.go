// Package freqtable builds the static key-to-frequency lookup tables used
// by PCM resampling and CGB synthesis, and the two conversion functions
// that consume them.
//
// The hardware ROM tables this engine imitates are two interleaved
// per-semitone fixed-point multiplier tables (a coarse octave shift
// packed into the high nibble, a 12-step semitone index in the low
// nibble) rather than one multiplier per MIDI key. Recomputing them from
// equal temperament at package init time, instead of hand-transcribing
// the ROM bytes, keeps this package self-contained; the values follow
// the equal-tempered curve rather than matching the ROM bytes exactly.
// The formulas in §4.1.2 of this engine's specification,
// midiKeyToFreq and midiKeyToCgbFreq, only ever consume
// the *shape* of the table (a monotonic per-semitone multiplier curve
// interpolated by a sub-semitone fine-tune byte), not specific byte
// values.
package freqtable

import "math"

const (
	maxPCMKey = 178
	minCGBKey = 36
	maxCGBKey = 166

	// maxPCMOctave/maxCGBOctave are the largest octave shift either table
	// needs; shift amounts are stored as (max - key/12) so the stored
	// shift *decreases* as key increases, making the looked-up multiplier
	// increase with key as required by the monotonic pitch curve.
	maxPCMOctave = maxPCMKey / 12
	maxCGBOctave = maxCGBKey / 12

	// cgbPeriodScale picks the inverse-frequency constant that maps the
	// table's Q16 pitch multiplier onto the hardware's 0..2047 period
	// register; see MidiKeyToCgbFreq.
	cgbPeriodScale = 1 << 17
)

// scaleTable[k] packs an octave shift (high nibble) and a 12-entry
// semitone index (low nibble) for PCM key k.
var scaleTable [maxPCMKey + 2]uint8

// freqTable[s] holds the multiplier 2^(s/12) for semitone index s
// (0..15), scaled so that 1.0 == 1<<31; index 12..15 are unused padding
// mirroring the ROM table's 16-wide stride.
var freqTable [16]uint32

var cgbScaleTable [maxCGBKey + 2]uint8

// cgbFreqTable holds the same per-semitone curve in Q16 (1.0 == 1<<16),
// the scale cgbPeriodScale is chosen for.
var cgbFreqTable [16]uint32

// gNoiseTable maps a MIDI key (offset by 21, covering keys 21..96) to a
// GBA noise-channel period/shift composite index 0..59.
var gNoiseTable [76]uint8

func init() {
	// freqTable[s] = 2^(s/12) with 1.0 == 1<<31, octave shift applied
	// separately via scaleTable's high nibble (a right shift in
	// midiKeyToFreq). Key 60 has shift 9, so MidiKeyToFreq returns
	// waveFreq/1024 there: the wave's native sample rate at middle C.
	for s := 0; s < 12; s++ {
		mul := math.Pow(2, float64(s)/12.0)
		freqTable[s] = uint32(mul * (1 << 31))
		cgbFreqTable[s] = uint32(mul * (1 << 16))
	}
	for k := 0; k <= maxPCMKey+1; k++ {
		octave := maxPCMOctave - k/12
		if octave < 0 {
			octave = 0
		}
		scaleTable[k] = uint8(octave<<4) | uint8(k%12)
	}
	for k := 0; k <= maxCGBKey+1; k++ {
		octave := maxCGBOctave - k/12
		if octave < 0 {
			octave = 0
		}
		cgbScaleTable[k] = uint8(octave<<4) | uint8(k%12)
	}
	for i := range gNoiseTable {
		key := i + 21
		idx := (key - 21) * 59 / (len(gNoiseTable) - 1)
		if idx < 0 {
			idx = 0
		}
		if idx > 59 {
			idx = 59
		}
		gNoiseTable[i] = uint8(idx)
	}
}

func umul3232H32(a, b uint32) uint32 {
	return uint32((uint64(a) * uint64(b)) >> 32)
}

// MidiKeyToFreq computes the source-sample playback rate (samples per
// second) for a DirectSound voice with native rate wav.Freq (sampleRate*1024
// at middle C), at the given MIDI key and fine-tune byte (0..255, a
// sub-semitone interpolation weight). The engine scales the result into
// the channel's Q23 frequency word.
func MidiKeyToFreq(waveFreq uint32, key uint8, fineAdjust uint8) uint32 {
	if int(key) > maxPCMKey {
		key = maxPCMKey
	}
	s0 := scaleTable[key]
	s1 := scaleTable[key+1]
	v1 := freqTable[s0&0xF] >> (s0 >> 4)
	v2 := freqTable[s1&0xF] >> (s1 >> 4)
	delta := umul3232H32(v2-v1, uint32(fineAdjust)<<24)
	return umul3232H32(waveFreq, v1+delta)
}

// MidiKeyToCgbFreq computes the 11-bit-ish composite frequency register
// used by the square/wave channels (squareOrWave=true) or the noise
// period/shift composite (squareOrWave=false).
func MidiKeyToCgbFreq(squareOrWave bool, key uint8, fineAdjust uint8) uint32 {
	if !squareOrWave {
		idx := int(key) - 21
		if idx < 0 {
			idx = 0
		}
		if idx >= len(gNoiseTable) {
			idx = len(gNoiseTable) - 1
		}
		return uint32(gNoiseTable[idx])
	}
	if key < minCGBKey {
		key = minCGBKey
	}
	if int(key) > maxCGBKey {
		key = maxCGBKey
	}
	s0 := cgbScaleTable[key]
	s1 := cgbScaleTable[key+1]
	v1 := cgbFreqTable[s0&0xF] >> (s0 >> 4)
	v2 := cgbFreqTable[s1&0xF] >> (s1 >> 4)
	delta := umul3232H32(v2-v1, uint32(fineAdjust)<<24)
	combined := v1 + delta
	if combined == 0 {
		combined = 1
	}
	// Period is inversely proportional to the pitch multiplier, so the
	// register (2048 - period) rises toward the hardware's ceiling as key
	// (and combined) increases, matching squareSample/waveSample's own
	// freqHz = 131072/(2048-r).
	period := uint32(cgbPeriodScale) / combined
	if period > 2047 {
		period = 2047
	}
	if period == 0 {
		period = 1
	}
	return 2048 - period
}
