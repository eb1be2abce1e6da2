// Package pcm implements the DirectSound (sample-based) channel: its
// multiplicative ADSR envelope state machine and its fractional-position
// interpolating mixer.
package pcm

import "github.com/IntuitionAmiga/m4aengine/internal/voicegroup"

type status uint8

const (
	statusStart status = 0x80
	statusStop  status = 0x40
	statusLoop  status = 0x10
	statusIEC   status = 0x04
	envMask     status = 0x03
)

// Env phases, packed into the low two bits of status alongside the
// independent Start/Stop/Loop/IEC flags.
const (
	envRelease status = 0
	envSustain status = 1
	envDecay   status = 2
	envAttack  status = 3
)

// Channel is one of the engine's (up to 12) DirectSound voices.
type Channel struct {
	st status

	Wave *voicegroup.WaveData

	FixedFreq bool
	LeftVol   uint8
	RightVol  uint8
	Attack    uint8
	Decay     uint8
	Sustain   uint8
	Release   uint8

	env    uint8 // 0..255 multiplicative envelope level
	envVolL uint8
	envVolR uint8

	PseudoEchoVolume uint8
	pseudoEchoLength uint16

	MidiKey  uint8
	Velocity uint8
	Priority uint8
	RhythmPan int8
	GateTime int32

	TrackIndex uint8

	pos      uint32 // index into Wave.Samples
	count    int32  // remaining source samples before loop/stop
	fw       uint32 // Q23 fractional position accumulator
	Freq     uint32 // Q23 samples-per-output-frame

	isLoop   bool
	loopLen  uint32
	loopStart uint32

	started bool
}

// On reports whether this channel is currently producing (or about to
// produce) sound.
func (c *Channel) On() bool {
	return c.st&(statusStart|statusStop|statusIEC) != 0 || c.st&envMask != 0
}

// InRelease reports whether the channel has already received Stop and is
// ramping down, making it a preferred steal target for new allocations.
func (c *Channel) InRelease() bool {
	return c.st&statusStop != 0
}

// TickGate decrements the channel's remaining gate time (set by the
// owning track's note duration, if any) and reports whether it just
// reached zero, signalling the caller should call Stop. A GateTime of 0
// means "no automatic gate", matching notes held until an explicit
// NoteOff.
func (c *Channel) TickGate() bool {
	if c.GateTime <= 0 {
		return false
	}
	c.GateTime--
	return c.GateTime == 0
}

// Start begins playback of wav at the given frequency word, with the
// supplied envelope and initial per-side volumes. masterVolume (0..15)
// is needed immediately to derive the first frame's mix volumes.
func (c *Channel) Start(wav *voicegroup.WaveData, fixedFreq bool, freq uint32, adsr voicegroup.ADSR, left, right uint8, key, velocity, priority uint8, trackIndex uint8, masterVolume uint8) {
	c.Wave = wav
	c.FixedFreq = fixedFreq
	c.Freq = freq
	c.Attack, c.Decay, c.Sustain, c.Release = adsr.Attack, adsr.Decay, adsr.Sustain, adsr.Release
	c.LeftVol, c.RightVol = left, right
	c.MidiKey = key
	c.Velocity = velocity
	c.Priority = priority
	c.TrackIndex = trackIndex
	c.env = 0
	c.pos = 0
	c.fw = 0
	c.pseudoEchoLength = 0
	c.started = false

	if wav.Loop {
		c.isLoop = true
		c.loopStart = wav.LoopStart
		c.loopLen = wav.Size - wav.LoopStart
	} else {
		c.isLoop = false
		c.loopLen = 0
		c.loopStart = 0
	}
	c.count = int32(wav.Size)

	c.st = statusStart | envAttack
	if c.isLoop {
		c.st |= statusLoop
	}
	c.refreshVolume(masterVolume)
}

// Stop marks the channel for release on the next envelope tick.
func (c *Channel) Stop() {
	if c.st&statusStop == 0 {
		c.st |= statusStop
	}
}

// SetFrequency replaces the channel's running Q23 frequency word, e.g.
// after a pitch bend or bend-range change on the owning track. Playback
// position is left untouched.
func (c *Channel) SetFrequency(freq uint32) {
	c.Freq = freq
}

// SetVolume updates the per-side static volumes (e.g. after a CC7/CC10 on
// the owning track) and re-derives the mix volumes immediately.
func (c *Channel) SetVolume(left, right, masterVolume uint8) {
	c.LeftVol, c.RightVol = left, right
	c.refreshVolume(masterVolume)
}

func (c *Channel) refreshVolume(masterVolume uint8) {
	vol := (uint32(masterVolume) + 1) * uint32(c.env) >> 4
	c.envVolR = uint8(uint32(c.RightVol) * vol >> 8)
	c.envVolL = uint8(uint32(c.LeftVol) * vol >> 8)
}

// TickEnvelope advances the envelope state machine by one engine frame
// (~60 Hz). masterVolume is the engine's global 0..15 volume.
func (c *Channel) TickEnvelope(masterVolume uint8) {
	if !c.On() {
		return
	}

	if c.st&statusStart != 0 {
		c.st &^= statusStart
		v := int32(c.env) + int32(c.Attack)
		if v >= 0xFF {
			c.env = 0xFF
			c.st = (c.st &^ envMask) | envDecay
		} else {
			c.env = uint8(v)
		}
		c.started = true
		c.refreshVolume(masterVolume)
		return
	}

	if c.st&statusStop != 0 && c.st&statusIEC == 0 && c.st&envMask != envRelease {
		c.st = (c.st &^ envMask) | envRelease
	}

	switch c.st & envMask {
	case envAttack:
		v := int32(c.env) + int32(c.Attack)
		if v >= 0xFF {
			c.env = 0xFF
			c.st = (c.st &^ envMask) | envDecay
		} else {
			c.env = uint8(v)
		}
	case envDecay:
		v := uint32(c.env) * uint32(c.Decay) >> 8
		if v <= uint32(c.Sustain) {
			if c.Sustain == 0 {
				if c.PseudoEchoVolume == 0 {
					c.kill()
					return
				}
				c.env = c.PseudoEchoVolume
				c.st = (c.st &^ envMask) | envRelease
				c.enterPseudoEcho()
			} else {
				c.env = c.Sustain
				c.st = (c.st &^ envMask) | envSustain
			}
		} else {
			c.env = uint8(v)
		}
	case envSustain:
		// held

	case envRelease:
		if c.st&statusIEC != 0 {
			c.pseudoEchoLength--
			if c.pseudoEchoLength == 0 {
				c.kill()
				return
			}
		} else {
			v := uint32(c.env) * uint32(c.Release) >> 8
			if v <= uint32(c.PseudoEchoVolume) {
				if c.PseudoEchoVolume == 0 {
					c.kill()
					return
				}
				c.env = c.PseudoEchoVolume
				c.enterPseudoEcho()
			} else {
				c.env = uint8(v)
			}
		}
	}

	c.refreshVolume(masterVolume)
}

func (c *Channel) enterPseudoEcho() {
	c.st |= statusIEC
	c.pseudoEchoLength = 32
}

func (c *Channel) kill() {
	c.st = 0
	c.Wave = nil
}

// Mix renders one output sample and adds it (Q8 scaled) into mixL/mixR,
// advancing playback position and killing the channel on end-of-sample.
func (c *Channel) Mix(mixL, mixR *int32) {
	if !c.On() || c.Wave == nil {
		return
	}
	samples := c.Wave.Samples
	var sample int32
	if c.FixedFreq {
		sample = int32(samples[c.pos])
	} else {
		s0 := int32(samples[c.pos])
		s1 := int32(samples[c.pos+1])
		sample = s0 + int32((int64(s1-s0)*int64(c.fw))>>23)
	}

	*mixR += sample * int32(c.envVolR) >> 8
	*mixL += sample * int32(c.envVolL) >> 8

	c.fw += c.Freq
	advance := c.fw >> 23
	c.fw &= 0x7FFFFF
	c.count -= int32(advance)

	if c.count <= 0 {
		if c.isLoop {
			for c.count <= 0 {
				c.count += int32(c.loopLen)
			}
			c.pos = c.loopStart + c.loopLen - uint32(c.count)
		} else {
			c.kill()
		}
		return
	}
	c.pos += advance
}
