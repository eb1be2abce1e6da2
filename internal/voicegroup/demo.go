package voicegroup

// NewDemo builds a small synthetic voicegroup: program 0 is a CGB
// square-1 voice, program 1 is a PCM voice backed by a generated
// one-cycle sawtooth. It exists so cmd/m4apreview can exercise the
// engine without a real project loader, which is outside this module's
// scope.
func NewDemo() *Voicegroup {
	vg := &Voicegroup{Name: "demo"}

	vg.Voices[0] = Voice{
		Kind: KindSquare1,
		Key:  60,
		ADSR: ADSR{Attack: 6, Decay: 4, Sustain: 10, Release: 3},
		Duty: 2,
	}

	samples := make([]int8, 65)
	for i := 0; i < 64; i++ {
		samples[i] = int8(i*4 - 128)
	}
	samples[64] = samples[63]
	wav := &WaveData{
		Type:    0,
		Loop:    true,
		Freq:    uint32(44100 * 1024 / 64),
		Size:    64,
		Samples: samples,
	}
	vg.Voices[1] = Voice{
		Kind: KindDirectSound,
		Key:  60,
		ADSR: ADSR{Attack: 30, Decay: 20, Sustain: 180, Release: 15},
		Wave: wav,
	}

	return vg
}
