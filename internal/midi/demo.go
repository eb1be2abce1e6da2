package midi

// DemoSequence builds a short, hardcoded event list exercising one CGB
// square voice and one PCM voice, for cmd/m4apreview to play back without
// a real MIDI source. sampleRate is used to convert the fixed note
// durations below into frame offsets.
func DemoSequence(sampleRate float64) []Event {
	beat := int64(sampleRate * 0.4)
	var ev []Event

	ev = append(ev,
		Event{Frame: 0, Kind: ProgramChange, Track: 0, A: 0},
		Event{Frame: 0, Kind: ProgramChange, Track: 1, A: 1},
		Event{Frame: 0, Kind: CC, Track: 0, A: 0x07, B: 100},
		Event{Frame: 0, Kind: CC, Track: 1, A: 0x07, B: 100},
	)

	notes := []uint8{60, 64, 67, 72}
	for i, key := range notes {
		on := int64(i) * beat
		ev = append(ev,
			Event{Frame: on, Kind: NoteOn, Track: 0, A: key, B: 100},
			Event{Frame: on, Kind: NoteOn, Track: 1, A: key - 12, B: 90},
			Event{Frame: on + beat - beat/8, Kind: NoteOff, Track: 0, A: key},
			Event{Frame: on + beat - beat/8, Kind: NoteOff, Track: 1, A: key - 12},
		)
	}
	return ev
}
