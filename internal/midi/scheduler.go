// Package midi provides the sample-accurate event scheduling glue that
// sits between a MIDI source (a parsed SMF file, a live input stream, a
// synthetic test sequence) and the engine core. Parsing standard MIDI
// files is outside this module's scope; this package only knows how to
// take a flat, already-resolved list of (frame offset, event) pairs and
// drive an engine through them one render slice at a time.
package midi

import "sort"

// EventKind tags which engine method an Event dispatches to.
type EventKind uint8

const (
	NoteOn EventKind = iota
	NoteOff
	CC
	ProgramChange
	PitchBend
	TempoChange
)

// Event is a single scheduled action. Not every field is meaningful for
// every Kind; see Dispatcher.
type Event struct {
	Frame   int64
	Kind    EventKind
	Track   uint8
	A, B    uint8  // key/velocity, controller/value, or program, depending on Kind
	Bend    int16  // PitchBend only
	TempoBPM float64 // TempoChange only
}

// Dispatcher is the subset of *engine.Engine the scheduler needs; engine
// satisfies it without this package importing engine directly, keeping
// the dependency direction host-glue -> core.
type Dispatcher interface {
	NoteOn(track, key, velocity uint8)
	NoteOff(track, key uint8)
	CC(track, controller, value uint8)
	ProgramChange(track, program uint8)
	PitchBend(track uint8, bend int16)
	SetTempoBPM(bpm float64)
	Process(outL, outR []float32)
}

// Scheduler holds a sorted, flattened event list and the render cursor.
type Scheduler struct {
	events []Event
	cursor int64
	next   int
}

// NewScheduler sorts events by Frame (stable, so same-frame events
// dispatch in the order they were given) and returns a ready Scheduler.
func NewScheduler(events []Event) *Scheduler {
	s := &Scheduler{events: append([]Event(nil), events...)}
	sort.SliceStable(s.events, func(i, j int) bool { return s.events[i].Frame < s.events[j].Frame })
	return s
}

// Done reports whether every scheduled event has been dispatched.
func (s *Scheduler) Done() bool {
	return s.next >= len(s.events)
}

// RenderThrough renders frames into outL/outR (len(outL) frames total),
// dispatching every event whose Frame falls within this slice at the
// correct sample offset by splitting the render into per-event segments.
func (s *Scheduler) RenderThrough(d Dispatcher, outL, outR []float32) {
	total := int64(len(outL))
	written := int64(0)
	end := s.cursor + total

	for s.next < len(s.events) && s.events[s.next].Frame < end {
		ev := s.events[s.next]
		if ev.Frame > s.cursor {
			segment := ev.Frame - s.cursor
			d.Process(outL[written:written+segment], outR[written:written+segment])
			written += segment
			s.cursor = ev.Frame
		}
		dispatch(d, ev)
		s.next++
	}

	if written < total {
		d.Process(outL[written:total], outR[written:total])
		s.cursor += total - written
	}
}

func dispatch(d Dispatcher, ev Event) {
	switch ev.Kind {
	case NoteOn:
		d.NoteOn(ev.Track, ev.A, ev.B)
	case NoteOff:
		d.NoteOff(ev.Track, ev.A)
	case CC:
		d.CC(ev.Track, ev.A, ev.B)
	case ProgramChange:
		d.ProgramChange(ev.Track, ev.A)
	case PitchBend:
		d.PitchBend(ev.Track, ev.Bend)
	case TempoChange:
		d.SetTempoBPM(ev.TempoBPM)
	}
}
