// Package persist implements the plugin host's byte-granular saved-state
// format: project root, voicegroup name, and the handful of scalar
// engine settings a DAW project needs to restore. The layout is a wire
// contract a native plugin host must round-trip byte-for-byte, so it is
// encoded directly with encoding/binary rather than through a general
// marshaling library.
package persist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// State is the full set of persisted fields.
type State struct {
	ProjectRoot    string
	VoicegroupName string
	Reverb         uint8
	Master         uint8
	SongMaster     uint8
	AnalogFilter   bool // defaults true if the trailing byte is absent
	MaxPCMChannels uint8 // defaults 5 if the trailing byte is absent
}

func writeString(w *bytes.Buffer, s string) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	w.Write(lenBuf[:])
	w.WriteString(s)
}

// Marshal encodes s into the wire format described in this package's
// doc comment.
func Marshal(s State) []byte {
	var buf bytes.Buffer
	writeString(&buf, s.ProjectRoot)
	writeString(&buf, s.VoicegroupName)
	buf.WriteByte(s.Reverb)
	buf.WriteByte(s.Master)
	buf.WriteByte(s.SongMaster)
	af := uint8(0)
	if s.AnalogFilter {
		af = 1
	}
	buf.WriteByte(af)
	buf.WriteByte(s.MaxPCMChannels)
	return buf.Bytes()
}

func readString(r *bytes.Reader) (string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// Unmarshal decodes a State, defaulting AnalogFilter to true and
// MaxPCMChannels to 5 when those trailing bytes are absent, so state
// saved by an older build of a host still loads.
func Unmarshal(data []byte) (State, error) {
	var s State
	s.AnalogFilter = true
	s.MaxPCMChannels = 5

	r := bytes.NewReader(data)
	var err error
	if s.ProjectRoot, err = readString(r); err != nil {
		return s, fmt.Errorf("persist: project root: %w", err)
	}
	if s.VoicegroupName, err = readString(r); err != nil {
		return s, fmt.Errorf("persist: voicegroup name: %w", err)
	}
	if s.Reverb, err = r.ReadByte(); err != nil {
		return s, fmt.Errorf("persist: reverb: %w", err)
	}
	if s.Master, err = r.ReadByte(); err != nil {
		return s, fmt.Errorf("persist: master: %w", err)
	}
	if s.SongMaster, err = r.ReadByte(); err != nil {
		return s, fmt.Errorf("persist: song master: %w", err)
	}
	if af, err := r.ReadByte(); err == nil {
		s.AnalogFilter = af != 0
		if mc, err := r.ReadByte(); err == nil {
			s.MaxPCMChannels = mc
		}
	}
	return s, nil
}
