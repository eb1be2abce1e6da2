package persist

import "testing"

func TestRoundTrip(t *testing.T) {
	in := State{
		ProjectRoot:    "/home/user/pokeemerald",
		VoicegroupName: "gSpecialVoiceGroup",
		Reverb:         40,
		Master:         15,
		SongMaster:     127,
		AnalogFilter:   true,
		MaxPCMChannels: 8,
	}
	out, err := Unmarshal(Marshal(in))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestUnmarshalDefaultsTrailingFields(t *testing.T) {
	var buf []byte
	buf = append(buf, 0, 0, 0, 0) // empty project root
	buf = append(buf, 0, 0, 0, 0) // empty voicegroup name
	buf = append(buf, 10, 15, 127)

	out, err := Unmarshal(buf)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !out.AnalogFilter {
		t.Error("AnalogFilter should default to true when trailing byte is absent")
	}
	if out.MaxPCMChannels != 5 {
		t.Errorf("MaxPCMChannels = %d, want default 5", out.MaxPCMChannels)
	}
}

func TestUnmarshalRejectsTruncatedHeader(t *testing.T) {
	if _, err := Unmarshal([]byte{1, 0, 0}); err == nil {
		t.Fatal("expected error on truncated length-prefixed string")
	}
}
