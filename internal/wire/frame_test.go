package wire

import "testing"

func TestFrameUnframeRoundTrip(t *testing.T) {
	f := Frame(123, 4567)
	version, headerLen, bodyLen, err := Unframe(f)
	if err != nil {
		t.Fatalf("Unframe: %v", err)
	}
	if version != FrameVersion {
		t.Fatalf("version = %d, want %d", version, FrameVersion)
	}
	if headerLen != 123 || bodyLen != 4567 {
		t.Fatalf("got (%d, %d), want (123, 4567)", headerLen, bodyLen)
	}
}

func TestUnframeRejectsUnknownVersion(t *testing.T) {
	f := Frame(1, 1)
	f[0] = 9
	_, _, _, err := Unframe(f)
	if err == nil {
		t.Fatal("expected FrameError for unknown version")
	}
	if _, ok := err.(*FrameError); !ok {
		t.Fatalf("expected *FrameError, got %T", err)
	}
}

func TestUnframeRejectsShortBuffer(t *testing.T) {
	_, _, _, err := Unframe([]byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected FrameError for short buffer")
	}
}
