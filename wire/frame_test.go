package wire

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte(""),
		[]byte("hello"),
		bytes.Repeat([]byte{0xAB}, 4096),
	}
	for _, want := range payloads {
		var buf bytes.Buffer
		if err := WriteFrame(&buf, want); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("round-trip mismatch: got %v, want %v", got, want)
		}
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	lenBuf := []byte{0, 0, 0, 0}
	// Encode a length far beyond MaxFrameSize.
	oversized := uint32(MaxFrameSize) + 1
	lenBuf[0] = byte(oversized)
	lenBuf[1] = byte(oversized >> 8)
	lenBuf[2] = byte(oversized >> 16)
	lenBuf[3] = byte(oversized >> 24)
	buf.Write(lenBuf)

	if _, err := ReadFrame(&buf); err == nil {
		t.Fatal("expected an error for a frame length exceeding MaxFrameSize")
	}
}
