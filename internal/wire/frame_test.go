package wire

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		compress Compression
	}{
		{"small never", []byte("hi"), Never},
		{"small adaptive stays uncompressed", bytes.Repeat([]byte("a"), 100), Adaptive},
		{"large adaptive compresses", bytes.Repeat([]byte("a"), 1000), Adaptive},
		{"always compresses small", []byte("x"), Always},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteFrame(&buf, tt.payload, tt.compress); err != nil {
				t.Fatalf("WriteFrame: %v", err)
			}
			r := bufio.NewReader(&buf)
			got, err := ReadFrame(r)
			if err != nil {
				t.Fatalf("ReadFrame: %v", err)
			}
			if !bytes.Equal(got, tt.payload) {
				t.Errorf("round-trip mismatch: got %d bytes, want %d bytes", len(got), len(tt.payload))
			}
		})
	}
}

func TestWriteFrameRejectsEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, nil, Never); err != ErrEmptyPayload {
		t.Errorf("err = %v, want ErrEmptyPayload", err)
	}
}

func TestReadFrameRejectsOversizedDeclaredLength(t *testing.T) {
	var headerBuf [4]byte
	// Declare a length larger than MaxPayloadSize.
	big := uint32(MaxPayloadSize) + 1
	headerBuf[0] = byte(big >> 24)
	headerBuf[1] = byte(big >> 16)
	headerBuf[2] = byte(big >> 8)
	headerBuf[3] = byte(big)

	r := bufio.NewReader(bytes.NewReader(headerBuf[:]))
	_, err := ReadFrame(r)
	if err != ErrPayloadTooLarge {
		t.Errorf("err = %v, want ErrPayloadTooLarge", err)
	}
}

func TestFramingRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("any well-formed payload survives a frame round trip", prop.ForAll(
		func(s string, compressAlways bool) bool {
			payload := []byte(s)
			if len(payload) == 0 {
				payload = []byte{0}
			}
			compress := Never
			if compressAlways {
				compress = Always
			}
			var buf bytes.Buffer
			if err := WriteFrame(&buf, payload, compress); err != nil {
				return false
			}
			got, err := ReadFrame(bufio.NewReader(&buf))
			if err != nil {
				return false
			}
			return bytes.Equal(got, payload)
		},
		gen.RegexMatch(`[a-zA-Z0-9 ]{0,2000}`),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestAdaptiveThresholdBoundary(t *testing.T) {
	below := strings.Repeat("a", AdaptiveThreshold-1)
	atOrAbove := strings.Repeat("a", AdaptiveThreshold)

	var bufBelow, bufAt bytes.Buffer
	WriteFrame(&bufBelow, []byte(below), Adaptive)
	WriteFrame(&bufAt, []byte(atOrAbove), Adaptive)

	headerBelow := bufBelow.Bytes()[:4]
	headerAt := bufAt.Bytes()[:4]

	if headerBelow[0]&0x80 != 0 {
		t.Error("payload below threshold should not be compressed")
	}
	if headerAt[0]&0x80 == 0 {
		t.Error("payload at/above threshold should be compressed")
	}
}
