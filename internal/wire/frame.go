// Package wire implements the length-prefixed framing shared by the session
// server and the relay: a 32-bit big-endian length with its high bit used as
// a "payload is zstd-compressed" flag, per spec section 4.G.
package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// MaxPayloadSize bounds the raw (decompressed) payload size accepted by
// ReadFrame, guarding against unbounded allocation from a hostile or
// corrupt peer.
const MaxPayloadSize = 10 * 1024 * 1024

const compressedFlag uint32 = 1 << 31
const lengthMask uint32 = ^compressedFlag

// Compression selects how a message kind is framed.
type Compression int

const (
	// Never never compresses, regardless of payload size.
	Never Compression = iota
	// Adaptive compresses only when the payload is at least AdaptiveThreshold bytes.
	Adaptive
	// Always compresses unconditionally.
	Always
)

// AdaptiveThreshold is the payload size at or above which Adaptive
// compression kicks in.
const AdaptiveThreshold = 256

var (
	// ErrEmptyPayload is returned when a zero-length payload is read or
	// about to be written; zero-length payloads are protocol errors.
	ErrEmptyPayload = errors.New("wire: zero-length payload")
	// ErrPayloadTooLarge is returned when a frame's declared or actual
	// length exceeds MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("wire: payload exceeds maximum size")
)

var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic(fmt.Sprintf("wire: constructing zstd encoder: %v", err))
	}
	decoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("wire: constructing zstd decoder: %v", err))
	}
}

// WriteFrame writes payload to w, framed per §4.G. compress selects the
// compression policy to apply for this message's kind.
func WriteFrame(w io.Writer, payload []byte, compress Compression) error {
	if len(payload) == 0 {
		return ErrEmptyPayload
	}
	if len(payload) > MaxPayloadSize {
		return ErrPayloadTooLarge
	}

	useCompression := compress == Always || (compress == Adaptive && len(payload) >= AdaptiveThreshold)

	body := payload
	flag := uint32(0)
	if useCompression {
		body = encoder.EncodeAll(payload, nil)
		flag = compressedFlag
	}

	if len(body) > int(lengthMask) {
		return ErrPayloadTooLarge
	}

	header := flag | (uint32(len(body)) & lengthMask)
	var headerBuf [4]byte
	binary.BigEndian.PutUint32(headerBuf[:], header)

	if _, err := w.Write(headerBuf[:]); err != nil {
		return fmt.Errorf("wire: writing frame header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("wire: writing frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one framed message from r, decompressing it if the
// compressed flag is set.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	var headerBuf [4]byte
	if _, err := io.ReadFull(r, headerBuf[:]); err != nil {
		return nil, err
	}
	header := binary.BigEndian.Uint32(headerBuf[:])
	compressed := header&compressedFlag != 0
	length := header & lengthMask

	if length == 0 {
		return nil, ErrEmptyPayload
	}
	if length > uint32(MaxPayloadSize) {
		return nil, ErrPayloadTooLarge
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("wire: reading frame body: %w", err)
	}

	if !compressed {
		return body, nil
	}

	raw, err := decoder.DecodeAll(body, nil)
	if err != nil {
		return nil, fmt.Errorf("wire: decompressing frame: %w", err)
	}
	if len(raw) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}
	return raw, nil
}
