package device

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"sync"
)

// oscHandle sends pre-encoded OSC 1.0 packets over a connected UDP socket.
// No OSC library appears anywhere in the example corpus, so this encoder is
// a deliberate, minimal implementation of the wire format rather than a
// standard-library stand-in for an available dependency (see DESIGN.md).
type oscHandle struct {
	mu   sync.Mutex
	conn *net.UDPConn
}

func (h *oscHandle) Send(payload any) error {
	packet, ok := payload.([]byte)
	if !ok {
		return fmt.Errorf("device: osc handle got non-[]byte payload %T", payload)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.conn.Write(packet)
	return err
}

func (h *oscHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn.Close()
}

// CreateOSC binds a local UDP socket targeting ip:port under name.
func (r *Registry) CreateOSC(name, ip string, port int) error {
	addr := fmt.Sprintf("%s:%d", ip, port)
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidAddr, addr, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.outputs[name]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadyExists, name)
	}
	for _, e := range r.outputs {
		if e.kind == KindOsc && e.address == addr {
			return fmt.Errorf("%w: address %q already in use", ErrAlreadyExists, addr)
		}
	}

	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidAddr, addr, err)
	}

	r.outputs[name] = &entry{
		name: name, kind: KindOsc, direction: DirOut,
		address: addr, connected: true,
		h: &oscHandle{conn: conn},
	}
	return nil
}

// encodeOSCMessage builds an OSC 1.0 message: the address pattern, a
// comma-prefixed type tag string, then each argument, each
// null-padded to a 4-byte boundary.
func encodeOSCMessage(path string, args []any) ([]byte, error) {
	var buf bytes.Buffer
	writeOSCString(&buf, path)

	var tags bytes.Buffer
	tags.WriteByte(',')
	var argBuf bytes.Buffer
	for _, a := range args {
		switch v := a.(type) {
		case int:
			tags.WriteByte('i')
			binary.Write(&argBuf, binary.BigEndian, int32(v))
		case int64:
			tags.WriteByte('i')
			binary.Write(&argBuf, binary.BigEndian, int32(v))
		case float64:
			tags.WriteByte('f')
			binary.Write(&argBuf, binary.BigEndian, math.Float32bits(float32(v)))
		case float32:
			tags.WriteByte('f')
			binary.Write(&argBuf, binary.BigEndian, math.Float32bits(v))
		case string:
			tags.WriteByte('s')
			writeOSCString(&argBuf, v)
		case []byte:
			tags.WriteByte('b')
			binary.Write(&argBuf, binary.BigEndian, int32(len(v)))
			argBuf.Write(v)
			padOSC(&argBuf, len(v))
		case bool:
			if v {
				tags.WriteByte('T')
			} else {
				tags.WriteByte('F')
			}
		default:
			return nil, fmt.Errorf("device: unsupported OSC argument type %T", a)
		}
	}
	writeOSCString(&buf, tags.String())
	buf.Write(argBuf.Bytes())
	return buf.Bytes(), nil
}

// writeOSCString writes s null-terminated and null-padded so the total
// length (including the string itself) is a multiple of 4 bytes.
func writeOSCString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
	padOSC(buf, len(s)+1)
}

// padOSC pads buf with zero bytes until its content so far (measured from
// the start of the element being padded, of length n) reaches a 4-byte
// boundary.
func padOSC(buf *bytes.Buffer, n int) {
	if rem := n % 4; rem != 0 {
		buf.Write(make([]byte, 4-rem))
	}
}
