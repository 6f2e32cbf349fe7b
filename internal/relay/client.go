package relay

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zurustar/bubocore/internal/wire"
)

// Client is a session server's connection to an upstream Relay: it
// registers once, then exchanges opaque StateUpdate payloads with every
// other registered instance.
type Client struct {
	conn net.Conn
	r    *bufio.Reader
	log  *slog.Logger
}

// Dial connects to addr, registers as instanceName, and returns a Client
// ready to Send/Recv StateUpdates. Refused registrations return the
// relay's reason string as the error.
func Dial(addr, instanceName string, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	conn, err := net.DialTimeout("tcp", addr, handshakeTimeout)
	if err != nil {
		return nil, fmt.Errorf("relay: dialing %s: %w", addr, err)
	}

	c := &Client{conn: conn, r: bufio.NewReader(conn), log: log}
	if err := c.send(Message{Kind: KindRegister, Name: instanceName, Version: ProtocolVersion}); err != nil {
		conn.Close()
		return nil, err
	}

	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	reply, err := c.recv()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if reply.Kind == KindRefused {
		conn.Close()
		return nil, fmt.Errorf("relay: registration refused: %s", reply.Reason)
	}
	_ = conn.SetReadDeadline(time.Time{})
	return c, nil
}

// Send forwards an opaque StateUpdate payload to every other registered instance.
func (c *Client) Send(data []byte) error {
	return c.send(Message{Kind: KindStateUpdate, Timestamp: time.Now().UnixMicro(), Data: data})
}

// Recv blocks for the next inbound StateUpdate from another instance.
func (c *Client) Recv() (Message, error) {
	return c.recv()
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) send(msg Message) error {
	body, err := msgpack.Marshal(msg)
	if err != nil {
		return fmt.Errorf("relay: marshaling message: %w", err)
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	compress := wire.Never
	if len(body) >= wire.AdaptiveThreshold {
		compress = wire.Adaptive
	}
	return wire.WriteFrame(c.conn, body, compress)
}

func (c *Client) recv() (Message, error) {
	frame, err := wire.ReadFrame(c.r)
	if err != nil {
		return Message{}, err
	}
	var msg Message
	if err := msgpack.Unmarshal(frame, &msg); err != nil {
		return Message{}, fmt.Errorf("relay: decoding message: %w", err)
	}
	return msg, nil
}
