package relay

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zurustar/bubocore/internal/wire"
)

const (
	// ProtocolVersion must match between relay and every registered instance.
	ProtocolVersion = "1"

	handshakeTimeout = 10 * time.Second
	readIdleTimeout  = 30 * time.Second
	writeTimeout     = 10 * time.Second

	instanceOutBuffer = 64
)

var (
	errVersionMismatch = errors.New("relay: version mismatch")
	errNameTaken        = errors.New("relay: instance name already registered")
	errMaxInstances     = errors.New("relay: maximum instance count reached")
)

// instance is one registered session server connection.
type instance struct {
	name    string
	conn    net.Conn
	out     chan Message
	limiter *tokenBucket
}

// Server is the Relay: it accepts instance connections, runs the
// registration handshake, and fans StateUpdate messages out to every other
// registered instance (§4.H).
type Server struct {
	maxInstances   int
	msgsPerMinute  int
	bytesPerMinute int64
	log            *slog.Logger

	mu        sync.RWMutex
	instances map[string]*instance

	stop chan struct{}
}

// New creates a Relay accepting up to maxInstances concurrently registered
// session servers, each limited to msgsPerMinute messages and
// bytesPerMinute cumulative bytes.
func New(maxInstances, msgsPerMinute int, bytesPerMinute int64, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		maxInstances:   maxInstances,
		msgsPerMinute:  msgsPerMinute,
		bytesPerMinute: bytesPerMinute,
		log:            log,
		instances:      make(map[string]*instance),
		stop:           make(chan struct{}),
	}
}

// Serve accepts connections on ln until Stop is called or ln.Accept fails.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stop:
				return nil
			default:
				return err
			}
		}
		go s.handleConn(conn)
	}
}

// Stop closes every registered instance's connection and halts Serve.
func (s *Server) Stop() {
	close(s.stop)
	s.mu.Lock()
	for _, inst := range s.instances {
		inst.conn.Close()
	}
	s.mu.Unlock()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	frame, err := wire.ReadFrame(r)
	if err != nil {
		s.log.Debug("relay: handshake read failed", "error", err)
		return
	}
	var first Message
	if err := msgpack.Unmarshal(frame, &first); err != nil || first.Kind != KindRegister {
		s.refuse(conn, ReasonVersionMismatch)
		return
	}

	inst, err := s.register(conn, first)
	if err != nil {
		s.refuseFor(conn, err)
		return
	}
	defer s.unregister(inst.name)

	if err := s.send(conn, Message{Kind: KindRegistered}); err != nil {
		s.log.Warn("relay: sending registered ack failed", "name", inst.name, "error", err)
		return
	}

	go s.writerLoop(inst)
	s.readerLoop(inst, r)
}

func (s *Server) register(conn net.Conn, first Message) (*instance, error) {
	if first.Version != ProtocolVersion {
		return nil, errVersionMismatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.instances[first.Name]; exists {
		return nil, errNameTaken
	}
	if len(s.instances) >= s.maxInstances {
		return nil, errMaxInstances
	}

	inst := &instance{
		name:    first.Name,
		conn:    conn,
		out:     make(chan Message, instanceOutBuffer),
		limiter: newTokenBucket(s.msgsPerMinute, s.bytesPerMinute, time.Now()),
	}
	s.instances[first.Name] = inst
	s.log.Info("relay: instance registered", "name", inst.name)
	return inst, nil
}

func (s *Server) unregister(name string) {
	s.mu.Lock()
	delete(s.instances, name)
	s.mu.Unlock()
	s.log.Info("relay: instance disconnected", "name", name)
}

func reasonFor(err error) string {
	switch err {
	case errVersionMismatch:
		return ReasonVersionMismatch
	case errNameTaken:
		return ReasonInstanceNameTaken
	case errMaxInstances:
		return ReasonMaxInstancesReached
	default:
		return ReasonVersionMismatch
	}
}

func (s *Server) refuseFor(conn net.Conn, err error) {
	s.refuse(conn, reasonFor(err))
}

func (s *Server) refuse(conn net.Conn, reason string) {
	_ = s.send(conn, Message{Kind: KindRefused, Reason: reason})
}

// readerLoop deserializes StateUpdates from one instance, rate-limits them,
// and fans surviving ones out to every other registered instance.
func (s *Server) readerLoop(inst *instance, r *bufio.Reader) {
	strikes := 0
	for {
		_ = inst.conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
		frame, err := wire.ReadFrame(r)
		if err != nil {
			return
		}

		var msg Message
		if err := msgpack.Unmarshal(frame, &msg); err != nil {
			s.log.Warn("relay: malformed message", "instance", inst.name, "error", err)
			continue
		}
		if msg.Kind != KindStateUpdate {
			continue
		}

		if !inst.limiter.Allow(time.Now(), len(msg.Data)) {
			strikes++
			s.log.Warn("relay: instance rate limited", "instance", inst.name, "strikes", strikes)
			if strikes >= 3 {
				// §5 "the relay closes sockets whose rate limiter triggers repeatedly".
				return
			}
			continue
		}

		msg.SourceID = inst.name
		s.fanOut(inst.name, msg)
	}
}

// fanOut delivers msg to every instance other than its source.
func (s *Server) fanOut(sourceName string, msg Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for name, inst := range s.instances {
		if name == sourceName {
			continue
		}
		select {
		case inst.out <- msg:
		default:
			s.log.Warn("relay: instance output channel full, dropping update", "instance", name)
		}
	}
}

func (s *Server) writerLoop(inst *instance) {
	for msg := range inst.out {
		if err := s.send(inst.conn, msg); err != nil {
			s.log.Debug("relay: write failed", "instance", inst.name, "error", err)
			return
		}
	}
}

func (s *Server) send(conn net.Conn, msg Message) error {
	body, err := msgpack.Marshal(msg)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	compress := wire.Never
	if len(body) >= wire.AdaptiveThreshold {
		compress = wire.Adaptive
	}
	return wire.WriteFrame(conn, body, compress)
}
