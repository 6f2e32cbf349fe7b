package session

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zurustar/bubocore/internal/clock"
	"github.com/zurustar/bubocore/internal/device"
	"github.com/zurustar/bubocore/internal/lang"
	"github.com/zurustar/bubocore/internal/scheduler"
	"github.com/zurustar/bubocore/internal/wire"
)

const (
	readIdleTimeout  = 30 * time.Second
	writeTimeout     = 10 * time.Second
	positionThrottle = 33 * time.Millisecond

	reservedDefaultName = "anonymous"
	clientOutBuffer     = 256
)

var (
	errEmptyName     = errors.New("session: name must not be empty")
	errReservedName  = errors.New("session: name is reserved")
	errDuplicateName = errors.New("session: name already in use")
)

// Server is the Session Server: a TCP listener plus the set of handshaken
// clients subscribed to the Scheduler's notification broadcast.
type Server struct {
	sched   *scheduler.Scheduler
	devices *device.Registry
	clk     *clock.Clock
	langs   *lang.Registry
	log     *slog.Logger

	handshakeTimeout time.Duration

	mu                sync.RWMutex
	clients           map[string]*client
	deviceSnapshot    device.Snapshot
	hasDeviceSnapshot bool

	lastPosBroadcast time.Time

	stop chan struct{}
}

type client struct {
	name string
	conn net.Conn
	out  chan ServerMessage
	lag  bool
}

// New creates a Session Server front-ending sched.
func New(sched *scheduler.Scheduler, devices *device.Registry, clk *clock.Clock, langs *lang.Registry, log *slog.Logger, handshakeTimeout time.Duration) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		sched:            sched,
		devices:          devices,
		clk:              clk,
		langs:            langs,
		log:              log,
		handshakeTimeout: handshakeTimeout,
		clients:          make(map[string]*client),
		stop:             make(chan struct{}),
	}
}

// Serve accepts connections on ln until Stop is called or ln.Accept fails.
func (s *Server) Serve(ln net.Listener) error {
	go s.fanOut()

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

// Stop signals Serve and the fan-out loop to exit.
func (s *Server) Stop() {
	close(s.stop)
}

// SetDeviceSnapshot records the device snapshot loaded alongside the
// current project, so a later RestoreDevices request has something to
// restore from (§6 ClientMessage "RestoreDevices").
func (s *Server) SetDeviceSnapshot(snap device.Snapshot) {
	s.mu.Lock()
	s.deviceSnapshot = snap
	s.hasDeviceSnapshot = true
	s.mu.Unlock()
}

// fanOut subscribes to the scheduler's notifications and relays each to
// every connected client, throttling FramePositionChanged per §4.G.
func (s *Server) fanOut() {
	for {
		select {
		case <-s.stop:
			return
		case n, ok := <-s.sched.Notifications():
			if !ok {
				return
			}
			msg, ok := s.translate(n)
			if !ok {
				continue
			}
			if n.Kind == scheduler.NotifyFramePositionChanged {
				now := time.Now()
				if now.Sub(s.lastPosBroadcast) < positionThrottle {
					continue
				}
				s.lastPosBroadcast = now
			}
			s.broadcast(msg, "")
		}
	}
}

// translate converts a scheduler.Notification to its wire ServerMessage.
// Returns ok=false for notification kinds with no wire counterpart
// (NotifyUpdatedFrames, NotifyAddedFrame, NotifyRemovedFrame, NotifyTick);
// those are not sent to clients.
func (s *Server) translate(n scheduler.Notification) (ServerMessage, bool) {
	switch n.Kind {
	case scheduler.NotifyUpdatedScene:
		return ServerMessage{Kind: ReplySceneUpdated}, true
	case scheduler.NotifyAddedLine:
		idx, _ := n.Payload.(int)
		return ServerMessage{Kind: ReplyAddLine, Line: idx}, true
	case scheduler.NotifyRemovedLine:
		idx, _ := n.Payload.(int)
		return ServerMessage{Kind: ReplyRemoveLine, Line: idx}, true
	case scheduler.NotifyPlaybackStateChanged:
		p, _ := n.Payload.(scheduler.PlaybackStateChangedPayload)
		return ServerMessage{Kind: ReplyPlaybackState, Content: p.State.String()}, true
	case scheduler.NotifyFramePositionChanged:
		p, _ := n.Payload.(scheduler.FramePositionChangedPayload)
		return ServerMessage{Kind: ReplyFramePosition, Line: p.LineIdx, Frame: p.FrameIdx, Beat: p.Beat}, true
	case scheduler.NotifyLog:
		p, _ := n.Payload.(scheduler.LogPayload)
		return ServerMessage{Kind: ReplyLog, Text: p.Text}, true
	case scheduler.NotifyTempoChanged:
		bpm, _ := n.Payload.(float64)
		return ServerMessage{Kind: ReplyTempoChanged, Tempo: bpm}, true
	case scheduler.NotifyQuantumChanged:
		q, _ := n.Payload.(float64)
		return ServerMessage{Kind: ReplyQuantumChanged, Quantum: q}, true
	case scheduler.NotifyCompilationUpdated:
		p, _ := n.Payload.(scheduler.CompilationUpdatedPayload)
		msg := ServerMessage{Kind: ReplyCompilationUpdate, Line: p.LineIdx, Frame: p.FrameIdx}
		if p.Err != nil {
			msg.Text = p.Err.Error()
		}
		return msg, true
	default:
		return ServerMessage{}, false
	}
}

// broadcast delivers msg to every client except excludeName (used to filter
// a client's own chat/editing-presence notifications, per §4.G).
func (s *Server) broadcast(msg ServerMessage, excludeName string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for name, c := range s.clients {
		if name == excludeName {
			continue
		}
		select {
		case c.out <- msg:
		default:
			c.lag = true
			s.log.Warn("session: client output channel full, marking lagged", "client", name)
		}
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	_ = conn.SetReadDeadline(time.Now().Add(s.handshakeTimeout))
	frame, err := wire.ReadFrame(r)
	if err != nil {
		s.log.Debug("session: handshake read failed", "error", err)
		return
	}
	var first ClientMessage
	if err := msgpack.Unmarshal(frame, &first); err != nil || first.Kind != MsgSetName {
		s.sendRefusal(conn, "first message must be set_name")
		return
	}

	c, peers, err := s.register(conn, first.Name)
	if err != nil {
		s.sendRefusal(conn, err.Error())
		return
	}
	name := c.name

	s.log.Info("session: client connected", "name", name)
	defer s.removeClient(name)

	snap := s.sched.Snapshot()
	hello := HelloPayload{
		Username: name, Tempo: snap.Tempo, Beat: snap.Beat, Quantum: snap.Quantum,
		IsPlaying:          snap.Playback == scheduler.Playing,
		Devices:            toDeviceInfos(s.devices.List()),
		Peers:              peers,
		AvailableLanguages: s.langs.AvailableLanguages(),
	}
	if err := s.send(conn, ServerMessage{Kind: ReplyHello, Hello: &hello}); err != nil {
		s.log.Warn("session: sending hello failed", "name", name, "error", err)
		return
	}

	go s.writerLoop(c)
	s.readerLoop(c, r)
}

// register validates name and, if accepted, atomically inserts the new
// client into s.clients under a single held lock — the existence check and
// the insert must not straddle a lock release, or two concurrent handshakes
// for the same name can both pass the check before either is visible to the
// other (§8 testable property 6).
func (s *Server) register(conn net.Conn, name string) (*client, []string, error) {
	if name == "" {
		return nil, nil, errEmptyName
	}
	if name == reservedDefaultName {
		return nil, nil, errReservedName
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.clients[name]; exists {
		return nil, nil, errDuplicateName
	}

	c := &client{name: name, conn: conn, out: make(chan ServerMessage, clientOutBuffer)}
	s.clients[name] = c
	return c, s.peerNamesLocked(), nil
}

func (s *Server) removeClient(name string) {
	s.mu.Lock()
	delete(s.clients, name)
	s.mu.Unlock()
	s.log.Info("session: client disconnected", "name", name)
}

func (s *Server) peerNamesLocked() []string {
	names := make([]string, 0, len(s.clients))
	for n := range s.clients {
		names = append(names, n)
	}
	return names
}

// readerLoop deserializes inbound messages, applies the read idle timeout,
// and forwards mutations to the scheduler.
func (s *Server) readerLoop(c *client, r *bufio.Reader) {
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
		frame, err := wire.ReadFrame(r)
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := msgpack.Unmarshal(frame, &msg); err != nil {
			s.log.Warn("session: malformed message", "client", c.name, "error", err)
			continue
		}
		s.handleMessage(c, msg)
	}
}

func (s *Server) writerLoop(c *client) {
	for msg := range c.out {
		if err := s.send(c.conn, msg); err != nil {
			s.log.Debug("session: write failed", "client", c.name, "error", err)
			return
		}
	}
}

func (s *Server) send(conn net.Conn, msg ServerMessage) error {
	body, err := msgpack.Marshal(msg)
	if err != nil {
		return fmt.Errorf("session: marshaling message: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	compress := wire.Never
	switch msg.Kind {
	case ReplyHello:
		compress = wire.Always
	default:
		if len(body) >= wire.AdaptiveThreshold {
			compress = wire.Adaptive
		}
	}
	return wire.WriteFrame(conn, body, compress)
}

func (s *Server) sendRefusal(conn net.Conn, reason string) {
	_ = s.send(conn, ServerMessage{Kind: ReplyConnectionRefused, Text: reason})
}

func toDeviceInfos(infos []device.Info) []DeviceInfo {
	out := make([]DeviceInfo, len(infos))
	for i, d := range infos {
		out[i] = DeviceInfo{
			Slot: d.Slot, Name: d.Name, Kind: d.Kind.String(), Direction: d.Direction.String(),
			Connected: d.Connected, Address: d.Address, Missing: d.Missing,
		}
	}
	return out
}
