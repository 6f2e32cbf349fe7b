// Package scheduler implements the Scheduler (§4.E): the single authoritative
// owner of scene and playback position. It drains a channel of
// SchedulerMessages (scene/clock/playback mutations from the network layer),
// advances playback on every tick of its own ≥100 Hz loop, evaluates each
// frame a line crosses into, and forwards the resulting events to the Device
// Registry for translation and on to the Dispatcher.
//
// Grounded on the teacher's pkg/engine/vm.go single-owner tick loop and
// pkg/engine/sequencer.go's per-sequence program-counter/wait bookkeeping,
// generalized from one sequence of OpCodes to one fractional playback
// position per Line.
package scheduler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/zurustar/bubocore/internal/clock"
	"github.com/zurustar/bubocore/internal/device"
	"github.com/zurustar/bubocore/internal/dispatcher"
	"github.com/zurustar/bubocore/internal/lang"
	"github.com/zurustar/bubocore/internal/scene"
)

// PlaybackState is the scheduler's transport state machine (§4.E).
type PlaybackState int

const (
	Stopped PlaybackState = iota
	Starting
	Playing
)

func (p PlaybackState) String() string {
	switch p {
	case Starting:
		return "starting"
	case Playing:
		return "playing"
	default:
		return "stopped"
	}
}

// TickHz is the minimum tick rate required by §4.E ("runs at ≥100 Hz").
const TickHz = 200

// lineRuntime is the scheduler's per-line playback cursor, not part of the
// scene model itself (scene.Line is pure data; this is the mutable position
// the scheduler advances every tick).
type lineRuntime struct {
	frameIdx       int
	fractionalBeat float64
	scope          *scene.Scope
}

// Scheduler is the single owner of scene and playback state.
type Scheduler struct {
	mu sync.Mutex // guards lines/playback, so Snapshot can read consistently

	scn     *scene.Scene
	clk     *clock.Clock
	langs   *lang.Registry
	devices *device.Registry
	disp    *dispatcher.Dispatcher
	log     *slog.Logger

	lines       []*lineRuntime
	playback    PlaybackState
	startAtBeat float64
	lastBeats   float64

	pending *pendingQueue
	seq     uint64

	inbox chan SchedulerMessage
	notif chan Notification

	lastPosBroadcast time.Time

	stop    chan struct{}
	stopped chan struct{}
}

// New creates a Scheduler over an existing scene, clock, language registry,
// device registry, and dispatcher. inboxSize bounds the pending-command
// channel; notifSize bounds the outbound notification channel.
func New(scn *scene.Scene, clk *clock.Clock, langs *lang.Registry, devices *device.Registry, disp *dispatcher.Dispatcher, log *slog.Logger, inboxSize, notifSize int) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		scn:     scn,
		clk:     clk,
		langs:   langs,
		devices: devices,
		disp:    disp,
		log:     log,
		pending: &pendingQueue{},
		inbox:   make(chan SchedulerMessage, inboxSize),
		notif:   make(chan Notification, notifSize),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Notifications returns the channel the session server subscribes to for
// broadcast.
func (s *Scheduler) Notifications() <-chan Notification { return s.notif }

// Enqueue submits a mutation command. Never blocks the caller's own
// goroutine beyond the inbox's buffered capacity.
func (s *Scheduler) Enqueue(msg SchedulerMessage) {
	s.inbox <- msg
}

func (s *Scheduler) publish(kind NotificationKind, payload any) {
	select {
	case s.notif <- Notification{Kind: kind, Payload: payload}:
	default:
		s.log.Warn("scheduler: notification channel full, dropping", "kind", kind)
	}
}

// Run drives the tick loop until Stop is called. Intended to run on its own
// goroutine: the scheduler is otherwise single-threaded-cooperative per §5.
func (s *Scheduler) Run() {
	defer close(s.stopped)
	ticker := time.NewTicker(time.Second / TickHz)
	defer ticker.Stop()

	s.lastBeats = s.clk.NowBeats()
	for {
		select {
		case <-s.stop:
			return
		case msg := <-s.inbox:
			s.drain(msg)
			s.tick()
		case <-ticker.C:
			s.tick()
		}
	}
}

// Stop halts the tick loop and waits for it to exit.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.stopped
}

// drain folds one just-received message into the pending queue (and any
// immediately-following buffered ones), resolving its planned apply beat.
func (s *Scheduler) drain(first SchedulerMessage) {
	msgs := []SchedulerMessage{first}
drainMore:
	for {
		select {
		case m := <-s.inbox:
			msgs = append(msgs, m)
		default:
			break drainMore
		}
	}

	nowBeats := s.clk.NowBeats()
	s.mu.Lock()
	for _, m := range msgs {
		s.seq++
		pm := &pendingMutation{msg: m, seq: s.seq}
		switch m.Timing.Kind {
		case Immediate:
			pm.plannedBeat = nowBeats
		case AtBeat:
			pm.plannedBeat = float64(m.Timing.Beat)
		case EndOfScene:
			pm.endOfScene = true
		}
		s.pending.items = append(s.pending.items, pm)
	}
	s.mu.Unlock()
}

// tick runs one iteration of the §4.E loop: apply due mutations, then (if
// playing) advance every line and evaluate any frame crossings.
func (s *Scheduler) tick() {
	now := s.clk.Now()

	s.applyDue(now.Beats)

	s.mu.Lock()
	playback := s.playback
	startAtBeat := s.startAtBeat
	lineCount := s.scn.LineCount()
	s.mu.Unlock()

	// A scene with no lines never crosses a frame boundary, so advance()
	// never sees a wrap to apply pending EndOfScene mutations against. An
	// empty scene applies them immediately instead (§8 boundary behavior),
	// regardless of playback state.
	if lineCount == 0 {
		s.applyEndOfScene()
	}

	switch playback {
	case Starting:
		if now.Beats >= startAtBeat {
			s.mu.Lock()
			s.playback = Playing
			s.resetLinePositionsLocked()
			s.mu.Unlock()
			s.publish(NotifyPlaybackStateChanged, PlaybackStateChangedPayload{State: Playing})
		}
	case Playing:
		deltaBeats := now.Beats - s.lastBeats
		if deltaBeats > 0 {
			s.advance(deltaBeats, now)
		}
	}
	s.lastBeats = now.Beats
	s.publish(NotifyTick, nil)
}

// applyDue pops and applies every pending mutation whose planned beat has
// passed, oldest (lowest planned beat, then arrival) first.
func (s *Scheduler) applyDue(nowBeats float64) {
	for {
		s.mu.Lock()
		idx := -1
		var best *pendingMutation
		for i, pm := range s.pending.items {
			if pm.endOfScene {
				continue
			}
			if pm.plannedBeat > nowBeats {
				continue
			}
			if best == nil || pm.plannedBeat < best.plannedBeat || (pm.plannedBeat == best.plannedBeat && pm.seq < best.seq) {
				best = pm
				idx = i
			}
		}
		if idx == -1 {
			s.mu.Unlock()
			return
		}
		s.pending.items = append(s.pending.items[:idx], s.pending.items[idx+1:]...)
		s.mu.Unlock()

		s.apply(best.msg)
	}
}

// applyEndOfScene applies every EndOfScene-tagged pending mutation. Called
// when advance() detects all lines wrapped within the same tick, and by
// tick() on every tick while the scene has no lines.
func (s *Scheduler) applyEndOfScene() {
	s.mu.Lock()
	var due []*pendingMutation
	var rest []*pendingMutation
	for _, pm := range s.pending.items {
		if pm.endOfScene {
			due = append(due, pm)
		} else {
			rest = append(rest, pm)
		}
	}
	s.pending.items = rest
	s.mu.Unlock()

	for _, pm := range due {
		s.apply(pm.msg)
	}
}

func (s *Scheduler) resetLinePositionsLocked() {
	for _, lr := range s.lines {
		lr.frameIdx = 0
		lr.fractionalBeat = 0
	}
	// Reset each line to its configured start_frame rather than absolute 0.
	for i, lr := range s.lines {
		line, err := s.scn.Line(i)
		if err != nil {
			continue
		}
		start, _ := line.PlayBounds()
		lr.frameIdx = start
	}
}
