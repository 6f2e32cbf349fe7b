// Package clock provides the tempo-synchronized musical clock shared by the
// scheduler and the rest of the engine: it maps beats to wall-clock
// microseconds and back, accepts discontinuous tempo/quantum changes, and
// optionally mirrors those changes to a peer tempo-sync source.
package clock

import (
	"log/slog"
	"sync"
	"time"
)

// MinTempo and MaxTempo bound valid set_tempo calls.
const (
	MinTempo = 20.0
	MaxTempo = 999.0

	MaxQuantum = 16.0
)

// TempoEvent marks a discontinuous tempo change effective from AtMicros
// onward. Clock keeps the full history so that beat/micros conversions
// remain correct for times before the most recent change.
type TempoEvent struct {
	AtMicros uint64
	Tempo    float64
}

// PeerUpdate is an externally-observed tempo/quantum change, exchanged with
// a peer tempo-sync source.
type PeerUpdate struct {
	Tempo    float64
	Quantum  float64
	AtMicros uint64
}

// PeerClockSource is the clock's one attachment point for a peer
// tempo-sync transport. When absent, the clock runs in local-only mode.
type PeerClockSource interface {
	// Publish mirrors a locally-originated update to peers.
	Publish(update PeerUpdate)
	// Updates delivers peer-originated updates to be applied locally.
	Updates() <-chan PeerUpdate
}

// Clock is the monotonically-increasing musical time shared across the
// session. All reads return an internally-consistent snapshot; all writes
// are serialized through a single mutex, matching the "writes go through a
// single serialized interface; reads are atomic" shared-resource policy.
type Clock struct {
	mu sync.Mutex

	origin  time.Time // wall-clock instant corresponding to beat_origin_micros == 0
	history []TempoEvent
	quantum float64

	peer     PeerClockSource
	peerDone chan struct{}

	startStopSync bool
	playing       bool
	stopAtBeat    float64

	log *slog.Logger
}

// Snapshot is a consistent (beats, micros, tempo, quantum) reading.
type Snapshot struct {
	Beats   float64
	Micros  uint64
	Tempo   float64
	Quantum float64
}

// New creates a Clock starting at the given tempo and quantum, with beat 0
// anchored to the current wall-clock instant. log may be nil, in which case
// slog.Default() is used.
func New(initialTempo, quantum float64, log *slog.Logger) *Clock {
	if log == nil {
		log = slog.Default()
	}
	return &Clock{
		origin:  time.Now(),
		history: []TempoEvent{{AtMicros: 0, Tempo: initialTempo}},
		quantum: quantum,
		log:     log,
	}
}

// Peer attaches a peer tempo-sync source. Passing nil detaches any existing
// peer and returns the clock to local-only mode.
func (c *Clock) Peer(p PeerClockSource) {
	c.mu.Lock()
	if c.peerDone != nil {
		close(c.peerDone)
		c.peerDone = nil
	}
	c.peer = p
	c.mu.Unlock()

	if p == nil {
		return
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.peerDone = done
	c.mu.Unlock()

	go func() {
		for {
			select {
			case <-done:
				return
			case update, ok := <-p.Updates():
				if !ok {
					return
				}
				c.applyPeerUpdate(update)
			}
		}
	}()
}

func (c *Clock) applyPeerUpdate(u PeerUpdate) {
	c.mu.Lock()
	c.setTempoLocked(u.Tempo, u.AtMicros)
	if u.Quantum > 0 && u.Quantum <= MaxQuantum {
		c.quantum = u.Quantum
	}
	c.mu.Unlock()
	c.log.Debug("clock applied peer update", slog.Float64("tempo", u.Tempo), slog.Float64("quantum", u.Quantum))
}

// nowMicrosLocked returns the current wall-clock micros relative to origin.
// Must be called with c.mu held.
func (c *Clock) nowMicrosLocked() uint64 {
	return uint64(time.Since(c.origin).Microseconds())
}

// Now returns a consistent (beats, micros, tempo, quantum) snapshot. It
// never blocks.
func (c *Clock) Now() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	micros := c.nowMicrosLocked()
	return Snapshot{
		Beats:   c.microsToBeatsLocked(micros),
		Micros:  micros,
		Tempo:   c.currentTempoLocked(micros),
		Quantum: c.quantum,
	}
}

// NowBeats is a convenience accessor equivalent to Now().Beats.
func (c *Clock) NowBeats() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.microsToBeatsLocked(c.nowMicrosLocked())
}

// NowMicros is a convenience accessor equivalent to Now().Micros.
func (c *Clock) NowMicros() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowMicrosLocked()
}

func (c *Clock) currentTempoLocked(atMicros uint64) float64 {
	tempo := c.history[0].Tempo
	for _, ev := range c.history {
		if ev.AtMicros > atMicros {
			break
		}
		tempo = ev.Tempo
	}
	return tempo
}

// microsToBeatsLocked walks the tempo history segment by segment, the same
// traversal shape as a tempo-map walk over a sequence of tempo changes: each
// segment contributes (segment_duration_micros / 60e6) * tempo beats.
func (c *Clock) microsToBeatsLocked(micros uint64) float64 {
	var beats float64
	for i, ev := range c.history {
		segStart := ev.AtMicros
		if segStart > micros {
			break
		}
		segEnd := micros
		if i+1 < len(c.history) && c.history[i+1].AtMicros < micros {
			segEnd = c.history[i+1].AtMicros
		}
		if segEnd < segStart {
			continue
		}
		durMicros := float64(segEnd - segStart)
		beats += (durMicros / 60_000_000.0) * ev.Tempo
	}
	return beats
}

// MicrosToBeats converts an arbitrary absolute micros value to beats, using
// the same tempo history traversal as Now.
func (c *Clock) MicrosToBeats(micros uint64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.microsToBeatsLocked(micros)
}

// BeatsToMicros converts a beat offset (relative to the current instant) to
// an absolute micros value on the clock's own time base (micros since the
// clock origin), using the tempo in effect right now; it does not predict
// future tempo changes.
func (c *Clock) BeatsToMicros(beatOffset float64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowMicrosLocked()
	tempo := c.currentTempoLocked(now)
	deltaMicros := (beatOffset / tempo) * 60_000_000.0
	return now + uint64(deltaMicros)
}

// DurationMicros converts a beat duration to a micros duration using the
// tempo in effect right now, without reference to any particular instant.
// The dispatcher uses this to compute a note's NoteOff deadline relative to
// its NoteOn deadline.
func (c *Clock) DurationMicros(beats float64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	tempo := c.currentTempoLocked(c.nowMicrosLocked())
	return int64((beats / tempo) * 60_000_000.0)
}

// SetTempo sets a new tempo effective from atMicros onward. bpm must be in
// [20, 999]; callers are expected to validate before calling (the Scheduler
// rejects out-of-range values at the command boundary per §7).
func (c *Clock) SetTempo(bpm float64, atMicros uint64) {
	c.mu.Lock()
	c.setTempoLocked(bpm, atMicros)
	peer := c.peer
	c.mu.Unlock()

	if peer != nil {
		peer.Publish(PeerUpdate{Tempo: bpm, AtMicros: atMicros})
	}
}

func (c *Clock) setTempoLocked(bpm float64, atMicros uint64) {
	// Insert keeping history sorted by AtMicros; a repeated AtMicros replaces.
	for i, ev := range c.history {
		if ev.AtMicros == atMicros {
			c.history[i].Tempo = bpm
			return
		}
		if ev.AtMicros > atMicros {
			c.history = append(c.history, TempoEvent{})
			copy(c.history[i+1:], c.history[i:])
			c.history[i] = TempoEvent{AtMicros: atMicros, Tempo: bpm}
			return
		}
	}
	c.history = append(c.history, TempoEvent{AtMicros: atMicros, Tempo: bpm})
}

// SetQuantum sets the quantum in beats. q must be in (0, 16].
func (c *Clock) SetQuantum(q float64) {
	c.mu.Lock()
	c.quantum = q
	peer := c.peer
	c.mu.Unlock()

	if peer != nil {
		peer.Publish(PeerUpdate{Quantum: q})
	}
}

// Playing reports whether transport is currently running.
func (c *Clock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// TransportStart marks the transport running. The Scheduler is the
// authoritative observer of this edge; Clock just records it so Playing()
// reports it for clients querying clock state directly.
func (c *Clock) TransportStart() {
	c.mu.Lock()
	c.playing = true
	c.mu.Unlock()
}

// TransportStop marks the transport stopped.
func (c *Clock) TransportStop() {
	c.mu.Lock()
	c.playing = false
	c.mu.Unlock()
}
