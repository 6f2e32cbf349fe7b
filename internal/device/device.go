// Package device implements the Device Registry (§4.B): named MIDI, OSC,
// AudioEngine, and Log output endpoints, the 16 numbered slots (plus the
// reserved slot 0 for Log) that bind to them, and the translation of a
// ConcreteEvent into the TimedMessages the dispatcher delivers.
package device

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Kind tags which transport a registered output uses.
type Kind int

const (
	KindMidi Kind = iota
	KindVirtualMidi
	KindOsc
	KindAudioEngine
	KindLog
)

func (k Kind) String() string {
	switch k {
	case KindMidi:
		return "midi"
	case KindVirtualMidi:
		return "virtual_midi"
	case KindOsc:
		return "osc"
	case KindAudioEngine:
		return "audio_engine"
	case KindLog:
		return "log"
	default:
		return "unknown"
	}
}

// Direction describes which way data flows for a registered device.
type Direction int

const (
	DirOut Direction = iota
	DirInOut
)

func (d Direction) String() string {
	if d == DirInOut {
		return "in+out"
	}
	return "out"
}

var (
	ErrNotFound      = errors.New("device: not found")
	ErrAlreadyExists = errors.New("device: name already registered")
	ErrSlotRange     = errors.New("device: slot must be in 1..=16")
	ErrSlotTaken     = errors.New("device: slot already bound to another device")
	ErrInvalidAddr   = errors.New("device: invalid address")
)

const (
	MinSlot = 1
	MaxSlot = 16
	// LogSlot is the fixed, reserved slot for the built-in Log device.
	LogSlot = 0
)

// handle is the dispatcher-facing side of a registered output: something
// that can accept a translated payload.
type handle interface {
	Send(payload any) error
	Close() error
}

// entry is one registered output.
type entry struct {
	name      string
	kind      Kind
	direction Direction
	address   string // "ip:port" for OSC, port name for MIDI
	connected bool
	missing   bool // set by Restore when a physical MIDI name could not be reconnected
	h         handle
}

// Info is the read-only view returned by List.
type Info struct {
	Slot      *int
	Name      string
	Kind      Kind
	Direction Direction
	Connected bool
	Address   string
	Missing   bool
}

// Registry is the Device Registry: the set of registered outputs plus the
// slot table that binds up to 16 of them (slot 0 is always Log).
type Registry struct {
	mu      sync.RWMutex
	outputs map[string]*entry
	slots   [MaxSlot + 1]string // slots[0] == "" always; LogSlot is handled separately
	log     *slog.Logger

	logName string
}

// New creates an empty registry with the built-in Log device pre-registered
// at slot 0.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		outputs: make(map[string]*entry),
		log:     logger,
		logName: "log",
	}
	r.outputs[r.logName] = &entry{
		name:      r.logName,
		kind:      KindLog,
		direction: DirOut,
		connected: true,
		h:         newLogHandle(logger),
	}
	return r
}

// List returns all known devices sorted by slot (assigned first ascending,
// unassigned last alphabetical), per §4.B.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bySlot := make(map[string]int)
	for slot := MinSlot; slot <= MaxSlot; slot++ {
		if name := r.slots[slot]; name != "" {
			bySlot[name] = slot
		}
	}

	infos := make([]Info, 0, len(r.outputs))
	for name, e := range r.outputs {
		info := Info{
			Name: name, Kind: e.kind, Direction: e.direction,
			Connected: e.connected, Address: e.address, Missing: e.missing,
		}
		if name == r.logName {
			zero := LogSlot
			info.Slot = &zero
		} else if slot, ok := bySlot[name]; ok {
			s := slot
			info.Slot = &s
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		a, b := infos[i], infos[j]
		switch {
		case a.Slot != nil && b.Slot != nil:
			return *a.Slot < *b.Slot
		case a.Slot != nil:
			return true
		case b.Slot != nil:
			return false
		default:
			return a.Name < b.Name
		}
	})
	return infos
}

// AssignSlot binds slot to name, unbinding any prior holder of name from any
// other slot first.
func (r *Registry) AssignSlot(slot int, name string) error {
	if slot < MinSlot || slot > MaxSlot {
		return fmt.Errorf("%w: %d", ErrSlotRange, slot)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.outputs[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	for s, n := range r.slots {
		if n == name {
			r.slots[s] = ""
		}
	}
	r.slots[slot] = name
	return nil
}

// UnassignSlot clears slot. Clearing an already-empty slot succeeds.
func (r *Registry) UnassignSlot(slot int) error {
	if slot < MinSlot || slot > MaxSlot {
		return fmt.Errorf("%w: %d", ErrSlotRange, slot)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[slot] = ""
	return nil
}

// unassignNameLocked clears whichever slot (if any) currently holds name. Callers
// must hold r.mu.
func (r *Registry) unassignNameLocked(name string) {
	for s, n := range r.slots {
		if n == name {
			r.slots[s] = ""
		}
	}
}

// nameForSlotLocked resolves a device slot to its registered entry. Callers
// must hold r.mu (read or write).
func (r *Registry) nameForSlotLocked(slot int) (*entry, bool) {
	if slot == LogSlot {
		return r.outputs[r.logName], true
	}
	if slot < MinSlot || slot > MaxSlot {
		return nil, false
	}
	name := r.slots[slot]
	if name == "" {
		return nil, false
	}
	e, ok := r.outputs[name]
	return e, ok
}

// RemoveOutput drops a registration and unassigns its slot.
func (r *Registry) RemoveOutput(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.outputs[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if e.h != nil {
		_ = e.h.Close()
	}
	delete(r.outputs, name)
	r.unassignNameLocked(name)
	return nil
}
