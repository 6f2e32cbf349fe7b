package device

import (
	"net"
	"strconv"
)

// OutputSnapshot captures enough of one registered output to recreate it
// (§4.B: "capture name/kind/slot/address for every output").
type OutputSnapshot struct {
	Name string
	Kind Kind
	Slot *int // nil if unassigned

	// OSC only.
	IP   string
	Port int
}

// Snapshot is a point-in-time capture of the registry's outputs and slot
// assignments, independent of any live handle (sockets, ports, synthesizers).
type Snapshot struct {
	Outputs []OutputSnapshot
}

// Snapshot captures every registered output except the built-in Log device,
// which always exists and needs no restoration.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bySlot := make(map[string]int)
	for slot := MinSlot; slot <= MaxSlot; slot++ {
		if name := r.slots[slot]; name != "" {
			bySlot[name] = slot
		}
	}

	snap := Snapshot{}
	for name, e := range r.outputs {
		if name == r.logName {
			continue
		}
		os := OutputSnapshot{Name: name, Kind: e.kind}
		if slot, ok := bySlot[name]; ok {
			s := slot
			os.Slot = &s
		}
		if e.kind == KindOsc {
			if host, portStr, err := net.SplitHostPort(e.address); err == nil {
				os.IP = host
				if p, err := strconv.Atoi(portStr); err == nil {
					os.Port = p
				}
			}
		}
		snap.Outputs = append(snap.Outputs, os)
	}
	return snap
}

// Restore reconstructs a previously captured registry state. Virtual MIDI and
// OSC outputs are fully recreated. Physical MIDI outputs are reconnected by
// name if the host exposes a port with that name; otherwise the output is
// kept in the registry marked Missing so List still reports it, and
// reconnection can be retried later by name. AudioEngine outputs are not
// restorable from a snapshot alone (they need a soundfont to reload) and are
// dropped with a log warning; callers that need them back must recreate them
// explicitly.
func (r *Registry) Restore(snap Snapshot) {
	r.mu.Lock()
	for name, e := range r.outputs {
		if name == r.logName {
			continue
		}
		if e.kind == KindVirtualMidi || e.kind == KindOsc {
			if e.h != nil {
				_ = e.h.Close()
			}
			delete(r.outputs, name)
			r.unassignNameLocked(name)
		}
	}
	r.mu.Unlock()

	for _, os := range snap.Outputs {
		switch os.Kind {
		case KindVirtualMidi:
			if err := r.CreateVirtualMIDI(os.Name); err != nil {
				r.log.Warn("restore: recreating virtual MIDI device failed", "name", os.Name, "error", err)
				continue
			}
		case KindOsc:
			if err := r.CreateOSC(os.Name, os.IP, os.Port); err != nil {
				r.log.Warn("restore: recreating OSC device failed", "name", os.Name, "error", err)
				continue
			}
		case KindMidi:
			if err := r.ConnectMIDI(os.Name); err != nil {
				r.log.Warn("restore: physical MIDI device unavailable, marking missing", "name", os.Name, "error", err)
				r.mu.Lock()
				r.outputs[os.Name] = &entry{name: os.Name, kind: KindMidi, direction: DirInOut, missing: true}
				r.mu.Unlock()
			}
		case KindAudioEngine:
			r.log.Warn("restore: AudioEngine device cannot be restored without a soundfont, skipping", "name", os.Name)
			continue
		default:
			continue
		}
		if os.Slot != nil {
			if err := r.AssignSlot(*os.Slot, os.Name); err != nil {
				r.log.Warn("restore: re-assigning slot failed", "name", os.Name, "slot", *os.Slot, "error", err)
			}
		}
	}
}
