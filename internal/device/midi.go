package device

import (
	"fmt"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // registers the platform MIDI driver
)

// midiHandle adapts a MIDI output (real port or in-process virtual loopback)
// to the registry's handle contract.
type midiHandle struct {
	mu      sync.Mutex
	out     drivers.Out // nil for a virtual device
	send    func(gomidi.Message) error
	virtual chan gomidi.Message // non-nil only for virtual devices
}

func (h *midiHandle) Send(payload any) error {
	msg, ok := payload.(gomidi.Message)
	if !ok {
		return fmt.Errorf("device: midi handle got non-MIDI payload %T", payload)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.virtual != nil {
		select {
		case h.virtual <- msg:
		default:
			// Loopback buffer full: drop rather than block the dispatcher.
		}
		return nil
	}
	return h.send(msg)
}

func (h *midiHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.out != nil {
		return h.out.Close()
	}
	if h.virtual != nil {
		close(h.virtual)
	}
	return nil
}

// Messages exposes the loopback channel of a virtual MIDI device, e.g. for
// bridging into the AudioEngine. Returns nil for a real (non-virtual) port.
func (h *midiHandle) Messages() <-chan gomidi.Message {
	return h.virtual
}

// ConnectMIDI opens system MIDI in and out under the given name and
// registers both directions as one entry.
func (r *Registry) ConnectMIDI(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.outputs[name]; ok && e.connected {
		return fmt.Errorf("device: %q already connected", name)
	}

	out, err := gomidi.FindOutPort(name)
	if err != nil {
		return fmt.Errorf("device: MIDI out port %q not found: %w", name, err)
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		return fmt.Errorf("device: opening MIDI out %q: %w", name, err)
	}

	r.outputs[name] = &entry{
		name: name, kind: KindMidi, direction: DirInOut,
		address: name, connected: true,
		h: &midiHandle{out: out, send: send},
	}
	return nil
}

// DisconnectMIDI removes both directions from the registry, drops the
// handle, and unassigns the device's slot.
func (r *Registry) DisconnectMIDI(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.outputs[name]
	if !ok || e.kind != KindMidi {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if e.h != nil {
		_ = e.h.Close()
	}
	delete(r.outputs, name)
	r.unassignNameLocked(name)
	return nil
}

// CreateVirtualMIDI creates an in-process virtual MIDI in+out pair: messages
// sent to it land on a loopback channel rather than an OS-level port, since
// no library in this stack exposes portable virtual-port creation.
func (r *Registry) CreateVirtualMIDI(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.outputs[name]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadyExists, name)
	}
	r.outputs[name] = &entry{
		name: name, kind: KindVirtualMidi, direction: DirInOut,
		connected: true,
		h:         &midiHandle{virtual: make(chan gomidi.Message, 256)},
	}
	return nil
}

// PanicAllMIDI emits CC 123 (all notes off) with value 0 on all 16 channels
// of every connected MIDI output (real or virtual).
func (r *Registry) PanicAllMIDI() {
	r.mu.RLock()
	handles := make([]*midiHandle, 0, len(r.outputs))
	for _, e := range r.outputs {
		if e.kind == KindMidi || e.kind == KindVirtualMidi {
			if mh, ok := e.h.(*midiHandle); ok {
				handles = append(handles, mh)
			}
		}
	}
	r.mu.RUnlock()

	for _, h := range handles {
		for ch := uint8(0); ch < 16; ch++ {
			_ = h.Send(gomidi.ControlChange(ch, 123, 0))
		}
	}
}
