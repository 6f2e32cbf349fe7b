package device

import (
	"io"
	"log/slog"
	"testing"

	"github.com/zurustar/bubocore/internal/clock"
	"github.com/zurustar/bubocore/internal/lang"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRegistryHasLogAtSlotZero(t *testing.T) {
	r := New(discardLogger())
	infos := r.List()
	if len(infos) != 1 {
		t.Fatalf("expected exactly the built-in log device, got %d entries", len(infos))
	}
	if infos[0].Name != "log" || infos[0].Slot == nil || *infos[0].Slot != LogSlot {
		t.Fatalf("log device not at slot 0: %+v", infos[0])
	}
}

func TestCreateVirtualMIDIAndAssignSlot(t *testing.T) {
	r := New(discardLogger())
	if err := r.CreateVirtualMIDI("synth-a"); err != nil {
		t.Fatalf("CreateVirtualMIDI: %v", err)
	}
	if err := r.CreateVirtualMIDI("synth-a"); err == nil {
		t.Fatalf("expected duplicate name to fail")
	}
	if err := r.AssignSlot(1, "synth-a"); err != nil {
		t.Fatalf("AssignSlot: %v", err)
	}
	if err := r.AssignSlot(99, "synth-a"); err == nil {
		t.Fatalf("expected out-of-range slot to fail")
	}
}

func TestAssignSlotMovesPriorHolder(t *testing.T) {
	r := New(discardLogger())
	_ = r.CreateVirtualMIDI("a")
	_ = r.AssignSlot(1, "a")
	_ = r.CreateVirtualMIDI("b")
	if err := r.AssignSlot(1, "b"); err != nil {
		t.Fatalf("AssignSlot: %v", err)
	}

	infos := r.List()
	var aSlot, bSlot *int
	for _, info := range infos {
		switch info.Name {
		case "a":
			aSlot = info.Slot
		case "b":
			bSlot = info.Slot
		}
	}
	if aSlot != nil {
		t.Fatalf("expected a to be unassigned after losing slot 1, got %v", *aSlot)
	}
	if bSlot == nil || *bSlot != 1 {
		t.Fatalf("expected b at slot 1, got %v", bSlot)
	}
}

func TestListOrdersAssignedBeforeUnassignedAlphabetical(t *testing.T) {
	r := New(discardLogger())
	_ = r.CreateVirtualMIDI("zeta")
	_ = r.CreateVirtualMIDI("alpha")
	_ = r.CreateVirtualMIDI("beta")
	_ = r.AssignSlot(5, "beta")

	infos := r.List()
	var order []string
	for _, info := range infos {
		order = append(order, info.Name)
	}
	// log (slot 0), beta (slot 5), then unassigned alphabetical: alpha, zeta.
	want := []string{"log", "beta", "alpha", "zeta"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRemoveOutputUnassignsSlot(t *testing.T) {
	r := New(discardLogger())
	_ = r.CreateVirtualMIDI("a")
	_ = r.AssignSlot(3, "a")
	if err := r.RemoveOutput("a"); err != nil {
		t.Fatalf("RemoveOutput: %v", err)
	}
	if err := r.RemoveOutput("a"); err == nil {
		t.Fatalf("expected second removal to fail")
	}
	if err := r.AssignSlot(3, "a"); err == nil {
		t.Fatalf("expected assigning a removed name to fail")
	}
}

func TestMapEventUnassignedSlotWarnsToLog(t *testing.T) {
	r := New(discardLogger())
	clk := clock.New(120, 4, nil)
	msgs := r.MapEvent(lang.ConcreteEvent{Kind: lang.EventMidiNote, DeviceSlot: 7}, 1000, clk)
	if len(msgs) != 1 {
		t.Fatalf("expected one fallback message, got %d", len(msgs))
	}
	p, ok := msgs[0].Payload.(LogPayload)
	if !ok || p.Severity != "warn" {
		t.Fatalf("expected warn LogPayload, got %+v", msgs[0].Payload)
	}
}

func TestMapEventOutOfRangeSlotErrorsToLog(t *testing.T) {
	r := New(discardLogger())
	clk := clock.New(120, 4, nil)
	msgs := r.MapEvent(lang.ConcreteEvent{Kind: lang.EventMidiNote, DeviceSlot: 42}, 1000, clk)
	if len(msgs) != 1 {
		t.Fatalf("expected one fallback message, got %d", len(msgs))
	}
	p, ok := msgs[0].Payload.(LogPayload)
	if !ok || p.Severity != "error" {
		t.Fatalf("expected error LogPayload, got %+v", msgs[0].Payload)
	}
}

func TestMapEventMidiNoteSplitsIntoOnOff(t *testing.T) {
	r := New(discardLogger())
	clk := clock.New(120, 4, nil)
	_ = r.CreateVirtualMIDI("synth")
	_ = r.AssignSlot(1, "synth")

	event := lang.ConcreteEvent{
		Kind: lang.EventMidiNote, Channel: 0, Pitch: 60, Velocity: 100,
		DurationBeats: 1, DeviceSlot: 1,
	}
	msgs := r.MapEvent(event, 10_000, clk)
	if len(msgs) != 2 {
		t.Fatalf("expected NoteOn+NoteOff, got %d", len(msgs))
	}
	if msgs[0].DeadlineMicros != 10_000 {
		t.Fatalf("NoteOn deadline = %d, want 10000", msgs[0].DeadlineMicros)
	}
	if msgs[1].DeadlineMicros <= msgs[0].DeadlineMicros {
		t.Fatalf("NoteOff deadline %d should be after NoteOn deadline %d", msgs[1].DeadlineMicros, msgs[0].DeadlineMicros)
	}
}

func TestMapEventRoutesToLogDevice(t *testing.T) {
	r := New(discardLogger())
	clk := clock.New(120, 4, nil)
	event := lang.ConcreteEvent{Kind: lang.EventLog, Severity: "info", Text: "hello", DeviceSlot: LogSlot}
	msgs := r.MapEvent(event, 500, clk)
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	p, ok := msgs[0].Payload.(LogPayload)
	if !ok || p.Text != "hello" {
		t.Fatalf("expected LogPayload{Text: hello}, got %+v", msgs[0].Payload)
	}
}

func TestSnapshotAndRestoreRoundTripsVirtualMIDI(t *testing.T) {
	r := New(discardLogger())
	_ = r.CreateVirtualMIDI("synth")
	_ = r.AssignSlot(4, "synth")

	snap := r.Snapshot()

	r2 := New(discardLogger())
	r2.Restore(snap)

	infos := r2.List()
	found := false
	for _, info := range infos {
		if info.Name == "synth" {
			found = true
			if info.Slot == nil || *info.Slot != 4 {
				t.Fatalf("expected synth restored at slot 4, got %+v", info)
			}
		}
	}
	if !found {
		t.Fatalf("expected synth to be restored, got %+v", infos)
	}
}

func TestEncodeOSCMessageRoundTrip(t *testing.T) {
	packet, err := encodeOSCMessage("/midi/noteon", []any{0, 60, 100})
	if err != nil {
		t.Fatalf("encodeOSCMessage: %v", err)
	}
	if len(packet)%4 != 0 {
		t.Fatalf("OSC packet length %d not 4-byte aligned", len(packet))
	}
	// Address pattern is null-terminated and padded: "/midi/noteon" is 12
	// bytes, already a multiple of 4, so one extra all-zero word follows.
	if string(packet[:12]) != "/midi/noteon" {
		t.Fatalf("unexpected address pattern in packet: %q", packet[:12])
	}
}
