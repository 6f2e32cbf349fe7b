package device

import (
	"fmt"

	"github.com/zurustar/bubocore/internal/clock"
	"github.com/zurustar/bubocore/internal/dispatcher"
	"github.com/zurustar/bubocore/internal/lang"
	gomidi "gitlab.com/gomidi/midi/v2"
)

// defaultAudioLatencyMicros models the "configured_latency" §4.B speaks of
// for AudioEngine triggers. There is no per-output latency configuration
// surface yet, so every AudioEngine output uses this fixed value.
const defaultAudioLatencyMicros = 5_000

// MapEvent resolves event's device_slot through the registry and translates
// it into the TimedMessages the dispatcher should deliver. baseMicros is the
// event's own absolute deadline (already computed by the scheduler as
// now_micros + beats_to_micros(beat_offset)); translation only adds further
// offsets for things like a note's duration. Always yields at least one
// message, per §4.B ("always yields at least a log").
func (r *Registry) MapEvent(event lang.ConcreteEvent, baseMicros uint64, clk *clock.Clock) []dispatcher.TimedMessage {
	r.mu.RLock()
	var target *entry
	switch {
	case event.DeviceSlot == LogSlot:
		target = r.outputs[r.logName]
	case event.DeviceSlot < MinSlot || event.DeviceSlot > MaxSlot:
		target = nil
	default:
		name := r.slots[event.DeviceSlot]
		if name == "" {
			target = nil
		} else if e, ok := r.outputs[name]; ok {
			target = e
		}
	}
	logEntry := r.outputs[r.logName]
	r.mu.RUnlock()

	if target == nil {
		severity := "warn"
		if event.DeviceSlot < MinSlot || event.DeviceSlot > MaxSlot {
			severity = "error"
		}
		return []dispatcher.TimedMessage{{
			DeadlineMicros: int64(baseMicros),
			Device:         logEntry.h,
			DeviceName:     r.logName,
			Payload: LogPayload{
				Severity: severity,
				Text:     fmt.Sprintf("event for unresolved device_slot %d: %+v", event.DeviceSlot, event),
			},
		}}
	}

	switch target.kind {
	case KindMidi, KindVirtualMidi:
		return translateToMIDI(event, baseMicros, target, clk)
	case KindOsc:
		return translateToOSC(event, baseMicros, target)
	case KindAudioEngine:
		return translateToAudioEngine(event, baseMicros, target)
	case KindLog:
		return []dispatcher.TimedMessage{logMessage(event, baseMicros, target)}
	}
	return nil
}

func logMessage(event lang.ConcreteEvent, baseMicros uint64, target *entry) dispatcher.TimedMessage {
	text := event.Text
	if text == "" {
		text = fmt.Sprintf("%+v", event)
	}
	severity := event.Severity
	if severity == "" {
		severity = "info"
	}
	return dispatcher.TimedMessage{
		DeadlineMicros: int64(baseMicros),
		Device:         target.h,
		DeviceName:     target.name,
		Payload:        LogPayload{Severity: severity, Text: text},
	}
}

func translateToMIDI(event lang.ConcreteEvent, baseMicros uint64, target *entry, clk *clock.Clock) []dispatcher.TimedMessage {
	switch event.Kind {
	case lang.EventMidiNote:
		ch, pitch, vel := uint8(event.Channel), uint8(event.Pitch), uint8(event.Velocity)
		offDeadline := int64(baseMicros) + clk.DurationMicros(event.DurationBeats)
		return []dispatcher.TimedMessage{
			{DeadlineMicros: int64(baseMicros), Device: target.h, DeviceName: target.name, Payload: gomidi.NoteOn(ch, pitch, vel)},
			{DeadlineMicros: offDeadline, Device: target.h, DeviceName: target.name, Payload: gomidi.NoteOff(ch, pitch)},
		}
	case lang.EventMidiCC:
		ch, cc, val := uint8(event.Channel), uint8(event.CC), uint8(event.Value)
		return []dispatcher.TimedMessage{
			{DeadlineMicros: int64(baseMicros), Device: target.h, DeviceName: target.name, Payload: gomidi.ControlChange(ch, cc, val)},
		}
	default:
		return nil
	}
}

func translateToOSC(event lang.ConcreteEvent, baseMicros uint64, target *entry) []dispatcher.TimedMessage {
	var packet []byte
	var err error
	switch event.Kind {
	case lang.EventOsc:
		packet, err = encodeOSCMessage(event.Path, event.Args)
	case lang.EventMidiNote:
		packet, err = encodeOSCMessage("/midi/noteon", []any{event.Channel, event.Pitch, event.Velocity})
	default:
		return nil
	}
	if err != nil {
		return []dispatcher.TimedMessage{{
			DeadlineMicros: int64(baseMicros), Device: target.h, DeviceName: target.name,
			Payload: nil,
		}}
	}
	return []dispatcher.TimedMessage{
		{DeadlineMicros: int64(baseMicros), Device: target.h, DeviceName: target.name, Payload: packet},
	}
}

func translateToAudioEngine(event lang.ConcreteEvent, baseMicros uint64, target *entry) []dispatcher.TimedMessage {
	if event.Kind != lang.EventAudioEngineTrigger {
		return nil
	}
	note, velocity, channel := 60, 100, 0
	if event.Params != nil {
		if n, ok := event.Params["note"].(int); ok {
			note = n
		}
		if v, ok := event.Params["velocity"].(int); ok {
			velocity = v
		}
	}
	trigger := AudioTrigger{
		Track: event.Track, SourceName: event.SourceName,
		Channel: channel, Note: note, Velocity: velocity,
	}
	return []dispatcher.TimedMessage{{
		DeadlineMicros: int64(baseMicros) + defaultAudioLatencyMicros,
		Device:         target.h, DeviceName: target.name, Payload: trigger,
	}}
}
