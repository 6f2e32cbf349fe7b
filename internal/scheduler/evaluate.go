package scheduler

import (
	"fmt"
	"time"

	"github.com/zurustar/bubocore/internal/clock"
	"github.com/zurustar/bubocore/internal/lang"
	"github.com/zurustar/bubocore/internal/scene"
)

// evaluateFrame runs every language's compiled Program for one newly-entered
// frame (§4.E step 4b-c). Runtime panics inside a Program's Evaluate are
// caught and turned into a Log event for that language, suppressing further
// events from that evaluation without disabling the frame (§4.E "Failure
// semantics").
func (s *Scheduler) evaluateFrame(lineIdx, frameIdx int, frame *scene.Frame, lineScope *scene.Scope, now clock.Snapshot) {
	for langName, script := range frame.Scripts {
		program, ok := script.Compiled.(lang.Program)
		if !ok || program == nil {
			continue
		}
		events := s.runProgram(program, frame.Length, lineScope, lineIdx, frameIdx)
		for _, te := range events {
			s.dispatchEvent(te, now)
		}
		_ = langName
	}
}

// runProgram evaluates one Program, recovering from a panic and converting
// it into a single synthetic Log event.
func (s *Scheduler) runProgram(program lang.Program, frameLengthBeats float64, lineScope *scene.Scope, lineIdx, frameIdx int) (events []lang.TimedEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduler: script evaluation panicked", "line", lineIdx, "frame", frameIdx, "error", r)
			s.publish(NotifyLog, LogPayload{Severity: "error", Text: fmt.Sprintf("line %d frame %d: evaluation error: %v", lineIdx, frameIdx, r)})
			events = nil
		}
	}()

	ctx := lang.NewEvaluationContext(frameLengthBeats, scene.NewVariableScopes(s.scn.Environment, s.scn.Global, lineScope), 0, int64(lineIdx), int64(frameIdx))
	result, err := s.langs.Evaluate(program, ctx)
	if err != nil {
		s.publish(NotifyLog, LogPayload{Severity: "error", Text: fmt.Sprintf("line %d frame %d: %v", lineIdx, frameIdx, err)})
		return nil
	}
	return result
}

// dispatchEvent converts one TimedEvent to an absolute deadline, resolves it
// through the Device Registry, and enqueues the resulting TimedMessages.
func (s *Scheduler) dispatchEvent(te lang.TimedEvent, now clock.Snapshot) {
	deadline := uint64(time.Now().UnixMicro() + s.clk.DurationMicros(te.Offset))
	msgs := s.devices.MapEvent(te.Event, deadline, s.clk)
	for _, m := range msgs {
		if err := s.disp.Enqueue(m); err != nil {
			s.log.Warn("scheduler: dispatcher rejected message", "device", m.DeviceName, "error", err)
		}
	}
}
