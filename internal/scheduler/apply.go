package scheduler

import (
	"fmt"

	"github.com/zurustar/bubocore/internal/lang"
	"github.com/zurustar/bubocore/internal/scene"
)

// apply dispatches one due SchedulerMessage to the scene/clock/device
// mutation it names, publishing the resulting Notification. Out-of-range
// scene mutations are logged as InternalError-equivalents and never poison
// scheduler state (§4.E "Failure semantics").
func (s *Scheduler) apply(msg SchedulerMessage) {
	switch cmd := msg.Command.(type) {
	case SetTempo:
		s.clk.SetTempo(cmd.BPM, s.clk.NowMicros())
		s.publish(NotifyTempoChanged, cmd.BPM)

	case SetQuantum:
		s.clk.SetQuantum(cmd.Quantum)
		s.publish(NotifyQuantumChanged, cmd.Quantum)

	case TransportStartCmd:
		s.mu.Lock()
		s.playback = Starting
		s.startAtBeat = cmd.AtBeat
		s.mu.Unlock()
		s.clk.TransportStart()
		s.publish(NotifyPlaybackStateChanged, PlaybackStateChangedPayload{State: Starting})

	case TransportStopCmd:
		s.mu.Lock()
		s.playback = Stopped
		s.mu.Unlock()
		s.clk.TransportStop()
		s.devices.PanicAllMIDI()
		s.publish(NotifyPlaybackStateChanged, PlaybackStateChangedPayload{State: Stopped})

	case SetSceneLength:
		s.reportErr(s.scn.SetLength(cmd.Length))
		s.publish(NotifyUpdatedScene, nil)

	case AddLine:
		s.mu.Lock()
		idx := s.scn.LineCount()
		err := s.scn.InsertLine(idx)
		if err == nil {
			s.lines = append(s.lines, &lineRuntime{scope: scene.NewScope(s.scn.Global)})
		}
		s.mu.Unlock()
		s.reportErr(err)
		s.publish(NotifyAddedLine, idx)

	case RemoveLine:
		s.mu.Lock()
		err := s.scn.RemoveLine(cmd.LineIdx)
		if err == nil && cmd.LineIdx < len(s.lines) {
			s.lines = append(s.lines[:cmd.LineIdx], s.lines[cmd.LineIdx+1:]...)
		}
		s.mu.Unlock()
		s.reportErr(err)
		s.publish(NotifyRemovedLine, cmd.LineIdx)

	case SetLineLength:
		s.reportErr(s.scn.SetLineLength(cmd.LineIdx, cmd.Length))
		s.publish(NotifyUpdatedFrames, cmd.LineIdx)

	case SetLineSpeedFactor:
		s.reportErr(s.scn.SetLineSpeed(cmd.LineIdx, cmd.Speed))
		s.publish(NotifyUpdatedFrames, cmd.LineIdx)

	case SetPlayRange:
		s.reportErr(s.scn.SetPlayRange(cmd.LineIdx, cmd.Start, cmd.End))
		s.publish(NotifyUpdatedFrames, cmd.LineIdx)

	case AddFrame:
		s.reportErr(s.scn.InsertFrame(cmd.LineIdx, cmd.FrameIdx, cmd.Length))
		s.publish(NotifyAddedFrame, cmd)

	case RemoveFrame:
		s.reportErr(s.scn.RemoveFrame(cmd.LineIdx, cmd.FrameIdx))
		s.publish(NotifyRemovedFrame, cmd)

	case EnableFrame:
		s.reportErr(s.scn.SetEnabled(cmd.LineIdx, cmd.FrameIdx, true))
		s.publish(NotifyUpdatedFrames, cmd)

	case DisableFrame:
		s.reportErr(s.scn.SetEnabled(cmd.LineIdx, cmd.FrameIdx, false))
		s.publish(NotifyUpdatedFrames, cmd)

	case SetScript:
		s.applySetScript(cmd)

	default:
		s.log.Warn("scheduler: unknown command type", "type", fmt.Sprintf("%T", cmd))
	}
}

// applySetScript implements §4.E's "Compilation" paragraph: compile on
// apply; replace the Program only on success; keep the prior one on failure.
func (s *Scheduler) applySetScript(cmd SetScript) {
	prior, _ := s.scn.Script(cmd.LineIdx, cmd.FrameIdx, cmd.Language)

	program, cerr := s.langs.Compile(cmd.Language, cmd.Content, lang.CompileContext{
		Language: cmd.Language, Line: cmd.LineIdx, Frame: cmd.FrameIdx,
	})

	next := &scene.Script{Language: cmd.Language, Content: cmd.Content}
	if cerr != nil {
		if prior != nil {
			next.Compiled = prior.Compiled
		}
		next.Error = cerr
		_ = s.reportErr(s.scn.SetScript(cmd.LineIdx, cmd.FrameIdx, cmd.Language, next))
		s.publish(NotifyCompilationUpdated, CompilationUpdatedPayload{
			LineIdx: cmd.LineIdx, FrameIdx: cmd.FrameIdx, Language: cmd.Language, Err: cerr,
		})
		return
	}

	next.Compiled = program
	_ = s.reportErr(s.scn.SetScript(cmd.LineIdx, cmd.FrameIdx, cmd.Language, next))
	s.publish(NotifyCompilationUpdated, CompilationUpdatedPayload{
		LineIdx: cmd.LineIdx, FrameIdx: cmd.FrameIdx, Language: cmd.Language, Err: nil,
	})
}

// reportErr logs a scene mutation failure without poisoning scheduler state,
// per §4.E: "Scene mutations with invalid indices ... do not poison the
// scheduler." Returns err unchanged for call-site convenience.
func (s *Scheduler) reportErr(err error) error {
	if err != nil {
		s.log.Warn("scheduler: mutation failed", "error", err)
		s.publish(NotifyLog, LogPayload{Severity: "warn", Text: err.Error()})
	}
	return err
}

// ensureLinesLocked grows s.lines to match the scene's current line count.
// Callers must hold s.mu.
func (s *Scheduler) ensureLinesLocked() {
	for len(s.lines) < s.scn.LineCount() {
		s.lines = append(s.lines, &lineRuntime{scope: scene.NewScope(s.scn.Global)})
	}
}

// Playback returns the current playback state.
func (s *Scheduler) Playback() PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playback
}
