package scheduler

import (
	"github.com/zurustar/bubocore/internal/clock"
	"github.com/zurustar/bubocore/internal/scene"
)

// advance runs §4.E step 4: advances every line's fractional position by
// deltaBeats*speedFactor, evaluating every frame boundary crossed, then
// checks whether all lines wrapped within this tick (EndOfScene eligibility).
func (s *Scheduler) advance(deltaBeats float64, now clock.Snapshot) {
	s.mu.Lock()
	s.ensureLinesLocked()
	lineCount := s.scn.LineCount()
	anyWrapped := make([]bool, lineCount)
	s.mu.Unlock()

	for i := 0; i < lineCount; i++ {
		wrapped := s.advanceLine(i, deltaBeats, now)
		if i < len(anyWrapped) {
			anyWrapped[i] = wrapped
		}
	}

	if lineCount > 0 {
		allWrapped := true
		for _, w := range anyWrapped {
			if !w {
				allWrapped = false
				break
			}
		}
		if allWrapped {
			s.applyEndOfScene()
		}
	}
}

// advanceLine advances one line's fractional beat position, crossing as many
// frame boundaries as the delta spans, evaluating each new frame entered.
// Returns true if the line wrapped from its play range's last frame back to
// its first during this call.
func (s *Scheduler) advanceLine(lineIdx int, deltaBeats float64, now clock.Snapshot) bool {
	line, err := s.scn.Line(lineIdx)
	if err != nil {
		return false
	}

	s.mu.Lock()
	if lineIdx >= len(s.lines) {
		s.mu.Unlock()
		return false
	}
	lr := s.lines[lineIdx]
	s.mu.Unlock()

	lr.fractionalBeat += deltaBeats * effectiveSpeed(line)
	wrapped := false

	// Guard against runaway loops if a frame has a degenerate zero length.
	for guard := 0; guard < 10_000; guard++ {
		if lr.frameIdx < 0 || lr.frameIdx >= len(line.Frames) {
			break
		}
		frame := line.Frames[lr.frameIdx]
		if frame.Length <= 0 || lr.fractionalBeat < frame.Length {
			break
		}
		lr.fractionalBeat -= frame.Length

		start, end := line.PlayBounds()
		next := lr.frameIdx + 1
		if next > end || next >= len(line.Frames) {
			next = start
			wrapped = true
		}
		lr.frameIdx = next

		s.publish(NotifyFramePositionChanged, FramePositionChangedPayload{
			LineIdx: lineIdx, FrameIdx: lr.frameIdx, Beat: now.Beats,
		})

		if lr.frameIdx >= 0 && lr.frameIdx < len(line.Frames) {
			nf := line.Frames[lr.frameIdx]
			if nf.Enabled {
				s.evaluateFrame(lineIdx, lr.frameIdx, nf, lr.scope, now)
			}
		}
	}
	return wrapped
}

func effectiveSpeed(line *scene.Line) float64 {
	if line.SpeedFactor <= 0 {
		return 1
	}
	return line.SpeedFactor
}
