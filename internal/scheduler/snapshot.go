package scheduler

import "github.com/zurustar/bubocore/internal/scene"

// Snapshot is a point-in-time, client-distributable view of scene + clock +
// playback state (§4.G "On GetSnapshot, the server returns a Snapshot
// consistent with the moment of the call").
type Snapshot struct {
	Scene    *scene.Scene
	Tempo    float64
	Beat     float64
	Micros   uint64
	Quantum  float64
	Playback PlaybackState
}

// Snapshot clones the scene under its own lock and pairs it with a
// consistent clock reading, satisfying GetSnapshot without blocking the
// tick loop for longer than the clone takes.
func (s *Scheduler) Snapshot() Snapshot {
	now := s.clk.Now()
	return Snapshot{
		Scene:    s.scn.Clone(),
		Tempo:    now.Tempo,
		Beat:     now.Beats,
		Micros:   now.Micros,
		Quantum:  now.Quantum,
		Playback: s.Playback(),
	}
}
