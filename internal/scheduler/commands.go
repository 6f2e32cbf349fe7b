package scheduler

// ActionTimingKind tags how a mutation's apply time is determined (§4.E).
type ActionTimingKind int

const (
	Immediate ActionTimingKind = iota
	AtBeat
	EndOfScene
)

// ActionTiming tags every mutation command with when it should apply.
type ActionTiming struct {
	Kind ActionTimingKind
	Beat uint64 // meaningful only when Kind == AtBeat; global beat count
}

// Command is the scheduler-level mutation surface: the subset of
// ClientMessage (§6) that mutates scene/playback/clock state rather than
// just reading it. Each concrete command type implements Command by being
// switched on in Scheduler.apply.
type Command interface {
	isCommand()
}

type SetTempo struct{ BPM float64 }
type SetQuantum struct{ Quantum float64 }
type TransportStartCmd struct{ AtBeat float64 }
type TransportStopCmd struct{}

type SetSceneLength struct{ Length int }
type AddLine struct{}
type RemoveLine struct{ LineIdx int }
type SetLineLength struct {
	LineIdx int
	Length  *float64
}
type SetLineSpeedFactor struct {
	LineIdx int
	Speed   float64
}
type SetPlayRange struct {
	LineIdx    int
	Start, End *int
}

type AddFrame struct {
	LineIdx, FrameIdx int
	Length            float64
}
type RemoveFrame struct{ LineIdx, FrameIdx int }
type EnableFrame struct{ LineIdx, FrameIdx int }
type DisableFrame struct{ LineIdx, FrameIdx int }

// SetScript is the compile-on-apply mutation (§4.E "Compilation").
type SetScript struct {
	LineIdx, FrameIdx int
	Language          string
	Content           string
}

func (SetTempo) isCommand()            {}
func (SetQuantum) isCommand()          {}
func (TransportStartCmd) isCommand()   {}
func (TransportStopCmd) isCommand()    {}
func (SetSceneLength) isCommand()      {}
func (AddLine) isCommand()             {}
func (RemoveLine) isCommand()          {}
func (SetLineLength) isCommand()       {}
func (SetLineSpeedFactor) isCommand()  {}
func (SetPlayRange) isCommand()        {}
func (AddFrame) isCommand()            {}
func (RemoveFrame) isCommand()         {}
func (EnableFrame) isCommand()         {}
func (DisableFrame) isCommand()        {}
func (SetScript) isCommand()           {}

// SchedulerMessage is one inbound mutation request, as handed to the
// scheduler by the session server's reader tasks.
type SchedulerMessage struct {
	Client  string
	Timing  ActionTiming
	Command Command
}
