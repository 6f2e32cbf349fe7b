package scheduler

// NotificationKind enumerates the taxonomy of §4.G's "sample" list. Only the
// entries the scheduler itself originates are represented here; purely
// session-level notifications (ChatReceived, ClientListChanged,
// PeerStartedEditingFrame, PeerStoppedEditingFrame) are emitted directly by
// the session server.
type NotificationKind int

const (
	NotifyUpdatedScene NotificationKind = iota
	NotifyAddedLine
	NotifyRemovedLine
	NotifyUpdatedFrames
	NotifyAddedFrame
	NotifyRemovedFrame
	NotifyPlaybackStateChanged
	NotifyFramePositionChanged
	NotifyLog
	NotifyTempoChanged
	NotifyQuantumChanged
	NotifyCompilationUpdated
	NotifyTick
)

// Notification is a scheduler-originated event, broadcast by the session
// server to all subscribed clients (subject to §4.G's throttling and
// self-authorship filtering, both applied by the session layer).
type Notification struct {
	Kind    NotificationKind
	Payload any
}

// FramePositionChangedPayload reports one line's new frame and beat
// position, per §4.E step 4a.
type FramePositionChangedPayload struct {
	LineIdx  int
	FrameIdx int
	Beat     float64
}

// PlaybackStateChangedPayload reports the new playback state.
type PlaybackStateChangedPayload struct {
	State PlaybackState
}

// LogPayload is a scheduler-originated log line (evaluation failures, etc).
type LogPayload struct {
	Severity string
	Text     string
}

// CompilationUpdatedPayload reports a SetScript mutation's outcome.
type CompilationUpdatedPayload struct {
	LineIdx, FrameIdx int
	Language          string
	Err               error // nil on success
}
