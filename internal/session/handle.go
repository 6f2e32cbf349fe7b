package session

import (
	"github.com/zurustar/bubocore/internal/project"
	"github.com/zurustar/bubocore/internal/scheduler"
)

// timingFrom converts the wire timing fields to a scheduler.ActionTiming,
// defaulting to Immediate for an unrecognized or absent kind.
func timingFrom(msg ClientMessage) scheduler.ActionTiming {
	switch msg.TimingKind {
	case "at_beat":
		return scheduler.ActionTiming{Kind: scheduler.AtBeat, Beat: msg.TimingBeat}
	case "end_of_scene":
		return scheduler.ActionTiming{Kind: scheduler.EndOfScene}
	default:
		return scheduler.ActionTiming{Kind: scheduler.Immediate}
	}
}

// handleMessage maps one inbound ClientMessage onto a scheduler mutation, a
// direct device-registry operation, a direct reply, or a peer broadcast.
func (s *Server) handleMessage(c *client, msg ClientMessage) {
	switch msg.Kind {
	case MsgChat:
		s.broadcast(ServerMessage{Kind: ReplyChat, Sender: c.name, Text: msg.Text}, c.name)

	case MsgGetClock:
		now := s.clk.Now()
		s.reply(c, ServerMessage{Kind: ReplyClockState, Tempo: now.Tempo, Beat: now.Beats, Micros: now.Micros, Quantum: now.Quantum})

	case MsgGetSnapshot:
		snap := s.sched.Snapshot()
		s.reply(c, ServerMessage{Kind: ReplyClockState, Tempo: snap.Tempo, Beat: snap.Beat, Micros: snap.Micros, Quantum: snap.Quantum})

	case MsgGetScene:
		sceneSnap, _ := project.ToSnapshot(s.sched.Snapshot().Scene, 0, 0, 0, 0, nil)
		s.reply(c, ServerMessage{Kind: ReplyScene, Scene: &sceneSnap.Scene})

	case MsgGetPeers:
		s.mu.RLock()
		peers := s.peerNamesLocked()
		s.mu.RUnlock()
		s.reply(c, ServerMessage{Kind: ReplyPeersUpdated, Peers: peers})

	case MsgRestoreDevices:
		s.mu.RLock()
		snap, ok := s.deviceSnapshot, s.hasDeviceSnapshot
		s.mu.RUnlock()
		if !ok {
			s.reply(c, ServerMessage{Kind: ReplyInternalError, Text: "no device snapshot available to restore"})
			return
		}
		s.devices.Restore(snap)
		s.reply(c, ServerMessage{Kind: ReplySuccess})
		s.broadcast(ServerMessage{Kind: ReplyDeviceList, Devices: toDeviceInfos(s.devices.List())}, "")

	case MsgRequestDeviceList:
		s.reply(c, ServerMessage{Kind: ReplyDeviceList, Devices: toDeviceInfos(s.devices.List())})

	case MsgGetScript:
		script, ok := s.sched.Snapshot().Scene.Script(msg.Line, msg.Frame, msg.Language)
		if !ok {
			s.reply(c, ServerMessage{Kind: ReplyInternalError, Text: "no such script"})
			return
		}
		s.reply(c, ServerMessage{Kind: ReplyScriptContent, Line: msg.Line, Frame: msg.Frame, Content: script.Content})

	case MsgSetTempo:
		s.enqueue(c, msg, scheduler.SetTempo{BPM: msg.Tempo})
	case MsgSetQuantum:
		s.enqueue(c, msg, scheduler.SetQuantum{Quantum: msg.Quantum})
	case MsgTransportStart:
		s.enqueue(c, msg, scheduler.TransportStartCmd{AtBeat: msg.AtBeat})
	case MsgTransportStop:
		s.enqueue(c, msg, scheduler.TransportStopCmd{})
	case MsgSetSceneLength:
		s.enqueue(c, msg, scheduler.SetSceneLength{Length: msg.N})
	case MsgSetLineLength:
		var length *float64
		if msg.HasValue {
			v := msg.Value
			length = &v
		}
		s.enqueue(c, msg, scheduler.SetLineLength{LineIdx: msg.Line, Length: length})
	case MsgSetLineSpeedFactor:
		s.enqueue(c, msg, scheduler.SetLineSpeedFactor{LineIdx: msg.Line, Speed: msg.Speed})
	case MsgAddLine:
		s.enqueue(c, msg, scheduler.AddLine{})
	case MsgRemoveLine:
		s.enqueue(c, msg, scheduler.RemoveLine{LineIdx: msg.Line})
	case MsgAddFrame:
		s.enqueue(c, msg, scheduler.AddFrame{LineIdx: msg.Line, FrameIdx: msg.Frame, Length: msg.Length})
	case MsgRemoveFrame:
		s.enqueue(c, msg, scheduler.RemoveFrame{LineIdx: msg.Line, FrameIdx: msg.Frame})
	case MsgEnableFrame:
		s.enqueue(c, msg, scheduler.EnableFrame{LineIdx: msg.Line, FrameIdx: msg.Frame})
	case MsgDisableFrame:
		s.enqueue(c, msg, scheduler.DisableFrame{LineIdx: msg.Line, FrameIdx: msg.Frame})
	case MsgSetScript:
		s.enqueue(c, msg, scheduler.SetScript{LineIdx: msg.Line, FrameIdx: msg.Frame, Language: msg.Language, Content: msg.Content})

	case MsgConnectMidiDeviceByName:
		s.deviceOp(c, s.devices.ConnectMIDI(msg.DeviceName))
	case MsgDisconnectMidiDeviceByName:
		s.deviceOp(c, s.devices.DisconnectMIDI(msg.DeviceName))
	case MsgCreateVirtualMidiOutput:
		s.deviceOp(c, s.devices.CreateVirtualMIDI(msg.DeviceName))
	case MsgCreateOscDevice:
		s.deviceOp(c, s.devices.CreateOSC(msg.DeviceName, msg.DeviceIP, msg.DevicePort))
	case MsgRemoveOscDevice:
		s.deviceOp(c, s.devices.RemoveOutput(msg.DeviceName))
	case MsgAssignDeviceToSlot:
		s.deviceOp(c, s.devices.AssignSlot(msg.Slot, msg.DeviceName))
	case MsgUnassignDeviceFromSlot:
		s.deviceOp(c, s.devices.UnassignSlot(msg.Slot))

	case MsgStartedEditingFrame:
		s.broadcast(ServerMessage{Kind: "peer_started_editing", Sender: c.name, Line: msg.Line, Frame: msg.Frame}, c.name)
	case MsgStoppedEditingFrame:
		s.broadcast(ServerMessage{Kind: "peer_stopped_editing", Sender: c.name, Line: msg.Line, Frame: msg.Frame}, c.name)

	default:
		s.reply(c, ServerMessage{Kind: ReplyInternalError, Text: "unknown message kind: " + msg.Kind})
	}
}

func (s *Server) enqueue(c *client, msg ClientMessage, cmd scheduler.Command) {
	s.sched.Enqueue(scheduler.SchedulerMessage{Client: c.name, Timing: timingFrom(msg), Command: cmd})
	s.reply(c, ServerMessage{Kind: ReplySuccess})
}

func (s *Server) deviceOp(c *client, err error) {
	if err != nil {
		s.reply(c, ServerMessage{Kind: ReplyInternalError, Text: err.Error()})
		return
	}
	s.reply(c, ServerMessage{Kind: ReplySuccess})
	s.broadcast(ServerMessage{Kind: ReplyDeviceList, Devices: toDeviceInfos(s.devices.List())}, "")
}

func (s *Server) reply(c *client, msg ServerMessage) {
	select {
	case c.out <- msg:
	default:
		s.log.Warn("session: reply dropped, client output channel full", "client", c.name)
	}
}
