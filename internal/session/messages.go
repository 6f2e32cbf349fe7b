// Package session implements the Session Server (§4.G, §6): the TCP
// front-end that accepts client connections, runs the SetName handshake,
// maps inbound messages onto the Scheduler's SchedulerMessage channel, and
// fans the Scheduler's Notifications back out to subscribed clients.
package session

import "github.com/zurustar/bubocore/internal/project"

// ClientMessage is the tagged union of everything a client may send (§6).
// Kind selects which field is meaningful; msgpack serializes the whole
// struct with omitempty-equivalent zero fields kept minimal by convention
// (only the fields relevant to Kind are populated by the sender).
type ClientMessage struct {
	Kind string `msgpack:"kind"`

	Name string `msgpack:"name,omitempty"` // SetName
	Text string `msgpack:"text,omitempty"` // Chat

	Tempo   float64 `msgpack:"tempo,omitempty"`
	Quantum float64 `msgpack:"quantum,omitempty"`
	AtBeat  float64 `msgpack:"at_beat,omitempty"`

	Line     int      `msgpack:"line,omitempty"`
	Frame    int      `msgpack:"frame,omitempty"`
	Length   float64  `msgpack:"length,omitempty"`
	Speed    float64  `msgpack:"speed,omitempty"`
	Language string   `msgpack:"language,omitempty"`
	Content  string   `msgpack:"content,omitempty"`
	N        int      `msgpack:"n,omitempty"`
	HasValue bool     `msgpack:"has_value,omitempty"`
	Value    float64  `msgpack:"value,omitempty"`

	DeviceName string `msgpack:"device_name,omitempty"`
	DeviceIP   string `msgpack:"device_ip,omitempty"`
	DevicePort int    `msgpack:"device_port,omitempty"`
	Slot       int    `msgpack:"slot,omitempty"`

	TimingKind string `msgpack:"timing_kind,omitempty"` // "immediate" | "at_beat" | "end_of_scene"
	TimingBeat uint64 `msgpack:"timing_beat,omitempty"`
}

// Client message kinds (§6 ClientMessage variants this server implements).
const (
	MsgSetName                    = "set_name"
	MsgChat                       = "chat"
	MsgGetClock                   = "get_clock"
	MsgGetScene                   = "get_scene"
	MsgGetPeers                   = "get_peers"
	MsgGetSnapshot                = "get_snapshot"
	MsgSetTempo                   = "set_tempo"
	MsgSetQuantum                 = "set_quantum"
	MsgTransportStart             = "transport_start"
	MsgTransportStop              = "transport_stop"
	MsgSetSceneLength             = "set_scene_length"
	MsgSetLineLength              = "set_line_length"
	MsgSetLineSpeedFactor         = "set_line_speed_factor"
	MsgAddLine                    = "add_line"
	MsgRemoveLine                 = "remove_line"
	MsgAddFrame                   = "add_frame"
	MsgRemoveFrame                = "remove_frame"
	MsgEnableFrame                = "enable_frame"
	MsgDisableFrame               = "disable_frame"
	MsgSetScript                  = "set_script"
	MsgGetScript                  = "get_script"
	MsgRequestDeviceList          = "request_device_list"
	MsgConnectMidiDeviceByName    = "connect_midi_device_by_name"
	MsgDisconnectMidiDeviceByName = "disconnect_midi_device_by_name"
	MsgCreateVirtualMidiOutput    = "create_virtual_midi_output"
	MsgCreateOscDevice            = "create_osc_device"
	MsgRemoveOscDevice            = "remove_osc_device"
	MsgAssignDeviceToSlot         = "assign_device_to_slot"
	MsgUnassignDeviceFromSlot     = "unassign_device_from_slot"
	MsgStartedEditingFrame        = "started_editing_frame"
	MsgStoppedEditingFrame        = "stopped_editing_frame"
	MsgRestoreDevices             = "restore_devices"
)

// ServerMessage is the tagged union of everything the server may send (§6).
type ServerMessage struct {
	Kind string `msgpack:"kind"`

	Text   string `msgpack:"text,omitempty"`   // InternalError/ConnectionRefused reason
	Sender string `msgpack:"sender,omitempty"` // Chat

	Hello *HelloPayload `msgpack:"hello,omitempty"`

	Tempo    float64 `msgpack:"tempo,omitempty"`
	Beat     float64 `msgpack:"beat,omitempty"`
	Micros   uint64  `msgpack:"micros,omitempty"`
	Quantum  float64 `msgpack:"quantum,omitempty"`
	Playback string  `msgpack:"playback,omitempty"`

	Line  int `msgpack:"line,omitempty"`
	Frame int `msgpack:"frame,omitempty"`

	Content string `msgpack:"content,omitempty"`

	Devices []DeviceInfo          `msgpack:"devices,omitempty"`
	Peers   []string              `msgpack:"peers,omitempty"`
	Scene   *project.SceneSnapshot `msgpack:"scene,omitempty"`
}

// Server message kinds (§6 ServerMessage variants this server implements).
const (
	ReplySuccess            = "success"
	ReplyInternalError      = "internal_error"
	ReplyConnectionRefused  = "connection_refused"
	ReplyHello              = "hello"
	ReplyClockState         = "clock_state"
	ReplyFramePosition      = "frame_position"
	ReplyPlaybackState      = "playback_state_changed"
	ReplyCompilationUpdate  = "compilation_update"
	ReplyLog                = "log"
	ReplyChat               = "chat"
	ReplyDeviceList         = "device_list"
	ReplyScriptContent      = "script_content"
	ReplyClientListChanged  = "client_list_changed"
	ReplyTempoChanged       = "tempo_changed"
	ReplyQuantumChanged     = "quantum_changed"
	ReplyScene              = "scene_value"
	ReplyPeersUpdated       = "peers_updated"
	ReplySceneUpdated       = "scene_updated"
	ReplyAddLine            = "add_line"
	ReplyRemoveLine         = "remove_line"
)

// DeviceInfo is the wire-serializable projection of device.Info.
type DeviceInfo struct {
	Slot      *int   `msgpack:"slot,omitempty"`
	Name      string `msgpack:"name"`
	Kind      string `msgpack:"kind"`
	Direction string `msgpack:"direction"`
	Connected bool   `msgpack:"connected"`
	Address   string `msgpack:"address,omitempty"`
	Missing   bool   `msgpack:"missing,omitempty"`
}

// HelloPayload is sent once, immediately after a successful SetName
// handshake (§4.G).
type HelloPayload struct {
	Username            string       `msgpack:"username"`
	Tempo               float64      `msgpack:"tempo"`
	Beat                float64      `msgpack:"beat"`
	Quantum             float64      `msgpack:"quantum"`
	IsPlaying            bool        `msgpack:"is_playing"`
	Devices             []DeviceInfo `msgpack:"devices"`
	Peers               []string     `msgpack:"peers"`
	AvailableLanguages  []string     `msgpack:"available_languages"`
}
