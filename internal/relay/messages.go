// Package relay implements the Relay (§4.H): a separate long-running server
// that fans opaque StateUpdate payloads out between independent session
// server instances for wide-area collaboration. It never interprets the
// payload it carries.
//
// Grounded on the Session Server's own wire plumbing (shared internal/wire
// framing + MessagePack) and on the teacher's Room/Client fan-out idiom in
// rustyguts-bken/server/room.go, generalized from per-user chat broadcast to
// per-instance state broadcast.
package relay

// Message is the relay wire envelope. Kind selects which fields apply.
type Message struct {
	Kind string `msgpack:"kind"`

	Name    string `msgpack:"name,omitempty"`    // register
	Version string `msgpack:"version,omitempty"` // register
	Reason  string `msgpack:"reason,omitempty"`  // refused

	SourceID  string `msgpack:"source_id,omitempty"`
	Timestamp int64  `msgpack:"timestamp,omitempty"`
	Data      []byte `msgpack:"data,omitempty"`
}

// Relay message kinds.
const (
	KindRegister    = "register"
	KindRegistered  = "registered"
	KindRefused     = "refused"
	KindStateUpdate = "state_update"
)

// Refusal reasons (§7 "Relay errors").
const (
	ReasonVersionMismatch    = "version_mismatch"
	ReasonMaxInstancesReached = "max_instances_reached"
	ReasonInstanceNameTaken  = "instance_name_taken"
	ReasonRateLimited        = "rate_limited"
)
