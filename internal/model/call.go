package model

import "encoding/json"

// CallRequest is the inbound "callUser" payload.
type CallRequest struct {
	UserToCall string          `json:"userToCall"`
	SignalData json.RawMessage `json:"signalData"`
	From       string          `json:"from"`
	Name       string          `json:"name,omitempty"`
	Pic        string          `json:"pic,omitempty"`
	IsVideo    bool            `json:"isVideo"`
}

// IncomingCall is the "callUser" payload emitted to the callee.
type IncomingCall struct {
	Signal  json.RawMessage `json:"signal"`
	From    string          `json:"from"`
	Name    string          `json:"name,omitempty"`
	Pic     string          `json:"pic,omitempty"`
	IsVideo bool            `json:"isVideo"`
}

// CallAnswer is the inbound "answerCall" payload. Signal is forwarded to the
// caller verbatim as the "callAccepted" payload.
type CallAnswer struct {
	To     string          `json:"to"`
	Signal json.RawMessage `json:"signal"`
}

// ICECandidate is the bidirectional "ice-candidate" relay payload. The
// candidate body is opaque to the relay.
type ICECandidate struct {
	To        string          `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

// CallEnd is the inbound "endCall" payload.
type CallEnd struct {
	To string `json:"to"`
}
