package relay

import (
	"encoding/json"
	"log"

	"github.com/connectwithme/relay/internal/hub"
	"github.com/connectwithme/relay/internal/model"
)

// Call signaling is pure forwarding: the relay keeps no call table and makes
// no delivery promise. State lives in the two peers (pkg/callstate); the
// relay's only job is directed, in-order delivery keyed by target identity.
// A target with zero live connections means the frame vanishes and the
// caller's local timeout handles the silence.

// handleCallUser relays a call offer to the callee's identity channel only.
// Never broadcast: exactly the target's devices ring.
func (s *Service) handleCallUser(c *hub.Client, data json.RawMessage) {
	var req model.CallRequest
	if err := json.Unmarshal(data, &req); err != nil || req.UserToCall == "" {
		s.metrics.EventError(model.EventCallUser, "malformed_payload")
		log.Printf("Dropping malformed callUser from %s", c.ID)
		return
	}

	s.toChannel(req.UserToCall, c.ID, model.EventCallUser, model.IncomingCall{
		Signal:  req.SignalData,
		From:    req.From,
		Name:    req.Name,
		Pic:     req.Pic,
		IsVideo: req.IsVideo,
	})
}

// handleAnswerCall relays the callee's answer signal back to the caller as
// "callAccepted".
func (s *Service) handleAnswerCall(c *hub.Client, data json.RawMessage) {
	var ans model.CallAnswer
	if err := json.Unmarshal(data, &ans); err != nil || ans.To == "" {
		s.metrics.EventError(model.EventAnswerCall, "malformed_payload")
		log.Printf("Dropping malformed answerCall from %s", c.ID)
		return
	}
	s.toChannel(ans.To, c.ID, model.EventCallAccepted, ans.Signal)
}

// handleICECandidate forwards a trickle ICE candidate verbatim. Per-client
// send queues are FIFO, so candidates are never reordered here; buffering
// candidates that beat the remote description is the receiving client's job.
func (s *Service) handleICECandidate(c *hub.Client, data json.RawMessage) {
	var ice model.ICECandidate
	if err := json.Unmarshal(data, &ice); err != nil || ice.To == "" {
		s.metrics.EventError(model.EventICECandidate, "malformed_payload")
		log.Printf("Dropping malformed ice-candidate from %s", c.ID)
		return
	}
	s.toChannel(ice.To, c.ID, model.EventICECandidate, ice.Candidate)
}

// handleEndCall relays a hang-up. Every endCall is forwarded, duplicates
// included; teardown on the receiving side is idempotent, suppression here
// is not the relay's business.
func (s *Service) handleEndCall(c *hub.Client, data json.RawMessage) {
	var end model.CallEnd
	if err := json.Unmarshal(data, &end); err != nil || end.To == "" {
		s.metrics.EventError(model.EventEndCall, "malformed_payload")
		log.Printf("Dropping malformed endCall from %s", c.ID)
		return
	}
	s.toChannel(end.To, c.ID, model.EventEndCall, nil)
}
