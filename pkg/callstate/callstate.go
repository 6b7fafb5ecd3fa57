// Package callstate models the call lifecycle as seen by one peer. The relay
// is a stateless forwarder; each client owns its own copy of this machine and
// the two copies only communicate through relayed signaling events.
package callstate

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Phase is the current position in the call lifecycle.
type Phase string

const (
	Idle       Phase = "idle"
	Dialing    Phase = "dialing"
	Ringing    Phase = "ringing"
	Connecting Phase = "connecting"
	Active     Phase = "active"
	Ended      Phase = "ended"
)

// PeerConnection is the subset of a WebRTC peer connection the session needs.
type PeerConnection interface {
	AddICECandidate(candidate json.RawMessage) error
	Close() error
}

// InvalidTransitionError reports a rejected phase change.
type InvalidTransitionError struct {
	From Phase
	Op   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("callstate: cannot %s from %s", e.Op, e.From)
}

// Session is one peer's view of a single call attempt. Remote ICE candidates
// that arrive before the peer connection exists are buffered and flushed when
// Bind is called; trickle ICE routinely races the answer. Teardown is
// idempotent, ending an already-ended session is a no-op.
type Session struct {
	mu      sync.Mutex
	localID string
	peerID  string
	video   bool
	phase   Phase
	pc      PeerConnection
	pending []json.RawMessage
}

// New creates an idle session for the local identity.
func New(localID string) *Session {
	return &Session{
		localID: localID,
		phase:   Idle,
	}
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Peer returns the remote identity, empty while idle.
func (s *Session) Peer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerID
}

// Video reports whether video was requested for this call.
func (s *Session) Video() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.video
}

// Dial starts an outgoing call. Valid only from Idle.
func (s *Session) Dial(peerID string, video bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Idle {
		return &InvalidTransitionError{From: s.phase, Op: "dial"}
	}
	s.phase = Dialing
	s.peerID = peerID
	s.video = video
	return nil
}

// Ring records an incoming call. Valid only from Idle; use HandleIncoming
// when the session may be mid-dial.
func (s *Session) Ring(peerID string, video bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Idle {
		return &InvalidTransitionError{From: s.phase, Op: "ring"}
	}
	s.phase = Ringing
	s.peerID = peerID
	s.video = video
	return nil
}

// GlareDecision says what to do with an incoming call offer.
type GlareDecision int

const (
	// Ring means the session was idle; treat it as an ordinary incoming call.
	Ring GlareDecision = iota
	// KeepDialing means our outgoing call wins the glare; discard the offer.
	KeepDialing
	// Yield means the peer's call wins; our dial was abandoned and the
	// session is now ringing.
	Yield
	// Busy means a call with another peer is in progress; reject the offer.
	Busy
)

// HandleIncoming applies an incoming call offer to the session, resolving
// glare deterministically: when both peers dial each other simultaneously,
// the side with the lexicographically smaller identity keeps its outgoing
// call and the other side yields. Both machines reach complementary phases
// without coordination.
func (s *Session) HandleIncoming(peerID string, video bool) GlareDecision {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.phase == Idle:
		s.phase = Ringing
		s.peerID = peerID
		s.video = video
		return Ring
	case s.phase == Dialing && s.peerID == peerID:
		if s.localID < peerID {
			return KeepDialing
		}
		s.phase = Ringing
		s.video = video
		return Yield
	default:
		return Busy
	}
}

// Accept answers an incoming call. Valid only from Ringing.
func (s *Session) Accept() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Ringing {
		return &InvalidTransitionError{From: s.phase, Op: "accept"}
	}
	s.phase = Connecting
	return nil
}

// Answered records that the callee accepted our outgoing call. Valid only
// from Dialing.
func (s *Session) Answered() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Dialing {
		return &InvalidTransitionError{From: s.phase, Op: "record answer"}
	}
	s.phase = Connecting
	return nil
}

// Connected marks the media path established. Valid only from Connecting.
func (s *Session) Connected() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Connecting {
		return &InvalidTransitionError{From: s.phase, Op: "connect"}
	}
	s.phase = Active
	return nil
}

// Bind attaches the peer connection and flushes any candidates that arrived
// before it existed, in arrival order.
func (s *Session) Bind(pc PeerConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == Ended {
		return &InvalidTransitionError{From: s.phase, Op: "bind"}
	}
	s.pc = pc
	for _, candidate := range s.pending {
		if err := pc.AddICECandidate(candidate); err != nil {
			return fmt.Errorf("flush buffered candidate: %w", err)
		}
	}
	s.pending = nil
	return nil
}

// AddRemoteCandidate applies a relayed ICE candidate, buffering it if the
// peer connection does not exist yet. Candidates arriving after the call
// ended are discarded.
func (s *Session) AddRemoteCandidate(candidate json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == Ended || s.phase == Idle {
		return nil
	}
	if s.pc == nil {
		s.pending = append(s.pending, candidate)
		return nil
	}
	return s.pc.AddICECandidate(candidate)
}

// End tears the session down from any phase. Calling End again, including on
// a session that never left Idle, is a no-op; a relayed endCall may arrive
// after the local hang-up already ran.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == Ended {
		return
	}
	s.phase = Ended
	s.pending = nil
	if s.pc != nil {
		_ = s.pc.Close()
		s.pc = nil
	}
}
