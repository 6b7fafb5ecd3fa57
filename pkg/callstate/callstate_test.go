package callstate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePeerConn struct {
	applied []json.RawMessage
	closes  int
}

func (f *fakePeerConn) AddICECandidate(c json.RawMessage) error {
	f.applied = append(f.applied, c)
	return nil
}

func (f *fakePeerConn) Close() error {
	f.closes++
	return nil
}

func TestCallerLifecycle(t *testing.T) {
	s := New("alice")
	require.NoError(t, s.Dial("bob", true))
	assert.Equal(t, Dialing, s.Phase())
	assert.Equal(t, "bob", s.Peer())
	assert.True(t, s.Video())

	require.NoError(t, s.Answered())
	assert.Equal(t, Connecting, s.Phase())

	require.NoError(t, s.Connected())
	assert.Equal(t, Active, s.Phase())

	s.End()
	assert.Equal(t, Ended, s.Phase())
}

func TestCalleeLifecycle(t *testing.T) {
	s := New("bob")
	require.NoError(t, s.Ring("alice", false))
	require.NoError(t, s.Accept())
	require.NoError(t, s.Connected())
	assert.Equal(t, Active, s.Phase())
}

func TestInvalidTransitions(t *testing.T) {
	s := New("alice")
	assert.Error(t, s.Answered(), "cannot record an answer while idle")
	assert.Error(t, s.Accept(), "cannot accept while idle")
	assert.Error(t, s.Connected())

	require.NoError(t, s.Dial("bob", false))
	err := s.Dial("carol", false)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, Dialing, invalid.From)
}

// An ICE candidate relayed before the answer arrives must survive until the
// peer connection exists, then be applied in arrival order.
func TestEarlyCandidateBufferedAndFlushed(t *testing.T) {
	s := New("bob")
	require.NoError(t, s.Ring("alice", false))

	first := json.RawMessage(`{"candidate":"a=1"}`)
	second := json.RawMessage(`{"candidate":"a=2"}`)
	require.NoError(t, s.AddRemoteCandidate(first))
	require.NoError(t, s.AddRemoteCandidate(second))

	pc := &fakePeerConn{}
	require.NoError(t, s.Accept())
	require.NoError(t, s.Bind(pc))

	require.Len(t, pc.applied, 2)
	assert.Equal(t, first, pc.applied[0])
	assert.Equal(t, second, pc.applied[1])

	// Later candidates go straight through.
	third := json.RawMessage(`{"candidate":"a=3"}`)
	require.NoError(t, s.AddRemoteCandidate(third))
	assert.Len(t, pc.applied, 3)
}

func TestCandidatesDiscardedWhenIdleOrEnded(t *testing.T) {
	s := New("bob")
	require.NoError(t, s.AddRemoteCandidate(json.RawMessage(`{}`)), "idle: drop silently")

	require.NoError(t, s.Ring("alice", false))
	s.End()
	require.NoError(t, s.AddRemoteCandidate(json.RawMessage(`{}`)), "ended: drop silently")

	pc := &fakePeerConn{}
	assert.Error(t, s.Bind(pc), "cannot bind after teardown")
	assert.Empty(t, pc.applied)
}

func TestEndIsIdempotent(t *testing.T) {
	s := New("alice")
	require.NoError(t, s.Dial("bob", false))

	pc := &fakePeerConn{}
	require.NoError(t, s.Bind(pc))

	s.End()
	s.End()
	assert.Equal(t, 1, pc.closes, "peer connection closed exactly once")
	assert.Equal(t, Ended, s.Phase())
}

func TestEndWhileIdleIsNoop(t *testing.T) {
	s := New("alice")
	s.End()
	assert.Equal(t, Ended, s.Phase())
	s.End()
}

// Both sides dial each other at once. The lower identity keeps its outgoing
// call, the higher one yields and rings; the two machines end up in
// complementary phases without any coordination.
func TestGlareTieBreakIsDeterministic(t *testing.T) {
	alice := New("alice")
	bob := New("bob")

	require.NoError(t, alice.Dial("bob", true))
	require.NoError(t, bob.Dial("alice", true))

	assert.Equal(t, KeepDialing, alice.HandleIncoming("bob", true))
	assert.Equal(t, Dialing, alice.Phase())

	assert.Equal(t, Yield, bob.HandleIncoming("alice", true))
	assert.Equal(t, Ringing, bob.Phase())

	// The surviving call completes normally.
	require.NoError(t, bob.Accept())
	require.NoError(t, alice.Answered())
}

func TestIncomingWhileBusyRejected(t *testing.T) {
	s := New("alice")
	require.NoError(t, s.Dial("bob", false))
	require.NoError(t, s.Answered())

	assert.Equal(t, Busy, s.HandleIncoming("carol", false))
	assert.Equal(t, Connecting, s.Phase())
	assert.Equal(t, "bob", s.Peer())
}

func TestIncomingWhileIdleRings(t *testing.T) {
	s := New("bob")
	assert.Equal(t, Ring, s.HandleIncoming("alice", true))
	assert.Equal(t, Ringing, s.Phase())
	assert.True(t, s.Video())
}
