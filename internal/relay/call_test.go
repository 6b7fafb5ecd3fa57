package relay

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connectwithme/relay/internal/auth"
	"github.com/connectwithme/relay/internal/broker"
	"github.com/connectwithme/relay/internal/hub"
	"github.com/connectwithme/relay/internal/metrics"
	"github.com/connectwithme/relay/internal/model"
)

func TestCallUserReachesCalleeOnly(t *testing.T) {
	s := newTestService()
	caller := connect(t, s, "alice")
	callee := connect(t, s, "bob")
	bystander := connect(t, s, "carol")
	for _, c := range []*hub.Client{caller, callee, bystander} {
		received(t, c)
	}

	req := model.CallRequest{
		UserToCall: "bob",
		SignalData: json.RawMessage(`{"sdp":"offer"}`),
		From:       "alice",
		Name:       "Alice",
		IsVideo:    true,
	}
	require.NoError(t, s.HandleEvent(caller, envelope(t, model.EventCallUser, req)))

	frames := received(t, callee)
	require.Equal(t, []string{model.EventCallUser}, eventsOf(frames))
	var incoming model.IncomingCall
	require.NoError(t, json.Unmarshal(frames[0].Data, &incoming))
	assert.Equal(t, "alice", incoming.From)
	assert.Equal(t, "Alice", incoming.Name)
	assert.True(t, incoming.IsVideo)
	assert.JSONEq(t, `{"sdp":"offer"}`, string(incoming.Signal))

	assert.Empty(t, received(t, caller))
	assert.Empty(t, received(t, bystander), "call offers are point-to-point, never broadcast")
}

func TestCallUserOfflineTargetSilentlyDropped(t *testing.T) {
	s := newTestService()
	caller := connect(t, s, "alice")
	received(t, caller)

	req := model.CallRequest{UserToCall: "nobody", From: "alice"}
	require.NoError(t, s.HandleEvent(caller, envelope(t, model.EventCallUser, req)))
	assert.Empty(t, received(t, caller), "no error frame, no delivery, no voicemail")
}

func TestCallUserReachesAllCalleeDevices(t *testing.T) {
	s := newTestService()
	caller := connect(t, s, "alice")
	dev1 := connect(t, s, "bob")
	dev2 := connect(t, s, "bob")
	for _, c := range []*hub.Client{caller, dev1, dev2} {
		received(t, c)
	}

	req := model.CallRequest{UserToCall: "bob", From: "alice"}
	require.NoError(t, s.HandleEvent(caller, envelope(t, model.EventCallUser, req)))

	assert.Equal(t, 1, countEvent(received(t, dev1), model.EventCallUser))
	assert.Equal(t, 1, countEvent(received(t, dev2), model.EventCallUser))
}

func TestAnswerCallRelayedAsCallAccepted(t *testing.T) {
	s := newTestService()
	caller := connect(t, s, "alice")
	callee := connect(t, s, "bob")
	received(t, caller)
	received(t, callee)

	ans := model.CallAnswer{To: "alice", Signal: json.RawMessage(`{"sdp":"answer"}`)}
	require.NoError(t, s.HandleEvent(callee, envelope(t, model.EventAnswerCall, ans)))

	frames := received(t, caller)
	require.Equal(t, []string{model.EventCallAccepted}, eventsOf(frames))
	assert.JSONEq(t, `{"sdp":"answer"}`, string(frames[0].Data))
}

func TestICECandidatesForwardedVerbatimInOrder(t *testing.T) {
	s := newTestService()
	a := connect(t, s, "alice")
	b := connect(t, s, "bob")
	received(t, a)
	received(t, b)

	for i, candidate := range []string{`{"candidate":"a=1"}`, `{"candidate":"a=2"}`} {
		ice := model.ICECandidate{To: "bob", Candidate: json.RawMessage(candidate)}
		require.NoError(t, s.HandleEvent(a, envelope(t, model.EventICECandidate, ice)), "candidate %d", i)
	}

	frames := received(t, b)
	require.Len(t, frames, 2)
	assert.JSONEq(t, `{"candidate":"a=1"}`, string(frames[0].Data))
	assert.JSONEq(t, `{"candidate":"a=2"}`, string(frames[1].Data))
}

// The relay forwards every endCall; duplicate suppression belongs to the
// idempotent teardown on the receiving client.
func TestDuplicateEndCallBothForwarded(t *testing.T) {
	s := newTestService()
	a := connect(t, s, "alice")
	b := connect(t, s, "bob")
	received(t, a)
	received(t, b)

	end := model.CallEnd{To: "bob"}
	require.NoError(t, s.HandleEvent(a, envelope(t, model.EventEndCall, end)))
	require.NoError(t, s.HandleEvent(a, envelope(t, model.EventEndCall, end)))

	assert.Equal(t, 2, countEvent(received(t, b), model.EventEndCall))
}

func TestSetupRejectedOnBadToken(t *testing.T) {
	h := hub.New()
	s := New(h, auth.NewVerifier("secret"), metrics.NopCollector{}, broker.Nop{})

	c := hub.NewClient(nil, 16)
	s.Connect(c)

	err := s.HandleEvent(c, envelope(t, model.EventSetup, model.User{ID: "u1", Token: "garbage"}))
	require.Error(t, err, "failed setup must close the connection")

	frames := received(t, c)
	require.Equal(t, []string{model.EventError}, eventsOf(frames))
	assert.Empty(t, s.Presence())
}

func TestSetupAcceptedWithValidToken(t *testing.T) {
	h := hub.New()
	s := New(h, auth.NewVerifier("secret"), metrics.NopCollector{}, broker.Nop{})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u1"})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	c := hub.NewClient(nil, 16)
	s.Connect(c)
	require.NoError(t, s.HandleEvent(c, envelope(t, model.EventSetup, model.User{ID: "u1", Token: signed})))
	assert.Equal(t, []string{"u1"}, s.Presence())
}

// recordingBroker captures published frames and lets tests inject remote ones.
type recordingBroker struct {
	mu        sync.Mutex
	published []broker.Frame
	handle    func(broker.Frame)
}

func (r *recordingBroker) Publish(_ context.Context, f broker.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, f)
	return nil
}

func (r *recordingBroker) Subscribe(_ context.Context, handle func(broker.Frame)) error {
	r.handle = handle
	return nil
}

func (r *recordingBroker) Close() error { return nil }

func (r *recordingBroker) frames() []broker.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]broker.Frame(nil), r.published...)
}

func TestChannelEmissionsBridgedToBroker(t *testing.T) {
	b := &recordingBroker{}
	s := New(hub.New(), auth.NewVerifier(""), metrics.NopCollector{}, b)
	require.NoError(t, s.Run(context.Background()))

	sender := connect(t, s, "alice")
	received(t, sender)

	req := model.CallRequest{UserToCall: "bob", From: "alice"}
	require.NoError(t, s.HandleEvent(sender, envelope(t, model.EventCallUser, req)))

	frames := b.frames()
	require.Len(t, frames, 1)
	assert.Equal(t, broker.ScopeChannel, frames[0].Scope)
	assert.Equal(t, "bob", frames[0].Channel)
}

func TestRemoteFrameReplayedLocally(t *testing.T) {
	b := &recordingBroker{}
	s := New(hub.New(), auth.NewVerifier(""), metrics.NopCollector{}, b)
	require.NoError(t, s.Run(context.Background()))

	bob := connect(t, s, "bob")
	received(t, bob)

	data, err := json.Marshal(model.Envelope{Event: model.EventEndCall})
	require.NoError(t, err)
	b.handle(broker.Frame{Scope: broker.ScopeChannel, Channel: "bob", Data: data})

	assert.Equal(t, 1, countEvent(received(t, bob), model.EventEndCall))
}
