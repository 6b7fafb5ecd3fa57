// Package relay implements the realtime presence and signaling relay: it
// binds connections to user identities, fans chat events out to the right
// recipients and forwards WebRTC call signaling between two peers. It holds
// no per-call or per-message state; everything it emits is fire-and-forget.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/connectwithme/relay/internal/auth"
	"github.com/connectwithme/relay/internal/broker"
	"github.com/connectwithme/relay/internal/hub"
	"github.com/connectwithme/relay/internal/metrics"
	"github.com/connectwithme/relay/internal/model"
	"github.com/connectwithme/relay/internal/registry"
)

// Service routes inbound envelopes to their handlers. One instance serves
// every connection in the process.
type Service struct {
	hub        *hub.Hub
	registry   *registry.Registry
	verifier   *auth.Verifier
	metrics    metrics.Collector
	broker     broker.Broker
	instanceID string
}

// New creates a relay service. Pass broker.Nop{} when running a single
// instance.
func New(h *hub.Hub, verifier *auth.Verifier, m metrics.Collector, b broker.Broker) *Service {
	s := &Service{
		hub:        h,
		verifier:   verifier,
		metrics:    m,
		broker:     b,
		instanceID: uuid.NewString(),
	}
	s.registry = registry.New(s.broadcastPresence)
	return s
}

// Run starts consuming bridged frames from other instances. It returns
// immediately; the subscription lives until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	return s.broker.Subscribe(ctx, s.handleRemote)
}

// Connect registers a freshly upgraded connection with the hub. The
// connection carries no identity until its setup event arrives.
func (s *Service) Connect(c *hub.Client) {
	s.hub.Add(c)
	s.metrics.ConnectionOpened()
}

// Disconnect runs the cleanup path for a closed connection: presence is
// updated exactly once and every channel membership is dropped. Safe for
// connections that never completed setup.
func (s *Service) Disconnect(c *hub.Client) {
	s.registry.Unregister(c.ID)
	s.hub.Remove(c)
	s.metrics.ConnectionClosed()
}

// Presence returns the identities currently online.
func (s *Service) Presence() []string {
	return s.registry.Presence()
}

// Counts returns connection, channel and online-user counts for the status
// endpoint.
func (s *Service) Counts() (connections, channels, online int) {
	connections, channels = s.hub.Counts()
	online = len(s.registry.Presence())
	return connections, channels, online
}

// HandleEvent dispatches one inbound envelope. A non-nil return means the
// connection must be closed (failed setup); every other failure is logged
// and dropped so one connection's bad payload never affects another.
func (s *Service) HandleEvent(c *hub.Client, raw []byte) error {
	var env model.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.metrics.EventError("", "malformed_envelope")
		log.Printf("Dropping malformed envelope from %s: %v", c.ID, err)
		return nil
	}
	s.metrics.EventReceived(env.Event, len(raw))

	switch env.Event {
	case model.EventSetup:
		return s.handleSetup(c, env.Data)
	case model.EventJoinChat:
		s.handleJoinChat(c, env.Data)
	case model.EventTyping, model.EventStopTyping:
		s.handleTyping(c, env.Event, env.Data)
	case model.EventReadMessage:
		s.handleReadMessage(c, env.Data)
	case model.EventNewMessage:
		s.routeNewMessage(env.Data)
	case model.EventDeleteMessage:
		s.routeDeletedMessage(env.Data)
	case model.EventChatCleared:
		s.routeChatCleared(c, env.Data)
	case model.EventCallUser:
		s.handleCallUser(c, env.Data)
	case model.EventAnswerCall:
		s.handleAnswerCall(c, env.Data)
	case model.EventICECandidate:
		s.handleICECandidate(c, env.Data)
	case model.EventEndCall:
		s.handleEndCall(c, env.Data)
	default:
		s.metrics.EventError(env.Event, "unknown_event")
		log.Printf("Unknown event %q from %s", env.Event, c.ID)
	}
	return nil
}

// Ingest feeds an envelope from a trusted server-side collaborator (the REST
// layer) into the fan-out router. Only chat events are accepted; connection
// lifecycle and call signaling need an acting connection.
func (s *Service) Ingest(env model.Envelope) error {
	s.metrics.EventReceived(env.Event, len(env.Data))

	switch env.Event {
	case model.EventNewMessage:
		s.routeNewMessage(env.Data)
	case model.EventDeleteMessage:
		s.routeDeletedMessage(env.Data)
	case model.EventChatCleared:
		s.routeChatCleared(nil, env.Data)
	default:
		s.metrics.EventError(env.Event, "unsupported_ingest")
		return fmt.Errorf("event %q cannot be ingested", env.Event)
	}
	return nil
}

// handleSetup binds the connection to the asserted identity, joins the
// identity channel and acks with "connected". The presence broadcast fires
// from the registry callback before the ack, matching the original event
// order.
func (s *Service) handleSetup(c *hub.Client, data json.RawMessage) error {
	var user model.User
	if err := json.Unmarshal(data, &user); err != nil || user.ID == "" {
		s.metrics.EventError(model.EventSetup, "malformed_payload")
		log.Printf("Dropping setup without identity from %s", c.ID)
		return nil
	}

	if err := s.verifier.Verify(user.Token, user.ID); err != nil {
		s.metrics.EventError(model.EventSetup, "auth_failed")
		log.Printf("Rejecting setup for %s: %v", user.ID, err)
		s.toClient(c.ID, model.EventError, "setup rejected")
		return fmt.Errorf("setup for %s: %w", user.ID, err)
	}

	c.UserID = user.ID
	s.hub.Join(c, user.ID)
	s.registry.Register(user.ID, c.ID)
	s.toClient(c.ID, model.EventConnected, nil)
	return nil
}

func (s *Service) handleJoinChat(c *hub.Client, data json.RawMessage) {
	var chatID string
	if err := json.Unmarshal(data, &chatID); err != nil || chatID == "" {
		s.metrics.EventError(model.EventJoinChat, "malformed_payload")
		return
	}
	s.hub.Join(c, chatID)
}

// handleTyping relays typing / stop typing to the chat channel, never echoing
// the sender. No state is kept; the stop-typing timeout is the client's job.
func (s *Service) handleTyping(c *hub.Client, event string, data json.RawMessage) {
	var chatID string
	if err := json.Unmarshal(data, &chatID); err != nil || chatID == "" {
		s.metrics.EventError(event, "malformed_payload")
		return
	}
	s.toChannel(chatID, c.ID, event, data)
}

func (s *Service) handleReadMessage(c *hub.Client, data json.RawMessage) {
	var receipt model.ReadReceipt
	if err := json.Unmarshal(data, &receipt); err != nil || receipt.ChatID == "" {
		s.metrics.EventError(model.EventReadMessage, "malformed_payload")
		return
	}
	s.toChannel(receipt.ChatID, c.ID, model.EventMessageRead, data)
}

// broadcastPresence pushes the full presence snapshot to every connection.
// Deliberately not a delta and deliberately not scoped: every client always
// holds the complete list. Runs from the registry callback. Presence frames
// are not bridged across instances; each instance reports its own registry.
func (s *Service) broadcastPresence(online []string) {
	s.metrics.PresenceChanged(len(online))

	frame, err := encode(model.EventConnectedUsers, online)
	if err != nil {
		s.metrics.EventError(model.EventConnectedUsers, "marshal")
		return
	}
	sent, dropped := s.hub.Broadcast(frame)
	s.record(model.EventConnectedUsers, len(frame), sent, dropped)
}

// handleRemote replays a frame bridged from another instance. Exclusions are
// local-only, so replay never skips anyone.
func (s *Service) handleRemote(f broker.Frame) {
	switch f.Scope {
	case broker.ScopeAll:
		s.hub.Broadcast(f.Data)
	case broker.ScopeChannel:
		s.hub.ToChannel(f.Channel, f.Data, "")
	default:
		log.Printf("Dropping bridged frame with unknown scope %q", f.Scope)
	}
}

// toChannel emits an event to one channel, skipping except locally, and
// bridges it to other instances.
func (s *Service) toChannel(channel, except, event string, data any) {
	frame, err := encode(event, data)
	if err != nil {
		s.metrics.EventError(event, "marshal")
		log.Printf("Failed to encode %s: %v", event, err)
		return
	}
	sent, dropped := s.hub.ToChannel(channel, frame, except)
	s.record(event, len(frame), sent, dropped)

	if err := s.broker.Publish(context.Background(), broker.Frame{
		Scope:   broker.ScopeChannel,
		Channel: channel,
		Data:    frame,
	}); err != nil {
		log.Printf("Failed to bridge %s to %s: %v", event, channel, err)
	}
}

// toClient emits an event to a single local connection.
func (s *Service) toClient(clientID, event string, data any) {
	frame, err := encode(event, data)
	if err != nil {
		s.metrics.EventError(event, "marshal")
		return
	}
	if s.hub.ToClient(clientID, frame) {
		s.metrics.EventSent(event, len(frame))
	} else {
		s.metrics.EventDropped(event)
	}
}

func (s *Service) record(event string, size, sent, dropped int) {
	for i := 0; i < sent; i++ {
		s.metrics.EventSent(event, size)
	}
	for i := 0; i < dropped; i++ {
		s.metrics.EventDropped(event)
	}
}

// encode builds a wire frame. data may be any JSON-serializable value,
// including a raw passthrough payload; nil produces an event with no data.
func encode(event string, data any) ([]byte, error) {
	env := struct {
		Event string `json:"event"`
		Data  any    `json:"data,omitempty"`
	}{Event: event, Data: data}
	return json.Marshal(env)
}
