package relay

import (
	"encoding/json"
	"log"

	"github.com/connectwithme/relay/internal/hub"
	"github.com/connectwithme/relay/internal/model"
)

// routeNewMessage fans a new message out to every chat member except the
// sender. The sender never hears its own echo: the HTTP response already
// carried the message back, so its user channel is skipped entirely, which
// also keeps the sender's other devices relying on the REST refetch. The
// payload is forwarded verbatim under "message recieved".
func (s *Service) routeNewMessage(data json.RawMessage) {
	var msg model.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.metrics.EventError(model.EventNewMessage, "malformed_payload")
		log.Printf("Dropping malformed new message: %v", err)
		return
	}
	if len(msg.Chat.Users) == 0 {
		s.metrics.EventError(model.EventNewMessage, "missing_members")
		log.Printf("Dropping new message %s: chat.users not defined", msg.ID)
		return
	}

	for _, member := range msg.Chat.Users {
		if member.ID == msg.Sender.ID {
			continue
		}
		s.toChannel(member.ID, "", model.EventMessageReceived, data)
	}
}

// routeDeletedMessage fans a delete out to every chat member except the
// sender. The delete payload carries the sender as a bare identity, not a
// user object; the exclusion is keyed off that field and the two payload
// shapes stay distinct.
func (s *Service) routeDeletedMessage(data json.RawMessage) {
	var msg model.DeletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.metrics.EventError(model.EventDeleteMessage, "malformed_payload")
		log.Printf("Dropping malformed delete message: %v", err)
		return
	}
	if len(msg.Chat.Users) == 0 {
		s.metrics.EventError(model.EventDeleteMessage, "missing_members")
		log.Printf("Dropping delete for %s: chat.users not defined", msg.ID)
		return
	}

	for _, member := range msg.Chat.Users {
		if member.ID == msg.Sender {
			continue
		}
		s.toChannel(member.ID, "", model.EventMessageDeleted, data)
	}
}

// routeChatCleared broadcasts a clear to the chat channel and echoes it back
// to the acting connection: the clearing client resets its own view off this
// very event rather than updating locally first. actor is nil when the event
// came through the ingest endpoint, where the channel emission alone covers
// everyone.
func (s *Service) routeChatCleared(actor *hub.Client, data json.RawMessage) {
	var chatID string
	if err := json.Unmarshal(data, &chatID); err != nil || chatID == "" {
		s.metrics.EventError(model.EventChatCleared, "malformed_payload")
		log.Printf("Dropping malformed chat cleared: %v", err)
		return
	}

	if actor != nil {
		s.toClient(actor.ID, model.EventChatCleared, data)
		s.toChannel(chatID, actor.ID, model.EventChatCleared, data)
		return
	}
	s.toChannel(chatID, "", model.EventChatCleared, data)
}
