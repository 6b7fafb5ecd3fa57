package model

import "encoding/json"

// Envelope is the frame exchanged over the realtime transport. Data is left
// raw so each handler decodes only the shape it expects.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client-to-server event names.
const (
	EventSetup         = "setup"
	EventJoinChat      = "join chat"
	EventTyping        = "typing"
	EventStopTyping    = "stop typing"
	EventReadMessage   = "read message"
	EventNewMessage    = "new message"
	EventDeleteMessage = "delete message"
	EventChatCleared   = "chat cleared"
	EventCallUser      = "callUser"
	EventAnswerCall    = "answerCall"
	EventICECandidate  = "ice-candidate"
	EventEndCall       = "endCall"
)

// Server-to-client event names. EventMessageReceived keeps the misspelling
// shipped in the deployed web client; changing it would break every client.
const (
	EventConnected       = "connected"
	EventConnectedUsers  = "connected-users"
	EventMessageReceived = "message recieved"
	EventMessageDeleted  = "message deleted"
	EventMessageRead     = "message read"
	EventCallAccepted    = "callAccepted"
	EventError           = "error"
)

// User is the identity object carried in the setup payload and denormalized
// into chat member lists.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name,omitempty"`
	Pic   string `json:"pic,omitempty"`
	Token string `json:"token,omitempty"`
}

// Chat is the denormalized chat object attached to message events so the
// router can compute the recipient set without a database round trip.
type Chat struct {
	ID    string `json:"_id"`
	Users []User `json:"users"`
}

// Message is the payload of a "new message" event.
type Message struct {
	ID      string          `json:"_id"`
	Sender  User            `json:"sender"`
	Chat    Chat            `json:"chat"`
	Content string          `json:"content,omitempty"`
	Type    string          `json:"type,omitempty"`
	Extra   json.RawMessage `json:"extra,omitempty"`
}

// DeletedMessage is the payload of a "delete message" event. Sender is a bare
// identity here, not a user object; the two shapes must not be unified.
type DeletedMessage struct {
	ID     string `json:"_id"`
	Sender string `json:"sender"`
	Chat   Chat   `json:"chat"`
}

// ReadReceipt is the payload of "read message" / "message read".
type ReadReceipt struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// Message content type tags.
const (
	MessageTypeText     = "text"
	MessageTypeImage    = "image"
	MessageTypeAudio    = "audio"
	MessageTypeLocation = "location"
)
