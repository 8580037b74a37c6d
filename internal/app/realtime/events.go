package realtime

import (
	"time"

	"github.com/goccy/go-json"
)

// EventType names an outbound frame.
type EventType string

const (
	// EventPresenceSnapshot carries the full list of online user ids.
	EventPresenceSnapshot EventType = "presenceSnapshot"

	// EventNewMessage carries a freshly stored message.
	EventNewMessage EventType = "newMessage"

	// EventMessageDeleted carries the id of a deleted message.
	EventMessageDeleted EventType = "messageDeleted"

	// EventMessageRead carries a read receipt.
	EventMessageRead EventType = "messageRead"

	// EventUserTyping carries a typing start or stop from another user.
	EventUserTyping EventType = "userTyping"
)

// InboundType names a frame sent by the client.
type InboundType string

const (
	InboundTypingStart InboundType = "typingStart"
	InboundTypingStop  InboundType = "typingStop"
)

// Event is the frame pushed to clients.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// Encode marshals the event once so it can be shared by every recipient.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// MessageDeletedPayload is the payload of EventMessageDeleted.
type MessageDeletedPayload struct {
	MessageID string `json:"messageId"`
}

// MessageReadPayload is the payload of EventMessageRead.
type MessageReadPayload struct {
	MessageID string    `json:"messageId"`
	ReadAt    time.Time `json:"readAt"`
}

// UserTypingPayload is the payload of EventUserTyping.
type UserTypingPayload struct {
	SenderID string `json:"senderId"`
	IsTyping bool   `json:"isTyping"`
}

// TypingPayload is the payload of the inbound typing frames.
type TypingPayload struct {
	ReceiverID string `json:"receiverId"`
}

// PresenceSnapshot builds the presence frame.
func PresenceSnapshot(online []string) Event {
	if online == nil {
		online = []string{}
	}
	return Event{Type: EventPresenceSnapshot, Payload: online}
}

// MessageCreated builds the frame for a stored message. msg is serialized as-is.
func MessageCreated(msg any) Event {
	return Event{Type: EventNewMessage, Payload: msg}
}

// MessageDeleted builds the frame for a deleted message.
func MessageDeleted(messageID string) Event {
	return Event{Type: EventMessageDeleted, Payload: MessageDeletedPayload{MessageID: messageID}}
}

// MessageRead builds the read-receipt frame.
func MessageRead(messageID string, readAt time.Time) Event {
	return Event{Type: EventMessageRead, Payload: MessageReadPayload{MessageID: messageID, ReadAt: readAt}}
}

// UserTyping builds the typing frame for senderID.
func UserTyping(senderID string, typing bool) Event {
	return Event{Type: EventUserTyping, Payload: UserTypingPayload{SenderID: senderID, IsTyping: typing}}
}
