/*
Package message implements the direct-message write path.

The Service persists messages through a Store and hands the resulting domain events
to a Notifier, which the realtime router satisfies. Delivery is best effort: a stored
message is never rolled back because its recipients are offline.
*/
package message

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"justchat/internal/app/db"
)

const (
	// MaxLength is the longest message body accepted, in characters.
	MaxLength = 1000

	// PageLimit caps one conversation page.
	PageLimit = 100

	// SidebarLimit caps the contact list.
	SidebarLimit = 50
)

// AttachmentImage is the only attachment type produced by the server.
const AttachmentImage = "image"

// Attachment is a file linked from a message.
type Attachment struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Sender is the author summary embedded in a message.
type Sender struct {
	ID         string `json:"_id"`
	FullName   string `json:"fullName"`
	ProfilePic string `json:"profilePic"`
}

// Message is the client-facing representation of a stored message.
type Message struct {
	ID          string       `json:"_id"`
	SenderID    string       `json:"senderId"`
	ReceiverID  string       `json:"receiverId"`
	Message     string       `json:"message"`
	Attachments []Attachment `json:"attachments"`
	IsRead      bool         `json:"isRead"`
	ReadAt      *time.Time   `json:"readAt"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Sender      *Sender      `json:"sender,omitempty"`
}

// FromRow converts a stored row.
func FromRow(m db.Message) Message {
	out := Message{
		ID:          m.ID,
		SenderID:    m.SenderID,
		ReceiverID:  m.ReceiverID,
		Message:     m.Body,
		Attachments: []Attachment{},
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.ImageURL != "" {
		out.Attachments = append(out.Attachments, Attachment{Type: AttachmentImage, URL: m.ImageURL})
	}
	if m.ReadAt.Valid {
		t := m.ReadAt.Time
		out.IsRead = true
		out.ReadAt = &t
	}
	return out
}

func senderOf(u db.User) *Sender {
	return &Sender{ID: u.ID, FullName: u.FullName, ProfilePic: u.ProfilePic}
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Sanitize strips HTML tags and surrounding whitespace.
func Sanitize(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
}

// Length counts characters, not bytes.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}
