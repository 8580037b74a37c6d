/*
Package user holds the account model exposed to clients.

Stored rows carry the password hash and a persisted online flag. Clients only ever
see the Public projection, whose IsOnline comes from the live connection registry.
*/
package user

import (
	"time"

	"justchat/internal/app/db"
)

// Public is the client-facing view of an account.
type Public struct {
	ID         string     `json:"_id"`
	FullName   string     `json:"fullName"`
	Email      string     `json:"email"`
	ProfilePic string     `json:"profilePic"`
	IsOnline   bool       `json:"isOnline"`
	LastSeen   *time.Time `json:"lastSeen,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// OnlineFunc reports whether a user currently has an open connection.
type OnlineFunc func(userID string) bool

// FromRow projects a stored user. A nil online falls back to the stored flag.
func FromRow(u db.User, online OnlineFunc) Public {
	p := Public{
		ID:         u.ID,
		FullName:   u.FullName,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		IsOnline:   u.IsOnline,
		CreatedAt:  u.CreatedAt,
	}
	if online != nil {
		p.IsOnline = online(u.ID)
	}
	if u.LastSeen.Valid {
		t := u.LastSeen.Time
		p.LastSeen = &t
	}
	return p
}

// FromRows projects a list, never returning nil.
func FromRows(rows []db.User, online OnlineFunc) []Public {
	out := make([]Public, 0, len(rows))
	for _, u := range rows {
		out = append(out, FromRow(u, online))
	}
	return out
}
