/*
Package realtime tracks connected users and pushes events to their open connections.

This file defines the Registry, the single shared table from user id to the set of
connections that user currently has open. Every other component reads and mutates
it through its methods only.
*/
package realtime

import (
	"sort"
	"sync"
)

// Sink is one open connection as seen by the registry and the router.
type Sink interface {
	// ID is unique per transport session.
	ID() string

	// UserID is the identity the connection was admitted as.
	UserID() string

	// Send queues msg for delivery without blocking.
	Send(msg []byte) error
}

// Registry maps user ids to their open connections.
// A connection id is owned by at most one user at any time, and a user with no
// connections has no entry at all.
type Registry struct {
	mu sync.RWMutex

	// users holds each online user's connections, keyed by connection id.
	users map[string]map[string]Sink

	// owners maps connection id back to the owning user.
	owners map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[string]map[string]Sink),
		owners: make(map[string]string),
	}
}

// Register adds conn under userID. Registering the same pair twice is a no-op.
// A connection id previously owned by another user is moved to userID.
// It reports whether userID had no connections before the call.
func (r *Registry) Register(userID string, conn Sink) (first bool) {
	connID := conn.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.owners[connID]; ok && prev != userID {
		r.removeLocked(prev, connID)
	}

	conns, ok := r.users[userID]
	if !ok {
		conns = make(map[string]Sink)
		r.users[userID] = conns
	}

	conns[connID] = conn
	r.owners[connID] = userID

	return !ok
}

// Deregister removes connID from userID. It is a no-op when the pair is not
// registered. removed reports whether anything changed; last reports whether
// userID went offline as a result.
func (r *Registry) Deregister(userID, connID string) (removed, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.owners[connID]; !ok || owner != userID {
		return false, false
	}

	return true, r.removeLocked(userID, connID)
}

// removeLocked deletes the pair and reports whether the user entry was dropped.
func (r *Registry) removeLocked(userID, connID string) bool {
	delete(r.owners, connID)

	conns := r.users[userID]
	delete(conns, connID)

	if len(conns) == 0 {
		delete(r.users, userID)
		return true
	}
	return false
}

// ConnectionsFor returns the connection ids of userID, sorted. The result is
// never nil.
func (r *Registry) ConnectionsFor(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.users[userID]))
	for id := range r.users[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// OnlineUserIDs returns every user with at least one connection, sorted.
func (r *Registry) OnlineUserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsOnline reports whether userID has at least one connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.users[userID]
	return ok
}

// Counts returns the number of connections and online users.
func (r *Registry) Counts() (connections, users int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.owners), len(r.users)
}

// sinksFor snapshots the connections of every listed user. Duplicate user ids
// are resolved once.
func (r *Registry) sinksFor(userIDs ...string) []Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Sink
	seen := make(map[string]struct{}, len(userIDs))
	for _, uid := range userIDs {
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}

		for _, s := range r.users[uid] {
			out = append(out, s)
		}
	}
	return out
}

// snapshot returns the online user ids and every open connection under one read lock.
func (r *Registry) snapshot() ([]string, []Sink) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.users))
	sinks := make([]Sink, 0, len(r.owners))
	for uid, conns := range r.users {
		ids = append(ids, uid)
		for _, s := range conns {
			sinks = append(sinks, s)
		}
	}
	sort.Strings(ids)
	return ids, sinks
}
