package registry

import (
	"sync"
)

// Registry maps user identities to their open connection IDs. A user is
// present iff it owns at least one live connection; entries never exist with
// an empty connection set. All access goes through Register, Unregister and
// Presence; nothing else mutates the maps.
type Registry struct {
	mu       sync.RWMutex
	users    map[string]map[string]struct{} // userID -> set of connection IDs
	owners   map[string]string              // connection ID -> userID
	onChange func(online []string)
}

// New creates a registry. onChange is invoked with the full presence snapshot
// whenever a user transitions between absent and present; it may be nil. The
// callback runs synchronously under the registry lock, so it must not call
// back into the registry.
func New(onChange func(online []string)) *Registry {
	return &Registry{
		users:    make(map[string]map[string]struct{}),
		owners:   make(map[string]string),
		onChange: onChange,
	}
}

// Register binds a connection to a user identity. Registering the same
// connection twice is a no-op. The presence callback fires only when the user
// had no connections before.
func (r *Registry) Register(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.owners[connID]; dup {
		return
	}
	r.owners[connID] = userID

	conns, present := r.users[userID]
	if !present {
		conns = make(map[string]struct{})
		r.users[userID] = conns
	}
	conns[connID] = struct{}{}

	if !present {
		r.notifyLocked()
	}
}

// Unregister removes a connection from whichever user owns it. Unknown
// connections (disconnect before setup) are a no-op. The presence callback
// fires only when the user's last connection goes.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owners[connID]
	if !ok {
		return
	}
	delete(r.owners, connID)

	conns := r.users[userID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.users, userID)
		r.notifyLocked()
	}
}

// Presence returns the identities with at least one live connection, in no
// particular order.
func (r *Registry) Presence() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.presenceLocked()
}

// Owner returns the user identity a connection was registered under.
func (r *Registry) Owner(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.owners[connID]
	return userID, ok
}

// Connections returns the number of live connections for a user.
func (r *Registry) Connections(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID])
}

func (r *Registry) presenceLocked() []string {
	online := make([]string, 0, len(r.users))
	for userID := range r.users {
		online = append(online, userID)
	}
	return online
}

func (r *Registry) notifyLocked() {
	if r.onChange != nil {
		r.onChange(r.presenceLocked())
	}
}
