// Package registry tracks which usernames are online and which connection
// owns each of them. It holds no locks: every mutation happens on the hub
// event loop goroutine.
package registry

import "github.com/parleyhq/parley/domain"

type entry struct {
	username string
	client   domain.Client
}

// Registry maps usernames to live connections, at most one connection per
// username and at most one username per connection. Iteration follows
// registration order.
type Registry struct {
	entries []*entry
	byName  map[string]*entry
}

func New() *Registry {
	return &Registry{
		byName: make(map[string]*entry),
	}
}

// Register binds username to c. If another connection currently owns the
// username, that connection is returned so the caller can close it (the
// newest connection always wins). If c itself was registered under a
// different username, that old binding is dropped.
func (r *Registry) Register(username string, c domain.Client) domain.Client {
	var superseded domain.Client

	if prev, ok := r.byName[username]; ok {
		if prev.client.ID() == c.ID() {
			return nil
		}
		superseded = prev.client
		r.remove(prev)
	}

	// A rename moves the connection's entry rather than leaving a stale
	// binding behind.
	for _, e := range r.entries {
		if e.client.ID() == c.ID() {
			r.remove(e)
			break
		}
	}

	e := &entry{username: username, client: c}
	r.entries = append(r.entries, e)
	r.byName[username] = e

	return superseded
}

// Unregister removes the entry owned by c, if any, and reports the username
// it held. It is a no-op when c was already superseded by a newer
// registration for the same name.
func (r *Registry) Unregister(c domain.Client) (string, bool) {
	for _, e := range r.entries {
		if e.client.ID() == c.ID() {
			r.remove(e)
			return e.username, true
		}
	}
	return "", false
}

// Lookup returns the connection currently bound to username.
func (r *Registry) Lookup(username string) (domain.Client, bool) {
	e, ok := r.byName[username]
	if !ok {
		return nil, false
	}
	return e.client, true
}

// Others lists every registered username except the given one, in
// registration order.
func (r *Registry) Others(excluding string) []string {
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		if e.username != excluding {
			names = append(names, e.username)
		}
	}
	return names
}

// Clients snapshots every registered connection in registration order.
func (r *Registry) Clients() []domain.Client {
	clients := make([]domain.Client, 0, len(r.entries))
	for _, e := range r.entries {
		clients = append(clients, e.client)
	}
	return clients
}

func (r *Registry) Len() int {
	return len(r.entries)
}

func (r *Registry) remove(target *entry) {
	for i, e := range r.entries {
		if e == target {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
	delete(r.byName, target.username)
}
