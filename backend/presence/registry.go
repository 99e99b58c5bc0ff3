// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package presence tracks which identities currently hold a live transport.
package presence

import (
	"log"
	"sync"

	"github.com/efchatnet/relay/backend/models"
)

// Peer is the transport handle of one live connection. Deliver must never
// block; implementations enqueue on a buffered channel and fail fast when
// the peer cannot keep up.
type Peer interface {
	Deliver(frame []byte) error
}

type entry struct {
	info models.ClientInfo
	peer Peer
}

// Registry maps live identities to their transport handles. One entry per
// identity at most; a second connection for the same identity replaces the
// first (last-connection-wins).
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register records a live mapping, overwriting any prior one for the id.
func (r *Registry) Register(info models.ClientInfo, peer Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[info.ID] = &entry{info: info, peer: peer}
}

// Unregister removes the mapping. Safe to call when already absent, and a
// no-op when the identity has since been taken over by a newer connection.
func (r *Registry) Unregister(id string, peer Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok && e.peer == peer {
		delete(r.entries, id)
	}
}

// Resolve returns the transport handle for a currently-connected identity.
func (r *Registry) Resolve(id string) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.peer, true
}

// Rename updates the display name of a connected identity.
func (r *Registry) Rename(id, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.info.Name = name
	return true
}

// Name returns the current display name of a connected identity.
func (r *Registry) Name(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return "", false
	}
	return e.info.Name, true
}

// Snapshot returns the full presence list.
func (r *Registry) Snapshot() []models.ClientInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]models.ClientInfo, 0, len(r.entries))
	for _, e := range r.entries {
		clients = append(clients, e.info)
	}
	return clients
}

// Broadcast delivers one frame to every live connection, best effort. The
// peer list is copied out before any delivery so no transport write happens
// under the lock.
func (r *Registry) Broadcast(frame []byte) {
	r.mu.RLock()
	peers := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		peers = append(peers, e)
	}
	r.mu.RUnlock()

	for _, e := range peers {
		if err := e.peer.Deliver(frame); err != nil {
			log.Printf("Broadcast to %s failed: %v", e.info.ID, err)
		}
	}
}
