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

// Package relay implements message routing and the operations shared by the
// WebSocket and HTTP bindings.
package relay

import (
	"errors"
	"fmt"
	"log"

	"github.com/efchatnet/relay/backend/models"
	"github.com/efchatnet/relay/backend/presence"
	"github.com/efchatnet/relay/backend/storage"
)

// Hook runs after a message has been persisted and fanned out. Hooks must
// not block; anything slow belongs on a timer or goroutine.
type Hook func(msg models.Message)

// Router persists every outbound message and delivers it to the recipients
// that currently hold a live connection. Persistence always happens;
// delivery is at-most-once per connected recipient with no retry.
type Router struct {
	store    storage.MessageStore
	groups   storage.GroupStore
	registry *presence.Registry
	hooks    []Hook
}

func NewRouter(store storage.MessageStore, groups storage.GroupStore, registry *presence.Registry) *Router {
	return &Router{store: store, groups: groups, registry: registry}
}

// AfterRoute registers a post-route hook. Not safe to call once routing has
// started; wire hooks during startup.
func (r *Router) AfterRoute(hook Hook) {
	r.hooks = append(r.hooks, hook)
}

// Route appends the message to the log and pushes it to every reachable
// recipient. An append failure aborts before any delivery and is reported
// to the caller; a failed push to one recipient only skips that recipient.
func (r *Router) Route(msg models.Message) error {
	if err := r.store.Append(msg); err != nil {
		return fmt.Errorf("failed to persist message: %w", err)
	}

	frameType := models.FrameIncomingText
	if msg.Kind == models.KindAudio {
		frameType = models.FrameIncomingVoice
	}
	frame, err := models.EncodeFrame(frameType, msg)
	if err != nil {
		return fmt.Errorf("failed to encode message frame: %w", err)
	}

	for id := range r.recipients(msg) {
		peer, ok := r.registry.Resolve(id)
		if !ok {
			continue // offline, will catch up via history
		}
		if err := peer.Deliver(frame); err != nil {
			log.Printf("Delivery of %s to %s failed: %v", msg.ID, id, err)
		}
	}

	for _, hook := range r.hooks {
		hook(msg)
	}
	return nil
}

// recipients resolves the target to a deduplicated identity set. Direct
// messages echo back to the sender as a separate inbound push, so clients
// never need an optimistic local copy. An unknown group delivers to nobody.
func (r *Router) recipients(msg models.Message) map[string]struct{} {
	set := make(map[string]struct{})
	switch msg.ToType {
	case models.TargetUser:
		set[msg.To] = struct{}{}
		set[msg.From] = struct{}{}
	case models.TargetGroup:
		group, err := r.groups.GetGroup(msg.To)
		if errors.Is(err, storage.ErrGroupNotFound) {
			log.Printf("Message %s addressed to unknown group %s", msg.ID, msg.To)
			return set
		}
		if err != nil {
			log.Printf("Failed to resolve group %s: %v", msg.To, err)
			return set
		}
		for _, id := range group.Members {
			set[id] = struct{}{}
		}
	}
	return set
}

// Relay pushes an unpersisted frame to a single peer. Used for out-of-band
// signal negotiation.
func (r *Router) Relay(to string, frame []byte) bool {
	peer, ok := r.registry.Resolve(to)
	if !ok {
		return false
	}
	if err := peer.Deliver(frame); err != nil {
		log.Printf("Signal relay to %s failed: %v", to, err)
		return false
	}
	return true
}
