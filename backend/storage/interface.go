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

package storage

import (
	"errors"

	"github.com/efchatnet/relay/backend/models"
)

var (
	// ErrGroupNotFound is returned when a group id resolves to nothing.
	ErrGroupNotFound = errors.New("group not found")
	// ErrSessionNotFound is returned when a session token is unknown or expired.
	ErrSessionNotFound = errors.New("session not found")
)

// MessageStore is the append-only durable log of every message ever sent.
// Messages are immutable once appended.
type MessageStore interface {
	// Append durably persists the message before returning. Concurrent
	// appends must not interleave or lose records.
	Append(msg models.Message) error

	// QueryHistory returns the conversation between selfID and the target:
	// for user targets, all messages whose (from, to) is the unordered pair
	// {selfID, targetID}; for group targets, all messages addressed to the
	// group, but only when selfID is currently a member. Ordered by
	// ascending timestamp, ties broken by insertion order. Unknown targets
	// yield an empty sequence, never an error.
	QueryHistory(selfID, targetID string, targetType models.TargetType) ([]models.Message, error)

	// AllMessages returns the full log in insertion order, used to build the
	// welcome snapshot.
	AllMessages() ([]models.Message, error)
}

// GroupStore holds group identity, name and member sets. Member replacement
// is wholesale, never incremental.
type GroupStore interface {
	SaveGroup(group models.Group) error
	// UpdateMembers replaces the member set. Returns ErrGroupNotFound when
	// the group id is unknown.
	UpdateMembers(groupID string, members []string) error
	// GetGroup returns ErrGroupNotFound when the group id is unknown.
	GetGroup(groupID string) (models.Group, error)
	ListGroups() ([]models.Group, error)
}

// SessionStore maps ephemeral session tokens to identities. Entries expire;
// a lookup after expiry returns ErrSessionNotFound.
type SessionStore interface {
	SaveSession(token string, info models.ClientInfo) error
	FindSession(token string) (models.ClientInfo, error)
}

// Store is the combined durable state behind the relay.
type Store interface {
	MessageStore
	GroupStore
}
