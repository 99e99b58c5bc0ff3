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

// Package memory provides mutex-guarded in-memory implementations of the
// storage interfaces. They back the test suite and carry the exact same
// query semantics as the Postgres store.
package memory

import (
	"sync"

	"github.com/efchatnet/relay/backend/models"
	"github.com/efchatnet/relay/backend/storage"
)

// Store holds the message log and group registry in process memory. The
// slice order of the log is the insertion order, which doubles as the
// timestamp tie-break.
type Store struct {
	mu       sync.RWMutex
	messages []models.Message
	groups   map[string]models.Group
	order    []string // group creation order
}

func NewStore() *Store {
	return &Store{groups: make(map[string]models.Group)}
}

func (s *Store) Append(msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *Store) QueryHistory(selfID, targetID string, targetType models.TargetType) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []models.Message{}
	switch targetType {
	case models.TargetUser:
		for _, msg := range s.messages {
			if msg.ToType != models.TargetUser {
				continue
			}
			if (msg.From == selfID && msg.To == targetID) ||
				(msg.From == targetID && msg.To == selfID) {
				result = append(result, msg)
			}
		}
	case models.TargetGroup:
		group, ok := s.groups[targetID]
		if !ok || !group.HasMember(selfID) {
			return result, nil
		}
		for _, msg := range s.messages {
			if msg.ToType == models.TargetGroup && msg.To == targetID {
				result = append(result, msg)
			}
		}
	}
	sortStable(result)
	return result, nil
}

func (s *Store) AllMessages() ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Message{}, s.messages...), nil
}

func (s *Store) SaveGroup(group models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[group.ID]; !ok {
		s.order = append(s.order, group.ID)
	}
	group.Members = append([]string{}, group.Members...)
	s.groups[group.ID] = group
	return nil
}

func (s *Store) UpdateMembers(groupID string, members []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.groups[groupID]
	if !ok {
		return storage.ErrGroupNotFound
	}
	group.Members = append([]string{}, members...)
	s.groups[groupID] = group
	return nil
}

func (s *Store) GetGroup(groupID string) (models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	group, ok := s.groups[groupID]
	if !ok {
		return models.Group{}, storage.ErrGroupNotFound
	}
	group.Members = append([]string{}, group.Members...)
	return group, nil
}

func (s *Store) ListGroups() ([]models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups := make([]models.Group, 0, len(s.order))
	for _, id := range s.order {
		group := s.groups[id]
		group.Members = append([]string{}, group.Members...)
		groups = append(groups, group)
	}
	return groups, nil
}

// sortStable orders by ascending timestamp keeping insertion order for
// equal timestamps.
func sortStable(messages []models.Message) {
	for i := 1; i < len(messages); i++ {
		for j := i; j > 0 && messages[j-1].TS > messages[j].TS; j-- {
			messages[j-1], messages[j] = messages[j], messages[j-1]
		}
	}
}

// Sessions is the in-memory SessionStore used by tests; expiry is not
// modeled.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]models.ClientInfo
}

func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]models.ClientInfo)}
}

func (s *Sessions) SaveSession(token string, info models.ClientInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = info
	return nil
}

func (s *Sessions) FindSession(token string) (models.ClientInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.sessions[token]
	if !ok {
		return models.ClientInfo{}, storage.ErrSessionNotFound
	}
	return info, nil
}
