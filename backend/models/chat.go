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

package models

// TargetType says whether a message is addressed to a single user or a group.
type TargetType string

const (
	TargetUser  TargetType = "user"
	TargetGroup TargetType = "group"
)

// Kind distinguishes plain text messages from stored voice notes.
type Kind string

const (
	KindText  Kind = "text"
	KindAudio Kind = "audio"
)

// ClientInfo is the public view of a connected (or historical) identity.
type ClientInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Message is an immutable chat event. The sender name is denormalized at
// send time so history reads never depend on a possibly-stale identity table.
// Text is set iff Kind is "text"; AudioRef is set iff Kind is "audio".
type Message struct {
	ID       string     `json:"id"`
	From     string     `json:"from"`
	FromName string     `json:"fromName"`
	To       string     `json:"to"`
	ToType   TargetType `json:"toType"`
	TS       int64      `json:"ts"` // wall clock, milliseconds
	Kind     Kind       `json:"kind"`
	Text     string     `json:"text,omitempty"`
	AudioRef string     `json:"audioRef,omitempty"`
}

// Group maps a group id to its name and member set. Member lists are
// unordered and never contain duplicates.
type Group struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// DedupeMembers removes duplicate ids while keeping first-seen order.
func DedupeMembers(members []string) []string {
	seen := make(map[string]struct{}, len(members))
	out := make([]string, 0, len(members))
	for _, id := range members {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// HasMember reports whether id is part of the group.
func (g Group) HasMember(id string) bool {
	for _, m := range g.Members {
		if m == id {
			return true
		}
	}
	return false
}
