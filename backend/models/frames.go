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

import "encoding/json"

// Frame type tags exchanged over the persistent connection. Inbound and
// outbound tags share one namespace; "signal" appears in both directions.
const (
	// client -> server
	FrameSetName     = "set_name"
	FrameCreateGroup = "create_group"
	FrameUpdateGroup = "update_group"
	FrameTextMessage = "text_message"
	FrameVoiceNote   = "voice_note"
	FrameGetHistory  = "get_history"
	FrameSignal      = "signal"

	// server -> client
	FrameWelcome       = "welcome"
	FrameClientsUpdate = "clients_update"
	FrameGroupsUpdate  = "groups_update"
	FrameGroupCreated  = "group_created"
	FrameIncomingText  = "incoming_text"
	FrameIncomingVoice = "incoming_voice"
	FrameHistory       = "history"
	FrameError         = "error"
)

// Envelope is the structured wrapper around every frame. The payload is kept
// raw until the type tag has been inspected.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeFrame marshals a typed payload into a wire-ready envelope.
func EncodeFrame(frameType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: frameType, Payload: raw})
}

// SetNamePayload renames the sending identity.
type SetNamePayload struct {
	Name string `json:"name"`
}

// CreateGroupPayload requests a new group. Both fields are optional; an
// empty member list defaults to the requesting identity alone.
type CreateGroupPayload struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// UpdateGroupPayload replaces a group's member set wholesale.
type UpdateGroupPayload struct {
	GroupID string   `json:"groupId"`
	Members []string `json:"members"`
}

// TextMessagePayload carries an outbound text message.
type TextMessagePayload struct {
	To     string     `json:"to"`
	ToType TargetType `json:"toType"`
	Text   string     `json:"text"`
}

// VoiceNotePayload carries a recorded voice note. BlobBase64 may start with
// a data-URI prefix declaring the audio MIME type.
type VoiceNotePayload struct {
	To         string     `json:"to"`
	ToType     TargetType `json:"toType"`
	BlobBase64 string     `json:"blobBase64"`
}

// GetHistoryPayload requests the stored conversation with one target.
type GetHistoryPayload struct {
	TargetID   string     `json:"targetId"`
	TargetType TargetType `json:"targetType"`
}

// SignalPayload relays opaque negotiation data to a single peer. Signals are
// never persisted.
type SignalPayload struct {
	To   string          `json:"to"`
	Data json.RawMessage `json:"data"`
}

// SignalEvent is the outbound form of a relayed signal.
type SignalEvent struct {
	From     string          `json:"from"`
	FromName string          `json:"fromName"`
	Data     json.RawMessage `json:"data"`
}

// WelcomePayload is the initial snapshot sent once per connection.
type WelcomePayload struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Clients []ClientInfo `json:"clients"`
	Groups  []Group      `json:"groups"`
	History []Message    `json:"history"`
}

// ErrorPayload reports a failed operation back to the originating
// connection only.
type ErrorPayload struct {
	Op    string `json:"op"`
	Error string `json:"error"`
}
