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

package ws

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/efchatnet/relay/backend/models"
	"github.com/efchatnet/relay/backend/relay"
	"github.com/efchatnet/relay/backend/storage"
)

// session is the per-connection protocol state machine. The connection is
// identified immediately on attach, then serves validated operations until
// the transport closes. Malformed frames are dropped with a log line, never
// answered; storage failures are reported to this connection only.
type session struct {
	client   *Client
	info     models.ClientInfo
	token    string // session token when resumption is active, else ""
	service  *relay.Service
	sessions storage.SessionStore
}

// run registers the identity, sends the welcome snapshot, then pumps
// inbound frames until the connection dies.
func (s *session) run() {
	registry := s.service.Registry()
	registry.Register(s.info, s.client)
	log.Printf("Client connected: %s (%s)", s.info.Name, s.info.ID)

	defer func() {
		registry.Unregister(s.info.ID, s.client)
		s.client.close()
		log.Printf("Client disconnected: %s (%s)", s.info.Name, s.info.ID)
		s.service.BroadcastPresence()
	}()

	welcome, err := s.service.Welcome(s.info)
	if err != nil {
		log.Printf("Failed to build welcome for %s: %v", s.info.ID, err)
		s.sendError("welcome", err)
		return
	}
	s.push(models.FrameWelcome, welcome)
	s.service.BroadcastPresence()

	s.client.conn.SetReadLimit(maxFrameSize)
	if err := s.client.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	s.client.conn.SetPongHandler(func(string) error {
		return s.client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.client.conn.ReadMessage()
		if err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("WebSocket read error from %s: %v", s.info.ID, err)
			}
			return
		}
		s.dispatch(raw)
	}
}

// dispatch validates one inbound envelope and delegates to the service.
// The switch covers every inbound frame type; unknown tags are dropped.
func (s *session) dispatch(raw []byte) {
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("Invalid frame from %s: %v", s.info.ID, err)
		return
	}

	switch env.Type {
	case models.FrameSetName:
		var p models.SetNamePayload
		if !decode(env, &p, s.info.ID) || p.Name == "" {
			return
		}
		s.info.Name = p.Name
		s.service.Rename(s.info.ID, p.Name)
		s.persistSession()

	case models.FrameCreateGroup:
		// Both payload fields are optional; a bare create_group is valid.
		var p models.CreateGroupPayload
		if len(env.Payload) > 0 && !decode(env, &p, s.info.ID) {
			return
		}
		group, err := s.service.CreateGroup(s.info.ID, p.Name, p.Members)
		if err != nil {
			s.sendError(models.FrameCreateGroup, err)
			return
		}
		s.push(models.FrameGroupCreated, group)

	case models.FrameUpdateGroup:
		var p models.UpdateGroupPayload
		if !decode(env, &p, s.info.ID) || p.GroupID == "" || p.Members == nil {
			return
		}
		err := s.service.UpdateGroupMembers(p.GroupID, p.Members)
		if errors.Is(err, storage.ErrGroupNotFound) {
			log.Printf("update_group for unknown group %s", p.GroupID)
			return
		}
		if err != nil {
			s.sendError(models.FrameUpdateGroup, err)
		}

	case models.FrameTextMessage:
		var p models.TextMessagePayload
		if !decode(env, &p, s.info.ID) || p.To == "" || p.Text == "" || !validTarget(p.ToType) {
			return
		}
		if _, err := s.service.SendText(s.identity(), p.To, p.ToType, p.Text); err != nil {
			s.sendError(models.FrameTextMessage, err)
		}

	case models.FrameVoiceNote:
		var p models.VoiceNotePayload
		if !decode(env, &p, s.info.ID) || p.To == "" || p.BlobBase64 == "" || !validTarget(p.ToType) {
			return
		}
		_, err := s.service.SendVoice(s.identity(), p.To, p.ToType, p.BlobBase64)
		if errors.Is(err, relay.ErrInvalidBlob) {
			log.Printf("Undecodable voice note from %s: %v", s.info.ID, err)
			return
		}
		if err != nil {
			s.sendError(models.FrameVoiceNote, err)
		}

	case models.FrameGetHistory:
		var p models.GetHistoryPayload
		if !decode(env, &p, s.info.ID) || p.TargetID == "" || !validTarget(p.TargetType) {
			return
		}
		history, err := s.service.History(s.info.ID, p.TargetID, p.TargetType)
		if err != nil {
			s.sendError(models.FrameGetHistory, err)
			return
		}
		s.push(models.FrameHistory, history)

	case models.FrameSignal:
		var p models.SignalPayload
		if !decode(env, &p, s.info.ID) || p.To == "" || len(p.Data) == 0 {
			return
		}
		s.service.Signal(s.identity(), p.To, p.Data)

	default:
		log.Printf("Unknown frame type %q from %s", env.Type, s.info.ID)
	}
}

// identity returns the identity with its current display name, so renames
// are reflected in the denormalized fromName of later messages.
func (s *session) identity() models.ClientInfo {
	if name, ok := s.service.Registry().Name(s.info.ID); ok {
		s.info.Name = name
	}
	return s.info
}

// persistSession re-saves the resumable session after a rename so the name
// survives reconnects.
func (s *session) persistSession() {
	if s.token == "" || s.sessions == nil {
		return
	}
	if err := s.sessions.SaveSession(s.token, s.info); err != nil {
		log.Printf("Failed to persist session for %s: %v", s.info.ID, err)
	}
}

func (s *session) push(frameType string, payload any) {
	frame, err := models.EncodeFrame(frameType, payload)
	if err != nil {
		log.Printf("Failed to encode %s frame: %v", frameType, err)
		return
	}
	if err := s.client.Deliver(frame); err != nil {
		log.Printf("Failed to push %s to %s: %v", frameType, s.info.ID, err)
	}
}

func (s *session) sendError(op string, err error) {
	s.push(models.FrameError, models.ErrorPayload{Op: op, Error: err.Error()})
}

func decode(env models.Envelope, dst any, clientID string) bool {
	if len(env.Payload) == 0 {
		log.Printf("Frame %q from %s has no payload", env.Type, clientID)
		return false
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		log.Printf("Malformed %q payload from %s: %v", env.Type, clientID, err)
		return false
	}
	return true
}

func validTarget(t models.TargetType) bool {
	return t == models.TargetUser || t == models.TargetGroup
}
