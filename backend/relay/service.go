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

package relay

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/efchatnet/relay/backend/models"
	"github.com/efchatnet/relay/backend/presence"
	"github.com/efchatnet/relay/backend/storage"
)

// ErrInvalidBlob marks a voice note whose payload could not be decoded.
// Callers treat it like any other malformed frame: drop and log.
var ErrInvalidBlob = errors.New("invalid audio payload")

// Optional data-URI prefix on voice note payloads, declaring the MIME type.
var dataURIPattern = regexp.MustCompile(`(?i)^data:(audio/[a-z0-9.+-]+);base64,(.*)$`)

// BlobSaver is the slice of the blob store the service needs.
type BlobSaver interface {
	SaveAudio(data []byte, mimeType string) (string, error)
}

// Service implements the chat operations behind both transport bindings.
// Every state change goes through here so WebSocket sessions and HTTP
// clients observe identical semantics.
type Service struct {
	store    storage.Store
	blobs    BlobSaver
	registry *presence.Registry
	router   *Router
}

func NewService(store storage.Store, blobs BlobSaver, registry *presence.Registry, router *Router) *Service {
	return &Service{store: store, blobs: blobs, registry: registry, router: router}
}

// NewIdentity mints a fresh ephemeral identity. An empty desired name gets
// the default derived from the id.
func (s *Service) NewIdentity(desired string) models.ClientInfo {
	id := uuid.New().String()
	name := desired
	if name == "" {
		name = "User-" + id[:4]
	}
	return models.ClientInfo{ID: id, Name: name}
}

// Welcome builds the initial snapshot for one identity: the full presence
// list, every group, and the complete message log.
func (s *Service) Welcome(info models.ClientInfo) (models.WelcomePayload, error) {
	groups, err := s.store.ListGroups()
	if err != nil {
		return models.WelcomePayload{}, fmt.Errorf("failed to list groups: %w", err)
	}
	history, err := s.store.AllMessages()
	if err != nil {
		return models.WelcomePayload{}, fmt.Errorf("failed to load history: %w", err)
	}
	return models.WelcomePayload{
		ID:      info.ID,
		Name:    info.Name,
		Clients: s.registry.Snapshot(),
		Groups:  groups,
		History: history,
	}, nil
}

// CreateGroup registers a new group. An empty member list defaults to the
// owner alone; an explicit list is taken as-is (minus duplicates), so an
// owner can create a group without being in it.
func (s *Service) CreateGroup(ownerID, name string, members []string) (models.Group, error) {
	id := uuid.New().String()
	if name == "" {
		name = "Grupo-" + id[:4]
	}
	members = models.DedupeMembers(members)
	if len(members) == 0 {
		members = []string{ownerID}
	}
	group := models.Group{ID: id, Name: name, Members: members}
	if err := s.store.SaveGroup(group); err != nil {
		return models.Group{}, fmt.Errorf("failed to save group: %w", err)
	}
	s.BroadcastGroups()
	return group, nil
}

// UpdateGroupMembers replaces a group's member set wholesale.
func (s *Service) UpdateGroupMembers(groupID string, members []string) error {
	if err := s.store.UpdateMembers(groupID, models.DedupeMembers(members)); err != nil {
		return err
	}
	s.BroadcastGroups()
	return nil
}

// SendText persists and routes one text message.
func (s *Service) SendText(from models.ClientInfo, to string, toType models.TargetType, text string) (models.Message, error) {
	msg := models.Message{
		ID:       uuid.New().String(),
		From:     from.ID,
		FromName: from.Name,
		To:       to,
		ToType:   toType,
		TS:       time.Now().UnixMilli(),
		Kind:     models.KindText,
		Text:     text,
	}
	if err := s.router.Route(msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// SendVoice decodes the payload, stores the blob, then persists and routes
// the referencing message — strictly in that order, so the log never points
// at a missing blob.
func (s *Service) SendVoice(from models.ClientInfo, to string, toType models.TargetType, blobBase64 string) (models.Message, error) {
	mimeType := "audio/webm"
	b64 := blobBase64
	if m := dataURIPattern.FindStringSubmatch(blobBase64); m != nil {
		mimeType = m[1]
		b64 = m[2]
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrInvalidBlob, err)
	}

	ref, err := s.blobs.SaveAudio(data, mimeType)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to store voice note: %w", err)
	}

	msg := models.Message{
		ID:       uuid.New().String(),
		From:     from.ID,
		FromName: from.Name,
		To:       to,
		ToType:   toType,
		TS:       time.Now().UnixMilli(),
		Kind:     models.KindAudio,
		AudioRef: ref,
	}
	if err := s.router.Route(msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// History returns the stored conversation between selfID and one target.
func (s *Service) History(selfID, targetID string, targetType models.TargetType) ([]models.Message, error) {
	return s.store.QueryHistory(selfID, targetID, targetType)
}

// Rename updates a connected identity's display name and re-broadcasts the
// presence list.
func (s *Service) Rename(id, name string) {
	if s.registry.Rename(id, name) {
		s.BroadcastPresence()
	}
}

// Signal relays opaque data to one peer without persisting anything.
func (s *Service) Signal(from models.ClientInfo, to string, data json.RawMessage) {
	frame, err := models.EncodeFrame(models.FrameSignal, models.SignalEvent{
		From:     from.ID,
		FromName: from.Name,
		Data:     data,
	})
	if err != nil {
		log.Printf("Failed to encode signal frame: %v", err)
		return
	}
	s.router.Relay(to, frame)
}

// BroadcastPresence pushes the current presence snapshot to everyone.
func (s *Service) BroadcastPresence() {
	frame, err := models.EncodeFrame(models.FrameClientsUpdate, s.registry.Snapshot())
	if err != nil {
		log.Printf("Failed to encode presence frame: %v", err)
		return
	}
	s.registry.Broadcast(frame)
}

// BroadcastGroups pushes the full group list to everyone.
func (s *Service) BroadcastGroups() {
	groups, err := s.store.ListGroups()
	if err != nil {
		log.Printf("Failed to list groups for broadcast: %v", err)
		return
	}
	frame, err := models.EncodeFrame(models.FrameGroupsUpdate, groups)
	if err != nil {
		log.Printf("Failed to encode groups frame: %v", err)
		return
	}
	s.registry.Broadcast(frame)
}

// Registry exposes the connection registry to the transport bindings.
func (s *Service) Registry() *presence.Registry {
	return s.registry
}
