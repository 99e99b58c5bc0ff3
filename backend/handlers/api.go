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

// Package handlers exposes the HTTP binding of the relay: the same
// operations as the WebSocket protocol, keyed by a session token, for
// clients that cannot hold a persistent connection. HTTP clients are never
// registered as connected, so they receive no pushes and catch up through
// history.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/efchatnet/relay/backend/models"
	"github.com/efchatnet/relay/backend/relay"
	"github.com/efchatnet/relay/backend/storage"
)

// BlobServer resolves stored audio references for file serving.
type BlobServer interface {
	Path(ref string) (string, error)
}

type API struct {
	service  *relay.Service
	sessions storage.SessionStore
	blobs    BlobServer
}

func NewAPI(service *relay.Service, sessions storage.SessionStore, blobs BlobServer) *API {
	return &API{service: service, sessions: sessions, blobs: blobs}
}

// Init assigns (or resumes) an identity and returns the full snapshot plus
// the session token to present on every later call.
func (a *API) Init(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name,omitempty"`
		Token string `json:"token,omitempty"`
	}
	// An empty body is a valid init request.
	_ = json.NewDecoder(r.Body).Decode(&req)

	token := req.Token
	var info models.ClientInfo
	if token != "" {
		if found, err := a.sessions.FindSession(token); err == nil {
			info = found
		} else if !errors.Is(err, storage.ErrSessionNotFound) {
			http.Error(w, "Failed to resolve session", http.StatusInternalServerError)
			return
		}
	} else {
		token = uuid.New().String()
	}
	if info.ID == "" {
		info = a.service.NewIdentity(req.Name)
	}

	if err := a.sessions.SaveSession(token, info); err != nil {
		http.Error(w, "Failed to save session", http.StatusInternalServerError)
		return
	}

	welcome, err := a.service.Welcome(info)
	if err != nil {
		http.Error(w, "Failed to build snapshot", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"token":   token,
		"id":      welcome.ID,
		"name":    welcome.Name,
		"clients": welcome.Clients,
		"groups":  welcome.Groups,
		"history": welcome.History,
	})
}

// CreateGroup mirrors the create_group frame.
func (a *API) CreateGroup(w http.ResponseWriter, r *http.Request) {
	info, ok := a.identify(w, r)
	if !ok {
		return
	}

	var req models.CreateGroupPayload
	_ = json.NewDecoder(r.Body).Decode(&req)

	group, err := a.service.CreateGroup(info.ID, req.Name, req.Members)
	if err != nil {
		http.Error(w, "Failed to create group", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(group)
}

// UpdateGroup mirrors the update_group frame.
func (a *API) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.identify(w, r); !ok {
		return
	}

	groupID := mux.Vars(r)["groupId"]
	var req struct {
		Members []string `json:"members"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Members == nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := a.service.UpdateGroupMembers(groupID, req.Members)
	if errors.Is(err, storage.ErrGroupNotFound) {
		http.Error(w, "Group not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to update group", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "updated"})
}

// SendMessage mirrors text_message and voice_note: a body with text sends a
// text message, a body with blobBase64 sends a voice note.
func (a *API) SendMessage(w http.ResponseWriter, r *http.Request) {
	info, ok := a.identify(w, r)
	if !ok {
		return
	}

	var req struct {
		To         string            `json:"to"`
		ToType     models.TargetType `json:"toType"`
		Text       string            `json:"text,omitempty"`
		BlobBase64 string            `json:"blobBase64,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.To == "" || (req.ToType != models.TargetUser && req.ToType != models.TargetGroup) {
		http.Error(w, "Missing target", http.StatusBadRequest)
		return
	}

	var msg models.Message
	var err error
	switch {
	case req.Text != "":
		msg, err = a.service.SendText(info, req.To, req.ToType, req.Text)
	case req.BlobBase64 != "":
		msg, err = a.service.SendVoice(info, req.To, req.ToType, req.BlobBase64)
		if errors.Is(err, relay.ErrInvalidBlob) {
			http.Error(w, "Invalid audio payload", http.StatusBadRequest)
			return
		}
	default:
		http.Error(w, "Missing message content", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, "Failed to send message", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(msg)
}

// GetHistory mirrors the get_history frame.
func (a *API) GetHistory(w http.ResponseWriter, r *http.Request) {
	info, ok := a.identify(w, r)
	if !ok {
		return
	}

	targetID := r.URL.Query().Get("targetId")
	targetType := models.TargetType(r.URL.Query().Get("targetType"))
	if targetID == "" || (targetType != models.TargetUser && targetType != models.TargetGroup) {
		http.Error(w, "Missing target", http.StatusBadRequest)
		return
	}

	history, err := a.service.History(info.ID, targetID, targetType)
	if err != nil {
		http.Error(w, "Failed to load history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(history)
}

// ServeAudio streams one stored voice note.
func (a *API) ServeAudio(w http.ResponseWriter, r *http.Request) {
	path, err := a.blobs.Path("/audio/" + mux.Vars(r)["file"])
	if err != nil {
		http.Error(w, "Audio not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, path)
}

// identify resolves the session token carried in the X-Session-Token
// header (or ?session= for GETs).
func (a *API) identify(w http.ResponseWriter, r *http.Request) (models.ClientInfo, bool) {
	token := r.Header.Get("X-Session-Token")
	if token == "" {
		token = r.URL.Query().Get("session")
	}
	if token == "" {
		http.Error(w, "Missing session token", http.StatusUnauthorized)
		return models.ClientInfo{}, false
	}

	info, err := a.sessions.FindSession(token)
	if errors.Is(err, storage.ErrSessionNotFound) {
		http.Error(w, "Unknown session", http.StatusUnauthorized)
		return models.ClientInfo{}, false
	}
	if err != nil {
		log.Printf("Session lookup failed: %v", err)
		http.Error(w, "Failed to resolve session", http.StatusInternalServerError)
		return models.ClientInfo{}, false
	}
	return info, true
}
