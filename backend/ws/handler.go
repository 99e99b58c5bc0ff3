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
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/efchatnet/relay/backend/models"
	"github.com/efchatnet/relay/backend/relay"
	"github.com/efchatnet/relay/backend/storage"
)

// Handler upgrades HTTP requests to WebSocket sessions.
type Handler struct {
	service  *relay.Service
	sessions storage.SessionStore
	resume   bool
	upgrader websocket.Upgrader
}

// NewHandler builds the upgrade endpoint. With resume enabled, clients may
// present a ?session= token to get their previous identity back; otherwise
// every connection is a fresh identity. An empty origin list allows all
// origins.
func NewHandler(service *relay.Service, sessions storage.SessionStore, resume bool, allowedOrigins []string) *Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}
	return &Handler{
		service:  service,
		sessions: sessions,
		resume:   resume,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	info, token := h.resolveIdentity(r)
	client := newClient(conn)
	sess := &session{
		client:   client,
		info:     info,
		token:    token,
		service:  h.service,
		sessions: h.sessions,
	}

	go client.writePump()
	go sess.run()
}

// resolveIdentity picks the identity for a new connection. Resumption is a
// deployment choice: when off, reconnecting clients always become somebody
// new, exactly like the ephemeral default.
func (h *Handler) resolveIdentity(r *http.Request) (models.ClientInfo, string) {
	if !h.resume || h.sessions == nil {
		return h.service.NewIdentity(""), ""
	}
	token := r.URL.Query().Get("session")
	if token == "" {
		return h.service.NewIdentity(""), ""
	}

	info, err := h.sessions.FindSession(token)
	if err == nil {
		return info, token
	}
	if err != storage.ErrSessionNotFound {
		log.Printf("Session lookup failed: %v", err)
	}

	info = h.service.NewIdentity("")
	if err := h.sessions.SaveSession(token, info); err != nil {
		log.Printf("Failed to save session %s: %v", token, err)
	}
	return info, token
}
