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

// Package integration assembles the relay so it can run standalone or be
// embedded into a host application that already owns the database and
// Redis connections.
package integration

import (
	"database/sql"
	"time"

	"github.com/gorilla/mux"
	goredis "github.com/redis/go-redis/v9"

	"github.com/efchatnet/relay/backend/handlers"
	"github.com/efchatnet/relay/backend/presence"
	"github.com/efchatnet/relay/backend/relay"
	"github.com/efchatnet/relay/backend/storage/disk"
	"github.com/efchatnet/relay/backend/storage/postgres"
	redisstore "github.com/efchatnet/relay/backend/storage/redis"
	"github.com/efchatnet/relay/backend/ws"
)

// Config holds the resources and policy knobs the relay needs from its host.
type Config struct {
	DB             *sql.DB
	Redis          *goredis.Client
	DataDir        string
	AllowedOrigins []string
	BotReplyDelay  time.Duration
	SessionResume  bool
	SessionTTL     time.Duration
}

// Relay is the fully wired chat backend.
type Relay struct {
	store     *postgres.Store
	blobs     *disk.BlobStore
	sessions  *redisstore.SessionStore
	registry  *presence.Registry
	service   *relay.Service
	wsHandler *ws.Handler
	api       *handlers.API
}

// New runs migrations and wires every component. Errors here have no
// degraded mode; callers treat them as fatal.
func New(cfg *Config) (*Relay, error) {
	store := postgres.NewStore(cfg.DB)
	if err := store.Migrate(); err != nil {
		return nil, err
	}

	blobs, err := disk.NewBlobStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	sessions := redisstore.NewSessionStore(cfg.Redis, cfg.SessionTTL)
	registry := presence.NewRegistry()
	router := relay.NewRouter(store, store, registry)
	service := relay.NewService(store, blobs, registry, router)

	delay := cfg.BotReplyDelay
	if delay <= 0 {
		delay = 1500 * time.Millisecond
	}
	router.AfterRoute(relay.NewAutoresponder(router, delay))

	return &Relay{
		store:     store,
		blobs:     blobs,
		sessions:  sessions,
		registry:  registry,
		service:   service,
		wsHandler: ws.NewHandler(service, sessions, cfg.SessionResume, cfg.AllowedOrigins),
		api:       handlers.NewAPI(service, sessions, blobs),
	}, nil
}

// RegisterRoutes mounts the WebSocket endpoint, the HTTP binding, and
// audio file serving on the host router.
func (r *Relay) RegisterRoutes(router *mux.Router) {
	router.Handle("/ws", r.wsHandler).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/init", r.api.Init).Methods("POST")
	api.HandleFunc("/groups", r.api.CreateGroup).Methods("POST")
	api.HandleFunc("/groups/{groupId}/members", r.api.UpdateGroup).Methods("PUT")
	api.HandleFunc("/messages", r.api.SendMessage).Methods("POST")
	api.HandleFunc("/history", r.api.GetHistory).Methods("GET")

	router.HandleFunc("/audio/{file}", r.api.ServeAudio).Methods("GET")
}

// Ping reports storage connectivity for health checks.
func (r *Relay) Ping() error {
	return r.store.Ping()
}
