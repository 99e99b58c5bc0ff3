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

package main

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/efchatnet/relay/backend/config"
	"github.com/efchatnet/relay/backend/integration"
	"github.com/efchatnet/relay/backend/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})

	chat, err := integration.New(&integration.Config{
		DB:             db,
		Redis:          rdb,
		DataDir:        cfg.DataDir,
		AllowedOrigins: cfg.AllowedOrigins,
		BotReplyDelay:  cfg.BotReplyDelay,
		SessionResume:  cfg.SessionResume,
		SessionTTL:     cfg.SessionTTL,
	})
	if err != nil {
		log.Fatalf("Failed to initialize relay: %v", err)
	}

	r := mux.NewRouter()
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	chat.RegisterRoutes(r)

	// Health check (no session required)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := chat.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Database unavailable"))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	log.Printf("Relay server starting on port %s", cfg.Port)
	log.Printf("Session resume: %v", cfg.SessionResume)

	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
