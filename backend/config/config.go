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

package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config carries every runtime setting, populated from the environment.
type Config struct {
	Port           string        `envconfig:"PORT" default:"8081"`
	DatabaseURL    string        `envconfig:"DATABASE_URL" default:"postgres://localhost/relay?sslmode=disable"`
	RedisURL       string        `envconfig:"REDIS_URL" default:"localhost:6379"`
	DataDir        string        `envconfig:"DATA_DIR" default:"data"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS"`
	BotReplyDelay  time.Duration `envconfig:"BOT_REPLY_DELAY" default:"1500ms"`

	// SessionResume decides whether reconnecting WebSocket clients may
	// present a token to get their previous identity back. Off by default:
	// every connection is a fresh identity. The HTTP binding always uses
	// tokens regardless.
	SessionResume bool          `envconfig:"SESSION_RESUME" default:"false"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"168h"`
}

// Load reads an optional .env file, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
