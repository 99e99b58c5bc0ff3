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

package postgres

func (s *Store) Migrate() error {
	migrations := []string{
		// Append-only message log. seq fixes a global insertion order so
		// same-millisecond timestamps still sort deterministically.
		`CREATE TABLE IF NOT EXISTS messages (
			seq BIGSERIAL PRIMARY KEY,
			message_id VARCHAR(64) NOT NULL,
			from_id VARCHAR(64) NOT NULL,
			from_name TEXT NOT NULL,
			to_id VARCHAR(64) NOT NULL,
			to_type VARCHAR(10) NOT NULL CHECK (to_type IN ('user', 'group')),
			kind VARCHAR(10) NOT NULL CHECK (kind IN ('text', 'audio')),
			body TEXT,
			audio_ref TEXT,
			ts BIGINT NOT NULL
		)`,

		// Direct-message history is queried as an unordered participant pair
		`CREATE INDEX IF NOT EXISTS idx_messages_pair
		ON messages(to_type, from_id, to_id, ts)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_target
		ON messages(to_type, to_id, ts)`,

		// Groups table
		`CREATE TABLE IF NOT EXISTS groups (
			group_id VARCHAR(64) PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Group members table
		`CREATE TABLE IF NOT EXISTS group_members (
			group_id VARCHAR(64) NOT NULL,
			user_id VARCHAR(64) NOT NULL,
			joined_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (group_id, user_id),
			FOREIGN KEY (group_id) REFERENCES groups(group_id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_group_membership
		ON group_members(user_id, group_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
