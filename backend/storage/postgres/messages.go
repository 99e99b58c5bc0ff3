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

import (
	"database/sql"

	"github.com/efchatnet/relay/backend/models"
)

// Append inserts one message row. The seq column is assigned by the
// database and fixes the tie-break order for same-millisecond timestamps.
func (s *Store) Append(msg models.Message) error {
	_, err := s.db.Exec(`
		INSERT INTO messages
		(message_id, from_id, from_name, to_id, to_type, kind, body, audio_ref, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		msg.ID, msg.From, msg.FromName, msg.To, string(msg.ToType),
		string(msg.Kind), nullable(msg.Text), nullable(msg.AudioRef), msg.TS)
	return err
}

// QueryHistory filters the log for one conversation. Group history is only
// visible to current members; non-members and unknown ids get an empty
// result, not an error.
func (s *Store) QueryHistory(selfID, targetID string, targetType models.TargetType) ([]models.Message, error) {
	var rows *sql.Rows
	var err error

	switch targetType {
	case models.TargetUser:
		rows, err = s.db.Query(`
			SELECT message_id, from_id, from_name, to_id, to_type, kind, body, audio_ref, ts
			FROM messages
			WHERE to_type = 'user'
			  AND ((from_id = $1 AND to_id = $2) OR (from_id = $2 AND to_id = $1))
			ORDER BY ts ASC, seq ASC`,
			selfID, targetID)
	case models.TargetGroup:
		rows, err = s.db.Query(`
			SELECT message_id, from_id, from_name, to_id, to_type, kind, body, audio_ref, ts
			FROM messages
			WHERE to_type = 'group'
			  AND to_id = $2
			  AND EXISTS (
				SELECT 1 FROM group_members
				WHERE group_id = $2 AND user_id = $1
			  )
			ORDER BY ts ASC, seq ASC`,
			selfID, targetID)
	default:
		return []models.Message{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// AllMessages returns the whole log in append order.
func (s *Store) AllMessages() ([]models.Message, error) {
	rows, err := s.db.Query(`
		SELECT message_id, from_id, from_name, to_id, to_type, kind, body, audio_ref, ts
		FROM messages
		ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	messages := []models.Message{}
	for rows.Next() {
		var msg models.Message
		var toType, kind string
		var body, audioRef sql.NullString
		if err := rows.Scan(&msg.ID, &msg.From, &msg.FromName, &msg.To,
			&toType, &kind, &body, &audioRef, &msg.TS); err != nil {
			return nil, err
		}
		msg.ToType = models.TargetType(toType)
		msg.Kind = models.Kind(kind)
		msg.Text = body.String
		msg.AudioRef = audioRef.String
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
