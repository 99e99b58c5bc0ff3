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
	"time"

	"github.com/efchatnet/relay/backend/models"
	"github.com/efchatnet/relay/backend/storage"
)

// SaveGroup writes the group row plus its full member set in one
// transaction. The member list is assumed deduplicated by the caller.
func (s *Store) SaveGroup(group models.Group) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO groups (group_id, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id) DO UPDATE SET name = $2`,
		group.ID, group.Name, time.Now())
	if err != nil {
		return err
	}

	if err := replaceMembers(tx, group.ID, group.Members); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateMembers replaces the member set wholesale. Unknown group ids fail
// with storage.ErrGroupNotFound.
func (s *Store) UpdateMembers(groupID string, members []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRow(`SELECT 1 FROM groups WHERE group_id = $1`, groupID).Scan(&exists)
	if err == sql.ErrNoRows {
		return storage.ErrGroupNotFound
	}
	if err != nil {
		return err
	}

	if err := replaceMembers(tx, groupID, members); err != nil {
		return err
	}

	return tx.Commit()
}

func replaceMembers(tx *sql.Tx, groupID string, members []string) error {
	if _, err := tx.Exec(`DELETE FROM group_members WHERE group_id = $1`, groupID); err != nil {
		return err
	}
	for _, userID := range members {
		_, err := tx.Exec(`
			INSERT INTO group_members (group_id, user_id, joined_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (group_id, user_id) DO NOTHING`,
			groupID, userID, time.Now())
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetGroup(groupID string) (models.Group, error) {
	var group models.Group
	err := s.db.QueryRow(`
		SELECT group_id, name FROM groups WHERE group_id = $1`,
		groupID).Scan(&group.ID, &group.Name)
	if err == sql.ErrNoRows {
		return models.Group{}, storage.ErrGroupNotFound
	}
	if err != nil {
		return models.Group{}, err
	}

	group.Members, err = s.groupMembers(groupID)
	return group, err
}

func (s *Store) ListGroups() ([]models.Group, error) {
	rows, err := s.db.Query(`SELECT group_id, name FROM groups ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []models.Group{}
	for rows.Next() {
		var group models.Group
		if err := rows.Scan(&group.ID, &group.Name); err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range groups {
		groups[i].Members, err = s.groupMembers(groups[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return groups, nil
}

func (s *Store) groupMembers(groupID string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT user_id FROM group_members WHERE group_id = $1`,
		groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		members = append(members, userID)
	}
	return members, rows.Err()
}
