// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/efchatnet/relay/backend/models"
	"github.com/efchatnet/relay/backend/storage"
)

func textMessage(id, from, to string, toType models.TargetType, ts int64, text string) models.Message {
	return models.Message{
		ID:       id,
		From:     from,
		FromName: "name-" + from,
		To:       to,
		ToType:   toType,
		TS:       ts,
		Kind:     models.KindText,
		Text:     text,
	}
}

func Test_DirectHistory_VisibleFromBothSides_ExactlyOnce(t *testing.T) {
	req := require.New(t)
	store := NewStore()

	msg := textMessage("m1", "alice", "bob", models.TargetUser, 1000, "hola")
	req.NoError(store.Append(msg))

	fromAlice, err := store.QueryHistory("alice", "bob", models.TargetUser)
	req.NoError(err)
	fromBob, err := store.QueryHistory("bob", "alice", models.TargetUser)
	req.NoError(err)

	req.Len(fromAlice, 1)
	req.Len(fromBob, 1)
	req.Equal(msg, fromAlice[0])
	req.Equal(msg, fromBob[0])
}

func Test_DirectHistory_ExcludesOtherConversations(t *testing.T) {
	req := require.New(t)
	store := NewStore()

	req.NoError(store.Append(textMessage("m1", "alice", "bob", models.TargetUser, 1, "a")))
	req.NoError(store.Append(textMessage("m2", "alice", "carol", models.TargetUser, 2, "b")))
	req.NoError(store.Append(textMessage("m3", "carol", "bob", models.TargetUser, 3, "c")))

	history, err := store.QueryHistory("alice", "bob", models.TargetUser)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("m1", history[0].ID)
}

func Test_GroupHistory_OnlyForMembers(t *testing.T) {
	req := require.New(t)
	store := NewStore()

	req.NoError(store.SaveGroup(models.Group{ID: "g1", Name: "team", Members: []string{"alice", "bob"}}))
	req.NoError(store.Append(textMessage("m1", "alice", "g1", models.TargetGroup, 1, "hola")))

	forBob, err := store.QueryHistory("bob", "g1", models.TargetGroup)
	req.NoError(err)
	req.Len(forBob, 1)

	forOutsider, err := store.QueryHistory("zoe", "g1", models.TargetGroup)
	req.NoError(err)
	req.Empty(forOutsider)
}

func Test_GroupHistory_UnknownGroupIsEmptyNotError(t *testing.T) {
	req := require.New(t)
	store := NewStore()

	history, err := store.QueryHistory("alice", "nope", models.TargetGroup)
	req.NoError(err)
	req.Empty(history)
}

func Test_History_SameMillisecondKeepsInsertionOrder(t *testing.T) {
	req := require.New(t)
	store := NewStore()

	for i := 0; i < 5; i++ {
		req.NoError(store.Append(textMessage(fmt.Sprintf("m%d", i), "alice", "bob", models.TargetUser, 42, "x")))
	}

	history, err := store.QueryHistory("bob", "alice", models.TargetUser)
	req.NoError(err)
	req.Len(history, 5)
	for i, msg := range history {
		req.Equal(fmt.Sprintf("m%d", i), msg.ID)
	}
}

func Test_History_OrderedByTimestamp(t *testing.T) {
	req := require.New(t)
	store := NewStore()

	req.NoError(store.Append(textMessage("late", "alice", "bob", models.TargetUser, 200, "x")))
	req.NoError(store.Append(textMessage("early", "alice", "bob", models.TargetUser, 100, "y")))

	history, err := store.QueryHistory("alice", "bob", models.TargetUser)
	req.NoError(err)
	req.Equal("early", history[0].ID)
	req.Equal("late", history[1].ID)
}

func Test_Append_RoundTripPreservesFields(t *testing.T) {
	req := require.New(t)
	store := NewStore()

	req.NoError(store.SaveGroup(models.Group{ID: "g1", Name: "team", Members: []string{"alice"}}))
	audio := models.Message{
		ID:       "m1",
		From:     "alice",
		FromName: "Alice",
		To:       "g1",
		ToType:   models.TargetGroup,
		TS:       1234,
		Kind:     models.KindAudio,
		AudioRef: "/audio/1234-x.webm",
	}
	req.NoError(store.Append(audio))

	history, err := store.QueryHistory("alice", "g1", models.TargetGroup)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal(audio, history[0])
	req.Empty(history[0].Text)
	req.NotEmpty(history[0].AudioRef)
}

func Test_ConcurrentAppends_LoseNothing(t *testing.T) {
	req := require.New(t)
	store := NewStore()

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			msg := textMessage(fmt.Sprintf("m%d", i), "alice", "bob", models.TargetUser, int64(i), "x")
			_ = store.Append(msg)
		}(i)
	}
	wg.Wait()

	all, err := store.AllMessages()
	req.NoError(err)
	req.Len(all, n)

	seen := map[string]bool{}
	for _, msg := range all {
		req.False(seen[msg.ID], "duplicate record %s", msg.ID)
		seen[msg.ID] = true
		req.NotEmpty(msg.From)
		req.NotEmpty(msg.To)
	}
}

func Test_UpdateMembers_Idempotent(t *testing.T) {
	req := require.New(t)
	store := NewStore()

	req.NoError(store.SaveGroup(models.Group{ID: "g1", Name: "team", Members: []string{"alice"}}))

	members := []string{"alice", "bob"}
	req.NoError(store.UpdateMembers("g1", members))
	req.NoError(store.UpdateMembers("g1", members))

	group, err := store.GetGroup("g1")
	req.NoError(err)
	req.ElementsMatch(members, group.Members)
}

func Test_UpdateMembers_UnknownGroup(t *testing.T) {
	req := require.New(t)
	store := NewStore()

	err := store.UpdateMembers("nope", []string{"alice"})
	req.ErrorIs(err, storage.ErrGroupNotFound)
}

func Test_Sessions_SaveAndFind(t *testing.T) {
	req := require.New(t)
	sessions := NewSessions()

	info := models.ClientInfo{ID: "u1", Name: "Alice"}
	req.NoError(sessions.SaveSession("tok", info))

	found, err := sessions.FindSession("tok")
	req.NoError(err)
	req.Equal(info, found)

	_, err = sessions.FindSession("other")
	req.ErrorIs(err, storage.ErrSessionNotFound)
}
