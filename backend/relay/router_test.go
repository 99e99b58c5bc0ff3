// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package relay

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/efchatnet/relay/backend/models"
	"github.com/efchatnet/relay/backend/presence"
	"github.com/efchatnet/relay/backend/storage/memory"
)

type fakePeer struct {
	frames [][]byte
	fail   bool
}

func (p *fakePeer) Deliver(frame []byte) error {
	if p.fail {
		return errors.New("peer gone")
	}
	p.frames = append(p.frames, frame)
	return nil
}

func (p *fakePeer) envelopes(t *testing.T) []models.Envelope {
	t.Helper()
	envs := make([]models.Envelope, 0, len(p.frames))
	for _, frame := range p.frames {
		var env models.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		envs = append(envs, env)
	}
	return envs
}

func (p *fakePeer) lastMessage(t *testing.T) models.Message {
	t.Helper()
	require.NotEmpty(t, p.frames)
	var env models.Envelope
	require.NoError(t, json.Unmarshal(p.frames[len(p.frames)-1], &env))
	var msg models.Message
	require.NoError(t, json.Unmarshal(env.Payload, &msg))
	return msg
}

func connect(reg *presence.Registry, id, name string) *fakePeer {
	peer := &fakePeer{}
	reg.Register(models.ClientInfo{ID: id, Name: name}, peer)
	return peer
}

func Test_Route_DirectMessage_EchoesToSender(t *testing.T) {
	req := require.New(t)
	store := memory.NewStore()
	reg := presence.NewRegistry()
	router := NewRouter(store, store, reg)

	alice := connect(reg, "alice", "Alice")
	bob := connect(reg, "bob", "Bob")
	carol := connect(reg, "carol", "Carol")

	msg := models.Message{
		ID: "m1", From: "alice", FromName: "Alice",
		To: "bob", ToType: models.TargetUser,
		TS: 1, Kind: models.KindText, Text: "hola",
	}
	req.NoError(router.Route(msg))

	req.Len(bob.frames, 1)
	req.Len(alice.frames, 1, "sender gets the echo push")
	req.Empty(carol.frames)
	req.Equal(msg, bob.lastMessage(t))
	req.Equal(models.FrameIncomingText, bob.envelopes(t)[0].Type)
}

func Test_Route_SelfMessage_DeliveredOnce(t *testing.T) {
	req := require.New(t)
	store := memory.NewStore()
	reg := presence.NewRegistry()
	router := NewRouter(store, store, reg)

	alice := connect(reg, "alice", "Alice")

	msg := models.Message{
		ID: "m1", From: "alice", FromName: "Alice",
		To: "alice", ToType: models.TargetUser,
		TS: 1, Kind: models.KindText, Text: "nota",
	}
	req.NoError(router.Route(msg))
	req.Len(alice.frames, 1)
}

func Test_Route_GroupFanOut_ExcludesNonMembers(t *testing.T) {
	req := require.New(t)
	store := memory.NewStore()
	reg := presence.NewRegistry()
	router := NewRouter(store, store, reg)

	req.NoError(store.SaveGroup(models.Group{ID: "g1", Name: "team", Members: []string{"alice", "bob"}}))

	alice := connect(reg, "alice", "Alice")
	bob := connect(reg, "bob", "Bob")
	zoe := connect(reg, "zoe", "Zoe")

	msg := models.Message{
		ID: "m1", From: "alice", FromName: "Alice",
		To: "g1", ToType: models.TargetGroup,
		TS: 1, Kind: models.KindText, Text: "hola equipo",
	}
	req.NoError(router.Route(msg))

	req.Len(alice.frames, 1)
	req.Len(bob.frames, 1)
	req.Empty(zoe.frames, "non-member must not receive group traffic")
}

func Test_Route_UnknownGroup_PersistsButDeliversNobody(t *testing.T) {
	req := require.New(t)
	store := memory.NewStore()
	reg := presence.NewRegistry()
	router := NewRouter(store, store, reg)

	alice := connect(reg, "alice", "Alice")

	msg := models.Message{
		ID: "m1", From: "alice", FromName: "Alice",
		To: "ghost", ToType: models.TargetGroup,
		TS: 1, Kind: models.KindText, Text: "eco",
	}
	req.NoError(router.Route(msg))
	req.Empty(alice.frames)

	all, err := store.AllMessages()
	req.NoError(err)
	req.Len(all, 1)
}

func Test_Route_OfflineRecipient_SkippedNotFailed(t *testing.T) {
	req := require.New(t)
	store := memory.NewStore()
	reg := presence.NewRegistry()
	router := NewRouter(store, store, reg)

	alice := connect(reg, "alice", "Alice")
	// bob never connects

	msg := models.Message{
		ID: "m1", From: "alice", FromName: "Alice",
		To: "bob", ToType: models.TargetUser,
		TS: 1, Kind: models.KindText, Text: "hola",
	}
	req.NoError(router.Route(msg))
	req.Len(alice.frames, 1)

	// bob catches up from history later
	history, err := store.QueryHistory("bob", "alice", models.TargetUser)
	req.NoError(err)
	req.Len(history, 1)
}

func Test_Route_SlowConsumer_OthersStillDelivered(t *testing.T) {
	req := require.New(t)
	store := memory.NewStore()
	reg := presence.NewRegistry()
	router := NewRouter(store, store, reg)

	req.NoError(store.SaveGroup(models.Group{ID: "g1", Name: "team", Members: []string{"alice", "bob"}}))

	broken := &fakePeer{fail: true}
	reg.Register(models.ClientInfo{ID: "alice", Name: "Alice"}, broken)
	bob := connect(reg, "bob", "Bob")

	msg := models.Message{
		ID: "m1", From: "alice", FromName: "Alice",
		To: "g1", ToType: models.TargetGroup,
		TS: 1, Kind: models.KindText, Text: "hola",
	}
	req.NoError(router.Route(msg))
	req.Len(bob.frames, 1)
}

type failingAppend struct {
	*memory.Store
}

func (f failingAppend) Append(models.Message) error {
	return errors.New("disk full")
}

func Test_Route_AppendFailure_AbortsBeforeDelivery(t *testing.T) {
	req := require.New(t)
	store := memory.NewStore()
	reg := presence.NewRegistry()
	router := NewRouter(failingAppend{store}, store, reg)

	alice := connect(reg, "alice", "Alice")
	bob := connect(reg, "bob", "Bob")

	err := router.Route(models.Message{
		ID: "m1", From: "alice", FromName: "Alice",
		To: "bob", ToType: models.TargetUser,
		TS: 1, Kind: models.KindText, Text: "hola",
	})
	req.Error(err)
	req.Empty(alice.frames)
	req.Empty(bob.frames)
}

func Test_Route_VoiceNote_UsesVoiceFrame(t *testing.T) {
	req := require.New(t)
	store := memory.NewStore()
	reg := presence.NewRegistry()
	router := NewRouter(store, store, reg)

	bob := connect(reg, "bob", "Bob")

	req.NoError(router.Route(models.Message{
		ID: "m1", From: "alice", FromName: "Alice",
		To: "bob", ToType: models.TargetUser,
		TS: 1, Kind: models.KindAudio, AudioRef: "/audio/1-x.webm",
	}))
	req.Equal(models.FrameIncomingVoice, bob.envelopes(t)[0].Type)
}

func Test_Relay_NotPersisted(t *testing.T) {
	req := require.New(t)
	store := memory.NewStore()
	reg := presence.NewRegistry()
	router := NewRouter(store, store, reg)

	bob := connect(reg, "bob", "Bob")

	req.True(router.Relay("bob", []byte(`{"type":"signal"}`)))
	req.False(router.Relay("ghost", []byte(`{"type":"signal"}`)))

	req.Len(bob.frames, 1)
	all, err := store.AllMessages()
	req.NoError(err)
	req.Empty(all)
}
