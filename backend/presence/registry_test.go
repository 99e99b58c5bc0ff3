// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package presence

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/efchatnet/relay/backend/models"
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

func Test_RegisterResolveUnregister(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	peer := &fakePeer{}

	reg.Register(models.ClientInfo{ID: "u1", Name: "Alice"}, peer)

	resolved, ok := reg.Resolve("u1")
	req.True(ok)
	req.Same(peer, resolved.(*fakePeer))

	reg.Unregister("u1", peer)
	_, ok = reg.Resolve("u1")
	req.False(ok)

	// already absent, must not panic
	reg.Unregister("u1", peer)
}

func Test_Register_LastConnectionWins(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	first := &fakePeer{}
	second := &fakePeer{}

	reg.Register(models.ClientInfo{ID: "u1", Name: "Alice"}, first)
	reg.Register(models.ClientInfo{ID: "u1", Name: "Alice"}, second)

	resolved, ok := reg.Resolve("u1")
	req.True(ok)
	req.Same(second, resolved.(*fakePeer))

	// the stale connection closing must not evict the new one
	reg.Unregister("u1", first)
	_, ok = reg.Resolve("u1")
	req.True(ok)
}

func Test_Rename(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	reg.Register(models.ClientInfo{ID: "u1", Name: "User-abcd"}, &fakePeer{})

	req.True(reg.Rename("u1", "Alice"))
	name, ok := reg.Name("u1")
	req.True(ok)
	req.Equal("Alice", name)

	req.False(reg.Rename("ghost", "x"))
}

func Test_Snapshot(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	reg.Register(models.ClientInfo{ID: "u1", Name: "Alice"}, &fakePeer{})
	reg.Register(models.ClientInfo{ID: "u2", Name: "Bob"}, &fakePeer{})

	req.ElementsMatch([]models.ClientInfo{
		{ID: "u1", Name: "Alice"},
		{ID: "u2", Name: "Bob"},
	}, reg.Snapshot())
}

func Test_Broadcast_ReachesAllAndSurvivesFailures(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	healthy := &fakePeer{}
	broken := &fakePeer{fail: true}
	reg.Register(models.ClientInfo{ID: "u1", Name: "Alice"}, healthy)
	reg.Register(models.ClientInfo{ID: "u2", Name: "Bob"}, broken)

	reg.Broadcast([]byte(`{"type":"clients_update"}`))

	req.Len(healthy.frames, 1)
	req.Empty(broken.frames)
}
