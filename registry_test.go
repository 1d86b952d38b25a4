package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterUserValidation(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.RegisterUser("", nil)
	assert.Error(t, err, "empty nickname rejected")

	_, err = reg.RegisterUser("mallory"+sysNick, nil)
	assert.Error(t, err, "nickname containing the system identity rejected")

	alice, err := reg.RegisterUser("alice", nil)
	require.NoError(t, err)
	require.NotNil(t, alice)

	_, err = reg.RegisterUser("alice", nil)
	assert.Error(t, err, "duplicate nickname rejected")

	reg.DeregisterUser(alice)
	_, err = reg.RegisterUser("alice", nil)
	assert.NoError(t, err, "nickname free again after deregistration")
}

func TestDeregisterUserLeavesRoom(t *testing.T) {
	f := newGameFixture(t, RoomSettings{Wolves: 1, Villagers: 1}, "alice", "bob")

	f.reg.DeregisterUser(f.players["alice"])
	assert.Nil(t, f.players["alice"].Room())
	assert.Equal(t, "bob", f.room.Host().Nick, "host moves to the next joiner")

	f.reg.DeregisterUser(f.players["bob"])
	assert.Nil(t, f.reg.LookupRoom(f.room.ID), "empty room is torn down")

	count, err := f.store.Count(f.room.ID)
	require.NoError(t, err)
	assert.Zero(t, count, "room log purged with the room")
}

func TestRoomCodesAreShortAndUnique(t *testing.T) {
	reg := NewRegistry()
	store := newTestStore(t)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		room, err := NewRoom(reg, store, Pacing{}, nil, RoomSettings{Wolves: 1, Villagers: 1})
		require.NoError(t, err)
		assert.Len(t, room.ID, 8)
		assert.False(t, seen[room.ID], "room code %q issued twice", room.ID)
		seen[room.ID] = true
		assert.Same(t, room, reg.LookupRoom(room.ID))
	}
}

func TestNewRoomValidation(t *testing.T) {
	reg := NewRegistry()
	store := newTestStore(t)

	_, err := NewRoom(reg, store, Pacing{}, nil, RoomSettings{Wolves: 0, Villagers: 5})
	assert.Error(t, err, "at least one ordinary wolf required")

	_, err = NewRoom(reg, store, Pacing{}, nil, RoomSettings{Wolves: 1, Villagers: -1})
	assert.Error(t, err)

	_, err = NewRoom(reg, store, Pacing{}, nil, RoomSettings{Wolves: 1})
	assert.Error(t, err, "single-seat room rejected")

	_, err = NewRoom(reg, store, Pacing{}, nil, RoomSettings{
		Wolves: 1, Villagers: 1, WitchRule: "sometimes",
	})
	assert.Error(t, err)

	room, err := NewRoom(reg, store, Pacing{}, nil, RoomSettings{
		Wolves:       2,
		Villagers:    3,
		GodWolves:    []string{"Wolf King"},
		GodVillagers: []string{"Witch", "Guard"},
		WitchRule:    "always",
		GuardRule:    "conflict saves",
	})
	require.NoError(t, err)
	assert.Len(t, room.roles, 8)
	assert.Equal(t, WitchAlwaysSelfRescue, room.witchRule)
	assert.Equal(t, GuardHealConflictSaves, room.guardRule)
}

func TestRoomJoinLimits(t *testing.T) {
	f := newGameFixture(t, RoomSettings{Wolves: 1, Villagers: 1}, "alice", "bob")

	assert.Error(t, f.room.CanJoin(), "full room refuses joiners")

	carol, err := f.reg.RegisterUser("carol", nil)
	require.NoError(t, err)

	other, err := NewRoom(f.reg, f.store, Pacing{}, nil, RoomSettings{Wolves: 1, Villagers: 1})
	require.NoError(t, err)
	require.NoError(t, other.AddPlayer(carol))

	assert.Error(t, other.AddPlayer(carol), "double seating is a bug")
	assert.Error(t, f.room.AddPlayer(carol), "seating a player already in another room is a bug")
	assert.Error(t, f.room.RemovePlayer(carol), "removing a non-member is a bug")
}
