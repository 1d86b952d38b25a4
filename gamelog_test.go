package main

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogDeliveryKinds(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.AppendBroadcast("r1", "night falls"))
	require.NoError(t, store.AppendLine("r1", "alice", "your identity is \"Witch\""))
	require.NoError(t, store.AppendControl("r1", CtrlDropInput))
	require.NoError(t, store.AppendBroadcast("r2", "other room"))

	entries, err := store.TailAfter("r1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3, "rooms do not see each other's traffic")

	assert.True(t, entries[0].IsBroadcast())
	assert.True(t, entries[1].IsPrivateTo("alice"))
	assert.False(t, entries[1].IsPrivateTo("bob"))
	assert.False(t, entries[1].IsBroadcast())
	assert.Equal(t, logKindCtrl, entries[2].Kind)
	assert.Equal(t, CtrlDropInput, entries[2].Body)
}

func TestLogTailCursor(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendBroadcast("r1", fmt.Sprintf("line %d", i)))
	}

	all, err := store.TailAfter("r1", 0)
	require.NoError(t, err)
	require.Len(t, all, 5)

	// Entries arrive in append order with strictly increasing seq.
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i].Seq, all[i-1].Seq)
	}

	rest, err := store.TailAfter("r1", all[2].Seq)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, "line 3", rest[0].Body)
	assert.Equal(t, "line 4", rest[1].Body)

	latest, err := store.LatestSeq("r1")
	require.NoError(t, err)
	assert.Equal(t, all[4].Seq, latest)

	none, err := store.TailAfter("r1", latest)
	require.NoError(t, err)
	assert.Empty(t, none)

	latest, err = store.LatestSeq("empty-room")
	require.NoError(t, err)
	assert.Zero(t, latest)
}

func TestLogTruncationKeepsRecentHalf(t *testing.T) {
	if testing.Short() {
		t.Skip("writes 50k+ rows")
	}
	store := newTestStore(t)

	for i := 0; i <= maxLogEntries; i++ {
		require.NoError(t, store.AppendBroadcast("r1", fmt.Sprintf("line %d", i)))
	}

	count, err := store.Count("r1")
	require.NoError(t, err)
	// One append past the cap trims the oldest half.
	assert.Equal(t, maxLogEntries+1-(maxLogEntries+1)/2, count)

	entries, err := store.TailAfter("r1", 0)
	require.NoError(t, err)
	require.Len(t, entries, count)

	// The survivors are the most recent entries, still in order.
	assert.Equal(t, fmt.Sprintf("line %d", maxLogEntries+1-count), entries[0].Body)
	assert.Equal(t, fmt.Sprintf("line %d", maxLogEntries), entries[len(entries)-1].Body)
	for i := 1; i < len(entries); i++ {
		assert.Greater(t, entries[i].Seq, entries[i-1].Seq)
	}
}

func TestLogPurge(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.AppendBroadcast("r1", "a"))
	require.NoError(t, store.AppendBroadcast("r2", "b"))
	require.NoError(t, store.Purge("r1"))

	count, err := store.Count("r1")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = store.Count("r2")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "purge is per room")
}
