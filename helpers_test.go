package main

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// newTestDB opens a per-test in-memory database. The name is derived from
// the test so parallel tests never share state; cache=shared keeps the pool's
// connections on the same database.
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"), time.Now().UnixNano())
	testDB, err := sqlx.Connect("sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { testDB.Close() })
	return testDB
}

func newTestStore(t *testing.T) *LogStore {
	t.Helper()
	store, err := NewLogStore(newTestDB(t))
	require.NoError(t, err)
	return store
}

// gameFixture bundles a registry, store and room with seated players for
// state-machine tests. Pacing is all-zero so nights run at full speed.
type gameFixture struct {
	reg     *Registry
	store   *LogStore
	room    *Room
	players map[string]*Player
}

func newGameFixture(t *testing.T, settings RoomSettings, nicks ...string) *gameFixture {
	t.Helper()
	reg := NewRegistry()
	store := newTestStore(t)
	room, err := NewRoom(reg, store, Pacing{}, nil, settings)
	require.NoError(t, err)

	players := make(map[string]*Player)
	for _, nick := range nicks {
		p, err := reg.RegisterUser(nick, nil)
		require.NoError(t, err)
		require.NoError(t, room.AddPlayer(p))
		players[nick] = p
	}
	return &gameFixture{reg: reg, store: store, room: room, players: players}
}

// startScripted begins a game with a hand-dealt role assignment instead of
// the shuffle, then kicks off the first night.
func (f *gameFixture) startScripted(t *testing.T, deal map[string]Role) {
	t.Helper()
	f.room.mu.Lock()
	require.Len(t, deal, len(f.room.players), "deal must cover every seat")
	f.room.started = true
	for nick, role := range deal {
		p, seated := f.room.players[nick]
		require.True(t, seated, "unknown nick %q in deal", nick)
		p.Role = role
		p.Status = StatusAlive
		p.Skill = skillRecord{}
		if role == RoleWitch {
			p.Skill.WitchHeal = true
			p.Skill.WitchPoison = true
		}
	}
	f.room.mu.Unlock()
	f.room.beginNight()
}

// waitForStage blocks until the room's gate is open on the given stage.
func (f *gameFixture) waitForStage(t *testing.T, stage GameStage) {
	t.Helper()
	require.Eventually(t, func() bool {
		f.room.mu.Lock()
		defer f.room.mu.Unlock()
		return f.room.waiting && f.room.stage == stage
	}, 2*time.Second, 2*time.Millisecond, "stage %s never opened", stage)
}

// waitForDay blocks until the night task has finished and the room sits in
// the day phase.
func (f *gameFixture) waitForDay(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		f.room.mu.Lock()
		defer f.room.mu.Unlock()
		return f.room.stage == StageDay
	}, 2*time.Second, 2*time.Millisecond, "day never came")
}

// waitForGameOver blocks until the room has reset to its lobby state.
func (f *gameFixture) waitForGameOver(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		f.room.mu.Lock()
		defer f.room.mu.Unlock()
		return !f.room.started && !f.room.nightRunningLocked()
	}, 2*time.Second, 2*time.Millisecond, "game never ended")
}

func (f *gameFixture) status(t *testing.T, nick string) PlayerStatus {
	t.Helper()
	f.room.mu.Lock()
	defer f.room.mu.Unlock()
	return f.players[nick].Status
}

// logBodies returns every log line of the fixture's room, private lines
// prefixed with the recipient.
func (f *gameFixture) logBodies(t *testing.T) []string {
	t.Helper()
	entries, err := f.store.TailAfter(f.room.ID, 0)
	require.NoError(t, err)
	var bodies []string
	for _, e := range entries {
		if e.Kind != logKindLine {
			continue
		}
		if e.IsBroadcast() {
			bodies = append(bodies, e.Body)
		} else {
			bodies = append(bodies, e.Recipient+": "+e.Body)
		}
	}
	return bodies
}

func (f *gameFixture) requireLogged(t *testing.T, substr string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, body := range f.logBodies(t) {
			if strings.Contains(body, substr) {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond, "log never contained %q", substr)
}

// nicksByRole finds which player got each role after a shuffled start.
func (f *gameFixture) nicksByRole(role Role) []string {
	f.room.mu.Lock()
	defer f.room.mu.Unlock()
	var nicks []string
	for _, nick := range f.room.joinOrder {
		if f.room.players[nick].Role == role {
			nicks = append(nicks, nick)
		}
	}
	return nicks
}
