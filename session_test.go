package main

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWSTestServer wires the full server stack onto a test listener. The
// package globals are swapped for per-test instances, the same way the
// handlers capture them at request entry.
func newWSTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger, err := NewAppLoggerFromEnv()
	require.NoError(t, err)
	appLogger = logger

	store, err := NewLogStore(newTestDB(t))
	require.NoError(t, err)
	logStore = store
	registry = NewRegistry()
	appConfig = AppConfig{}
	globalNarrator = nil

	testHub := newHub()
	go testHub.run()
	hub = testHub

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handleWebSocket)
	mux.HandleFunc("/", handleStatus)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		testHub.stop()
	})
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendWS(t *testing.T, conn *websocket.Conn, msg WSMessage) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev wsEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

// waitLine reads events until a line containing substr arrives and returns it.
func waitLine(t *testing.T, conn *websocket.Conn, substr string) string {
	t.Helper()
	for {
		ev := readEvent(t, conn)
		if ev.Type == "line" && strings.Contains(ev.Text, substr) {
			return ev.Text
		}
	}
}

func TestWSHandshake(t *testing.T) {
	srv := newWSTestServer(t)
	conn := dialWS(t, srv)

	sendWS(t, conn, WSMessage{Action: "create_room"})
	ev := readEvent(t, conn)
	assert.Equal(t, "error", ev.Type)
	assert.Equal(t, "say hello first", ev.Text)

	sendWS(t, conn, WSMessage{Action: "hello", Nick: ""})
	ev = readEvent(t, conn)
	assert.Equal(t, "error", ev.Type)

	sendWS(t, conn, WSMessage{Action: "hello", Nick: "alice"})
	ev = readEvent(t, conn)
	assert.Equal(t, "line", ev.Type)
	assert.Equal(t, "welcome, alice", ev.Text)

	sendWS(t, conn, WSMessage{Action: "hello", Nick: "alice2"})
	ev = readEvent(t, conn)
	assert.Equal(t, "error", ev.Type)
	assert.Equal(t, "you are already registered", ev.Text)

	// The nickname is held while the connection lives.
	other := dialWS(t, srv)
	sendWS(t, other, WSMessage{Action: "hello", Nick: "alice"})
	ev = readEvent(t, other)
	assert.Equal(t, "error", ev.Type)
}

func TestWSJoinUnknownRoom(t *testing.T) {
	srv := newWSTestServer(t)
	conn := dialWS(t, srv)

	sendWS(t, conn, WSMessage{Action: "hello", Nick: "alice"})
	readEvent(t, conn)

	sendWS(t, conn, WSMessage{Action: "join_room", Room: "nope1234"})
	ev := readEvent(t, conn)
	assert.Equal(t, "error", ev.Type)
	assert.Equal(t, "room does not exist", ev.Text)
}

var roomCodeRe = regexp.MustCompile(`room ([0-9a-f]{8}),`)

func TestWSTwoPlayerGame(t *testing.T) {
	srv := newWSTestServer(t)

	alice := dialWS(t, srv)
	bob := dialWS(t, srv)

	sendWS(t, alice, WSMessage{Action: "hello", Nick: "alice"})
	waitLine(t, alice, "welcome, alice")
	sendWS(t, bob, WSMessage{Action: "hello", Nick: "bob"})
	waitLine(t, bob, "welcome, bob")

	sendWS(t, alice, WSMessage{
		Action:   "create_room",
		Settings: &RoomSettings{Wolves: 1, Villagers: 1},
	})
	desc := waitLine(t, alice, "2 seats")
	m := roomCodeRe.FindStringSubmatch(desc)
	require.NotNil(t, m, "room code missing from %q", desc)
	code := m[1]
	waitLine(t, alice, "players 1/2")

	sendWS(t, bob, WSMessage{Action: "join_room", Room: code})
	waitLine(t, bob, "2 seats")
	waitLine(t, bob, "players 2/2, the host is alice")
	waitLine(t, alice, "players 2/2")

	sendWS(t, bob, WSMessage{Action: "room_status"})
	waitLine(t, bob, "alive: alice, bob")

	// Only the host may start.
	sendWS(t, bob, WSMessage{Action: "start_game"})
	waitLine(t, bob, "only the host can start the game")

	sendWS(t, alice, WSMessage{Action: "start_game"})
	waitLine(t, alice, "the game begins")
	waitLine(t, bob, "the game begins")

	// Work out who drew the wolf from the private reveal.
	aliceRole := waitLine(t, alice, "your identity is")
	wolf, victim, victimNick := alice, bob, "bob"
	if !strings.Contains(aliceRole, "Werewolf") {
		wolf, victim, victimNick = bob, alice, "alice"
	}

	waitLine(t, wolf, "Werewolf, please open your eyes")
	sendWS(t, wolf, WSMessage{Action: "wolf_kill", Target: victimNick})

	// One wolf against one villager: the kill ends the game at the tally.
	waitLine(t, wolf, "game over, the werewolves win")
	waitLine(t, victim, "game over, the werewolves win")
	waitLine(t, wolf, victimNick+": Villager (out)")

	sendWS(t, victim, WSMessage{Action: "leave_room"})
	waitLine(t, victim, "you left the room")
}

func TestStatusEndpoint(t *testing.T) {
	srv := newWSTestServer(t)
	conn := dialWS(t, srv)
	sendWS(t, conn, WSMessage{Action: "hello", Nick: "alice"})
	readEvent(t, conn)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}
