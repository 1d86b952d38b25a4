package main

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// WSMessage represents a message from the client
type WSMessage struct {
	Action   string        `json:"action"`
	Nick     string        `json:"nick,omitempty"`
	Room     string        `json:"room,omitempty"`
	Target   string        `json:"target,omitempty"`
	Settings *RoomSettings `json:"settings,omitempty"`
}

// wsEvent is a message to the client
type wsEvent struct {
	Type string `json:"type"` // line | ctrl | error
	Text string `json:"text,omitempty"`
	Ctrl string `json:"ctrl,omitempty"`
}

// syncInterval is how often a session polls its room's log for new entries.
const syncInterval = 200 * time.Millisecond

func (c *Client) send(ev wsEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("ERROR [client.send: marshal]: %v", err)
		return
	}
	LogWSMessage("OUT", c.nick(), string(data))

	// Serialize writes to each connection
	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		log.Printf("WebSocket write error to %q: %v", c.nick(), err)
	}
}

func (c *Client) sendLine(text string)  { c.send(wsEvent{Type: "line", Text: text}) }
func (c *Client) sendError(text string) { c.send(wsEvent{Type: "error", Text: text}) }

// ForceCancel implements MessageSink: the client is told to discard its
// pending input prompt.
func (c *Client) ForceCancel() {
	c.send(wsEvent{Type: "ctrl", Ctrl: CtrlDropInput})
}

func (c *Client) currentPlayer() *Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.player
}

func (c *Client) nick() string {
	if p := c.currentPlayer(); p != nil {
		return p.Nick
	}
	return "?"
}

func handleWSMessage(client *Client, message []byte) {
	var msg WSMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("WebSocket unmarshal error from %q: %v", client.nick(), err)
		return
	}

	LogWSMessage("IN", client.nick(), string(message))

	if msg.Action == "hello" {
		handleWSHello(client, msg)
		return
	}

	player := client.currentPlayer()
	if player == nil {
		client.sendError("say hello first")
		return
	}

	switch msg.Action {
	case "create_room":
		handleWSCreateRoom(client, player, msg)
	case "join_room":
		handleWSJoinRoom(client, player, msg)
	case "leave_room":
		handleWSLeaveRoom(client, player)
	case "start_game":
		room := player.Room()
		if room == nil {
			client.sendError("you are not in a room")
			return
		}
		// StartGame sleeps through the reveal pause; keep the read loop free.
		go room.StartGame(player)
	case "vote_kill":
		room := player.Room()
		if room == nil {
			client.sendError("you are not in a room")
			return
		}
		go room.VoteKill(player, msg.Target)
	case "room_status":
		room := player.Room()
		if room == nil {
			client.sendError("you are not in a room")
			return
		}
		client.sendLine(room.Desc())
		client.sendLine("alive: " + strings.Join(room.AliveNicks(), ", "))
	case "prompt_open":
		player.InputBlocking.Store(true)
	case "prompt_closed":
		player.InputBlocking.Store(false)
	default:
		if _, isAction := actionHandlers[ActionKind(msg.Action)]; isAction {
			room := player.Room()
			if room == nil {
				return
			}
			room.Submit(player, ActionKind(msg.Action), msg.Target)
			return
		}
		log.Printf("Unknown action: %s from player %q", msg.Action, player.Nick)
	}
}

func handleWSHello(client *Client, msg WSMessage) {
	client.mu.Lock()
	already := client.player != nil
	client.mu.Unlock()
	if already {
		client.sendError("you are already registered")
		return
	}

	player, err := registry.RegisterUser(msg.Nick, client)
	if err != nil {
		client.sendError(err.Error())
		return
	}
	client.mu.Lock()
	client.player = player
	client.mu.Unlock()
	client.sendLine("welcome, " + player.Nick)
}

func handleWSCreateRoom(client *Client, player *Player, msg WSMessage) {
	if player.Room() != nil {
		client.sendError("leave your current room first")
		return
	}
	settings := RoomSettings{}
	if msg.Settings != nil {
		settings = *msg.Settings
	}
	room, err := NewRoom(registry, logStore, pacingFromConfig(appConfig), globalNarrator, settings)
	if err != nil {
		client.sendError(err.Error())
		return
	}
	client.enterRoom(player, room)
}

func handleWSJoinRoom(client *Client, player *Player, msg WSMessage) {
	if player.Room() != nil {
		client.sendError("leave your current room first")
		return
	}
	room := registry.LookupRoom(msg.Room)
	if room == nil {
		client.sendError("room does not exist")
		return
	}
	if err := room.CanJoin(); err != nil {
		client.sendError(err.Error())
		return
	}
	client.enterRoom(player, room)
}

func handleWSLeaveRoom(client *Client, player *Player) {
	room := player.Room()
	if room == nil {
		client.sendError("you are not in a room")
		return
	}
	client.stopSyncer()
	if err := room.RemovePlayer(player); err != nil {
		log.Printf("ERROR [handleWSLeaveRoom]: %v", err)
	}
	client.sendLine("you left the room")
}

// enterRoom seats the player and starts tailing the room log. The cursor is
// taken before seating so the join broadcast itself is delivered.
func (c *Client) enterRoom(player *Player, room *Room) {
	c.sendLine(room.Desc())
	cursor, err := room.store.LatestSeq(room.ID)
	if err != nil {
		log.Printf("ERROR [enterRoom: latest seq]: %v", err)
		cursor = 0
	}
	if err := room.AddPlayer(player); err != nil {
		c.sendError(err.Error())
		return
	}
	c.startSyncer(room, cursor)
}

func (c *Client) startSyncer(room *Room, cursor int64) {
	c.mu.Lock()
	if c.syncStop != nil {
		close(c.syncStop)
	}
	stop := make(chan struct{})
	c.syncStop = stop
	c.mu.Unlock()
	go c.syncLoop(room, cursor, stop)
}

func (c *Client) stopSyncer() {
	c.mu.Lock()
	if c.syncStop != nil {
		close(c.syncStop)
		c.syncStop = nil
	}
	c.mu.Unlock()
}

// syncLoop tails the room log and forwards this player's view of it:
// broadcasts, private lines addressed to them, and control signals.
func (c *Client) syncLoop(room *Room, cursor int64, stop <-chan struct{}) {
	player := c.currentPlayer()
	if player == nil {
		return
	}

	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			entries, err := room.store.TailAfter(room.ID, cursor)
			if err != nil {
				log.Printf("ERROR [syncLoop: tail]: %v", err)
				continue
			}
			for _, e := range entries {
				cursor = e.Seq
				switch {
				case e.Kind == logKindCtrl:
					if e.Body == CtrlDropInput {
						player.ForceCancel()
					}
				case e.IsBroadcast(), e.IsPrivateTo(player.Nick):
					c.sendLine(e.Body)
				}
			}
		}
	}
}

// teardown runs when the connection drops: the syncer stops and the player
// is deregistered, which also unseats them.
func (c *Client) teardown() {
	c.stopSyncer()
	c.mu.Lock()
	player := c.player
	c.player = nil
	c.mu.Unlock()
	if player != nil {
		registry.DeregisterUser(player)
	}
}
