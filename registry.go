package main

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// sysNick is the reserved sender identity for broadcast log entries.
// Player nicknames may not contain it.
const sysNick = "@sys"

// Registry owns all connected players and live rooms for this process.
// There is exactly one per server; everything reaches it through explicit
// references, never package globals.
type Registry struct {
	mu    sync.Mutex
	users map[string]*Player
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{
		users: make(map[string]*Player),
		rooms: make(map[string]*Room),
	}
}

// RegisterUser claims a nickname for a new player. Nicknames are unique for
// the lifetime of the connection and may not contain the system identity.
func (reg *Registry) RegisterUser(nick string, sink MessageSink) (*Player, error) {
	if nick == "" {
		return nil, fmt.Errorf("nickname must not be empty")
	}
	if strings.Contains(nick, sysNick) {
		return nil, fmt.Errorf("nickname %q is reserved", nick)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, taken := reg.users[nick]; taken {
		return nil, fmt.Errorf("nickname %q already in use", nick)
	}
	p := newPlayer(nick, sink)
	reg.users[nick] = p
	log.Printf("player %q registered", nick)
	return p, nil
}

// DeregisterUser releases a nickname and removes the player from their room,
// if any. Safe to call for a player that was never seated.
func (reg *Registry) DeregisterUser(p *Player) {
	reg.mu.Lock()
	if _, known := reg.users[p.Nick]; !known {
		reg.mu.Unlock()
		log.Printf("ERROR [DeregisterUser]: player %q is not registered", p.Nick)
		return
	}
	delete(reg.users, p.Nick)
	reg.mu.Unlock()

	if room := p.Room(); room != nil {
		if err := room.RemovePlayer(p); err != nil {
			log.Printf("ERROR [DeregisterUser]: %v", err)
		}
	}
	log.Printf("player %q deregistered", p.Nick)
}

// RegisterRoom stores a freshly built room under a generated short code and
// returns the code.
func (reg *Registry) RegisterRoom(room *Room) string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for {
		code := uuid.NewString()[:8]
		if _, clash := reg.rooms[code]; clash {
			continue
		}
		room.ID = code
		reg.rooms[code] = room
		log.Printf("room %q registered: %s", code, room.Desc())
		return code
	}
}

// LookupRoom returns the room for a code, or nil.
func (reg *Registry) LookupRoom(code string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.rooms[code]
}

// DeregisterRoom drops a room from the registry. Called by the room itself
// when its last player leaves.
func (reg *Registry) DeregisterRoom(code string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, known := reg.rooms[code]; !known {
		log.Printf("ERROR [DeregisterRoom]: room %q is not registered", code)
		return
	}
	delete(reg.rooms, code)
	log.Printf("room %q deregistered", code)
}
