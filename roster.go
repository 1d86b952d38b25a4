package main

import (
	"log"
	"sync"
	"sync/atomic"
)

// skillRecord carries the per-role one-shot resources a player may hold.
// Initialized at role assignment, cleared when the game stops.
type skillRecord struct {
	WitchHeal     bool   // antidote still unused
	WitchPoison   bool   // poison still unused
	LastProtected string // guard's previous-night target, "" on night one
}

// Player is one seated (or lobby) participant. Role and Status carry their
// zero values while no game is running; the room's started flag is the
// authoritative lifecycle marker.
type Player struct {
	Nick string

	// InputBlocking is owned by the transport layer: set while the session
	// has a prompt pending, so a gate close can cancel it remotely.
	InputBlocking atomic.Bool

	mu   sync.Mutex
	room *Room
	sink MessageSink

	// Guarded by the room's lock once seated.
	Role   Role
	Status PlayerStatus
	Skill  skillRecord
}

func newPlayer(nick string, sink MessageSink) *Player {
	return &Player{Nick: nick, sink: sink}
}

// MessageSink is the transport side of a player. Room traffic flows through
// the append-only room log, which each session tails itself; the sink only
// carries the one signal that cannot wait for a prompt to finish.
type MessageSink interface {
	// ForceCancel terminates the session's pending input prompt, if any.
	ForceCancel()
}

// ForceCancel forwards the drop-input control to the session, but only while
// the session actually has a prompt up.
func (p *Player) ForceCancel() {
	if p.InputBlocking.Load() && p.sink != nil {
		p.sink.ForceCancel()
	}
}

// Room returns the room the player currently sits in, or nil.
func (p *Player) Room() *Room {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.room
}

func (p *Player) setRoom(r *Room) {
	p.mu.Lock()
	p.room = r
	p.mu.Unlock()
}

// sendMsg writes a private line for this player into their room's log.
// Messaging a player with no room is a logged no-op.
func (p *Player) sendMsg(text string) {
	room := p.Room()
	if room == nil {
		log.Printf("WARN [sendMsg]: player %q has no room, dropping %q", p.Nick, text)
		return
	}
	room.sendTo(p.Nick, text)
}

// shouldAct reports whether this player is eligible for the given stage:
// their role must be listed for the stage and they must not be out.
// Callers hold the room lock.
func (p *Player) shouldAct(stage GameStage) bool {
	if p.Status == StatusDead {
		return false
	}
	for _, r := range stageRoles[stage] {
		if p.Role == r {
			return true
		}
	}
	return false
}

func (p *Player) witchHasHeal() bool   { return p.Skill.WitchHeal }
func (p *Player) witchHasPoison() bool { return p.Skill.WitchPoison }
