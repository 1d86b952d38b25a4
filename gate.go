package main

import (
	"time"
)

// ActionKind identifies one inbound player command for the current stage.
type ActionKind string

const (
	ActionSkip           ActionKind = "skip"
	ActionWolfKill       ActionKind = "wolf_kill"
	ActionDetectiveCheck ActionKind = "detective_check"
	ActionWitchHeal      ActionKind = "witch_heal"
	ActionWitchPoison    ActionKind = "witch_poison"
	ActionGuardProtect   ActionKind = "guard_protect"
	ActionHunterAck      ActionKind = "hunter_ack"
)

// actionStage pins each kind to the stage it belongs to. ActionSkip is
// accepted in any open stage.
var actionStage = map[ActionKind]GameStage{
	ActionWolfKill:       StageWolf,
	ActionDetectiveCheck: StageDetective,
	ActionWitchHeal:      StageWitch,
	ActionWitchPoison:    StageWitch,
	ActionGuardProtect:   StageGuard,
	ActionHunterAck:      StageHunter,
}

// needsTarget marks the kinds that must name a seated player.
var needsTarget = map[ActionKind]bool{
	ActionWolfKill:       true,
	ActionDetectiveCheck: true,
	ActionWitchHeal:      true,
	ActionWitchPoison:    true,
	ActionGuardProtect:   true,
}

// actionOutcome is the tagged result every action handler returns. Both
// outcomeDone and outcomeNone close the gate (a skip is just an action with
// no effect); only a rejection leaves it open so the actor can retry.
type actionOutcome struct {
	tag    outcomeTag
	reason string
}

type outcomeTag int

const (
	outcomeDone outcomeTag = iota
	outcomeNone
	outcomeReject
)

func done() actionOutcome     { return actionOutcome{tag: outcomeDone} }
func noResult() actionOutcome { return actionOutcome{tag: outcomeNone} }

func reject(reason string) actionOutcome {
	return actionOutcome{tag: outcomeReject, reason: reason}
}

type actionHandler func(r *Room, actor *Player, target string) actionOutcome

var actionHandlers = map[ActionKind]actionHandler{
	ActionSkip:           (*Room).actionSkip,
	ActionWolfKill:       (*Room).actionWolfKill,
	ActionDetectiveCheck: (*Room).actionDetectiveCheck,
	ActionWitchHeal:      (*Room).actionWitchHeal,
	ActionWitchPoison:    (*Room).actionWitchPoison,
	ActionGuardProtect:   (*Room).actionGuardProtect,
	ActionHunterAck:      (*Room).actionHunterAck,
}

// openGate marks the current stage as waiting for a player action and
// returns the channel that closes when the gate does. Caller holds r.mu.
func (r *Room) openGate() <-chan struct{} {
	r.waiting = true
	r.gateCh = make(chan struct{})
	return r.gateCh
}

// closeGate releases the waiting stage: the stage marker is cleared so
// client UIs fall back to idle, and the close channel wakes the night
// logic. Caller holds r.mu.
func (r *Room) closeGate() {
	if !r.waiting {
		return
	}
	r.waiting = false
	r.stage = StageNone
	if r.gateCh != nil {
		close(r.gateCh)
		r.gateCh = nil
	}
}

// waitForGate blocks until the open gate closes, then broadcasts the
// drop-input control so every blocked prompt in the room is cancelled.
// A non-zero timeout force-closes an unattended stage as a skip.
func (r *Room) waitForGate(ch <-chan struct{}, timeout time.Duration) {
	if timeout > 0 {
		select {
		case <-ch:
		case <-time.After(timeout):
			r.mu.Lock()
			r.closeGate()
			r.mu.Unlock()
			<-ch // already closed by closeGate; drains instantly
		}
	} else {
		<-ch
	}
	r.broadcastCtrl(CtrlDropInput)
}

// Submit is the single entry point for stage actions. Attempts that fail
// the guard (no open gate, wrong stage for the command, actor ineligible or
// dead, unknown target) are dropped without any reply; an eligible action
// either closes the gate or sends the actor a private rejection and leaves
// the gate open for a retry.
func (r *Room) Submit(actor *Player, kind ActionKind, target string) {
	handler, known := actionHandlers[kind]
	if !known {
		DebugLog("Submit", "player %q sent unknown action %q", actor.Nick, kind)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.waiting {
		return
	}
	if want, pinned := actionStage[kind]; pinned && r.stage != want {
		return
	}
	if !actor.shouldAct(r.stage) {
		return
	}
	if needsTarget[kind] {
		victim, seated := r.players[target]
		if !seated {
			DebugLog("Submit", "player %q targeted unknown player %q", actor.Nick, target)
			return
		}
		// Only living (or pending) players are actionable. The UI never
		// offers a dead target, but the wire accepts any nickname.
		if victim.Status == StatusDead {
			DebugLog("Submit", "player %q targeted dead player %q", actor.Nick, target)
			return
		}
	}

	switch out := handler(r, actor, target); out.tag {
	case outcomeDone, outcomeNone:
		r.closeGate()
	case outcomeReject:
		actor.sendMsg(out.reason)
	}
}
