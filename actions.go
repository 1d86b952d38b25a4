package main

import "fmt"

// Night-action handlers. All run with r.mu held, called only through
// Room.Submit after the gate guard has passed, with the target already
// verified to be seated in the room and not dead.
//
// Status writes use overwrite semantics: whatever was pending on the target
// is replaced, and only the last write before the tally matters.

func (r *Room) actionSkip(actor *Player, _ string) actionOutcome {
	DebugLog("action", "player %q skipped stage %s", actor.Nick, r.stage)
	return noResult()
}

func (r *Room) actionWolfKill(_ *Player, target string) actionOutcome {
	r.players[target].Status = StatusPendingDead
	return done()
}

func (r *Room) actionDetectiveCheck(actor *Player, target string) actionOutcome {
	r.sendTo(actor.Nick, fmt.Sprintf("player %q is the %s", target, r.players[target].Role))
	return done()
}

func (r *Room) actionWitchPoison(actor *Player, target string) actionOutcome {
	if !actor.witchHasPoison() {
		return reject("no poison left")
	}
	actor.Skill.WitchPoison = false
	r.players[target].Status = StatusPendingPoison
	return done()
}

func (r *Room) actionWitchHeal(actor *Player, target string) actionOutcome {
	if target == actor.Nick {
		switch r.witchRule {
		case WitchNoSelfRescue:
			return reject("you cannot save yourself")
		case WitchSelfRescueFirstNightOnly:
			if r.round != 1 {
				return reject("you may only save yourself on the first night")
			}
		}
	}
	if !actor.witchHasHeal() {
		return reject("no antidote left")
	}
	actor.Skill.WitchHeal = false
	r.players[target].Status = StatusPendingHeal
	return done()
}

func (r *Room) actionGuardProtect(actor *Player, target string) actionOutcome {
	if actor.Skill.LastProtected == target {
		return reject("you cannot guard the same player two nights in a row")
	}
	actor.Skill.LastProtected = target

	switch r.players[target].Status {
	case StatusPendingHeal:
		if r.guardRule == GuardHealConflictKills {
			// Guarded and healed in the same night: the target dies.
			r.players[target].Status = StatusPendingDead
			return done()
		}
	case StatusPendingPoison:
		// Poison is unguardable; the protect is spent but changes nothing.
		return done()
	}

	r.players[target].Status = StatusPendingGuard
	return done()
}

func (r *Room) actionHunterAck(actor *Player, _ string) actionOutcome {
	DebugLog("action", "hunter %q acknowledged", actor.Nick)
	return noResult()
}
