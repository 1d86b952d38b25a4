package main

import (
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"
)

// Pacing bundles the purely cosmetic delays of the night sequence plus the
// optional stage timeout. Zero values mean "no delay" / "no timeout", which
// is what the tests use.
type Pacing struct {
	Settle       time.Duration // pause after each appear/close-eyes prompt
	Reveal       time.Duration // pause after role reveals before night one
	StageTimeout time.Duration // force-close an unattended stage; 0 = never
}

// RoomSettings is the raw creation request as it arrives from a client.
type RoomSettings struct {
	Wolves       int      `json:"wolves"`
	Villagers    int      `json:"villagers"`
	GodWolves    []string `json:"god_wolves"`
	GodVillagers []string `json:"god_villagers"`
	WitchRule    string   `json:"witch_rule"`
	GuardRule    string   `json:"guard_rule"`
}

// Room is one game instance: static composition plus all dynamic state of
// the night/day cycle. Dynamic fields are guarded by mu; the night sequence
// runs on its own goroutine and interleaves with player actions only at the
// gate and the pacing sleeps.
type Room struct {
	ID string

	roles     []Role
	witchRule WitchRule
	guardRule GuardRule

	reg      *Registry
	store    *LogStore
	pace     Pacing
	narrator Narrator

	mu        sync.Mutex
	started   bool
	round     int
	stage     GameStage
	waiting   bool
	gateCh    chan struct{}
	rolePool  []Role
	players   map[string]*Player
	joinOrder []string
	nightDone chan struct{} // closed when the running night task finishes
}

// NewRoom validates settings, builds the static role multiset and registers
// the room, returning it with its generated code filled in.
func NewRoom(reg *Registry, store *LogStore, pace Pacing, narrator Narrator, settings RoomSettings) (*Room, error) {
	if settings.Wolves < 1 {
		return nil, fmt.Errorf("a room needs at least one ordinary wolf")
	}
	if settings.Villagers < 0 {
		return nil, fmt.Errorf("villager count must not be negative")
	}
	godWolves, err := parseGodWolves(settings.GodWolves)
	if err != nil {
		return nil, err
	}
	godCitizens, err := parseGodCitizens(settings.GodVillagers)
	if err != nil {
		return nil, err
	}
	witchRule, err := parseWitchRule(settings.WitchRule)
	if err != nil {
		return nil, err
	}
	guardRule, err := parseGuardRule(settings.GuardRule)
	if err != nil {
		return nil, err
	}

	var roles []Role
	for i := 0; i < settings.Wolves; i++ {
		roles = append(roles, RoleWolf)
	}
	for i := 0; i < settings.Villagers; i++ {
		roles = append(roles, RoleCitizen)
	}
	roles = append(roles, godWolves...)
	roles = append(roles, godCitizens...)
	if len(roles) < 2 {
		return nil, fmt.Errorf("a room needs at least two seats")
	}

	r := &Room{
		roles:     roles,
		witchRule: witchRule,
		guardRule: guardRule,
		reg:       reg,
		store:     store,
		pace:      pace,
		narrator:  narrator,
		rolePool:  append([]Role(nil), roles...),
		players:   make(map[string]*Player),
	}
	reg.RegisterRoom(r)
	return r, nil
}

// Desc summarizes the room for a joining player.
func (r *Room) Desc() string {
	counts := make(map[Role]int)
	for _, role := range r.roles {
		counts[role]++
	}
	var parts []string
	for role, n := range counts {
		parts = append(parts, fmt.Sprintf("%s x%d", role, n))
	}
	sort.Strings(parts)
	return fmt.Sprintf("room %s, %d seats, lineup: %s", r.ID, len(r.roles), strings.Join(parts, ", "))
}

// CanJoin reports why a player could not join, or nil.
func (r *Room) CanJoin() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.players) >= len(r.roles) {
		return fmt.Errorf("room is full")
	}
	return nil
}

// AddPlayer seats a player. Seating someone already in a room, or a
// nickname already seated here, is a caller bug and returns an error
// without touching state.
func (r *Room) AddPlayer(p *Player) error {
	r.mu.Lock()
	if p.Room() != nil {
		r.mu.Unlock()
		return fmt.Errorf("player %q is already in a room", p.Nick)
	}
	if _, seated := r.players[p.Nick]; seated {
		r.mu.Unlock()
		return fmt.Errorf("player %q is already seated in room %s", p.Nick, r.ID)
	}
	r.players[p.Nick] = p
	r.joinOrder = append(r.joinOrder, p.Nick)
	p.setRoom(r)
	status := r.rosterStatusLocked()
	r.mu.Unlock()

	r.broadcast(status)
	log.Printf("player %q joined room %q", p.Nick, r.ID)
	return nil
}

// RemovePlayer unseats a player; removing someone not seated is a caller
// bug. When the last player leaves the room is deregistered and its log
// purged.
func (r *Room) RemovePlayer(p *Player) error {
	r.mu.Lock()
	if _, seated := r.players[p.Nick]; !seated {
		r.mu.Unlock()
		return fmt.Errorf("player %q is not seated in room %s", p.Nick, r.ID)
	}
	delete(r.players, p.Nick)
	for i, nick := range r.joinOrder {
		if nick == p.Nick {
			r.joinOrder = append(r.joinOrder[:i], r.joinOrder[i+1:]...)
			break
		}
	}
	p.setRoom(nil)
	empty := len(r.players) == 0
	var status string
	if !empty {
		status = r.rosterStatusLocked()
	}
	r.mu.Unlock()

	if empty {
		r.reg.DeregisterRoom(r.ID)
		if err := r.store.Purge(r.ID); err != nil {
			log.Printf("ERROR [RemovePlayer: purge log]: %v", err)
		}
		return nil
	}
	r.broadcast(status)
	log.Printf("player %q left room %q", p.Nick, r.ID)
	return nil
}

// Host returns the earliest-joined seated player, or nil for an empty room.
func (r *Room) Host() *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostLocked()
}

func (r *Room) hostLocked() *Player {
	if len(r.joinOrder) == 0 {
		return nil
	}
	return r.players[r.joinOrder[0]]
}

func (r *Room) rosterStatusLocked() string {
	host := "nobody"
	if h := r.hostLocked(); h != nil {
		host = h.Nick
	}
	return fmt.Sprintf("players %d/%d, the host is %s", len(r.players), len(r.roles), host)
}

// aliveNicksLocked lists everyone not yet out, pending statuses included,
// in join order.
func (r *Room) aliveNicksLocked() []string {
	var nicks []string
	for _, nick := range r.joinOrder {
		if r.players[nick].Status != StatusDead {
			nicks = append(nicks, nick)
		}
	}
	return nicks
}

func (r *Room) pendingDeadNicksLocked() []string {
	var nicks []string
	for _, nick := range r.joinOrder {
		if r.players[nick].Status == StatusPendingDead {
			nicks = append(nicks, nick)
		}
	}
	return nicks
}

// AliveNicks is the target list offered to acting players.
func (r *Room) AliveNicks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aliveNicksLocked()
}

func (r *Room) sendTo(nick, text string) {
	if err := r.store.AppendLine(r.ID, nick, text); err != nil {
		log.Printf("ERROR [room %s: sendTo %q]: %v", r.ID, nick, err)
	}
}

func (r *Room) broadcast(text string) {
	if err := r.store.AppendBroadcast(r.ID, text); err != nil {
		log.Printf("ERROR [room %s: broadcast]: %v", r.ID, err)
	}
}

func (r *Room) broadcastCtrl(ctrl string) {
	if err := r.store.AppendControl(r.ID, ctrl); err != nil {
		log.Printf("ERROR [room %s: broadcastCtrl]: %v", r.ID, err)
	}
}

// nightRunningLocked reports whether a night task is still live.
func (r *Room) nightRunningLocked() bool {
	if r.nightDone == nil {
		return false
	}
	select {
	case <-r.nightDone:
		return false
	default:
		return true
	}
}

// StartGame is the host command that launches a run: the previous night
// task must have fully closed, and seats must be filled exactly.
func (r *Room) StartGame(actor *Player) {
	r.mu.Lock()
	if r.hostLocked() != actor {
		r.mu.Unlock()
		r.sendTo(actor.Nick, "only the host can start the game")
		return
	}
	if r.started {
		r.mu.Unlock()
		return
	}
	if r.nightRunningLocked() {
		r.mu.Unlock()
		log.Printf("ERROR [StartGame]: room %s: previous game was not closed properly", r.ID)
		return
	}
	if len(r.players) != len(r.roles) {
		r.mu.Unlock()
		r.broadcast("not enough players to start the game")
		return
	}

	r.started = true
	shuffleRoles(r.rolePool)
	type reveal struct{ nick, text string }
	var reveals []reveal
	for _, nick := range r.joinOrder {
		p := r.players[nick]
		p.Role = r.rolePool[len(r.rolePool)-1]
		r.rolePool = r.rolePool[:len(r.rolePool)-1]
		p.Status = StatusAlive
		p.Skill = skillRecord{}
		if p.Role == RoleWitch {
			p.Skill.WitchHeal = true
			p.Skill.WitchPoison = true
		}
		reveals = append(reveals, reveal{nick, fmt.Sprintf("your identity is %q", p.Role)})
	}
	r.mu.Unlock()

	r.broadcast("the game begins, please check your identity")
	for _, rv := range reveals {
		r.sendTo(rv.nick, rv.text)
	}
	time.Sleep(r.pace.Reveal)

	r.beginNight()
}

// beginNight spawns the night sequence task.
func (r *Room) beginNight() {
	r.mu.Lock()
	done := make(chan struct{})
	r.nightDone = done
	r.mu.Unlock()
	go r.nightLogic(done)
}

// nightLogic drives a single night: fixed stage order, optional stages
// skipped when the room's lineup lacks the role, each stage gated on one
// player action, then the end-of-night tally.
func (r *Room) nightLogic(done chan struct{}) {
	defer close(done)

	r.mu.Lock()
	r.round++
	r.mu.Unlock()

	r.broadcast("night falls, everyone close your eyes")
	time.Sleep(r.pace.Settle)

	for _, ns := range nightStages {
		if ns.Stage != StageWolf && !containsRole(r.roles, ns.Role) {
			continue
		}

		r.mu.Lock()
		if !r.started {
			r.mu.Unlock()
			return
		}
		r.stage = ns.Stage
		ch := r.openGate()
		prompts := r.stagePromptsLocked(ns.Stage)
		r.mu.Unlock()

		r.broadcast(fmt.Sprintf("%s, please open your eyes", ns.Stage))
		for nick, text := range prompts {
			r.sendTo(nick, text)
		}

		r.waitForGate(ch, r.pace.StageTimeout)

		r.broadcast(fmt.Sprintf("%s, please close your eyes", ns.Stage))
		time.Sleep(r.pace.Settle)
	}

	r.tally(false)
}

// stagePromptsLocked builds the private stage-entry lines for the players
// acting in the given stage.
func (r *Room) stagePromptsLocked(stage GameStage) map[string]string {
	prompts := make(map[string]string)
	for nick, p := range r.players {
		if !p.shouldAct(stage) {
			continue
		}
		switch stage {
		case StageWitch:
			if p.witchHasHeal() {
				victims := r.pendingDeadNicksLocked()
				if len(victims) == 0 {
					prompts[nick] = "nobody was attacked tonight"
				} else {
					prompts[nick] = fmt.Sprintf("attacked tonight: %s", strings.Join(victims, ", "))
				}
			} else {
				prompts[nick] = "you have no antidote left"
			}
		case StageHunter:
			if p.Status == StatusPendingPoison {
				prompts[nick] = "your gun is jammed tonight, you cannot fire"
			} else {
				prompts[nick] = "your gun is loaded, you may fire when eliminated"
			}
		}
	}
	return prompts
}

// tally resolves the night (or, in vote-check mode, a vote kill): pending
// statuses collapse into alive/dead, the camps are counted and the win
// conditions checked in fixed order. Only the most recent status write per
// player matters; earlier writes were already overwritten.
func (r *Room) tally(voteCheck bool) {
	r.mu.Lock()

	var wolves, citizens, gods int
	var casualties []string
	for _, nick := range r.joinOrder {
		p := r.players[nick]
		switch p.Status {
		case StatusAlive, StatusPendingHeal, StatusPendingGuard:
			switch {
			case p.Role.IsWolfAligned():
				wolves++
			case p.Role == RoleCitizen:
				citizens++
			default:
				gods++
			}
			p.Status = StatusAlive
		case StatusPendingDead, StatusPendingPoison:
			p.Status = StatusDead
			casualties = append(casualties, nick)
		}
	}

	var reason string
	switch {
	case citizens == 0 || (!isGodless(r.roles) && gods == 0):
		reason = "the werewolves win"
	case wolves == 0:
		reason = "the villagers win"
	}

	if reason != "" {
		lines := r.stopGameLocked(reason)
		r.mu.Unlock()
		for _, line := range lines {
			r.broadcast(line)
		}
		return
	}

	if voteCheck {
		r.mu.Unlock()
		return
	}

	r.stage = StageDay
	round := r.round
	r.mu.Unlock()

	fallen := "no one"
	if len(casualties) > 0 {
		fallen = strings.Join(casualties, ", ")
	}
	r.broadcast(fmt.Sprintf("dawn breaks, last night %s was eliminated", fallen))
	r.broadcast("waiting for the host to call the vote")

	if len(casualties) > 0 && r.narrator != nil {
		go r.narrateCasualties(round, casualties)
	}
}

// stopGameLocked resets the room to its lobby state and returns the
// game-over broadcast lines: the reason first, then the full reveal of
// every player's role and final status.
func (r *Room) stopGameLocked(reason string) []string {
	r.started = false
	r.round = 0
	r.rolePool = append([]Role(nil), r.roles...)
	r.closeGate()
	r.stage = StageNone

	lines := []string{fmt.Sprintf("game over, %s", reason)}
	for _, nick := range r.joinOrder {
		p := r.players[nick]
		lines = append(lines, fmt.Sprintf("%s: %s (%s)", nick, p.Role, p.Status))
		p.Role = RoleNone
		p.Status = StatusNone
		p.Skill = skillRecord{}
	}
	return lines
}

// VoteKill is the host command closing a day: the named player is out
// immediately, the vote-check tally runs, and if the game survives the next
// night begins at once. No broadcast happens on the vote itself.
func (r *Room) VoteKill(actor *Player, target string) {
	r.mu.Lock()
	if r.hostLocked() != actor {
		r.mu.Unlock()
		r.sendTo(actor.Nick, "only the host can announce the vote")
		return
	}
	if !r.started || r.stage != StageDay || r.round == 0 {
		r.mu.Unlock()
		return
	}
	victim, seated := r.players[target]
	if !seated || victim.Status == StatusDead {
		r.mu.Unlock()
		r.sendTo(actor.Nick, fmt.Sprintf("%q cannot be voted out", target))
		return
	}
	victim.Status = StatusDead
	r.mu.Unlock()

	r.tally(true)

	r.mu.Lock()
	stillOn := r.started
	if stillOn {
		r.stage = StageNone
	}
	r.mu.Unlock()
	if stillOn {
		r.beginNight()
	}
}

// narrateCasualties asks the optional narrator for a short piece of flavor
// text and broadcasts it. Failures only log; narration is best-effort.
func (r *Room) narrateCasualties(round int, casualties []string) {
	text, err := narrate(r.narrator, round, casualties)
	if err != nil {
		log.Printf("narrator: %v", err)
		return
	}
	if text != "" {
		r.broadcast(text)
	}
}

// shuffleRoles shuffles the role pool using crypto/rand.
func shuffleRoles(roles []Role) {
	for i := len(roles) - 1; i > 0; i-- {
		jBig, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			roles[i], roles[i-1] = roles[i-1], roles[i]
			continue
		}
		j := int(jBig.Int64())
		roles[i], roles[j] = roles[j], roles[i]
	}
}
