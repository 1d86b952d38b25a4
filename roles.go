package main

import "fmt"

// Role is a player's assigned identity for one game run.
// RoleNone means "not assigned" (lobby, or after a game ended).
type Role int

const (
	RoleNone Role = iota
	RoleWolf
	RoleWolfKing
	RoleCitizen
	RoleDetective
	RoleWitch
	RoleGuard
	RoleHunter
)

func (r Role) String() string {
	switch r {
	case RoleWolf:
		return "Werewolf"
	case RoleWolfKing:
		return "Wolf King"
	case RoleCitizen:
		return "Villager"
	case RoleDetective:
		return "Detective"
	case RoleWitch:
		return "Witch"
	case RoleGuard:
		return "Guard"
	case RoleHunter:
		return "Hunter"
	default:
		return "None"
	}
}

// IsWolfAligned reports whether the role belongs to the wolf camp.
func (r Role) IsWolfAligned() bool {
	return r == RoleWolf || r == RoleWolfKing
}

// IsGod reports whether the role is a villager-aligned power role.
func (r Role) IsGod() bool {
	switch r {
	case RoleDetective, RoleWitch, RoleGuard, RoleHunter:
		return true
	}
	return false
}

// PlayerStatus tracks survival through a night cycle. The PENDING_* values
// are provisional and resolved into Alive/Dead at tally time.
type PlayerStatus int

const (
	StatusNone PlayerStatus = iota
	StatusAlive
	StatusDead
	StatusPendingDead
	StatusPendingHeal
	StatusPendingPoison
	StatusPendingGuard
)

func (s PlayerStatus) String() string {
	switch s {
	case StatusAlive:
		return "alive"
	case StatusDead:
		return "out"
	case StatusPendingDead:
		return "marked by werewolf/conflict"
	case StatusPendingHeal:
		return "saved by witch"
	case StatusPendingPoison:
		return "poisoned by witch"
	case StatusPendingGuard:
		return "protected by guard"
	default:
		return "none"
	}
}

// GameStage is the phase of the night/day cycle currently accepting actions.
type GameStage int

const (
	StageNone GameStage = iota
	StageWolf
	StageDetective
	StageWitch
	StageGuard
	StageHunter
	StageDay
)

func (g GameStage) String() string {
	switch g {
	case StageWolf:
		return "Werewolf"
	case StageDetective:
		return "Detective"
	case StageWitch:
		return "Witch"
	case StageGuard:
		return "Guard"
	case StageHunter:
		return "Hunter"
	case StageDay:
		return "Day"
	default:
		return "None"
	}
}

// nightStages is the fixed visiting order after the mandatory wolf stage.
// Optional stages are skipped when their role is absent from the room.
var nightStages = []struct {
	Stage GameStage
	Role  Role
}{
	{StageWolf, RoleWolf},
	{StageDetective, RoleDetective},
	{StageWitch, RoleWitch},
	{StageGuard, RoleGuard},
	{StageHunter, RoleHunter},
}

// stageRoles maps each stage to the roles eligible to act in it.
var stageRoles = map[GameStage][]Role{
	StageWolf:      {RoleWolf, RoleWolfKing},
	StageDetective: {RoleDetective},
	StageWitch:     {RoleWitch},
	StageGuard:     {RoleGuard},
	StageHunter:    {RoleHunter},
	StageDay:       {},
}

// WitchRule controls when the witch may use the antidote on herself.
type WitchRule int

const (
	WitchSelfRescueFirstNightOnly WitchRule = iota
	WitchNoSelfRescue
	WitchAlwaysSelfRescue
)

func (w WitchRule) String() string {
	switch w {
	case WitchNoSelfRescue:
		return "no self-rescue"
	case WitchAlwaysSelfRescue:
		return "may always self-rescue"
	default:
		return "self-rescue on the first night only"
	}
}

// GuardRule decides the outcome when the guard protects a target the witch
// is already healing the same night.
type GuardRule int

const (
	// GuardHealConflictKills: protected + healed in the same night dies.
	GuardHealConflictKills GuardRule = iota
	// GuardHealConflictSaves: protected + healed survives.
	GuardHealConflictSaves
)

func (g GuardRule) String() string {
	if g == GuardHealConflictKills {
		return "guard+heal on the same target kills"
	}
	return "guard+heal on the same target saves"
}

// Option labels shown by clients when configuring a room. The server only
// ever receives the label strings back, so parsing goes through these maps.

var godWolfOptions = map[string]Role{
	"Wolf King": RoleWolfKing,
}

var godCitizenOptions = map[string]Role{
	"Detective": RoleDetective,
	"Witch":     RoleWitch,
	"Guard":     RoleGuard,
	"Hunter":    RoleHunter,
}

var witchRuleOptions = map[string]WitchRule{
	"first night only": WitchSelfRescueFirstNightOnly,
	"never":            WitchNoSelfRescue,
	"always":           WitchAlwaysSelfRescue,
}

var guardRuleOptions = map[string]GuardRule{
	"conflict kills": GuardHealConflictKills,
	"conflict saves": GuardHealConflictSaves,
}

func parseGodWolves(options []string) ([]Role, error) {
	return parseRoleOptions(options, godWolfOptions, "special wolf")
}

func parseGodCitizens(options []string) ([]Role, error) {
	return parseRoleOptions(options, godCitizenOptions, "special villager")
}

func parseRoleOptions(options []string, mapping map[string]Role, kind string) ([]Role, error) {
	var roles []Role
	for _, opt := range options {
		role, ok := mapping[opt]
		if !ok {
			return nil, fmt.Errorf("unknown %s option %q", kind, opt)
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func parseWitchRule(option string) (WitchRule, error) {
	if option == "" {
		return WitchSelfRescueFirstNightOnly, nil
	}
	rule, ok := witchRuleOptions[option]
	if !ok {
		return 0, fmt.Errorf("unknown witch rule %q", option)
	}
	return rule, nil
}

func parseGuardRule(option string) (GuardRule, error) {
	if option == "" {
		return GuardHealConflictKills, nil
	}
	rule, ok := guardRuleOptions[option]
	if !ok {
		return 0, fmt.Errorf("unknown guard rule %q", option)
	}
	return rule, nil
}

func containsRole(roles []Role, want Role) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

// isGodless reports whether a role multiset carries no god role at all;
// godless rooms use the relaxed wolf win condition.
func isGodless(roles []Role) bool {
	for _, r := range roles {
		if r.IsGod() {
			return false
		}
	}
	return true
}
