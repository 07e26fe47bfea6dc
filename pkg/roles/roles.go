package roles

import (
	"fmt"
)

// Role identifies a member of the fixed role catalog.
type Role string

const (
	SupportWorker  Role = "support_worker"
	TeamLeader     Role = "team_leader"
	Coordinator    Role = "coordinator"
	Admin          Role = "admin"
	ConsoleManager Role = "console_manager"
)

// roleLevels is the single source of truth for role ordering.
// Higher level means more privilege.
var roleLevels = map[Role]int{
	SupportWorker:  1,
	TeamLeader:     2,
	Coordinator:    3,
	Admin:          4,
	ConsoleManager: 5,
}

var roleDescriptions = map[Role]string{
	SupportWorker:  "Delivers care to explicitly assigned clients",
	TeamLeader:     "Leads a team of support workers; assigned-client scope",
	Coordinator:    "Coordinates rosters and clients across the tenant",
	Admin:          "Administers the tenant",
	ConsoleManager: "Platform operator with cross-tenant access",
}

// All returns the catalog in ascending level order.
func All() []Role {
	return []Role{SupportWorker, TeamLeader, Coordinator, Admin, ConsoleManager}
}

// Valid reports whether r is a member of the catalog.
func Valid(r Role) bool {
	_, ok := roleLevels[r]
	return ok
}

// Level returns the numeric privilege level of r.
// It panics on an unknown role: levels are only meaningful for catalog
// members, and every Role value must come through Parse or the constants.
func Level(r Role) int {
	level, ok := roleLevels[r]
	if !ok {
		panic(fmt.Sprintf("roles: unknown role %q", r))
	}
	return level
}

// AtLeast reports whether r has at least the privilege level of threshold.
func AtLeast(r, threshold Role) bool {
	return Level(r) >= Level(threshold)
}

// AtLeastLevel reports whether r has at least the given numeric level.
func AtLeastLevel(r Role, level int) bool {
	return Level(r) >= level
}

// IsGlobal reports whether r may act across tenant boundaries.
// Only the console manager role is global.
func IsGlobal(r Role) bool {
	return r == ConsoleManager
}

// Description returns the human description of r.
func Description(r Role) string {
	return roleDescriptions[r]
}

// Parse resolves a stored role name to a catalog member.
// Unknown names return an error; they must never silently default to the
// lowest or highest privilege.
func Parse(name string) (Role, error) {
	r := Role(name)
	if !Valid(r) {
		return "", fmt.Errorf("roles: unknown role %q", name)
	}
	return r, nil
}
