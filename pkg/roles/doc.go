// Package roles defines the closed, ordered role catalog for the CareBridge
// platform.
//
// Roles form a total order by numeric level:
//
//	support_worker(1) < team_leader(2) < coordinator(3) < admin(4) < console_manager(5)
//
// The catalog is compiled in and immutable. There is deliberately no way to
// register a role at runtime and no string comparison outside Parse: the
// legacy system compared lowercased role names inline in handlers, and stale
// role spellings produced silent privilege bugs. Unknown role names are an
// error, never a default.
package roles
