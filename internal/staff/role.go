package staff

import "strings"

// RoleType is the coarse role bucket analytics reason about. Staff records
// keep their free-text role string for display; classification is explicit
// and happens only here.
type RoleType string

const (
	RoleChef      RoleType = "chef"
	RoleCook      RoleType = "cook"
	RoleWaiter    RoleType = "waiter"
	RoleHost      RoleType = "host"
	RoleBartender RoleType = "bartender"
	RoleManager   RoleType = "manager"
	RoleOther     RoleType = "other"
)

// roleKeywords is checked in order; the first bucket with a matching keyword
// wins. "sous chef" classifies as chef, "line cook" as cook, "server" and
// "waitress" both as waiter.
var roleKeywords = []struct {
	role     RoleType
	keywords []string
}{
	{RoleChef, []string{"chef"}},
	{RoleCook, []string{"cook"}},
	{RoleWaiter, []string{"waiter", "waitress", "server"}},
	{RoleHost, []string{"host", "hostess"}},
	{RoleBartender, []string{"bartender", "bar"}},
	{RoleManager, []string{"manager", "supervisor"}},
}

// ClassifyRole maps a free-text role string to its RoleType. Unrecognized
// strings fall back to RoleOther.
func ClassifyRole(role string) RoleType {
	lowered := strings.ToLower(strings.TrimSpace(role))
	for _, bucket := range roleKeywords {
		for _, keyword := range bucket.keywords {
			if strings.Contains(lowered, keyword) {
				return bucket.role
			}
		}
	}
	return RoleOther
}
