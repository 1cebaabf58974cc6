package authz

// Role is the single permission class assigned to a principal through its
// profile record. The enumeration is closed and flat: there is no hierarchy,
// an admin does not satisfy an execom-gated route.
type Role string

const (
	RolePublic    Role = "public"
	RoleExecom    Role = "execom"
	RoleTreasurer Role = "treasurer"
	RoleFaculty   Role = "faculty"
	RoleAdmin     Role = "admin"
)

// ParseRole maps a stored string to a Role. Unknown values do not parse;
// a profile row carrying one gates as unresolved.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RolePublic, RoleExecom, RoleTreasurer, RoleFaculty, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// Redirect targets issued by denied guard decisions.
const (
	SignInPath       = "/auth"
	UnauthorizedPath = "/unauthorized"
)

// RoleHome maps each role to its default dashboard landing path. A principal
// authenticating without a remembered destination lands here.
var RoleHome = map[Role]string{
	RolePublic:    "/dashboard/member",
	RoleExecom:    "/dashboard/execom",
	RoleTreasurer: "/dashboard/treasurer",
	RoleFaculty:   "/dashboard/faculty",
	RoleAdmin:     "/dashboard/admin",
}

// routeRequirements is the authorization policy as data: each protected
// route subtree and the single role it demands. Built once at start,
// immutable thereafter.
var routeRequirements = map[string]Role{
	"/dashboard/member":    RolePublic,
	"/dashboard/execom":    RoleExecom,
	"/dashboard/treasurer": RoleTreasurer,
	"/dashboard/faculty":   RoleFaculty,
	"/dashboard/admin":     RoleAdmin,
}

// RequirementFor returns the role required to enter the given route subtree.
// Paths with no registered requirement are not protected by role gating.
func RequirementFor(prefix string) (Role, bool) {
	role, ok := routeRequirements[prefix]
	return role, ok
}

// ProtectedPrefixes lists every role-gated route subtree.
func ProtectedPrefixes() []string {
	prefixes := make([]string, 0, len(routeRequirements))
	for p := range routeRequirements {
		prefixes = append(prefixes, p)
	}
	return prefixes
}
