package domain

// Role is a capability checked before privileged ledger operations.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleOrganizer Role = "organizer"
	RoleJudge     Role = "judge"
	RolePauser    Role = "pauser"
)

// ValidRole reports whether r is one of the four ledger capabilities.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleOrganizer, RoleJudge, RolePauser:
		return true
	}
	return false
}
