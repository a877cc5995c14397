package domain

import "fmt"

type Role string

const (
	RoleBuyer     Role = "buyer"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleBuyer, RoleOrganizer, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) CanCreateEvents() bool {
	return r == RoleOrganizer || r == RoleAdmin
}

// CanManageEvent covers edits and deletion of an existing event.
func (r Role) CanManageEvent(userID, eventOrganizerID string) bool {
	if r == RoleAdmin {
		return true
	}
	return r == RoleOrganizer && userID == eventOrganizerID
}

func (r Role) CanPurchase() bool {
	return r == RoleBuyer || r == RoleAdmin
}
