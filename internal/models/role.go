package models

import (
	"fmt"
	"strings"
)

// Role is the closed set of user roles. Authorization decisions switch over
// it exhaustively in internal/auth.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleTeamLead  Role = "TEAM_LEAD"
	RoleDeveloper Role = "DEVELOPER"
	RoleDesigner  Role = "DESIGNER"
	RoleDM        Role = "DM"
	RoleUser      Role = "USER"
)

var Roles = []Role{RoleAdmin, RoleTeamLead, RoleDeveloper, RoleDesigner, RoleDM, RoleUser}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeamLead, RoleDeveloper, RoleDesigner, RoleDM, RoleUser:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
