package auth

import "infinitetms/internal/models"

// Every policy below switches over the full role set; a role added to
// models.Roles must be placed explicitly in each of them.

// CanManageTeam gates user creation and the full roster.
func CanManageTeam(r models.Role) bool {
	switch r {
	case models.RoleAdmin, models.RoleTeamLead:
		return true
	case models.RoleDeveloper, models.RoleDesigner, models.RoleDM, models.RoleUser:
		return false
	}
	return false
}

// CanViewAllTickets lets a role list tickets beyond its own and the pool.
func CanViewAllTickets(r models.Role) bool {
	switch r {
	case models.RoleAdmin, models.RoleTeamLead:
		return true
	case models.RoleDeveloper, models.RoleDesigner, models.RoleDM, models.RoleUser:
		return false
	}
	return false
}

// CanAssignOthers lets a role create pool tickets and hand tickets to other
// users. Everyone else only creates tickets for themselves.
func CanAssignOthers(r models.Role) bool {
	switch r {
	case models.RoleAdmin, models.RoleTeamLead:
		return true
	case models.RoleDeveloper, models.RoleDesigner, models.RoleDM, models.RoleUser:
		return false
	}
	return false
}

func CanDeleteTickets(r models.Role) bool {
	switch r {
	case models.RoleAdmin, models.RoleTeamLead:
		return true
	case models.RoleDeveloper, models.RoleDesigner, models.RoleDM, models.RoleUser:
		return false
	}
	return false
}

// CanOverrideStatus allows moving a ticket backwards along the lifecycle.
func CanOverrideStatus(r models.Role) bool {
	switch r {
	case models.RoleAdmin:
		return true
	case models.RoleTeamLead, models.RoleDeveloper, models.RoleDesigner, models.RoleDM, models.RoleUser:
		return false
	}
	return false
}

// CanAdministerUsers covers editing and deleting other accounts and reading
// everyone's attendance, documents, work updates and audit logs.
func CanAdministerUsers(r models.Role) bool {
	switch r {
	case models.RoleAdmin:
		return true
	case models.RoleTeamLead, models.RoleDeveloper, models.RoleDesigner, models.RoleDM, models.RoleUser:
		return false
	}
	return false
}

// CanGrantRole reports whether actor may create an account with role target.
// Team leads cannot mint administrators.
func CanGrantRole(actor, target models.Role) bool {
	if !target.Valid() {
		return false
	}
	switch actor {
	case models.RoleAdmin:
		return true
	case models.RoleTeamLead:
		return target != models.RoleAdmin
	case models.RoleDeveloper, models.RoleDesigner, models.RoleDM, models.RoleUser:
		return false
	}
	return false
}

// Capabilities is what the UI needs to decide which sections to show.
type Capabilities struct {
	TeamManagement bool `json:"teamManagement"`
	AllTickets     bool `json:"allTickets"`
	AssignOthers   bool `json:"assignOthers"`
	DeleteTickets  bool `json:"deleteTickets"`
	StatusOverride bool `json:"statusOverride"`
	Administration bool `json:"administration"`
}

func CapabilitiesFor(r models.Role) Capabilities {
	return Capabilities{
		TeamManagement: CanManageTeam(r),
		AllTickets:     CanViewAllTickets(r),
		AssignOthers:   CanAssignOthers(r),
		DeleteTickets:  CanDeleteTickets(r),
		StatusOverride: CanOverrideStatus(r),
		Administration: CanAdministerUsers(r),
	}
}
