package rubix

const (
	// RoleUser is held implicitly by every user and has no stored representation.
	RoleUser       = "ROLE_USER"
	RoleTeamLead   = "ROLE_TEAMLEAD"
	RoleAdmin      = "ROLE_ADMIN"
	RoleSuperAdmin = "ROLE_SUPER_ADMIN"
)
