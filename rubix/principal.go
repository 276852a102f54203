package rubix

// Principal is the resolved identity a directory query runs on behalf of.
type Principal struct {
	ID           string
	Unrestricted bool
	TeamLead     bool
	Teams        []Team
}

// PrincipalFromUser derives a principal from a stored user and the teams it belongs to.
func PrincipalFromUser(u User, teams []Team) Principal {
	p := Principal{
		ID:           u.ID,
		Unrestricted: u.HasRole(RoleSuperAdmin),
		TeamLead:     u.HasRole(RoleTeamLead),
		Teams:        teams,
	}
	for _, t := range teams {
		if t.IsLead(u.ID) {
			p.TeamLead = true
			break
		}
	}
	return p
}
