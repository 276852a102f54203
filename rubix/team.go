package rubix

type TeamLevel string

const (
	TeamLevelMember  TeamLevel = "member"
	TeamLevelManager TeamLevel = "manager"
	TeamLevelOwner   TeamLevel = "owner"
)

// IsLead reports whether the level grants team lead visibility.
func (l TeamLevel) IsLead() bool {
	return l == TeamLevelManager || l == TeamLevelOwner
}

type Team struct {
	ID      string
	Name    string
	Members []UserTeam
}

type UserTeam struct {
	User  string
	Team  string
	Level TeamLevel
}

// MemberIDs returns the ids of every member of the team, leads included.
func (t Team) MemberIDs() []string {
	ids := make([]string, 0, len(t.Members))
	seen := make(map[string]struct{}, len(t.Members))
	for _, m := range t.Members {
		if _, ok := seen[m.User]; ok {
			continue
		}
		seen[m.User] = struct{}{}
		ids = append(ids, m.User)
	}
	return ids
}

// IsLead reports whether userID is recorded as a lead of the team.
func (t Team) IsLead(userID string) bool {
	for _, m := range t.Members {
		if m.User == userID && m.Level.IsLead() {
			return true
		}
	}
	return false
}

// HasMember reports whether userID belongs to the team at any level.
func (t Team) HasMember(userID string) bool {
	for _, m := range t.Members {
		if m.User == userID {
			return true
		}
	}
	return false
}

type MutateTeamPayload struct {
	Name       *string
	UsersToAdd map[string]TeamLevel // userID -> level
	UsersToRem []string
	UsersLevel map[string]TeamLevel // userID -> new level
}

type MutateTeamOption func(*MutateTeamPayload)

func WithTeamName(name string) MutateTeamOption {
	return func(p *MutateTeamPayload) { p.Name = &name }
}

func WithTeamUsersToAdd(level TeamLevel, users ...string) MutateTeamOption {
	return func(p *MutateTeamPayload) {
		if p.UsersToAdd == nil {
			p.UsersToAdd = make(map[string]TeamLevel)
		}
		for _, u := range users {
			p.UsersToAdd[u] = level
		}
	}
}

func WithTeamUsersToRemove(users ...string) MutateTeamOption {
	return func(p *MutateTeamPayload) { p.UsersToRem = append(p.UsersToRem, users...) }
}

func WithTeamUsersLevel(level TeamLevel, users ...string) MutateTeamOption {
	return func(p *MutateTeamPayload) {
		if p.UsersLevel == nil {
			p.UsersLevel = make(map[string]TeamLevel)
		}
		for _, u := range users {
			p.UsersLevel[u] = level
		}
	}
}
