package rubix

import (
	"maps"
	"slices"
	"time"
)

type User struct {
	ID            string
	Username      string
	Email         string
	Alias         string
	Title         string
	AccountNumber string
	Enabled       bool
	Roles         []string // ROLE_USER is implied, never stored
	Registered    time.Time
	Preferences   []Preference // Secondary load
	Teams         []UserTeam   // Secondary load
}

type Preference struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HasRole reports whether the user holds role. Every user holds RoleUser.
func (u User) HasRole(role string) bool {
	if role == RoleUser {
		return true
	}
	return slices.Contains(u.Roles, role)
}

// Preference returns the named preference value, or "" when unset.
func (u User) Preference(name string) string {
	for _, p := range u.Preferences {
		if p.Name == name {
			return p.Value
		}
	}
	return ""
}

type MutateUserOption func(*MutateUserPayload)

type MutateUserPayload struct {
	RolesToAdd     []string
	RolesToRemove  []string
	Enabled        *bool
	PreferencesSet map[string]string
}

func WithRolesToAdd(roles ...string) MutateUserOption {
	return func(p *MutateUserPayload) {
		p.RolesToAdd = append(p.RolesToAdd, roles...)
	}
}

func WithRolesToRemove(roles ...string) MutateUserOption {
	return func(p *MutateUserPayload) {
		p.RolesToRemove = append(p.RolesToRemove, roles...)
	}
}

func WithEnabled(enabled bool) MutateUserOption {
	return func(p *MutateUserPayload) { p.Enabled = &enabled }
}

func WithPreference(name, value string) MutateUserOption {
	return func(p *MutateUserPayload) {
		if p.PreferencesSet == nil {
			p.PreferencesSet = make(map[string]string)
		}
		p.PreferencesSet[name] = value
	}
}

// Apply folds the payload into u, returning the mutated copy.
func (p MutateUserPayload) Apply(u User) User {
	roles := slices.Clone(u.Roles)
	for _, r := range p.RolesToAdd {
		if r != RoleUser && !slices.Contains(roles, r) {
			roles = append(roles, r)
		}
	}
	roles = slices.DeleteFunc(roles, func(r string) bool { return slices.Contains(p.RolesToRemove, r) })
	u.Roles = roles

	if p.Enabled != nil {
		u.Enabled = *p.Enabled
	}

	if len(p.PreferencesSet) > 0 {
		prefs := slices.Clone(u.Preferences)
		for _, name := range slices.Sorted(maps.Keys(p.PreferencesSet)) {
			value := p.PreferencesSet[name]
			idx := slices.IndexFunc(prefs, func(pr Preference) bool { return pr.Name == name })
			if idx < 0 {
				prefs = append(prefs, Preference{Name: name, Value: value})
			} else {
				prefs[idx].Value = value
			}
		}
		u.Preferences = prefs
	}
	return u
}
