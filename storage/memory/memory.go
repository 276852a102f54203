// Package memory keeps users and teams in process. It backs the jsonfile provider and tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/kubex/rubix-directory/criteria"
	"github.com/kubex/rubix-directory/rubix"
)

const ProviderKey = "memory"

// Reference tables holding a user id that DeleteUser reassigns.
const (
	TableTimesheets = "timesheets"
	TableInvoices   = "invoices"
)

type Provider struct {
	mu    sync.RWMutex
	users map[string]rubix.User
	order []string
	teams map[string]rubix.Team
	refs  map[string]map[string]string // table -> record id -> user id
}

func New() *Provider {
	return &Provider{
		users: make(map[string]rubix.User),
		teams: make(map[string]rubix.Team),
		refs: map[string]map[string]string{
			TableTimesheets: {},
			TableInvoices:   {},
		},
	}
}

func (p *Provider) Connect() error { return nil }
func (p *Provider) Close() error   { return nil }

func (p *Provider) snapshot() []rubix.User {
	users := make([]rubix.User, 0, len(p.order))
	for _, id := range p.order {
		users = append(users, p.users[id])
	}
	return users
}

func (p *Provider) Count(_ context.Context, c criteria.Criteria) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, total := criteria.Apply(p.snapshot(), c.CountOnly())
	return total, nil
}

func (p *Provider) Find(_ context.Context, c criteria.Criteria) ([]rubix.User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	page, _ := criteria.Apply(p.snapshot(), c)
	result := make([]rubix.User, len(page))
	for i, u := range page {
		u.Roles = slices.Clone(u.Roles)
		u.Preferences = nil
		u.Teams = nil
		result[i] = u
	}
	return result, nil
}

func (p *Provider) HydrateUsers(_ context.Context, users []rubix.User) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for i := range users {
		stored, ok := p.users[users[i].ID]
		if !ok {
			continue
		}
		users[i].Preferences = slices.Clone(stored.Preferences)
		users[i].Teams = p.userTeams(users[i].ID)
	}
	return nil
}

func (p *Provider) userTeams(userID string) []rubix.UserTeam {
	var memberships []rubix.UserTeam
	for _, t := range p.sortedTeams() {
		for _, m := range t.Members {
			if m.User == userID {
				memberships = append(memberships, m)
			}
		}
	}
	return memberships
}

func (p *Provider) sortedTeams() []rubix.Team {
	teams := make([]rubix.Team, 0, len(p.teams))
	for _, t := range p.teams {
		teams = append(teams, t)
	}
	slices.SortFunc(teams, func(a, b rubix.Team) int { return cmp.Compare(a.ID, b.ID) })
	return teams
}

func (p *Provider) GetUser(ctx context.Context, userID string) (*rubix.User, error) {
	p.mu.RLock()
	u, ok := p.users[userID]
	p.mu.RUnlock()
	if !ok {
		return nil, rubix.ErrNoResultFound
	}
	u.Roles = slices.Clone(u.Roles)
	users := []rubix.User{u}
	if err := p.HydrateUsers(ctx, users); err != nil {
		return nil, err
	}
	return &users[0], nil
}

func (p *Provider) CreateUser(_ context.Context, user rubix.User) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if _, exists := p.users[user.ID]; exists {
		return "", rubix.ErrDuplicate
	}
	for _, existing := range p.users {
		if existing.Username == user.Username {
			return "", rubix.ErrDuplicate
		}
	}
	user.Roles = slices.DeleteFunc(slices.Clone(user.Roles), func(r string) bool { return r == rubix.RoleUser })
	user.Preferences = slices.Clone(user.Preferences)
	user.Teams = nil
	p.users[user.ID] = user
	p.order = append(p.order, user.ID)
	return user.ID, nil
}

func (p *Provider) MutateUser(_ context.Context, userID string, options ...rubix.MutateUserOption) error {
	if len(options) == 0 {
		return nil
	}
	payload := rubix.MutateUserPayload{}
	for _, opt := range options {
		opt(&payload)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[userID]
	if !ok {
		return rubix.ErrNoResultFound
	}
	p.users[userID] = payload.Apply(u)
	return nil
}

func (p *Provider) GetTeam(_ context.Context, teamID string) (*rubix.Team, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.teams[teamID]
	if !ok {
		return nil, rubix.ErrNoResultFound
	}
	t.Members = slices.Clone(t.Members)
	return &t, nil
}

func (p *Provider) GetUserTeams(_ context.Context, userID string) ([]rubix.Team, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var teams []rubix.Team
	for _, t := range p.sortedTeams() {
		if t.HasMember(userID) {
			t.Members = slices.Clone(t.Members)
			teams = append(teams, t)
		}
	}
	return teams, nil
}

func (p *Provider) CreateTeam(_ context.Context, team rubix.Team) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if team.ID == "" {
		team.ID = uuid.NewString()
	}
	if _, exists := p.teams[team.ID]; exists {
		return "", rubix.ErrDuplicate
	}
	members := make([]rubix.UserTeam, 0, len(team.Members))
	for _, m := range team.Members {
		m.Team = team.ID
		members = append(members, m)
	}
	team.Members = members
	p.teams[team.ID] = team
	return team.ID, nil
}

func (p *Provider) MutateTeam(_ context.Context, teamID string, options ...rubix.MutateTeamOption) error {
	payload := rubix.MutateTeamPayload{}
	for _, opt := range options {
		opt(&payload)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.teams[teamID]
	if !ok {
		return rubix.ErrNoResultFound
	}
	if payload.Name != nil {
		t.Name = *payload.Name
	}
	members := slices.DeleteFunc(slices.Clone(t.Members), func(m rubix.UserTeam) bool {
		return slices.Contains(payload.UsersToRem, m.User)
	})
	for _, user := range slices.Sorted(maps.Keys(payload.UsersToAdd)) {
		if !slices.ContainsFunc(members, func(m rubix.UserTeam) bool { return m.User == user }) {
			members = append(members, rubix.UserTeam{User: user, Team: teamID, Level: payload.UsersToAdd[user]})
		}
	}
	for i, m := range members {
		if level, ok := payload.UsersLevel[m.User]; ok {
			members[i].Level = level
		}
	}
	t.Members = members
	p.teams[teamID] = t
	return nil
}

// AddReference records that a timesheet or invoice belongs to userID.
func (p *Provider) AddReference(table, recordID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refs[table] == nil {
		p.refs[table] = make(map[string]string)
	}
	p.refs[table][recordID] = userID
}

// References returns the record ids in table owned by userID.
func (p *Provider) References(table, userID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var ids []string
	for record, owner := range p.refs[table] {
		if owner == userID {
			ids = append(ids, record)
		}
	}
	slices.Sort(ids)
	return ids
}

func (p *Provider) DeleteUser(_ context.Context, deleteID, replacementID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.users[deleteID]; !ok {
		return fmt.Errorf("%w: %w", rubix.ErrTransactionFailure, rubix.ErrNoResultFound)
	}
	if replacementID != "" {
		if _, ok := p.users[replacementID]; !ok {
			return fmt.Errorf("%w: %w", rubix.ErrTransactionFailure, rubix.ErrNoResultFound)
		}
	}
	for _, records := range p.refs {
		for record, owner := range records {
			if owner != deleteID {
				continue
			}
			if replacementID == "" {
				delete(records, record)
			} else {
				records[record] = replacementID
			}
		}
	}

	delete(p.users, deleteID)
	p.order = slices.DeleteFunc(p.order, func(id string) bool { return id == deleteID })
	for id, t := range p.teams {
		t.Members = slices.DeleteFunc(t.Members, func(m rubix.UserTeam) bool { return m.User == deleteID })
		p.teams[id] = t
	}
	return nil
}
