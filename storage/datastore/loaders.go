package datastore

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"maps"
	"slices"

	"cloud.google.com/go/datastore"
	"github.com/google/uuid"
	"github.com/kubex/rubix-directory/criteria"
	"github.com/kubex/rubix-directory/rubix"
	"golang.org/x/sync/errgroup"
)

const hydrateConcurrency = 8

func toUser(e userEntity) (rubix.User, error) {
	u := rubix.User{
		ID:            e.ID,
		Username:      e.Username,
		Email:         e.Email,
		Alias:         e.Alias,
		Title:         e.Title,
		AccountNumber: e.AccountNumber,
		Enabled:       e.Enabled,
		Roles:         e.Roles,
		Registered:    e.Registered,
	}
	if len(e.Preferences) > 0 {
		if err := json.Unmarshal(e.Preferences, &u.Preferences); err != nil {
			return u, err
		}
	}
	return u, nil
}

func fromUser(u rubix.User) (userEntity, error) {
	e := userEntity{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Alias:         u.Alias,
		Title:         u.Title,
		AccountNumber: u.AccountNumber,
		Enabled:       u.Enabled,
		Roles:         slices.DeleteFunc(slices.Clone(u.Roles), func(r string) bool { return r == rubix.RoleUser }),
		Registered:    u.Registered,
	}
	var err error
	e.Preferences, err = json.Marshal(u.Preferences)
	return e, err
}

// enabledFilter finds an enabled equality that every match must satisfy, so it can run server side.
func enabledFilter(p criteria.Predicate) (filter, bool) {
	candidates := []criteria.Predicate{p}
	if and, ok := p.(criteria.And); ok {
		candidates = and
	}
	for _, c := range candidates {
		if eq, ok := c.(criteria.Equals); ok && eq.Field == criteria.FieldEnabled {
			if v, ok := eq.Value.(bool); ok {
				return filter{field: "Enabled", value: v}, true
			}
		}
	}
	return filter{}, false
}

func (p *Provider) loadUsers(ctx context.Context, where criteria.Predicate) ([]rubix.User, error) {
	l := lookup{kind: kindUser}
	if f, ok := enabledFilter(where); ok {
		l.filters = append(l.filters, f)
	}

	var entities []userEntity
	if _, err := p.client.GetAll(ctx, l, &entities); err != nil {
		return nil, err
	}
	users := make([]rubix.User, 0, len(entities))
	for _, e := range entities {
		u, err := toUser(e)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (p *Provider) Count(ctx context.Context, c criteria.Criteria) (int, error) {
	users, err := p.loadUsers(ctx, c.Where)
	if err != nil {
		return 0, err
	}
	_, total := criteria.Apply(users, c.CountOnly())
	return total, nil
}

func (p *Provider) Find(ctx context.Context, c criteria.Criteria) ([]rubix.User, error) {
	users, err := p.loadUsers(ctx, c.Where)
	if err != nil {
		return nil, err
	}
	found, _ := criteria.Apply(users, c)
	return found, nil
}

// HydrateUsers attaches team memberships. Preferences are stored on the user entity and already loaded.
func (p *Provider) HydrateUsers(ctx context.Context, users []rubix.User) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hydrateConcurrency)
	for i := range users {
		g.Go(func() error {
			var members []teamMemberEntity
			l := lookup{kind: kindTeamMember, filters: []filter{{field: "User", value: users[i].ID}}}
			if _, err := p.client.GetAll(gctx, l, &members); err != nil {
				return err
			}
			users[i].Teams = nil
			for _, m := range members {
				users[i].Teams = append(users[i].Teams, rubix.UserTeam{User: m.User, Team: m.Team, Level: rubix.TeamLevel(m.Level)})
			}
			return nil
		})
	}
	return g.Wait()
}

func (p *Provider) GetUser(ctx context.Context, userID string) (*rubix.User, error) {
	e := userEntity{ID: userID}
	if readErr := p.client.Get(ctx, e.dsID(), &e); readErr != nil {
		if errors.Is(readErr, datastore.ErrNoSuchEntity) {
			return nil, rubix.ErrNoResultFound
		}
		return nil, readErr
	}
	u, err := toUser(e)
	if err != nil {
		return nil, err
	}
	users := []rubix.User{u}
	if err := p.HydrateUsers(ctx, users); err != nil {
		return nil, err
	}
	return &users[0], nil
}

func (p *Provider) CreateUser(ctx context.Context, user rubix.User) (string, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	existing := userEntity{ID: user.ID}
	err := p.client.Get(ctx, existing.dsID(), &existing)
	if err == nil {
		return "", rubix.ErrDuplicate
	} else if !errors.Is(err, datastore.ErrNoSuchEntity) {
		return "", err
	}

	keys, err := p.client.GetAll(ctx, lookup{kind: kindUser, filters: []filter{{field: "Username", value: user.Username}}, keysOnly: true, limit: 1}, nil)
	if err != nil {
		return "", err
	}
	if len(keys) > 0 {
		return "", rubix.ErrDuplicate
	}

	e, err := fromUser(user)
	if err != nil {
		return "", err
	}
	if _, err := p.client.Put(ctx, e.dsID(), &e); err != nil {
		return "", err
	}
	return user.ID, nil
}

func (p *Provider) MutateUser(ctx context.Context, userID string, options ...rubix.MutateUserOption) error {
	payload := rubix.MutateUserPayload{}
	for _, opt := range options {
		opt(&payload)
	}

	e := userEntity{ID: userID}
	if err := p.client.Get(ctx, e.dsID(), &e); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return rubix.ErrNoResultFound
		}
		return err
	}
	u, err := toUser(e)
	if err != nil {
		return err
	}
	updated, err := fromUser(payload.Apply(u))
	if err != nil {
		return err
	}
	_, err = p.client.Put(ctx, updated.dsID(), &updated)
	return err
}

func (p *Provider) GetTeam(ctx context.Context, teamID string) (*rubix.Team, error) {
	t := teamEntity{ID: teamID}
	if err := p.client.Get(ctx, t.dsID(), &t); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, rubix.ErrNoResultFound
		}
		return nil, err
	}

	var members []teamMemberEntity
	if _, err := p.client.GetAll(ctx, lookup{kind: kindTeamMember, ancestor: t.dsID()}, &members); err != nil {
		return nil, err
	}
	team := &rubix.Team{ID: t.ID, Name: t.Name}
	for _, m := range members {
		team.Members = append(team.Members, rubix.UserTeam{User: m.User, Team: m.Team, Level: rubix.TeamLevel(m.Level)})
	}
	return team, nil
}

func (p *Provider) GetUserTeams(ctx context.Context, userID string) ([]rubix.Team, error) {
	keys, err := p.client.GetAll(ctx, lookup{kind: kindTeamMember, filters: []filter{{field: "User", value: userID}}, keysOnly: true}, nil)
	if err != nil {
		return nil, err
	}

	teams := []rubix.Team{}
	for _, key := range keys {
		if key.Parent == nil {
			continue
		}
		team, err := p.GetTeam(ctx, key.Parent.Name)
		if err != nil {
			return nil, err
		}
		teams = append(teams, *team)
	}
	slices.SortFunc(teams, func(a, b rubix.Team) int { return cmp.Compare(a.ID, b.ID) })
	return teams, nil
}

func (p *Provider) CreateTeam(ctx context.Context, team rubix.Team) (string, error) {
	if team.ID == "" {
		team.ID = uuid.NewString()
	}
	t := teamEntity{ID: team.ID, Name: team.Name}
	existing := teamEntity{}
	if err := p.client.Get(ctx, t.dsID(), &existing); err == nil {
		return "", rubix.ErrDuplicate
	} else if !errors.Is(err, datastore.ErrNoSuchEntity) {
		return "", err
	}

	if _, err := p.client.Put(ctx, t.dsID(), &t); err != nil {
		return "", err
	}
	for _, m := range team.Members {
		if err := p.putMember(ctx, team.ID, m.User, m.Level); err != nil {
			return "", err
		}
	}
	return team.ID, nil
}

func (p *Provider) putMember(ctx context.Context, teamID, userID string, level rubix.TeamLevel) error {
	mem := &teamMemberEntity{Team: teamID, User: userID, Level: string(level)}
	_, err := p.client.Put(ctx, mem.dsID(), mem)
	return err
}

func (p *Provider) MutateTeam(ctx context.Context, teamID string, options ...rubix.MutateTeamOption) error {
	payload := rubix.MutateTeamPayload{}
	for _, opt := range options {
		opt(&payload)
	}

	team, err := p.GetTeam(ctx, teamID)
	if err != nil {
		return err
	}

	if payload.Name != nil {
		t := teamEntity{ID: teamID, Name: *payload.Name}
		if _, err := p.client.Put(ctx, t.dsID(), &t); err != nil {
			return err
		}
	}
	members := map[string]bool{}
	for _, m := range team.Members {
		members[m.User] = true
	}
	for _, user := range payload.UsersToRem {
		if err := p.client.Delete(ctx, teamMemberEntity{Team: teamID, User: user}.dsID()); err != nil {
			return err
		}
		delete(members, user)
	}
	for _, user := range slices.Sorted(maps.Keys(payload.UsersToAdd)) {
		if members[user] {
			continue
		}
		if err := p.putMember(ctx, teamID, user, payload.UsersToAdd[user]); err != nil {
			return err
		}
		members[user] = true
	}
	for _, user := range slices.Sorted(maps.Keys(payload.UsersLevel)) {
		if !members[user] {
			continue
		}
		if err := p.putMember(ctx, teamID, user, payload.UsersLevel[user]); err != nil {
			return err
		}
	}
	return nil
}

// DeleteUser is not offered: timesheets and invoices do not live in Datastore, so the
// reassignment cannot share a transaction with the removal.
func (p *Provider) DeleteUser(_ context.Context, deleteID, _ string) error {
	p.logger().Warnw("delete user not supported", "user", deleteID)
	return rubix.ErrNotSupported
}
