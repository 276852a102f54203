package sql

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kubex/rubix-directory/criteria"
	"github.com/kubex/rubix-directory/directory"
	"github.com/kubex/rubix-directory/rubix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	tdir := t.TempDir()
	dbPath := filepath.Join(tdir, "rubix_it.db")
	p := &Provider{SqlLite: true, PrimaryDSN: "file:" + dbPath}
	if err := p.Initialize(); err != nil {
		t.Fatalf("init provider: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("sqlite file not created: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// seed creates users a..e and team t1, led by a with members b, c and d.
func seed(t *testing.T, p *Provider) {
	t.Helper()
	ctx := context.Background()
	registered := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	users := []rubix.User{
		{ID: "a", Username: "alead", Email: "alead@example.com", Alias: "Alice Lead", Enabled: true, Roles: []string{rubix.RoleTeamLead}, Registered: registered},
		{ID: "b", Username: "bsmith", Email: "bob@example.com", Alias: "Bob Smith", Title: "Engineer", Enabled: true,
			Preferences: []rubix.Preference{{Name: "department", Value: "Engineering"}}},
		{ID: "c", Username: "cjones", Email: "carol@example.com", Alias: "Carol", Enabled: false},
		{ID: "d", Username: "dmember", Email: "dan@example.com", Alias: "Dan", AccountNumber: "ACC-4", Enabled: true,
			Preferences: []rubix.Preference{{Name: "department", Value: "Quality"}}},
		{ID: "e", Username: "eadmin", Email: "erin@example.com", Alias: "Erin", Enabled: true, Roles: []string{rubix.RoleSuperAdmin}},
	}
	for _, u := range users {
		_, err := p.CreateUser(ctx, u)
		require.NoError(t, err, "create %s", u.ID)
	}
	_, err := p.CreateTeam(ctx, rubix.Team{ID: "t1", Name: "Team One", Members: []rubix.UserTeam{
		{User: "a", Level: rubix.TeamLevelOwner},
		{User: "b", Level: rubix.TeamLevelMember},
		{User: "c", Level: rubix.TeamLevelMember},
		{User: "d", Level: rubix.TeamLevelMember},
	}})
	require.NoError(t, err)
}

func ids(users []rubix.User) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}

func principal(t *testing.T, p *Provider, userID string) rubix.Principal {
	t.Helper()
	user, err := p.GetUser(context.Background(), userID)
	require.NoError(t, err)
	teams, err := p.GetUserTeams(context.Background(), userID)
	require.NoError(t, err)
	return rubix.PrincipalFromUser(*user, teams)
}

func TestIntegration_SQLite_Users(t *testing.T) {
	p := newTestProvider(t)
	seed(t, p)
	ctx := context.Background()

	a, err := p.GetUser(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "alead", a.Username)
	assert.Equal(t, []string{rubix.RoleTeamLead}, a.Roles)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), a.Registered)
	require.Len(t, a.Teams, 1)
	assert.Equal(t, rubix.TeamLevelOwner, a.Teams[0].Level)

	_, err = p.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, rubix.ErrNoResultFound)

	_, err = p.CreateUser(ctx, rubix.User{ID: "z", Username: "bsmith"})
	assert.ErrorIs(t, err, rubix.ErrDuplicate)

	generated, err := p.CreateUser(ctx, rubix.User{Username: "generated"})
	require.NoError(t, err)
	assert.NotEmpty(t, generated)

	require.NoError(t, p.MutateUser(ctx, "c",
		rubix.WithEnabled(true),
		rubix.WithRolesToAdd(rubix.RoleAdmin),
		rubix.WithPreference("department", "Support"),
	))
	c, err := p.GetUser(ctx, "c")
	require.NoError(t, err)
	assert.True(t, c.Enabled)
	assert.True(t, c.HasRole(rubix.RoleAdmin))
	assert.Equal(t, "Support", c.Preference("department"))

	assert.ErrorIs(t, p.MutateUser(ctx, "missing", rubix.WithEnabled(false)), rubix.ErrNoResultFound)
}

func TestIntegration_SQLite_Teams(t *testing.T) {
	p := newTestProvider(t)
	seed(t, p)
	ctx := context.Background()

	team, err := p.GetTeam(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Team One", team.Name)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, team.MemberIDs())
	assert.True(t, team.IsLead("a"))

	_, err = p.GetTeam(ctx, "nope")
	assert.ErrorIs(t, err, rubix.ErrNoResultFound)

	require.NoError(t, p.MutateTeam(ctx, "t1",
		rubix.WithTeamName("Renamed"),
		rubix.WithTeamUsersToRemove("c"),
		rubix.WithTeamUsersToAdd(rubix.TeamLevelMember, "e", "b"),
		rubix.WithTeamUsersLevel(rubix.TeamLevelManager, "d"),
	))
	team, err = p.GetTeam(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", team.Name)
	assert.ElementsMatch(t, []string{"a", "b", "d", "e"}, team.MemberIDs())
	assert.True(t, team.IsLead("d"))

	teams, err := p.GetUserTeams(ctx, "e")
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Len(t, teams[0].Members, 4)

	_, err = p.CreateTeam(ctx, rubix.Team{ID: "t1", Name: "dup"})
	assert.ErrorIs(t, err, rubix.ErrDuplicate)
}

func TestIntegration_SQLite_Visibility(t *testing.T) {
	p := newTestProvider(t)
	seed(t, p)
	ctx := context.Background()
	svc := directory.NewService(p)

	asA, err := svc.All(ctx, directory.NewQuery(directory.WithPrincipal(principal(t, p, "a"))))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(asA))

	asD, err := svc.All(ctx, directory.NewQuery(directory.WithPrincipal(principal(t, p, "d"))))
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, ids(asD))

	t1, err := p.GetTeam(ctx, "t1")
	require.NoError(t, err)
	scoped, err := svc.All(ctx, directory.NewQuery(directory.WithPrincipal(principal(t, p, "d")), directory.WithScopeTeams(*t1)))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(scoped))

	asE, err := svc.Count(ctx, directory.NewQuery(directory.WithPrincipal(principal(t, p, "e"))))
	require.NoError(t, err)
	assert.Equal(t, 5, asE)
}

func TestIntegration_SQLite_SearchAndFilters(t *testing.T) {
	p := newTestProvider(t)
	seed(t, p)
	ctx := context.Background()
	svc := directory.NewService(p)

	found, err := svc.All(ctx, directory.NewQuery(directory.WithSearchTerm("SMI")))
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(found))
	assert.Equal(t, "Engineering", found[0].Preference("department"))

	found, err = svc.All(ctx, directory.NewQuery(directory.WithSearchTerm("acc-4")))
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, ids(found))

	found, err = svc.All(ctx, directory.NewQuery(directory.WithSearchTerm("department:qual")))
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, ids(found))

	plain, err := svc.All(ctx, directory.NewQuery(directory.WithRole(rubix.RoleUser)))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, ids(plain))

	leads, err := svc.All(ctx, directory.NewQuery(directory.WithRole(rubix.RoleTeamLead)))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(leads))

	hidden, err := svc.All(ctx, directory.NewQuery(directory.WithHiddenOnly()))
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(hidden))

	visible, err := svc.All(ctx, directory.NewQuery(directory.WithVisibleOnly(), directory.WithInclude("c"), directory.WithExclude("b")))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "d", "e"}, ids(visible))

	desc, err := svc.All(ctx, directory.NewQuery(directory.WithSort(criteria.FieldAlias, criteria.Descending)))
	require.NoError(t, err)
	assert.Equal(t, []string{"e", "d", "c", "b", "a"}, ids(desc))

	enabled := true
	n, err := svc.CountUsers(ctx, &enabled)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	u, err := svc.UserByIdentifier(ctx, "dan@example.com")
	require.NoError(t, err)
	assert.Equal(t, "d", u.ID)
}

func TestIntegration_SQLite_SearchFoldsUnicode(t *testing.T) {
	p := newTestProvider(t)
	seed(t, p)
	ctx := context.Background()
	_, err := p.CreateUser(ctx, rubix.User{ID: "f", Username: "fmuller", Alias: "ÉLODIE Müller", Enabled: true,
		Preferences: []rubix.Preference{{Name: "city", Value: "MÜNCHEN"}}})
	require.NoError(t, err)
	svc := directory.NewService(p)

	for _, term := range []string{"élodie", "MÜLLER", "city:münchen"} {
		found, err := svc.All(ctx, directory.NewQuery(directory.WithSearchTerm(term)))
		require.NoError(t, err, term)
		assert.Equal(t, []string{"f"}, ids(found), term)
	}
}

func TestIntegration_SQLite_Pagination(t *testing.T) {
	p := newTestProvider(t)
	seed(t, p)
	ctx := context.Background()
	svc := directory.NewService(p)

	total, err := svc.Count(ctx, directory.NewQuery())
	require.NoError(t, err)

	var seen []string
	for page := 1; ; page++ {
		res, err := svc.Page(ctx, directory.NewQuery(directory.WithPage(page, 2)))
		require.NoError(t, err)
		assert.Equal(t, total, res.TotalCount)
		seen = append(seen, ids(res.Items)...)
		if !res.HasNext() {
			break
		}
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, seen)

	beyond, err := svc.Page(ctx, directory.NewQuery(directory.WithPage(9, 2)))
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
	assert.Equal(t, total, beyond.TotalCount)
}

func addOwned(t *testing.T, p *Provider, table, id, userID string) {
	t.Helper()
	var q string
	switch table {
	case "timesheets":
		q = "INSERT INTO timesheets (id, user_id, description) VALUES (?, ?, '')"
	case "invoices":
		q = "INSERT INTO invoices (id, user_id, number) VALUES (?, ?, '')"
	}
	_, err := p.primaryConnection.Exec(q, id, userID)
	require.NoError(t, err)
}

func ownedBy(t *testing.T, p *Provider, table, userID string) int {
	t.Helper()
	var n int
	require.NoError(t, p.primaryConnection.QueryRow("SELECT COUNT(*) FROM "+table+" WHERE user_id = ?", userID).Scan(&n))
	return n
}

func TestIntegration_SQLite_DeleteUser(t *testing.T) {
	p := newTestProvider(t)
	seed(t, p)
	ctx := context.Background()

	addOwned(t, p, "timesheets", "ts1", "b")
	addOwned(t, p, "timesheets", "ts2", "b")
	addOwned(t, p, "invoices", "inv1", "b")

	updates := 0
	require.NoError(t, p.AfterUpdate(func() { updates++ }))

	require.NoError(t, p.DeleteUser(ctx, "b", "a"))
	assert.Equal(t, 1, updates)
	assert.Equal(t, 0, ownedBy(t, p, "timesheets", "b"))
	assert.Equal(t, 2, ownedBy(t, p, "timesheets", "a"))
	assert.Equal(t, 1, ownedBy(t, p, "invoices", "a"))

	_, err := p.GetUser(ctx, "b")
	assert.ErrorIs(t, err, rubix.ErrNoResultFound)
	team, err := p.GetTeam(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, team.HasMember("b"))

	err = p.DeleteUser(ctx, "b", "a")
	assert.ErrorIs(t, err, rubix.ErrTransactionFailure)
	assert.ErrorIs(t, err, rubix.ErrNoResultFound)

	err = p.DeleteUser(ctx, "c", "ghost")
	assert.ErrorIs(t, err, rubix.ErrTransactionFailure)
	_, err = p.GetUser(ctx, "c")
	assert.NoError(t, err)

	addOwned(t, p, "invoices", "inv2", "d")
	require.NoError(t, p.DeleteUser(ctx, "d", ""))
	assert.Equal(t, 0, ownedBy(t, p, "invoices", "d"))
}

func TestIntegration_SQLite_DeleteUserRollsBack(t *testing.T) {
	p := newTestProvider(t)
	seed(t, p)
	ctx := context.Background()

	addOwned(t, p, "timesheets", "ts1", "b")
	_, err := p.primaryConnection.Exec("DROP TABLE invoices")
	require.NoError(t, err)

	err = p.DeleteUser(ctx, "b", "a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, rubix.ErrTransactionFailure))

	_, err = p.GetUser(ctx, "b")
	assert.NoError(t, err, "deleted user must survive a failed reassignment")
	assert.Equal(t, 1, ownedBy(t, p, "timesheets", "b"))
	assert.Equal(t, 0, ownedBy(t, p, "timesheets", "a"))
}
