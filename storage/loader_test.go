package storage

import (
	"context"
	"testing"

	"github.com/kubex/rubix-directory/rubix"
	"github.com/kubex/rubix-directory/storage/datastore"
	"github.com/kubex/rubix-directory/storage/jsonfile"
	"github.com/kubex/rubix-directory/storage/memory"
	"github.com/kubex/rubix-directory/storage/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Provider
	}{
		{"memory", `{"provider":"memory"}`, &memory.Provider{}},
		{"jsonfile", `{"provider":"jsonfile","configuration":{"dataDirectory":"/tmp"}}`, &jsonfile.Provider{}},
		{"sql", `{"provider":"sql","configuration":{"sqlLite":true,"primaryDsn":"file:x.db"}}`, &sql.Provider{}},
		{"datastore", `{"provider":"datastore","configuration":{"projectId":"p"}}`, &datastore.Provider{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Load([]byte(tt.input))
			require.NoError(t, err)
			assert.IsType(t, tt.want, p)
		})
	}

	_, err := Load([]byte(`{"provider":"cassette"}`))
	assert.EqualError(t, err, "unable to load storage provider 'cassette'")

	_, err = Load([]byte(`not json`))
	assert.Error(t, err)
}

func TestResolvePrincipal(t *testing.T) {
	ctx := context.Background()
	p := memory.New()
	for _, u := range []rubix.User{{ID: "a", Username: "a"}, {ID: "b", Username: "b"}} {
		_, err := p.CreateUser(ctx, u)
		require.NoError(t, err)
	}
	_, err := p.CreateTeam(ctx, rubix.Team{ID: "t", Members: []rubix.UserTeam{
		{User: "a", Level: rubix.TeamLevelManager},
		{User: "b", Level: rubix.TeamLevelMember},
	}})
	require.NoError(t, err)

	lead, err := ResolvePrincipal(ctx, p, "a")
	require.NoError(t, err)
	assert.True(t, lead.TeamLead)
	assert.False(t, lead.Unrestricted)
	require.Len(t, lead.Teams, 1)

	member, err := ResolvePrincipal(ctx, p, "b")
	require.NoError(t, err)
	assert.False(t, member.TeamLead)

	_, err = ResolvePrincipal(ctx, p, "nobody")
	assert.ErrorIs(t, err, rubix.ErrNoResultFound)
}
