package storage

import (
	"context"

	"github.com/kubex/rubix-directory/directory"
	"github.com/kubex/rubix-directory/rubix"
)

type Provider interface {
	directory.Store

	GetUser(ctx context.Context, userID string) (*rubix.User, error)
	CreateUser(ctx context.Context, user rubix.User) (string, error)
	MutateUser(ctx context.Context, userID string, options ...rubix.MutateUserOption) error

	GetTeam(ctx context.Context, teamID string) (*rubix.Team, error)
	GetUserTeams(ctx context.Context, userID string) ([]rubix.Team, error)
	CreateTeam(ctx context.Context, team rubix.Team) (string, error)
	MutateTeam(ctx context.Context, teamID string, options ...rubix.MutateTeamOption) error

	Connect() error
	Close() error
}

// ResolvePrincipal loads userID and its teams and derives the principal queries run as.
func ResolvePrincipal(ctx context.Context, p Provider, userID string) (rubix.Principal, error) {
	user, err := p.GetUser(ctx, userID)
	if err != nil {
		return rubix.Principal{}, err
	}
	teams, err := p.GetUserTeams(ctx, userID)
	if err != nil {
		return rubix.Principal{}, err
	}
	return rubix.PrincipalFromUser(*user, teams), nil
}
