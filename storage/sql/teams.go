package sql

import (
	"context"
	"database/sql"
	"errors"
	"maps"
	"slices"

	"github.com/google/uuid"
	"github.com/kubex/rubix-directory/rubix"
	"golang.org/x/sync/errgroup"
)

func (p *Provider) GetTeam(ctx context.Context, teamID string) (*rubix.Team, error) {
	team := &rubix.Team{ID: teamID}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := p.primaryConnection.QueryRowContext(gctx, p.rebind("SELECT name FROM teams WHERE id = ?"), teamID).Scan(&team.Name)
		if errors.Is(err, sql.ErrNoRows) {
			return rubix.ErrNoResultFound
		}
		return err
	})
	g.Go(func() error {
		members, err := p.teamMembers(gctx, "team_id = ?", teamID)
		team.Members = members
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return team, nil
}

func (p *Provider) teamMembers(ctx context.Context, cond string, args ...any) ([]rubix.UserTeam, error) {
	rows, err := p.primaryConnection.QueryContext(ctx, p.rebind("SELECT team_id, user_id, level FROM team_members WHERE "+cond+" ORDER BY team_id, user_id"), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []rubix.UserTeam
	for rows.Next() {
		var m rubix.UserTeam
		var level string
		if err := rows.Scan(&m.Team, &m.User, &level); err != nil {
			return nil, err
		}
		m.Level = rubix.TeamLevel(level)
		members = append(members, m)
	}
	return members, rows.Err()
}

// GetUserTeams returns every team userID belongs to, with the full member list of each.
func (p *Provider) GetUserTeams(ctx context.Context, userID string) ([]rubix.Team, error) {
	rows, err := p.primaryConnection.QueryContext(ctx, p.rebind("SELECT t.id, t.name FROM teams AS t JOIN team_members AS tm ON tm.team_id = t.id WHERE tm.user_id = ? ORDER BY t.id"), userID)
	if err != nil {
		return nil, err
	}
	var teams []rubix.Team
	for rows.Next() {
		var t rubix.Team
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			rows.Close()
			return nil, err
		}
		teams = append(teams, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(teams) == 0 {
		return teams, nil
	}

	ids := make([]any, len(teams))
	for i, t := range teams {
		ids[i] = t.ID
	}
	members, err := p.teamMembers(ctx, "team_id IN ("+placeholders(len(ids))+")", ids...)
	if err != nil {
		return nil, err
	}
	for i := range teams {
		for _, m := range members {
			if m.Team == teams[i].ID {
				teams[i].Members = append(teams[i].Members, m)
			}
		}
	}
	return teams, nil
}

func (p *Provider) CreateTeam(ctx context.Context, team rubix.Team) (string, error) {
	if team.ID == "" {
		team.ID = uuid.NewString()
	}

	tx, err := p.primaryConnection.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, p.rebind("INSERT INTO teams (id, name) VALUES (?, ?)"), team.ID, team.Name)
	if p.isDuplicateConflict(err) {
		return "", rubix.ErrDuplicate
	}
	if err != nil {
		return "", err
	}
	for _, m := range team.Members {
		if _, err := tx.ExecContext(ctx, p.rebind("INSERT INTO team_members (team_id, user_id, level) VALUES (?, ?, ?)"), team.ID, m.User, string(m.Level)); err != nil {
			if p.isDuplicateConflict(err) {
				return "", rubix.ErrDuplicate
			}
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	p.update()
	return team.ID, nil
}

func (p *Provider) MutateTeam(ctx context.Context, teamID string, options ...rubix.MutateTeamOption) error {
	payload := rubix.MutateTeamPayload{}
	for _, opt := range options {
		opt(&payload)
	}

	tx, err := p.primaryConnection.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var name string
	err = tx.QueryRowContext(ctx, p.rebind("SELECT name FROM teams WHERE id = ?"), teamID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return rubix.ErrNoResultFound
	} else if err != nil {
		return err
	}

	if payload.Name != nil {
		if _, err := tx.ExecContext(ctx, p.rebind("UPDATE teams SET name = ? WHERE id = ?"), *payload.Name, teamID); err != nil {
			return err
		}
	}
	for _, user := range payload.UsersToRem {
		if _, err := tx.ExecContext(ctx, p.rebind("DELETE FROM team_members WHERE team_id = ? AND user_id = ?"), teamID, user); err != nil {
			return err
		}
	}
	for _, user := range slices.Sorted(maps.Keys(payload.UsersToAdd)) {
		var existing int
		if err := tx.QueryRowContext(ctx, p.rebind("SELECT COUNT(*) FROM team_members WHERE team_id = ? AND user_id = ?"), teamID, user).Scan(&existing); err != nil {
			return err
		}
		if existing > 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, p.rebind("INSERT INTO team_members (team_id, user_id, level) VALUES (?, ?, ?)"), teamID, user, string(payload.UsersToAdd[user])); err != nil {
			return err
		}
	}
	for _, user := range slices.Sorted(maps.Keys(payload.UsersLevel)) {
		if _, err := tx.ExecContext(ctx, p.rebind("UPDATE team_members SET level = ? WHERE team_id = ? AND user_id = ?"), string(payload.UsersLevel[user]), teamID, user); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	p.update()
	return nil
}
