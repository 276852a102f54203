package sql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kubex/rubix-directory/criteria"
	"github.com/kubex/rubix-directory/rubix"
	"golang.org/x/sync/errgroup"
)

const (
	mySQLDuplicateEntry    = 1062
	sqlLiteDuplicateEntry  = 1555
	postgresUniqueViolated = "23505"
)

const userColumns = "u.id, u.username, u.email, u.alias, u.title, u.account_number, u.enabled, u.roles, u.registered"

func (p *Provider) isDuplicateConflict(err error) bool {
	var me1 *mysql.MySQLError
	if errors.As(err, &me1) && (me1.Number == mySQLDuplicateEntry || me1.Number == sqlLiteDuplicateEntry) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == postgresUniqueViolated {
		return true
	}
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return true
	}
	return false
}

func placeholders(n int) string {
	return "?" + strings.Repeat(",?", n-1)
}

func (p *Provider) Count(ctx context.Context, c criteria.Criteria) (int, error) {
	where, args, err := compileWhere(c.Where, p.dialect())
	if err != nil {
		return 0, err
	}
	var total int
	err = p.primaryConnection.QueryRowContext(ctx, p.rebind("SELECT COUNT(DISTINCT u.id) FROM users AS u WHERE "+where), args...).Scan(&total)
	return total, err
}

func (p *Provider) Find(ctx context.Context, c criteria.Criteria) ([]rubix.User, error) {
	where, args, err := compileWhere(c.Where, p.dialect())
	if err != nil {
		return nil, err
	}
	tail, tailArgs, err := compileTail(c)
	if err != nil {
		return nil, err
	}

	q := "SELECT " + userColumns + " FROM users AS u WHERE " + where + tail
	rows, err := p.primaryConnection.QueryContext(ctx, p.rebind(q), append(args, tailArgs...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []rubix.User{}
	for rows.Next() {
		u, scanErr := scanUser(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(rows *sql.Rows) (rubix.User, error) {
	var u rubix.User
	roles := sql.NullString{}
	registered := sql.NullString{}
	if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Alias, &u.Title, &u.AccountNumber, &u.Enabled, &roles, &registered); err != nil {
		return u, err
	}
	if roles.Valid && roles.String != "" {
		if err := json.Unmarshal([]byte(roles.String), &u.Roles); err != nil {
			return u, fmt.Errorf("decode roles of %s: %w", u.ID, err)
		}
	}
	if registered.Valid && registered.String != "" {
		u.Registered = timeFromString(registered.String)
	}
	return u, nil
}

// HydrateUsers loads preferences and team memberships for users in two parallel bulk queries.
func (p *Provider) HydrateUsers(ctx context.Context, users []rubix.User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]any, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	prefs := map[string][]rubix.Preference{}
	teams := map[string][]rubix.UserTeam{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := p.primaryConnection.QueryContext(gctx, p.rebind("SELECT user_id, name, value FROM user_preferences WHERE user_id IN ("+placeholders(len(ids))+") ORDER BY user_id, name"), ids...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var userID string
			var pref rubix.Preference
			if err := rows.Scan(&userID, &pref.Name, &pref.Value); err != nil {
				return err
			}
			prefs[userID] = append(prefs[userID], pref)
		}
		return rows.Err()
	})
	g.Go(func() error {
		rows, err := p.primaryConnection.QueryContext(gctx, p.rebind("SELECT user_id, team_id, level FROM team_members WHERE user_id IN ("+placeholders(len(ids))+") ORDER BY user_id, team_id"), ids...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var ut rubix.UserTeam
			var level string
			if err := rows.Scan(&ut.User, &ut.Team, &level); err != nil {
				return err
			}
			ut.Level = rubix.TeamLevel(level)
			teams[ut.User] = append(teams[ut.User], ut)
		}
		return rows.Err()
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range users {
		users[i].Preferences = prefs[users[i].ID]
		users[i].Teams = teams[users[i].ID]
	}
	return nil
}

func (p *Provider) GetUser(ctx context.Context, userID string) (*rubix.User, error) {
	users, err := p.Find(ctx, criteria.Criteria{Where: criteria.Equals{Field: criteria.FieldID, Value: userID}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, rubix.ErrNoResultFound
	}
	if err := p.HydrateUsers(ctx, users); err != nil {
		return nil, err
	}
	return &users[0], nil
}

func encodeRoles(roles []string) (string, error) {
	stored := make([]string, 0, len(roles))
	for _, r := range roles {
		if r != rubix.RoleUser {
			stored = append(stored, r)
		}
	}
	b, err := json.Marshal(stored)
	return string(b), err
}

func (p *Provider) CreateUser(ctx context.Context, user rubix.User) (string, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	roles, err := encodeRoles(user.Roles)
	if err != nil {
		return "", err
	}

	tx, err := p.primaryConnection.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, p.rebind("INSERT INTO users (id, username, email, alias, title, account_number, enabled, roles, registered) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		user.ID, user.Username, user.Email, user.Alias, user.Title, user.AccountNumber, user.Enabled, roles, nullTime(user.Registered))
	if p.isDuplicateConflict(err) {
		return "", rubix.ErrDuplicate
	}
	if err != nil {
		return "", err
	}

	for _, pref := range user.Preferences {
		if _, err := tx.ExecContext(ctx, p.rebind("INSERT INTO user_preferences (user_id, name, value) VALUES (?, ?, ?)"), user.ID, pref.Name, pref.Value); err != nil {
			return "", fmt.Errorf("insert preference %s: %w", pref.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	p.update()
	return user.ID, nil
}

func (p *Provider) MutateUser(ctx context.Context, userID string, options ...rubix.MutateUserOption) error {
	if len(options) == 0 {
		return nil
	}
	payload := rubix.MutateUserPayload{}
	for _, opt := range options {
		opt(&payload)
	}

	current, err := p.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	mutated := payload.Apply(*current)
	roles, err := encodeRoles(mutated.Roles)
	if err != nil {
		return err
	}

	tx, err := p.primaryConnection.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, p.rebind("UPDATE users SET enabled = ?, roles = ? WHERE id = ?"), mutated.Enabled, roles, userID); err != nil {
		return err
	}
	for name, value := range payload.PreferencesSet {
		if _, err := tx.ExecContext(ctx, p.rebind("DELETE FROM user_preferences WHERE user_id = ? AND name = ?"), userID, name); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, p.rebind("INSERT INTO user_preferences (user_id, name, value) VALUES (?, ?, ?)"), userID, name, value); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	p.update()
	return nil
}

// DeleteUser moves the timesheets and invoices of deleteID onto replacementID, then removes
// deleteID, inside one transaction. Without a replacement the owned records are removed too.
func (p *Provider) DeleteUser(ctx context.Context, deleteID, replacementID string) error {
	tx, err := p.primaryConnection.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := p.deleteUser(ctx, tx, deleteID, replacementID); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			p.logger().Errorw("rollback failed", "user", deleteID, "error", rbErr)
		}
		return fmt.Errorf("%w: %w", rubix.ErrTransactionFailure, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", rubix.ErrTransactionFailure, err)
	}

	p.logger().Infow("user deleted", "user", deleteID, "replacement", replacementID)
	p.update()
	return nil
}

func (p *Provider) deleteUser(ctx context.Context, tx *sql.Tx, deleteID, replacementID string) error {
	if replacementID != "" {
		var found int
		if err := tx.QueryRowContext(ctx, p.rebind("SELECT COUNT(*) FROM users WHERE id = ?"), replacementID).Scan(&found); err != nil {
			return err
		}
		if found == 0 {
			return fmt.Errorf("replacement %s: %w", replacementID, rubix.ErrNoResultFound)
		}
	}

	for _, table := range []string{"timesheets", "invoices"} {
		var err error
		if replacementID != "" {
			_, err = tx.ExecContext(ctx, p.rebind("UPDATE "+table+" SET user_id = ? WHERE user_id = ?"), replacementID, deleteID)
		} else {
			_, err = tx.ExecContext(ctx, p.rebind("DELETE FROM "+table+" WHERE user_id = ?"), deleteID)
		}
		if err != nil {
			return fmt.Errorf("reassign %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx, p.rebind("DELETE FROM user_preferences WHERE user_id = ?"), deleteID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, p.rebind("DELETE FROM team_members WHERE user_id = ?"), deleteID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, p.rebind("DELETE FROM users WHERE id = ?"), deleteID)
	if err != nil {
		return err
	}
	if rows, err := res.RowsAffected(); err != nil {
		return err
	} else if rows == 0 {
		return rubix.ErrNoResultFound
	}
	return nil
}
