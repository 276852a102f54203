package sql

import (
	"fmt"
	"math"
	"strings"

	"github.com/kubex/rubix-directory/criteria"
)

var columns = map[criteria.Field]string{
	criteria.FieldID:            "u.id",
	criteria.FieldUsername:      "u.username",
	criteria.FieldEmail:         "u.email",
	criteria.FieldAlias:         "u.alias",
	criteria.FieldTitle:         "u.title",
	criteria.FieldAccountNumber: "u.account_number",
	criteria.FieldEnabled:       "u.enabled",
	criteria.FieldRoles:         "u.roles",
	criteria.FieldRegistered:    "u.registered",
}

const likeEscape = "!"

// compileWhere renders p as a SQL condition with ? placeholders.
func compileWhere(p criteria.Predicate, dialect string) (string, []any, error) {
	c := &compiler{fold: "LOWER", foldTerm: strings.ToLower}
	if dialect == DialectSQLite {
		c.fold, c.foldTerm = sqliteFold, foldText
	}
	cond, err := c.compile(p)
	return cond, c.args, err
}

type compiler struct {
	args     []any
	fold     string
	foldTerm func(string) string
}

func (c *compiler) like(col, term string) string {
	return c.fold + "(" + col + ") LIKE " + c.bind(containsPattern(c.foldTerm(term))) + " ESCAPE '" + likeEscape + "'"
}

func (c *compiler) bind(v any) string {
	c.args = append(c.args, v)
	return "?"
}

func column(f criteria.Field) (string, error) {
	col, ok := columns[f]
	if !ok {
		return "", fmt.Errorf("unknown field %q", f)
	}
	return col, nil
}

func (c *compiler) compile(p criteria.Predicate) (string, error) {
	switch n := p.(type) {
	case nil:
		return "1 = 1", nil
	case criteria.Equals:
		col, err := column(n.Field)
		if err != nil {
			return "", err
		}
		return col + " = " + c.bind(n.Value), nil
	case criteria.Like:
		col, err := column(n.Field)
		if err != nil {
			return "", err
		}
		return c.like(col, n.Value), nil
	case criteria.In:
		return c.in(n.Field, n.Values, false)
	case criteria.NotIn:
		return c.in(n.Field, n.Values, true)
	case criteria.Contains:
		col, err := column(n.Field)
		if err != nil {
			return "", err
		}
		return col + " LIKE " + c.bind(containsPattern(`"`+n.Value+`"`)) + " ESCAPE '" + likeEscape + "'", nil
	case criteria.Empty:
		col, err := column(n.Field)
		if err != nil {
			return "", err
		}
		return "(" + col + " IS NULL OR " + col + " = '' OR " + col + " = '[]')", nil
	case criteria.HasPreference:
		name := c.bind(n.Name)
		return "EXISTS (SELECT 1 FROM user_preferences AS up WHERE up.user_id = u.id AND up.name = " + name +
			" AND " + c.like("up.value", n.Value) + ")", nil
	case criteria.And:
		return c.group([]criteria.Predicate(n), " AND ", "1 = 1")
	case criteria.Or:
		return c.group([]criteria.Predicate(n), " OR ", "1 = 0")
	}
	return "", fmt.Errorf("unsupported predicate %T", p)
}

func (c *compiler) in(f criteria.Field, values []string, negate bool) (string, error) {
	col, err := column(f)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		if negate {
			return "1 = 1", nil
		}
		return "1 = 0", nil
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = c.bind(v)
	}
	op := " IN ("
	if negate {
		op = " NOT IN ("
	}
	return col + op + strings.Join(placeholders, ",") + ")", nil
}

func (c *compiler) group(preds []criteria.Predicate, sep, empty string) (string, error) {
	if len(preds) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(preds))
	for _, p := range preds {
		part, err := c.compile(p)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func containsPattern(v string) string {
	r := strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")
	return "%" + r.Replace(v) + "%"
}

// compileTail renders ORDER BY and LIMIT/OFFSET.
func compileTail(c criteria.Criteria) (string, []any, error) {
	var tail string
	var args []any
	if c.Sort != nil {
		col, err := column(c.Sort.Field)
		if err != nil {
			return "", nil, err
		}
		dir := "ASC"
		if c.Sort.Direction == criteria.Descending {
			dir = "DESC"
		}
		tail += " ORDER BY " + col + " " + dir
		if col != "u.id" {
			tail += ", u.id ASC"
		}
	}
	if c.Limit > 0 || c.Offset > 0 {
		limit := c.Limit
		if limit <= 0 {
			limit = math.MaxInt32
		}
		tail += " LIMIT ? OFFSET ?"
		args = append(args, limit, c.Offset)
	}
	return tail, args, nil
}
