package sql

import (
	"testing"

	"github.com/kubex/rubix-directory/criteria"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileWhere(t *testing.T) {
	tests := []struct {
		name string
		pred criteria.Predicate
		cond string
		args []any
	}{
		{"nil", nil, "1 = 1", nil},
		{"equals", criteria.Equals{Field: criteria.FieldEnabled, Value: true}, "u.enabled = ?", []any{true}},
		{"like escapes wildcards", criteria.Like{Field: criteria.FieldUsername, Value: "A_b%"},
			"LOWER(u.username) LIKE ? ESCAPE '!'", []any{"%a!_b!%%"}},
		{"in", criteria.In{Field: criteria.FieldID, Values: []string{"a", "b"}}, "u.id IN (?,?)", []any{"a", "b"}},
		{"empty in", criteria.In{Field: criteria.FieldID}, "1 = 0", nil},
		{"empty not in", criteria.NotIn{Field: criteria.FieldID}, "1 = 1", nil},
		{"not in", criteria.NotIn{Field: criteria.FieldID, Values: []string{"x"}}, "u.id NOT IN (?)", []any{"x"}},
		{"contains", criteria.Contains{Field: criteria.FieldRoles, Value: "ROLE_ADMIN"},
			"u.roles LIKE ? ESCAPE '!'", []any{`%"ROLE!_ADMIN"%`}},
		{"empty", criteria.Empty{Field: criteria.FieldRoles}, "(u.roles IS NULL OR u.roles = '' OR u.roles = '[]')", nil},
		{"preference", criteria.HasPreference{Name: "department", Value: "Eng"},
			"EXISTS (SELECT 1 FROM user_preferences AS up WHERE up.user_id = u.id AND up.name = ? AND LOWER(up.value) LIKE ? ESCAPE '!')",
			[]any{"department", "%eng%"}},
		{"and of or", criteria.And{
			criteria.Equals{Field: criteria.FieldEnabled, Value: false},
			criteria.Or{criteria.Contains{Field: criteria.FieldRoles, Value: "X"}, criteria.Empty{Field: criteria.FieldRoles}},
		}, "(u.enabled = ? AND (u.roles LIKE ? ESCAPE '!' OR (u.roles IS NULL OR u.roles = '' OR u.roles = '[]')))",
			[]any{false, `%"X"%`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, args, err := compileWhere(tt.pred, DialectMySQL)
			require.NoError(t, err)
			assert.Equal(t, tt.cond, cond)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestCompileWhereSQLiteFolds(t *testing.T) {
	cond, args, err := compileWhere(criteria.Or{
		criteria.Like{Field: criteria.FieldAlias, Value: "ÉLODIE"},
		criteria.HasPreference{Name: "city", Value: "MÜNCHEN"},
	}, DialectSQLite)
	require.NoError(t, err)
	assert.Equal(t, "(rubix_fold(u.alias) LIKE ? ESCAPE '!' OR "+
		"EXISTS (SELECT 1 FROM user_preferences AS up WHERE up.user_id = u.id AND up.name = ? AND rubix_fold(up.value) LIKE ? ESCAPE '!'))", cond)
	assert.Equal(t, []any{"%élodie%", "city", "%münchen%"}, args)
}

func TestCompileWhereUnknownField(t *testing.T) {
	_, _, err := compileWhere(criteria.Equals{Field: "password", Value: "x"}, DialectMySQL)
	assert.Error(t, err)
}

func TestCompileTail(t *testing.T) {
	tail, args, err := compileTail(criteria.Criteria{
		Sort:   &criteria.Sort{Field: criteria.FieldAlias, Direction: criteria.Descending},
		Offset: 20,
		Limit:  10,
	})
	require.NoError(t, err)
	assert.Equal(t, " ORDER BY u.alias DESC, u.id ASC LIMIT ? OFFSET ?", tail)
	assert.Equal(t, []any{10, 20}, args)

	tail, args, err = compileTail(criteria.Criteria{Sort: &criteria.Sort{Field: criteria.FieldID}})
	require.NoError(t, err)
	assert.Equal(t, " ORDER BY u.id ASC", tail)
	assert.Empty(t, args)
}

func TestRebind(t *testing.T) {
	pg := &Provider{Dialect: DialectPostgres}
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b IN ($2,$3)", pg.rebind("SELECT 1 WHERE a = ? AND b IN (?,?)"))

	lite := &Provider{SqlLite: true}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}
