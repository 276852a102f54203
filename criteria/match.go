package criteria

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/kubex/rubix-directory/rubix"
	"golang.org/x/text/cases"
)

// Match evaluates p against a single user. A nil predicate matches.
func Match(p Predicate, u rubix.User) bool {
	return matcher{fold: cases.Fold()}.match(p, u)
}

type matcher struct {
	fold cases.Caser
}

func (m matcher) match(p Predicate, u rubix.User) bool {
	switch n := p.(type) {
	case nil:
		return true
	case Equals:
		if n.Field == FieldEnabled {
			want, ok := n.Value.(bool)
			return ok && u.Enabled == want
		}
		return textValue(n.Field, u) == fmt.Sprint(n.Value)
	case Like:
		return strings.Contains(m.fold.String(textValue(n.Field, u)), m.fold.String(n.Value))
	case In:
		return slices.Contains(n.Values, textValue(n.Field, u))
	case NotIn:
		return !slices.Contains(n.Values, textValue(n.Field, u))
	case Contains:
		return n.Field == FieldRoles && slices.Contains(u.Roles, n.Value)
	case Empty:
		return n.Field == FieldRoles && len(u.Roles) == 0
	case HasPreference:
		for _, pref := range u.Preferences {
			if pref.Name == n.Name && strings.Contains(m.fold.String(pref.Value), m.fold.String(n.Value)) {
				return true
			}
		}
		return false
	case And:
		for _, c := range n {
			if !m.match(c, u) {
				return false
			}
		}
		return true
	case Or:
		for _, c := range n {
			if m.match(c, u) {
				return true
			}
		}
		return false
	}
	return false
}

func textValue(f Field, u rubix.User) string {
	switch f {
	case FieldID:
		return u.ID
	case FieldUsername:
		return u.Username
	case FieldEmail:
		return u.Email
	case FieldAlias:
		return u.Alias
	case FieldTitle:
		return u.Title
	case FieldAccountNumber:
		return u.AccountNumber
	case FieldRoles:
		return strings.Join(u.Roles, ",")
	case FieldEnabled:
		return fmt.Sprint(u.Enabled)
	case FieldRegistered:
		return u.Registered.UTC().Format("2006-01-02 15:04:05")
	}
	return ""
}

// Compare orders two users by field, falling back to id so the order is total.
func Compare(s Sort, a, b rubix.User) int {
	var c int
	switch s.Field {
	case FieldEnabled:
		c = compareBool(a.Enabled, b.Enabled)
	case FieldRegistered:
		c = a.Registered.Compare(b.Registered)
	default:
		c = cmp.Compare(textValue(s.Field, a), textValue(s.Field, b))
	}
	if s.Direction == Descending {
		c = -c
	}
	if c == 0 {
		c = cmp.Compare(a.ID, b.ID)
	}
	return c
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

// Apply filters, sorts and slices users in memory. It returns the page and the unpaginated match count.
func Apply(users []rubix.User, c Criteria) ([]rubix.User, int) {
	m := matcher{fold: cases.Fold()}
	matched := make([]rubix.User, 0, len(users))
	for _, u := range users {
		if m.match(c.Where, u) {
			matched = append(matched, u)
		}
	}
	total := len(matched)

	if c.Sort != nil {
		slices.SortStableFunc(matched, func(a, b rubix.User) int { return Compare(*c.Sort, a, b) })
	}

	if c.Offset > 0 {
		if c.Offset >= len(matched) {
			return []rubix.User{}, total
		}
		matched = matched[c.Offset:]
	}
	if c.Limit > 0 && c.Limit < len(matched) {
		matched = matched[:c.Limit]
	}
	return matched, total
}
