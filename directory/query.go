package directory

import (
	"maps"
	"strings"

	"github.com/kubex/rubix-directory/criteria"
	"github.com/kubex/rubix-directory/rubix"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Query describes one directory request. Build it with NewQuery; it is not modified afterwards.
type Query struct {
	principal     *rubix.Principal
	searchTerm    string
	searchFields  map[string]string
	role          string
	sortField     criteria.Field
	sortDirection criteria.Direction
	page          int
	pageSize      int
	include       []string
	exclude       []string
	scopeTeams    []rubix.Team
	searchTeams   []rubix.Team
	visibleOnly   bool
	hiddenOnly    bool
}

type QueryOption func(*Query)

func NewQuery(options ...QueryOption) Query {
	q := Query{
		sortField:     criteria.FieldUsername,
		sortDirection: criteria.Ascending,
		page:          1,
		pageSize:      DefaultPageSize,
	}
	for _, opt := range options {
		opt(&q)
	}
	return q
}

func (q Query) Page() int     { return q.page }
func (q Query) PageSize() int { return q.pageSize }

// WithPrincipal runs the query on behalf of p. Without a principal the query is internal.
func WithPrincipal(p rubix.Principal) QueryOption {
	return func(q *Query) { q.principal = &p }
}

// WithSearchTerm sets free text. Tokens shaped name:value become preference matches.
func WithSearchTerm(term string) QueryOption {
	return func(q *Query) {
		text, fields := parseSearchTerm(term)
		q.searchTerm = text
		if len(fields) > 0 {
			if q.searchFields == nil {
				q.searchFields = make(map[string]string)
			}
			maps.Copy(q.searchFields, fields)
		}
	}
}

// WithSearchField matches users whose preference name contains value.
func WithSearchField(name, value string) QueryOption {
	return func(q *Query) {
		if q.searchFields == nil {
			q.searchFields = make(map[string]string)
		}
		q.searchFields[name] = value
	}
}

func WithRole(role string) QueryOption {
	return func(q *Query) { q.role = role }
}

func WithSort(field criteria.Field, direction criteria.Direction) QueryOption {
	return func(q *Query) {
		q.sortField = field
		q.sortDirection = direction
	}
}

func WithPage(page, pageSize int) QueryOption {
	return func(q *Query) {
		q.page = page
		q.pageSize = pageSize
	}
}

// WithInclude keeps the given users even when the visibility mode would drop them.
func WithInclude(userIDs ...string) QueryOption {
	return func(q *Query) { q.include = append(q.include, userIDs...) }
}

func WithExclude(userIDs ...string) QueryOption {
	return func(q *Query) { q.exclude = append(q.exclude, userIDs...) }
}

// WithScopeTeams widens the principal's visibility to every member of teams.
func WithScopeTeams(teams ...rubix.Team) QueryOption {
	return func(q *Query) { q.scopeTeams = append(q.scopeTeams, teams...) }
}

// WithSearchTeams restricts results to members of teams.
func WithSearchTeams(teams ...rubix.Team) QueryOption {
	return func(q *Query) { q.searchTeams = append(q.searchTeams, teams...) }
}

func WithVisibleOnly() QueryOption {
	return func(q *Query) { q.visibleOnly = true }
}

func WithHiddenOnly() QueryOption {
	return func(q *Query) { q.hiddenOnly = true }
}

func parseSearchTerm(raw string) (string, map[string]string) {
	var words []string
	fields := map[string]string{}
	for _, token := range strings.Fields(raw) {
		name, value, ok := strings.Cut(token, ":")
		if ok && name != "" && value != "" {
			fields[name] = value
			continue
		}
		words = append(words, token)
	}
	return strings.Join(words, " "), fields
}
