package directory

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/kubex/rubix-directory/criteria"
	"github.com/kubex/rubix-directory/rubix"
)

var sortable = []criteria.Field{
	criteria.FieldID,
	criteria.FieldUsername,
	criteria.FieldAlias,
	criteria.FieldTitle,
	criteria.FieldEmail,
	criteria.FieldAccountNumber,
	criteria.FieldEnabled,
	criteria.FieldRegistered,
}

var searchable = []criteria.Field{
	criteria.FieldAlias,
	criteria.FieldTitle,
	criteria.FieldAccountNumber,
	criteria.FieldEmail,
	criteria.FieldUsername,
}

// Composed is a validated query ready for execution.
type Composed struct {
	where    criteria.Predicate
	sort     criteria.Sort
	page     int
	pageSize int
}

// Compose validates q and merges every active filter into a single predicate.
func Compose(q Query) (Composed, error) {
	if !slices.Contains(sortable, q.sortField) {
		return Composed{}, fmt.Errorf("%w: %q", rubix.ErrInvalidSortField, q.sortField)
	}
	if q.sortDirection != criteria.Ascending && q.sortDirection != criteria.Descending {
		return Composed{}, fmt.Errorf("%w: sort direction %q", rubix.ErrInvalidQuery, q.sortDirection)
	}
	if q.visibleOnly && q.hiddenOnly {
		return Composed{}, fmt.Errorf("%w: visible-only and hidden-only are mutually exclusive", rubix.ErrInvalidQuery)
	}
	if q.pageSize < 1 || q.pageSize > MaxPageSize {
		return Composed{}, fmt.Errorf("%w: page size %d outside [1, %d]", rubix.ErrInvalidQuery, q.pageSize, MaxPageSize)
	}
	if q.page < 1 {
		return Composed{}, fmt.Errorf("%w: page %d", rubix.ErrInvalidQuery, q.page)
	}

	where := criteria.AllOf(
		BuildScope(q.principal, q.scopeTeams).Predicate(),
		searchTeamClause(q.searchTeams),
		excludeClause(q.exclude),
		visibilityModeClause(q),
		roleClause(q.role),
		searchClause(q.searchTerm, q.searchFields),
	)

	return Composed{
		where:    where,
		sort:     criteria.Sort{Field: q.sortField, Direction: q.sortDirection},
		page:     q.page,
		pageSize: q.pageSize,
	}, nil
}

// Where exposes the merged predicate, nil when nothing filters.
func (c Composed) Where() criteria.Predicate { return c.where }

func (c Composed) PageCriteria() criteria.Criteria {
	s := c.sort
	return criteria.Criteria{Where: c.where, Sort: &s, Offset: c.offset(), Limit: c.pageSize}
}

// offset saturates at math.MaxInt so huge page numbers stay past the last page.
func (c Composed) offset() int {
	if c.page-1 > math.MaxInt/c.pageSize {
		return math.MaxInt
	}
	return (c.page - 1) * c.pageSize
}

func (c Composed) AllCriteria() criteria.Criteria {
	s := c.sort
	return criteria.Criteria{Where: c.where, Sort: &s}
}

func (c Composed) CountCriteria() criteria.Criteria {
	return criteria.Criteria{Where: c.where}
}

func searchTeamClause(teams []rubix.Team) criteria.Predicate {
	if len(teams) == 0 {
		return nil
	}
	return criteria.In{Field: criteria.FieldID, Values: memberUnion(teams)}
}

func excludeClause(ids []string) criteria.Predicate {
	if len(ids) == 0 {
		return nil
	}
	return criteria.NotIn{Field: criteria.FieldID, Values: union(ids)}
}

func visibilityModeClause(q Query) criteria.Predicate {
	var mode criteria.Predicate
	switch {
	case q.visibleOnly:
		mode = criteria.Equals{Field: criteria.FieldEnabled, Value: true}
	case q.hiddenOnly:
		mode = criteria.Equals{Field: criteria.FieldEnabled, Value: false}
	default:
		return nil
	}
	if len(q.include) == 0 {
		return mode
	}
	return criteria.AnyOf(mode, criteria.In{Field: criteria.FieldID, Values: union(q.include)})
}

func roleClause(role string) criteria.Predicate {
	if role == "" {
		return nil
	}
	contains := criteria.Contains{Field: criteria.FieldRoles, Value: role}
	if role == rubix.RoleUser {
		return criteria.AnyOf(contains, criteria.Empty{Field: criteria.FieldRoles})
	}
	return contains
}

func searchClause(term string, fields map[string]string) criteria.Predicate {
	var clauses []criteria.Predicate
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		clauses = append(clauses, criteria.HasPreference{Name: name, Value: fields[name]})
	}
	if term != "" {
		var likes []criteria.Predicate
		for _, f := range searchable {
			likes = append(likes, criteria.Like{Field: f, Value: term})
		}
		clauses = append(clauses, criteria.AnyOf(likes...))
	}
	return criteria.AllOf(clauses...)
}
