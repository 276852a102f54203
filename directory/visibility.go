package directory

import (
	"slices"

	"github.com/kubex/rubix-directory/criteria"
	"github.com/kubex/rubix-directory/rubix"
)

// Scope is the set of user ids a principal may see. When IncludeAll is set the id fields are ignored.
type Scope struct {
	IncludeAll     bool
	AllowedUserIDs []string
	Self           string
}

// BuildScope computes the visibility scope of principal, widened by scopeTeams.
//
// A nil principal without scope teams sees everyone; internal queries run that way.
// Unrestricted principals see everyone. Everybody else sees themselves, the members of
// every team they lead, and the members of every requested scope team. Lead-derived and
// scope-derived ids are unioned, never intersected.
func BuildScope(principal *rubix.Principal, scopeTeams []rubix.Team) Scope {
	if principal == nil && len(scopeTeams) == 0 {
		return Scope{IncludeAll: true}
	}
	if principal != nil && principal.Unrestricted {
		return Scope{IncludeAll: true}
	}

	var led, self []string
	s := Scope{}
	if principal != nil {
		s.Self = principal.ID
		self = []string{principal.ID}
		if principal.TeamLead {
			led = memberUnion(ledBy(principal.Teams, principal.ID))
		}
	}
	s.AllowedUserIDs = union(led, memberUnion(scopeTeams), self)
	return s
}

// allows reports whether userID falls inside the scope.
func (s Scope) allows(userID string) bool {
	if s.IncludeAll {
		return true
	}
	if s.Self != "" && s.Self == userID {
		return true
	}
	_, found := slices.BinarySearch(s.AllowedUserIDs, userID)
	return found
}

// Predicate returns the ACL clause for the scope, or nil when everyone is visible.
func (s Scope) Predicate() criteria.Predicate {
	if s.IncludeAll {
		return nil
	}
	return criteria.In{Field: criteria.FieldID, Values: s.AllowedUserIDs}
}
