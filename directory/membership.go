package directory

import (
	"slices"

	"github.com/kubex/rubix-directory/rubix"
)

// MembersOf returns the member ids of team. A team without members yields an empty set.
func MembersOf(team rubix.Team) []string {
	return team.MemberIDs()
}

// IsLead reports whether userID leads team.
func IsLead(team rubix.Team, userID string) bool {
	return team.IsLead(userID)
}

// memberUnion is the sorted, de-duplicated union of the member ids of teams.
func memberUnion(teams []rubix.Team) []string {
	var ids []string
	for _, t := range teams {
		ids = append(ids, MembersOf(t)...)
	}
	return union(ids)
}

// ledBy keeps the teams userID is recorded as lead of.
func ledBy(teams []rubix.Team, userID string) []rubix.Team {
	return slices.DeleteFunc(slices.Clone(teams), func(t rubix.Team) bool { return !IsLead(t, userID) })
}

func union(lists ...[]string) []string {
	var all []string
	for _, l := range lists {
		all = append(all, l...)
	}
	slices.Sort(all)
	return slices.Compact(all)
}
