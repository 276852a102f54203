// Package criteria holds the storage-neutral predicate tree used to describe user queries.
// Storage providers compile it into their native query form, or evaluate it in memory with Match.
package criteria

type Field string

const (
	FieldID            Field = "id"
	FieldUsername      Field = "username"
	FieldEmail         Field = "email"
	FieldAlias         Field = "alias"
	FieldTitle         Field = "title"
	FieldAccountNumber Field = "accountNumber"
	FieldEnabled       Field = "enabled"
	FieldRoles         Field = "roles"
	FieldRegistered    Field = "registered"
)

// Predicate is one node of the tree. The concrete node types are the only implementations.
type Predicate interface {
	predicate()
}

// Equals matches a field against a single value.
type Equals struct {
	Field Field
	Value any
}

// Like matches a case-insensitive substring of a text field.
type Like struct {
	Field Field
	Value string
}

// In matches when the field value is one of Values.
type In struct {
	Field  Field
	Values []string
}

// NotIn matches when the field value is none of Values.
type NotIn struct {
	Field  Field
	Values []string
}

// Contains matches list fields (roles) holding Value.
type Contains struct {
	Field Field
	Value string
}

// Empty matches list fields with no entries.
type Empty struct {
	Field Field
}

// HasPreference matches users with a preference Name whose value contains Value.
type HasPreference struct {
	Name  string
	Value string
}

type And []Predicate

type Or []Predicate

func (Equals) predicate()        {}
func (Like) predicate()          {}
func (In) predicate()            {}
func (NotIn) predicate()         {}
func (Contains) predicate()      {}
func (Empty) predicate()         {}
func (HasPreference) predicate() {}
func (And) predicate()           {}
func (Or) predicate()            {}

// AllOf joins predicates with AND, dropping nil entries. It returns nil when nothing remains.
func AllOf(preds ...Predicate) Predicate {
	return join(preds, func(p []Predicate) Predicate { return And(p) })
}

// AnyOf joins predicates with OR, dropping nil entries. It returns nil when nothing remains.
func AnyOf(preds ...Predicate) Predicate {
	return join(preds, func(p []Predicate) Predicate { return Or(p) })
}

func join(preds []Predicate, wrap func([]Predicate) Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return wrap(kept)
}

type Direction string

const (
	Ascending  Direction = "ASC"
	Descending Direction = "DESC"
)

type Sort struct {
	Field     Field
	Direction Direction
}

// Criteria is a complete request against a user collection. A nil Where matches everything,
// a zero Limit means no limit.
type Criteria struct {
	Where  Predicate
	Sort   *Sort
	Offset int
	Limit  int
}

// CountOnly strips ordering and pagination.
func (c Criteria) CountOnly() Criteria {
	return Criteria{Where: c.Where}
}
