// Package directory answers "which users may this principal see" and runs filtered,
// searched, sorted and paginated user queries inside that visibility scope.
package directory

import (
	"context"
	"fmt"

	"github.com/kubex/rubix-directory/criteria"
	"github.com/kubex/rubix-directory/rubix"
	"go.uber.org/zap"
)

// Store is the storage collaborator the directory runs against.
type Store interface {
	Count(ctx context.Context, c criteria.Criteria) (int, error)
	Find(ctx context.Context, c criteria.Criteria) ([]rubix.User, error)
	// HydrateUsers bulk loads preferences and team memberships for users, in place.
	HydrateUsers(ctx context.Context, users []rubix.User) error
	DeleteUser(ctx context.Context, deleteID, replacementID string) error
}

type ResultPage struct {
	Items      []rubix.User
	TotalCount int
	Page       int
	PageSize   int
}

// LastPage is the number of the final page, at least 1.
func (r ResultPage) LastPage() int {
	if r.TotalCount == 0 || r.PageSize == 0 {
		return 1
	}
	return (r.TotalCount + r.PageSize - 1) / r.PageSize
}

func (r ResultPage) HasNext() bool {
	return r.Page < r.LastPage()
}

type Service struct {
	store Store
	log   *zap.SugaredLogger
}

type Option func(*Service)

func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Service) { s.log = log.Named("directory") }
}

func NewService(store Store, options ...Option) *Service {
	s := &Service{store: store, log: zap.NewNop().Sugar()}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Count returns the number of users matching q, ignoring sort and pagination.
func (s *Service) Count(ctx context.Context, q Query) (int, error) {
	composed, err := Compose(q)
	if err != nil {
		return 0, err
	}
	return s.store.Count(ctx, composed.CountCriteria())
}

// Page returns one page of q in storage order along with the total match count.
func (s *Service) Page(ctx context.Context, q Query) (ResultPage, error) {
	composed, err := Compose(q)
	if err != nil {
		return ResultPage{}, err
	}

	total, err := s.store.Count(ctx, composed.CountCriteria())
	if err != nil {
		return ResultPage{}, err
	}

	items, err := s.find(ctx, composed.PageCriteria())
	if err != nil {
		return ResultPage{}, err
	}

	s.log.Debugw("directory page", "page", q.page, "pageSize", q.pageSize, "total", total, "items", len(items))
	return ResultPage{Items: items, TotalCount: total, Page: q.page, PageSize: q.pageSize}, nil
}

// All returns every user matching q, sorted, without pagination.
func (s *Service) All(ctx context.Context, q Query) ([]rubix.User, error) {
	composed, err := Compose(q)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, composed.AllCriteria())
}

func (s *Service) find(ctx context.Context, c criteria.Criteria) ([]rubix.User, error) {
	users, err := s.store.Find(ctx, c)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return users, nil
	}
	if err := s.store.HydrateUsers(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

// UserByID loads a single user with its preferences and teams.
func (s *Service) UserByID(ctx context.Context, id string) (*rubix.User, error) {
	return s.one(ctx, criteria.Equals{Field: criteria.FieldID, Value: id})
}

// UserByIdentifier loads a user by username or email.
func (s *Service) UserByIdentifier(ctx context.Context, identifier string) (*rubix.User, error) {
	return s.one(ctx, criteria.Or{
		criteria.Equals{Field: criteria.FieldUsername, Value: identifier},
		criteria.Equals{Field: criteria.FieldEmail, Value: identifier},
	})
}

func (s *Service) one(ctx context.Context, where criteria.Predicate) (*rubix.User, error) {
	users, err := s.find(ctx, criteria.Criteria{
		Where: where,
		Sort:  &criteria.Sort{Field: criteria.FieldID, Direction: criteria.Ascending},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, rubix.ErrNoResultFound
	}
	return &users[0], nil
}

// CountUsers counts every user, or only enabled or disabled ones when enabled is set.
func (s *Service) CountUsers(ctx context.Context, enabled *bool) (int, error) {
	c := criteria.Criteria{}
	if enabled != nil {
		c.Where = criteria.Equals{Field: criteria.FieldEnabled, Value: *enabled}
	}
	return s.store.Count(ctx, c)
}

// UsersWithRole returns every user holding role. RoleUser is held by everyone.
func (s *Service) UsersWithRole(ctx context.Context, role string) ([]rubix.User, error) {
	c := criteria.Criteria{Sort: &criteria.Sort{Field: criteria.FieldUsername, Direction: criteria.Ascending}}
	if role != rubix.RoleUser {
		c.Where = criteria.Contains{Field: criteria.FieldRoles, Value: role}
	}
	return s.find(ctx, c)
}

// Choices lists the enabled users principal may pick from, ordered by username.
// Users in include are listed even when disabled, users in ignore never are.
func (s *Service) Choices(ctx context.Context, principal *rubix.Principal, teams []rubix.Team, include, ignore []string) ([]rubix.User, error) {
	opts := []QueryOption{
		WithVisibleOnly(),
		WithInclude(include...),
		WithExclude(ignore...),
		WithScopeTeams(teams...),
	}
	if principal != nil {
		opts = append(opts, WithPrincipal(*principal))
	}
	return s.All(ctx, NewQuery(opts...))
}

// DeleteUser removes deleteID, first moving its timesheets and invoices to replacementID
// when one is given. Either everything commits or nothing does.
func (s *Service) DeleteUser(ctx context.Context, deleteID, replacementID string) error {
	if deleteID == "" {
		return fmt.Errorf("%w: user id is required", rubix.ErrInvalidQuery)
	}
	if deleteID == replacementID {
		return fmt.Errorf("%w: replacement must differ from the deleted user", rubix.ErrInvalidQuery)
	}
	if err := s.store.DeleteUser(ctx, deleteID, replacementID); err != nil {
		s.log.Errorw("delete user failed", "user", deleteID, "replacement", replacementID, "error", err)
		return err
	}
	s.log.Infow("user deleted", "user", deleteID, "replacement", replacementID)
	return nil
}
