package main

import (
	"context"
	"fmt"

	"github.com/kubex/rubix-directory/criteria"
	"github.com/kubex/rubix-directory/directory"
	"github.com/kubex/rubix-directory/rubix"
	"github.com/kubex/rubix-directory/storage"
	"github.com/spf13/cobra"
)

// queryFlags are the filters shared by query and count.
type queryFlags struct {
	as          string
	search      string
	role        string
	sort        string
	desc        bool
	page        int
	pageSize    int
	scopeTeams  []string
	searchTeams []string
	include     []string
	exclude     []string
	visible     bool
	hidden      bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.as, "as", "", "Run the query as this user id")
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "Search term, name:value tokens match preferences")
	cmd.Flags().StringVar(&f.role, "role", "", "Only users holding this role")
	cmd.Flags().StringVar(&f.sort, "sort", string(criteria.FieldUsername), "Sort field")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "Sort descending")
	cmd.Flags().StringSliceVar(&f.scopeTeams, "scope-team", nil, "Widen visibility to members of these team ids")
	cmd.Flags().StringSliceVar(&f.searchTeams, "search-team", nil, "Only search members of these team ids")
	cmd.Flags().StringSliceVar(&f.include, "include", nil, "User ids always listed")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "User ids never listed")
	cmd.Flags().BoolVar(&f.visible, "visible", false, "Only enabled users")
	cmd.Flags().BoolVar(&f.hidden, "hidden", false, "Only disabled users")
}

func (f *queryFlags) build(ctx context.Context, a *app) (directory.Query, error) {
	direction := criteria.Ascending
	if f.desc {
		direction = criteria.Descending
	}
	pageSize := f.pageSize
	if pageSize == 0 {
		pageSize = a.cfg.Directory.PageSize
	}
	page := f.page
	if page == 0 {
		page = 1
	}

	opts := []directory.QueryOption{
		directory.WithSearchTerm(f.search),
		directory.WithRole(f.role),
		directory.WithSort(criteria.Field(f.sort), direction),
		directory.WithPage(page, pageSize),
		directory.WithInclude(f.include...),
		directory.WithExclude(f.exclude...),
	}
	if f.visible {
		opts = append(opts, directory.WithVisibleOnly())
	}
	if f.hidden {
		opts = append(opts, directory.WithHiddenOnly())
	}

	if f.as != "" {
		principal, err := storage.ResolvePrincipal(ctx, a.store, f.as)
		if err != nil {
			return directory.Query{}, fmt.Errorf("resolve principal %s: %w", f.as, err)
		}
		opts = append(opts, directory.WithPrincipal(principal))
	}

	scope, err := loadTeams(ctx, a.store, f.scopeTeams)
	if err != nil {
		return directory.Query{}, err
	}
	opts = append(opts, directory.WithScopeTeams(scope...))

	search, err := loadTeams(ctx, a.store, f.searchTeams)
	if err != nil {
		return directory.Query{}, err
	}
	opts = append(opts, directory.WithSearchTeams(search...))

	return directory.NewQuery(opts...), nil
}

func loadTeams(ctx context.Context, store storage.Provider, ids []string) ([]rubix.Team, error) {
	teams := make([]rubix.Team, 0, len(ids))
	for _, id := range ids {
		team, err := store.GetTeam(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load team %s: %w", id, err)
		}
		teams = append(teams, *team)
	}
	return teams, nil
}

func newQueryCmd(a *app) *cobra.Command {
	f := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "List one page of users visible to a principal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := f.build(cmd.Context(), a)
			if err != nil {
				return err
			}
			res, err := a.svc.Page(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printPage(cmd, res)
		},
	}
	f.register(cmd)
	cmd.Flags().IntVar(&f.page, "page", 1, "Page number, starting at 1")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, "Users per page (default from config)")
	return cmd
}

func newCountCmd(a *app) *cobra.Command {
	f := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count users visible to a principal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := f.build(cmd.Context(), a)
			if err != nil {
				return err
			}
			n, err := a.svc.Count(cmd.Context(), q)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]int{"count": n})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}
