package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/phoenixfitness/phoenix-stack/auth/pkg/tokens"
	"github.com/phoenixfitness/phoenix-stack/cli/pkg/output"
)

func newUsersCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "Studio member administration",
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all members (admin)",
		Args:    cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app) error {
			if err := a.require(ctx, tokens.RoleAdmin); err != nil {
				return err
			}
			users, err := a.client.Users(ctx)
			if err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}
			sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

			return a.out.Render(users, func() *output.Table {
				t := output.NewTable("ID", "NAME", "EMAIL", "PHONE", "ROLE")
				for _, u := range users {
					t.AddRow(u.ID, u.Name, u.Email, dash(u.Phone), tokens.Canonicalize(u.Role))
				}
				return t
			})
		}),
	}

	cmd.AddCommand(list)
	return cmd
}
