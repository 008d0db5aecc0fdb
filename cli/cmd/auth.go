package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phoenixfitness/phoenix-stack/auth/pkg/session"
	"github.com/phoenixfitness/phoenix-stack/cli/pkg/output"
	"github.com/phoenixfitness/phoenix-stack/common/models"
)

func newLoginCmd(o *rootOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the studio",
		Long:  "Authenticate with email and password and save the credential for later commands",
		Args:  cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app) error {
			res, err := a.manager.Login(ctx, email, password)
			if err != nil {
				return err
			}
			user := res.Session.User
			a.out.Success("Logged in as %s (%s)", user.Name, res.Session.Role())
			a.out.Info("Next: %s", landing(res.Redirect))
			return nil
		}),
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Email address")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

// landing names the view a role starts on.
func landing(r session.Redirect) string {
	if r == session.RedirectAdminHome {
		return "manage members with 'phoenix users list'"
	}
	return "browse the shop with 'phoenix products list'"
}

func newLogoutCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the saved credential",
		Args:  cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app) error {
			a.manager.Logout(ctx)
			a.out.Success("Logged out")
			return nil
		}),
	}
}

func newWhoamiCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the signed-in user",
		Args:  cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app) error {
			res, err := a.manager.Initialize(ctx, session.Member)
			if err != nil {
				return err
			}
			if !res.Session.IsAuthenticated {
				return errNotLoggedIn
			}
			user := res.Session.User
			return a.out.Render(user, func() *output.Table {
				t := output.NewTable("ID", "NAME", "EMAIL", "PHONE", "ROLE")
				t.AddRow(user.ID, user.Name, user.Email, user.Phone, res.Session.Role())
				return t
			})
		}),
	}
}

func newRegisterCmd(o *rootOptions) *cobra.Command {
	var req models.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a studio account",
		Long:  "Create an account. Registration does not log you in; run 'phoenix login' afterwards.",
		Args:  cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app) error {
			msg, err := a.manager.Register(ctx, req)
			if err != nil {
				return err
			}
			a.out.Success("%s", msg)
			a.out.Info("Log in with: phoenix login -e %s -p <password>", req.Email)
			return nil
		}),
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "Full name")
	cmd.Flags().StringVarP(&req.Email, "email", "e", "", "Email address")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "Password")
	return cmd
}

func describeExpiry(s session.Snapshot) string {
	if s.ExpiresAt.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", s.ExpiresAt.Local().Format("2006-01-02 15:04:05"), untilString(s.ExpiresAt))
}
