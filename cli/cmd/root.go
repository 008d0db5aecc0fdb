// Package cmd implements the phoenix command line client.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/phoenixfitness/phoenix-stack/auth/pkg/session"
	"github.com/phoenixfitness/phoenix-stack/cli/pkg/output"
)

var (
	errNotLoggedIn  = errors.New("you are not logged in, run 'phoenix login' first")
	errAccessDenied = errors.New("access denied: this command requires the ADMIN role")
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configDir string
	profile   string
	output    string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "phoenix",
		Short: "Phoenix Fitness studio CLI",
		Long: `phoenix is the command-line client for the Phoenix Fitness studio.

Log in, browse the shop and the class schedule, book classes and, with an
administrator account, manage the catalog, classes, bookings and users.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !output.ValidFormat(opts.output) {
				return fmt.Errorf("unknown output format %q (want table, json or yaml)", opts.output)
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configDir, "config-dir", "", "configuration directory (default: $PHOENIX_CONFIG_DIR or ~/.phoenix)")
	pf.StringVar(&opts.profile, "profile", "", "credential profile to use (default from config)")
	pf.StringVarP(&opts.output, "output", "o", output.FormatTable, "output format: table, json, yaml")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)")

	root.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newRegisterCmd(opts),
		newSessionCmd(opts),
		newProductsCmd(opts),
		newCategoriesCmd(opts),
		newClassesCmd(opts),
		newBookingsCmd(opts),
		newUsersCmd(opts),
		newShopCmd(opts),
	)
	return root
}

// Execute runs the CLI until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil {
		output.Error("%s", session.Message(err))
	}
	return err
}

func parseID(kind, arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, arg)
	}
	return id, nil
}
