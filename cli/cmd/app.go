package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phoenixfitness/phoenix-stack/auth/pkg/session"
	"github.com/phoenixfitness/phoenix-stack/auth/pkg/store"
	"github.com/phoenixfitness/phoenix-stack/auth/pkg/tokens"
	"github.com/phoenixfitness/phoenix-stack/cli/internal/client"
	"github.com/phoenixfitness/phoenix-stack/cli/pkg/output"
	"github.com/phoenixfitness/phoenix-stack/common/config"
	"github.com/phoenixfitness/phoenix-stack/common/logging"
	natsclient "github.com/phoenixfitness/phoenix-stack/common/messaging/nats"
)

// app is everything a command needs, wired from configuration.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	client  *client.Client
	manager *session.Manager
	out     *output.Printer
	// events is nil unless NATS is enabled and reachable.
	events *natsclient.Client

	closers []func() error
}

func (o *rootOptions) newApp(cmd *cobra.Command) (*app, error) {
	dir := o.configDir
	if dir == "" {
		var err error
		if dir, err = config.Dir(); err != nil {
			return nil, err
		}
	}
	cfg, err := config.LoadFrom(dir)
	if err != nil {
		return nil, err
	}
	if o.profile != "" {
		cfg.Store.Profile = o.profile
	}

	level := cfg.Logging.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), logging.ParseLevel(level), cfg.Logging.Format)

	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	a := &app{
		cfg:     cfg,
		logger:  logger,
		client:  client.NewFromConfig(cfg.API, logger),
		out:     output.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), o.output),
		closers: []func() error{st.Close},
	}

	opts := session.OptionsFromConfig(cfg.Session)
	opts.Logger = logger
	if cfg.NATS.Enabled {
		nc, err := natsclient.NewClient(natsclient.Config{
			URL:           cfg.NATS.URL,
			Name:          "phoenix-cli",
			MaxReconnects: 5,
			ReconnectWait: natsclient.DefaultConfig().ReconnectWait,
			Timeout:       natsclient.DefaultConfig().Timeout,
			Logger:        logger,
		})
		if err != nil {
			// events are optional, the session works without them
			logger.Warn("session events disabled", logging.Error(err))
		} else {
			a.events = nc
			opts.Publisher = nc
			opts.SubjectPrefix = cfg.NATS.SubjectPrefix
			a.closers = append(a.closers, nc.Close)
		}
	}

	a.manager = session.New(a.client, st, opts)
	a.client.SetTokenProvider(a.manager)
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", logging.Error(err))
		}
	}
}

// run builds the app for cmd, hands it to fn and releases it afterwards.
func (o *rootOptions) run(fn func(ctx context.Context, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := o.newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), a)
	}
}

// require guards a view. RoleAny only asks for a signed-in user.
func (a *app) require(ctx context.Context, role tokens.Role) error {
	switch a.manager.Guard(ctx, role) {
	case session.RedirectToLogin:
		if err := a.manager.Snapshot().Err; errors.Is(err, session.ErrNetworkFailure) {
			return err
		}
		return errNotLoggedIn
	case session.RedirectToAccessDenied:
		return errAccessDenied
	}
	return nil
}
