package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/phoenixfitness/phoenix-stack/auth/pkg/session"
	"github.com/phoenixfitness/phoenix-stack/auth/pkg/tokens"
	"github.com/phoenixfitness/phoenix-stack/cli/pkg/output"
	"github.com/phoenixfitness/phoenix-stack/common/httputil"
	"github.com/phoenixfitness/phoenix-stack/common/logging"
	"github.com/phoenixfitness/phoenix-stack/common/messaging"
	"github.com/phoenixfitness/phoenix-stack/common/metrics"
)

var errEventsDisabled = errors.New("session events need NATS: set nats.enabled and a reachable nats.url")

func newSessionCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and maintain the current session",
	}
	cmd.AddCommand(newSessionStatusCmd(o), newSessionRefreshCmd(o), newSessionWatchCmd(o), newSessionEventsCmd(o))
	return cmd
}

type sessionStatus struct {
	State     string    `json:"state"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func statusOf(s session.Snapshot) sessionStatus {
	st := sessionStatus{State: s.State.String(), ExpiresAt: s.ExpiresAt}
	if s.User != nil {
		st.Email = s.User.Email
		st.Role = string(s.Role())
	}
	if s.Err != nil {
		st.Error = session.Message(s.Err)
	}
	return st
}

func newSessionStatusCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Validate the saved credential and show the session",
		Args:  cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app) error {
			res, _ := a.manager.Initialize(ctx, session.Public)
			snap := res.Session
			return a.out.Render(statusOf(snap), func() *output.Table {
				t := output.NewTable("STATE", "EMAIL", "ROLE", "EXPIRES", "ERROR")
				st := statusOf(snap)
				t.AddRow(st.State, dash(st.Email), dash(st.Role), describeExpiry(snap), dash(st.Error))
				return t
			})
		}),
	}
}

func newSessionRefreshCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new access token now",
		Args:  cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app) error {
			token, err := a.manager.Refresh(ctx)
			if errors.Is(err, session.ErrNoRefreshToken) {
				return errNotLoggedIn
			}
			if err != nil {
				return err
			}
			claims, err := tokens.Decode(token)
			if err != nil {
				return err
			}
			a.out.Success("Access token refreshed, valid until %s", claims.Expiry().Local().Format(time.RFC3339))
			return nil
		}),
	}
}

func newSessionWatchCmd(o *rootOptions) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the session alive and report every change",
		Long: `Watch validates the session, prints every state change and refreshes the
access token shortly before it enters the renewal window. With a metrics
address it also serves Prometheus metrics on /metrics and the signed-in
user on /session.`,
		Args: cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app) error {
			if metricsAddr == "" {
				metricsAddr = a.cfg.Metrics.Addr
			}
			return watch(ctx, a, metricsAddr)
		}),
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve metrics on this address, e.g. :9464")
	return cmd
}

func watch(ctx context.Context, a *app, metricsAddr string) error {
	if metricsAddr != "" {
		routes := map[string]http.Handler{"/session": sessionHandler(a.manager)}
		go func() {
			if err := metrics.Serve(ctx, metricsAddr, routes); err != nil {
				a.logger.Error("metrics server stopped", logging.Error(err))
			}
		}()
		a.out.Info("Serving metrics on %s", metricsAddr)
	}

	updates, cancel := a.manager.Subscribe()
	defer cancel()

	if _, err := a.manager.Initialize(ctx, session.Member); err != nil && !errors.Is(err, session.ErrNetworkFailure) {
		return err
	}

	renew := time.NewTimer(time.Hour)
	renew.Stop()
	defer renew.Stop()

	threshold := a.cfg.Session.RenewalThreshold
	last := session.Uninitialized
	authenticated := false
	for {
		select {
		case <-ctx.Done():
			return nil

		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if snap.State != last {
				report(a.out, snap)
				last = snap.State
			}
			switch snap.State {
			case session.Authenticated:
				authenticated = true
				renew.Reset(renewalDelay(snap.ExpiresAt, threshold, time.Now()))
			case session.Unauthenticated:
				if errors.Is(snap.Err, session.ErrNetworkFailure) {
					renew.Reset(retryDelay)
					continue
				}
				if !authenticated {
					return errNotLoggedIn
				}
				if snap.Err != nil {
					return snap.Err
				}
				return nil
			}

		case <-renew.C:
			if last != session.Authenticated {
				// the backend was unreachable, try to resume the session
				a.manager.Initialize(ctx, session.Member)
				continue
			}
			if _, err := a.manager.Refresh(ctx); err != nil {
				a.out.Warn("Refresh failed: %s", session.Message(err))
			}
		}
	}
}

func newSessionEventsCmd(o *rootOptions) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow session events published by phoenix clients",
		Long: `Events subscribes to the session subjects on NATS and prints every login,
logout, refresh, validation and expiry reported by any phoenix client sharing
the subject prefix.`,
		Args: cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app) error {
			if a.events == nil {
				return errEventsDisabled
			}
			return followEvents(ctx, a, count)
		}),
	}
	cmd.Flags().IntVar(&count, "count", 0, "exit after this many events, 0 follows until interrupted")
	return cmd
}

func followEvents(ctx context.Context, a *app, count int) error {
	received := make(chan messaging.SessionEvent, 16)
	subject := messaging.SessionWildcard(a.cfg.NATS.SubjectPrefix)
	sub, err := a.events.Subscribe(subject, func(_ context.Context, msg *messaging.Message) error {
		var ev messaging.SessionEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return fmt.Errorf("decoding %s: %w", msg.Subject, err)
		}
		select {
		case received <- ev:
		case <-ctx.Done():
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	defer sub.Unsubscribe()
	a.logger.Debug("following session events", "subject", sub.Subject())

	for seen := 0; count <= 0 || seen < count; seen++ {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-received:
			if a.out.Structured() {
				if err := a.out.Render(ev, nil); err != nil {
					return err
				}
				continue
			}
			a.out.Info("%s  %-9s %s", ev.Timestamp.Local().Format(time.TimeOnly), ev.Event, describeEvent(ev))
		}
	}
	return nil
}

func describeEvent(ev messaging.SessionEvent) string {
	var parts []string
	if ev.Email != "" {
		parts = append(parts, fmt.Sprintf("%s (%s)", ev.Email, dash(ev.Role)))
	}
	parts = append(parts, ev.State)
	if ev.Reason != "" {
		parts = append(parts, ev.Reason)
	}
	return strings.Join(parts, "  ")
}

// retryDelay spaces out attempts to resume while the backend is unreachable.
const retryDelay = 30 * time.Second

func report(out *output.Printer, s session.Snapshot) {
	switch s.State {
	case session.Authenticated:
		out.Success("authenticated as %s (%s), token expires %s", s.User.Email, s.Role(), untilString(s.ExpiresAt))
	case session.Unauthenticated:
		if s.Err != nil {
			out.Warn("unauthenticated: %s", session.Message(s.Err))
			return
		}
		out.Info("unauthenticated")
	default:
		out.Info("%s", s.State)
	}
}

// renewalDelay returns how long to wait before refreshing a token that
// expires at expires. Tokens already inside the renewal window are refreshed
// halfway through their remaining lifetime, never sooner than a second apart.
func renewalDelay(expires time.Time, threshold time.Duration, now time.Time) time.Duration {
	remaining := expires.Sub(now)
	if remaining <= 0 {
		return 0
	}
	d := remaining - threshold
	if d <= 0 {
		d = remaining / 2
	}
	if d < time.Second {
		d = time.Second
	}
	return d
}

// sessionHandler reports the signed-in user to callers that pass the guard.
func sessionHandler(m *session.Manager) http.Handler {
	guard := session.RequireRole(m, tokens.RoleAny, "/login", "/denied")
	return guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := session.UserFromContext(r.Context())
		httputil.WriteSuccess(w, http.StatusOK, user)
	}))
}

func untilString(t time.Time) string {
	d := time.Until(t).Round(time.Second)
	if d <= 0 {
		return "now"
	}
	return "in " + d.String()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
