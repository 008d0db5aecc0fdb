// Package session owns the client-side authentication lifecycle: acquiring,
// validating, refreshing and discarding the credential, and deciding whether a
// view may be shown.
//
// All state changes go through a Manager. Validation and refresh exchanges are
// coalesced so that any number of concurrent callers share a single request to
// the backend, which keeps a rotating refresh token from being spent twice.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"github.com/phoenixfitness/phoenix-stack/auth/pkg/store"
	"github.com/phoenixfitness/phoenix-stack/auth/pkg/tokens"
	"github.com/phoenixfitness/phoenix-stack/common/config"
	"github.com/phoenixfitness/phoenix-stack/common/logging"
	"github.com/phoenixfitness/phoenix-stack/common/messaging"
	"github.com/phoenixfitness/phoenix-stack/common/metrics"
	"github.com/phoenixfitness/phoenix-stack/common/models"
)

const (
	flightValidate = "validate"
	flightRefresh  = "refresh"
)

// Authenticator is the backend authentication service.
type Authenticator interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.Grant, error)
	Register(ctx context.Context, req models.Registration) (string, error)
	Validate(ctx context.Context, accessToken string) (*models.UserProfile, error)
	Refresh(ctx context.Context, refreshToken string) (*models.Grant, error)
}

// Options tunes a Manager. Zero values fall back to DefaultOptions.
type Options struct {
	RenewalThreshold  time.Duration
	RequestTimeout    time.Duration
	GuardInterval     time.Duration
	MinPasswordLength int
	RefreshMaxRetries int
	RefreshBackoff    time.Duration

	Logger        *logging.Logger
	Publisher     messaging.Publisher
	SubjectPrefix string

	// Clock overrides time.Now.
	Clock func() time.Time
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		RenewalThreshold:  5 * time.Minute,
		RequestTimeout:    10 * time.Second,
		GuardInterval:     30 * time.Second,
		MinPasswordLength: 8,
		RefreshMaxRetries: 2,
		RefreshBackoff:    250 * time.Millisecond,
		SubjectPrefix:     messaging.DefaultSubjectPrefix,
	}
}

// OptionsFromConfig maps the session section of the configuration.
func OptionsFromConfig(cfg config.SessionConfig) Options {
	opts := DefaultOptions()
	opts.RenewalThreshold = cfg.RenewalThreshold
	opts.RequestTimeout = cfg.RequestTimeout
	opts.GuardInterval = cfg.GuardInterval
	opts.MinPasswordLength = cfg.MinPasswordLength
	opts.RefreshMaxRetries = cfg.RefreshMaxRetries
	opts.RefreshBackoff = cfg.RefreshBackoff
	return opts
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RenewalThreshold <= 0 {
		o.RenewalThreshold = d.RenewalThreshold
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = d.RequestTimeout
	}
	if o.GuardInterval <= 0 {
		o.GuardInterval = d.GuardInterval
	}
	if o.MinPasswordLength <= 0 {
		o.MinPasswordLength = d.MinPasswordLength
	}
	if o.RefreshMaxRetries < 0 {
		o.RefreshMaxRetries = 0
	}
	if o.SubjectPrefix == "" {
		o.SubjectPrefix = d.SubjectPrefix
	}
	if o.Logger == nil {
		o.Logger = logging.Default()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Manager is the single source of truth for who is signed in.
type Manager struct {
	auth   Authenticator
	store  store.Store
	opts   Options
	logger *logging.Logger

	flights singleflight.Group

	// mu guards the fields below and serializes every write to the store.
	mu         sync.Mutex
	snap       Snapshot
	claims     *tokens.Claims
	checkedAt  time.Time
	generation uint64

	subMu   sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

// New returns a Manager in the Uninitialized state.
func New(auth Authenticator, st store.Store, opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		auth:   auth,
		store:  st,
		opts:   opts,
		logger: opts.Logger.With(logging.Component("session")),
		snap:   Snapshot{State: Uninitialized, Loading: true},
		subs:   make(map[int]chan Snapshot),
	}
}

// Snapshot returns the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.clone()
}

func (m *Manager) now() time.Time {
	return m.opts.Clock()
}

// flightContext detaches a shared exchange from the caller that happened to
// start it, bounding it by the request timeout instead.
func (m *Manager) flightContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.opts.RequestTimeout)
}

// Initialize validates the persisted credential and resolves the session.
// Concurrent calls share one validation. The access check is applied per
// caller: a role mismatch yields ErrAccessDenied and RedirectAccessDenied while
// the session itself is left as it was. A role claim that already fails the
// check is denied before the backend is asked.
func (m *Manager) Initialize(ctx context.Context, access Access) (Result, error) {
	if m.deniedLocally(ctx, access) {
		return denied(m.Snapshot(), access)
	}

	ch := m.flights.DoChan(flightValidate, func() (interface{}, error) {
		fctx, cancel := m.flightContext(ctx)
		defer cancel()
		return m.validate(fctx)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return Result{Session: m.Snapshot()},
			newError(ErrNetworkFailure, "gave up waiting for session validation", ctx.Err())
	}
	if res.Shared {
		metrics.CoalescedCalls.WithLabelValues(flightValidate).Inc()
	}

	snap := res.Val.(Snapshot)
	if res.Err != nil {
		out := Result{Session: snap}
		if access.required() {
			out.Redirect = RedirectLogin
		}
		return out, res.Err
	}
	return m.authorize(snap, access)
}

func (m *Manager) authorize(snap Snapshot, access Access) (Result, error) {
	if !snap.IsAuthenticated {
		out := Result{Session: snap}
		if access.required() {
			out.Redirect = RedirectLogin
		}
		return out, nil
	}
	if !tokens.Matches(string(snap.Role()), access.Role) {
		return denied(snap, access)
	}
	return Result{Session: snap}, nil
}

func denied(snap Snapshot, access Access) (Result, error) {
	return Result{Session: snap, Redirect: RedirectAccessDenied},
		newError(ErrAccessDenied, "this page requires the "+access.Role.String()+" role", nil)
}

// deniedLocally reports whether the role claim of the stored access token
// already fails access. Tokens that are unreadable or due for renewal are left
// to the full validation.
func (m *Manager) deniedLocally(ctx context.Context, access Access) bool {
	if access.Role == tokens.RoleAny {
		return false
	}
	cred, err := m.store.Load(ctx)
	if err != nil || cred.IsZero() {
		return false
	}
	claims, err := tokens.Decode(cred.AccessToken)
	if err != nil || claims.NeedsRenewal(m.opts.RenewalThreshold, m.now()) {
		return false
	}
	return !tokens.Matches(claims.Role, access.Role)
}

// validate is the body of the shared validation flight.
func (m *Manager) validate(ctx context.Context) (Snapshot, error) {
	gen := m.beginValidation()

	cred, err := m.store.Load(ctx)
	if err != nil {
		return m.settleFailure(ctx, gen, newError(ErrInvalidCredential, "stored credential could not be read", err),
			errors.Is(err, store.ErrCorrupt))
	}
	if cred.IsZero() {
		return m.settleFailure(ctx, gen, nil, false)
	}

	claims, err := tokens.Decode(cred.AccessToken)
	if err != nil {
		return m.settleFailure(ctx, gen, newError(ErrInvalidCredential, "stored access token is malformed", err), true)
	}

	token := cred.AccessToken
	if claims.NeedsRenewal(m.opts.RenewalThreshold, m.now()) {
		refreshed, rerr := m.Refresh(ctx)
		switch {
		case rerr == nil:
			token = refreshed
			if c, derr := tokens.Decode(token); derr == nil {
				claims = c
			}
		case errors.Is(rerr, ErrNoRefreshToken) && !claims.Expired(m.now()):
			// still valid for a while; let the backend decide
		case errors.Is(rerr, ErrNoRefreshToken):
			return m.settleFailure(ctx, gen, newError(ErrSessionExpired, "your session has expired, please log in again", rerr), true)
		default:
			// refresh already cleared the store if the token was rejected
			return m.settleFailure(ctx, gen, rerr, false)
		}
	}

	user, err := m.auth.Validate(ctx, token)
	if err != nil {
		if isTransient(err) {
			return m.settleFailure(ctx, gen, newError(ErrNetworkFailure, "could not reach the server to validate your session", err), false)
		}
		return m.settleFailure(ctx, gen, newError(ErrSessionExpired, backendMessage(err, "your session is no longer valid"), err), true)
	}
	if user == nil {
		return m.settleFailure(ctx, gen, newError(ErrNetworkFailure, "server returned no user profile", nil), false)
	}

	return m.settleAuthenticated(ctx, gen, user, claims, messaging.EventValidated)
}

func (m *Manager) beginValidation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.snap
	next.State = Validating
	next.Loading = true
	next.Err = nil
	m.setLocked(next)
	return m.generation
}

// settleFailure resolves a validation to Unauthenticated. A nil err means there
// simply was no credential. Results of a superseded validation are dropped.
func (m *Manager) settleFailure(ctx context.Context, gen uint64, err error, clear bool) (Snapshot, error) {
	m.mu.Lock()
	if gen != m.generation {
		snap := m.snap.clone()
		m.mu.Unlock()
		return snap, nil
	}
	if clear {
		m.clearStoreLocked(ctx)
	}
	m.claims = nil
	m.checkedAt = m.now()
	m.setLocked(Snapshot{State: Unauthenticated, Err: err})
	snap := m.snap.clone()
	m.mu.Unlock()

	if err != nil {
		m.logger.WarnContext(ctx, "session validation failed", logging.Error(err))
		if errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrInvalidCredential) {
			m.publish(ctx, messaging.EventExpired, snap, Message(err))
		}
	}
	return snap, err
}

func (m *Manager) settleAuthenticated(ctx context.Context, gen uint64, user *models.UserProfile, claims *tokens.Claims, event string) (Snapshot, error) {
	m.mu.Lock()
	if gen != m.generation {
		snap := m.snap.clone()
		m.mu.Unlock()
		return snap, nil
	}
	u := *user
	m.claims = claims
	m.checkedAt = m.now()
	m.setLocked(Snapshot{
		User:            &u,
		IsAuthenticated: true,
		State:           Authenticated,
		ExpiresAt:       claims.Expiry(),
		tokenRole:       claims.Role,
	})
	snap := m.snap.clone()
	m.mu.Unlock()

	metrics.TokenTTLSeconds.Set(claims.Remaining(m.now()).Seconds())
	m.publish(ctx, event, snap, "")
	return snap, nil
}

// Refresh exchanges the stored refresh token for a new credential and returns
// the new access token. Concurrent calls share one exchange. Transient failures
// are retried with exponential backoff up to the configured limit; a rejected
// refresh token clears the store and ends the session.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	ch := m.flights.DoChan(flightRefresh, func() (interface{}, error) {
		fctx, cancel := m.flightContext(ctx)
		defer cancel()
		return m.refresh(fctx)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return "", newError(ErrNetworkFailure, "gave up waiting for token refresh", ctx.Err())
	}
	if res.Shared {
		metrics.CoalescedCalls.WithLabelValues(flightRefresh).Inc()
	}
	if res.Err != nil {
		return "", res.Err
	}
	return res.Val.(string), nil
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	gen := m.currentGeneration()

	cred, err := m.store.Load(ctx)
	if err != nil {
		return "", newError(ErrInvalidCredential, "stored credential could not be read", err)
	}
	if cred.RefreshToken == "" {
		metrics.RefreshTotal.WithLabelValues("no_token").Inc()
		return "", newError(ErrNoRefreshToken, "no refresh token is stored", nil)
	}

	var grant *models.Grant
	attempt := 0
	op := func() error {
		attempt++
		g, err := m.auth.Refresh(ctx, cred.RefreshToken)
		if err != nil {
			if isTransient(err) && ctx.Err() == nil {
				m.logger.DebugContext(ctx, "token refresh attempt failed",
					logging.Attempt(attempt), logging.Error(err))
				return err
			}
			return backoff.Permanent(err)
		}
		grant = g
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(m.newBackOff(), ctx)); err != nil {
		if isTransient(err) {
			metrics.RefreshTotal.WithLabelValues("network").Inc()
			e := newError(ErrNetworkFailure, "could not reach the server to refresh your session", err)
			m.refreshFailed(ctx, gen, e, false)
			return "", e
		}
		metrics.RefreshTotal.WithLabelValues("rejected").Inc()
		e := newError(ErrSessionExpired, backendMessage(err, "your session has expired, please log in again"), err)
		m.refreshFailed(ctx, gen, e, true)
		return "", e
	}

	if grant == nil || grant.Token == "" {
		metrics.RefreshTotal.WithLabelValues("rejected").Inc()
		e := newError(ErrInvalidCredential, "refresh returned no access token", nil)
		m.refreshFailed(ctx, gen, e, true)
		return "", e
	}
	claims, err := tokens.Decode(grant.Token)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("rejected").Inc()
		e := newError(ErrInvalidCredential, "refresh returned a malformed access token", err)
		m.refreshFailed(ctx, gen, e, true)
		return "", e
	}

	next := store.Credential{AccessToken: grant.Token, RefreshToken: grant.RefreshToken}
	if next.RefreshToken == "" {
		next.RefreshToken = cred.RefreshToken
	}
	if err := m.refreshSucceeded(ctx, gen, next, claims, grant.User); err != nil {
		return "", err
	}
	metrics.RefreshTotal.WithLabelValues("ok").Inc()
	return grant.Token, nil
}

func (m *Manager) newBackOff() backoff.BackOff {
	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if m.opts.RefreshBackoff > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = m.opts.RefreshBackoff
		exp.MaxInterval = 8 * m.opts.RefreshBackoff
		exp.MaxElapsedTime = 0
		b = exp
	}
	return backoff.WithMaxRetries(b, uint64(m.opts.RefreshMaxRetries))
}

func (m *Manager) currentGeneration() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// refreshFailed applies a refresh failure. While a validation is running it
// owns the state transition, so only the store is touched.
func (m *Manager) refreshFailed(ctx context.Context, gen uint64, err *Error, clear bool) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	if clear {
		m.clearStoreLocked(ctx)
	}
	changed := false
	if m.snap.State != Validating && m.snap.State != Unauthenticated {
		m.claims = nil
		m.setLocked(Snapshot{State: Unauthenticated, Err: err})
		changed = true
	}
	snap := m.snap.clone()
	m.mu.Unlock()

	m.logger.WarnContext(ctx, "token refresh failed", logging.Error(err))
	if changed && clear {
		m.publish(ctx, messaging.EventExpired, snap, Message(err))
	}
}

func (m *Manager) refreshSucceeded(ctx context.Context, gen uint64, cred store.Credential, claims *tokens.Claims, user *models.UserProfile) error {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return newError(ErrSessionExpired, "the session ended while refreshing", nil)
	}
	if err := m.store.Save(ctx, cred); err != nil {
		m.mu.Unlock()
		return newError(ErrInvalidCredential, "refreshed credential could not be stored", err)
	}

	notify := false
	if m.snap.State == Authenticated {
		next := m.snap
		if user != nil {
			u := *user
			next.User = &u
		}
		next.ExpiresAt = claims.Expiry()
		next.tokenRole = claims.Role
		m.claims = claims
		m.setLocked(next)
		notify = true
	}
	snap := m.snap.clone()
	m.mu.Unlock()

	metrics.TokenTTLSeconds.Set(claims.Remaining(m.now()).Seconds())
	m.logger.InfoContext(ctx, "access token refreshed", logging.Duration(claims.Remaining(m.now())))
	if notify {
		m.publish(ctx, messaging.EventRefreshed, snap, "")
	}
	return nil
}

// Login authenticates with email and password. On failure the existing
// session and store are left exactly as they were. On success the credential
// and the profile are committed together.
func (m *Manager) Login(ctx context.Context, email, password string) (Result, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Result{Session: m.Snapshot()}, newError(ErrValidationFailure, "email and password are required", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.RequestTimeout)
	defer cancel()

	grant, err := m.auth.Login(ctx, models.LoginRequest{Email: email, Password: password})
	if err != nil {
		m.logger.InfoContext(ctx, "login failed", logging.Email(email), logging.Error(err))
		if isTransient(err) {
			return Result{Session: m.Snapshot()}, newError(ErrNetworkFailure, "could not reach the server", err)
		}
		return Result{Session: m.Snapshot()}, newError(ErrInvalidCredential, backendMessage(err, "login failed"), err)
	}
	if grant == nil || grant.Token == "" {
		return Result{Session: m.Snapshot()}, newError(ErrInvalidCredential, "server returned no access token", nil)
	}

	claims, err := tokens.Decode(grant.Token)
	if err != nil {
		return Result{Session: m.Snapshot()}, newError(ErrInvalidCredential, "server returned a malformed access token", err)
	}

	user := grant.User
	if user == nil {
		user, err = m.auth.Validate(ctx, grant.Token)
		if err != nil || user == nil {
			return Result{Session: m.Snapshot()}, newError(ErrNetworkFailure, "could not load your profile", err)
		}
	}

	m.mu.Lock()
	if err := m.store.Save(ctx, store.Credential{AccessToken: grant.Token, RefreshToken: grant.RefreshToken}); err != nil {
		snap := m.snap.clone()
		m.mu.Unlock()
		return Result{Session: snap}, newError(ErrInvalidCredential, "credential could not be stored", err)
	}
	// anything still in flight belongs to the previous session
	m.generation++
	u := *user
	m.claims = claims
	m.checkedAt = m.now()
	m.setLocked(Snapshot{
		User:            &u,
		IsAuthenticated: true,
		State:           Authenticated,
		ExpiresAt:       claims.Expiry(),
		tokenRole:       claims.Role,
	})
	snap := m.snap.clone()
	m.mu.Unlock()

	m.flights.Forget(flightValidate)
	m.flights.Forget(flightRefresh)

	metrics.TokenTTLSeconds.Set(claims.Remaining(m.now()).Seconds())
	m.logger.InfoContext(ctx, "logged in", logging.Email(u.Email), logging.Role(u.Role))
	m.publish(ctx, messaging.EventLogin, snap, "")

	return Result{Session: snap, Redirect: landingFor(string(snap.Role()))}, nil
}

// Logout discards the credential and the profile. It never fails; a store
// that cannot be cleared is logged and the in-memory session is reset anyway.
func (m *Manager) Logout(ctx context.Context) Result {
	m.mu.Lock()
	m.generation++
	m.clearStoreLocked(ctx)
	m.claims = nil
	m.checkedAt = time.Time{}
	m.setLocked(Snapshot{State: Unauthenticated})
	snap := m.snap.clone()
	m.mu.Unlock()

	m.flights.Forget(flightValidate)
	m.flights.Forget(flightRefresh)

	metrics.TokenTTLSeconds.Set(0)
	m.logger.InfoContext(ctx, "logged out")
	m.publish(ctx, messaging.EventLogout, snap, "")
	return Result{Session: snap, Redirect: RedirectLogin}
}

func (m *Manager) clearStoreLocked(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.WarnContext(ctx, "failed to clear stored credential", logging.Error(err))
	}
}

// AccessToken returns the token to attach to an outgoing request, renewing it
// first when it is inside the renewal window. An empty token means the request
// goes out anonymously.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	cred, err := m.store.Load(ctx)
	if err != nil {
		return "", newError(ErrInvalidCredential, "stored credential could not be read", err)
	}
	if cred.IsZero() {
		return "", nil
	}

	claims, err := tokens.Decode(cred.AccessToken)
	if err != nil || !claims.NeedsRenewal(m.opts.RenewalThreshold, m.now()) || cred.RefreshToken == "" {
		return cred.AccessToken, nil
	}

	refreshed, err := m.Refresh(ctx)
	if err == nil {
		return refreshed, nil
	}
	if claims.Expired(m.now()) {
		return "", nil
	}
	return cred.AccessToken, nil
}

// setLocked replaces the snapshot and notifies observers. m.mu must be held.
func (m *Manager) setLocked(next Snapshot) {
	prev := m.snap.State
	next.Loading = next.State == Validating || next.State == Uninitialized
	m.snap = next
	if prev != next.State {
		metrics.SessionTransitions.WithLabelValues(next.State.String()).Inc()
		m.logger.Info("session state changed",
			"from", prev.String(),
			logging.State(next.State.String()))
	}
	m.notify(next.clone())
}
