package studiotest

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/phoenixfitness/phoenix-stack/auth/pkg/tokens"
	"github.com/phoenixfitness/phoenix-stack/common/httputil"
	"github.com/phoenixfitness/phoenix-stack/common/models"
)

const refreshLifetime = 7 * 24 * time.Hour

type contextKey string

const accountKey contextKey = "account"

func (b *Backend) newRefreshLocked(email string) string {
	rt, err := b.tokenGen.GenerateRefreshToken()
	if err != nil {
		panic(err)
	}
	b.sessions[rt] = refreshSession{email: email, expiresAt: time.Now().Add(refreshLifetime)}
	return rt
}

func (b *Backend) grantLocked(acct *account) (*models.Grant, error) {
	access, err := b.tokenGen.WithTTL(b.accessTTL).GenerateAccessToken(acct.profile.Email, acct.profile.Role)
	if err != nil {
		return nil, err
	}
	profile := acct.profile
	return &models.Grant{
		Token:        access,
		RefreshToken: b.newRefreshLocked(acct.profile.Email),
		User:         &profile,
	}, nil
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	acct, ok := b.accounts[req.Email]
	if !ok || bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(req.Password)) != nil {
		httputil.WriteFailure(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	grant, err := b.grantLocked(acct)
	if err != nil {
		httputil.WriteFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, grant)
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var req models.Registration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b.mu.Lock()
	_, exists := b.accounts[req.Email]
	minPassword := b.minPassword
	b.mu.Unlock()

	switch {
	case exists:
		httputil.WriteFailure(w, http.StatusConflict, "Email already registered")
		return
	case len(req.Password) < minPassword:
		httputil.WriteFailure(w, http.StatusBadRequest, "Password too weak")
		return
	}

	b.AddUser(req.Name, req.Email, req.Password, "USER")
	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "User registered successfully",
	})
}

func (b *Backend) validate(w http.ResponseWriter, r *http.Request) {
	acct, ok := b.authenticate(r)
	if !ok {
		httputil.WriteFailure(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, acct.profile)
}

// refresh rotates the refresh token: the presented one is spent.
func (b *Backend) refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sess, ok := b.sessions[req.RefreshToken]
	if !ok || time.Now().After(sess.expiresAt) {
		httputil.WriteFailure(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	delete(b.sessions, req.RefreshToken)

	acct, ok := b.accounts[sess.email]
	if !ok {
		httputil.WriteFailure(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	grant, err := b.grantLocked(acct)
	if err != nil {
		httputil.WriteFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, grant)
}

func (b *Backend) listUsers(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	users := make([]models.UserProfile, 0, len(b.accounts))
	for _, acct := range b.accounts {
		users = append(users, acct.profile)
	}
	httputil.WriteSuccess(w, http.StatusOK, users)
}

// authenticate resolves the bearer token of r to an account.
func (b *Backend) authenticate(r *http.Request) (*account, bool) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, false
	}
	token := parts[1]

	claims, err := b.tokenGen.ValidateAccessToken(token)
	if err != nil {
		return nil, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.revoked[token] {
		return nil, false
	}
	acct, ok := b.accounts[claims.Email()]
	return acct, ok
}

// requireRole rejects requests without a valid token (401) or with a role
// below role (403).
func (b *Backend) requireRole(role tokens.Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct, ok := b.authenticate(r)
		if !ok {
			httputil.WriteFailure(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		if !tokens.Matches(acct.profile.Role, role) {
			httputil.WriteFailure(w, http.StatusForbidden, "Access denied")
			return
		}
		ctx := context.WithValue(r.Context(), accountKey, acct)
		next(w, r.WithContext(ctx))
	}
}

func accountFrom(r *http.Request) *account {
	acct, _ := r.Context().Value(accountKey).(*account)
	return acct
}
