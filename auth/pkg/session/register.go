package session

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/phoenixfitness/phoenix-stack/common/logging"
	"github.com/phoenixfitness/phoenix-stack/common/models"
)

const registeredMessage = "Registration successful. Please log in."

// Register creates an account. It never touches the session: the new user
// must log in afterwards. The returned message is suitable for display.
func (m *Manager) Register(ctx context.Context, req models.Registration) (string, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)

	if err := m.validateRegistration(req); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.RequestTimeout)
	defer cancel()

	msg, err := m.auth.Register(ctx, req)
	if err != nil {
		m.logger.InfoContext(ctx, "registration failed", logging.Email(req.Email), logging.Error(err))
		if isTransient(err) {
			return "", newError(ErrNetworkFailure, "could not reach the server", err)
		}
		return "", newError(ErrValidationFailure, backendMessage(err, "registration failed"), err)
	}
	if msg == "" {
		msg = registeredMessage
	}
	return msg, nil
}

func (m *Manager) validateRegistration(req models.Registration) error {
	var missing []string
	if req.Name == "" {
		missing = append(missing, "name")
	}
	if req.Email == "" {
		missing = append(missing, "email")
	}
	if req.Phone == "" {
		missing = append(missing, "phone")
	}
	if req.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return newError(ErrValidationFailure, strings.Join(missing, ", ")+" required", nil)
	}

	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		return newError(ErrValidationFailure, "email address is invalid", err)
	}
	if len([]rune(req.Password)) < m.opts.MinPasswordLength {
		return newError(ErrValidationFailure,
			fmt.Sprintf("password must be at least %d characters", m.opts.MinPasswordLength), nil)
	}
	return nil
}
