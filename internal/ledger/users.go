package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"hucha/internal/core"
)

// Register creates a user and issues the API token the presentation layer
// uses to resolve the owner on each request.
func (s *Service) Register(ctx context.Context, name, email string) (*core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email", core.ErrInvalidOperation)
	}
	user := core.User{
		Name:      strings.TrimSpace(name),
		Email:     email,
		APIToken:  uuid.NewString(),
		CreatedAt: time.Now(),
	}

	err := s.store.Tx(ctx, func(tx StoreTx) error {
		return tx.CreateUser(ctx, &user)
	})
	if err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}
	return &user, nil
}

// ResolveOwner maps an API token to its user. Unknown tokens report
// core.ErrNotFound.
func (s *Service) ResolveOwner(ctx context.Context, token string) (*core.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, core.ErrNotFound
	}
	var user *core.User
	err := s.store.Tx(ctx, func(tx StoreTx) error {
		var err error
		user, err = tx.UserByToken(ctx, token)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}
