package access

import (
	"context"
	"errors"

	"github.com/harman-mundh/localcommunity/core"
)

// AccountCreator creates users rows and returns the new identifier
type AccountCreator interface {
	UserLookup
	CreateUser(ctx context.Context, user core.Record) (int64, error)
}

// BootstrapAccount is an account that must exist when the service starts
type BootstrapAccount struct {
	Username string
	Email    string
	Password string
	Role     string
}

// EnsureAccounts creates the specified accounts if they do not exist yet.
// Existing accounts are left untouched, including their password.
func EnsureAccounts(ctx context.Context, users AccountCreator, accounts ...BootstrapAccount) error {
	for _, account := range accounts {
		if account.Username == "" || account.Password == "" {
			continue
		}
		_, err := users.FindByUsername(ctx, account.Username)
		if err == nil {
			continue
		}
		if !errors.Is(err, core.ErrNotFound) {
			return err
		}
		hash, err := HashPassword(account.Password)
		if err != nil {
			return err
		}
		role := account.Role
		if role == "" {
			role = RoleUser
		}
		_, err = users.CreateUser(ctx, core.Record{
			"username": account.Username,
			"email":    account.Email,
			"password": hash,
			"role":     role,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
