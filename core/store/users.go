package store

import (
	"context"

	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/csql"
)

// UserStore is the store of the users table. It resolves requesters for the
// authentication middleware and creates bootstrap accounts.
type UserStore struct {
	*Store
}

// NewUserStore returns the users store
func NewUserStore(db *csql.DB) *UserStore {
	return &UserStore{Store: New(db, Users)}
}

// FindByID returns the user with the identifier
func (u *UserStore) FindByID(ctx context.Context, id int64) (core.Record, error) {
	return u.GetByID(ctx, id)
}

// FindByUsername returns the user with the username
func (u *UserStore) FindByUsername(ctx context.Context, username string) (core.Record, error) {
	return u.FindBy(ctx, "username", username)
}

// CreateUser inserts a user and returns its identifier
func (u *UserStore) CreateUser(ctx context.Context, user core.Record) (int64, error) {
	res, err := u.Add(ctx, user)
	if err != nil {
		return 0, err
	}
	return res.InsertedID, nil
}
