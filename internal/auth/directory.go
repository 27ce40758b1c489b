// Package auth holds the actor/role directory: given a user id it
// answers role and school affiliation, and verifies credentials for
// the local login endpoint.
package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/ensemble-works/mpa-server/internal/apperr"
	"github.com/ensemble-works/mpa-server/internal/docstore"
)

const usersCollection = "users"

type User struct {
	ID           string `json:"id"`
	Role         string `json:"role"` // judge|director|admin
	School       string `json:"school,omitempty"`
	PasswordHash string `json:"password_hash,omitempty"`
}

type Directory struct {
	store docstore.Store
}

func NewDirectory(store docstore.Store) *Directory { return &Directory{store: store} }

func (d *Directory) Lookup(ctx context.Context, uid string) (User, error) {
	var u User
	if err := d.store.Get(ctx, usersCollection, uid, &u); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return User{}, apperr.Newf(apperr.NotFound, "user %s not found", uid)
		}
		return User{}, apperr.Wrap(apperr.Internal, "user lookup", err)
	}
	return u, nil
}

// Authenticate checks credentials and returns the user on success.
// A missing user and a wrong password are indistinguishable to callers.
func (d *Directory) Authenticate(ctx context.Context, uid, password string) (User, error) {
	u, err := d.Lookup(ctx, uid)
	if err != nil {
		if apperr.IsCode(err, apperr.NotFound) {
			return User{}, apperr.New(apperr.Unauthenticated, "invalid credentials")
		}
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, apperr.New(apperr.Unauthenticated, "invalid credentials")
	}
	return u, nil
}

func (d *Directory) ChangePassword(ctx context.Context, uid, oldPassword, newPassword string) error {
	if newPassword == "" {
		return apperr.New(apperr.InvalidArgument, "new password required")
	}
	u, err := d.Lookup(ctx, uid)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)) != nil {
		return apperr.New(apperr.PermissionDenied, "incorrect old password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), 12)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "hash password", err)
	}
	u.PasswordHash = string(hash)
	return d.store.RunBatch(ctx, []docstore.Write{{Collection: usersCollection, ID: uid, Data: u}})
}

// Upsert writes a user record; used by admin seeding.
func (d *Directory) Upsert(ctx context.Context, u User) error {
	if u.ID == "" || u.Role == "" {
		return apperr.New(apperr.InvalidArgument, "user id and role required")
	}
	return d.store.RunBatch(ctx, []docstore.Write{{Collection: usersCollection, ID: u.ID, Data: u}})
}
