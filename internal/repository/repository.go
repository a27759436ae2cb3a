// Package repository declares the storage contracts the service layer depends on.
// internal/repository/sqlite is the only production implementation.
package repository

import (
	"context"

	"github.com/sakif/master-of-jokes/internal/model"
)

// Page sizes for list queries.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type ListOptions struct {
	Limit  int
	Offset int
}

// NewListOptions applies the default and maximum page size. A non-positive
// limit means the default; a negative offset means 0.
func NewListOptions(limit, offset int) ListOptions {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return ListOptions{Limit: limit, Offset: offset}
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetByNickname(ctx context.Context, nickname string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

type JokeRepository interface {
	GetJokeByID(ctx context.Context, id int64) (*model.Joke, error)
	UpdateJoke(ctx context.Context, joke *model.Joke) error
	TitleTaken(ctx context.Context, authorID, title string, excludeID int64) (bool, error)

	// ListByAuthor returns jokes by authorID, or every joke NOT by authorID
	// when excludeSelf is set. Newest first.
	ListByAuthor(ctx context.Context, authorID string, excludeSelf bool, opts ListOptions) ([]model.Joke, error)

	// ListAccessible returns jokes authored by userID together with jokes
	// userID has already viewed. Newest first.
	ListAccessible(ctx context.Context, userID string, opts ListOptions) ([]model.Joke, error)
}

// LedgerRepository holds every write that moves a joke balance. Each method
// runs in a single transaction: the balance and the row it accounts for
// change together or not at all.
type LedgerRepository interface {
	// CreditAuthored inserts joke and adds 1 to the author's balance.
	// It returns the balance as stored after the write.
	CreditAuthored(ctx context.Context, joke *model.Joke) (balance int, err error)

	// DebitDeleted deletes the joke and takes 1 from its author's balance.
	// It returns the balance as stored after the write.
	DebitDeleted(ctx context.Context, jokeID int64, authorID string) (balance int, err error)

	// ChargeView records that viewerID has seen jokeID. Only the first call
	// for a pair takes 1 from the balance; charged reports whether this one did.
	// balance is the viewer's stored balance either way.
	ChargeView(ctx context.Context, viewerID string, jokeID int64) (charged bool, balance int, err error)

	// AddRating adds value to the joke's rating and bumps times_rated.
	AddRating(ctx context.Context, jokeID int64, value int) error
}
