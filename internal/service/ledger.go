package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/master-of-jokes/internal/apperror"
	"github.com/sakif/master-of-jokes/internal/metrics"
	"github.com/sakif/master-of-jokes/internal/model"
	"github.com/sakif/master-of-jokes/internal/repository"
)

const (
	MinRating = 1
	MaxRating = 5

	DefaultListLimit = repository.DefaultListLimit
	MaxListLimit     = repository.MaxListLimit

	// viewAttempts bounds the retries of a view that hit a busy database.
	// Retrying is safe: a repeated view of the same joke never charges twice.
	viewAttempts = 3
	retryBackoff = 10 * time.Millisecond
)

// Ledger owns every operation that moves a joke balance or a rating.
//
// BALANCE RULE:
//
//	balance = jokes authored − distinct jokes by others viewed
//
// Each method changes the stored balance and the row it accounts for in one
// repository transaction, then mirrors the change onto the *model.User the
// caller passed in so the caller can respond without re-reading.
//
// The acting user is always an explicit parameter. Nothing here knows about
// HTTP requests or sessions.
type Ledger struct {
	jokes   repository.JokeRepository
	store   repository.LedgerRepository
	metrics *metrics.Metrics
	logger  *slog.Logger

	// views serializes RecordView per viewer. The repository's
	// insert-or-ignore already makes the charge idempotent; the lock keeps
	// one user's parallel views from contending for the write lock at all.
	views *keyedMutex
}

// NewLedger creates a Ledger. m may be shared with the HTTP layer.
func NewLedger(jokes repository.JokeRepository, store repository.LedgerRepository, m *metrics.Metrics, logger *slog.Logger) *Ledger {
	return &Ledger{
		jokes:   jokes,
		store:   store,
		metrics: m,
		logger:  logger,
		views:   newKeyedMutex(),
	}
}

// RecordView returns the joke and charges viewer for it if this is the first
// time viewer sees a joke written by someone else. charged reports whether
// this call took the 1 from the balance.
//
//   - own joke: free, nothing recorded
//   - already viewed: free, nothing changes
//   - first view: balance − 1 and jokeID joins viewer.ViewedJokes, atomically
func (l *Ledger) RecordView(ctx context.Context, viewer *model.User, jokeID int64) (joke *model.Joke, charged bool, err error) {
	joke, err = l.jokes.GetJokeByID(ctx, jokeID)
	if err != nil {
		return nil, false, err
	}

	if joke.AuthorID == viewer.ID {
		l.metrics.ViewRecorded(false)
		return joke, false, nil
	}

	unlock := l.views.Lock(viewer.ID)
	defer unlock()

	var balance int
	for attempt := 1; ; attempt++ {
		charged, balance, err = l.store.ChargeView(ctx, viewer.ID, jokeID)
		if err == nil || !errors.Is(err, apperror.ErrConflict) || attempt == viewAttempts {
			break
		}

		l.logger.Warn("view contended, retrying",
			slog.String("viewer", viewer.ID),
			slog.Int64("joke", jokeID),
			slog.Int("attempt", attempt),
		)
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	if err != nil {
		return nil, false, fmt.Errorf("recording view of joke %d: %w", jokeID, err)
	}

	if viewer.ViewedJokes == nil {
		viewer.ViewedJokes = model.NewJokeSet()
	}
	viewer.ViewedJokes.Add(jokeID)
	viewer.JokeBalance = balance
	if charged {
		l.logger.Info("joke view charged",
			slog.String("viewer", viewer.ID),
			slog.Int64("joke", jokeID),
			slog.Int("balance", viewer.JokeBalance),
		)
	}
	l.metrics.ViewRecorded(charged)

	return joke, charged, nil
}

// RecordAuthored stores joke as written by author and credits author by 1.
// joke.ID and joke.Created are filled in.
func (l *Ledger) RecordAuthored(ctx context.Context, author *model.User, joke *model.Joke) error {
	joke.AuthorID = author.ID
	joke.AuthorNickname = author.Nickname

	balance, err := l.store.CreditAuthored(ctx, joke)
	if err != nil {
		return fmt.Errorf("recording authored joke: %w", err)
	}

	author.JokeBalance = balance
	l.metrics.JokesCreated.Inc()
	l.logger.Info("joke created",
		slog.Int64("joke", joke.ID),
		slog.String("author", author.ID),
		slog.Int("balance", author.JokeBalance),
	)
	return nil
}

// RecordDeleted deletes jokeID and debits its author by 1. Only the author
// may delete: anyone else gets apperror.ErrForbidden.
//
// Viewers who paid for the joke stay charged.
func (l *Ledger) RecordDeleted(ctx context.Context, author *model.User, jokeID int64) error {
	joke, err := l.jokes.GetJokeByID(ctx, jokeID)
	if err != nil {
		return err
	}
	if joke.AuthorID != author.ID {
		return apperror.Forbidden("You can only delete your own jokes.")
	}

	balance, err := l.store.DebitDeleted(ctx, jokeID, author.ID)
	if err != nil {
		return fmt.Errorf("recording deleted joke: %w", err)
	}

	author.JokeBalance = balance
	l.metrics.JokesDeleted.Inc()
	l.logger.Info("joke deleted",
		slog.Int64("joke", jokeID),
		slog.String("author", author.ID),
		slog.Int("balance", author.JokeBalance),
	)
	return nil
}

// RecordRated adds value (MinRating..MaxRating) to the joke's rating and
// returns the joke as it now stands. Ratings never touch balances.
func (l *Ledger) RecordRated(ctx context.Context, jokeID int64, value int) (*model.Joke, error) {
	if value < MinRating || value > MaxRating {
		return nil, apperror.ValidationFailed("rating",
			fmt.Sprintf("Rating must be between %d and %d.", MinRating, MaxRating))
	}

	if err := l.store.AddRating(ctx, jokeID, value); err != nil {
		return nil, err
	}
	l.metrics.JokeRatings.Inc()

	return l.jokes.GetJokeByID(ctx, jokeID)
}

// ListOthers is the "take a joke" list: every joke not written by viewerID,
// newest first.
func (l *Ledger) ListOthers(ctx context.Context, viewerID string, limit, offset int) ([]model.Joke, error) {
	jokes, err := l.jokes.ListByAuthor(ctx, viewerID, true, listOptions(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("listing jokes for %s: %w", viewerID, err)
	}
	return jokes, nil
}

// ListMine is the "my jokes" list: jokes viewerID wrote plus jokes viewerID
// already paid for, newest first.
func (l *Ledger) ListMine(ctx context.Context, viewerID string, limit, offset int) ([]model.Joke, error) {
	jokes, err := l.jokes.ListAccessible(ctx, viewerID, listOptions(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("listing own jokes for %s: %w", viewerID, err)
	}
	return jokes, nil
}

func listOptions(limit, offset int) repository.ListOptions {
	return repository.NewListOptions(limit, offset)
}

