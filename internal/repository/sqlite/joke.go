package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/sakif/master-of-jokes/internal/apperror"
	"github.com/sakif/master-of-jokes/internal/model"
	"github.com/sakif/master-of-jokes/internal/repository"
)

var _ repository.JokeRepository = (*DB)(nil)

// Every joke read joins users for the author's nickname.
// Ties on created fall back to id so that the order is total.
const (
	jokeSelect = `SELECT j.id, j.title, j.body, j.author_id, u.nickname,
		j.rating, j.times_rated, j.created
	 FROM jokes j JOIN users u ON u.id = j.author_id`
	jokeOrder = ` ORDER BY j.created DESC, j.id DESC LIMIT ? OFFSET ?`
)

// duplicateTitle is what a (author_id, title) UNIQUE violation becomes.
func duplicateTitle() error {
	return apperror.ValidationFailed("title", "This title has already been used.")
}

// GetJokeByID retrieves a single joke with its author's nickname.
// Returns apperror.ErrNotFound if the joke doesn't exist.
func (db *DB) GetJokeByID(ctx context.Context, id int64) (*model.Joke, error) {
	var j model.Joke

	err := db.conn.QueryRowContext(ctx, jokeSelect+` WHERE j.id = ?`, id).Scan(
		&j.ID,
		&j.Title,
		&j.Body,
		&j.AuthorID,
		&j.AuthorNickname,
		&j.Rating,
		&j.TimesRated,
		&j.Created,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("joke", strconv.FormatInt(id, 10))
		}
		return nil, translateError(fmt.Errorf("sqlite: getting joke %d: %w", id, err))
	}

	return &j, nil
}

// UpdateJoke rewrites title and body. Author, rating and created are
// immutable through this path.
func (db *DB) UpdateJoke(ctx context.Context, joke *model.Joke) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE jokes SET title = ?, body = ? WHERE id = ?`,
		joke.Title,
		joke.Body,
		joke.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return duplicateTitle()
		}
		return translateError(fmt.Errorf("sqlite: updating joke %d: %w", joke.ID, err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("joke", strconv.FormatInt(joke.ID, 10))
	}

	return nil
}

// TitleTaken reports whether authorID already has a joke called title,
// ignoring the joke with ID excludeID (pass 0 when creating).
func (db *DB) TitleTaken(ctx context.Context, authorID, title string, excludeID int64) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM jokes WHERE author_id = ? AND title = ? AND id != ?)`,
		authorID, title, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, translateError(fmt.Errorf("sqlite: checking title for %s: %w", authorID, err))
	}
	return exists, nil
}

// ListByAuthor returns authorID's jokes, or everyone else's when excludeSelf is set.
func (db *DB) ListByAuthor(ctx context.Context, authorID string, excludeSelf bool, opts repository.ListOptions) ([]model.Joke, error) {
	opts = repository.NewListOptions(opts.Limit, opts.Offset)

	where := ` WHERE j.author_id = ?`
	if excludeSelf {
		where = ` WHERE j.author_id != ?`
	}

	return db.queryJokes(ctx, jokeSelect+where+jokeOrder, authorID, opts.Limit, opts.Offset)
}

// ListAccessible returns the jokes userID wrote plus the ones they have
// already paid to view, in one parameterized query.
func (db *DB) ListAccessible(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Joke, error) {
	opts = repository.NewListOptions(opts.Limit, opts.Offset)

	return db.queryJokes(ctx,
		jokeSelect+`
		 WHERE j.author_id = ?
		    OR j.id IN (SELECT joke_id FROM viewed_jokes WHERE user_id = ?)`+jokeOrder,
		userID, userID, opts.Limit, opts.Offset,
	)
}

func (db *DB) queryJokes(ctx context.Context, query string, args ...any) ([]model.Joke, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(fmt.Errorf("sqlite: listing jokes: %w", err))
	}
	defer rows.Close()

	jokes := make([]model.Joke, 0)
	for rows.Next() {
		var j model.Joke
		if err := rows.Scan(
			&j.ID, &j.Title, &j.Body, &j.AuthorID, &j.AuthorNickname,
			&j.Rating, &j.TimesRated, &j.Created,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning joke row: %w", err)
		}
		jokes = append(jokes, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating jokes: %w", err)
	}

	return jokes, nil
}
