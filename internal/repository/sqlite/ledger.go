package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/master-of-jokes/internal/apperror"
	"github.com/sakif/master-of-jokes/internal/model"
	"github.com/sakif/master-of-jokes/internal/repository"
)

var _ repository.LedgerRepository = (*DB)(nil)

// CreditAuthored inserts joke and adds 1 to its author's balance in one
// transaction. joke.ID and joke.Created are filled in; balance is the
// author's balance after the credit.
func (db *DB) CreditAuthored(ctx context.Context, joke *model.Joke) (balance int, err error) {
	joke.Created = time.Now().UTC()

	err = db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO jokes (title, body, author_id, rating, times_rated, created)
			 VALUES (?, ?, ?, 0, 0, ?)`,
			joke.Title,
			joke.Body,
			joke.AuthorID,
			joke.Created,
		)
		if err != nil {
			switch {
			case isUniqueViolation(err):
				return duplicateTitle()
			case isForeignKeyViolation(err):
				return apperror.NotFound("user", joke.AuthorID)
			}
			return translateError(fmt.Errorf("sqlite: inserting joke: %w", err))
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("sqlite: reading joke id: %w", err)
		}
		joke.ID = id
		joke.Rating = 0
		joke.TimesRated = 0

		balance, err = adjustBalance(ctx, tx, joke.AuthorID, +1)
		return err
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// DebitDeleted deletes jokeID, which must belong to authorID, and takes 1
// from the author's balance, which is returned as it stands afterwards.
func (db *DB) DebitDeleted(ctx context.Context, jokeID int64, authorID string) (balance int, err error) {
	err = db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM jokes WHERE id = ? AND author_id = ?`, jokeID, authorID)
		if err != nil {
			return translateError(fmt.Errorf("sqlite: deleting joke %d: %w", jokeID, err))
		}

		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if n == 0 {
			return apperror.NotFound("joke", strconv.FormatInt(jokeID, 10))
		}

		balance, err = adjustBalance(ctx, tx, authorID, -1)
		return err
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// ChargeView is the check-and-update for a first view.
//
// INSERT OR IGNORE against the (user_id, joke_id) primary key is the
// membership test: it inserts exactly once per pair no matter how many
// callers race, and the balance moves only when it did. balance is the
// viewer's stored balance when the transaction commits, charged or not.
func (db *DB) ChargeView(ctx context.Context, viewerID string, jokeID int64) (charged bool, balance int, err error) {
	err = db.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM jokes WHERE id = ?)`, jokeID,
		).Scan(&exists); err != nil {
			return translateError(fmt.Errorf("sqlite: checking joke %d: %w", jokeID, err))
		}
		if !exists {
			return apperror.NotFound("joke", strconv.FormatInt(jokeID, 10))
		}

		result, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO viewed_jokes (user_id, joke_id, viewed_at) VALUES (?, ?, ?)`,
			viewerID, jokeID, time.Now().UTC(),
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return apperror.NotFound("user", viewerID)
			}
			return translateError(fmt.Errorf("sqlite: recording view of %d by %s: %w", jokeID, viewerID, err))
		}

		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if n == 0 {
			// already viewed
			balance, err = readBalance(ctx, tx, viewerID)
			return err
		}

		charged = true
		balance, err = adjustBalance(ctx, tx, viewerID, -1)
		return err
	})
	if err != nil {
		return false, 0, err
	}

	return charged, balance, nil
}

// AddRating adds value to the joke's rating total and counts one more rating.
func (db *DB) AddRating(ctx context.Context, jokeID int64, value int) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE jokes SET rating = rating + ?, times_rated = times_rated + 1 WHERE id = ?`,
		value, jokeID,
	)
	if err != nil {
		return translateError(fmt.Errorf("sqlite: rating joke %d: %w", jokeID, err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("joke", strconv.FormatInt(jokeID, 10))
	}

	return nil
}

// adjustBalance adds delta to userID's balance and returns the new value.
func adjustBalance(ctx context.Context, tx *sql.Tx, userID string, delta int) (int, error) {
	var balance int
	err := tx.QueryRowContext(ctx,
		`UPDATE users SET joke_balance = joke_balance + ?, updated_at = ? WHERE id = ?
		 RETURNING joke_balance`,
		delta, time.Now().UTC(), userID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperror.NotFound("user", userID)
	}
	if err != nil {
		return 0, translateError(fmt.Errorf("sqlite: adjusting balance of %s: %w", userID, err))
	}
	return balance, nil
}

func readBalance(ctx context.Context, tx *sql.Tx, userID string) (int, error) {
	var balance int
	err := tx.QueryRowContext(ctx,
		`SELECT joke_balance FROM users WHERE id = ?`, userID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperror.NotFound("user", userID)
	}
	if err != nil {
		return 0, translateError(fmt.Errorf("sqlite: reading balance of %s: %w", userID, err))
	}
	return balance, nil
}
