package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/master-of-jokes/internal/apperror"
	"github.com/sakif/master-of-jokes/internal/model"
	"github.com/sakif/master-of-jokes/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// Email is nullable in the table so that several GitHub accounts without a
// public email can coexist under the UNIQUE constraint; the model uses "".
const userColumns = `id, nickname, COALESCE(email, ''), password_hash, github_id,
	joke_balance, created_at, updated_at`

// Create inserts a new registered user. ID and timestamps are filled in on
// the caller's struct. A taken nickname or email is an apperror.ErrConflict.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.JokeBalance = 0
	user.ViewedJokes = model.NewJokeSet()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, nickname, email, password_hash, github_id, joke_balance, created_at, updated_at)
		 VALUES (?, ?, NULLIF(?, ''), ?, ?, 0, ?, ?)`,
		user.ID,
		user.Nickname,
		user.Email,
		user.PasswordHash,
		user.GitHubID,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict(fmt.Sprintf("User %s is already registered.", registeredName(user)))
		}
		return translateError(fmt.Errorf("sqlite: inserting user %q: %w", user.Nickname, err))
	}

	return nil
}

func registeredName(user *model.User) string {
	if user.Email != "" {
		return user.Email
	}
	return user.Nickname
}

// Upsert inserts or refreshes a user keyed by GitHub ID.
//
// An existing account keeps its ID, nickname and balance; only the email is
// refreshed. A new account takes its nickname from the caller (the GitHub login).
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	if user.GitHubID == nil {
		return fmt.Errorf("sqlite: upsert requires a GitHub ID")
	}

	existing, err := db.getUser(ctx, `github_id = ?`, *user.GitHubID)
	if err == nil {
		existing.Email = user.Email
		existing.UpdatedAt = time.Now().UTC()
		_, err = db.conn.ExecContext(ctx,
			`UPDATE users SET email = NULLIF(?, ''), updated_at = ? WHERE id = ?`,
			existing.Email, existing.UpdatedAt, existing.ID,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.Conflict(fmt.Sprintf("User %s is already registered.", existing.Email))
			}
			return translateError(fmt.Errorf("sqlite: updating user %s: %w", existing.ID, err))
		}
		*user = *existing
		return nil
	}
	if err != sql.ErrNoRows {
		return err
	}

	return db.Create(ctx, user)
}

// GetUserByID retrieves a user, including the set of jokes they have viewed.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := db.getUser(ctx, `id = ?`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, err
	}
	return u, nil
}

// GetByNickname looks a user up by exact (case-sensitive) nickname.
func (db *DB) GetByNickname(ctx context.Context, nickname string) (*model.User, error) {
	u, err := db.getUser(ctx, `nickname = ?`, nickname)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", nickname)
		}
		return nil, err
	}
	return u, nil
}

// GetByEmail looks a user up by exact (case-sensitive) email.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := db.getUser(ctx, `email = ?`, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, err
	}
	return u, nil
}

// getUser runs one of the fixed lookups above. where is always a constant
// from this file; arg is bound, never interpolated.
func (db *DB) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var (
		u        model.User
		githubID sql.NullInt64
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where,
		arg,
	).Scan(
		&u.ID,
		&u.Nickname,
		&u.Email,
		&u.PasswordHash,
		&githubID,
		&u.JokeBalance,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, translateError(fmt.Errorf("sqlite: getting user: %w", err))
	}
	if githubID.Valid {
		id := githubID.Int64
		u.GitHubID = &id
	}

	viewed, err := db.viewedJokes(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.ViewedJokes = viewed

	return &u, nil
}

// viewedJokes loads the user's viewed set. This is the only place the
// viewed_jokes rows are turned into a model.JokeSet.
func (db *DB) viewedJokes(ctx context.Context, userID string) (model.JokeSet, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT joke_id FROM viewed_jokes WHERE user_id = ?`, userID)
	if err != nil {
		return nil, translateError(fmt.Errorf("sqlite: listing viewed jokes for %s: %w", userID, err))
	}
	defer rows.Close()

	set := model.NewJokeSet()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning viewed joke: %w", err)
		}
		set.Add(id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating viewed jokes: %w", err)
	}

	return set, nil
}
