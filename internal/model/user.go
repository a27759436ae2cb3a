// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a registered account.
//
// JokeBalance is the user's credit: +1 for every joke they author, −1 the
// first time they view a joke somebody else wrote. ViewedJokes records which
// jokes have already been paid for so a second view is free.
//
// PasswordHash is empty for accounts created through GitHub sign-in; GitHubID
// is nil for accounts created through the register form.
type User struct {
	ID           string    `json:"id"`
	Nickname     string    `json:"nickname"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	GitHubID     *int64    `json:"githubId,omitempty"`
	JokeBalance  int       `json:"jokeBalance"`
	ViewedJokes  JokeSet   `json:"viewedJokes"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
