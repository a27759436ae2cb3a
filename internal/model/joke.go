package model

import "time"

// Joke is a posted joke.
//
// Rating is the running sum of every score viewers submitted and TimesRated
// the number of submissions, so the average is Rating / TimesRated.
// AuthorNickname is filled by reads that join the users table; writes ignore it.
type Joke struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	AuthorID       string    `json:"authorId"`
	AuthorNickname string    `json:"authorNickname,omitempty"`
	Rating         int       `json:"rating"`
	TimesRated     int       `json:"timesRated"`
	Created        time.Time `json:"created"`
}

// AverageRating returns Rating / TimesRated, or 0 for an unrated joke.
func (j *Joke) AverageRating() float64 {
	if j.TimesRated == 0 {
		return 0
	}
	return float64(j.Rating) / float64(j.TimesRated)
}
