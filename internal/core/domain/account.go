package domain

import "time"

// Account is a registered user.
//
// Verifier holds an encoded password hash and is never sent over the wire
// or logged. LoggedIn is true while a connection holds a session for the
// account; at most one session exists per account.
type Account struct {
	Username  string    `json:"username"`
	Verifier  string    `json:"-"`
	LoggedIn  bool      `json:"logged_in"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot returns a copy of the account without the verifier.
func (a *Account) Snapshot() *Account {
	return &Account{
		Username:  a.Username,
		LoggedIn:  a.LoggedIn,
		CreatedAt: a.CreatedAt,
	}
}
