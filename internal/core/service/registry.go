package service

import (
	"container/list"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yndnr/condkv/internal/core/domain"
)

// DefaultMaxConcurrentSessions bounds simultaneous logged-in users.
const DefaultMaxConcurrentSessions = 2

// RegistryConfig holds configuration for SessionRegistry.
type RegistryConfig struct {
	// MaxConcurrentSessions is the admission cap (default: 2).
	MaxConcurrentSessions int

	// Argon2 sets the verifier cost for new accounts.
	Argon2 Argon2Params
}

// DefaultRegistryConfig returns default configuration.
func DefaultRegistryConfig() *RegistryConfig {
	return &RegistryConfig{
		MaxConcurrentSessions: DefaultMaxConcurrentSessions,
		Argon2:                DefaultArgon2Params(),
	}
}

// SessionRegistry owns user accounts and the connection-to-user bindings,
// and bounds how many sessions may be active at once.
//
// Logins beyond the cap wait in FIFO order. Ending a session wakes exactly
// one waiter. A login attempt that fails after admission gives its slot
// back, so failures never consume capacity.
type SessionRegistry struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
	bindings map[domain.ConnID]string
	active   int
	max      int
	waiters  *list.List // of chan struct{}
	argon2   Argon2Params
}

// NewSessionRegistry creates a new SessionRegistry.
func NewSessionRegistry(config *RegistryConfig) *SessionRegistry {
	if config == nil {
		config = DefaultRegistryConfig()
	}
	max := config.MaxConcurrentSessions
	if max <= 0 {
		max = DefaultMaxConcurrentSessions
	}

	return &SessionRegistry{
		accounts: make(map[string]*domain.Account),
		bindings: make(map[domain.ConnID]string),
		max:      max,
		waiters:  list.New(),
		argon2:   config.Argon2.withDefaults(),
	}
}

// CreateAccount registers a new user.
func (r *SessionRegistry) CreateAccount(ctx context.Context, username, password string) error {
	if err := ctx.Err(); err != nil {
		return domain.ErrOperationInterrupted.WithCause(err)
	}
	if strings.TrimSpace(username) == "" || password == "" {
		return domain.ErrMalformedCredentials.WithDetails("username and password are required")
	}

	r.mu.RLock()
	_, exists := r.accounts[username]
	r.mu.RUnlock()
	if exists {
		return domain.ErrAccountExists.WithDetails(username)
	}

	verifier, err := HashPassword(password, r.argon2)
	if err != nil {
		return domain.ErrInternalServer.WithCause(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check: a concurrent registration may have won while hashing.
	if _, exists := r.accounts[username]; exists {
		return domain.ErrAccountExists.WithDetails(username)
	}
	r.accounts[username] = &domain.Account{
		Username:  username,
		Verifier:  verifier,
		CreatedAt: time.Now(),
	}
	return nil
}

// Authenticate logs username in on connID.
//
// The password is checked first, off-lock. The call then waits while the
// cap is reached and, once a slot is free, applies the result in the same
// critical section that marks the account logged in and counts the
// session. A failed attempt never holds a slot, but like a successful one
// it reports only after a slot was available. A connection that already
// holds a session is rejected at once. If ctx ends while waiting the error
// wraps domain.ErrOperationInterrupted.
func (r *SessionRegistry) Authenticate(ctx context.Context, username, password string, connID domain.ConnID) (*domain.Account, error) {
	r.mu.RLock()
	_, bound := r.bindings[connID]
	acct := r.accounts[username]
	r.mu.RUnlock()
	if bound {
		return nil, domain.ErrAlreadyLoggedIn.WithDetails("connection already has a session")
	}

	var verifier string
	if acct != nil {
		verifier = acct.Verifier
	}
	ok := acct != nil && VerifyPassword(password, verifier)

	r.mu.Lock()
	defer r.mu.Unlock()

	woken := false
	for r.active >= r.max {
		if err := r.waitLocked(ctx); err != nil {
			return nil, err
		}
		woken = true
	}

	// A wake that does not end in a login is handed to the next waiter;
	// the slot it announced is still free.
	if _, bound := r.bindings[connID]; bound {
		r.passWakeLocked(woken)
		return nil, domain.ErrAlreadyLoggedIn.WithDetails("connection already has a session")
	}
	acct = r.accounts[username]
	if !ok || acct == nil || acct.Verifier != verifier {
		r.passWakeLocked(woken)
		return nil, domain.ErrAuthenticationFailed
	}
	if acct.LoggedIn {
		r.passWakeLocked(woken)
		return nil, domain.ErrAlreadyLoggedIn.WithDetails(username)
	}

	acct.LoggedIn = true
	r.active++
	r.bindings[connID] = username
	return acct.Snapshot(), nil
}

func (r *SessionRegistry) passWakeLocked(woken bool) {
	if woken {
		r.signalOneLocked()
	}
}

// waitLocked parks the caller until a slot is released or ctx ends.
// r.mu is held on entry and on return.
func (r *SessionRegistry) waitLocked(ctx context.Context) error {
	ch := make(chan struct{}, 1)
	elem := r.waiters.PushBack(ch)
	r.mu.Unlock()

	signalled := false
	select {
	case <-ch:
		signalled = true
	case <-ctx.Done():
	}

	r.mu.Lock()
	if err := ctx.Err(); err != nil {
		if !signalled {
			select {
			case <-ch:
				signalled = true
			default:
				r.waiters.Remove(elem)
			}
		}
		if signalled {
			// Signalled and cancelled at once: hand the wake on.
			r.signalOneLocked()
		}
		return domain.ErrOperationInterrupted.WithCause(err)
	}
	return nil
}

// releaseSlotLocked gives back one admission slot.
func (r *SessionRegistry) releaseSlotLocked() {
	r.active--
	r.signalOneLocked()
}

// signalOneLocked wakes the oldest waiter, if any. The woken waiter is
// removed from the queue here so it cannot be signalled twice.
func (r *SessionRegistry) signalOneLocked() {
	front := r.waiters.Front()
	if front == nil {
		return
	}
	ch := r.waiters.Remove(front).(chan struct{})
	ch <- struct{}{}
}

// EndSession unbinds connID and frees its slot. It returns the username
// that was logged in, or false if connID had no session.
func (r *SessionRegistry) EndSession(connID domain.ConnID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.bindings[connID]
	if !ok {
		return "", false
	}
	delete(r.bindings, connID)
	if acct := r.accounts[username]; acct != nil {
		acct.LoggedIn = false
	}
	r.releaseSlotLocked()
	return username, true
}

// AccountForConnection returns the user logged in on connID.
func (r *SessionRegistry) AccountForConnection(connID domain.ConnID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	username, ok := r.bindings[connID]
	return username, ok
}

// RemoveAccount deletes an account that has no active session.
func (r *SessionRegistry) RemoveAccount(username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.accounts[username]
	if !ok {
		return domain.ErrAccountNotFound.WithDetails(username)
	}
	if acct.LoggedIn {
		return domain.ErrAccountInUse.WithDetails(username)
	}
	delete(r.accounts, username)
	return nil
}

// ActiveSessions returns the number of logged-in accounts.
func (r *SessionRegistry) ActiveSessions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// WaitingLogins returns the number of logins waiting for a slot.
func (r *SessionRegistry) WaitingLogins() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.waiters.Len()
}

// MaxSessions returns the admission cap.
func (r *SessionRegistry) MaxSessions() int {
	return r.max
}

// AccountCount returns the number of registered accounts.
func (r *SessionRegistry) AccountCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts)
}

// ListUsernames returns all usernames in sorted order.
func (r *SessionRegistry) ListUsernames() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.accounts))
	for name := range r.accounts {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}
