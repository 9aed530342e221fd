package kvserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/yndnr/condkv/internal/core/domain"
	"github.com/yndnr/condkv/internal/core/service"
	"github.com/yndnr/condkv/internal/storage/memory"
	"github.com/yndnr/condkv/pkg/wire"
)

// Response status texts.
const (
	StatusRegistered      = "Registration successful"
	StatusUsernameTaken   = "Username already exists"
	StatusLoggedIn        = "Login successful"
	StatusAuthFailed      = "Authentication failed"
	StatusLoggedOut       = "Logged out successfully"
	StatusNotLoggedIn     = "User not logged in"
	StatusStored          = "Value stored successfully"
	StatusKeyNotFound     = "Key not found"
	StatusResultTooLarge  = "Result too large"
	StatusMultiPutDone    = "MultiPut completed"
	StatusInvalidKey      = "Invalid key format"
	StatusInvalidValue    = "Invalid value format or size"
	StatusInvalidRegister = "Invalid registration format"
	StatusInvalidLogin    = "Invalid login format"
	StatusInvalidMultiPut = "Invalid data for MultiPut"
	StatusInterrupted     = "Operation interrupted"
	StatusInvalidType     = "Invalid message type"
	StatusRateLimited     = "Rate limit exceeded"
	StatusInternalError   = "Internal server error"
)

const (
	actionSuccess = "SUCCESS"
	actionFailed  = "FAILED"
	anonymous     = "UNKNOWN"
)

// Dispatcher routes one decoded request to its handler and builds the
// single RESPONSE for it.
type Dispatcher struct {
	store    *memory.Store
	registry *service.SessionRegistry
	limiter  *service.RateLimiterRegistry
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher. limiter may be nil.
func NewDispatcher(store *memory.Store, registry *service.SessionRegistry, limiter *service.RateLimiterRegistry, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		store:    store,
		registry: registry,
		limiter:  limiter,
		logger:   log,
	}
}

// Handle serves req on connection c. It always returns a RESPONSE that
// echoes the request's kind and sequence number.
func (d *Dispatcher) Handle(ctx context.Context, c *Conn, req *wire.Message) *wire.Message {
	user, loggedIn := d.registry.AccountForConnection(c.id)

	if err := d.limiter.Allow(c.id); err != nil {
		d.logAction(ctx, c, userOrAnonymous(user, loggedIn), req.Kind, actionFailed, "rate limited")
		return failure(req, StatusRateLimited, err)
	}

	switch req.Kind {
	case wire.KindRegister:
		return d.handleRegister(ctx, c, req)
	case wire.KindLogin:
		return d.handleLogin(ctx, c, req)
	case wire.KindLogout:
		return d.handleLogout(ctx, c, req)
	case wire.KindResponse:
		d.logAction(ctx, c, userOrAnonymous(user, loggedIn), req.Kind, actionFailed, "response sent as request")
		return failure(req, StatusInvalidType, domain.ErrBadRequest.WithDetails("unexpected "+req.Kind.String()))
	}

	// Everything else needs a session.
	if !loggedIn {
		d.logAction(ctx, c, anonymous, req.Kind, actionFailed, "user not logged in")
		return failure(req, StatusNotLoggedIn, domain.ErrNotLoggedIn)
	}

	switch req.Kind {
	case wire.KindPut:
		return d.handlePut(ctx, c, user, req)
	case wire.KindGet:
		return d.handleGet(ctx, c, user, req)
	case wire.KindMultiPut:
		return d.handleMultiPut(ctx, c, user, req)
	case wire.KindMultiGet:
		return d.handleMultiGet(ctx, c, user, req)
	case wire.KindGetWhen:
		return d.handleGetWhen(ctx, c, user, req)
	default:
		d.logAction(ctx, c, user, req.Kind, actionFailed, "invalid message type")
		return failure(req, StatusInvalidType, domain.ErrBadRequest.WithDetails("unknown kind "+req.Kind.String()))
	}
}

func (d *Dispatcher) handleRegister(ctx context.Context, c *Conn, req *wire.Message) *wire.Message {
	creds, err := domain.ParseCredentials(req.Payload)
	if err != nil {
		d.logAction(ctx, c, anonymous, req.Kind, actionFailed, "invalid registration format")
		return failure(req, StatusInvalidRegister, err)
	}

	if err := d.registry.CreateAccount(ctx, creds.Username, creds.Password); err != nil {
		status := StatusInternalError
		switch {
		case errors.Is(err, domain.ErrAccountExists):
			status = StatusUsernameTaken
		case errors.Is(err, domain.ErrMalformedCredentials):
			status = StatusInvalidRegister
		case errors.Is(err, domain.ErrOperationInterrupted):
			status = StatusInterrupted
		}
		d.logAction(ctx, c, creds.Username, req.Kind, actionFailed, status)
		return failure(req, status, err)
	}

	d.logAction(ctx, c, creds.Username, req.Kind, actionSuccess, "user registered")
	return success(req, StatusRegistered)
}

func (d *Dispatcher) handleLogin(ctx context.Context, c *Conn, req *wire.Message) *wire.Message {
	creds, err := domain.ParseCredentials(req.Payload)
	if err != nil {
		d.logAction(ctx, c, anonymous, req.Kind, actionFailed, "invalid login format")
		return failure(req, StatusInvalidLogin, err)
	}

	wctx, stop := c.watch(ctx)
	_, err = d.registry.Authenticate(wctx, creds.Username, creds.Password, c.id)
	stop()
	if err != nil {
		status := StatusAuthFailed
		if errors.Is(err, domain.ErrOperationInterrupted) {
			status = StatusInterrupted
		}
		d.logAction(ctx, c, creds.Username, req.Kind, actionFailed, describe(err))
		return failure(req, status, err)
	}

	d.logAction(ctx, c, creds.Username, req.Kind, actionSuccess, "user logged in")
	return success(req, StatusLoggedIn)
}

func (d *Dispatcher) handleLogout(ctx context.Context, c *Conn, req *wire.Message) *wire.Message {
	user, ok := d.registry.EndSession(c.id)
	if !ok {
		d.logAction(ctx, c, anonymous, req.Kind, actionFailed, "user not logged in")
		return failure(req, StatusNotLoggedIn, domain.ErrNotLoggedIn)
	}
	d.logAction(ctx, c, user, req.Kind, actionSuccess, "user logged out")
	return success(req, StatusLoggedOut)
}

func (d *Dispatcher) handlePut(ctx context.Context, c *Conn, user string, req *wire.Message) *wire.Message {
	if err := domain.ValidateKey(req.Key); err != nil {
		d.logAction(ctx, c, user, req.Kind, actionFailed, "invalid key format")
		return failure(req, StatusInvalidKey, err)
	}
	if err := domain.ValidateValue(req.Data); err != nil {
		d.logAction(ctx, c, user, req.Kind, actionFailed, "invalid value format or size")
		return failure(req, StatusInvalidValue, err)
	}

	if err := d.store.Put(req.Key, req.Data); err != nil {
		d.logAction(ctx, c, user, req.Kind, actionFailed, describe(err))
		return failure(req, StatusInternalError, err)
	}

	d.logAction(ctx, c, user, req.Kind, actionSuccess, "key stored: "+req.Key)
	return success(req, StatusStored)
}

func (d *Dispatcher) handleGet(ctx context.Context, c *Conn, user string, req *wire.Message) *wire.Message {
	if err := domain.ValidateKey(req.Key); err != nil {
		d.logAction(ctx, c, user, req.Kind, actionFailed, "invalid key format")
		return failure(req, StatusInvalidKey, err)
	}

	value, ok := d.store.Get(req.Key)
	if !ok {
		d.logAction(ctx, c, user, req.Kind, actionFailed, "key not found: "+req.Key)
		return failure(req, StatusKeyNotFound, domain.ErrKeyNotFound)
	}

	d.logAction(ctx, c, user, req.Kind, actionSuccess, "key retrieved: "+req.Key)
	resp := success(req, "")
	resp.Data = value
	return resp
}

func (d *Dispatcher) handleMultiPut(ctx context.Context, c *Conn, user string, req *wire.Message) *wire.Message {
	pairs, err := domain.ParsePairs(string(req.Data))
	if err == nil {
		err = d.store.MultiPut(pairs)
	}
	if err != nil {
		d.logAction(ctx, c, user, req.Kind, actionFailed, describe(err))
		return failure(req, StatusInvalidMultiPut, err)
	}

	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	d.logAction(ctx, c, user, req.Kind, actionSuccess,
		fmt.Sprintf("stored %d pairs (%s)", len(keys), strings.Join(keys, ", ")))
	return success(req, StatusMultiPutDone)
}

func (d *Dispatcher) handleMultiGet(ctx context.Context, c *Conn, user string, req *wire.Message) *wire.Message {
	keys, err := domain.ParseKeys(string(req.Data))
	if err != nil {
		d.logAction(ctx, c, user, req.Kind, actionFailed, describe(err))
		return failure(req, StatusInvalidKey, err)
	}

	values := d.store.MultiGet(keys)
	entries := make([]wire.Entry, 0, len(values))
	for _, k := range keys {
		if v, ok := values[k]; ok {
			entries = append(entries, wire.Entry{Key: k, Value: v})
		}
	}

	if size := wire.EntriesSize(entries); size > wire.MaxDataLen {
		err := domain.ErrResultTooLarge.WithDetails(
			fmt.Sprintf("%d bytes for %d keys, limit %d", size, len(entries), wire.MaxDataLen))
		d.logAction(ctx, c, user, req.Kind, actionFailed, describe(err))
		return failure(req, StatusResultTooLarge, err)
	}
	data, err := wire.AppendEntries(make([]byte, 0, wire.EntriesSize(entries)), entries)
	if err != nil {
		d.logAction(ctx, c, user, req.Kind, actionFailed, err.Error())
		return failure(req, StatusInternalError, domain.ErrInternalServer.WithCause(err))
	}

	d.logAction(ctx, c, user, req.Kind, actionSuccess,
		fmt.Sprintf("retrieved %d of %d keys", len(entries), len(keys)))
	resp := success(req, fmt.Sprintf("Retrieved %d of %d keys", len(entries), len(keys)))
	resp.Data = data
	return resp
}

func (d *Dispatcher) handleGetWhen(ctx context.Context, c *Conn, user string, req *wire.Message) *wire.Message {
	target, condKey, condValue := req.Key, req.Payload, req.Data
	if err := domain.ValidateKey(target); err != nil {
		d.logAction(ctx, c, user, req.Kind, actionFailed, "invalid target key")
		return failure(req, StatusInvalidKey, err)
	}
	if err := domain.ValidateKey(condKey); err != nil {
		d.logAction(ctx, c, user, req.Kind, actionFailed, "invalid condition key")
		return failure(req, StatusInvalidKey, err)
	}
	if err := domain.ValidateValue(condValue); err != nil {
		d.logAction(ctx, c, user, req.Kind, actionFailed, "invalid condition value")
		return failure(req, StatusInvalidValue, err)
	}

	wctx, stop := c.watch(ctx)
	value, found, err := d.store.GetWhen(wctx, target, condKey, condValue)
	stop()
	if err != nil {
		status := StatusInternalError
		if errors.Is(err, domain.ErrOperationInterrupted) {
			status = StatusInterrupted
		}
		d.logAction(ctx, c, user, req.Kind, actionFailed, describe(err))
		return failure(req, status, err)
	}

	if !found {
		d.logAction(ctx, c, user, req.Kind, actionSuccess, "condition met, key absent: "+target)
		return success(req, StatusKeyNotFound)
	}
	d.logAction(ctx, c, user, req.Kind, actionSuccess, "key retrieved: "+target)
	resp := success(req, "")
	resp.Data = value
	return resp
}

// logAction writes the structured audit record for one request.
func (d *Dispatcher) logAction(ctx context.Context, c *Conn, user string, kind wire.Kind, status, details string) {
	level := slog.LevelInfo
	if status == actionFailed {
		level = slog.LevelWarn
	}
	d.logger.Log(ctx, level, "request",
		"conn_id", c.id.String(),
		"remote", c.RemoteAddr(),
		"user", user,
		"action", kind.String(),
		"status", status,
		"details", details,
	)
}

func userOrAnonymous(user string, ok bool) string {
	if !ok {
		return anonymous
	}
	return user
}

func success(req *wire.Message, status string) *wire.Message {
	resp := wire.NewResponse(req)
	resp.Success = true
	resp.Payload = status
	return resp
}

func failure(req *wire.Message, status string, err error) *wire.Message {
	resp := wire.NewResponse(req)
	resp.Success = false
	resp.Payload = status
	resp.ErrorMessage = errorText(err)
	return resp
}

// errorText renders err for the error_message field. Errors outside the
// catalogue are reported as internal errors.
func errorText(err error) string {
	de, _ := domain.AsDomainError(err)
	return de.WireText()
}

// describe is the log detail for a failed operation.
func describe(err error) string {
	if de, ok := domain.AsDomainError(err); ok {
		return de.Describe()
	}
	return err.Error()
}
