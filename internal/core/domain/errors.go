package domain

import "errors"

// DomainError is a catalogued failure. Codes have the form
// CKV-<CATEGORY>-<NNNN>; the numeric part mirrors the closest HTTP status.
// errors.Is matches two DomainErrors by code, so copies made with
// WithDetails or WithCause still match their sentinel.
type DomainError struct {
	Code    string
	Message string
	Details string
	Cause   error
}

// NewDomainError creates a catalogue entry.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

func (e *DomainError) Error() string {
	return "[" + e.Code + "] " + e.Describe()
}

// Describe returns the message and details without the code.
func (e *DomainError) Describe() string {
	if e.Details == "" {
		return e.Message
	}
	return e.Message + ": " + e.Details
}

// WireText renders the error for a response's error_message field:
// "CODE message[: details]".
func (e *DomainError) WireText() string {
	return e.Code + " " + e.Describe()
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && e.Code == t.Code
}

// WithDetails returns a copy carrying details.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy wrapping cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := *e
	c.Cause = cause
	return &c
}

// AsDomainError returns the first DomainError in err's chain. Errors
// outside the catalogue yield ErrInternalServer and false.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return ErrInternalServer, false
}

// CodeOf returns the catalogue code in err's chain, or "" if there is none.
func CodeOf(err error) string {
	if de, ok := AsDomainError(err); ok {
		return de.Code
	}
	return ""
}

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidKey indicates a blank or oversized key.
	ErrInvalidKey = NewDomainError("CKV-ARG-4001", "invalid key")

	// ErrInvalidValue indicates an empty or oversized value.
	ErrInvalidValue = NewDomainError("CKV-ARG-4002", "invalid value")

	// ErrMalformedCredentials indicates a payload that is not "username:password".
	ErrMalformedCredentials = NewDomainError("CKV-ARG-4003", "malformed credentials")

	// ErrMalformedPairs indicates a MULTIPUT body that is not "k=v,k=v".
	ErrMalformedPairs = NewDomainError("CKV-ARG-4004", "malformed key-value pairs")

	// ErrMalformedKeyList indicates a MULTIGET body with no usable key.
	ErrMalformedKeyList = NewDomainError("CKV-ARG-4005", "malformed key list")
)

// ============================================================================
// Account Errors (ACCT)
// ============================================================================

var (
	// ErrAccountExists indicates the username is already registered.
	ErrAccountExists = NewDomainError("CKV-ACCT-4090", "username already exists")

	// ErrAccountNotFound indicates the username is not registered.
	ErrAccountNotFound = NewDomainError("CKV-ACCT-4040", "account not found")

	// ErrAccountInUse indicates the account has a live session.
	ErrAccountInUse = NewDomainError("CKV-ACCT-4091", "account has an active session")
)

// ============================================================================
// Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrAuthenticationFailed covers unknown users and wrong passwords alike.
	ErrAuthenticationFailed = NewDomainError("CKV-AUTH-4010", "authentication failed")

	// ErrAlreadyLoggedIn indicates the account or connection already holds a session.
	ErrAlreadyLoggedIn = NewDomainError("CKV-AUTH-4011", "already logged in")

	// ErrNotLoggedIn indicates the connection has no session.
	ErrNotLoggedIn = NewDomainError("CKV-AUTH-4012", "not logged in")
)

// ============================================================================
// Key-Value Errors (KV)
// ============================================================================

var (
	// ErrKeyNotFound indicates the requested key is absent.
	ErrKeyNotFound = NewDomainError("CKV-KV-4040", "key not found")

	// ErrResultTooLarge indicates a MULTIGET result that does not fit in
	// one response frame.
	ErrResultTooLarge = NewDomainError("CKV-KV-4130", "result too large")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrBadRequest indicates a malformed or unknown request.
	ErrBadRequest = NewDomainError("CKV-SYS-4000", "bad request")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("CKV-SYS-4290", "too many requests")

	// ErrOperationInterrupted indicates a blocking operation was cancelled.
	ErrOperationInterrupted = NewDomainError("CKV-SYS-4990", "operation interrupted")

	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("CKV-SYS-5000", "internal server error")
)
