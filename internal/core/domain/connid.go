package domain

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ConnIDPrefix is the prefix for connection IDs.
const ConnIDPrefix = "conn-"

// ConnID identifies one accepted client connection for its whole lifetime.
// Session bindings are keyed by ConnID, never by the transport object.
type ConnID string

func (id ConnID) String() string { return string(id) }

var (
	connEntropyMu sync.Mutex
	connEntropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewConnID generates a connection ID.
// Format: conn-{ulid_lowercase}, 31 characters total.
func NewConnID() (ConnID, error) {
	connEntropyMu.Lock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), connEntropy)
	connEntropyMu.Unlock()
	if err != nil {
		return "", ErrInternalServer.WithCause(err)
	}
	return ConnID(ConnIDPrefix + strings.ToLower(id.String())), nil
}

// IsValidConnID checks if a string is a well-formed connection ID.
func IsValidConnID(id string) bool {
	id = strings.ToLower(id)
	if !strings.HasPrefix(id, ConnIDPrefix) {
		return false
	}

	// conn- (5) + ULID (26) = 31 characters
	if len(id) != 31 {
		return false
	}

	_, err := ulid.Parse(strings.ToUpper(id[len(ConnIDPrefix):]))
	return err == nil
}
