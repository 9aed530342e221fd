package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"sync"

	"github.com/yndnr/condkv/pkg/wire"
)

// ErrNotFound is matched by a ResponseError for a missing key.
var ErrNotFound = errors.New("condkv: key not found")

const codeKeyNotFound = "CKV-KV-4040"

// ResponseError is a failure RESPONSE returned by the server.
type ResponseError struct {
	Op      wire.Kind
	Status  string // server status text, e.g. "Key not found"
	Code    string // error code, e.g. "CKV-KV-4040"
	Message string // error description that followed the code
}

func (e *ResponseError) Error() string {
	var sb strings.Builder
	sb.WriteString("condkv: ")
	sb.WriteString(e.Op.String())
	sb.WriteString(" failed")
	if e.Status != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Status)
	}
	if e.Code != "" {
		sb.WriteString(" (")
		sb.WriteString(e.Code)
		if e.Message != "" {
			sb.WriteString(" ")
			sb.WriteString(e.Message)
		}
		sb.WriteString(")")
	}
	return sb.String()
}

// Is makes errors.Is(err, ErrNotFound) work for missing keys.
func (e *ResponseError) Is(target error) bool {
	return target == ErrNotFound && e.Code == codeKeyNotFound
}

func newResponseError(op wire.Kind, resp *wire.Message) *ResponseError {
	code, msg, _ := strings.Cut(resp.ErrorMessage, " ")
	return &ResponseError{Op: op, Status: resp.Payload, Code: code, Message: msg}
}

// Client is a typed condkv client over one connection. Its methods are
// safe for concurrent use; requests are correlated by sequence number.
type Client struct {
	router *Router

	mu   sync.RWMutex
	user string
}

// Dial connects to a condkv server. addr is host:port for TCP or
// unix:/path/to.sock for a local socket.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	network, address := "tcp", addr
	if path, ok := strings.CutPrefix(addr, "unix:"); ok {
		network, address = "unix", path
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(conn, opts...), nil
}

// New wraps an established connection and starts its router.
func New(conn io.ReadWriteCloser, opts ...Option) *Client {
	r := NewRouter(conn, opts...)
	r.Start()
	return &Client{router: r}
}

// Router exposes the underlying router for raw message exchange.
func (c *Client) Router() *Router {
	return c.router
}

// User returns the username of the current session, or "".
func (c *Client) User() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

func (c *Client) call(ctx context.Context, req *wire.Message) (*wire.Message, error) {
	resp, err := c.router.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, newResponseError(req.Kind, resp)
	}
	return resp, nil
}

func (c *Client) request(kind wire.Kind) *wire.Message {
	m := wire.NewRequest(kind)
	m.Payload = c.User()
	return m
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, username, password string) error {
	req := wire.NewRequest(wire.KindRegister)
	req.Payload = username + ":" + password
	_, err := c.call(ctx, req)
	return err
}

// Login starts a session. It may block while the server is at its
// session cap.
func (c *Client) Login(ctx context.Context, username, password string) error {
	req := wire.NewRequest(wire.KindLogin)
	req.Payload = username + ":" + password
	if _, err := c.call(ctx, req); err != nil {
		return err
	}

	c.mu.Lock()
	c.user = username
	c.mu.Unlock()
	return nil
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.call(ctx, wire.NewRequest(wire.KindLogout)); err != nil {
		return err
	}

	c.mu.Lock()
	c.user = ""
	c.mu.Unlock()
	return nil
}

// Put stores value under key.
func (c *Client) Put(ctx context.Context, key string, value []byte) error {
	req := c.request(wire.KindPut)
	req.Key = key
	req.Data = value
	_, err := c.call(ctx, req)
	return err
}

// Get returns the value under key. A missing key yields an error matching
// ErrNotFound.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	req := c.request(wire.KindGet)
	req.Key = key
	resp, err := c.call(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// MultiPut stores all pairs in one request. Keys and values travel as
// "k=v" text, so neither may contain ',' and keys may not contain '='.
func (c *Client) MultiPut(ctx context.Context, pairs map[string]string) error {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(pairs[k])
	}

	req := c.request(wire.KindMultiPut)
	req.Data = []byte(sb.String())
	_, err := c.call(ctx, req)
	return err
}

// MultiGet returns the subset of keys that exist.
func (c *Client) MultiGet(ctx context.Context, keys ...string) (map[string][]byte, error) {
	req := c.request(wire.KindMultiGet)
	req.Data = []byte(strings.Join(keys, ","))
	resp, err := c.call(ctx, req)
	if err != nil {
		return nil, err
	}
	entries, err := wire.DecodeEntries(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("multiget result: %w", err)
	}
	out := make(map[string][]byte, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	return out, nil
}

// GetWhen blocks until condKey holds condValue and returns the value of
// key at that moment. The boolean is false if key does not exist.
func (c *Client) GetWhen(ctx context.Context, key, condKey string, condValue []byte) ([]byte, bool, error) {
	req := wire.NewRequest(wire.KindGetWhen)
	req.Key = key
	req.Payload = condKey
	req.Data = condValue
	resp, err := c.call(ctx, req)
	if err != nil {
		return nil, false, err
	}
	if resp.Data == nil {
		return nil, false, nil
	}
	return resp.Data, true, nil
}

// Close closes the connection. The server ends any session implicitly.
func (c *Client) Close() error {
	return c.router.Close()
}
