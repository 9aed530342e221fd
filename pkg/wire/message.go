package wire

import (
	"fmt"
	"strings"
)

// Kind is the operation category of a message.
type Kind int32

// Kinds, in wire ordinal order. The ordinals are part of the protocol.
const (
	KindRegister Kind = iota
	KindLogin
	KindLogout
	KindPut
	KindGet
	KindMultiPut
	KindMultiGet
	KindGetWhen
	KindResponse
)

var kindNames = [...]string{
	KindRegister: "REGISTER",
	KindLogin:    "LOGIN",
	KindLogout:   "LOGOUT",
	KindPut:      "PUT",
	KindGet:      "GET",
	KindMultiPut: "MULTIPUT",
	KindMultiGet: "MULTIGET",
	KindGetWhen:  "GETWHEN",
	KindResponse: "RESPONSE",
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k >= KindRegister && k <= KindResponse
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("KIND(%d)", int32(k))
	}
	return kindNames[k]
}

// ParseKind converts a kind name (case-insensitive) to a Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrProtocol, s)
}

// Message is a single request or response.
//
// Request conventions:
//   - REGISTER, LOGIN: Payload = "username:password"
//   - PUT: Key, Data, Payload = username
//   - GET: Key, Payload = username
//   - MULTIPUT: Payload = username, Data = "k1=v1,k2=v2"
//   - MULTIGET: Payload = username, Data = "k1,k2"
//   - GETWHEN: Key = target key, Payload = condition key, Data = condition value
//
// A RESPONSE carries Success plus either Data (read results) or Payload
// (status text), and echoes ReplyTo and Seq from the request it answers.
// A MULTIGET response's Data is an entry list (see AppendEntries).
type Message struct {
	Kind         Kind
	Key          string
	Data         []byte
	Payload      string
	Success      bool
	ErrorMessage string
	ReplyTo      Kind
	Seq          uint32
}

// NewRequest returns a request message of the given kind.
func NewRequest(kind Kind) *Message {
	return &Message{Kind: kind, ReplyTo: kind}
}

// NewResponse returns an empty RESPONSE answering req.
func NewResponse(req *Message) *Message {
	resp := &Message{Kind: KindResponse, ReplyTo: KindResponse}
	if req != nil {
		resp.ReplyTo = req.Kind
		resp.Seq = req.Seq
	}
	return resp
}

// CallKind returns the call kind a message belongs to: the answered kind
// for responses, the message kind otherwise.
func (m *Message) CallKind() Kind {
	if m.Kind == KindResponse {
		return m.ReplyTo
	}
	return m.Kind
}

func (m *Message) String() string {
	var sb strings.Builder
	sb.WriteString("Message[kind=")
	sb.WriteString(m.Kind.String())
	if m.Kind == KindResponse {
		sb.WriteString(", reply_to=")
		sb.WriteString(m.ReplyTo.String())
	}
	if m.Seq != 0 {
		fmt.Fprintf(&sb, ", seq=%d", m.Seq)
	}
	if m.Key != "" {
		sb.WriteString(", key=")
		sb.WriteString(m.Key)
	}
	if len(m.Data) > 0 {
		fmt.Fprintf(&sb, ", data=%dB", len(m.Data))
	}
	if m.Payload != "" && m.Kind != KindRegister && m.Kind != KindLogin {
		sb.WriteString(", payload=")
		sb.WriteString(m.Payload)
	}
	fmt.Fprintf(&sb, ", success=%t", m.Success)
	if m.ErrorMessage != "" {
		sb.WriteString(", error=")
		sb.WriteString(m.ErrorMessage)
	}
	sb.WriteString("]")
	return sb.String()
}
