package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
)

// Protocol limits.
const (
	// MaxTextLen is the largest key, payload or error message (uint16 prefix).
	MaxTextLen = math.MaxUint16

	// MaxDataLen limits the data field: one maximal value (1 MiB) plus
	// headroom for multi-pair encodings.
	MaxDataLen = 1<<20 + 64<<10
)

var (
	ErrProtocol      = errors.New("wire: protocol error")
	ErrLimitExceeded = errors.New("wire: limit exceeded")
)

// Encoder writes messages to a stream. Each message is assembled in
// memory and written with a single Write call, so concurrent Encode calls
// never interleave frames.
type Encoder struct {
	mu  sync.Mutex
	w   io.Writer
	buf []byte
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w, buf: make([]byte, 0, 512)}
}

// Encode writes m to the underlying stream.
func (e *Encoder) Encode(m *Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	buf, err := AppendMessage(e.buf[:0], m)
	if err != nil {
		return err
	}
	// Keep small buffers around, drop large ones.
	if cap(buf) <= 64<<10 {
		e.buf = buf
	}
	if _, err := e.w.Write(buf); err != nil {
		return err
	}
	if f, ok := e.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// AppendMessage appends the encoding of m to buf.
func AppendMessage(buf []byte, m *Message) ([]byte, error) {
	if m == nil {
		return buf, fmt.Errorf("%w: nil message", ErrProtocol)
	}
	if !m.Kind.Valid() {
		return buf, fmt.Errorf("%w: invalid kind %d", ErrProtocol, int32(m.Kind))
	}
	replyTo := m.ReplyTo
	if replyTo == 0 && m.Kind != KindResponse {
		replyTo = m.Kind
	}
	if !replyTo.Valid() {
		return buf, fmt.Errorf("%w: invalid reply_to %d", ErrProtocol, int32(replyTo))
	}
	if len(m.Data) > MaxDataLen {
		return buf, fmt.Errorf("%w: data length %d exceeds limit %d", ErrLimitExceeded, len(m.Data), MaxDataLen)
	}

	var err error
	buf = binary.BigEndian.AppendUint32(buf, uint32(m.Kind))
	if buf, err = appendText(buf, "key", m.Key); err != nil {
		return buf, err
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(m.Data)))
	buf = append(buf, m.Data...)
	if buf, err = appendText(buf, "payload", m.Payload); err != nil {
		return buf, err
	}
	if m.Success {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	if buf, err = appendText(buf, "error_message", m.ErrorMessage); err != nil {
		return buf, err
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(replyTo))
	buf = binary.BigEndian.AppendUint32(buf, m.Seq)
	return buf, nil
}

func appendText(buf []byte, field, s string) ([]byte, error) {
	if len(s) > MaxTextLen {
		return buf, fmt.Errorf("%w: %s length %d exceeds limit %d", ErrLimitExceeded, field, len(s), MaxTextLen)
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...), nil
}

// Decoder reads messages from a stream.
type Decoder struct {
	r       *bufio.Reader
	scratch [4]byte
}

// NewDecoder returns a Decoder reading from r. A *bufio.Reader is used
// as is, so callers may keep peeking at it between messages.
func NewDecoder(r io.Reader) *Decoder {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Decoder{r: br}
}

// Decode reads the next message. It returns io.EOF if the stream ends
// cleanly before a message starts and io.ErrUnexpectedEOF if it ends
// inside one.
func (d *Decoder) Decode() (*Message, error) {
	if _, err := io.ReadFull(d.r, d.scratch[:4]); err != nil {
		return nil, err
	}
	m := &Message{Kind: Kind(int32(binary.BigEndian.Uint32(d.scratch[:4])))}
	if !m.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %d", ErrProtocol, int32(m.Kind))
	}

	var err error
	if m.Key, err = d.readText(); err != nil {
		return nil, err
	}
	if m.Data, err = d.readData(); err != nil {
		return nil, err
	}
	if m.Payload, err = d.readText(); err != nil {
		return nil, err
	}
	b, err := d.r.ReadByte()
	if err != nil {
		return nil, unexpected(err)
	}
	switch b {
	case 0:
	case 1:
		m.Success = true
	default:
		return nil, fmt.Errorf("%w: invalid boolean %d", ErrProtocol, b)
	}
	if m.ErrorMessage, err = d.readText(); err != nil {
		return nil, err
	}
	if err := d.readFull(d.scratch[:4]); err != nil {
		return nil, err
	}
	m.ReplyTo = Kind(int32(binary.BigEndian.Uint32(d.scratch[:4])))
	if !m.ReplyTo.Valid() {
		return nil, fmt.Errorf("%w: unknown reply_to %d", ErrProtocol, int32(m.ReplyTo))
	}
	if err := d.readFull(d.scratch[:4]); err != nil {
		return nil, err
	}
	m.Seq = binary.BigEndian.Uint32(d.scratch[:4])
	return m, nil
}

func (d *Decoder) readText() (string, error) {
	if err := d.readFull(d.scratch[:2]); err != nil {
		return "", err
	}
	n := int(binary.BigEndian.Uint16(d.scratch[:2]))
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if err := d.readFull(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (d *Decoder) readData() ([]byte, error) {
	if err := d.readFull(d.scratch[:4]); err != nil {
		return nil, err
	}
	n := int32(binary.BigEndian.Uint32(d.scratch[:4]))
	if n < 0 {
		return nil, fmt.Errorf("%w: negative data length %d", ErrProtocol, n)
	}
	if n == 0 {
		return nil, nil
	}
	if n > MaxDataLen {
		return nil, fmt.Errorf("%w: data length %d exceeds limit %d", ErrLimitExceeded, n, MaxDataLen)
	}
	buf := make([]byte, n)
	if err := d.readFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// readFull reads inside a frame, where a clean EOF is still a truncation.
func (d *Decoder) readFull(buf []byte) error {
	_, err := io.ReadFull(d.r, buf)
	return unexpected(err)
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
