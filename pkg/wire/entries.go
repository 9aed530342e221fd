package wire

import (
	"encoding/binary"
	"fmt"
)

// Entry is one key-value pair of a MULTIGET result.
type Entry struct {
	Key   string
	Value []byte
}

// EntriesSize returns the encoded size of entries.
func EntriesSize(entries []Entry) int {
	n := 0
	for _, e := range entries {
		n += 2 + len(e.Key) + 4 + len(e.Value)
	}
	return n
}

// AppendEntries appends the MULTIGET result encoding of entries to buf.
// Each entry is a uint16 key length, the key, a uint32 value length and
// the value, so keys and values may contain any byte.
func AppendEntries(buf []byte, entries []Entry) ([]byte, error) {
	for _, e := range entries {
		if len(e.Key) > MaxTextLen {
			return buf, fmt.Errorf("%w: entry key length %d exceeds limit %d", ErrLimitExceeded, len(e.Key), MaxTextLen)
		}
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(e.Key)))
		buf = append(buf, e.Key...)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(e.Value)))
		buf = append(buf, e.Value...)
	}
	return buf, nil
}

// DecodeEntries parses a MULTIGET result. Values alias data.
func DecodeEntries(data []byte) ([]Entry, error) {
	var entries []Entry
	for len(data) > 0 {
		if len(data) < 2 {
			return nil, fmt.Errorf("%w: truncated entry key length", ErrProtocol)
		}
		kl := int(binary.BigEndian.Uint16(data))
		data = data[2:]
		if len(data) < kl+4 {
			return nil, fmt.Errorf("%w: truncated entry key", ErrProtocol)
		}
		key := string(data[:kl])
		data = data[kl:]

		vl := binary.BigEndian.Uint32(data)
		data = data[4:]
		if uint64(len(data)) < uint64(vl) {
			return nil, fmt.Errorf("%w: truncated value for entry %q", ErrProtocol, key)
		}
		entries = append(entries, Entry{Key: key, Value: data[:vl:vl]})
		data = data[vl:]
	}
	return entries, nil
}
