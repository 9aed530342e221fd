// Package wire implements the binary message format shared by condkv
// clients and servers.
//
// Every request and every response is one Message. Fields are written in
// a fixed order, big-endian:
//
//	kind          int32   REGISTER..RESPONSE ordinal
//	key           uint16 length + bytes   (empty = absent)
//	data          int32 length + bytes    (0 = absent)
//	payload       uint16 length + bytes   (empty = absent)
//	success       1 byte
//	error_message uint16 length + bytes   (empty = absent)
//	reply_to      int32   call kind answered by a RESPONSE
//	seq           uint32  correlation id (0 = none)
//
// There is no outer length prefix: a frame ends after the seq field.
// Encoder is safe for concurrent use; Decoder is meant to be owned by a
// single reader goroutine.
package wire
