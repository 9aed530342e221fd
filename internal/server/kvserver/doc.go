// Package kvserver serves the condkv binary protocol.
//
// One goroutine serves each accepted connection and handles its requests
// strictly in order: decode one request, dispatch it, write exactly one
// RESPONSE. A decode or transport error ends the connection and, with it,
// any session bound to it.
//
// LOGIN (while the session cap is reached) and GETWHEN block without a
// timeout. While they wait the connection is watched for a disconnect, so
// a client that goes away releases its goroutine.
package kvserver
