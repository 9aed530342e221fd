// Package memory provides the in-memory key-value store for condkv.
//
// Store keeps opaque byte values under string keys and supports a
// conditional read, GetWhen, that blocks until another key holds a
// given value.
//
// Thread Safety:
//
// One RWMutex guards the whole store. Read operations use RLock, write
// operations and condition checks use Lock. GetWhen releases the lock
// while it waits.
package memory
