// Package cmap provides a sharded concurrent map.
//
// Keys are spread over a power-of-two number of shards, each guarded by
// its own RWMutex, so unrelated keys do not contend:
//
//	m := cmap.New[domain.ConnID, *Conn]()
//	m.Set(id, conn)
//	c, ok := m.Get(id)
//
// Range visits shards one at a time; it is not a consistent snapshot of
// the whole map.
package cmap
