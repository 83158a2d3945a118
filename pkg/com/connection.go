package com

import "sync"

// Connection links one signal to one slot.
// After Disconnect the connection is inert: Disconnect and Block are no-ops.
type Connection struct {
	sig   *Signal
	slot  *Slot
	nargs int // resolved at connect time

	mu      sync.Mutex
	blocks  int
	expired bool
}

// Signal returns the emitting side.
func (c *Connection) Signal() *Signal { return c.sig }

// Slot returns the receiving side.
func (c *Connection) Slot() *Slot { return c.slot }

// Disconnect removes the connection from its signal. It is idempotent.
func (c *Connection) Disconnect() {
	if c.Expired() {
		return
	}
	c.sig.remove(c)
}

// Expired reports whether the connection was disconnected.
func (c *Connection) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

func (c *Connection) expire() {
	c.mu.Lock()
	c.expired = true
	c.mu.Unlock()
}

// Enabled reports whether emits currently reach the slot.
func (c *Connection) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.expired && c.blocks == 0
}

// Block disables the connection until the returned blocker, and every other outstanding
// blocker of this connection, is reset.
func (c *Connection) Block() *Blocker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expired {
		return &Blocker{}
	}
	c.blocks++
	return &Blocker{conn: c}
}

func (c *Connection) unblock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.blocks > 0 {
		c.blocks--
	}
}

// Blocker is a token keeping a connection disabled.
type Blocker struct {
	once sync.Once
	conn *Connection
}

// Reset releases the blocker. It is idempotent.
func (b *Blocker) Reset() {
	b.once.Do(func() {
		if b.conn != nil {
			b.conn.unblock()
		}
	})
}
