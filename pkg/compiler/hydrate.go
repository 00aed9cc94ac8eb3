package compiler

import (
	"github.com/kestrel-labs/promptc/internal/serialize"
)

// SetHydrationData installs a previously captured snapshot so the next
// reconcile seeds matching fibers' hook state from it instead of running
// fresh. A nil snapshot clears any pending
// hydration. Returns ErrAlreadyHydrating if a hydration is already active
// and not yet completed.
func (c *Compiler) SetHydrationData(snapshot *serialize.SerializedFiberNode) error {
	c.mu.Lock()
	if c.hydrating {
		c.mu.Unlock()
		return ErrAlreadyHydrating
	}
	if snapshot == nil {
		c.mu.Unlock()
		c.reconciler.SetHydration(nil, false)
		return nil
	}
	c.hydrating = true
	c.mu.Unlock()

	c.reconciler.SetHydration(serialize.Hydrate(snapshot), true)
	return nil
}

// CompleteHydration clears the active hydration snapshot after the first
// post-restore reconcile has run, so subsequent ticks render fresh.
func (c *Compiler) CompleteHydration() {
	c.mu.Lock()
	c.hydrating = false
	c.mu.Unlock()
	c.reconciler.SetHydration(nil, false)
}

// IsHydratingNow reports whether a hydration snapshot is currently
// installed and not yet completed.
func (c *Compiler) IsHydratingNow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hydrating
}
