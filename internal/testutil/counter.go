package testutil

import "sync"

// Counter records how often each creator and rule of a family ran.
type Counter struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

func (c *Counter) inc(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
}

func (c *Counter) get(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

// Creates returns how often the creator for kind ran.
func (c *Counter) Creates(kind string) int { return c.get("create:" + kind) }

// Converts returns how often rule (named "from->to") produced a new instance.
func (c *Counter) Converts(rule string) int { return c.get("convert:" + rule) }

// Updates returns how often rule refreshed an existing instance in place.
func (c *Counter) Updates(rule string) int { return c.get("update:" + rule) }

// Runs returns Converts plus Updates for rule.
func (c *Counter) Runs(rule string) int { return c.Converts(rule) + c.Updates(rule) }

// Reset zeroes every count.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = make(map[string]int)
}
