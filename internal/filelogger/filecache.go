package filelogger

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// fileCache caches open rotatingFile handles by destination filename.
// Every method here is called with the owning Sink's mutex already
// held, so it does no locking of its own. With maxOpenFiles <= 0 the
// cache is an unbounded map; otherwise it is LRU-bounded and closes
// the evicted handle, per spec.md §9's "offer an LRU bound as a
// configuration knob if needed."
type fileCache struct {
	unbounded map[string]*rotatingFile
	bounded   *lru.Cache[string, *rotatingFile]
}

func newFileCache(maxOpenFiles int) *fileCache {
	if maxOpenFiles <= 0 {
		return &fileCache{unbounded: make(map[string]*rotatingFile)}
	}
	c, _ := lru.NewWithEvict[string, *rotatingFile](maxOpenFiles, func(_ string, rf *rotatingFile) {
		rf.Close()
	})
	return &fileCache{bounded: c}
}

func (c *fileCache) get(name string) (*rotatingFile, bool) {
	if c.bounded != nil {
		return c.bounded.Get(name)
	}
	rf, ok := c.unbounded[name]
	return rf, ok
}

func (c *fileCache) put(name string, rf *rotatingFile) {
	if c.bounded != nil {
		c.bounded.Add(name, rf)
		return
	}
	c.unbounded[name] = rf
}

// closeAll closes every cached handle and returns the first error
// encountered, if any.
func (c *fileCache) closeAll() error {
	var firstErr error
	closeErr := func(rf *rotatingFile) {
		if err := rf.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.bounded != nil {
		for _, key := range c.bounded.Keys() {
			if rf, ok := c.bounded.Peek(key); ok {
				closeErr(rf)
			}
		}
		return firstErr
	}
	for _, rf := range c.unbounded {
		closeErr(rf)
	}
	return firstErr
}
