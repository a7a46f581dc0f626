package netcdf

import "sync"

// handleCache is a thread-safe LRU of open files keyed by path. Evicted
// entries are passed to onEvict so the underlying handle can be closed.
type handleCache struct {
	maxEntries int
	onEvict    func(*File)
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value *File
	prev  *entry
	next  *entry
}

func newHandleCache(maxEntries int, onEvict func(*File)) *handleCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &handleCache{
		maxEntries: maxEntries,
		onEvict:    onEvict,
		entries:    make(map[string]*entry),
	}
}

// reserve raises the capacity to at least n. It never shrinks the cache.
func (c *handleCache) reserve(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > c.maxEntries {
		c.maxEntries = n
	}
}

func (c *handleCache) get(key string) (*File, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

// put stores value under key. If key is already cached the existing handle is
// kept and returned, and the caller should release value itself.
func (c *handleCache) put(key string, value *File) (*File, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.moveToFront(e)
		return e.value, false
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
	return value, true
}

// purge evicts every entry.
func (c *handleCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.tail != nil {
		c.evictTail()
	}
}

func (c *handleCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *handleCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *handleCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *handleCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *handleCache) evictTail() {
	if c.tail == nil {
		return
	}
	victim := c.tail
	delete(c.entries, victim.key)
	c.remove(victim)
	if c.onEvict != nil {
		c.onEvict(victim.value)
	}
}
