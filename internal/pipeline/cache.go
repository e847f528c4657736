package pipeline

import (
	"sync"

	"github.com/couchcryptid/climate-extremes-etl/internal/domain"
)

// calendarCache is a small thread-safe LRU of built calendars keyed by
// baseline and parameters.
type calendarCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value *domain.Calendar
	prev  *entry
	next  *entry
}

func newCalendarCache(maxEntries int) *calendarCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &calendarCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *calendarCache) get(key string) (*domain.Calendar, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *calendarCache) put(key string, value *domain.Calendar) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.pushFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictOldest()
	}
}

func (c *calendarCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *calendarCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *calendarCache) pushFront(e *entry) {
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

func (c *calendarCache) unlink(e *entry) {
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

func (c *calendarCache) evictOldest() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlink(c.tail)
}
