package sawitdb

import (
	"container/list"
	"sync"
)

// queryCache is a fixed-capacity LRU keyed by the raw query string,
// caching the parsed Command template rather than result rows: there is
// no query-result TTL concept here, and caching rows would go stale the
// instant another Query() mutates the table.
type queryCache struct {
	mu       sync.Mutex
	cap      int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
}

type queryCacheEntry struct {
	key string
	cmd *Command
}

func newQueryCache(capacity int) *queryCache {
	return &queryCache{
		cap:     capacity,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// get returns a shallow clone of the cached template for raw, so that
// binding parameters into the clone never mutates the cached original --
// a parameterized query is never cached in bound form; binding happens
// after template retrieval.
func (c *queryCache) get(raw string) (*Command, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[raw]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return cloneCommand(elem.Value.(*queryCacheEntry).cmd), true
}

// put stores a clone of cmd under raw, evicting the least-recently-used
// entry if the cache is at capacity.
func (c *queryCache) put(raw string, cmd *Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[raw]; ok {
		elem.Value.(*queryCacheEntry).cmd = cloneCommand(cmd)
		c.order.MoveToFront(elem)
		return
	}
	if c.order.Len() >= c.cap {
		back := c.order.Back()
		if back != nil {
			c.order.Remove(back)
			delete(c.entries, back.Value.(*queryCacheEntry).key)
		}
	}
	elem := c.order.PushFront(&queryCacheEntry{key: raw, cmd: cloneCommand(cmd)})
	c.entries[raw] = elem
}

// cloneCommand shallow-clones cmd one level deep: criteria, joins, cols,
// sort and values are each copied so mutating the clone (e.g. binding a
// parameter into a criteria literal) cannot reach the cached template,
// without the expense of a full recursive deep copy.
func cloneCommand(cmd *Command) *Command {
	clone := *cmd
	if cmd.Cols != nil {
		clone.Cols = append([]string(nil), cmd.Cols...)
	}
	if cmd.Joins != nil {
		clone.Joins = append([]Join(nil), cmd.Joins...)
	}
	clone.Criteria = cloneCriteria(cmd.Criteria)
	clone.Having = cloneCriteria(cmd.Having)
	if cmd.Sort != nil {
		s := *cmd.Sort
		clone.Sort = &s
	}
	if cmd.Limit != nil {
		l := *cmd.Limit
		clone.Limit = &l
	}
	if cmd.Offset != nil {
		o := *cmd.Offset
		clone.Offset = &o
	}
	if cmd.Data != nil {
		clone.Data = cmd.Data.Clone()
	}
	if cmd.Updates != nil {
		clone.Updates = cmd.Updates.Clone()
	}
	return &clone
}

func cloneCriteria(c *Criteria) *Criteria {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Conditions != nil {
		clone.Conditions = append([]Criteria(nil), c.Conditions...)
	}
	return &clone
}
