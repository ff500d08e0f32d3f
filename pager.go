package sawitdb

import (
	"container/list"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// pageObjects is the decoded view of a heap page the read-through cache
// stores: its link to the next page and its already-parsed records.
type pageObjects struct {
	next    uint32
	records []decodedRecord
}

// pageCacheFrame is one entry in the Pager's LRU of decoded pages.
type pageCacheFrame struct {
	pageID uint32
	data   pageObjects
}

// Pager owns the single database file descriptor and hands out and fills
// pages. It holds no reference to the WAL: callers append the logical
// operation to the WAL before writing pages (see writePage), and whether
// that WAL record is already synced depends on the WAL sync policy.
type Pager struct {
	file *os.File

	mu sync.Mutex

	cacheCap int
	cache    map[uint32]*list.Element
	lru      *list.List // front = most recently used

	logger zerolog.Logger
}

// openPager opens path, creating and initializing page 0 if the file is
// absent.
func openPager(path string, cacheCap int, logger zerolog.Logger) (*Pager, error) {
	_, statErr := os.Stat(path)
	freshFile := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("sawitdb: opening database file: %w", err)
	}

	p := &Pager{
		file:     f,
		cacheCap: cacheCap,
		cache:    make(map[uint32]*list.Element),
		lru:      list.New(),
		logger:   logger,
	}

	if freshFile {
		if err := p.writePage(0, newCatalogPage()); err != nil {
			f.Close()
			return nil, fmt.Errorf("sawitdb: initializing page 0: %w", err)
		}
		logger.Debug().Msg("initialized fresh database file")
	} else {
		buf, err := p.readPage(0)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := checkCatalogMagic(buf); err != nil {
			f.Close()
			return nil, err
		}
	}

	return p, nil
}

// close flushes nothing (every write is already durable on return) and
// closes the file descriptor.
func (p *Pager) close() error {
	return p.file.Close()
}

// readPage reads the id-th 4096-byte page from the file. Reading past the
// current end of file returns a zeroed page of PageSize bytes, matching
// how a freshly allocated page looks before its first write.
func (p *Pager) readPage(id uint32) ([]byte, error) {
	buf := make([]byte, PageSize)
	n, err := p.file.ReadAt(buf, int64(id)*PageSize)
	if err != nil && n == 0 {
		return buf, nil
	}
	if err != nil && n < PageSize {
		return nil, fmt.Errorf("sawitdb: short read on page %d: %w", id, err)
	}
	return buf, nil
}

// writePage writes exactly PageSize bytes for page id and invalidates any
// cached decoded view of that page. Fsync failures are logged, not fatal
// -- sync is best-effort durability here. Callers that need
// WAL-before-page ordering append the logical operation to the WAL
// before calling writePage; see heap.go and executor.go.
func (p *Pager) writePage(id uint32, buf []byte) error {
	if len(buf) != PageSize {
		return fmt.Errorf("sawitdb: writePage requires exactly %d bytes, got %d", PageSize, len(buf))
	}

	if _, err := p.file.WriteAt(buf, int64(id)*PageSize); err != nil {
		return fmt.Errorf("sawitdb: writing page %d: %w", id, err)
	}
	if err := p.file.Sync(); err != nil {
		p.logger.Warn().Err(err).Uint32("page", id).Msg("fsync failed (non-fatal)")
	}

	p.mu.Lock()
	p.invalidate(id)
	p.mu.Unlock()

	return nil
}

// allocPage assigns a fresh page id from page 0's totalPages counter,
// initializes it as an empty heap page, and returns the new id.
func (p *Pager) allocPage() (uint32, error) {
	zero, err := p.readPage(0)
	if err != nil {
		return 0, err
	}
	newID := catalogTotalPages(zero)
	setCatalogTotalPages(zero, newID+1)
	if err := p.writePage(0, zero); err != nil {
		return 0, err
	}
	if err := p.writePage(newID, newHeapPage()); err != nil {
		return 0, err
	}
	p.logger.Debug().Uint32("page", newID).Msg("allocated page")
	return newID, nil
}

// readPageObjects returns the decoded view of a heap page, serving it
// from cache when present.
func (p *Pager) readPageObjects(id uint32) (pageObjects, error) {
	p.mu.Lock()
	if elem, ok := p.cache[id]; ok {
		p.lru.MoveToFront(elem)
		frame := elem.Value.(*pageCacheFrame)
		p.mu.Unlock()
		return frame.data, nil
	}
	p.mu.Unlock()

	buf, err := p.readPage(id)
	if err != nil {
		return pageObjects{}, err
	}
	objs := pageObjects{
		next:    heapNext(buf),
		records: scanHeapPage(buf),
	}

	p.mu.Lock()
	p.insertCache(id, objs)
	p.mu.Unlock()

	return objs, nil
}

// invalidate drops id from the page-object cache. Must be called with
// mu held.
func (p *Pager) invalidate(id uint32) {
	if elem, ok := p.cache[id]; ok {
		p.lru.Remove(elem)
		delete(p.cache, id)
	}
}

// insertCache stores a decoded page, evicting the least-recently-used
// entry if the cache is at capacity. Must be called with mu held.
func (p *Pager) insertCache(id uint32, objs pageObjects) {
	if p.cacheCap <= 0 {
		return
	}
	if elem, ok := p.cache[id]; ok {
		elem.Value.(*pageCacheFrame).data = objs
		p.lru.MoveToFront(elem)
		return
	}
	if len(p.cache) >= p.cacheCap {
		back := p.lru.Back()
		if back != nil {
			p.lru.Remove(back)
			delete(p.cache, back.Value.(*pageCacheFrame).pageID)
		}
	}
	elem := p.lru.PushFront(&pageCacheFrame{pageID: id, data: objs})
	p.cache[id] = elem
}
