package sawitdb

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// DB is a handle onto one SawitDB file. All exported methods are safe to
// call from multiple goroutines; internally every Query serializes on a
// single mutex, matching the single-threaded cooperative concurrency model
// model: no MVCC, no concurrent statement execution.
type DB struct {
	mu     sync.Mutex
	closed bool

	path    string
	pager   *Pager
	wal     *WAL
	catalog *Catalog
	indexes *indexSet
	heap    *heapFile
	exec    *Executor
	cache   *queryCache
	hooks   Hooks
	logger  zerolog.Logger
}

// Open opens (creating if absent) the database file at path, replays its
// WAL if one is enabled and non-empty, and rebuilds every persisted index
// by a full table scan: index contents are never themselves persisted,
// they are rebuilt from the _indexes system table plus a full scan on
// open.
func Open(path string, opts Options) (*DB, error) {
	opts = opts.withDefaults()
	logger := *opts.Logger

	pager, err := openPager(path, opts.PageCacheSize, logger)
	if err != nil {
		return nil, err
	}
	catalog := newCatalog(pager)
	indexes := newIndexSet()

	var wal *WAL
	if opts.EnableWAL {
		wal, err = openWAL(path+".wal", opts.WALSync, logger)
		if err != nil {
			pager.close()
			return nil, err
		}
		replayHeap := newHeapFile(pager, catalog, indexes, nil, logger)
		if err := wal.recover(func(rec walRecord) error {
			return applyWALRecord(catalog, replayHeap, rec)
		}); err != nil {
			wal.close()
			pager.close()
			return nil, err
		}
	}

	heap := newHeapFile(pager, catalog, indexes, wal, logger)
	if err := rebuildIndexes(catalog, heap, indexes); err != nil {
		if wal != nil {
			wal.close()
		}
		pager.close()
		return nil, err
	}

	exec := newExecutor(catalog, indexes, heap, wal, opts.Hooks, logger)
	cache := newQueryCache(opts.QueryCacheCapacity)

	return &DB{
		path:    path,
		pager:   pager,
		wal:     wal,
		catalog: catalog,
		indexes: indexes,
		heap:    heap,
		exec:    exec,
		cache:   cache,
		hooks:   opts.Hooks,
		logger:  logger,
	}, nil
}

// applyWALRecord replays one logical operation recovered from the WAL
// against catalog/heap. Every heap operation is idempotent with respect to
// the underlying page state: a record already reflecting the logged
// change (because its page write reached disk before the crash) is left
// untouched.
func applyWALRecord(catalog *Catalog, heap *heapFile, rec walRecord) error {
	switch rec.kind {
	case walCreateTable:
		if _, err := catalog.createTable(rec.table); err != nil && err != ErrNameTaken {
			return err
		}
		return nil

	case walDropTable:
		_, _, err := catalog.dropTable(rec.table)
		return err

	case walInsert:
		entry, ok, err := catalog.findTable(rec.table)
		if err != nil {
			return err
		}
		if !ok {
			return nil // table dropped after logging; nothing to replay onto
		}
		row, err := decodeRecord(rec.payload)
		if err != nil {
			return err
		}
		_, err = heap.replayInsert(entry, row)
		return err

	case walDelete:
		entry, ok, err := catalog.findTable(rec.table)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		row, err := decodeRecord(rec.payload)
		if err != nil {
			return err
		}
		return heap.replayDelete(entry, row)

	case walUpdate:
		entry, ok, err := catalog.findTable(rec.table)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		oldEnc, newEnc, err := decodeUpdatePayload(rec.payload)
		if err != nil {
			return err
		}
		oldRow, err := decodeRecord(oldEnc)
		if err != nil {
			return err
		}
		newRow, err := decodeRecord(newEnc)
		if err != nil {
			return err
		}
		_, err = heap.replayUpdate(entry, oldRow, newRow)
		return err

	case walCreateIndex:
		// The durability of a CREATE INDEX is carried by the ordinary
		// INSERT into _indexes (walInsert above); index buckets
		// themselves are never logged and are rebuilt from a full scan
		// after replay (see rebuildIndexes).
		return nil

	default:
		return fmt.Errorf("sawitdb: unrecognized WAL op kind %d", rec.kind)
	}
}

// rebuildIndexes reads the persisted _indexes table, if any, and rebuilds
// every (table, field) index's in-memory buckets by a full scan, since
// index contents are never themselves durable.
func rebuildIndexes(catalog *Catalog, heap *heapFile, indexes *indexSet) error {
	idxEntry, ok, err := catalog.findTable(indexesTableName)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	descriptors, err := heap.scan(idxEntry, nil, 0, false)
	if err != nil {
		return err
	}
	for _, d := range descriptors {
		table, _ := d["table"].Raw().(string)
		field, _ := d["field"].Raw().(string)
		if table == "" || field == "" {
			continue
		}
		entry, ok, err := catalog.findTable(table)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		rows, err := heap.scan(entry, nil, 0, true)
		if err != nil {
			return err
		}
		idx := indexes.getOrCreate(table, field)
		for _, rec := range rows {
			pageID := uint32(0)
			if v, ok := rec["_pageId"]; ok {
				if raw, ok := v.Raw().(int64); ok {
					pageID = uint32(raw)
				}
				delete(rec, "_pageId")
			}
			if v, ok := rec[field]; ok {
				idx.insert(v, recordRef{record: rec, pageID: pageID})
			}
		}
	}
	return nil
}

// Query executes one parsed command and returns its result: a string for
// DDL/DML confirmations, []Record for SELECT, a bare Record (ungrouped) or
// []Record (GROUP BY) for AGGREGATE, []string for SHOW_TABLES, []IndexStats
// for SHOW_INDEXES, or *Plan for EXPLAIN. Every
// internal error is rendered as the string "Error: <message>" rather than
// returned as a Go error.
// raw is the original query text, used as the cache key for
// CachedCommand/CacheCommand and passed through to Hooks.
func (db *DB) Query(raw string, cmd Command) interface{} {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return fmt.Sprintf("Error: %v", ErrHandleClosed)
	}

	result, err := db.exec.execute(raw, &cmd)

	if db.wal != nil {
		if ferr := db.wal.flush(); ferr != nil {
			db.logger.Warn().Err(ferr).Msg("WAL flush failed after query")
		}
	}

	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return result
}

// CachedCommand returns a fresh clone of the Command template cached under
// raw, if any. Parsing itself is a collaborator external to the core
// parsing itself is not this package's concern; callers that do own a
// parser consult this before parsing, and store the result with
// CacheCommand on a miss, so that binding parameters into the returned
// clone never disturbs the cached template.
func (db *DB) CachedCommand(raw string) (Command, bool) {
	cmd, ok := db.cache.get(raw)
	if !ok {
		return Command{}, false
	}
	return *cmd, true
}

// CacheCommand stores a template Command under raw for later retrieval by
// CachedCommand.
func (db *DB) CacheCommand(raw string, cmd Command) {
	db.cache.put(raw, &cmd)
}

// Close releases the database file (and WAL file, if open). Every
// subsequent Query call returns the string "Error: HANDLE_CLOSED" (the
// text of ErrHandleClosed) instead of touching the file again.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true

	var walErr error
	if db.wal != nil {
		walErr = db.wal.close()
	}
	pagerErr := db.pager.close()
	if walErr != nil {
		return walErr
	}
	return pagerErr
}
