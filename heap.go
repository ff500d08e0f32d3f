package sawitdb

import (
	"fmt"

	"github.com/rs/zerolog"
)

// maxRecordPayload is the most a single record can occupy on an otherwise
// empty page: PageSize minus the heap page header and the record's 2-byte
// length prefix.
const maxRecordPayload = PageSize - heapRecordsOffset - heapRecordPrefixSize

// heapFile implements the per-table record operations, layered on Pager
// (page I/O), Catalog (directory upkeep), indexSet (index maintenance)
// and an optional WAL. It has no exported surface; its callers are
// Executor and DB's open-time WAL replay and index rebuild.
type heapFile struct {
	pager   *Pager
	catalog *Catalog
	indexes *indexSet
	wal     *WAL // nil when WAL is disabled
	logger  zerolog.Logger
}

func newHeapFile(pager *Pager, catalog *Catalog, indexes *indexSet, wal *WAL, logger zerolog.Logger) *heapFile {
	return &heapFile{pager: pager, catalog: catalog, indexes: indexes, wal: wal, logger: logger}
}

func (h *heapFile) logInsert(table string, encoded []byte) error {
	if h.wal == nil {
		return nil
	}
	return h.wal.append(walInsert, table, encoded)
}

func (h *heapFile) logDelete(table string, encoded []byte) error {
	if h.wal == nil {
		return nil
	}
	return h.wal.append(walDelete, table, encoded)
}

func (h *heapFile) logUpdate(table string, oldEncoded, newEncoded []byte) error {
	if h.wal == nil {
		return nil
	}
	return h.wal.append(walUpdate, table, encodeUpdatePayload(oldEncoded, newEncoded))
}

// insertMany appends records to entry's tail page, allocating and linking
// fresh pages on overflow, updating the catalog's lastPage pointer and
// every affected index as it goes. It returns the possibly-updated
// catalog entry.
func (h *heapFile) insertMany(entry CatalogEntry, records []Record) (CatalogEntry, error) {
	encodedRecords := make([][]byte, len(records))
	for i, rec := range records {
		enc, err := encodeRecord(rec)
		if err != nil {
			return entry, err
		}
		if len(enc) > maxRecordPayload {
			return entry, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, len(enc))
		}
		encodedRecords[i] = enc
	}

	tailID := entry.LastPage
	buf, err := h.pager.readPage(tailID)
	if err != nil {
		return entry, err
	}

	for i, rec := range records {
		enc := encodedRecords[i]
		need := heapRecordPrefixSize + len(enc)
		if heapPageFreeSpace(buf) < need {
			newID, err := h.pager.allocPage()
			if err != nil {
				return entry, err
			}
			setHeapNext(buf, newID)
			if err := h.pager.writePage(tailID, buf); err != nil {
				return entry, err
			}
			if err := h.catalog.setLastPage(entry.Name, newID); err != nil {
				return entry, err
			}
			entry.LastPage = newID
			tailID = newID
			buf, err = h.pager.readPage(tailID)
			if err != nil {
				return entry, err
			}
		}

		if err := h.logInsert(entry.Name, enc); err != nil {
			return entry, err
		}
		appendRecordsToHeapPage(buf, [][]byte{enc})
		h.indexes.onInsert(entry.Name, rec, tailID)
	}

	if err := h.pager.writePage(tailID, buf); err != nil {
		return entry, err
	}
	entry.LastPage = tailID
	return entry, nil
}

// pageIDs walks entry's page chain from StartPage, returning every page id
// in link order.
func (h *heapFile) pageIDs(entry CatalogEntry) ([]uint32, error) {
	var ids []uint32
	id := entry.StartPage
	for id != 0 {
		ids = append(ids, id)
		objs, err := h.pager.readPageObjects(id)
		if err != nil {
			return nil, err
		}
		id = objs.next
	}
	return ids, nil
}

// candidatePages returns the page ids scan/delete/update should visit for
// pred: the index-hinted subset when pred is a single equality leaf on an
// indexed field, or the table's full page chain otherwise.
func (h *heapFile) candidatePages(entry CatalogEntry, pred *Criteria) (pages []uint32, hinted bool, err error) {
	if field, val, ok := equalityKey(pred); ok {
		if idx, ok := h.indexes.get(entry.Name, field); ok {
			hint := idx.hintedPages(val)
			return hint, true, nil
		}
	}
	all, err := h.pageIDs(entry)
	return all, false, err
}

// scan returns every record in entry matching pred, in page-chain order,
// stopping once limit results are collected (limit<=0 means unbounded).
// returnRaw attaches a non-persistent "_pageId" hint to each result, used
// to seed index page hints when CREATE INDEX and rebuildIndexes populate an
// index.
func (h *heapFile) scan(entry CatalogEntry, pred *Criteria, limit int, returnRaw bool) ([]Record, error) {
	pages, err := h.pageIDs(entry)
	if err != nil {
		return nil, err
	}
	return h.scanPages(pages, pred, limit, returnRaw)
}

// scanPages is scan restricted to an explicit set of pages, in the order
// given -- the index-probe access path in executor.go supplies the
// page-hint set from an Index instead of the table's full chain.
func (h *heapFile) scanPages(pages []uint32, pred *Criteria, limit int, returnRaw bool) ([]Record, error) {
	var out []Record
	for _, id := range pages {
		objs, err := h.pager.readPageObjects(id)
		if err != nil {
			return nil, err
		}
		for _, dr := range objs.records {
			if dr.corrupt || !matchesCriteria(dr.record, pred) {
				continue
			}
			rec := dr.record
			if returnRaw {
				rec = rec.Clone()
				rec["_pageId"] = Int64(int64(id))
			}
			out = append(out, rec)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// deleteMatching removes every record satisfying pred, returning the
// deleted records' pre-images. It restricts its scan to index-hinted
// pages when pred is an indexed equality leaf; if that restricted pass
// deletes nothing, it falls back to a full table scan, since a stale hint
// (one left over from before a concurrent-looking but actually serial
// mutation) must never hide a real match.
func (h *heapFile) deleteMatching(entry CatalogEntry, pred *Criteria) ([]Record, error) {
	pages, hinted, err := h.candidatePages(entry, pred)
	if err != nil {
		return nil, err
	}
	deleted, err := h.deleteFromPages(entry, pred, pages)
	if err != nil {
		return nil, err
	}
	if hinted && len(deleted) == 0 {
		all, err := h.pageIDs(entry)
		if err != nil {
			return nil, err
		}
		return h.deleteFromPages(entry, pred, all)
	}
	return deleted, nil
}

func (h *heapFile) deleteFromPages(entry CatalogEntry, pred *Criteria, pages []uint32) ([]Record, error) {
	var deleted []Record
	for _, pageID := range pages {
		buf, err := h.pager.readPage(pageID)
		if err != nil {
			return nil, err
		}
		decoded := scanHeapPage(buf)
		var keep [][]byte
		changed := false
		for _, dr := range decoded {
			if !dr.corrupt && matchesCriteria(dr.record, pred) {
				enc, err := encodeRecord(dr.record)
				if err != nil {
					return nil, err
				}
				if err := h.logDelete(entry.Name, enc); err != nil {
					return nil, err
				}
				h.indexes.onDelete(entry.Name, dr.record)
				deleted = append(deleted, dr.record)
				changed = true
				continue
			}
			keep = append(keep, buf[dr.offset+heapRecordPrefixSize:dr.offset+dr.length])
		}
		if changed {
			compactHeapPage(buf, keep)
			if err := h.pager.writePage(pageID, buf); err != nil {
				return nil, err
			}
		}
	}
	return deleted, nil
}

// updateMatching applies updates to every record satisfying pred,
// returning the post-image of each changed record. A record whose
// re-encoded size still fits within its existing on-page slot is patched
// in place; one that grows past its slot is removed from its page and
// re-inserted via insertMany: the delete-then-insert fallback applies
// per-record rather than to the whole criteria match set (see
// DESIGN.md). Like deleteMatching, an index-hinted pass that changes
// nothing falls back to a full scan.
func (h *heapFile) updateMatching(entry CatalogEntry, updates Record, pred *Criteria) ([]Record, error) {
	pages, hinted, err := h.candidatePages(entry, pred)
	if err != nil {
		return nil, err
	}
	updated, entry, err := h.updatePages(entry, updates, pred, pages)
	if err != nil {
		return nil, err
	}
	if hinted && len(updated) == 0 {
		all, err := h.pageIDs(entry)
		if err != nil {
			return nil, err
		}
		updated, _, err = h.updatePages(entry, updates, pred, all)
		return updated, err
	}
	return updated, nil
}

func (h *heapFile) updatePages(entry CatalogEntry, updates Record, pred *Criteria, pages []uint32) ([]Record, CatalogEntry, error) {
	var updated []Record
	var overflow []Record

	for _, pageID := range pages {
		buf, err := h.pager.readPage(pageID)
		if err != nil {
			return nil, entry, err
		}
		decoded := scanHeapPage(buf)
		var removed []int // indices into decoded that must be dropped from the page
		pageTouched := false

		for i, dr := range decoded {
			if dr.corrupt || !matchesCriteria(dr.record, pred) {
				continue
			}
			oldRec := dr.record
			newRec := oldRec.Clone()
			for k, v := range updates {
				newRec[k] = v
			}
			oldEncoded, err := encodeRecord(oldRec)
			if err != nil {
				return nil, entry, err
			}
			newEncoded, err := encodeRecord(newRec)
			if err != nil {
				return nil, entry, err
			}
			slotLen := dr.length - heapRecordPrefixSize

			if len(newEncoded) <= slotLen {
				if err := h.logUpdate(entry.Name, oldEncoded, newEncoded); err != nil {
					return nil, entry, err
				}
				payloadStart := dr.offset + heapRecordPrefixSize
				copy(buf[payloadStart:], newEncoded)
				for j := payloadStart + len(newEncoded); j < payloadStart+slotLen; j++ {
					buf[j] = 0
				}
				h.indexes.onUpdate(entry.Name, oldRec, newRec, pageID)
				pageTouched = true
			} else {
				if err := h.logDelete(entry.Name, oldEncoded); err != nil {
					return nil, entry, err
				}
				h.indexes.onDelete(entry.Name, oldRec)
				removed = append(removed, i)
				overflow = append(overflow, newRec)
				pageTouched = true
			}
			updated = append(updated, newRec)
		}

		if len(removed) > 0 {
			removedSet := make(map[int]bool, len(removed))
			for _, i := range removed {
				removedSet[i] = true
			}
			var keep [][]byte
			for i, dr := range decoded {
				if removedSet[i] {
					continue
				}
				keep = append(keep, buf[dr.offset+heapRecordPrefixSize:dr.offset+dr.length])
			}
			compactHeapPage(buf, keep)
			if err := h.pager.writePage(pageID, buf); err != nil {
				return nil, entry, err
			}
		} else if pageTouched {
			if err := h.pager.writePage(pageID, buf); err != nil {
				return nil, entry, err
			}
		}
	}

	if len(overflow) > 0 {
		fresh, ok, err := h.catalog.findTable(entry.Name)
		if err != nil {
			return nil, entry, err
		}
		if !ok {
			return nil, entry, fmt.Errorf("%w: %s", ErrTableMissing, entry.Name)
		}
		entry = fresh
		entry, err = h.insertMany(entry, overflow)
		if err != nil {
			return nil, entry, err
		}
	}

	return updated, entry, nil
}

// containsRecord reports whether rec already appears in entry, used by WAL
// replay to recognize an operation that reached its pages before the crash
// that made recovery necessary.
func (h *heapFile) containsRecord(entry CatalogEntry, rec Record) (bool, error) {
	pages, err := h.pageIDs(entry)
	if err != nil {
		return false, err
	}
	for _, id := range pages {
		objs, err := h.pager.readPageObjects(id)
		if err != nil {
			return false, err
		}
		for _, dr := range objs.records {
			if !dr.corrupt && dr.record.Equal(rec) {
				return true, nil
			}
		}
	}
	return false, nil
}

// replayInsert re-applies a logged INSERT idempotently: if rec is already
// present (its page write reached disk before the crash), replay is a
// no-op; otherwise it inserts rec via the ordinary path. It never touches
// the WAL itself -- the heapFile driving replay is built with wal==nil.
func (h *heapFile) replayInsert(entry CatalogEntry, rec Record) (CatalogEntry, error) {
	exists, err := h.containsRecord(entry, rec)
	if err != nil {
		return entry, err
	}
	if exists {
		return entry, nil
	}
	return h.insertMany(entry, []Record{rec})
}

// replayDelete re-applies a logged DELETE idempotently: it removes the
// first page occurrence structurally equal to rec, or does nothing if no
// such record remains (already deleted before the crash).
func (h *heapFile) replayDelete(entry CatalogEntry, rec Record) error {
	pages, err := h.pageIDs(entry)
	if err != nil {
		return err
	}
	for _, pageID := range pages {
		buf, err := h.pager.readPage(pageID)
		if err != nil {
			return err
		}
		decoded := scanHeapPage(buf)
		found := false
		var keep [][]byte
		for _, dr := range decoded {
			if !found && !dr.corrupt && dr.record.Equal(rec) {
				found = true
				continue
			}
			keep = append(keep, buf[dr.offset+heapRecordPrefixSize:dr.offset+dr.length])
		}
		if found {
			compactHeapPage(buf, keep)
			return h.pager.writePage(pageID, buf)
		}
	}
	return nil
}

// replayUpdate re-applies a logged UPDATE idempotently: if newRec is
// already present, the page write already landed and replay is a no-op; if
// oldRec is found, it is rewritten in place or, should it no longer fit its
// slot, removed and the post-image re-inserted via insertMany, mirroring
// updatePages' single-record logic; if neither is found the table has
// already moved past this operation by some other route and replay does
// nothing.
func (h *heapFile) replayUpdate(entry CatalogEntry, oldRec, newRec Record) (CatalogEntry, error) {
	newEncoded, err := encodeRecord(newRec)
	if err != nil {
		return entry, err
	}

	pages, err := h.pageIDs(entry)
	if err != nil {
		return entry, err
	}
	for _, pageID := range pages {
		buf, err := h.pager.readPage(pageID)
		if err != nil {
			return entry, err
		}
		decoded := scanHeapPage(buf)
		for _, dr := range decoded {
			if dr.corrupt {
				continue
			}
			if dr.record.Equal(newRec) {
				return entry, nil
			}
			if !dr.record.Equal(oldRec) {
				continue
			}
			slotLen := dr.length - heapRecordPrefixSize
			if len(newEncoded) <= slotLen {
				payloadStart := dr.offset + heapRecordPrefixSize
				copy(buf[payloadStart:], newEncoded)
				for j := payloadStart + len(newEncoded); j < payloadStart+slotLen; j++ {
					buf[j] = 0
				}
				return entry, h.pager.writePage(pageID, buf)
			}
			var keep [][]byte
			for _, other := range decoded {
				if other.offset == dr.offset {
					continue
				}
				keep = append(keep, buf[other.offset+heapRecordPrefixSize:other.offset+other.length])
			}
			compactHeapPage(buf, keep)
			if err := h.pager.writePage(pageID, buf); err != nil {
				return entry, err
			}
			return h.insertMany(entry, []Record{newRec})
		}
	}
	return entry, nil
}
