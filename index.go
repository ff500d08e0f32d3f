package sawitdb

import "fmt"

// Index is a key -> record-refs map keyed on one field of one table.
// Keys are bucketed by canonicalKey, the value's kind plus its text; the
// bucket structure lets a key hold more than one record, which a flat map
// keyed on the field's raw value would not once duplicate field values
// exist.
//
// Since none of Index's operations (insert/delete/search/stats) require
// range iteration, a hash-bucketed map stands in for a full B+ tree --
// see DESIGN.md. Keys are not kept in any order and there is no range
// lookup.
type Index struct {
	table   string
	field   string
	buckets map[string][]recordRef
}

// IndexStats is the return shape of Index.stats.
type IndexStats struct {
	Name     string
	KeyField string
	Size     int
}

func newIndex(table, field string) *Index {
	return &Index{table: table, field: field, buckets: make(map[string][]recordRef)}
}

func (idx *Index) name() string {
	return fmt.Sprintf("idx_%s_%s", idx.table, idx.field)
}

// canonicalKey renders a Value so that distinct (kind, value) pairs never
// collide, which keeps a numeric 5 and the string "5" in separate
// buckets even though compareValues ranks numbers before strings.
func canonicalKey(v Value) string {
	return fmt.Sprintf("%d:%s", v.kind, v.String())
}

// insert appends a record to the bucket at key.
func (idx *Index) insert(key Value, ref recordRef) {
	k := canonicalKey(key)
	idx.buckets[k] = append(idx.buckets[k], ref)
}

// delete removes one bucket entry matching rec by deep equality on record
// identity. If the bucket empties, the key itself is removed.
func (idx *Index) delete(key Value, rec Record) bool {
	k := canonicalKey(key)
	bucket := idx.buckets[k]
	for i, ref := range bucket {
		if ref.record.Equal(rec) {
			bucket = append(bucket[:i], bucket[i+1:]...)
			if len(bucket) == 0 {
				delete(idx.buckets, k)
			} else {
				idx.buckets[k] = bucket
			}
			return true
		}
	}
	return false
}

// search returns every record whose indexed field equals key.
func (idx *Index) search(key Value) []recordRef {
	return idx.buckets[canonicalKey(key)]
}

// stats reports the index's identity and the total number of record
// references it carries.
func (idx *Index) stats() IndexStats {
	size := 0
	for _, bucket := range idx.buckets {
		size += len(bucket)
	}
	return IndexStats{Name: idx.name(), KeyField: idx.field, Size: size}
}

// hintedPages returns the distinct, non-persistent page ids recorded
// against key's bucket entries -- the page-hint guidance used by
// index-assisted delete/update.
func (idx *Index) hintedPages(key Value) []uint32 {
	seen := make(map[uint32]bool)
	var pages []uint32
	for _, ref := range idx.search(key) {
		if !seen[ref.pageID] {
			seen[ref.pageID] = true
			pages = append(pages, ref.pageID)
		}
	}
	return pages
}

// indexSet holds every live index, grouped by table, and is rebuilt by
// full scan on open: index existence is persisted, but index contents
// never are.
type indexSet struct {
	byTable map[string]map[string]*Index // table -> field -> Index
}

func newIndexSet() *indexSet {
	return &indexSet{byTable: make(map[string]map[string]*Index)}
}

func (s *indexSet) get(table, field string) (*Index, bool) {
	fields, ok := s.byTable[table]
	if !ok {
		return nil, false
	}
	idx, ok := fields[field]
	return idx, ok
}

func (s *indexSet) getOrCreate(table, field string) *Index {
	fields, ok := s.byTable[table]
	if !ok {
		fields = make(map[string]*Index)
		s.byTable[table] = fields
	}
	idx, ok := fields[field]
	if !ok {
		idx = newIndex(table, field)
		fields[field] = idx
	}
	return idx
}

// forTable returns every index defined on table, in no particular order.
func (s *indexSet) forTable(table string) []*Index {
	fields := s.byTable[table]
	out := make([]*Index, 0, len(fields))
	for _, idx := range fields {
		out = append(out, idx)
	}
	return out
}

// dropTable discards every index defined on table, purging the
// in-memory indexes along with it.
func (s *indexSet) dropTable(table string) {
	delete(s.byTable, table)
}

// onInsert updates every index on table whose field is present in rec.
func (s *indexSet) onInsert(table string, rec Record, pageID uint32) {
	for _, idx := range s.forTable(table) {
		if v, ok := rec[idx.field]; ok {
			idx.insert(v, recordRef{record: rec, pageID: pageID})
		}
	}
}

// onDelete removes rec from every index on table whose field it carries.
func (s *indexSet) onDelete(table string, rec Record) {
	for _, idx := range s.forTable(table) {
		if v, ok := rec[idx.field]; ok {
			idx.delete(v, rec)
		}
	}
}

// onUpdate removes the pre-image and inserts the post-image only for
// fields that actually changed: delete-then-insert applies only to
// fields whose value differs between the two images.
func (s *indexSet) onUpdate(table string, oldRec, newRec Record, pageID uint32) {
	for _, idx := range s.forTable(table) {
		oldV, oldOK := oldRec[idx.field]
		newV, newOK := newRec[idx.field]
		if oldOK && newOK && equalValues(oldV, newV) {
			continue
		}
		if oldOK {
			idx.delete(oldV, oldRec)
		}
		if newOK {
			idx.insert(newV, recordRef{record: newRec, pageID: pageID})
		}
	}
}
