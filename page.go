package sawitdb

import (
	"encoding/binary"
	"fmt"
)

// PageSize is the fixed unit of I/O.
const PageSize = 4096

// Page 0 (the catalog/master page) layout:
//   bytes 0-3   magic "WOWO"
//   bytes 4-7   u32 totalPages
//   bytes 8-11  u32 numTables
//   bytes 12... catalog entries, 40 bytes each
const (
	catalogMagicOffset     = 0
	catalogTotalPagesOffset = 4
	catalogNumTablesOffset  = 8
	catalogEntriesOffset    = 12

	catalogEntrySize       = 40
	catalogNameSize        = 32
	catalogEntryStartPage  = catalogNameSize
	catalogEntryLastPage   = catalogNameSize + 4
)

// catalogMagic identifies a SawitDB page 0.
var catalogMagic = [4]byte{'W', 'O', 'W', 'O'}

// maxCatalogEntries is floor((PageSize-12)/40) = 102.
const maxCatalogEntries = (PageSize - catalogEntriesOffset) / catalogEntrySize

// Heap page layout:
//   bytes 0-3  u32 nextPage (0 = end)
//   bytes 4-5  u16 recordCount
//   bytes 6-7  u16 freeOffset (first free byte, initially 8)
//   bytes 8... records, each a u16-LE length prefix followed by the
//   JSON-encoded record
const (
	heapNextOffset       = 0
	heapRecordCountOffset = 4
	heapFreeOffsetOffset  = 6
	heapRecordsOffset     = 8
	heapRecordPrefixSize  = 2
)

// newCatalogPage returns a freshly initialized page 0: magic set,
// totalPages=1 (page 0 itself), numTables=0.
func newCatalogPage() []byte {
	buf := make([]byte, PageSize)
	copy(buf[catalogMagicOffset:catalogMagicOffset+4], catalogMagic[:])
	binary.LittleEndian.PutUint32(buf[catalogTotalPagesOffset:], 1)
	binary.LittleEndian.PutUint32(buf[catalogNumTablesOffset:], 0)
	return buf
}

// checkCatalogMagic verifies buf begins with the SawitDB page-0 magic.
func checkCatalogMagic(buf []byte) error {
	if len(buf) < 4 || buf[0] != 'W' || buf[1] != 'O' || buf[2] != 'W' || buf[3] != 'O' {
		return fmt.Errorf("sawitdb: page 0 missing WOWO magic")
	}
	return nil
}

func catalogTotalPages(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[catalogTotalPagesOffset:])
}

func setCatalogTotalPages(buf []byte, n uint32) {
	binary.LittleEndian.PutUint32(buf[catalogTotalPagesOffset:], n)
}

func catalogNumTables(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[catalogNumTablesOffset:])
}

func setCatalogNumTables(buf []byte, n uint32) {
	binary.LittleEndian.PutUint32(buf[catalogNumTablesOffset:], n)
}

// CatalogEntry is a table's directory entry on page 0.
type CatalogEntry struct {
	Name      string
	StartPage uint32
	LastPage  uint32
}

func catalogEntryOffset(slot int) int {
	return catalogEntriesOffset + slot*catalogEntrySize
}

// readCatalogEntry decodes the slot-th 40-byte entry. ok is false if the
// slot's name is all NUL bytes (an empty/freed slot).
func readCatalogEntry(buf []byte, slot int) (entry CatalogEntry, ok bool) {
	off := catalogEntryOffset(slot)
	nameBytes := buf[off : off+catalogNameSize]
	nul := 0
	for nul < len(nameBytes) && nameBytes[nul] != 0 {
		nul++
	}
	if nul == 0 {
		return CatalogEntry{}, false
	}
	name := string(nameBytes[:nul])
	startPage := binary.LittleEndian.Uint32(buf[off+catalogEntryStartPage:])
	lastPage := binary.LittleEndian.Uint32(buf[off+catalogEntryLastPage:])
	return CatalogEntry{Name: name, StartPage: startPage, LastPage: lastPage}, true
}

// writeCatalogEntry encodes entry into the slot-th 40-byte slot.
func writeCatalogEntry(buf []byte, slot int, entry CatalogEntry) error {
	if len(entry.Name) > catalogNameSize {
		return fmt.Errorf("sawitdb: table name %q exceeds %d bytes", entry.Name, catalogNameSize)
	}
	off := catalogEntryOffset(slot)
	nameSlot := buf[off : off+catalogNameSize]
	for i := range nameSlot {
		nameSlot[i] = 0
	}
	copy(nameSlot, entry.Name)
	binary.LittleEndian.PutUint32(buf[off+catalogEntryStartPage:], entry.StartPage)
	binary.LittleEndian.PutUint32(buf[off+catalogEntryLastPage:], entry.LastPage)
	return nil
}

// clearCatalogEntry zeroes the slot-th entry.
func clearCatalogEntry(buf []byte, slot int) {
	off := catalogEntryOffset(slot)
	for i := off; i < off+catalogEntrySize; i++ {
		buf[i] = 0
	}
}

// newHeapPage returns a freshly initialized, empty heap page.
func newHeapPage() []byte {
	buf := make([]byte, PageSize)
	setHeapFreeOffset(buf, heapRecordsOffset)
	return buf
}

func heapNext(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[heapNextOffset:])
}

func setHeapNext(buf []byte, next uint32) {
	binary.LittleEndian.PutUint32(buf[heapNextOffset:], next)
}

func heapRecordCount(buf []byte) uint16 {
	return binary.LittleEndian.Uint16(buf[heapRecordCountOffset:])
}

func setHeapRecordCount(buf []byte, n uint16) {
	binary.LittleEndian.PutUint16(buf[heapRecordCountOffset:], n)
}

func heapFreeOffset(buf []byte) uint16 {
	return binary.LittleEndian.Uint16(buf[heapFreeOffsetOffset:])
}

func setHeapFreeOffset(buf []byte, off uint16) {
	binary.LittleEndian.PutUint16(buf[heapFreeOffsetOffset:], off)
}

// heapPageFreeSpace returns the number of bytes available for a new
// length-prefixed record before the page is full.
func heapPageFreeSpace(buf []byte) int {
	return PageSize - int(heapFreeOffset(buf))
}

// trimTrailingZeros strips trailing NUL bytes left by an in-place update
// that shrank a record within its original slot: the slot's length prefix
// still reflects the slot's original size, and the live JSON payload
// never itself ends in a NUL byte, so trimming is safe.
func trimTrailingZeros(b []byte) []byte {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return b[:end]
}

// decodedRecord pairs a scanned record with the byte range it occupied
// in its page, used by deleteMatching/updateMatching to compact pages.
type decodedRecord struct {
	record Record
	offset int // start of the length prefix
	length int // length of the length-prefixed run (prefix + payload)
	corrupt bool
}

// scanHeapPage walks the length-prefixed record run in buf from offset 8
// to freeOffset, decoding each record. A record that fails to decode is
// reported with corrupt=true and its original bytes are preserved so the
// caller can still account for page space during compaction: a corrupt
// record is skipped but the scan still makes forward progress rather
// than aborting.
func scanHeapPage(buf []byte) []decodedRecord {
	free := int(heapFreeOffset(buf))
	var out []decodedRecord
	pos := heapRecordsOffset
	for pos+heapRecordPrefixSize <= free {
		length := int(binary.LittleEndian.Uint16(buf[pos:]))
		payloadStart := pos + heapRecordPrefixSize
		payloadEnd := payloadStart + length
		if payloadEnd > free {
			break
		}
		rec, err := decodeRecord(trimTrailingZeros(buf[payloadStart:payloadEnd]))
		out = append(out, decodedRecord{
			record:  rec,
			offset:  pos,
			length:  heapRecordPrefixSize + length,
			corrupt: err != nil,
		})
		pos = payloadEnd
	}
	return out
}

// appendRecordsToHeapPage appends each encoded record to buf in order,
// stopping and returning the count actually appended once a record would
// not fit. freeOffset/recordCount are updated for every record appended.
func appendRecordsToHeapPage(buf []byte, encoded [][]byte) int {
	free := int(heapFreeOffset(buf))
	count := int(heapRecordCount(buf))
	appended := 0
	for _, enc := range encoded {
		need := heapRecordPrefixSize + len(enc)
		if free+need > PageSize {
			break
		}
		binary.LittleEndian.PutUint16(buf[free:], uint16(len(enc)))
		copy(buf[free+heapRecordPrefixSize:], enc)
		free += need
		count++
		appended++
	}
	setHeapFreeOffset(buf, uint16(free))
	setHeapRecordCount(buf, uint16(count))
	return appended
}

// compactHeapPage rewrites buf in place keeping only the records in keep,
// packing them from offset 8 with no gaps and zero-filling the trailing
// bytes, preserving the no-stale-bytes-between-records invariant.
func compactHeapPage(buf []byte, keep [][]byte) {
	pos := heapRecordsOffset
	for _, enc := range keep {
		binary.LittleEndian.PutUint16(buf[pos:], uint16(len(enc)))
		copy(buf[pos+heapRecordPrefixSize:], enc)
		pos += heapRecordPrefixSize + len(enc)
	}
	for i := pos; i < PageSize; i++ {
		buf[i] = 0
	}
	setHeapFreeOffset(buf, uint16(pos))
	setHeapRecordCount(buf, uint16(len(keep)))
}
