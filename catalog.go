package sawitdb

import "fmt"

// Catalog is the page-0 table directory.
type Catalog struct {
	pager *Pager
}

func newCatalog(pager *Pager) *Catalog {
	return &Catalog{pager: pager}
}

// findTable linearly scans up to numTables for name.
func (c *Catalog) findTable(name string) (CatalogEntry, bool, error) {
	buf, err := c.pager.readPage(0)
	if err != nil {
		return CatalogEntry{}, false, err
	}
	n := int(catalogNumTables(buf))
	for slot := 0; slot < n; slot++ {
		entry, ok := readCatalogEntry(buf, slot)
		if ok && entry.Name == name {
			return entry, true, nil
		}
	}
	return CatalogEntry{}, false, nil
}

// listTables returns every catalog entry, in slot order.
func (c *Catalog) listTables() ([]CatalogEntry, error) {
	buf, err := c.pager.readPage(0)
	if err != nil {
		return nil, err
	}
	n := int(catalogNumTables(buf))
	out := make([]CatalogEntry, 0, n)
	for slot := 0; slot < n; slot++ {
		if entry, ok := readCatalogEntry(buf, slot); ok {
			out = append(out, entry)
		}
	}
	return out, nil
}

// createTable rejects duplicates and invalid names, then allocates one
// heap page and writes a new 40-byte catalog slot.
// Internal names (leading "_") bypass the reserved-name check.
func (c *Catalog) createTable(name string) (CatalogEntry, error) {
	if err := validateUserName(name); err != nil {
		return CatalogEntry{}, err
	}
	if _, ok, err := c.findTable(name); err != nil {
		return CatalogEntry{}, err
	} else if ok {
		return CatalogEntry{}, ErrNameTaken
	}

	buf, err := c.pager.readPage(0)
	if err != nil {
		return CatalogEntry{}, err
	}
	n := int(catalogNumTables(buf))
	if n >= maxCatalogEntries {
		return CatalogEntry{}, ErrPageZeroFull
	}

	pageID, err := c.pager.allocPage()
	if err != nil {
		return CatalogEntry{}, err
	}

	// allocPage may have changed page 0 (totalPages); re-read before
	// writing the new slot so we don't clobber that update.
	buf, err = c.pager.readPage(0)
	if err != nil {
		return CatalogEntry{}, err
	}
	entry := CatalogEntry{Name: name, StartPage: pageID, LastPage: pageID}
	if err := writeCatalogEntry(buf, n, entry); err != nil {
		return CatalogEntry{}, err
	}
	setCatalogNumTables(buf, uint32(n+1))
	if err := c.pager.writePage(0, buf); err != nil {
		return CatalogEntry{}, err
	}
	return entry, nil
}

// dropTable removes name's catalog slot, compacting the directory by
// moving the final slot over the deleted one and zeroing the freed slot.
// Heap pages freed by the drop leak -- the file does not shrink.
func (c *Catalog) dropTable(name string) (CatalogEntry, bool, error) {
	buf, err := c.pager.readPage(0)
	if err != nil {
		return CatalogEntry{}, false, err
	}
	n := int(catalogNumTables(buf))
	target := -1
	var removed CatalogEntry
	for slot := 0; slot < n; slot++ {
		entry, ok := readCatalogEntry(buf, slot)
		if ok && entry.Name == name {
			target = slot
			removed = entry
			break
		}
	}
	if target == -1 {
		return CatalogEntry{}, false, nil
	}

	last := n - 1
	if target != last {
		lastEntry, ok := readCatalogEntry(buf, last)
		if ok {
			if err := writeCatalogEntry(buf, target, lastEntry); err != nil {
				return CatalogEntry{}, false, err
			}
		}
	}
	clearCatalogEntry(buf, last)
	setCatalogNumTables(buf, uint32(last))

	if err := c.pager.writePage(0, buf); err != nil {
		return CatalogEntry{}, false, err
	}
	return removed, true, nil
}

// setLastPage updates a single catalog slot's lastPage field, used after
// HeapFile.insertMany allocates a fresh tail page.
func (c *Catalog) setLastPage(name string, pageID uint32) error {
	buf, err := c.pager.readPage(0)
	if err != nil {
		return err
	}
	n := int(catalogNumTables(buf))
	for slot := 0; slot < n; slot++ {
		entry, ok := readCatalogEntry(buf, slot)
		if ok && entry.Name == name {
			entry.LastPage = pageID
			if err := writeCatalogEntry(buf, slot, entry); err != nil {
				return err
			}
			return c.pager.writePage(0, buf)
		}
	}
	return fmt.Errorf("%w: %s", ErrTableMissing, name)
}

// ensureIndexesTable lazily creates the system _indexes table on first
// use.
func (c *Catalog) ensureIndexesTable() (CatalogEntry, error) {
	if entry, ok, err := c.findTable(indexesTableName); err != nil {
		return CatalogEntry{}, err
	} else if ok {
		return entry, nil
	}
	return c.createTable(indexesTableName)
}
