package sawitdb

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Executor runs a parsed Command against the catalog/heap/index layers
// and fires the configured Hooks on every successful mutation.
type Executor struct {
	catalog *Catalog
	indexes *indexSet
	heap    *heapFile
	wal     *WAL // nil when WAL is disabled; logs CREATE_TABLE/DROP_TABLE only
	hooks   Hooks
	logger  zerolog.Logger
}

func newExecutor(catalog *Catalog, indexes *indexSet, heap *heapFile, wal *WAL, hooks Hooks, logger zerolog.Logger) *Executor {
	return &Executor{catalog: catalog, indexes: indexes, heap: heap, wal: wal, hooks: hooks, logger: logger}
}

// execute dispatches cmd and returns its result value: a string for
// DDL/DML confirmations, []Record for SELECT, []string for SHOW_TABLES,
// []IndexStats for SHOW_INDEXES, a bare Record (ungrouped) or []Record
// (GROUP BY) for AGGREGATE, or *Plan for EXPLAIN.
func (e *Executor) execute(raw string, cmd *Command) (interface{}, error) {
	switch cmd.Kind {
	case CmdCreateTable:
		return e.createTable(raw, cmd)
	case CmdShowTables:
		return e.showTables()
	case CmdShowIndexes:
		return e.showIndexes(cmd)
	case CmdInsert:
		return e.insert(raw, cmd)
	case CmdSelect:
		return e.selectRows(raw, cmd)
	case CmdDelete:
		return e.delete(raw, cmd)
	case CmdUpdate:
		return e.update(raw, cmd)
	case CmdDropTable:
		return e.dropTable(raw, cmd)
	case CmdCreateIndex:
		return e.createIndex(raw, cmd)
	case CmdAggregate:
		return e.aggregate(cmd)
	case CmdExplain:
		return explainCommand(cmd.Inner, e.indexes), nil
	case CmdError:
		return nil, fmt.Errorf("%s", cmd.Message)
	default:
		return nil, fmt.Errorf("sawitdb: unrecognized command")
	}
}

// createTable reports NAME_TAKEN as a benign confirmation (the table
// already exists) rather than an error; every other failure (chiefly
// NAME_INVALID) propagates.
func (e *Executor) createTable(raw string, cmd *Command) (string, error) {
	if e.wal != nil {
		if err := e.wal.append(walCreateTable, cmd.Table, nil); err != nil {
			return "", err
		}
	}
	entry, err := e.catalog.createTable(cmd.Table)
	if err != nil {
		if err == ErrNameTaken {
			return fmt.Sprintf("table %q already exists", cmd.Table), nil
		}
		return "", err
	}
	fireHook(e.logger, func() { e.hooks.OnTableCreated(cmd.Table, entry, raw) })
	return fmt.Sprintf("table %q created", cmd.Table), nil
}

// dropTable refuses to remove the system _indexes table, treats dropping
// a non-existent table as a benign message, and purges both the
// in-memory indexes and their persisted _indexes rows for the dropped
// table.
func (e *Executor) dropTable(raw string, cmd *Command) (string, error) {
	if cmd.Table == indexesTableName {
		return "", fmt.Errorf("%w: cannot drop system table %q", ErrNameInvalid, indexesTableName)
	}
	if e.wal != nil {
		if err := e.wal.append(walDropTable, cmd.Table, nil); err != nil {
			return "", err
		}
	}

	entry, ok, err := e.catalog.dropTable(cmd.Table)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("table %q does not exist", cmd.Table), nil
	}
	e.indexes.dropTable(cmd.Table)

	if idxEntry, ok, err := e.catalog.findTable(indexesTableName); err == nil && ok {
		tableEq := &Criteria{Key: "table", Op: OpEq, Val: cmd.Table}
		if _, err := e.heap.deleteMatching(idxEntry, tableEq); err != nil {
			e.logger.Warn().Err(err).Str("table", cmd.Table).Msg("failed to purge _indexes rows for dropped table")
		}
	}

	fireHook(e.logger, func() { e.hooks.OnTableDropped(cmd.Table, entry, raw) })
	return fmt.Sprintf("table %q dropped", cmd.Table), nil
}

// insert rejects an empty record and otherwise appends one row.
func (e *Executor) insert(raw string, cmd *Command) (string, error) {
	if len(cmd.Data) == 0 {
		return "", fmt.Errorf("%w: insert requires at least one field", ErrColumnsValuesMismatch)
	}
	entry, ok, err := e.catalog.findTable(cmd.Table)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTableMissing, cmd.Table)
	}
	if _, err := e.heap.insertMany(entry, []Record{cmd.Data}); err != nil {
		return "", err
	}
	fireHook(e.logger, func() { e.hooks.OnTableInserted(cmd.Table, []Record{cmd.Data}, raw) })
	return "1 row(s) inserted", nil
}

// selectRows runs the full SELECT pipeline: joins (if any) over a full
// scan of every participating table, else an access path chosen between
// index probe and full scan; then sort, offset/limit, projection and
// distinct.
func (e *Executor) selectRows(raw string, cmd *Command) ([]Record, error) {
	entry, ok, err := e.catalog.findTable(cmd.Table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableMissing, cmd.Table)
	}

	var rows []Record
	if len(cmd.Joins) > 0 {
		rows, err = e.heap.scan(entry, nil, 0, false)
		if err != nil {
			return nil, err
		}
		rows = qualifyAll(rows, cmd.Table)
		for _, j := range cmd.Joins {
			rightEntry, ok, err := e.catalog.findTable(j.Table)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrTableMissing, j.Table)
			}
			rightRows, err := e.heap.scan(rightEntry, nil, 0, false)
			if err != nil {
				return nil, err
			}
			rightRows = qualifyAll(rightRows, j.Table)
			rows, err = executeJoin(rows, rightRows, j)
			if err != nil {
				return nil, err
			}
		}
		if cmd.Criteria != nil {
			filtered := rows[:0]
			for _, r := range rows {
				if matchesCriteria(r, cmd.Criteria) {
					filtered = append(filtered, r)
				}
			}
			rows = filtered
		}
	} else {
		rows, err = e.accessPathScan(entry, cmd)
		if err != nil {
			return nil, err
		}
	}

	if cmd.Sort != nil {
		sortRows(rows, cmd.Sort)
	}
	rows = applyOffsetLimit(rows, cmd.Offset, cmd.Limit)
	rows = projectRows(rows, cmd.Cols)
	if cmd.Distinct {
		rows = distinctRows(rows)
	}

	fireHook(e.logger, func() { e.hooks.OnTableSelected(cmd.Table, rows, raw) })
	return rows, nil
}

// accessPathScan picks between an index probe and a full table scan for
// a join-free SELECT. An index probe whose hinted pages yield nothing
// falls back to a full scan, tolerating a stale page hint.
func (e *Executor) accessPathScan(entry CatalogEntry, cmd *Command) ([]Record, error) {
	if field, val, ok := equalityKey(cmd.Criteria); ok && cmd.Sort == nil {
		if idx, ok := e.indexes.get(cmd.Table, field); ok {
			rows, err := e.heap.scanPages(idx.hintedPages(val), cmd.Criteria, 0, false)
			if err != nil {
				return nil, err
			}
			if len(rows) > 0 {
				return rows, nil
			}
		}
	}

	limit := 0
	if cmd.Sort == nil && cmd.Limit != nil {
		limit = *cmd.Limit
		if cmd.Offset != nil {
			limit += *cmd.Offset
		}
	}
	return e.heap.scan(entry, cmd.Criteria, limit, false)
}

func (e *Executor) delete(raw string, cmd *Command) (string, error) {
	entry, ok, err := e.catalog.findTable(cmd.Table)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTableMissing, cmd.Table)
	}
	deleted, err := e.heap.deleteMatching(entry, cmd.Criteria)
	if err != nil {
		return "", err
	}
	fireHook(e.logger, func() { e.hooks.OnTableDeleted(cmd.Table, deleted, raw) })
	return fmt.Sprintf("%d row(s) deleted", len(deleted)), nil
}

// update is a no-op when Updates is empty.
func (e *Executor) update(raw string, cmd *Command) (string, error) {
	if len(cmd.Updates) == 0 {
		return "0 row(s) updated", nil
	}
	entry, ok, err := e.catalog.findTable(cmd.Table)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTableMissing, cmd.Table)
	}
	updated, err := e.heap.updateMatching(entry, cmd.Updates, cmd.Criteria)
	if err != nil {
		return "", err
	}
	fireHook(e.logger, func() { e.hooks.OnTableUpdated(cmd.Table, updated, raw) })
	return fmt.Sprintf("%d row(s) updated", len(updated)), nil
}

// createIndex is idempotent: a second CREATE_INDEX for the same
// (table,field) returns the same confirmation without rescanning or
// re-persisting.
func (e *Executor) createIndex(raw string, cmd *Command) (string, error) {
	if _, ok := e.indexes.get(cmd.Table, cmd.Field); ok {
		return fmt.Sprintf("index on %s.%s created", cmd.Table, cmd.Field), nil
	}
	entry, ok, err := e.catalog.findTable(cmd.Table)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTableMissing, cmd.Table)
	}

	rows, err := e.heap.scan(entry, nil, 0, true)
	if err != nil {
		return "", err
	}
	idx := e.indexes.getOrCreate(cmd.Table, cmd.Field)
	for _, rec := range rows {
		pageID := uint32(0)
		if v, ok := rec["_pageId"]; ok {
			pageID = uint32(v.Raw().(int64))
			delete(rec, "_pageId")
		}
		if v, ok := rec[cmd.Field]; ok {
			idx.insert(v, recordRef{record: rec, pageID: pageID})
		}
	}

	indexesEntry, err := e.catalog.ensureIndexesTable()
	if err != nil {
		return "", err
	}
	if _, err := e.heap.insertMany(indexesEntry, []Record{{"table": String(cmd.Table), "field": String(cmd.Field)}}); err != nil {
		return "", err
	}

	return fmt.Sprintf("index on %s.%s created", cmd.Table, cmd.Field), nil
}

// aggregate returns a bare Record for an ungrouped AGGREGATE and a
// []Record, one per group, when GROUP BY is present.
func (e *Executor) aggregate(cmd *Command) (interface{}, error) {
	entry, ok, err := e.catalog.findTable(cmd.Table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableMissing, cmd.Table)
	}
	rows, err := e.heap.scan(entry, cmd.Criteria, 0, false)
	if err != nil {
		return nil, err
	}
	return executeAggregate(rows, cmd.AggFn, cmd.AggField, cmd.GroupBy, cmd.Having), nil
}

// showTables lists user-visible tables, filtering out system tables
// (leading "_").
func (e *Executor) showTables() ([]string, error) {
	entries, err := e.catalog.listTables()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, entry := range entries {
		if !isInternalName(entry.Name) {
			out = append(out, entry.Name)
		}
	}
	return out, nil
}

func (e *Executor) showIndexes(cmd *Command) ([]IndexStats, error) {
	var idxs []*Index
	if cmd.Table != "" {
		idxs = e.indexes.forTable(cmd.Table)
	} else {
		tables, err := e.catalog.listTables()
		if err != nil {
			return nil, err
		}
		for _, t := range tables {
			idxs = append(idxs, e.indexes.forTable(t.Name)...)
		}
	}
	out := make([]IndexStats, 0, len(idxs))
	for _, idx := range idxs {
		out = append(out, idx.stats())
	}
	return out, nil
}
