// Package sawitdb implements the storage-and-execution core of SawitDB, an
// embedded single-file relational store: a paged heap-file layout, secondary
// B-tree-style indexes, an optional write-ahead log, and a small query
// executor supporting joins, aggregation, sorting, pagination and
// query-plan explanation.
//
// The tokenizer/parser that turns SQL text into a Command, the interactive
// CLI, the network server, change-data-capture consumers, clustering and
// environment loading all live outside this package; they are expected to
// build a Command and call DB.Query, and to register a Hooks value to
// observe committed mutations.
package sawitdb
