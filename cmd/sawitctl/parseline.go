package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wowoengine/sawitdb"
)

// parseLine turns one terminated statement into a sawitdb.Command. It
// supports a minimal line syntax, not a general SQL grammar -- the
// tokenizer/parser producing a full command AST is explicitly out of
// scope for the core (spec's own non-goal); this is a thin, demo-grade
// front end over it. Unsupported shapes (subqueries, JOIN, IN/BETWEEN,
// parenthesized expressions) return an error rather than guessing.
func parseLine(line string) (sawitdb.Command, error) {
	toks := tokenize(line)
	if len(toks) == 0 {
		return sawitdb.Command{}, fmt.Errorf("empty statement")
	}
	kw := strings.ToUpper(toks[0])

	switch kw {
	case "EXPLAIN":
		if len(toks) < 2 {
			return sawitdb.Command{}, fmt.Errorf("EXPLAIN requires a statement")
		}
		inner, err := parseLine(strings.Join(toks[1:], " "))
		if err != nil {
			return sawitdb.Command{}, err
		}
		return sawitdb.Command{Kind: sawitdb.CmdExplain, Inner: &inner}, nil

	case "CREATE":
		if len(toks) >= 3 && strings.ToUpper(toks[1]) == "TABLE" {
			return sawitdb.Command{Kind: sawitdb.CmdCreateTable, Table: toks[2]}, nil
		}
		if len(toks) >= 4 && strings.ToUpper(toks[1]) == "INDEX" && strings.ToUpper(toks[2]) == "ON" {
			table, field, err := splitTableField(toks[3])
			if err != nil {
				return sawitdb.Command{}, err
			}
			return sawitdb.Command{Kind: sawitdb.CmdCreateIndex, Table: table, Field: field}, nil
		}
		return sawitdb.Command{}, fmt.Errorf("unrecognized CREATE statement")

	case "DROP":
		if len(toks) >= 3 && strings.ToUpper(toks[1]) == "TABLE" {
			return sawitdb.Command{Kind: sawitdb.CmdDropTable, Table: toks[2]}, nil
		}
		return sawitdb.Command{}, fmt.Errorf("unrecognized DROP statement")

	case "SHOW":
		if len(toks) >= 2 && strings.ToUpper(toks[1]) == "TABLES" {
			return sawitdb.Command{Kind: sawitdb.CmdShowTables}, nil
		}
		if len(toks) >= 2 && strings.ToUpper(toks[1]) == "INDEXES" {
			cmd := sawitdb.Command{Kind: sawitdb.CmdShowIndexes}
			if len(toks) >= 4 && strings.ToUpper(toks[2]) == "ON" {
				cmd.Table = toks[3]
			}
			return cmd, nil
		}
		return sawitdb.Command{}, fmt.Errorf("unrecognized SHOW statement")

	case "INSERT":
		return parseInsert(toks)

	case "SELECT":
		return parseSelect(toks)

	case "DELETE":
		return parseDelete(toks)

	case "UPDATE":
		return parseUpdate(toks)

	case "AGGREGATE":
		return parseAggregate(toks)

	default:
		return sawitdb.Command{}, fmt.Errorf("unrecognized statement %q", toks[0])
	}
}

func splitTableField(s string) (table, field string, err error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return "", "", fmt.Errorf("expected table(field), got %q", s)
	}
	return s[:open], s[open+1 : len(s)-1], nil
}

// INSERT INTO <table> field=value field=value ...
func parseInsert(toks []string) (sawitdb.Command, error) {
	if len(toks) < 4 || strings.ToUpper(toks[1]) != "INTO" {
		return sawitdb.Command{}, fmt.Errorf("expected INSERT INTO <table> field=value ...")
	}
	data := sawitdb.Record{}
	for _, assign := range toks[3:] {
		k, v, err := parseAssignment(assign)
		if err != nil {
			return sawitdb.Command{}, err
		}
		data[k] = v
	}
	return sawitdb.Command{Kind: sawitdb.CmdInsert, Table: toks[2], Data: data}, nil
}

// SELECT <cols> FROM <table> [WHERE ...] [ORDER BY field [ASC|DESC]] [LIMIT n] [OFFSET n] [DISTINCT]
func parseSelect(toks []string) (sawitdb.Command, error) {
	fromIdx := indexOfKeyword(toks, "FROM")
	if fromIdx < 0 || fromIdx == len(toks)-1 {
		return sawitdb.Command{}, fmt.Errorf("expected SELECT ... FROM <table>")
	}
	cols := strings.Split(toks[1], ",")
	if toks[1] == "*" {
		cols = nil
	}
	cmd := sawitdb.Command{Kind: sawitdb.CmdSelect, Cols: cols, Table: toks[fromIdx+1]}

	rest := toks[fromIdx+2:]
	for len(rest) > 0 {
		kw := strings.ToUpper(rest[0])
		switch kw {
		case "WHERE":
			end := nextClauseBoundary(rest[1:])
			crit, err := parseCriteria(rest[1 : 1+end])
			if err != nil {
				return sawitdb.Command{}, err
			}
			cmd.Criteria = crit
			rest = rest[1+end:]
		case "ORDER":
			if len(rest) < 3 || strings.ToUpper(rest[1]) != "BY" {
				return sawitdb.Command{}, fmt.Errorf("expected ORDER BY <field>")
			}
			dir := sawitdb.SortAsc
			consumed := 3
			if len(rest) > 3 && (strings.EqualFold(rest[3], "ASC") || strings.EqualFold(rest[3], "DESC")) {
				if strings.EqualFold(rest[3], "DESC") {
					dir = sawitdb.SortDesc
				}
				consumed = 4
			}
			cmd.Sort = &sawitdb.Sort{Key: rest[2], Dir: dir}
			rest = rest[consumed:]
		case "LIMIT":
			if len(rest) < 2 {
				return sawitdb.Command{}, fmt.Errorf("expected LIMIT <n>")
			}
			n, err := strconv.Atoi(rest[1])
			if err != nil {
				return sawitdb.Command{}, fmt.Errorf("bad LIMIT value %q", rest[1])
			}
			cmd.Limit = &n
			rest = rest[2:]
		case "OFFSET":
			if len(rest) < 2 {
				return sawitdb.Command{}, fmt.Errorf("expected OFFSET <n>")
			}
			n, err := strconv.Atoi(rest[1])
			if err != nil {
				return sawitdb.Command{}, fmt.Errorf("bad OFFSET value %q", rest[1])
			}
			cmd.Offset = &n
			rest = rest[2:]
		case "DISTINCT":
			cmd.Distinct = true
			rest = rest[1:]
		default:
			return sawitdb.Command{}, fmt.Errorf("unexpected token %q in SELECT", rest[0])
		}
	}
	return cmd, nil
}

// DELETE FROM <table> [WHERE ...]
func parseDelete(toks []string) (sawitdb.Command, error) {
	if len(toks) < 3 || strings.ToUpper(toks[1]) != "FROM" {
		return sawitdb.Command{}, fmt.Errorf("expected DELETE FROM <table>")
	}
	cmd := sawitdb.Command{Kind: sawitdb.CmdDelete, Table: toks[2]}
	rest := toks[3:]
	if len(rest) > 0 && strings.ToUpper(rest[0]) == "WHERE" {
		crit, err := parseCriteria(rest[1:])
		if err != nil {
			return sawitdb.Command{}, err
		}
		cmd.Criteria = crit
	}
	return cmd, nil
}

// UPDATE <table> SET field=value[,field=value...] [WHERE ...]
func parseUpdate(toks []string) (sawitdb.Command, error) {
	if len(toks) < 4 || strings.ToUpper(toks[2]) != "SET" {
		return sawitdb.Command{}, fmt.Errorf("expected UPDATE <table> SET field=value ...")
	}
	cmd := sawitdb.Command{Kind: sawitdb.CmdUpdate, Table: toks[1], Updates: sawitdb.Record{}}
	rest := toks[3:]
	whereIdx := indexOfKeyword(rest, "WHERE")
	assignToks := rest
	if whereIdx >= 0 {
		assignToks = rest[:whereIdx]
	}
	for _, assign := range strings.Split(strings.Join(assignToks, " "), ",") {
		k, v, err := parseAssignment(strings.TrimSpace(assign))
		if err != nil {
			return sawitdb.Command{}, err
		}
		cmd.Updates[k] = v
	}
	if whereIdx >= 0 {
		crit, err := parseCriteria(rest[whereIdx+1:])
		if err != nil {
			return sawitdb.Command{}, err
		}
		cmd.Criteria = crit
	}
	return cmd, nil
}

// AGGREGATE FN(field|*) FROM <table> [WHERE ...] [GROUP BY field] [HAVING ...]
func parseAggregate(toks []string) (sawitdb.Command, error) {
	if len(toks) < 4 || strings.ToUpper(toks[2]) != "FROM" {
		return sawitdb.Command{}, fmt.Errorf("expected AGGREGATE FN(field) FROM <table>")
	}
	open := strings.IndexByte(toks[1], '(')
	if open < 0 || !strings.HasSuffix(toks[1], ")") {
		return sawitdb.Command{}, fmt.Errorf("expected FN(field), got %q", toks[1])
	}
	fn := sawitdb.AggFunc(strings.ToUpper(toks[1][:open]))
	field := toks[1][open+1 : len(toks[1])-1]
	cmd := sawitdb.Command{Kind: sawitdb.CmdAggregate, AggFn: fn, AggField: field, Table: toks[3]}

	rest := toks[4:]
	for len(rest) > 0 {
		switch strings.ToUpper(rest[0]) {
		case "WHERE":
			end := nextClauseBoundary(rest[1:])
			crit, err := parseCriteria(rest[1 : 1+end])
			if err != nil {
				return sawitdb.Command{}, err
			}
			cmd.Criteria = crit
			rest = rest[1+end:]
		case "GROUP":
			if len(rest) < 3 || strings.ToUpper(rest[1]) != "BY" {
				return sawitdb.Command{}, fmt.Errorf("expected GROUP BY <field>")
			}
			cmd.GroupBy = rest[2]
			rest = rest[3:]
		case "HAVING":
			crit, err := parseCriteria(rest[1:])
			if err != nil {
				return sawitdb.Command{}, err
			}
			cmd.Having = crit
			rest = rest[len(rest):]
		default:
			return sawitdb.Command{}, fmt.Errorf("unexpected token %q in AGGREGATE", rest[0])
		}
	}
	return cmd, nil
}

// nextClauseBoundary returns how many of toks belong to a WHERE clause
// before the next top-level ORDER/LIMIT/OFFSET/GROUP/HAVING/DISTINCT
// keyword.
func nextClauseBoundary(toks []string) int {
	for i, t := range toks {
		switch strings.ToUpper(t) {
		case "ORDER", "LIMIT", "OFFSET", "GROUP", "HAVING", "DISTINCT":
			return i
		}
	}
	return len(toks)
}

func indexOfKeyword(toks []string, kw string) int {
	for i, t := range toks {
		if strings.EqualFold(t, kw) {
			return i
		}
	}
	return -1
}

// parseCriteria builds a Criteria tree from a flat token run joined by
// top-level AND/OR, left to right, with AND binding tighter than OR --
// ANDs within a run of the same logic are folded into one compound node
// before folding in ORs.
func parseCriteria(toks []string) (*sawitdb.Criteria, error) {
	if len(toks) == 0 {
		return nil, fmt.Errorf("expected a condition")
	}
	text := strings.Join(toks, " ")
	orGroups := splitTopLevel(text, "OR")
	var orLeaves []sawitdb.Criteria
	for _, g := range orGroups {
		andLeaves := splitTopLevel(g, "AND")
		leaves := make([]sawitdb.Criteria, 0, len(andLeaves))
		for _, a := range andLeaves {
			leaf, err := parseLeaf(strings.TrimSpace(a))
			if err != nil {
				return nil, err
			}
			leaves = append(leaves, leaf)
		}
		if len(leaves) == 1 {
			orLeaves = append(orLeaves, leaves[0])
		} else {
			orLeaves = append(orLeaves, sawitdb.Criteria{Compound: true, Logic: sawitdb.LogicAnd, Conditions: leaves})
		}
	}
	if len(orLeaves) == 1 {
		return &orLeaves[0], nil
	}
	return &sawitdb.Criteria{Compound: true, Logic: sawitdb.LogicOr, Conditions: orLeaves}, nil
}

// splitTopLevel splits s on whole-word occurrences of sep (case
// insensitive), ignoring occurrences inside a quoted string.
func splitTopLevel(s string, sep string) []string {
	words := tokenize(s)
	var groups []string
	var cur []string
	for _, w := range words {
		if strings.EqualFold(w, sep) {
			groups = append(groups, strings.Join(cur, " "))
			cur = nil
			continue
		}
		cur = append(cur, w)
	}
	groups = append(groups, strings.Join(cur, " "))
	return groups
}

var leafOps = []sawitdb.Op{
	sawitdb.OpNeqAlt, sawitdb.OpNeq, sawitdb.OpLte, sawitdb.OpGte,
	sawitdb.OpEq, sawitdb.OpLt, sawitdb.OpGt,
}

// parseLeaf parses one condition: "key OP value", "key LIKE pattern",
// "key IS NULL" or "key IS NOT NULL".
func parseLeaf(s string) (sawitdb.Criteria, error) {
	fields := tokenize(s)
	if len(fields) >= 2 && strings.EqualFold(fields[1], "IS") {
		if len(fields) == 3 && strings.EqualFold(fields[2], "NULL") {
			return sawitdb.Criteria{Key: fields[0], Op: sawitdb.OpIsNull}, nil
		}
		if len(fields) == 4 && strings.EqualFold(fields[2], "NOT") && strings.EqualFold(fields[3], "NULL") {
			return sawitdb.Criteria{Key: fields[0], Op: sawitdb.OpIsNotNull}, nil
		}
	}
	if len(fields) >= 3 && strings.EqualFold(fields[1], "LIKE") {
		return sawitdb.Criteria{Key: fields[0], Op: sawitdb.OpLike, Val: strings.Join(fields[2:], " ")}, nil
	}

	for _, op := range leafOps {
		if idx := strings.Index(s, string(op)); idx > 0 {
			key := strings.TrimSpace(s[:idx])
			val := strings.TrimSpace(s[idx+len(op):])
			if strings.ContainsAny(key, " ") {
				continue // op matched inside a later token; keep looking
			}
			return sawitdb.Criteria{Key: key, Op: op, Val: parseLiteral(val)}, nil
		}
	}
	return sawitdb.Criteria{}, fmt.Errorf("cannot parse condition %q", s)
}

func parseAssignment(s string) (string, sawitdb.Value, error) {
	idx := strings.IndexByte(s, '=')
	if idx <= 0 {
		return "", sawitdb.Value{}, fmt.Errorf("expected field=value, got %q", s)
	}
	key := s[:idx]
	val := s[idx+1:]
	return key, sawitdb.FromAny(parseLiteral(val)), nil
}

// parseLiteral unquotes a string literal or parses an int64/float64/bool,
// defaulting to the raw string.
func parseLiteral(s string) interface{} {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if strings.EqualFold(s, "true") {
		return true
	}
	if strings.EqualFold(s, "false") {
		return false
	}
	if strings.EqualFold(s, "null") {
		return nil
	}
	return s
}

// tokenize splits on whitespace, keeping double-quoted segments (which
// may themselves contain spaces) as single tokens.
func tokenize(s string) []string {
	var toks []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case r == ' ' && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}
