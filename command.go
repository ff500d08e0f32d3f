package sawitdb

// CommandKind tags the variant a Command holds: the tagged-union surface
// the external parser builds and the Executor consumes.
type CommandKind int

const (
	CmdCreateTable CommandKind = iota
	CmdShowTables
	CmdShowIndexes
	CmdInsert
	CmdSelect
	CmdDelete
	CmdUpdate
	CmdDropTable
	CmdCreateIndex
	CmdAggregate
	CmdExplain
	CmdError
)

// Op is a leaf or compound criteria operator.
type Op string

const (
	OpEq         Op = "="
	OpNeq        Op = "!="
	OpNeqAlt     Op = "<>"
	OpLt         Op = "<"
	OpGt         Op = ">"
	OpLte        Op = "<="
	OpGte        Op = ">="
	OpIn         Op = "IN"
	OpNotIn      Op = "NOT IN"
	OpLike       Op = "LIKE"
	OpBetween    Op = "BETWEEN"
	OpIsNull     Op = "IS NULL"
	OpIsNotNull  Op = "IS NOT NULL"
)

// Logic joins two or more Criteria in a compound node.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Criteria is either a single {key,op,val} leaf or a compound
// {type:"compound", logic, conditions} tree. AND binds tighter than OR;
// that precedence is enforced by the external parser when it builds the
// tree, not by the evaluator.
type Criteria struct {
	// Leaf fields.
	Key string
	Op  Op
	Val interface{} // a literal, or []interface{} for IN/NOT IN/BETWEEN

	// Compound fields.
	Compound   bool
	Logic      Logic
	Conditions []Criteria
}

// JoinType enumerates the supported join kinds.
type JoinType string

const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
	JoinCross JoinType = "CROSS"
)

// JoinOn is the ON clause of a non-CROSS join.
type JoinOn struct {
	Left  string
	Op    Op
	Right string
}

// Join describes one JOIN clause.
type Join struct {
	Table string
	Type  JoinType
	On    JoinOn
}

// SortDir is the direction of an ORDER BY clause.
type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

// Sort is an ORDER BY clause.
type Sort struct {
	Key string
	Dir SortDir
}

// AggFunc enumerates the supported aggregate functions.
type AggFunc string

const (
	AggCount AggFunc = "COUNT"
	AggSum   AggFunc = "SUM"
	AggAvg   AggFunc = "AVG"
	AggMin   AggFunc = "MIN"
	AggMax   AggFunc = "MAX"
)

// Command is the tagged union the (external) parser builds and the
// Executor consumes.
type Command struct {
	Kind CommandKind

	// CREATE_TABLE / DROP_TABLE / CREATE_INDEX / SHOW_INDEXES
	Table string
	Field string // CREATE_INDEX

	// INSERT
	Data Record

	// SELECT / DELETE / UPDATE / AGGREGATE
	Cols     []string // SELECT; "*" or empty means all columns
	Criteria *Criteria
	Sort     *Sort
	Limit    *int
	Offset   *int
	Joins    []Join
	Distinct bool
	Updates  Record // UPDATE

	// AGGREGATE
	AggFn    AggFunc
	AggField string
	GroupBy  string
	Having   *Criteria

	// EXPLAIN
	Inner *Command

	// ERROR
	Message string
}
