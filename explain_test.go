package sawitdb

import "testing"

func TestExplainCommandScanStepUsesIndexWhenCriteriaIsEquality(t *testing.T) {
	indexes := newIndexSet()
	indexes.getOrCreate("users", "id")

	cmd := &Command{Kind: CmdSelect, Table: "users", Criteria: &Criteria{Key: "id", Op: OpEq, Val: 1}}
	plan := explainCommand(cmd, indexes)
	if len(plan.Steps) == 0 || plan.Steps[0].Kind != "SCAN" {
		t.Fatalf("expected a SCAN step first, got %+v", plan.Steps)
	}
	if plan.Steps[0].Method != "Index Lookup" {
		t.Errorf("expected an equality criteria on an indexed field to report Index Lookup, got %q", plan.Steps[0].Method)
	}
}

func TestExplainCommandScanStepFullScanWithoutIndex(t *testing.T) {
	indexes := newIndexSet()
	cmd := &Command{Kind: CmdSelect, Table: "users", Criteria: &Criteria{Key: "id", Op: OpEq, Val: 1}}
	plan := explainCommand(cmd, indexes)
	if plan.Steps[0].Method != "Full Table Scan" {
		t.Errorf("expected Full Table Scan without a matching index, got %q", plan.Steps[0].Method)
	}
}

func TestExplainCommandJoinStepMethodSelection(t *testing.T) {
	indexes := newIndexSet()
	cmd := &Command{
		Kind:  CmdSelect,
		Table: "users",
		Joins: []Join{
			{Table: "orders", Type: JoinInner, On: JoinOn{Left: "users.id", Right: "orders.user_id", Op: OpEq}},
			{Table: "shipments", Type: JoinCross},
		},
	}
	plan := explainCommand(cmd, indexes)

	var joinSteps []PlanStep
	for _, s := range plan.Steps {
		if s.Kind == "JOIN" {
			joinSteps = append(joinSteps, s)
		}
	}
	if len(joinSteps) != 2 {
		t.Fatalf("expected 2 JOIN steps, got %d", len(joinSteps))
	}
	if joinSteps[0].Method != "Hash Join" {
		t.Errorf("expected an equi-join to report Hash Join, got %q", joinSteps[0].Method)
	}
	if joinSteps[1].Method != "Nested Loop" {
		t.Errorf("expected a CROSS join to report Nested Loop, got %q", joinSteps[1].Method)
	}
}

func TestExplainCommandAggregatePipeline(t *testing.T) {
	indexes := newIndexSet()
	cmd := &Command{
		Kind:     CmdAggregate,
		Table:    "orders",
		AggFn:    AggSum,
		AggField: "amount",
		GroupBy:  "region",
		Having:   &Criteria{Key: "sum", Op: OpGt, Val: 100},
	}
	plan := explainCommand(cmd, indexes)

	var kinds []string
	for _, s := range plan.Steps {
		kinds = append(kinds, s.Kind)
	}
	want := []string{"SCAN", "GROUP", "AGGREGATE", "HAVING"}
	if len(kinds) != len(want) {
		t.Fatalf("expected steps %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("step %d = %q, want %q", i, kinds[i], want[i])
		}
	}
}

func TestExplainCommandSelectModifiersOrder(t *testing.T) {
	indexes := newIndexSet()
	limit := 5
	offset := 1
	cmd := &Command{
		Kind:     CmdSelect,
		Table:    "users",
		Distinct: true,
		Sort:     &Sort{Key: "name", Dir: SortAsc},
		Limit:    &limit,
		Offset:   &offset,
	}
	plan := explainCommand(cmd, indexes)
	var kinds []string
	for _, s := range plan.Steps {
		kinds = append(kinds, s.Kind)
	}
	want := []string{"SCAN", "DISTINCT", "SORT", "OFFSET", "LIMIT", "PROJECT"}
	if len(kinds) != len(want) {
		t.Fatalf("expected steps %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("step %d = %q, want %q", i, kinds[i], want[i])
		}
	}
}

func TestExplainCommandIncludesIndexStats(t *testing.T) {
	indexes := newIndexSet()
	idx := indexes.getOrCreate("users", "id")
	idx.insert(Int64(1), recordRef{record: Record{"id": Int64(1)}})

	cmd := &Command{Kind: CmdSelect, Table: "users"}
	plan := explainCommand(cmd, indexes)
	if len(plan.Indexes) != 1 || plan.Indexes[0].KeyField != "id" {
		t.Errorf("expected explain to report the table's index stats, got %+v", plan.Indexes)
	}
}
