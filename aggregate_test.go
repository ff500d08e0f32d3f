package sawitdb

import "testing"

func sales() []Record {
	return []Record{
		{"region": String("west"), "amount": Int64(10)},
		{"region": String("west"), "amount": Int64(20)},
		{"region": String("east"), "amount": Int64(5)},
		{"region": String("east"), "amount": Null},
	}
}

func TestComputeAggregateCount(t *testing.T) {
	rows := sales()
	if got := computeAggregate(rows, AggCount, ""); got.Raw() != int64(4) {
		t.Errorf("COUNT(*) = %v, want 4", got.Raw())
	}
	if got := computeAggregate(rows, AggCount, "amount"); got.Raw() != int64(3) {
		t.Errorf("COUNT(amount) = %v, want 3 (nulls excluded)", got.Raw())
	}
}

func TestComputeAggregateSumAndAvg(t *testing.T) {
	rows := sales()
	if got := computeAggregate(rows, AggSum, "amount"); got.Raw() != float64(35) {
		t.Errorf("SUM(amount) = %v, want 35", got.Raw())
	}
	if got := computeAggregate(rows, AggAvg, "amount"); got.Float64Value() != 35.0/3.0 {
		t.Errorf("AVG(amount) = %v, want %v", got.Raw(), 35.0/3.0)
	}
}

func TestComputeAggregateMinMax(t *testing.T) {
	rows := sales()
	if got := computeAggregate(rows, AggMin, "amount"); got.Raw() != int64(5) {
		t.Errorf("MIN(amount) = %v, want 5", got.Raw())
	}
	if got := computeAggregate(rows, AggMax, "amount"); got.Raw() != int64(20) {
		t.Errorf("MAX(amount) = %v, want 20", got.Raw())
	}
}

func TestComputeAggregateEmptyInput(t *testing.T) {
	if got := computeAggregate(nil, AggCount, "amount"); got.Raw() != int64(0) {
		t.Errorf("COUNT over empty input = %v, want 0", got.Raw())
	}
	if got := computeAggregate(nil, AggSum, "amount"); got.Raw() != float64(0) {
		t.Errorf("SUM over empty input = %v, want 0", got.Raw())
	}
	if !computeAggregate(nil, AggAvg, "amount").IsNull() {
		t.Errorf("AVG over empty input must be null")
	}
	if !computeAggregate(nil, AggMax, "amount").IsNull() {
		t.Errorf("MAX over empty input must be null")
	}
}

func TestExecuteAggregateUngrouped(t *testing.T) {
	out := executeAggregate(sales(), AggSum, "amount", "", nil)
	result, ok := out.(Record)
	if !ok {
		t.Fatalf("expected a bare Record for an ungrouped AGGREGATE, got %T", out)
	}
	if result["sum"].Raw() != float64(35) {
		t.Errorf("sum = %v, want 35", result["sum"].Raw())
	}
}

func TestExecuteAggregateUngroupedHavingExcludesResult(t *testing.T) {
	having := &Criteria{Key: "sum", Op: OpGt, Val: 1000}
	out := executeAggregate(sales(), AggSum, "amount", "", having)
	if out != nil {
		t.Errorf("expected a failing HAVING on an ungrouped AGGREGATE to yield nil, got %#v", out)
	}
}

func TestExecuteAggregateGroupByOrderAndHaving(t *testing.T) {
	out := executeAggregate(sales(), AggSum, "amount", "region", nil)
	rows, ok := out.([]Record)
	if !ok {
		t.Fatalf("expected []Record for a grouped AGGREGATE, got %T", out)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(rows))
	}
	if rows[0]["region"].Raw() != "west" {
		t.Errorf("expected group order to follow first appearance, got %v first", rows[0]["region"].Raw())
	}

	having := &Criteria{Key: "sum", Op: OpGt, Val: 10}
	filteredOut := executeAggregate(sales(), AggSum, "amount", "region", having)
	filtered := filteredOut.([]Record)
	if len(filtered) != 1 || filtered[0]["region"].Raw() != "west" {
		t.Errorf("expected HAVING sum > 10 to keep only the west group, got %+v", filtered)
	}
}

func TestAggResultKeyLowercasesFunctionName(t *testing.T) {
	if aggResultKey(AggCount) != "count" {
		t.Errorf("aggResultKey(AggCount) = %q, want %q", aggResultKey(AggCount), "count")
	}
}
