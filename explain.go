package sawitdb

// PlanStep is one row of an EXPLAIN plan.
type PlanStep struct {
	Kind     string // SCAN, JOIN, DISTINCT, SORT, LIMIT, OFFSET, PROJECT, GROUP, AGGREGATE, HAVING
	Table    string
	Method   string   // SCAN: "Index Lookup" | "Full Table Scan"; JOIN: "Hash Join" | "Nested Loop"
	JoinType JoinType // set on JOIN steps
	Detail   string
}

// Plan is the structured result of EXPLAIN: an enumeration of steps plus
// the indexes available on the driving table.
type Plan struct {
	Steps   []PlanStep
	Indexes []IndexStats
}

// explainCommand builds the plan for cmd without running it, used by the
// CmdExplain dispatch in executor.go.
func explainCommand(cmd *Command, indexes *indexSet) *Plan {
	plan := &Plan{}

	switch cmd.Kind {
	case CmdSelect, CmdDelete, CmdUpdate, CmdAggregate:
		plan.Steps = append(plan.Steps, scanStep(cmd, indexes))
	}

	for _, j := range cmd.Joins {
		plan.Steps = append(plan.Steps, joinStep(j))
	}

	if cmd.Distinct {
		plan.Steps = append(plan.Steps, PlanStep{Kind: "DISTINCT"})
	}
	if cmd.Sort != nil {
		plan.Steps = append(plan.Steps, PlanStep{Kind: "SORT", Detail: string(cmd.Sort.Dir) + " " + cmd.Sort.Key})
	}
	if cmd.Offset != nil {
		plan.Steps = append(plan.Steps, PlanStep{Kind: "OFFSET"})
	}
	if cmd.Limit != nil {
		plan.Steps = append(plan.Steps, PlanStep{Kind: "LIMIT"})
	}
	if cmd.Kind == CmdSelect {
		plan.Steps = append(plan.Steps, PlanStep{Kind: "PROJECT"})
	}

	if cmd.Kind == CmdAggregate {
		if cmd.GroupBy != "" {
			plan.Steps = append(plan.Steps, PlanStep{Kind: "GROUP", Detail: cmd.GroupBy})
		}
		plan.Steps = append(plan.Steps, PlanStep{Kind: "AGGREGATE", Detail: string(cmd.AggFn)})
		if cmd.Having != nil {
			plan.Steps = append(plan.Steps, PlanStep{Kind: "HAVING"})
		}
	}

	for _, idx := range indexes.forTable(cmd.Table) {
		plan.Indexes = append(plan.Indexes, idx.stats())
	}
	return plan
}

// scanStep reports the access path the executor takes for cmd: an index
// lookup for an equality on an indexed field, which SELECT uses only
// without joins or ORDER BY and AGGREGATE never uses.
func scanStep(cmd *Command, indexes *indexSet) PlanStep {
	method := "Full Table Scan"
	probes := cmd.Kind == CmdDelete || cmd.Kind == CmdUpdate ||
		(cmd.Kind == CmdSelect && cmd.Sort == nil && len(cmd.Joins) == 0)
	if field, _, ok := equalityKey(cmd.Criteria); ok && probes {
		if _, ok := indexes.get(cmd.Table, field); ok {
			method = "Index Lookup"
		}
	}
	return PlanStep{Kind: "SCAN", Table: cmd.Table, Method: method}
}

func joinStep(j Join) PlanStep {
	method := "Nested Loop"
	if j.Type != JoinCross && j.On.Op == OpEq {
		method = "Hash Join"
	}
	return PlanStep{Kind: "JOIN", Table: j.Table, Method: method, JoinType: j.Type}
}
