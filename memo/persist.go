package memo

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/quantumish/cascadeopt/plan"
	"github.com/spf13/cast"
)

// Serialize writes the memo, its applied-rule history (implicitly, via
// which groups/expressions exist) and its step log to the stable,
// line-oriented textual form specified in spec.md §6:
//
//	P<i>=(<tag> <args...>)
//	expr_id=<n> | (<tag> [child-group|predicate]…)
//	group_id=<g> winner=<e> weighted_cost=<f> cost={...} stat={...} | (<best-expr>)
//	  schema=[<name>:<type>, …]
//	  column_ref=[<table>.<idx>, …]
//	  step=<stage>/<seq> apply_rule ...
//	  step=<stage>/<seq> decide_winner ...
//
// Payload pool policy (spec.md §9, Open Question adjacent: the literal
// grammar leaves the exact P<i> population rule to the implementation).
// This implementation registers one pool entry per distinct (tag,
// payload) pair that carries a non-None payload, in ascending ExprID
// order of first appearance, and every expr_id line that carries a
// payload references its pool entry by index instead of repeating the
// literal text; every expr_id line's remaining args are plain child
// group-id numbers. This keeps the format both diff-friendly (payload
// text lives in exactly one place) and trivially re-parseable.
func (m *Memo) Serialize(w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bw := bufio.NewWriter(w)

	pool, poolIndex := m.buildPayloadPool()
	for i, p := range pool {
		fmt.Fprintf(bw, "P%d=(%s %s)\n", i+1, p.tag, p.payload.String())
	}

	exprIDs := make([]ExprID, 0, len(m.exprByID))
	for id := range m.exprByID {
		exprIDs = append(exprIDs, id)
	}
	sort.Slice(exprIDs, func(i, j int) bool { return exprIDs[i] < exprIDs[j] })
	for _, id := range exprIDs {
		e := m.exprByID[id]
		fmt.Fprintf(bw, "expr_id=%d | %s\n", id, m.renderExpr(e, poolIndex))
	}

	groupIDs := make([]GroupID, 0)
	for i := 1; i < len(m.groups); i++ {
		if m.groups[i] != nil {
			groupIDs = append(groupIDs, GroupID(i))
		}
	}
	for _, gid := range groupIDs {
		g := m.groups[gid]
		m.writeGroupLine(bw, g, poolIndex)
	}

	for _, se := range m.log.entries {
		fmt.Fprintf(bw, "  %s\n", se.String())
	}

	return bw.Flush()
}

type poolEntry struct {
	tag     Tag
	payload Payload
}

func (m *Memo) buildPayloadPool() ([]poolEntry, map[uint64]int) {
	exprIDs := make([]ExprID, 0, len(m.exprByID))
	for id := range m.exprByID {
		exprIDs = append(exprIDs, id)
	}
	sort.Slice(exprIDs, func(i, j int) bool { return exprIDs[i] < exprIDs[j] })

	var pool []poolEntry
	seen := make(map[uint64]int) // contentHash(tag,payload,nil) -> 1-based pool index
	for _, id := range exprIDs {
		e := m.exprByID[id]
		if e.Payload.Kind == 0 { // PayloadNone
			continue
		}
		key := contentHash(e.Tag, e.Payload, nil)
		if _, ok := seen[key]; ok {
			continue
		}
		pool = append(pool, poolEntry{tag: e.Tag, payload: e.Payload})
		seen[key] = len(pool)
	}
	return pool, seen
}

func (m *Memo) renderExpr(e *GroupExpr, poolIndex map[uint64]int) string {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(e.Tag.String())
	if e.Payload.Kind != 0 {
		key := contentHash(e.Tag, e.Payload, nil)
		if idx, ok := poolIndex[key]; ok {
			fmt.Fprintf(&b, " P%d", idx)
		}
	}
	for _, cg := range e.ChildGroups {
		fmt.Fprintf(&b, " %d", int(cg))
	}
	b.WriteString(")")
	return b.String()
}

func (m *Memo) writeGroupLine(bw *bufio.Writer, g *Group, poolIndex map[uint64]int) {
	sg, hasEmptySubgoal := g.Subgoals[PhysicalProps{}.Normalize()]
	switch {
	case hasEmptySubgoal && sg.Winner != nil:
		w := sg.Winner
		we := m.exprByID[w.ExprID]
		fmt.Fprintf(bw, "group_id=%d winner=%d weighted_cost=%g cost={compute=%g,io=%g,network=%g} stat={row_cnt=%g} | %s\n",
			g.ID, w.ExprID, w.Weighted, w.Cost.Compute, w.Cost.IO, w.Cost.Network, rowCount(g), m.renderExpr(we, poolIndex))
	default:
		fmt.Fprintf(bw, "group_id=%d winner=none\n", g.ID)
	}
	if g.LogicalProps != nil {
		schema := make([]string, len(g.LogicalProps.Schema))
		for i, c := range g.LogicalProps.Schema {
			schema[i] = c.Name + ":" + c.Type
		}
		fmt.Fprintf(bw, "  schema=[%s]\n", strings.Join(schema, ", "))

		refs := make([]string, len(g.LogicalProps.ColumnRefs))
		for i, cr := range g.LogicalProps.ColumnRefs {
			refs[i] = cr.String()
		}
		fmt.Fprintf(bw, "  column_ref=[%s]\n", strings.Join(refs, ", "))
	}
	// members is an extension of the schema/column_ref nested-line shape
	// recording which expr_ids belong to this group, since the group's own
	// line only names its winner. Without it a round trip would silently
	// forget every non-winning member expression.
	members := make([]string, len(g.Members))
	for i, eid := range g.Members {
		members[i] = eid.String()
	}
	fmt.Fprintf(bw, "  members=[%s]\n", strings.Join(members, ", "))
}

func rowCount(g *Group) float64 {
	if g.LogicalProps == nil {
		return 0
	}
	return g.LogicalProps.RowCount
}

// Deserialize reconstructs a Memo from the textual form Serialize writes,
// for re-optimization across runs (spec.md §4.G, §6). Step log entries
// are restored in order so StepLog().Len() and determinism checks keep
// working across a save/load round trip; group winners and schemas are
// restored from the same lines Serialize produced them from.
func Deserialize(r io.Reader, costP CostProvider, propsP PropertyProvider) (*Memo, error) {
	m := New(costP, propsP)
	pool := map[int]poolEntry{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var pendingGroup *Group
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		switch {
		case strings.HasPrefix(trimmed, "P") && strings.Contains(trimmed, "="):
			idx, entry, err := parsePoolLine(trimmed)
			if err != nil {
				return nil, err
			}
			pool[idx] = entry
		case strings.HasPrefix(trimmed, "expr_id="):
			if err := parseExprLine(m, trimmed, pool); err != nil {
				return nil, err
			}
		case strings.HasPrefix(trimmed, "group_id="):
			g, err := parseGroupLine(m, trimmed)
			if err != nil {
				return nil, err
			}
			pendingGroup = g
		case strings.HasPrefix(trimmed, "schema="):
			if pendingGroup != nil {
				pendingGroup.LogicalProps = ensureProps(pendingGroup.LogicalProps)
				pendingGroup.LogicalProps.Schema = parseSchema(trimmed)
			}
		case strings.HasPrefix(trimmed, "column_ref="):
			if pendingGroup != nil {
				pendingGroup.LogicalProps = ensureProps(pendingGroup.LogicalProps)
				pendingGroup.LogicalProps.ColumnRefs = parseColumnRefs(trimmed)
			}
		case strings.HasPrefix(trimmed, "members="):
			if pendingGroup != nil {
				ids := parseMembers(trimmed)
				pendingGroup.Members = ids
				for _, eid := range ids {
					if e, ok := m.exprByID[eid]; ok {
						e.Group = pendingGroup.ID
					}
				}
			}
		case strings.HasPrefix(trimmed, "step="):
			if err := parseStepLine(m, trimmed); err != nil {
				return nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func ensureProps(p *LogicalProps) *LogicalProps {
	if p == nil {
		return &LogicalProps{}
	}
	return p
}

func parsePoolLine(line string) (int, poolEntry, error) {
	// P<i>=(<tag> <args...>)
	eq := strings.IndexByte(line, '=')
	idx, err := strconv.Atoi(strings.TrimPrefix(line[:eq], "P"))
	if err != nil {
		return 0, poolEntry{}, fmt.Errorf("memo: bad pool index in %q: %w", line, err)
	}
	body := strings.TrimSuffix(strings.TrimPrefix(line[eq+1:], "("), ")")
	fields := strings.SplitN(body, " ", 2)
	tag := tagByName(fields[0])
	var value string
	if len(fields) > 1 {
		value = fields[1]
	}
	return idx, poolEntry{tag: tag, payload: parsePayloadText(tag, value)}, nil
}

func parseExprLine(m *Memo, line string, pool map[int]poolEntry) error {
	// expr_id=<n> | (<tag> [P<i>|<group>]...)
	parts := strings.SplitN(line, "|", 2)
	idPart := strings.TrimSpace(strings.TrimPrefix(parts[0], "expr_id="))
	id, err := strconv.Atoi(idPart)
	if err != nil {
		return fmt.Errorf("memo: bad expr_id in %q: %w", line, err)
	}
	body := strings.TrimSpace(parts[1])
	body = strings.TrimSuffix(strings.TrimPrefix(body, "("), ")")
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return fmt.Errorf("memo: empty expr body in %q", line)
	}
	tag := tagByName(fields[0])
	var payload Payload
	var children []GroupID
	for _, f := range fields[1:] {
		if strings.HasPrefix(f, "P") {
			pidx, err := strconv.Atoi(strings.TrimPrefix(f, "P"))
			if err != nil {
				return fmt.Errorf("memo: bad pool ref in %q: %w", line, err)
			}
			payload = pool[pidx].payload
			continue
		}
		gid, err := strconv.Atoi(f)
		if err != nil {
			return fmt.Errorf("memo: bad child group in %q: %w", line, err)
		}
		children = append(children, GroupID(gid))
	}

	e := &GroupExpr{ID: ExprID(id), Tag: tag, Payload: payload, ChildGroups: children}
	m.exprByID[ExprID(id)] = e
	key := structuralKey(tag, payload, children)
	m.exprTable[key] = append(m.exprTable[key], e)
	if int(id) > int(m.nextExprID) {
		m.nextExprID = ExprID(id)
	}
	for _, cg := range children {
		refs, ok := m.referrers[cg]
		if !ok {
			refs = make(map[ExprID]struct{})
			m.referrers[cg] = refs
		}
		refs[ExprID(id)] = struct{}{}
	}
	return nil
}

func parseGroupLine(m *Memo, line string) (*Group, error) {
	// group_id=<g> winner=<e|none> [weighted_cost=<f> cost={...} stat={...} | (<expr>)]
	fields := strings.Fields(line)
	gid, err := strconv.Atoi(strings.TrimPrefix(fields[0], "group_id="))
	if err != nil {
		return nil, fmt.Errorf("memo: bad group_id in %q: %w", line, err)
	}
	for len(m.groups) <= gid {
		m.groups = append(m.groups, nil)
	}
	g := m.groups[gid]
	if g == nil {
		g = newGroup(GroupID(gid))
		m.groups[gid] = g
	}
	if GroupID(gid) > m.nextGroupID {
		m.nextGroupID = GroupID(gid)
	}
	if m.root == 0 || GroupID(gid) > m.root {
		m.root = GroupID(gid)
	}
	if len(fields) < 2 {
		return g, nil
	}

	winnerField := strings.TrimPrefix(fields[1], "winner=")
	if winnerField == "none" {
		return g, nil
	}
	eid, err := strconv.Atoi(winnerField)
	if err != nil {
		return nil, fmt.Errorf("memo: bad winner in %q: %w", line, err)
	}
	var weighted float64
	var compute, ioCost, network float64
	for _, f := range fields[2:] {
		switch {
		case strings.HasPrefix(f, "weighted_cost="):
			weighted = cast.ToFloat64(strings.TrimPrefix(f, "weighted_cost="))
		case strings.HasPrefix(f, "cost={"):
			inner := strings.TrimSuffix(strings.TrimPrefix(f, "cost={"), ",")
			for _, kv := range strings.Split(strings.TrimSuffix(inner, "}"), ",") {
				kv = strings.TrimSuffix(kv, "}")
				parts := strings.SplitN(kv, "=", 2)
				if len(parts) != 2 {
					continue
				}
				switch parts[0] {
				case "compute":
					compute = cast.ToFloat64(parts[1])
				case "io":
					ioCost = cast.ToFloat64(parts[1])
				case "network":
					network = cast.ToFloat64(parts[1])
				}
			}
		}
	}
	g.Subgoals[PhysicalProps{}.Normalize()] = &Subgoal{
		Key:    PhysicalProps{},
		Winner: &Winner{ExprID: ExprID(eid), Cost: Cost{Compute: compute, IO: ioCost, Network: network}, Weighted: weighted},
	}
	return g, nil
}

func parseSchema(line string) []ColumnDef {
	inner := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(strings.TrimPrefix(line, "schema=")), "["), "]")
	if inner == "" {
		return nil
	}
	var out []ColumnDef
	for _, part := range strings.Split(inner, ", ") {
		nt := strings.SplitN(part, ":", 2)
		if len(nt) == 2 {
			out = append(out, ColumnDef{Name: nt[0], Type: nt[1]})
		}
	}
	return out
}

func parseColumnRefs(line string) []ColumnRef {
	inner := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(strings.TrimPrefix(line, "column_ref=")), "["), "]")
	if inner == "" {
		return nil
	}
	var out []ColumnRef
	for _, part := range strings.Split(inner, ", ") {
		tc := strings.SplitN(part, ".", 2)
		if len(tc) == 2 {
			out = append(out, ColumnRef{Table: cast.ToInt(tc[0]), Col: cast.ToInt(tc[1])})
		}
	}
	return out
}

func parseMembers(line string) []ExprID {
	inner := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(strings.TrimPrefix(line, "members=")), "["), "]")
	if inner == "" {
		return nil
	}
	var out []ExprID
	for _, part := range strings.Split(inner, ", ") {
		out = append(out, ExprID(cast.ToInt(part)))
	}
	return out
}

func parseStepLine(m *Memo, line string) error {
	fields := strings.Fields(line)
	loc := strings.TrimPrefix(fields[0], "step=")
	stageSeq := strings.SplitN(loc, "/", 2)
	stage := cast.ToInt(stageSeq[0])
	kind := fields[1]
	e := StepEntry{Stage: stage, Kind: StepKind(kind)}
	for _, f := range fields[2:] {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "group_id":
			e.GroupID = GroupID(cast.ToInt(kv[1]))
		case "applied_expr_id":
			e.AppliedExprID = ExprID(cast.ToInt(kv[1]))
		case "produced_expr_id":
			e.ProducedExprID = ExprID(cast.ToInt(kv[1]))
		case "rule_id":
			e.RuleID = uint16(cast.ToInt(kv[1]))
		case "proposed_winner_expr":
			e.ProposedWinnerExpr = ExprID(cast.ToInt(kv[1]))
		case "total_weighted_cost":
			e.TotalWeightedCost = cast.ToFloat64(kv[1])
		}
	}
	if m.stage < stage {
		m.stage = stage
	}
	m.log.append(e)
	return nil
}

func tagByName(name string) Tag {
	return plan.TagByName(name)
}

// parsePayloadText reconstructs a best-effort Payload from a tag and the
// text Payload.String() produced for it. This is a one-way inverse: it
// only needs to recover enough of the value for the round-tripped memo to
// remain structurally useful (re-optimization, trace comparison), not to
// recover the exact originating constructor.
func parsePayloadText(tag Tag, text string) Payload {
	switch tag {
	case plan.TagScan, plan.TagPhysicalScan, plan.TagValues, plan.TagPhysicalValues:
		return plan.TablePayload(text)
	case plan.TagEmptyRelation, plan.TagPhysicalEmptyRelation:
		return plan.EmptyRelationPayload(cast.ToInt(text))
	case plan.TagColumnRef:
		tc := strings.SplitN(text, ".", 2)
		if len(tc) == 2 {
			return plan.ColumnRefPayload(cast.ToInt(tc[0]), cast.ToInt(tc[1]))
		}
		return Payload{}
	case plan.TagJoin, plan.TagPhysicalHashJoin, plan.TagPhysicalNestedLoopJoin, plan.TagPhysicalMergeJoin:
		return plan.JoinKindPayload(joinKindByName(text))
	case plan.TagSortOrder:
		return plan.SortOrderPayload(text == "asc")
	case plan.TagFuncCall:
		return plan.FuncPayload(text)
	case plan.TagPlaceholder:
		n := strings.TrimPrefix(text, "g")
		return plan.GroupRefPayload(cast.ToInt(n))
	case plan.TagBinaryOp, plan.TagLogicalOp, plan.TagUnaryOp, plan.TagCast, plan.TagLike, plan.TagInList, plan.TagBetween:
		if op, ok := opKindByName(text); ok {
			return plan.OpPayload(op)
		}
		return plan.StringPayload(text)
	default:
		return parseScalarPayloadText(text)
	}
}

func parseScalarPayloadText(text string) Payload {
	switch {
	case text == "":
		return Payload{}
	case text == "true" || text == "false":
		return plan.BoolPayload(text == "true")
	case strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`):
		s, err := strconv.Unquote(text)
		if err != nil {
			s = strings.Trim(text, `"`)
		}
		return plan.StringPayload(s)
	case strings.Contains(text, "."):
		return plan.FloatPayload(cast.ToFloat64(text))
	default:
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return plan.IntPayload(n, 64)
		}
		return plan.StringPayload(text)
	}
}

func joinKindByName(name string) plan.JoinKind {
	for k := plan.JoinInner; k <= plan.JoinCross; k++ {
		if k.String() == name {
			return k
		}
	}
	return plan.JoinInner
}

func opKindByName(name string) (plan.OpKind, bool) {
	for op := plan.OpEq; op <= plan.OpDiv; op++ {
		if op.String() == name {
			return op, true
		}
	}
	return plan.OpInvalid, false
}
