package perfmon

import (
	"fmt"
	"strings"

	"github.com/recordgraph/rg/hexastore"
	"github.com/recordgraph/rg/sparql"
)

// PlanNode is one node of a recursive query plan description: one node
// per pattern operator, and for each triple the hexastore ordering
// chosen for it (§6.2 names `explain`/`explainAnalyze` without a body
// in spec.md §4).
type PlanNode struct {
	Kind     string
	Detail   string
	Children []PlanNode

	// Populated only by ExplainAnalyze (spec.md §4.11.3: "Records
	// intermediate cardinalities").
	Cardinality int
	HasCardinality bool
}

// Explain builds a static plan description without running the query:
// each basic graph pattern lists its triples in declared order with the
// hexastore ordering chosen for each. The evaluator's selectivity-based
// join order is not shown, and no cardinalities are included.
func Explain(p *sparql.Pattern) PlanNode {
	return explain(p, nil)
}

// ExplainAnalyze builds the same description as Explain and decorates it
// with cardinalities from stats, as collected by an earlier
// sparql.Evaluate; it does not run p itself. In every basic graph
// pattern the i-th declared triple gets stats.IntermediateCardinalities[i],
// whereas the evaluator records those values per join step in its own
// selectivity order.
func ExplainAnalyze(p *sparql.Pattern, stats *sparql.Stats) PlanNode {
	return explain(p, stats)
}

func explain(p *sparql.Pattern, stats *sparql.Stats) PlanNode {
	if p == nil {
		return PlanNode{Kind: "empty"}
	}
	switch p.Kind {
	case sparql.Basic:
		return explainBasic(p, stats)
	case sparql.Join:
		return PlanNode{Kind: "join", Children: []PlanNode{explain(p.Left, stats), explain(p.Right, stats)}}
	case sparql.Optional:
		return PlanNode{Kind: "optional (left join)", Children: []PlanNode{explain(p.Left, stats), explain(p.Right, stats)}}
	case sparql.Union:
		return PlanNode{Kind: "union", Children: []PlanNode{explain(p.Left, stats), explain(p.Right, stats)}}
	case sparql.Minus:
		return PlanNode{Kind: "minus", Children: []PlanNode{explain(p.Left, stats), explain(p.Right, stats)}}
	case sparql.Filter:
		return PlanNode{Kind: "filter", Children: []PlanNode{explain(p.Child, stats)}}
	case sparql.GroupBy:
		detail := fmt.Sprintf("group by %s, %d aggregate(s)", strings.Join(p.GroupVars, ", "), len(p.Aggregates))
		return PlanNode{Kind: "group_by", Detail: detail, Children: []PlanNode{explain(p.Child, stats)}}
	case sparql.PropertyPath:
		return PlanNode{Kind: "property_path", Detail: describePathConfig(p)}
	default:
		return PlanNode{Kind: "unknown"}
	}
}

func explainBasic(p *sparql.Pattern, stats *sparql.Stats) PlanNode {
	children := make([]PlanNode, len(p.Triples))
	for i, t := range p.Triples {
		children[i] = explainTriple(t)
		if stats != nil && i < len(stats.IntermediateCardinalities) {
			children[i].Cardinality = stats.IntermediateCardinalities[i]
			children[i].HasCardinality = true
		}
	}
	return PlanNode{Kind: "basic_graph_pattern", Detail: fmt.Sprintf("%d triple(s)", len(p.Triples)), Children: children}
}

func explainTriple(t sparql.TriplePattern) PlanNode {
	bound := hexastore.Bound{Graph: t.Graph}
	if t.Subject.Kind == sparql.TermValue {
		s := t.Subject.Value.String
		bound.Subject = &s
	}
	if t.Predicate.Kind == sparql.TermValue {
		pr := t.Predicate.Value.String
		bound.Predicate = &pr
	}
	if t.Object.Kind == sparql.TermValue {
		o := t.Object.Value
		bound.Object = &o
	}
	ord := hexastore.ChooseOrdering(bound)
	return PlanNode{
		Kind:   "triple_scan",
		Detail: fmt.Sprintf("ordering=%s", ord),
	}
}

func describePathConfig(p *sparql.Pattern) string {
	return fmt.Sprintf("maxDepth=%d maxResults=%d", p.PathConfig.MaxDepth, p.PathConfig.MaxResults)
}

// String renders a PlanNode tree as an indented text explain, close to
// the teacher's own debug-dump convention of one line per node.
func (n PlanNode) String() string {
	var b strings.Builder
	n.write(&b, 0)
	return b.String()
}

func (n PlanNode) write(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(n.Kind)
	if n.Detail != "" {
		b.WriteString(": ")
		b.WriteString(n.Detail)
	}
	if n.HasCardinality {
		fmt.Fprintf(b, " (cardinality=%d)", n.Cardinality)
	}
	b.WriteString("\n")
	for _, c := range n.Children {
		c.write(b, depth+1)
	}
}
