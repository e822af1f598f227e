package filter

import (
	"github.com/SophieEDesign/marketinghub/internal/models"
)

type Operator string

const (
	OpEqual              Operator = "equal"
	OpNotEqual           Operator = "not_equal"
	OpContains           Operator = "contains"
	OpNotContains        Operator = "not_contains"
	OpGreaterThan        Operator = "greater_than"
	OpGreaterThanOrEqual Operator = "greater_than_or_equal"
	OpLessThan           Operator = "less_than"
	OpLessThanOrEqual    Operator = "less_than_or_equal"
	OpIsEmpty            Operator = "is_empty"
	OpIsNotEmpty         Operator = "is_not_empty"
	OpDateEqual          Operator = "date_equal"
	OpDateBefore         Operator = "date_before"
	OpDateAfter          Operator = "date_after"
	OpDateOnOrBefore     Operator = "date_on_or_before"
	OpDateOnOrAfter      Operator = "date_on_or_after"
	OpDateRange          Operator = "date_range"
	OpDateToday          Operator = "date_today"
	OpDateNextDays       Operator = "date_next_days"
)

// Config is the legacy flat filter shape. An array of Configs is
// implicitly AND-combined.
type Config struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
	Value2   any      `json:"value2,omitempty"`
}

// Node is one node of a filter tree: either a Leaf condition or a Group
// combining children with AND/OR. A nil Node means no filtering.
type Node interface {
	isNode()
}

type Leaf struct {
	Field    string
	Operator Operator
	Value    any
	Value2   any
}

func (Leaf) isNode() {}

type Group struct {
	ConditionType models.ConditionType
	Children      []Node
}

func (Group) isNode() {}

// IsEmpty reports whether the tree applies no filtering. Empty groups
// (recursively) count as empty.
func IsEmpty(n Node) bool {
	switch v := n.(type) {
	case nil:
		return true
	case Leaf:
		return false
	case Group:
		for _, child := range v.Children {
			if !IsEmpty(child) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// ConfigsToTree wraps a flat filter list into a single group. An empty
// list yields a nil (pass-through) tree.
func ConfigsToTree(configs []Config, combineAs models.ConditionType) Node {
	if len(configs) == 0 {
		return nil
	}
	children := make([]Node, 0, len(configs))
	for _, cfg := range configs {
		children = append(children, Leaf{
			Field:    cfg.Field,
			Operator: cfg.Operator,
			Value:    cfg.Value,
			Value2:   cfg.Value2,
		})
	}
	return Group{ConditionType: combineAs, Children: children}
}

// TreeToConfigs degrades a tree to the flat representation. OR grouping
// cannot be expressed flat, so nested groups are flattened to their
// leaves and implicitly AND-combined; callers that care about OR
// semantics must stay on the tree.
func TreeToConfigs(n Node) []Config {
	out := make([]Config, 0)
	collectLeaves(n, &out)
	return out
}

func collectLeaves(n Node, out *[]Config) {
	switch v := n.(type) {
	case Leaf:
		*out = append(*out, Config{
			Field:    v.Field,
			Operator: v.Operator,
			Value:    v.Value,
			Value2:   v.Value2,
		})
	case Group:
		for _, child := range v.Children {
			collectLeaves(child, out)
		}
	}
}

// FromViewRows reconstructs a tree from persisted view_filters and
// view_filter_groups rows. Filters are bucketed under their group, each
// bucket becomes a sub-group with the group's condition type, and all
// sub-groups plus ungrouped filters are AND-combined at the root. A
// filter referencing a missing group is treated as ungrouped.
func FromViewRows(filters []models.ViewFilter, groups []models.ViewFilterGroup) Node {
	if len(filters) == 0 {
		return nil
	}

	byGroup := make(map[string][]models.ViewFilter)
	ungrouped := make([]models.ViewFilter, 0)
	known := make(map[string]models.ViewFilterGroup, len(groups))
	for _, g := range groups {
		known[g.ID] = g
	}
	for _, f := range filters {
		if f.FilterGroupID == nil {
			ungrouped = append(ungrouped, f)
			continue
		}
		if _, ok := known[*f.FilterGroupID]; !ok {
			ungrouped = append(ungrouped, f)
			continue
		}
		byGroup[*f.FilterGroupID] = append(byGroup[*f.FilterGroupID], f)
	}

	children := make([]Node, 0, len(groups)+len(ungrouped))
	for _, g := range groups {
		bucket := byGroup[g.ID]
		if len(bucket) == 0 {
			continue
		}
		sub := Group{ConditionType: g.ConditionType, Children: make([]Node, 0, len(bucket))}
		if !g.ConditionType.IsValid() {
			sub.ConditionType = models.ConditionAnd
		}
		for _, f := range bucket {
			sub.Children = append(sub.Children, leafFromRow(f))
		}
		children = append(children, sub)
	}
	for _, f := range ungrouped {
		children = append(children, leafFromRow(f))
	}

	if len(children) == 0 {
		return nil
	}
	if len(children) == 1 {
		return children[0]
	}
	return Group{ConditionType: models.ConditionAnd, Children: children}
}

func leafFromRow(f models.ViewFilter) Leaf {
	return Leaf{
		Field:    f.FieldName,
		Operator: Operator(f.Operator),
		Value:    f.Value,
	}
}

// And combines multiple trees into one AND-group, pruning empty inputs.
// Zero non-empty inputs yield nil; one yields that tree unwrapped.
func And(trees []Node) Node {
	nonEmpty := make([]Node, 0, len(trees))
	for _, t := range trees {
		if IsEmpty(t) {
			continue
		}
		nonEmpty = append(nonEmpty, t)
	}
	switch len(nonEmpty) {
	case 0:
		return nil
	case 1:
		return nonEmpty[0]
	default:
		return Group{ConditionType: models.ConditionAnd, Children: nonEmpty}
	}
}
