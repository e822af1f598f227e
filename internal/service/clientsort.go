package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/SophieEDesign/marketinghub/internal/models"
)

// ShouldUseClientSideSorting reports whether the sort set needs ordering
// the database cannot produce: select fields ordered by their configured
// choice order rather than lexically, and computed fields whose values
// only exist after evaluation.
func ShouldUseClientSideSorting(sorts []models.ViewSort, fields []models.Field) bool {
	byName := fieldsByName(fields)
	for _, s := range sorts {
		field, ok := byName[s.FieldName]
		if !ok {
			continue
		}
		if field.Type.IsComputed() {
			return true
		}
		if field.Type == models.FieldTypeSingleSelect && len(field.Options.Choices) > 0 {
			return true
		}
		if field.Type == models.FieldTypeMultiSelect {
			return true
		}
	}
	return false
}

// SortRecords orders rows in memory by the sort set. The sort is stable
// so rows equal under every key keep their fetch order.
func SortRecords(rows []models.Row, sorts []models.ViewSort, fields []models.Field) {
	if len(sorts) == 0 {
		return
	}
	byName := fieldsByName(fields)

	sort.SliceStable(rows, func(i, j int) bool {
		for _, s := range sorts {
			field := byName[s.FieldName]
			cmp := compareValues(rows[i].Data[s.FieldName], rows[j].Data[s.FieldName], field)
			if cmp == 0 {
				continue
			}
			if s.Direction == models.SortDesc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// compareValues orders two field values; nil ranks after every
// non-nil value.
func compareValues(a, b any, field models.Field) int {
	aNil := a == nil
	bNil := b == nil
	if aNil && bNil {
		return 0
	}
	if aNil {
		return 1
	}
	if bNil {
		return -1
	}

	switch field.Type {
	case models.FieldTypeSingleSelect:
		return compareChoices(selectValue(a), selectValue(b), field.Options.Choices)
	case models.FieldTypeMultiSelect:
		return compareChoices(firstElement(a), firstElement(b), field.Options.Choices)
	case models.FieldTypeNumber:
		an, aok := numericValue(a)
		bn, bok := numericValue(b)
		if aok && bok {
			switch {
			case an < bn:
				return -1
			case an > bn:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(
		strings.ToLower(fmt.Sprintf("%v", a)),
		strings.ToLower(fmt.Sprintf("%v", b)),
	)
}

// compareChoices ranks values by their position in the configured choice
// list; values absent from the list sort after configured ones, ordered
// lexically among themselves.
func compareChoices(a, b string, choices []string) int {
	ai := choiceIndex(a, choices)
	bi := choiceIndex(b, choices)
	if ai != bi {
		if ai < bi {
			return -1
		}
		return 1
	}
	if ai == len(choices) {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	}
	return 0
}

func choiceIndex(v string, choices []string) int {
	for i, choice := range choices {
		if choice == v {
			return i
		}
	}
	return len(choices)
}

func selectValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// firstElement extracts the leading value of a multi-select payload; an
// empty list ranks like an unconfigured choice.
func firstElement(v any) string {
	switch value := v.(type) {
	case []any:
		if len(value) == 0 {
			return ""
		}
		return selectValue(value[0])
	case []string:
		if len(value) == 0 {
			return ""
		}
		return value[0]
	default:
		return selectValue(v)
	}
}

func numericValue(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case uint64:
		return float64(value), true
	case string:
		var parsed float64
		if _, err := fmt.Sscanf(strings.TrimSpace(value), "%g", &parsed); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

func fieldsByName(fields []models.Field) map[string]models.Field {
	byName := make(map[string]models.Field, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	return byName
}
