package filter

import (
	"github.com/SophieEDesign/marketinghub/internal/models"
)

// MergeFilters combines filters from three sources under strict
// precedence: block base filters always win, filter-block filters may
// only add fields the base does not already constrain, and temporary
// (search/UI) filters may only add fields neither of the others touch.
// A block's hard-coded filter can never be removed by user interaction.
func MergeFilters(base []Config, blockFilters []Config, temporary []Config) []Config {
	merged := make([]Config, 0, len(base)+len(blockFilters)+len(temporary))
	taken := make(map[string]struct{})

	for _, f := range base {
		merged = append(merged, f)
		taken[f.Field] = struct{}{}
	}
	for _, f := range blockFilters {
		if _, ok := taken[f.Field]; ok {
			continue
		}
		merged = append(merged, f)
		taken[f.Field] = struct{}{}
	}
	for _, f := range temporary {
		if _, ok := taken[f.Field]; ok {
			continue
		}
		merged = append(merged, f)
		taken[f.Field] = struct{}{}
	}
	return merged
}

// MergeQuickFilters resolves view-default filters against user session
// quick filters. The precedence is deliberately inverted from
// MergeFilters: any field the user filtered on replaces the defaults for
// that field entirely; fields the user left alone keep their defaults.
func MergeQuickFilters(defaults []Config, userFilters []Config) []Config {
	overridden := make(map[string]struct{}, len(userFilters))
	for _, f := range userFilters {
		overridden[f.Field] = struct{}{}
	}

	merged := make([]Config, 0, len(defaults)+len(userFilters))
	for _, f := range defaults {
		if _, ok := overridden[f.Field]; ok {
			continue
		}
		merged = append(merged, f)
	}
	merged = append(merged, userFilters...)
	return merged
}

// DeriveDefaultValues derives pre-filled values for a new record from the
// active equality filters, so creating a record inside a filtered view
// lands inside that view. Only scalar (or single-element array) equality
// filters qualify; computed fields are skipped; conflicting values for
// the same field drop that field entirely.
func DeriveDefaultValues(active []Config, fields []models.Field) map[string]any {
	computed := make(map[string]struct{})
	for _, f := range fields {
		if f.Type.IsComputed() {
			computed[f.Name] = struct{}{}
		}
	}

	defaults := make(map[string]any)
	conflicted := make(map[string]struct{})
	for _, f := range active {
		if f.Operator != OpEqual {
			continue
		}
		if _, ok := computed[f.Field]; ok {
			continue
		}
		value, ok := scalarFilterValue(f.Value)
		if !ok {
			continue
		}
		if existing, ok := defaults[f.Field]; ok {
			if existing != value {
				conflicted[f.Field] = struct{}{}
			}
			continue
		}
		defaults[f.Field] = value
	}
	for field := range conflicted {
		delete(defaults, field)
	}
	return defaults
}

func scalarFilterValue(v any) (any, bool) {
	switch value := v.(type) {
	case nil:
		return nil, false
	case []any:
		if len(value) != 1 {
			return nil, false
		}
		return scalarFilterValue(value[0])
	case []string:
		if len(value) != 1 {
			return nil, false
		}
		return value[0], true
	case string, bool, int, int64, float64:
		return value, true
	default:
		return nil, false
	}
}
