// Package block validates and normalizes per-type block configurations.
// Configs arrive as untyped dictionaries from persisted pages; they are
// checked here at the boundary so invalid ones never reach the filter or
// permission core.
package block

import (
	"fmt"
	"log"
	"strings"

	"github.com/SophieEDesign/marketinghub/internal/models"
)

type Type string

const (
	TypeGrid   Type = "grid"
	TypeChart  Type = "chart"
	TypeKPI    Type = "kpi"
	TypeForm   Type = "form"
	TypeFilter Type = "filter"
	TypeRecord Type = "record"
	TypeText   Type = "text"
	TypeField  Type = "field"
	TypeAction Type = "action"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeGrid, TypeChart, TypeKPI, TypeForm, TypeFilter, TypeRecord, TypeText, TypeField, TypeAction:
		return true
	}
	return false
}

type ValidationResult struct {
	Valid  bool
	Errors []string
}

// ValidateConfig checks the minimal required-field set for a block type.
func ValidateConfig(blockType Type, config map[string]any) ValidationResult {
	var errs []string
	missing := func(key string) {
		errs = append(errs, fmt.Sprintf("%s block requires %s", blockType, key))
	}

	switch blockType {
	case TypeGrid:
		if !hasString(config, "table_id") && !hasString(config, "source_view") {
			errs = append(errs, "grid block requires table_id or source_view")
		}
	case TypeChart:
		if !hasString(config, "table_id") {
			missing("table_id")
		}
		if !hasString(config, "chart_type") {
			missing("chart_type")
		}
	case TypeKPI:
		if !hasString(config, "table_id") {
			missing("table_id")
		}
		if !hasString(config, "kpi_aggregate") {
			missing("kpi_aggregate")
		}
	case TypeForm:
		if !hasString(config, "table_id") {
			missing("table_id")
		}
	case TypeFilter:
		if !hasString(config, "table_id") {
			missing("table_id")
		}
	case TypeRecord:
		if !hasString(config, "table_id") {
			missing("table_id")
		}
	case TypeText:
		if _, ok := config["content_json"]; !ok {
			missing("content_json")
		}
	case TypeField:
		if !hasString(config, "table_id") {
			missing("table_id")
		}
		if !hasString(config, "field_name") {
			missing("field_name")
		}
	case TypeAction:
		if !hasString(config, "label") {
			missing("label")
		}
		actionType, _ := config["action_type"].(string)
		switch strings.TrimSpace(actionType) {
		case "":
			missing("action_type")
		case "open_url":
			if !hasString(config, "url") {
				errs = append(errs, "open_url action requires url")
			}
		case "open_page":
			if !hasString(config, "page_id") {
				errs = append(errs, "open_page action requires page_id")
			}
		case "create_record":
			if !hasString(config, "table_id") {
				errs = append(errs, "create_record action requires table_id")
			}
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown block type %q", blockType))
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// NormalizeConfig returns the config unchanged when valid, otherwise a
// type-specific minimal default. Text blocks keep their content_json
// through normalization: that payload is user content and is never
// dropped, even when the rest of the config fails validation.
func NormalizeConfig(blockType Type, config map[string]any) map[string]any {
	result := ValidateConfig(blockType, config)
	if result.Valid {
		return config
	}
	log.Printf("block config invalid for type=%s, substituting defaults: %s", blockType, strings.Join(result.Errors, "; "))

	defaults := defaultConfig(blockType)
	if blockType == TypeText {
		if content, ok := config["content_json"]; ok {
			defaults["content_json"] = content
		}
	}
	return defaults
}

func defaultConfig(blockType Type) map[string]any {
	switch blockType {
	case TypeGrid:
		return map[string]any{"table_id": "", "filters": []any{}}
	case TypeChart:
		return map[string]any{"table_id": "", "chart_type": "bar"}
	case TypeKPI:
		return map[string]any{"table_id": "", "kpi_aggregate": "count"}
	case TypeForm:
		return map[string]any{"table_id": ""}
	case TypeFilter:
		return map[string]any{"table_id": "", "target_blocks": "all"}
	case TypeRecord:
		return map[string]any{"table_id": ""}
	case TypeText:
		return map[string]any{"content_json": nil}
	case TypeField:
		return map[string]any{"table_id": "", "field_name": ""}
	case TypeAction:
		return map[string]any{"action_type": "open_url", "label": "Open", "url": ""}
	default:
		return map[string]any{}
	}
}

// fillAllowedTypes lists layout-container block types permitted to
// request "fill" sizing. Currently none qualify.
var fillAllowedTypes = map[Type]struct{}{}

// EffectiveSizing collapses a block's sizing request to "content" unless
// its type is allow-listed for fill layout. Text and field blocks are
// hard-blocked: a fill request from them indicates a config bug and is
// corrected rather than allowed to misrender.
func EffectiveSizing(blockType Type, requested models.BlockSizing) models.BlockSizing {
	if requested != models.BlockSizingFill {
		return models.BlockSizingContent
	}
	if blockType == TypeText || blockType == TypeField {
		log.Printf("ERROR: %s block requested fill sizing; forcing content", blockType)
		return models.BlockSizingContent
	}
	if _, ok := fillAllowedTypes[blockType]; ok {
		return models.BlockSizingFill
	}
	return models.BlockSizingContent
}

func hasString(config map[string]any, key string) bool {
	v, ok := config[key]
	if !ok {
		return false
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}
