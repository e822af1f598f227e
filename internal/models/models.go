package models

import (
	"time"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleEditor || r == RoleViewer
}

type FieldType string

const (
	FieldTypeText         FieldType = "text"
	FieldTypeLongText     FieldType = "long_text"
	FieldTypeNumber       FieldType = "number"
	FieldTypeCheckbox     FieldType = "checkbox"
	FieldTypeDate         FieldType = "date"
	FieldTypeSingleSelect FieldType = "single_select"
	FieldTypeMultiSelect  FieldType = "multi_select"
	FieldTypeURL          FieldType = "url"
	FieldTypeEmail        FieldType = "email"
	FieldTypeAttachment   FieldType = "attachment"
	FieldTypeFormula      FieldType = "formula"
	FieldTypeLookup       FieldType = "lookup"
)

func (t FieldType) IsValid() bool {
	switch t {
	case FieldTypeText, FieldTypeLongText, FieldTypeNumber, FieldTypeCheckbox,
		FieldTypeDate, FieldTypeSingleSelect, FieldTypeMultiSelect, FieldTypeURL,
		FieldTypeEmail, FieldTypeAttachment, FieldTypeFormula, FieldTypeLookup:
		return true
	}
	return false
}

// IsComputed reports whether values of this type are derived at read time
// rather than stored in the row payload.
func (t FieldType) IsComputed() bool {
	return t == FieldTypeFormula || t == FieldTypeLookup
}

func (t FieldType) IsSelect() bool {
	return t == FieldTypeSingleSelect || t == FieldTypeMultiSelect
}

// FieldOptions is the decoded options_json payload. Only the keys
// relevant to the field's type are populated.
type FieldOptions struct {
	Choices    []string `json:"choices,omitempty"`
	Expression string   `json:"expression,omitempty"`
	LinkedView string   `json:"linked_view,omitempty"`
}

type Field struct {
	ID         string
	TableID    string
	Name       string
	Type       FieldType
	Options    FieldOptions
	OrderIndex int
}

type Table struct {
	ID         string
	Name       string
	CreateTime time.Time
}

// Row is a record in a user-defined table; Data carries the JSONB-backed
// payload keyed by field name.
type Row struct {
	ID         string
	TableID    string
	Data       map[string]any
	CreateTime time.Time
	UpdateTime time.Time
}

type ViewType string

const (
	ViewTypeGrid     ViewType = "grid"
	ViewTypeKanban   ViewType = "kanban"
	ViewTypeGallery  ViewType = "gallery"
	ViewTypeCalendar ViewType = "calendar"
	ViewTypeTimeline ViewType = "timeline"
)

func (t ViewType) IsValid() bool {
	switch t {
	case ViewTypeGrid, ViewTypeKanban, ViewTypeGallery, ViewTypeCalendar, ViewTypeTimeline:
		return true
	}
	return false
}

type View struct {
	ID         string
	TableID    string
	Name       string
	Type       ViewType
	Config     map[string]any
	CreateTime time.Time
}

type ConditionType string

const (
	ConditionAnd ConditionType = "AND"
	ConditionOr  ConditionType = "OR"
)

func (c ConditionType) IsValid() bool {
	return c == ConditionAnd || c == ConditionOr
}

// ViewFilter is one persisted filter row. A nil FilterGroupID means the
// filter is ungrouped and is AND-combined at the top level.
type ViewFilter struct {
	ID            string
	ViewID        string
	FieldName     string
	Operator      string
	Value         any
	FilterGroupID *string
	OrderIndex    int
}

type ViewFilterGroup struct {
	ID            string
	ViewID        string
	ConditionType ConditionType
	OrderIndex    int
}

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

type ViewSort struct {
	ID         string
	ViewID     string
	FieldName  string
	Direction  SortDirection
	OrderIndex int
}

type ViewField struct {
	ID         string
	ViewID     string
	FieldName  string
	Visible    bool
	OrderIndex int
}

type GridViewSettings struct {
	ViewID    string
	RowHeight string
	WrapText  bool
}

type Page struct {
	ID         string
	Name       string
	Config     map[string]any
	CreateTime time.Time
}

type BlockSizing string

const (
	BlockSizingFill    BlockSizing = "fill"
	BlockSizingContent BlockSizing = "content"
)

// BlockPosition holds the grid layout coordinates of a block. All four
// fields are persisted together; a partially null set indicates corrupted
// layout state and is rejected when loading.
type BlockPosition struct {
	X int
	Y int
	W int
	H int
}

type Block struct {
	ID       string
	PageID   string
	Type     string
	Config   map[string]any
	Position *BlockPosition
	Sizing   BlockSizing
}

type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         Role
	CreateTime   time.Time
	UpdateTime   time.Time
}

type PersonalAccessToken struct {
	ID          int64
	UserID      int64
	TokenPrefix string
	TokenHash   string
	Description string
	CreatedAt   time.Time
	LastUsedAt  *time.Time
	ExpiresAt   *time.Time
	RevokedAt   *time.Time
}

type Attachment struct {
	ID          string
	CreatorID   int64
	Filename    string
	Type        string
	Size        int64
	StorageType string
	StorageKey  string
	CreateTime  time.Time
}
