// Package perm resolves record-action authorization across the page and
// block layers. Page-level settings decide whether a role may act at
// all; block-level settings can further restrict but never loosen that
// decision.
package perm

import (
	"github.com/SophieEDesign/marketinghub/internal/models"
)

// PermissionLevel is who a page-level record action is open to.
type PermissionLevel string

const (
	PermissionAdmin PermissionLevel = "admin"
	PermissionBoth  PermissionLevel = "both"
)

// RecordActionPermissions is the page-level record action config.
type RecordActionPermissions struct {
	Create PermissionLevel `json:"create"`
	Delete PermissionLevel `json:"delete"`
}

func DefaultRecordActionPermissions() RecordActionPermissions {
	return RecordActionPermissions{
		Create: PermissionBoth,
		Delete: PermissionAdmin,
	}
}

// BlockMode gates all mutation through a block: "view" denies every
// create/delete regardless of the individual flags.
type BlockMode string

const (
	BlockModeView BlockMode = "view"
	BlockModeEdit BlockMode = "edit"
)

// BlockPermissions is the block-level override layer.
type BlockPermissions struct {
	Mode              BlockMode `json:"mode"`
	AllowInlineCreate bool      `json:"allowInlineCreate"`
	AllowInlineDelete bool      `json:"allowInlineDelete"`
	AllowOpenRecord   bool      `json:"allowOpenRecord"`
}

func DefaultBlockPermissions() BlockPermissions {
	return BlockPermissions{
		Mode:              BlockModeEdit,
		AllowInlineCreate: true,
		AllowInlineDelete: true,
		AllowOpenRecord:   true,
	}
}

// roleAllowed is the page-level resolution: admin always passes, an
// absent role never passes, anyone else needs the action opened to
// "both".
func roleAllowed(role models.Role, level PermissionLevel) bool {
	switch {
	case role == "":
		return false
	case role == models.RoleAdmin:
		return true
	default:
		return level == PermissionBoth
	}
}

func PageCanCreateRecord(role models.Role, perms RecordActionPermissions) bool {
	return roleAllowed(role, perms.Create)
}

func PageCanDeleteRecord(role models.Role, perms RecordActionPermissions) bool {
	return roleAllowed(role, perms.Delete)
}

// CanCreateRecord resolves the full cascade. A nil block context means
// no block-level restriction applies, preserving the behavior pages had
// before block permissions existed.
func CanCreateRecord(role models.Role, perms RecordActionPermissions, block *BlockPermissions) bool {
	if !PageCanCreateRecord(role, perms) {
		return false
	}
	if block == nil {
		return true
	}
	return block.Mode != BlockModeView && block.AllowInlineCreate
}

func CanDeleteRecord(role models.Role, perms RecordActionPermissions, block *BlockPermissions) bool {
	if !PageCanDeleteRecord(role, perms) {
		return false
	}
	if block == nil {
		return true
	}
	return block.Mode != BlockModeView && block.AllowInlineDelete
}

// CanEditRecords and CanOpenRecord are block-only checks; without a
// block context they default to allowed.
func CanEditRecords(block *BlockPermissions) bool {
	if block == nil {
		return true
	}
	return block.Mode != BlockModeView
}

func CanOpenRecord(block *BlockPermissions) bool {
	if block == nil {
		return true
	}
	return block.AllowOpenRecord
}
