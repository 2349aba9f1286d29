package models

import (
	"time"

	"github.com/google/uuid"
)

// ChangeType classifies a ledger entry.
type ChangeType string

const (
	ChangeTypeCreate       ChangeType = "create"
	ChangeTypeUpdate       ChangeType = "update"
	ChangeTypeDelete       ChangeType = "delete"
	ChangeTypeRollbackFrom ChangeType = "rollback_from"
	ChangeTypeRollbackTo   ChangeType = "rollback_to"
)

// IsValidChangeType reports whether t is a known change type.
func IsValidChangeType(t ChangeType) bool {
	switch t {
	case ChangeTypeCreate, ChangeTypeUpdate, ChangeTypeDelete, ChangeTypeRollbackFrom, ChangeTypeRollbackTo:
		return true
	}
	return false
}

// CompoundVersion is an immutable ledger row: the versioned fields of a
// compound as they were when labeled with Version.
// Stored in compound_versions. CompoundID is a soft reference and outlives
// the compound row.
type CompoundVersion struct {
	ID         uuid.UUID      `json:"id"`
	CompoundID uuid.UUID      `json:"compound_id"`
	Version    int            `json:"version"`
	Name       string         `json:"name"`
	SMILES     string         `json:"smiles"`
	Properties map[string]any `json:"properties,omitempty"`
	ChangeType ChangeType     `json:"change_type"`
	ChangedBy  string         `json:"changed_by"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewCompoundVersion captures the compound's current fields, labeled with its
// current version.
func NewCompoundVersion(c *Compound, actor string, changeType ChangeType) *CompoundVersion {
	return &CompoundVersion{
		CompoundID: c.ID,
		Version:    c.Version,
		Name:       c.Name,
		SMILES:     c.SMILES,
		Properties: CloneProperties(c.Properties),
		ChangeType: changeType,
		ChangedBy:  actor,
	}
}

// RestoreInto overwrites the versioned fields of c with this snapshot's values.
func (v *CompoundVersion) RestoreInto(c *Compound) {
	c.Name = v.Name
	c.SMILES = v.SMILES
	c.Properties = CloneProperties(v.Properties)
}
