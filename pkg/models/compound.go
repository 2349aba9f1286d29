package models

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Compound is the mutable current state of a chemical compound.
// Stored in the compounds table. Name, SMILES and Properties are the
// versioned fields: they are captured by every CompoundVersion and restored
// by rollback.
type Compound struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name"`
	SMILES         string         `json:"smiles"`
	Properties     map[string]any `json:"properties,omitempty"`
	ExternalID     *string        `json:"external_id,omitempty"`     // ChEMBL/PubChem identifier
	ExternalSource *string        `json:"external_source,omitempty"` // "chembl" or "pubchem"
	Version        int            `json:"version"`
	CreatedBy      string         `json:"created_by"`
	UpdatedBy      string         `json:"updated_by,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// CompoundUpdate carries a partial update. Nil fields are left unchanged.
type CompoundUpdate struct {
	Name       *string        `json:"name,omitempty"`
	SMILES     *string        `json:"smiles,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u *CompoundUpdate) IsEmpty() bool {
	return u.Name == nil && u.SMILES == nil && u.Properties == nil
}

// Apply writes the set fields of u onto c. It does not touch the version.
func (u *CompoundUpdate) Apply(c *Compound) {
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.SMILES != nil {
		c.SMILES = *u.SMILES
	}
	if u.Properties != nil {
		c.Properties = CloneProperties(u.Properties)
	}
}

// CompoundFilter narrows a compound listing.
type CompoundFilter struct {
	Search string   // case-insensitive substring of name or SMILES
	MinMW  *float64 // lower bound on properties.molecular_weight
	MaxMW  *float64 // upper bound on properties.molecular_weight
	Skip   int
	Limit  int
}

// CloneProperties returns a shallow copy of a property map so that snapshots
// never alias the live compound's map.
func CloneProperties(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	return maps.Clone(props)
}
