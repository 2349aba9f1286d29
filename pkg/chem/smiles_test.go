package chem

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSMILES_Valid(t *testing.T) {
	valid := []string{
		"C",
		"CCO",
		"c1ccccc1",
		"CC(=O)Oc1ccccc1C(=O)O",
		"CN1C=NC2=C1C(=O)N(C(=O)N2C)C",
		"[Na+].[Cl-]",
		"C[C@@H](O)C(=O)O",
		"F/C=C/F",
		"C1CC1C1CC1",
		"C%10CCCCC%10",
		"ClCBr",
	}

	for _, s := range valid {
		t.Run(s, func(t *testing.T) {
			assert.NoError(t, ValidateSMILES(s))
		})
	}
}

func TestValidateSMILES_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace", "C C"},
		{"letters outside subset", "INVALID_SMILES"},
		{"unclosed branch", "CC(C"},
		{"unmatched close", "CC)C"},
		{"leading branch", "(C)C"},
		{"unclosed bracket", "C[NH4+"},
		{"stray close bracket", "C]"},
		{"nested bracket", "[C[N]]"},
		{"unpaired ring", "C1CCC"},
		{"leading ring digit", "1CC1"},
		{"short percent ring", "C%1CC"},
		{"non ascii", "CCé"},
		{"too long", strings.Repeat("C", MaxSMILESLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, ValidateSMILES(tt.input))
		})
	}
}
