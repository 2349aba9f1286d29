// Package chem holds the syntactic checks applied to compound structures.
// It does not parse chemistry: a string that passes ValidateSMILES may
// still describe an impossible molecule.
package chem

import (
	"fmt"
	"strings"
	"unicode"
)

// MaxSMILESLength bounds the accepted representation size.
const MaxSMILESLength = 4096

// smilesCharset lists every character that may appear outside brackets:
// the organic subset (Cl and Br spelled with l and r), ring closure digits,
// branches, brackets and bond symbols.
const smilesCharset = "BCNOPSFIbcnopsHlr0123456789%()[]=#$:/\\-+.@*"

// ValidateSMILES reports whether s is well-formed enough to store: non-empty,
// no whitespace, only SMILES characters, balanced branches, closed atom
// brackets and paired ring-closure labels.
func ValidateSMILES(s string) error {
	if s == "" {
		return fmt.Errorf("smiles is empty")
	}
	if len(s) > MaxSMILESLength {
		return fmt.Errorf("smiles exceeds %d characters", MaxSMILESLength)
	}

	depth := 0
	inBracket := false
	openRings := make(map[string]bool)

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inBracket {
			switch {
			case c == ']':
				inBracket = false
			case c == '[':
				return fmt.Errorf("nested '[' at position %d", i)
			case c > unicode.MaxASCII || unicode.IsSpace(rune(c)):
				return fmt.Errorf("invalid character %q at position %d", c, i)
			}
			continue
		}

		if c > unicode.MaxASCII || !strings.ContainsRune(smilesCharset, rune(c)) {
			return fmt.Errorf("invalid character %q at position %d", c, i)
		}

		switch {
		case c == '[':
			inBracket = true
		case c == ']':
			return fmt.Errorf("unmatched ']' at position %d", i)
		case c == '(':
			if i == 0 {
				return fmt.Errorf("branch cannot open the string")
			}
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return fmt.Errorf("unmatched ')' at position %d", i)
			}
		case c == '%':
			if i+2 >= len(s) || !isDigit(s[i+1]) || !isDigit(s[i+2]) {
				return fmt.Errorf("'%%' at position %d must be followed by two digits", i)
			}
			toggleRing(openRings, s[i:i+3])
			i += 2
		case isDigit(c):
			if i == 0 {
				return fmt.Errorf("ring closure cannot open the string")
			}
			toggleRing(openRings, string(c))
		}
	}

	if inBracket {
		return fmt.Errorf("unclosed '['")
	}
	if depth != 0 {
		return fmt.Errorf("unclosed '('")
	}
	if len(openRings) > 0 {
		labels := make([]string, 0, len(openRings))
		for label := range openRings {
			labels = append(labels, label)
		}
		return fmt.Errorf("unpaired ring closure %s", strings.Join(labels, ", "))
	}
	return nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// toggleRing opens label if it is not open and closes it otherwise; ring
// labels may be reused once closed.
func toggleRing(open map[string]bool, label string) {
	if open[label] {
		delete(open, label)
		return
	}
	open[label] = true
}
