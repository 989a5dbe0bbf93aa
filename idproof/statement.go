package idproof

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
)

// MaxAttributeLen is the maximum byte length of an attribute value, so that
// its encoding fits in a scalar
const MaxAttributeLen = 31

// AttributeTags contains the identity attribute tags that a statement can
// refer to
var AttributeTags = []string{
	"firstName",
	"lastName",
	"sex",
	"dob",
	"countryOfResidence",
	"nationality",
	"idDocType",
	"idDocNo",
	"idDocIssuer",
	"idDocIssuedAt",
	"idDocExpiresAt",
	"nationalIdNo",
	"taxIdNo",
	"lei",
}

// StatementType identifies the kind of an AtomicStatement
type StatementType string

const (
	// RevealAttribute reveals the value of the attribute
	RevealAttribute StatementType = "RevealAttribute"
	// AttributeInRange states that lower <= attribute < upper
	AttributeInRange StatementType = "AttributeInRange"
	// AttributeInSet states that the attribute is one of the set elements
	AttributeInSet StatementType = "AttributeInSet"
	// AttributeNotInSet states that the attribute is none of the set
	// elements
	AttributeNotInSet StatementType = "AttributeNotInSet"
)

var (
	// ErrEmptyStatement is returned when a statement contains no atomic
	// statements
	ErrEmptyStatement = errors.New("statement has no atomic statements")
	// ErrUnknownAttributeTag is returned when a statement refers to an
	// attribute tag not listed in AttributeTags
	ErrUnknownAttributeTag = errors.New("unknown attribute tag")
)

// AtomicStatement is a single predicate over one identity attribute. Lower
// and Upper are only used by AttributeInRange, Set by AttributeInSet and
// AttributeNotInSet.
type AtomicStatement struct {
	Type         StatementType `json:"type"`
	AttributeTag string        `json:"attributeTag"`
	Lower        string        `json:"lower,omitempty"`
	Upper        string        `json:"upper,omitempty"`
	Set          []string      `json:"set,omitempty"`
}

// Statement is the ordered list of predicates that a prover must satisfy
type Statement []AtomicStatement

// AttributeToScalar encodes an attribute value as a scalar, reading its bytes
// as a big-endian integer. Values of equal length keep their lexicographic
// order, which is what range statements over dates (YYYYMMDD) rely on.
func AttributeToScalar(v string) (*big.Int, error) {
	if len(v) > MaxAttributeLen {
		return nil, fmt.Errorf("attribute value too long: %d bytes, max %d",
			len(v), MaxAttributeLen)
	}
	return new(big.Int).SetBytes([]byte(v)), nil
}

func isKnownTag(tag string) bool {
	for _, t := range AttributeTags {
		if t == tag {
			return true
		}
	}
	return false
}

// Validate checks that the statement is well formed
func (s Statement) Validate() error {
	if len(s) == 0 {
		return ErrEmptyStatement
	}
	seen := make(map[string]bool, len(s))
	for i := range s {
		if err := s[i].validate(); err != nil {
			return fmt.Errorf("atomic statement %d: %w", i, err)
		}
		if seen[s[i].AttributeTag] {
			return fmt.Errorf("atomic statement %d: attribute tag %q used more than once",
				i, s[i].AttributeTag)
		}
		seen[s[i].AttributeTag] = true
	}
	return nil
}

func (a *AtomicStatement) validate() error {
	if !isKnownTag(a.AttributeTag) {
		return fmt.Errorf("%w: %q", ErrUnknownAttributeTag, a.AttributeTag)
	}
	switch a.Type {
	case RevealAttribute:
		if a.Lower != "" || a.Upper != "" || len(a.Set) != 0 {
			return fmt.Errorf("%s takes no parameters", a.Type)
		}
	case AttributeInRange:
		lower, err := AttributeToScalar(a.Lower)
		if err != nil {
			return err
		}
		upper, err := AttributeToScalar(a.Upper)
		if err != nil {
			return err
		}
		if lower.Cmp(upper) >= 0 {
			return fmt.Errorf("empty range [%q, %q)", a.Lower, a.Upper)
		}
	case AttributeInSet, AttributeNotInSet:
		if len(a.Set) == 0 {
			return fmt.Errorf("%s with an empty set", a.Type)
		}
		elems := make(map[string]bool, len(a.Set))
		for _, e := range a.Set {
			if _, err := AttributeToScalar(e); err != nil {
				return err
			}
			if elems[e] {
				return fmt.Errorf("duplicated set element %q", e)
			}
			elems[e] = true
		}
	default:
		return fmt.Errorf("unknown statement type %q", a.Type)
	}
	return nil
}

// ParseStatement decodes and validates a JSON encoded Statement
func ParseStatement(b []byte) (Statement, error) {
	var s Statement
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadStatement reads the JSON encoded Statement from the given file path
func LoadStatement(path string) (Statement, error) {
	b, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, err
	}
	s, err := ParseStatement(b)
	if err != nil {
		return nil, fmt.Errorf("statement %s: %w", path, err)
	}
	return s, nil
}

// setScalars returns the encoding of the set elements
func (a *AtomicStatement) setScalars() ([]*big.Int, error) {
	out := make([]*big.Int, len(a.Set))
	for i, e := range a.Set {
		x, err := AttributeToScalar(e)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

// bounds returns lower and upper-1 for AttributeInRange, and the number of
// bits needed to decompose the values
func (a *AtomicStatement) bounds() (lower, upperIncl *big.Int, nBits int, err error) {
	lower, err = AttributeToScalar(a.Lower)
	if err != nil {
		return nil, nil, 0, err
	}
	upper, err := AttributeToScalar(a.Upper)
	if err != nil {
		return nil, nil, 0, err
	}
	if lower.Cmp(upper) >= 0 {
		return nil, nil, 0, fmt.Errorf("empty range [%q, %q)", a.Lower, a.Upper)
	}
	upperIncl = new(big.Int).Sub(upper, big.NewInt(1))
	nBits = new(big.Int).Sub(upperIncl, lower).BitLen()
	if nBits == 0 {
		nBits = 1
	}
	return lower, upperIncl, nBits, nil
}
