package idproof

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/iden3/go-iden3-crypto/babyjub"
)

func genGlobalContext(c *qt.C) *GlobalContext {
	ck, err := NewCommitmentKey()
	c.Assert(err, qt.IsNil)
	return &GlobalContext{GenesisString: "test genesis", OnChainCommitmentKey: ck}
}

func genOpenings(c *qt.C, values map[string]string) Openings {
	o := make(Openings, len(values))
	for tag, v := range values {
		r, err := RandomScalar()
		c.Assert(err, qt.IsNil)
		o[tag] = AttributeOpening{Value: v, Randomness: NewScalar(r)}
	}
	return o
}

var testValues = map[string]string{
	"firstName":          "Alice",
	"dob":                "19900512",
	"nationality":        "DK",
	"countryOfResidence": "DE",
	"idDocType":          "1",
}

var testChallenge = []byte("0123456789abcdef0123456789abcdef")
var testCredID = make([]byte, 48)

func TestPointText(t *testing.T) {
	c := qt.New(t)

	p := NewPoint(mul(big.NewInt(12345), babyjub.B8))
	b, err := p.MarshalText()
	c.Assert(err, qt.IsNil)
	c.Assert(len(b), qt.Equals, 2*PointLen)

	var q Point
	c.Assert(q.UnmarshalText(b), qt.IsNil)
	c.Assert(equal(p.BabyJub(), q.BabyJub()), qt.IsTrue)

	c.Assert(q.UnmarshalText([]byte("zz")), qt.IsNotNil)
	c.Assert(q.UnmarshalText([]byte("0102")), qt.ErrorMatches,
		"unexpected point length: 2")

	_, err = Point{}.MarshalText()
	c.Assert(err, qt.IsNotNil)
}

func TestScalarText(t *testing.T) {
	c := qt.New(t)

	s := NewScalar(big.NewInt(-1))
	c.Assert(s.BigInt().Cmp(new(big.Int).Sub(babyjub.SubOrder, big.NewInt(1))),
		qt.Equals, 0)
	b, err := s.MarshalText()
	c.Assert(err, qt.IsNil)

	var s2 Scalar
	c.Assert(s2.UnmarshalText(b), qt.IsNil)
	c.Assert(s2.BigInt().Cmp(s.BigInt()), qt.Equals, 0)

	// SubOrder itself is out of range
	l := NewScalar(big.NewInt(0))
	(*big.Int)(&l).Set(babyjub.SubOrder)
	b, err = l.MarshalText()
	c.Assert(err, qt.IsNil)
	c.Assert(s2.UnmarshalText(b), qt.ErrorMatches, "scalar out of range")
}

func TestCommitmentKeyValidate(t *testing.T) {
	c := qt.New(t)

	ck, err := NewCommitmentKey()
	c.Assert(err, qt.IsNil)
	c.Assert(ck.Validate(), qt.IsNil)

	c.Assert((&CommitmentKey{}).Validate(), qt.ErrorMatches,
		"commitment key not initialized")
	same := CommitmentKey{G: ck.G, H: ck.G}
	c.Assert(same.Validate(), qt.ErrorMatches, "commitment key generators are equal")
}

func TestAttributeToScalar(t *testing.T) {
	c := qt.New(t)

	a, err := AttributeToScalar("19900512")
	c.Assert(err, qt.IsNil)
	b, err := AttributeToScalar("20000101")
	c.Assert(err, qt.IsNil)
	c.Assert(a.Cmp(b), qt.Equals, -1)

	_, err = AttributeToScalar(string(make([]byte, MaxAttributeLen+1)))
	c.Assert(err, qt.ErrorMatches, "attribute value too long: 32 bytes, max 31")
}

func TestStatementValidate(t *testing.T) {
	c := qt.New(t)

	ok := Statement{
		{Type: RevealAttribute, AttributeTag: "firstName"},
		{Type: AttributeInRange, AttributeTag: "dob", Lower: "18000101", Upper: "20060101"},
		{Type: AttributeInSet, AttributeTag: "nationality", Set: []string{"DK", "DE"}},
		{Type: AttributeNotInSet, AttributeTag: "countryOfResidence", Set: []string{"US"}},
	}
	c.Assert(ok.Validate(), qt.IsNil)

	c.Assert(Statement{}.Validate(), qt.Equals, ErrEmptyStatement)

	err := Statement{{Type: RevealAttribute, AttributeTag: "shoeSize"}}.Validate()
	c.Assert(err, qt.ErrorIs, ErrUnknownAttributeTag)

	err = Statement{
		{Type: RevealAttribute, AttributeTag: "firstName"},
		{Type: AttributeInSet, AttributeTag: "firstName", Set: []string{"Bob"}},
	}.Validate()
	c.Assert(err, qt.ErrorMatches, `atomic statement 1: attribute tag "firstName" used more than once`)

	err = Statement{{Type: AttributeInRange, AttributeTag: "dob",
		Lower: "20000101", Upper: "20000101"}}.Validate()
	c.Assert(err, qt.ErrorMatches, `atomic statement 0: empty range.*`)

	err = Statement{{Type: AttributeInSet, AttributeTag: "nationality"}}.Validate()
	c.Assert(err, qt.ErrorMatches, `atomic statement 0: AttributeInSet with an empty set`)

	err = Statement{{Type: AttributeNotInSet, AttributeTag: "nationality",
		Set: []string{"DK", "DK"}}}.Validate()
	c.Assert(err, qt.ErrorMatches, `atomic statement 0: duplicated set element "DK"`)

	err = Statement{{Type: "AttributeIsCool", AttributeTag: "nationality"}}.Validate()
	c.Assert(err, qt.ErrorMatches, `atomic statement 0: unknown statement type "AttributeIsCool"`)
}

func TestLoadStatement(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()

	path := filepath.Join(dir, "statement.json")
	err := os.WriteFile(path, []byte(`[
		{"type": "AttributeInRange", "attributeTag": "dob", "lower": "18000101", "upper": "20060101"},
		{"type": "AttributeInSet", "attributeTag": "nationality", "set": ["DK", "DE"]}
	]`), 0600)
	c.Assert(err, qt.IsNil)

	s, err := LoadStatement(path)
	c.Assert(err, qt.IsNil)
	c.Assert(s, qt.HasLen, 2)
	c.Assert(s[0].Type, qt.Equals, AttributeInRange)
	c.Assert(s[0].Upper, qt.Equals, "20060101")
	c.Assert(s[1].Set, qt.DeepEquals, []string{"DK", "DE"})

	err = os.WriteFile(path, []byte(`[{"type": "AttributeInSet"`), 0600)
	c.Assert(err, qt.IsNil)
	_, err = LoadStatement(path)
	c.Assert(err, qt.IsNotNil)

	err = os.WriteFile(path, []byte(`[]`), 0600)
	c.Assert(err, qt.IsNil)
	_, err = LoadStatement(path)
	c.Assert(err, qt.ErrorIs, ErrEmptyStatement)

	_, err = LoadStatement(filepath.Join(dir, "missing.json"))
	c.Assert(err, qt.IsNotNil)
}

func TestProveVerify(t *testing.T) {
	c := qt.New(t)
	gc := genGlobalContext(c)
	openings := genOpenings(c, testValues)
	commitments, err := openings.Commitments(&gc.OnChainCommitmentKey)
	c.Assert(err, qt.IsNil)

	s := Statement{
		{Type: RevealAttribute, AttributeTag: "firstName"},
		{Type: AttributeInRange, AttributeTag: "idDocType", Lower: "0", Upper: "3"},
		{Type: AttributeInSet, AttributeTag: "nationality", Set: []string{"SE", "DK", "NO"}},
		{Type: AttributeNotInSet, AttributeTag: "countryOfResidence", Set: []string{"US", "KP"}},
	}
	c.Assert(s.Validate(), qt.IsNil)

	proof, err := s.Prove(gc, testChallenge, testCredID, openings)
	c.Assert(err, qt.IsNil)
	c.Assert(proof.V, qt.Equals, ProofVersion1)
	c.Assert(proof.Value.Proofs, qt.HasLen, len(s))
	c.Assert(proof.Value.Proofs[0].Attribute, qt.Equals, "Alice")
	c.Assert(proof.Value.Proofs[2].Attribute, qt.Equals, "")

	c.Assert(s.Check(testChallenge, gc, testCredID, commitments, proof), qt.IsNil)

	// the proof travels as JSON between prover and verifier
	b, err := json.Marshal(proof)
	c.Assert(err, qt.IsNil)
	var decoded Versioned
	c.Assert(json.Unmarshal(b, &decoded), qt.IsNil)
	c.Assert(s.Verify(testChallenge, gc, testCredID, commitments, &decoded), qt.IsTrue)

	// bound to the challenge
	other := []byte("fedcba9876543210fedcba9876543210")
	c.Assert(s.Check(other, gc, testCredID, commitments, proof), qt.ErrorIs,
		ErrInvalidProof)

	// bound to the credential
	otherCred := make([]byte, 48)
	otherCred[0] = 1
	c.Assert(s.Verify(testChallenge, gc, otherCred, commitments, proof), qt.IsFalse)

	// bound to the commitments
	other2 := genOpenings(c, testValues)
	commitments2, err := other2.Commitments(&gc.OnChainCommitmentKey)
	c.Assert(err, qt.IsNil)
	c.Assert(s.Verify(testChallenge, gc, testCredID, commitments2, proof), qt.IsFalse)
}

func TestVerifyVersionAndShape(t *testing.T) {
	c := qt.New(t)
	gc := genGlobalContext(c)
	openings := genOpenings(c, testValues)
	commitments, err := openings.Commitments(&gc.OnChainCommitmentKey)
	c.Assert(err, qt.IsNil)

	s := Statement{{Type: RevealAttribute, AttributeTag: "firstName"}}
	proof, err := s.Prove(gc, testChallenge, testCredID, openings)
	c.Assert(err, qt.IsNil)

	proof.V = 2
	c.Assert(s.Check(testChallenge, gc, testCredID, commitments, proof), qt.ErrorIs,
		ErrUnsupportedVersion)
	proof.V = ProofVersion1

	// a lie about the revealed value
	proof.Value.Proofs[0].Attribute = "Mallory"
	c.Assert(s.Check(testChallenge, gc, testCredID, commitments, proof), qt.ErrorIs,
		ErrInvalidProof)
	proof.Value.Proofs[0].Attribute = "Alice"

	c.Assert(s.Check(testChallenge, gc, testCredID, map[string]Point{}, proof),
		qt.ErrorIs, ErrMissingCommitment)

	two := Statement{
		{Type: RevealAttribute, AttributeTag: "firstName"},
		{Type: RevealAttribute, AttributeTag: "nationality"},
	}
	c.Assert(two.Check(testChallenge, gc, testCredID, commitments, proof), qt.ErrorIs,
		ErrProofMismatch)

	c.Assert(s.Check(testChallenge, gc, testCredID, commitments, nil), qt.ErrorIs,
		ErrProofMismatch)

	// empty proof parts must be rejected, not panic
	empty := &Versioned{V: ProofVersion1, Value: Proof{Proofs: []AtomicProof{
		{Type: RevealAttribute, Attribute: "Alice", Reveal: &SchnorrProof{}},
	}}}
	c.Assert(s.Verify(testChallenge, gc, testCredID, commitments, empty), qt.IsFalse)
}

func TestRangeDob(t *testing.T) {
	c := qt.New(t)
	gc := genGlobalContext(c)
	openings := genOpenings(c, map[string]string{"dob": "19900512"})
	commitments, err := openings.Commitments(&gc.OnChainCommitmentKey)
	c.Assert(err, qt.IsNil)

	adult := Statement{{Type: AttributeInRange, AttributeTag: "dob",
		Lower: "18000101", Upper: "20060101"}}
	proof, err := adult.Prove(gc, testChallenge, testCredID, openings)
	c.Assert(err, qt.IsNil)
	c.Assert(adult.Check(testChallenge, gc, testCredID, commitments, proof), qt.IsNil)

	// the same proof does not hold for a narrower range
	narrow := Statement{{Type: AttributeInRange, AttributeTag: "dob",
		Lower: "19950101", Upper: "20060101"}}
	c.Assert(narrow.Verify(testChallenge, gc, testCredID, commitments, proof), qt.IsFalse)

	// and a proof for it can not be built
	_, err = narrow.Prove(gc, testChallenge, testCredID, openings)
	c.Assert(err, qt.ErrorIs, ErrStatementNotSatisfied)
}

func TestRangeBounds(t *testing.T) {
	c := qt.New(t)
	gc := genGlobalContext(c)

	s := Statement{{Type: AttributeInRange, AttributeTag: "idDocType",
		Lower: "3", Upper: "6"}}
	for _, v := range []string{"3", "4", "5"} {
		openings := genOpenings(c, map[string]string{"idDocType": v})
		commitments, err := openings.Commitments(&gc.OnChainCommitmentKey)
		c.Assert(err, qt.IsNil)
		proof, err := s.Prove(gc, testChallenge, testCredID, openings)
		c.Assert(err, qt.IsNil, qt.Commentf("value %s", v))
		c.Assert(s.Check(testChallenge, gc, testCredID, commitments, proof), qt.IsNil,
			qt.Commentf("value %s", v))
	}
	for _, v := range []string{"2", "6"} {
		openings := genOpenings(c, map[string]string{"idDocType": v})
		_, err := s.Prove(gc, testChallenge, testCredID, openings)
		c.Assert(err, qt.ErrorIs, ErrStatementNotSatisfied, qt.Commentf("value %s", v))
	}
}

func TestSetMembership(t *testing.T) {
	c := qt.New(t)
	gc := genGlobalContext(c)
	openings := genOpenings(c, map[string]string{"nationality": "US"})
	commitments, err := openings.Commitments(&gc.OnChainCommitmentKey)
	c.Assert(err, qt.IsNil)

	in := Statement{{Type: AttributeInSet, AttributeTag: "nationality",
		Set: []string{"DK", "DE"}}}
	_, err = in.Prove(gc, testChallenge, testCredID, openings)
	c.Assert(err, qt.ErrorIs, ErrStatementNotSatisfied)

	notIn := Statement{{Type: AttributeNotInSet, AttributeTag: "nationality",
		Set: []string{"DK", "DE"}}}
	proof, err := notIn.Prove(gc, testChallenge, testCredID, openings)
	c.Assert(err, qt.IsNil)
	c.Assert(notIn.Check(testChallenge, gc, testCredID, commitments, proof), qt.IsNil)

	blocked := Statement{{Type: AttributeNotInSet, AttributeTag: "nationality",
		Set: []string{"DK", "US"}}}
	_, err = blocked.Prove(gc, testChallenge, testCredID, openings)
	c.Assert(err, qt.ErrorIs, ErrStatementNotSatisfied)
	c.Assert(blocked.Verify(testChallenge, gc, testCredID, commitments, proof), qt.IsFalse)
}

func TestProveMissingOpening(t *testing.T) {
	c := qt.New(t)
	gc := genGlobalContext(c)

	s := Statement{{Type: RevealAttribute, AttributeTag: "lei"}}
	_, err := s.Prove(gc, testChallenge, testCredID, Openings{})
	c.Assert(err, qt.ErrorMatches, `no opening for attribute "lei"`)
}
