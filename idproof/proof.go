package idproof

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/babyjub"
)

// ProofVersion1 is the only supported version of the proof encoding
const ProofVersion1 uint32 = 1

// transcriptDomain separates the transcripts of this proof system from any
// other use of the same hash
const transcriptDomain = "zkid-node/idproof/v1"

var (
	// ErrUnsupportedVersion is returned when the proof version is not
	// ProofVersion1
	ErrUnsupportedVersion = errors.New("unsupported proof version")
	// ErrProofMismatch is returned when the proof does not have the shape of
	// the statement
	ErrProofMismatch = errors.New("proof does not match the statement")
	// ErrMissingCommitment is returned when the credential has no commitment
	// for an attribute the statement refers to
	ErrMissingCommitment = errors.New("no commitment for attribute")
	// ErrInvalidProof is returned when a proof does not verify
	ErrInvalidProof = errors.New("invalid proof")
)

// Versioned wraps a Proof with the version of its encoding
type Versioned struct {
	V     uint32 `json:"v"`
	Value Proof  `json:"value"`
}

// Proof contains one AtomicProof for each AtomicStatement, in the same order
type Proof struct {
	Proofs []AtomicProof `json:"proofs"`
}

// AtomicProof is the proof for a single AtomicStatement. Only the field that
// corresponds to the Type is set. Attribute holds the revealed value of a
// RevealAttribute statement.
type AtomicProof struct {
	Type          StatementType `json:"type"`
	Attribute     string        `json:"attribute,omitempty"`
	Reveal        *SchnorrProof `json:"reveal,omitempty"`
	Membership    *OrProof      `json:"membership,omitempty"`
	NonMembership []ReprProof   `json:"nonMembership,omitempty"`
	Range         *RangeProof   `json:"range,omitempty"`
}

// statementTranscript starts the transcript of the i-th atomic statement,
// binding it to the challenge, the credential, the commitment key and the
// statement parameters
func statementTranscript(gc *GlobalContext, challenge, credID []byte, i int,
	a *AtomicStatement, cmm *babyjub.Point, revealed string) (*transcript, error) {
	t := newTranscript(transcriptDomain)
	t.appendBytes(challenge)
	t.appendBytes(credID)
	t.appendPoint(gc.OnChainCommitmentKey.G.BabyJub())
	t.appendPoint(gc.OnChainCommitmentKey.H.BabyJub())
	t.appendBytes([]byte(gc.GenesisString))
	t.appendUint(uint64(i))
	t.appendBytes([]byte(a.Type))
	t.appendBytes([]byte(a.AttributeTag))
	t.appendPoint(cmm)

	switch a.Type {
	case RevealAttribute:
		v, err := AttributeToScalar(revealed)
		if err != nil {
			return nil, err
		}
		t.appendScalar(v)
	case AttributeInSet, AttributeNotInSet:
		set, err := a.setScalars()
		if err != nil {
			return nil, err
		}
		t.appendUint(uint64(len(set)))
		for _, s := range set {
			t.appendScalar(s)
		}
	case AttributeInRange:
		lower, upperIncl, nBits, err := a.bounds()
		if err != nil {
			return nil, err
		}
		t.appendScalar(lower)
		t.appendScalar(upperIncl)
		t.appendUint(uint64(nBits))
	default:
		return nil, fmt.Errorf("unknown statement type %q", a.Type)
	}
	return t, nil
}

// setBases returns C - s·G for each set element s
func setBases(g, cmm *babyjub.Point, set []*big.Int) []*babyjub.Point {
	bases := make([]*babyjub.Point, len(set))
	for j, s := range set {
		bases[j] = sub(cmm, mul(s, g))
	}
	return bases
}

// rangeTargets returns the points that the lower and the upper bit
// decompositions must add up to: C - lower·G and (upper-1)·G - C
func rangeTargets(g, cmm *babyjub.Point, lower, upperIncl *big.Int) (*babyjub.Point, *babyjub.Point) {
	return sub(cmm, mul(lower, g)), sub(mul(upperIncl, g), cmm)
}

func pointsOrNil(ps []Point) []*babyjub.Point {
	out := make([]*babyjub.Point, len(ps))
	for i := range ps {
		if pointsSet(ps[i]) {
			out[i] = ps[i].BabyJub()
		}
	}
	return out
}

// Check verifies the proof of the statement against the attribute
// commitments of the credential credID, for the given challenge. It returns
// nil when the proof is valid.
func (s Statement) Check(challenge []byte, gc *GlobalContext, credID []byte,
	commitments map[string]Point, proof *Versioned) error {
	if proof == nil {
		return ErrProofMismatch
	}
	if proof.V != ProofVersion1 {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, proof.V)
	}
	if err := gc.OnChainCommitmentKey.Validate(); err != nil {
		return err
	}
	if len(proof.Value.Proofs) != len(s) {
		return fmt.Errorf("%w: %d proofs for %d statements", ErrProofMismatch,
			len(proof.Value.Proofs), len(s))
	}
	for i := range s {
		if err := s[i].check(gc, challenge, credID, i, commitments,
			&proof.Value.Proofs[i]); err != nil {
			return fmt.Errorf("atomic statement %d (%s %s): %w", i, s[i].Type,
				s[i].AttributeTag, err)
		}
	}
	return nil
}

// Verify returns true when Check returns no error
func (s Statement) Verify(challenge []byte, gc *GlobalContext, credID []byte,
	commitments map[string]Point, proof *Versioned) bool {
	return s.Check(challenge, gc, credID, commitments, proof) == nil
}

func (a *AtomicStatement) check(gc *GlobalContext, challenge, credID []byte, i int,
	commitments map[string]Point, p *AtomicProof) error {
	if p.Type != a.Type {
		return fmt.Errorf("%w: proof of type %q", ErrProofMismatch, p.Type)
	}
	cmmPoint, ok := commitments[a.AttributeTag]
	if !ok || !pointsSet(cmmPoint) {
		return fmt.Errorf("%w %q", ErrMissingCommitment, a.AttributeTag)
	}
	cmm := cmmPoint.BabyJub()
	ck := &gc.OnChainCommitmentKey
	g, h := ck.G.BabyJub(), ck.H.BabyJub()

	t, err := statementTranscript(gc, challenge, credID, i, a, cmm, p.Attribute)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}

	var valid bool
	switch a.Type {
	case RevealAttribute:
		if p.Reveal == nil || !pointsSet(p.Reveal.T) {
			return ErrProofMismatch
		}
		v, _ := AttributeToScalar(p.Attribute)
		t.appendPoint(p.Reveal.T.BabyJub())
		c, err := t.challenge()
		if err != nil {
			return err
		}
		valid = verifySchnorr(h, sub(cmm, mul(v, g)), p.Reveal, c)
	case AttributeInSet:
		if p.Membership == nil {
			return ErrProofMismatch
		}
		set, _ := a.setScalars()
		appendPointsOrZero(t, pointsOrNil(p.Membership.T))
		c, err := t.challenge()
		if err != nil {
			return err
		}
		valid = verifyOr(h, setBases(g, cmm, set), p.Membership, c)
	case AttributeNotInSet:
		set, _ := a.setScalars()
		if len(p.NonMembership) != len(set) {
			return ErrProofMismatch
		}
		ts := make([]Point, len(p.NonMembership))
		for j := range p.NonMembership {
			ts[j] = p.NonMembership[j].T
		}
		appendPointsOrZero(t, pointsOrNil(ts))
		c, err := t.challenge()
		if err != nil {
			return err
		}
		bases := setBases(g, cmm, set)
		valid = true
		for j := range bases {
			if !verifyRepr(g, h, bases[j], &p.NonMembership[j], c) {
				valid = false
				break
			}
		}
	case AttributeInRange:
		if p.Range == nil {
			return ErrProofMismatch
		}
		lower, upperIncl, nBits, _ := a.bounds()
		appendPointsOrZero(t, pointsOrNil(p.Range.Lower.Bits))
		appendOrFirstMessages(t, p.Range.Lower.Proofs)
		appendPointsOrZero(t, pointsOrNil(p.Range.Upper.Bits))
		appendOrFirstMessages(t, p.Range.Upper.Proofs)
		c, err := t.challenge()
		if err != nil {
			return err
		}
		lowerTarget, upperTarget := rangeTargets(g, cmm, lower, upperIncl)
		valid = verifyBits(ck, &p.Range.Lower, nBits, lowerTarget, c) &&
			verifyBits(ck, &p.Range.Upper, nBits, upperTarget, c)
	}
	if !valid {
		return ErrInvalidProof
	}
	return nil
}
