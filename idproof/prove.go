package idproof

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/babyjub"
)

// ErrStatementNotSatisfied is returned by Prove when the attribute values do
// not satisfy the statement
var ErrStatementNotSatisfied = errors.New("attribute does not satisfy the statement")

// AttributeOpening contains the value of an attribute and the randomness used
// in its commitment
type AttributeOpening struct {
	Value      string `json:"value"`
	Randomness Scalar `json:"randomness"`
}

// Openings maps attribute tags to their openings
type Openings map[string]AttributeOpening

// Commitments returns the commitments to the openings under the given key
func (o Openings) Commitments(ck *CommitmentKey) (map[string]Point, error) {
	out := make(map[string]Point, len(o))
	for tag, op := range o {
		p, err := ck.CommitAttribute(op.Value, op.Randomness.BigInt())
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", tag, err)
		}
		out[tag] = p
	}
	return out, nil
}

// Prove builds a proof of the statement for the credential credID, whose
// attribute commitments open to the given openings, bound to the given
// challenge
func (s Statement) Prove(gc *GlobalContext, challenge, credID []byte,
	openings Openings) (*Versioned, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := gc.OnChainCommitmentKey.Validate(); err != nil {
		return nil, err
	}
	proof := &Versioned{
		V:     ProofVersion1,
		Value: Proof{Proofs: make([]AtomicProof, len(s))},
	}
	for i := range s {
		op, ok := openings[s[i].AttributeTag]
		if !ok {
			return nil, fmt.Errorf("no opening for attribute %q", s[i].AttributeTag)
		}
		p, err := s[i].prove(gc, challenge, credID, i, op)
		if err != nil {
			return nil, fmt.Errorf("atomic statement %d (%s %s): %w", i, s[i].Type,
				s[i].AttributeTag, err)
		}
		proof.Value.Proofs[i] = *p
	}
	return proof, nil
}

func (a *AtomicStatement) prove(gc *GlobalContext, challenge, credID []byte, i int,
	op AttributeOpening) (*AtomicProof, error) {
	ck := &gc.OnChainCommitmentKey
	g, h := ck.G.BabyJub(), ck.H.BabyJub()
	v, err := AttributeToScalar(op.Value)
	if err != nil {
		return nil, err
	}
	r := new(big.Int).Set(op.Randomness.BigInt())
	cmm := ck.commit(v, r)

	var revealed string
	if a.Type == RevealAttribute {
		revealed = op.Value
	}
	t, err := statementTranscript(gc, challenge, credID, i, a, cmm, revealed)
	if err != nil {
		return nil, err
	}
	out := &AtomicProof{Type: a.Type, Attribute: revealed}

	switch a.Type {
	case RevealAttribute:
		sp, err := newSchnorrProver(h, r)
		if err != nil {
			return nil, err
		}
		t.appendPoint(sp.t)
		c, err := t.challenge()
		if err != nil {
			return nil, err
		}
		rp := sp.respond(c)
		out.Reveal = &rp

	case AttributeInSet:
		idx := -1
		for j, e := range a.Set {
			if e == op.Value {
				idx = j
				break
			}
		}
		if idx < 0 {
			return nil, ErrStatementNotSatisfied
		}
		set, err := a.setScalars()
		if err != nil {
			return nil, err
		}
		orp, err := newOrProver(h, setBases(g, cmm, set), idx, r)
		if err != nil {
			return nil, err
		}
		appendPointsOrZero(t, orp.ts)
		c, err := t.challenge()
		if err != nil {
			return nil, err
		}
		mp := orp.respond(c)
		out.Membership = &mp

	case AttributeNotInSet:
		set, err := a.setScalars()
		if err != nil {
			return nil, err
		}
		provers := make([]*reprProver, len(set))
		ts := make([]*babyjub.Point, len(set))
		for j, base := range setBases(g, cmm, set) {
			diff := modL(new(big.Int).Sub(v, set[j]))
			if diff.Sign() == 0 {
				return nil, ErrStatementNotSatisfied
			}
			aj := new(big.Int).ModInverse(diff, babyjub.SubOrder)
			bj := modL(new(big.Int).Neg(new(big.Int).Mul(aj, r)))
			provers[j], err = newReprProver(h, base, aj, bj)
			if err != nil {
				return nil, err
			}
			ts[j] = provers[j].t
		}
		appendPointsOrZero(t, ts)
		c, err := t.challenge()
		if err != nil {
			return nil, err
		}
		out.NonMembership = make([]ReprProof, len(provers))
		for j := range provers {
			out.NonMembership[j] = provers[j].respond(c)
		}

	case AttributeInRange:
		lower, upperIncl, nBits, err := a.bounds()
		if err != nil {
			return nil, err
		}
		if v.Cmp(lower) < 0 || v.Cmp(upperIncl) > 0 {
			return nil, ErrStatementNotSatisfied
		}
		lowerP, err := newBitsProver(ck, new(big.Int).Sub(v, lower), r, nBits)
		if err != nil {
			return nil, err
		}
		upperP, err := newBitsProver(ck, new(big.Int).Sub(upperIncl, v),
			modL(new(big.Int).Neg(r)), nBits)
		if err != nil {
			return nil, err
		}
		lowerP.appendCommitments(t)
		lowerP.appendFirstMessages(t)
		upperP.appendCommitments(t)
		upperP.appendFirstMessages(t)
		c, err := t.challenge()
		if err != nil {
			return nil, err
		}
		out.Range = &RangeProof{
			Lower: lowerP.respond(c),
			Upper: upperP.respond(c),
		}
	}
	return out, nil
}
