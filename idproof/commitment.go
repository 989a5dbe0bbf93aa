package idproof

import (
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/babyjub"
)

// CommitmentKey contains the two generators used for the Pedersen commitments
// to the identity attributes: C = v·G + r·H
type CommitmentKey struct {
	G Point `json:"g"`
	H Point `json:"h"`
}

// GlobalContext contains the cryptographic parameters published by the chain
// that are needed to verify identity proofs
type GlobalContext struct {
	GenesisString        string        `json:"genesisString"`
	OnChainCommitmentKey CommitmentKey `json:"onChainCommitmentKey"`
}

// NewCommitmentKey returns a CommitmentKey with G the BabyJubJub base point
// and H a random multiple of it. The discrete log of H is discarded, but it
// was known at generation time, so this key is only meant for tests and local
// development chains.
func NewCommitmentKey() (CommitmentKey, error) {
	k, err := RandomScalar()
	if err != nil {
		return CommitmentKey{}, err
	}
	if k.Sign() == 0 {
		k.SetInt64(1)
	}
	return CommitmentKey{
		G: NewPoint(babyjub.B8),
		H: NewPoint(mul(k, babyjub.B8)),
	}, nil
}

// Validate checks that both generators are set and are not the identity
func (ck *CommitmentKey) Validate() error {
	if ck.G.X == nil || ck.H.X == nil {
		return fmt.Errorf("commitment key not initialized")
	}
	if isIdentity(ck.G.BabyJub()) || isIdentity(ck.H.BabyJub()) {
		return fmt.Errorf("commitment key generator is the identity")
	}
	if equal(ck.G.BabyJub(), ck.H.BabyJub()) {
		return fmt.Errorf("commitment key generators are equal")
	}
	return nil
}

// Commit returns the Pedersen commitment v·G + r·H
func (ck *CommitmentKey) Commit(v, r *big.Int) Point {
	return NewPoint(ck.commit(v, r))
}

func (ck *CommitmentKey) commit(v, r *big.Int) *babyjub.Point {
	return add(mul(v, ck.G.BabyJub()), mul(r, ck.H.BabyJub()))
}

// CommitAttribute returns the commitment to the given attribute value with the
// given randomness
func (ck *CommitmentKey) CommitAttribute(value string, r *big.Int) (Point, error) {
	v, err := AttributeToScalar(value)
	if err != nil {
		return Point{}, err
	}
	return ck.Commit(v, r), nil
}
