package idproof

import (
	"math/big"

	"github.com/iden3/go-iden3-crypto/babyjub"
)

// SchnorrProof proves knowledge of x such that P = x·H
type SchnorrProof struct {
	T Point  `json:"t"`
	Z Scalar `json:"z"`
}

// OrProof proves knowledge of x such that P_j = x·H for at least one of the
// points P_j, without telling which one
type OrProof struct {
	T []Point  `json:"t"`
	C []Scalar `json:"c"`
	Z []Scalar `json:"z"`
}

// ReprProof proves knowledge of (a, b) such that G = a·P + b·H
type ReprProof struct {
	T  Point  `json:"t"`
	Z1 Scalar `json:"z1"`
	Z2 Scalar `json:"z2"`
}

// BitDecomposition contains the commitments to the bits of a value and a 0/1
// proof for each of them
type BitDecomposition struct {
	Bits   []Point   `json:"bits"`
	Proofs []OrProof `json:"proofs"`
}

// RangeProof shows that both v-lower and upper-1-v are non negative values of
// a bounded number of bits
type RangeProof struct {
	Lower BitDecomposition `json:"lower"`
	Upper BitDecomposition `json:"upper"`
}

func pointsSet(ps ...Point) bool {
	for i := range ps {
		if ps[i].X == nil || ps[i].Y == nil {
			return false
		}
	}
	return true
}

// schnorrProver holds the prover state between the first message and the
// response
type schnorrProver struct {
	k *big.Int
	x *big.Int
	t *babyjub.Point
}

func newSchnorrProver(h *babyjub.Point, x *big.Int) (*schnorrProver, error) {
	k, err := RandomScalar()
	if err != nil {
		return nil, err
	}
	return &schnorrProver{k: k, x: x, t: mul(k, h)}, nil
}

func (p *schnorrProver) respond(c *big.Int) SchnorrProof {
	z := new(big.Int).Mul(c, p.x)
	z.Add(z, p.k)
	return SchnorrProof{T: NewPoint(p.t), Z: NewScalar(z)}
}

func verifySchnorr(h, pt *babyjub.Point, proof *SchnorrProof, c *big.Int) bool {
	if !pointsSet(proof.T) {
		return false
	}
	lhs := mul(proof.Z.BigInt(), h)
	rhs := add(proof.T.BabyJub(), mul(c, pt))
	return equal(lhs, rhs)
}

// orProver simulates the branches it does not know the witness for, and
// answers the branch idx honestly
type orProver struct {
	idx int
	x   *big.Int
	k   *big.Int
	ts  []*babyjub.Point
	cs  []*big.Int
	zs  []*big.Int
}

func newOrProver(h *babyjub.Point, bases []*babyjub.Point, idx int, x *big.Int) (*orProver, error) {
	p := &orProver{
		idx: idx,
		x:   x,
		ts:  make([]*babyjub.Point, len(bases)),
		cs:  make([]*big.Int, len(bases)),
		zs:  make([]*big.Int, len(bases)),
	}
	for j := range bases {
		if j == idx {
			k, err := RandomScalar()
			if err != nil {
				return nil, err
			}
			p.k = k
			p.ts[j] = mul(k, h)
			continue
		}
		cj, err := RandomScalar()
		if err != nil {
			return nil, err
		}
		zj, err := RandomScalar()
		if err != nil {
			return nil, err
		}
		p.cs[j], p.zs[j] = cj, zj
		p.ts[j] = sub(mul(zj, h), mul(cj, bases[j]))
	}
	return p, nil
}

func (p *orProver) respond(c *big.Int) OrProof {
	ci := new(big.Int).Set(c)
	for j := range p.cs {
		if j != p.idx {
			ci.Sub(ci, p.cs[j])
		}
	}
	p.cs[p.idx] = modL(ci)
	zi := new(big.Int).Mul(p.cs[p.idx], p.x)
	zi.Add(zi, p.k)
	p.zs[p.idx] = modL(zi)

	proof := OrProof{
		T: make([]Point, len(p.ts)),
		C: make([]Scalar, len(p.cs)),
		Z: make([]Scalar, len(p.zs)),
	}
	for j := range p.ts {
		proof.T[j] = NewPoint(p.ts[j])
		proof.C[j] = NewScalar(p.cs[j])
		proof.Z[j] = NewScalar(p.zs[j])
	}
	return proof
}

func verifyOr(h *babyjub.Point, bases []*babyjub.Point, proof *OrProof, c *big.Int) bool {
	n := len(bases)
	if n == 0 || len(proof.T) != n || len(proof.C) != n || len(proof.Z) != n {
		return false
	}
	if !pointsSet(proof.T...) {
		return false
	}
	sum := new(big.Int)
	for j := 0; j < n; j++ {
		cj := proof.C[j].BigInt()
		sum.Add(sum, cj)
		lhs := mul(proof.Z[j].BigInt(), h)
		rhs := add(proof.T[j].BabyJub(), mul(cj, bases[j]))
		if !equal(lhs, rhs) {
			return false
		}
	}
	return modL(sum).Cmp(new(big.Int).Mod(c, babyjub.SubOrder)) == 0
}

// reprProver proves knowledge of (a, b) with g = a·pt + b·h
type reprProver struct {
	a, b   *big.Int
	k1, k2 *big.Int
	t      *babyjub.Point
}

func newReprProver(h, pt *babyjub.Point, a, b *big.Int) (*reprProver, error) {
	k1, err := RandomScalar()
	if err != nil {
		return nil, err
	}
	k2, err := RandomScalar()
	if err != nil {
		return nil, err
	}
	return &reprProver{
		a: a, b: b, k1: k1, k2: k2,
		t: add(mul(k1, pt), mul(k2, h)),
	}, nil
}

func (p *reprProver) respond(c *big.Int) ReprProof {
	z1 := new(big.Int).Mul(c, p.a)
	z1.Add(z1, p.k1)
	z2 := new(big.Int).Mul(c, p.b)
	z2.Add(z2, p.k2)
	return ReprProof{T: NewPoint(p.t), Z1: NewScalar(z1), Z2: NewScalar(z2)}
}

func verifyRepr(g, h, pt *babyjub.Point, proof *ReprProof, c *big.Int) bool {
	if !pointsSet(proof.T) {
		return false
	}
	// a zero base would let anyone prove G = b·H knowing nothing about pt
	if isIdentity(pt) {
		return false
	}
	lhs := add(mul(proof.Z1.BigInt(), pt), mul(proof.Z2.BigInt(), h))
	rhs := add(proof.T.BabyJub(), mul(c, g))
	return equal(lhs, rhs)
}

// bitsProver commits to the nBits bits of d such that the commitments add up,
// weighted by powers of two, to d·G + rho·H
type bitsProver struct {
	bits    []*babyjub.Point
	provers []*orProver
}

func newBitsProver(ck *CommitmentKey, d, rho *big.Int, nBits int) (*bitsProver, error) {
	g, h := ck.G.BabyJub(), ck.H.BabyJub()
	p := &bitsProver{
		bits:    make([]*babyjub.Point, nBits),
		provers: make([]*orProver, nBits),
	}
	// blinding of the last bit is fixed so that the weighted sum is rho
	acc := new(big.Int)
	for i := 0; i < nBits; i++ {
		var rhoI *big.Int
		if i < nBits-1 {
			var err error
			rhoI, err = RandomScalar()
			if err != nil {
				return nil, err
			}
			w := new(big.Int).Lsh(rhoI, uint(i))
			acc.Add(acc, w)
		} else {
			rest := new(big.Int).Sub(rho, acc)
			inv := new(big.Int).Lsh(big.NewInt(1), uint(i))
			inv.ModInverse(inv, babyjub.SubOrder)
			rhoI = modL(rest.Mul(rest, inv))
		}
		bit := d.Bit(i)
		p.bits[i] = ck.commit(big.NewInt(int64(bit)), rhoI)
		bases := bitBases(g, p.bits[i])
		op, err := newOrProver(h, bases, int(bit), rhoI)
		if err != nil {
			return nil, err
		}
		p.provers[i] = op
	}
	return p, nil
}

func (p *bitsProver) appendCommitments(t *transcript) {
	appendPointsOrZero(t, p.bits)
}

func (p *bitsProver) appendFirstMessages(t *transcript) {
	for _, op := range p.provers {
		appendPointsOrZero(t, op.ts)
	}
}

func (p *bitsProver) respond(c *big.Int) BitDecomposition {
	out := BitDecomposition{
		Bits:   make([]Point, len(p.bits)),
		Proofs: make([]OrProof, len(p.provers)),
	}
	for i := range p.bits {
		out.Bits[i] = NewPoint(p.bits[i])
		out.Proofs[i] = p.provers[i].respond(c)
	}
	return out
}

// bitBases returns the points that are a multiple of H when the bit is 0 and
// when it is 1
func bitBases(g, bit *babyjub.Point) []*babyjub.Point {
	return []*babyjub.Point{bit, sub(bit, g)}
}

func (bd *BitDecomposition) points() ([]*babyjub.Point, bool) {
	if len(bd.Bits) == 0 || !pointsSet(bd.Bits...) {
		return nil, false
	}
	ps := make([]*babyjub.Point, len(bd.Bits))
	for i := range bd.Bits {
		ps[i] = bd.Bits[i].BabyJub()
	}
	return ps, true
}

func appendOrFirstMessages(t *transcript, proofs []OrProof) {
	for i := range proofs {
		ts := make([]*babyjub.Point, len(proofs[i].T))
		for j := range proofs[i].T {
			if pointsSet(proofs[i].T[j]) {
				ts[j] = proofs[i].T[j].BabyJub()
			}
		}
		appendPointsOrZero(t, ts)
	}
}

func appendPointsOrZero(t *transcript, ps []*babyjub.Point) {
	t.appendUint(uint64(len(ps)))
	for _, p := range ps {
		if p == nil {
			t.append(big.NewInt(0), big.NewInt(0))
			continue
		}
		t.appendPoint(p)
	}
}

// verifyBits checks the bit proofs and that the weighted sum of the bit
// commitments equals target
func verifyBits(ck *CommitmentKey, bd *BitDecomposition, nBits int, target *babyjub.Point, c *big.Int) bool {
	if len(bd.Bits) != nBits || len(bd.Proofs) != nBits {
		return false
	}
	bits, ok := bd.points()
	if !ok {
		return false
	}
	g, h := ck.G.BabyJub(), ck.H.BabyJub()
	for i := range bits {
		if !verifyOr(h, bitBases(g, bits[i]), &bd.Proofs[i], c) {
			return false
		}
	}
	acc := bits[nBits-1]
	for i := nBits - 2; i >= 0; i-- {
		acc = add(add(acc, acc), bits[i])
	}
	return equal(acc, target)
}
