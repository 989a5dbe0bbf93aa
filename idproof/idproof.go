// Package idproof implements the identity statements used to gate sessions:
// Pedersen commitments to identity attributes over the BabyJubJub curve, and
// non-interactive sigma proofs that reveal an attribute, or that show that a
// committed attribute lies in a range, belongs to a set, or does not belong to
// a set, without revealing it.
package idproof

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/babyjub"
	"github.com/iden3/go-iden3-crypto/constants"
	"github.com/vocdoni/arbo"
)

// ScalarLen is the byte length of the encoding of a Scalar
const ScalarLen = 32

// PointLen is the byte length of the encoding of a compressed Point
const PointLen = 32

// Point is a point of the BabyJubJub prime order subgroup. It is encoded in
// JSON as the hex representation of the compressed point.
type Point babyjub.Point

// NewPoint returns a Point from the given babyjub.Point
func NewPoint(p *babyjub.Point) Point {
	return Point{X: new(big.Int).Set(p.X), Y: new(big.Int).Set(p.Y)}
}

// BabyJub returns the underlying babyjub.Point
func (p *Point) BabyJub() *babyjub.Point {
	return (*babyjub.Point)(p)
}

// MarshalText implements the encoding.TextMarshaler interface
func (p Point) MarshalText() ([]byte, error) {
	if p.X == nil || p.Y == nil {
		return nil, fmt.Errorf("can not encode an uninitialized point")
	}
	q := babyjub.Point(p)
	comp := q.Compress()
	return []byte(hex.EncodeToString(comp[:])), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface. Only
// points of the prime order subgroup are accepted.
func (p *Point) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(b) != PointLen {
		return fmt.Errorf("unexpected point length: %d", len(b))
	}
	var comp [PointLen]byte
	copy(comp[:], b)
	q, err := babyjub.NewPoint().Decompress(comp)
	if err != nil {
		return err
	}
	if !inSubGroup(q) {
		return fmt.Errorf("point not in the prime order subgroup")
	}
	*p = NewPoint(q)
	return nil
}

// Scalar is an element of the scalar field of the BabyJubJub prime order
// subgroup. It is encoded in JSON as the hex representation of its 32 bytes
// little-endian encoding.
type Scalar big.Int

// NewScalar returns a Scalar holding x mod babyjub.SubOrder
func NewScalar(x *big.Int) Scalar {
	var s Scalar
	(*big.Int)(&s).Mod(x, babyjub.SubOrder)
	return s
}

// BigInt returns the value of the Scalar
func (s *Scalar) BigInt() *big.Int {
	return (*big.Int)(s)
}

// MarshalText implements the encoding.TextMarshaler interface
func (s Scalar) MarshalText() ([]byte, error) {
	x := big.Int(s)
	b := arbo.BigIntToBytes(ScalarLen, &x)
	return []byte(hex.EncodeToString(b)), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface
func (s *Scalar) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(b) != ScalarLen {
		return fmt.Errorf("unexpected scalar length: %d", len(b))
	}
	x := arbo.BytesToBigInt(b)
	if x.Cmp(babyjub.SubOrder) >= 0 {
		return fmt.Errorf("scalar out of range")
	}
	(*big.Int)(s).Set(x)
	return nil
}

// RandomScalar returns a uniformly random scalar
func RandomScalar() (*big.Int, error) {
	return rand.Int(rand.Reader, babyjub.SubOrder)
}

// identity returns the neutral element of the curve
func identity() *babyjub.Point {
	return babyjub.NewPoint()
}

func add(a, b *babyjub.Point) *babyjub.Point {
	p := a.Projective()
	p.Add(p, b.Projective())
	return p.Affine()
}

func neg(a *babyjub.Point) *babyjub.Point {
	x := new(big.Int).Neg(a.X)
	x.Mod(x, constants.Q)
	return &babyjub.Point{X: x, Y: new(big.Int).Set(a.Y)}
}

func sub(a, b *babyjub.Point) *babyjub.Point {
	return add(a, neg(b))
}

// mul returns s·a, reducing s modulo the subgroup order
func mul(s *big.Int, a *babyjub.Point) *babyjub.Point {
	return babyjub.NewPoint().Mul(new(big.Int).Mod(s, babyjub.SubOrder), a)
}

func equal(a, b *babyjub.Point) bool {
	return a.X.Cmp(b.X) == 0 && a.Y.Cmp(b.Y) == 0
}

func isIdentity(a *babyjub.Point) bool {
	return equal(a, identity())
}

func inSubGroup(a *babyjub.Point) bool {
	// no reduction of the scalar here, SubOrder·a must be the identity
	return isIdentity(babyjub.NewPoint().Mul(babyjub.SubOrder, a))
}

func modL(x *big.Int) *big.Int {
	return x.Mod(x, babyjub.SubOrder)
}
