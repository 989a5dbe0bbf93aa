package idproof

import (
	"math/big"

	"github.com/iden3/go-iden3-crypto/babyjub"
	"github.com/iden3/go-iden3-crypto/poseidon"
)

// transcriptRate is the number of elements absorbed on each Poseidon call,
// the state being the remaining input
const transcriptRate = 4

// bytesChunkLen keeps each chunk of absorbed bytes inside the field
const bytesChunkLen = 31

// transcript computes Fiat-Shamir challenges by chaining Poseidon hashes over
// everything the prover has committed to
type transcript struct {
	state *big.Int
	buf   []*big.Int
	err   error
}

func newTranscript(domain string) *transcript {
	t := &transcript{state: big.NewInt(0)}
	t.appendBytes([]byte(domain))
	return t
}

func (t *transcript) append(xs ...*big.Int) {
	t.buf = append(t.buf, xs...)
	for len(t.buf) >= transcriptRate {
		t.absorb(t.buf[:transcriptRate])
		t.buf = t.buf[transcriptRate:]
	}
}

func (t *transcript) absorb(xs []*big.Int) {
	if t.err != nil {
		return
	}
	in := make([]*big.Int, 0, len(xs)+1)
	in = append(in, t.state)
	in = append(in, xs...)
	h, err := poseidon.Hash(in)
	if err != nil {
		t.err = err
		return
	}
	t.state = h
}

func (t *transcript) appendUint(x uint64) {
	t.append(new(big.Int).SetUint64(x))
}

func (t *transcript) appendBytes(b []byte) {
	t.appendUint(uint64(len(b)))
	for i := 0; i < len(b); i += bytesChunkLen {
		end := i + bytesChunkLen
		if end > len(b) {
			end = len(b)
		}
		t.append(new(big.Int).SetBytes(b[i:end]))
	}
}

func (t *transcript) appendPoint(p *babyjub.Point) {
	t.append(p.X, p.Y)
}

func (t *transcript) appendPoints(ps []*babyjub.Point) {
	t.appendUint(uint64(len(ps)))
	for _, p := range ps {
		t.appendPoint(p)
	}
}

func (t *transcript) appendScalar(x *big.Int) {
	t.append(new(big.Int).Mod(x, babyjub.SubOrder))
}

// challenge absorbs the pending input and returns the current state reduced
// to a scalar
func (t *transcript) challenge() (*big.Int, error) {
	if len(t.buf) > 0 {
		t.absorb(t.buf)
		t.buf = nil
	}
	if t.err != nil {
		return nil, t.err
	}
	return new(big.Int).Mod(t.state, babyjub.SubOrder), nil
}
