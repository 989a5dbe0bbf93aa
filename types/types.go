package types

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/aragon/zkid-node/idproof"
)

// ChallengeLen is the byte length of a Challenge
const ChallengeLen = 32

// Challenge is the random nonce that a prover must bind its proof to. It is
// encoded in JSON as its lowercase hex representation.
type Challenge [ChallengeLen]byte

// NewChallenge returns a Challenge filled from the system CSPRNG
func NewChallenge() (Challenge, error) {
	var ch Challenge
	if _, err := rand.Read(ch[:]); err != nil {
		return Challenge{}, err
	}
	return ch, nil
}

// HexToChallenge decodes the hex representation of a Challenge
func HexToChallenge(h string) (Challenge, error) {
	b, err := hex.DecodeString(h)
	if err != nil {
		return Challenge{}, err
	}
	var ch Challenge
	if len(ch) != len(b) {
		return Challenge{}, fmt.Errorf("unexpected challenge length: %d", len(b))
	}
	copy(ch[:], b)
	return ch, nil
}

// String returns the lowercase hex representation of the Challenge, which is
// also the key of the challenge store
func (ch Challenge) String() string {
	return hex.EncodeToString(ch[:])
}

// MarshalText implements the encoding.TextMarshaler interface
func (ch Challenge) MarshalText() ([]byte, error) {
	return []byte(ch.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface
func (ch *Challenge) UnmarshalText(text []byte) error {
	d, err := HexToChallenge(string(text))
	if err != nil {
		return err
	}
	*ch = d
	return nil
}

// ChallengeStatus is the session state kept for an issued challenge
type ChallengeStatus struct {
	Address   AccountAddress
	CreatedAt time.Time
}

// TokenStatus is the state kept for a granted token
type TokenStatus struct {
	CreatedAt time.Time `json:"createdAt"`
}

// ChallengeResponse is the body returned when a challenge is issued
type ChallengeResponse struct {
	Challenge Challenge `json:"challenge"`
}

// ChallengedProof is the body of a proof submission
type ChallengedProof struct {
	Challenge Challenge        `json:"challenge"`
	Proof     ProofWithContext `json:"proof"`
}

// ProofWithContext contains the credential that the proof was made for, and
// the versioned proof
type ProofWithContext struct {
	Credential CredentialRegistrationID `json:"credential"`
	Proof      idproof.Versioned        `json:"proof"`
}
