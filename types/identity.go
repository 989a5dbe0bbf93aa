package types

import (
	"crypto/rand"

	"github.com/aragon/zkid-node/idproof"
)

// Identity contains what a prover holds for the primary credential of its
// account: the credential id and the openings of the attribute commitments
type Identity struct {
	Address    AccountAddress           `json:"address"`
	CredID     CredentialRegistrationID `json:"credId"`
	Attributes idproof.Openings         `json:"attributes"`
}

// DefaultAttributes are the attribute values given to generated identities
// when none are provided
var DefaultAttributes = map[string]string{
	"firstName":          "Alice",
	"lastName":           "Liddell",
	"dob":                "19900512",
	"nationality":        "DK",
	"countryOfResidence": "DE",
	"idDocType":          "1",
}

// NewIdentity returns an Identity with a random address and credential id,
// holding the given attribute values under fresh randomness
func NewIdentity(values map[string]string) (*Identity, error) {
	id := &Identity{Attributes: make(idproof.Openings, len(values))}
	if _, err := rand.Read(id.Address[:]); err != nil {
		return nil, err
	}
	if _, err := rand.Read(id.CredID[:]); err != nil {
		return nil, err
	}
	for tag, v := range values {
		r, err := idproof.RandomScalar()
		if err != nil {
			return nil, err
		}
		id.Attributes[tag] = idproof.AttributeOpening{
			Value:      v,
			Randomness: idproof.NewScalar(r),
		}
	}
	return id, nil
}

// Prove builds the proof of the statement for the given challenge
func (id *Identity) Prove(gc *idproof.GlobalContext, s idproof.Statement,
	challenge Challenge) (*ChallengedProof, error) {
	proof, err := s.Prove(gc, challenge[:], id.CredID[:], id.Attributes)
	if err != nil {
		return nil, err
	}
	return &ChallengedProof{
		Challenge: challenge,
		Proof: ProofWithContext{
			Credential: id.CredID,
			Proof:      *proof,
		},
	}, nil
}

// AccountInfo returns the account info that the chain holds for the identity,
// with its credential in slot 0
func (id *Identity) AccountInfo(gc *idproof.GlobalContext) (*AccountInfo, error) {
	cmms, err := id.Attributes.Commitments(&gc.OnChainCommitmentKey)
	if err != nil {
		return nil, err
	}
	credID := id.CredID
	return &AccountInfo{
		AccountAddress: id.Address,
		AccountCredentials: map[uint8]VersionedCredential{
			0: {Value: AccountCredential{
				Type: CredentialNormal,
				Contents: CredentialContents{
					CredID:      &credID,
					Commitments: &CredentialCommitments{CmmAttributes: cmms},
				},
			}},
		},
	}, nil
}
