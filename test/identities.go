package test

import (
	"github.com/aragon/zkid-node/idproof"
	"github.com/aragon/zkid-node/types"
	qt "github.com/frankban/quicktest"
)

// Statement is a test statement satisfied by types.DefaultAttributes
var Statement = idproof.Statement{
	{Type: idproof.AttributeInSet, AttributeTag: "nationality",
		Set: []string{"DK", "DE", "SE"}},
	{Type: idproof.AttributeNotInSet, AttributeTag: "countryOfResidence",
		Set: []string{"KP"}},
	{Type: idproof.AttributeInRange, AttributeTag: "idDocType",
		Lower: "1", Upper: "3"},
}

// GenGlobalContext returns a GlobalContext with a fresh commitment key
func GenGlobalContext(c *qt.C) *idproof.GlobalContext {
	ck, err := idproof.NewCommitmentKey()
	c.Assert(err, qt.IsNil)
	return &idproof.GlobalContext{
		GenesisString:        "zkid-node test chain",
		OnChainCommitmentKey: ck,
	}
}

// GenIdentity returns an Identity with a random address and credential id,
// holding the given attribute values, or types.DefaultAttributes if values is
// nil
func GenIdentity(c *qt.C, values map[string]string) *types.Identity {
	if values == nil {
		values = types.DefaultAttributes
	}
	id, err := types.NewIdentity(values)
	c.Assert(err, qt.IsNil)
	return id
}

// AccountInfo returns the account info of the identity, with a normal
// credential in slot 0
func AccountInfo(c *qt.C, gc *idproof.GlobalContext, id *types.Identity) *types.AccountInfo {
	info, err := id.AccountInfo(gc)
	c.Assert(err, qt.IsNil)
	return info
}

// InitialAccountInfo returns the account info of the identity, with an
// initial credential in slot 0
func InitialAccountInfo(id *types.Identity) *types.AccountInfo {
	regID := id.CredID
	return &types.AccountInfo{
		AccountAddress: id.Address,
		AccountCredentials: map[uint8]types.VersionedCredential{
			0: {Value: types.AccountCredential{
				Type:     types.CredentialInitial,
				Contents: types.CredentialContents{RegID: &regID},
			}},
		},
	}
}

// GenProof returns the ChallengedProof of the statement by the identity
func GenProof(c *qt.C, gc *idproof.GlobalContext, s idproof.Statement,
	id *types.Identity, challenge types.Challenge) *types.ChallengedProof {
	proof, err := id.Prove(gc, s, challenge)
	c.Assert(err, qt.IsNil)
	return proof
}
