package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/aragon/zkid-node/idproof"
	"github.com/mr-tron/base58"
)

// AccountAddressLen is the byte length of an AccountAddress
const AccountAddressLen = 32

// accountAddressVersion is the version byte prepended to the address before
// the base58check encoding
const accountAddressVersion = 1

// CredentialRegistrationIDLen is the byte length of a CredentialRegistrationID
const CredentialRegistrationIDLen = 48

// AccountAddress identifies an account on chain. It is encoded in JSON and in
// query params as base58check with version byte 1.
type AccountAddress [AccountAddressLen]byte

func addressChecksum(payload []byte) []byte {
	h := sha256.Sum256(payload)
	h = sha256.Sum256(h[:])
	return h[:4]
}

// ParseAccountAddress decodes the base58check representation of an
// AccountAddress
func ParseAccountAddress(s string) (AccountAddress, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return AccountAddress{}, fmt.Errorf("invalid account address: %w", err)
	}
	if len(b) != 1+AccountAddressLen+4 {
		return AccountAddress{}, fmt.Errorf("unexpected account address length: %d", len(b))
	}
	payload, checksum := b[:1+AccountAddressLen], b[1+AccountAddressLen:]
	if payload[0] != accountAddressVersion {
		return AccountAddress{}, fmt.Errorf("unexpected account address version: %d", payload[0])
	}
	if !bytes.Equal(checksum, addressChecksum(payload)) {
		return AccountAddress{}, fmt.Errorf("account address checksum mismatch")
	}
	var addr AccountAddress
	copy(addr[:], payload[1:])
	return addr, nil
}

// String returns the base58check representation of the AccountAddress
func (a AccountAddress) String() string {
	payload := make([]byte, 0, 1+AccountAddressLen+4)
	payload = append(payload, accountAddressVersion)
	payload = append(payload, a[:]...)
	payload = append(payload, addressChecksum(payload)...)
	return base58.Encode(payload)
}

// MarshalText implements the encoding.TextMarshaler interface
func (a AccountAddress) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface
func (a *AccountAddress) UnmarshalText(text []byte) error {
	d, err := ParseAccountAddress(string(text))
	if err != nil {
		return err
	}
	*a = d
	return nil
}

// CredentialRegistrationID identifies a credential on chain. It is encoded in
// JSON as hex.
type CredentialRegistrationID [CredentialRegistrationIDLen]byte

// HexToCredentialRegistrationID decodes the hex representation of a
// CredentialRegistrationID
func HexToCredentialRegistrationID(h string) (CredentialRegistrationID, error) {
	b, err := hex.DecodeString(h)
	if err != nil {
		return CredentialRegistrationID{}, err
	}
	var id CredentialRegistrationID
	if len(id) != len(b) {
		return CredentialRegistrationID{},
			fmt.Errorf("unexpected credential registration id length: %d", len(b))
	}
	copy(id[:], b)
	return id, nil
}

// String returns the hex representation of the CredentialRegistrationID
func (id CredentialRegistrationID) String() string {
	return hex.EncodeToString(id[:])
}

// MarshalText implements the encoding.TextMarshaler interface
func (id CredentialRegistrationID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface
func (id *CredentialRegistrationID) UnmarshalText(text []byte) error {
	d, err := HexToCredentialRegistrationID(string(text))
	if err != nil {
		return err
	}
	*id = d
	return nil
}

// CredentialType tells whether a credential carries attribute commitments
type CredentialType string

const (
	// CredentialInitial is a credential created before the identity
	// verification, without attribute commitments
	CredentialInitial CredentialType = "initial"
	// CredentialNormal is a credential with attribute commitments
	CredentialNormal CredentialType = "normal"
)

// AccountInfo contains the on chain state of an account that is relevant to
// the verification of identity proofs
type AccountInfo struct {
	AccountAddress     AccountAddress                `json:"accountAddress"`
	AccountCredentials map[uint8]VersionedCredential `json:"accountCredentials"`
}

// VersionedCredential wraps an AccountCredential with the version of its
// encoding
type VersionedCredential struct {
	V     uint32            `json:"v"`
	Value AccountCredential `json:"value"`
}

// AccountCredential is a credential deployed on an account
type AccountCredential struct {
	Type     CredentialType     `json:"type"`
	Contents CredentialContents `json:"contents"`
}

// CredentialContents holds RegID for initial credentials, and CredID with
// Commitments for normal ones
type CredentialContents struct {
	RegID       *CredentialRegistrationID `json:"regId,omitempty"`
	CredID      *CredentialRegistrationID `json:"credId,omitempty"`
	Commitments *CredentialCommitments    `json:"commitments,omitempty"`
}

// CredentialCommitments contains the commitments to the identity attributes,
// keyed by attribute tag
type CredentialCommitments struct {
	CmmAttributes map[string]idproof.Point `json:"cmmAttributes"`
}

// RegistrationID returns the registration id of the credential, whatever its
// type
func (ac *AccountCredential) RegistrationID() (CredentialRegistrationID, bool) {
	switch {
	case ac.Type == CredentialInitial && ac.Contents.RegID != nil:
		return *ac.Contents.RegID, true
	case ac.Type == CredentialNormal && ac.Contents.CredID != nil:
		return *ac.Contents.CredID, true
	}
	return CredentialRegistrationID{}, false
}

// AttributeCommitments returns the attribute commitments of a normal
// credential, and false for an initial one
func (ac *AccountCredential) AttributeCommitments() (map[string]idproof.Point, bool) {
	if ac.Type != CredentialNormal {
		return nil, false
	}
	if ac.Contents.Commitments == nil {
		return map[string]idproof.Point{}, true
	}
	return ac.Contents.Commitments.CmmAttributes, true
}
