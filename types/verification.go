package types

import "time"

// VerificationOK is the outcome stored for a successful verification
const VerificationOK = "ok"

// Verification contains the data from an entry in the audit log
type Verification struct {
	ID               uint64    `json:"id"`
	Address          string    `json:"address"`
	Credential       string    `json:"credential"`
	Outcome          string    `json:"outcome"`
	InsertedDatetime time.Time `json:"insertedDatetime"`
}
