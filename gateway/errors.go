package gateway

// ErrorKind classifies the failures of the verification core
type ErrorKind int

const (
	// KindOther is a chain side or unclassified failure
	KindOther ErrorKind = iota
	// KindUnknownSession means the challenge is not in the store
	KindUnknownSession
	// KindCredential means the on chain credential is missing or does not
	// match the submitted one
	KindCredential
	// KindNotAllowed means the credential is initial, without attribute
	// commitments
	KindNotAllowed
	// KindInvalidProofs means the proof does not satisfy the statement
	KindInvalidProofs
	// KindLockingError means a store lock is poisoned
	KindLockingError
)

var kindNames = map[ErrorKind]string{
	KindOther:          "Other",
	KindUnknownSession: "UnknownSession",
	KindCredential:     "Credential",
	KindNotAllowed:     "NotAllowed",
	KindInvalidProofs:  "InvalidProofs",
	KindLockingError:   "LockingError",
}

var kindMessages = map[ErrorKind]string{
	KindOther:          "other error",
	KindUnknownSession: "proof provided for an unknown session",
	KindCredential:     "credential missing or does not match the account",
	KindNotAllowed:     "initial credentials carry no attribute commitments",
	KindInvalidProofs:  "invalid proof",
	KindLockingError:   "error acquiring internal lock",
}

// String returns the name of the kind
func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return kindNames[KindOther]
}

// Error is returned by the verification core. Its message only depends on the
// Kind; the underlying cause is available through errors.Unwrap.
type Error struct {
	Kind  ErrorKind
	cause error
}

var (
	// ErrUnknownSession matches every Error of KindUnknownSession
	ErrUnknownSession = &Error{Kind: KindUnknownSession}
	// ErrCredential matches every Error of KindCredential
	ErrCredential = &Error{Kind: KindCredential}
	// ErrNotAllowed matches every Error of KindNotAllowed
	ErrNotAllowed = &Error{Kind: KindNotAllowed}
	// ErrInvalidProofs matches every Error of KindInvalidProofs
	ErrInvalidProofs = &Error{Kind: KindInvalidProofs}
	// ErrLockingError matches every Error of KindLockingError
	ErrLockingError = &Error{Kind: KindLockingError}
	// ErrOther matches every Error of KindOther
	ErrOther = &Error{Kind: KindOther}
)

func newError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, cause: cause}
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Kind.String() + ": " + kindMessages[e.Kind]
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error of the same Kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}
