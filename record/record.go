// Package record defines the signed, content-addressed record wrapper that
// every GitGov entity is persisted as, and the payload types it carries.
package record

import "fmt"

// Type tags the payload carried by a Wrapper.
type Type string

const (
	TypeActor      Type = "actor"
	TypeAgent      Type = "agent"
	TypeTask       Type = "task"
	TypeExecution  Type = "execution"
	TypeFeedback   Type = "feedback"
	TypeCycle      Type = "cycle"
	TypeChangelog  Type = "changelog"
)

// SignerRole identifies why a signature was attached to a record.
type SignerRole string

const (
	RoleAuthor    SignerRole = "author"
	RoleApprover  SignerRole = "approver"
	RoleResolver  SignerRole = "resolver"
	RoleSubmitter SignerRole = "submitter"
)

// Signature is one entry in header.signatures.
type Signature struct {
	KeyID     string     `json:"keyId"`
	Role      SignerRole `json:"role"`
	Notes     string     `json:"notes,omitempty"`
	Signature string     `json:"signature"`
	Timestamp int64      `json:"timestamp"`
}

// Header is the embedded metadata wrapper (§3 "Record wrapper").
type Header struct {
	Version         string      `json:"version"`
	Type            Type        `json:"type"`
	PayloadChecksum string      `json:"payloadChecksum"`
	Signatures      []Signature `json:"signatures"`
}

// Wrapper is the on-disk/on-wire unit: header + raw payload bytes.
//
// Payload is kept as canonicalized JSON bytes rather than a typed field so
// the codec can round-trip arbitrary payload types (including the open
// ExecutionRecord metadata bag, §3) without a reflection-heavy registry.
type Wrapper struct {
	Header  Header          `json:"header"`
	Payload RawPayload      `json:"payload"`
}

// RawPayload is canonicalized JSON bytes of the payload, carried verbatim.
type RawPayload []byte

// MarshalJSON emits the raw bytes unmodified so Wrapper round-trips through
// encoding/json without re-indenting the payload.
func (p RawPayload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

// UnmarshalJSON stores the raw payload bytes as given.
func (p *RawPayload) UnmarshalJSON(data []byte) error {
	*p = append((*p)[:0], data...)
	return nil
}

// ErrKind is a taxonomy tag (§7), not a Go type hierarchy: callers switch on
// this string rather than type-asserting concrete error structs.
type ErrKind string

const (
	ErrValidation         ErrKind = "ValidationError"
	ErrDetailedValidation ErrKind = "DetailedValidationError"
	ErrChecksumMismatch   ErrKind = "ChecksumMismatch"
	ErrSignatureInvalid   ErrKind = "SignatureInvalid"
	ErrUnknownSigner      ErrKind = "UnknownSigner"
	ErrRecordNotFound     ErrKind = "RecordNotFound"
	ErrConcurrentUpdate   ErrKind = "ConcurrentUpdate"
	ErrInvalidData        ErrKind = "InvalidData"
	ErrNotImplemented     ErrKind = "NotImplemented"
	ErrRebaseAlreadyInProgress ErrKind = "RebaseAlreadyInProgress"
	ErrNoRebaseInProgress      ErrKind = "NoRebaseInProgress"
	ErrConflictMarkersPresent  ErrKind = "ConflictMarkersPresent"
	ErrActorIdentityMismatch   ErrKind = "ActorIdentityMismatch"
	ErrWorktreeSetupError      ErrKind = "WorktreeSetupError"
	ErrStateBranchSetupError   ErrKind = "StateBranchSetupError"
	ErrIntegrityViolation      ErrKind = "IntegrityViolation"

	ErrAgentNotFound         ErrKind = "AgentNotFound"
	ErrFunctionNotExported   ErrKind = "FunctionNotExported"
	ErrLocalEngineConfigError ErrKind = "LocalEngineConfigError"
	ErrMissingDependency     ErrKind = "MissingDependency"
	ErrUnsupportedEngineType ErrKind = "UnsupportedEngineType"
)

// FieldError is one entry of a DetailedValidationError (§4.1).
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// KindError is the common error shape surfaced by record, store, and sync
// operations: a stable kind plus a human message and optional field detail.
type KindError struct {
	Kind    ErrKind
	Message string
	Fields  []FieldError
}

func (e *KindError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewKindError builds a KindError with no field detail.
func NewKindError(kind ErrKind, format string, args ...any) *KindError {
	return &KindError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a *KindError of the given kind.
func IsKind(err error, kind ErrKind) bool {
	ke, ok := err.(*KindError)
	return ok && ke.Kind == kind
}
