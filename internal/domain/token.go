package domain

import (
	"errors"
	"time"
)

// Typed codec errors. Decode never panics on attacker-controlled
// input; it returns one of these.
var (
	ErrMalformedToken = errors.New("malformed proof token")
	ErrCorruptToken   = errors.New("proof token failed integrity check")
	ErrTokenExpired   = errors.New("proof token expired")
)

// TokenPayload is the decoded content of a proof token. Older tokens
// carried the registration reference under a legacy field instead of
// the subject; the decoder surfaces both so callers can fall back.
type TokenPayload struct {
	RegistrationID       string
	EventID              string
	Kind                 ParticipantKind
	UniqueCode           string
	LegacyRegistrationID string
	IssuedAt             time.Time
}

// ProofCodec issues and decodes the signed proof tokens presented as
// QR payloads.
type ProofCodec interface {
	// Issue serializes a signed token binding the registration, its
	// event, the participant kind, and the current instant.
	Issue(reg *Registration) (string, error)
	// Decode parses and verifies a serialized token. It fails with
	// ErrMalformedToken when the input cannot be parsed and
	// ErrCorruptToken when the signature check fails.
	Decode(serialized string) (*TokenPayload, error)
	// IsExpired reports whether the payload is older than maxAge.
	// A maxAge of zero means the token never expires.
	IsExpired(payload *TokenPayload, maxAge time.Duration) bool
}
