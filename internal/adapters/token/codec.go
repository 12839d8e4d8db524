package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"eventpass/internal/domain"
)

// proofClaims is the wire shape of a proof token. The unique code is
// the preferred lookup key; "registration_id" is the claim older
// tokens used before the code claim existed and is kept so those
// tokens still decode.
type proofClaims struct {
	jwt.RegisteredClaims
	EventID              string `json:"evt"`
	Kind                 string `json:"kind"`
	UniqueCode           string `json:"code,omitempty"`
	LegacyRegistrationID string `json:"registration_id,omitempty"`
}

type codec struct {
	secret []byte
}

// NewCodec returns a ProofCodec that signs tokens with HS256 using the
// given secret.
func NewCodec(secret string) domain.ProofCodec {
	return &codec{secret: []byte(secret)}
}

func (c *codec) Issue(reg *domain.Registration) (string, error) {
	claims := proofClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  reg.ID,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
		EventID:    reg.EventID,
		Kind:       string(reg.Kind),
		UniqueCode: reg.UniqueCode,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	serialized, err := t.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign proof token: %w", err)
	}
	return serialized, nil
}

func (c *codec) Decode(serialized string) (*domain.TokenPayload, error) {
	claims := &proofClaims{}
	t, err := jwt.ParseWithClaims(serialized, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedToken, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptToken, err)
	}
	if !t.Valid {
		return nil, domain.ErrCorruptToken
	}

	payload := &domain.TokenPayload{
		RegistrationID:       claims.Subject,
		EventID:              claims.EventID,
		Kind:                 domain.ParticipantKind(claims.Kind),
		UniqueCode:           claims.UniqueCode,
		LegacyRegistrationID: claims.LegacyRegistrationID,
	}
	if claims.IssuedAt != nil {
		payload.IssuedAt = claims.IssuedAt.Time
	}
	return payload, nil
}

func (c *codec) IsExpired(payload *domain.TokenPayload, maxAge time.Duration) bool {
	if maxAge <= 0 || payload.IssuedAt.IsZero() {
		return false
	}
	return time.Since(payload.IssuedAt) > maxAge
}
