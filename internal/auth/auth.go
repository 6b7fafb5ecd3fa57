package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when verification is enabled but the setup
	// payload carried no token.
	ErrMissingToken = errors.New("setup token missing")
	// ErrSubjectMismatch is returned when the token subject does not match
	// the asserted identity.
	ErrSubjectMismatch = errors.New("token subject does not match asserted identity")
)

// Verifier checks the token a client presents at setup against the identity
// it asserts. With an empty secret the verifier is disabled and the asserted
// identity is trusted verbatim, matching the original deployment.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier. An empty secret disables verification.
func NewVerifier(secret string) *Verifier {
	if secret == "" {
		return &Verifier{}
	}
	return &Verifier{secret: []byte(secret)}
}

// Enabled reports whether setup tokens are being verified.
func (v *Verifier) Enabled() bool {
	return len(v.secret) > 0
}

// Verify validates an HS256 token and checks its subject claim against the
// asserted user identity. A disabled verifier accepts everything.
func (v *Verifier) Verify(token, assertedID string) error {
	if !v.Enabled() {
		return nil
	}
	if token == "" {
		return ErrMissingToken
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return fmt.Errorf("parse setup token: %w", err)
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil {
		return fmt.Errorf("setup token subject: %w", err)
	}
	if sub != assertedID {
		return ErrSubjectMismatch
	}
	return nil
}
