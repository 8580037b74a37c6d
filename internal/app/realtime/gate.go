package realtime

import (
	"fmt"
	"net/http"
)

// Verifier checks a bearer credential and returns the user id it was issued for.
type Verifier interface {
	Verify(token string) (string, error)
}

// TokenSource extracts the raw credential from a handshake request.
type TokenSource func(r *http.Request) string

// Gate admits handshakes that carry a valid credential. It never touches the
// registry: a refused handshake leaves no state behind.
type Gate struct {
	verifier Verifier
	source   TokenSource
}

// NewGate returns a Gate reading credentials with source and checking them with verifier.
func NewGate(verifier Verifier, source TokenSource) *Gate {
	return &Gate{verifier: verifier, source: source}
}

// Admit returns the user id of an authenticated handshake, or ErrUnauthenticated
// when no credential is present, or ErrInvalidCredential when it fails verification.
func (g *Gate) Admit(r *http.Request) (string, error) {
	token := g.source(r)
	if token == "" {
		return "", ErrUnauthenticated
	}

	userID, err := g.verifier.Verify(token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	if userID == "" {
		return "", ErrInvalidCredential
	}

	return userID, nil
}
