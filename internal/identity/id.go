package identity

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"
)

// IDProvider issues identifiers for new rows.
type IDProvider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider that issues UUIDv7 identifiers.
func NewUUIDProvider() IDProvider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

// TokenProvider issues unguessable bearer tokens for sessions and invites.
type TokenProvider interface {
	NewToken() (string, error)
}

type randomTokenProvider struct{}

// NewRandomTokenProvider constructs a TokenProvider backed by crypto/rand.
func NewRandomTokenProvider() TokenProvider {
	return &randomTokenProvider{}
}

func (p *randomTokenProvider) NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
