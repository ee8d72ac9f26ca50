// Package secret derives share access parameters from an opaque share secret.
package secret

import (
	"crypto/sha256"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

var (
	ErrEmptySecret    = errors.New("share secret is empty")
	ErrSecretTooShort = errors.New("share secret is too short")
	ErrSecretCharset  = errors.New("share secret contains invalid characters")
)

// minSecretLen is the minimum accepted secret length. Secrets shorter than
// this cannot carry enough entropy to address a resource.
const minSecretLen = 26

// Domain-separation labels for HKDF expansion. Changing any of these breaks
// compatibility with every previously issued share secret.
const (
	infoResourceID = "sharelock/v1/resource-id"
	infoPossession = "sharelock/v1/possession-token"
	infoItemKey    = "sharelock/v1/item-key"
)

const (
	resourceIDBytes = 16
	possessionBytes = 32
	itemKeyBytes    = 32
)

// base32Lower encodes resource ids; unpadded lowercase per service convention.
var base32Lower = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// Access holds the parameters derived from a share secret. Immutable once
// derived; the Key is never transmitted.
type Access struct {
	ResourceID      string
	PossessionToken string
	Key             []byte
}

// Resolver derives Access triples from share secrets via HKDF-SHA256.
// Derivation is deterministic: the same secret always yields the same triple.
type Resolver struct{}

// NewResolver returns a Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Derive validates the share secret and expands it into an Access triple.
func (r *Resolver) Derive(shareSecret string) (*Access, error) {
	if shareSecret == "" {
		return nil, ErrEmptySecret
	}
	if len(shareSecret) < minSecretLen {
		return nil, fmt.Errorf("%w: need at least %d characters", ErrSecretTooShort, minSecretLen)
	}
	for _, c := range shareSecret {
		if !isSecretChar(c) {
			return nil, ErrSecretCharset
		}
	}

	id, err := expand(shareSecret, infoResourceID, resourceIDBytes)
	if err != nil {
		return nil, err
	}
	tok, err := expand(shareSecret, infoPossession, possessionBytes)
	if err != nil {
		return nil, err
	}
	key, err := expand(shareSecret, infoItemKey, itemKeyBytes)
	if err != nil {
		return nil, err
	}

	return &Access{
		ResourceID:      base32Lower.EncodeToString(id),
		PossessionToken: base64.RawURLEncoding.EncodeToString(tok),
		Key:             key,
	}, nil
}

// expand runs one HKDF-SHA256 expansion with a domain-separation label.
func expand(secret, info string, n int) ([]byte, error) {
	out := make([]byte, n)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(info))
	if _, err := io.ReadFull(kdf, out); err != nil {
		return nil, fmt.Errorf("hkdf expansion failed for %s: %w", info, err)
	}
	return out, nil
}

// isSecretChar reports whether c is in the base64url alphabet used for
// share secrets.
func isSecretChar(c rune) bool {
	switch {
	case c >= 'A' && c <= 'Z':
		return true
	case c >= 'a' && c <= 'z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	}
	return false
}
