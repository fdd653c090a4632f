package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrMissingCredential   = errors.New("missing authorization header")
	ErrMalformedCredential = errors.New("authorization header is not a bearer credential")
	ErrInvalidCredential   = errors.New("API key not valid")
)

// Principal identifies an authenticated caller without carrying the key itself.
type Principal struct {
	// KeyID is a short, stable fingerprint of the key, safe for logs,
	// metrics labels and usage accounting.
	KeyID string
}

// KeySet is the immutable set of accepted API keys. Only sha256 digests are
// kept so every comparison runs over fixed-length input.
type KeySet struct {
	hashes [][sha256.Size]byte
}

func NewKeySet(keys []string) *KeySet {
	seen := make(map[[sha256.Size]byte]bool, len(keys))
	ks := &KeySet{}
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		h := sha256.Sum256([]byte(k))
		if seen[h] {
			continue
		}
		seen[h] = true
		ks.hashes = append(ks.hashes, h)
	}
	return ks
}

func (ks *KeySet) Len() int {
	return len(ks.hashes)
}

// Authenticate checks an Authorization header value against the key set.
// Every configured key is compared regardless of earlier matches.
func (ks *KeySet) Authenticate(header string) (Principal, error) {
	token, err := BearerToken(header)
	if err != nil {
		return Principal{}, err
	}

	h := sha256.Sum256([]byte(token))
	match := 0
	for i := range ks.hashes {
		match |= subtle.ConstantTimeCompare(h[:], ks.hashes[i][:])
	}
	if match != 1 {
		return Principal{}, ErrInvalidCredential
	}
	return Principal{KeyID: fingerprint(h)}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingCredential
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMalformedCredential
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrMalformedCredential
	}
	return token, nil
}

func fingerprint(h [sha256.Size]byte) string {
	return hex.EncodeToString(h[:6])
}
