package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var ErrTampered = errors.New("session: value failed authentication")

// Sealer encrypts values before they reach a Store, so a copied database or
// Redis dump does not leak admin tokens.
type Sealer struct {
	key [32]byte
}

// NewSealer derives the box key from secret. An empty secret gives a random
// key, which means sessions do not survive a restart.
func NewSealer(secret string) (*Sealer, error) {
	s := &Sealer{}
	if secret == "" {
		if _, err := io.ReadFull(rand.Reader, s.key[:]); err != nil {
			return nil, fmt.Errorf("generating session key: %w", err)
		}
		return s, nil
	}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("kochchi session values v1"))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, fmt.Errorf("deriving session key: %w", err)
	}
	return s, nil
}

func (s *Sealer) Seal(plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(box), nil
}

func (s *Sealer) Open(sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrTampered
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrTampered
	}
	return string(plain), nil
}
