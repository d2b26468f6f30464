package kv

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"log"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrSealed is returned when a stored value fails authentication under the configured key.
var ErrSealed = errors.New("kv: value cannot be opened with this key")

// Sealed encrypts values with XChaCha20-Poly1305 before they reach the wrapped Store.
// The key is bound to each value as additional data so values cannot be swapped between keys.
type Sealed struct {
	inner Store
	aead  cipher.AEAD
}

// NewSealed wraps inner. key must be chacha20poly1305.KeySize bytes.
func NewSealed(inner Store, key []byte) (*Sealed, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("kv: seal key: %w", err)
	}
	return &Sealed{inner: inner, aead: aead}, nil
}

func (s *Sealed) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.open(key, v)
}

func (s *Sealed) Set(ctx context.Context, key string, value []byte) error {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(value)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("kv: nonce: %w", err)
	}
	return s.inner.Set(ctx, key, s.aead.Seal(nonce, nonce, value, []byte(key)))
}

func (s *Sealed) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

// List skips entries that do not open under the key; they stay in the inner store untouched.
func (s *Sealed) List(ctx context.Context, prefix string) ([]Entry, error) {
	entries, err := s.inner.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, e := range entries {
		v, err := s.open(e.Key, e.Value)
		if err != nil {
			log.Printf("kv: skipping %s: %v", e.Key, err)
			continue
		}
		e.Value = v
		out = append(out, e)
	}
	return out, nil
}

func (s *Sealed) open(key string, v []byte) ([]byte, error) {
	ns := s.aead.NonceSize()
	if len(v) < ns+s.aead.Overhead() {
		return nil, fmt.Errorf("%w: %s", ErrSealed, key)
	}
	out, err := s.aead.Open(nil, v[:ns], v[ns:], []byte(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSealed, key)
	}
	return out, nil
}
