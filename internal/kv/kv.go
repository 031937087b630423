// Package kv provides the durable key-value storage behind quiz answers and
// journey responses.
//
// Keys are NFC-normalized before they reach a backend, so visually identical
// answer IDs typed on different platforms map to the same record. Values are
// stored as RFC 8785 canonical JSON.
package kv

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"golang.org/x/text/unicode/norm"
)

// Store is a durable string-keyed byte store.
//
// Get returns ok=false for missing keys; a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys returns the keys starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// NormalizeKey returns the NFC form of key.
func NormalizeKey(key string) string {
	return norm.NFC.String(key)
}

// Encode marshals v to canonical JSON.
func Encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return Canonicalize(raw)
}

// Canonicalize rewrites a JSON document into its canonical form.
func Canonicalize(raw []byte) ([]byte, error) {
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return out, nil
}
