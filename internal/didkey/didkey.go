// Package didkey derives did:key identifiers from ed25519 keys.
package didkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multicodec"
	"github.com/multiformats/go-varint"
)

const Prefix = "did:key:"

var ErrInvalidDID = errors.New("invalid did:key")

func FromPublicKey(pub ed25519.PublicKey) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("%w: public key has %d bytes", ErrInvalidDID, len(pub))
	}

	buf := append(varint.ToUvarint(uint64(multicodec.Ed25519Pub)), pub...)
	encoded, err := multibase.Encode(multibase.Base58BTC, buf)
	if err != nil {
		return "", fmt.Errorf("encode did:key: %w", err)
	}

	return Prefix + encoded, nil
}

func PublicKey(did string) (ed25519.PublicKey, error) {
	encoded, ok := strings.CutPrefix(did, Prefix)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDID, did)
	}

	_, data, err := multibase.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDID, err)
	}

	code, n, err := varint.FromUvarint(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDID, err)
	}
	if multicodec.Code(code) != multicodec.Ed25519Pub {
		return nil, fmt.Errorf("%w: unsupported key codec %s", ErrInvalidDID, multicodec.Code(code))
	}
	if len(data[n:]) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key has %d bytes", ErrInvalidDID, len(data[n:]))
	}

	return ed25519.PublicKey(data[n:]), nil
}

// Generate creates a fresh ed25519 key and its did:key.
func Generate() (string, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", nil, fmt.Errorf("generate ed25519 key: %w", err)
	}

	did, err := FromPublicKey(pub)
	if err != nil {
		return "", nil, err
	}

	return did, priv, nil
}

// FromPrivateKey returns the did:key of the public half of priv.
func FromPrivateKey(priv ed25519.PrivateKey) (string, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("%w: private key has %d bytes", ErrInvalidDID, len(priv))
	}

	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return "", fmt.Errorf("%w: unexpected public key type", ErrInvalidDID)
	}

	return FromPublicKey(pub)
}
