package jwtauth

import (
	"crypto/rsa"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"math/big"
)

// pkcs1PublicKey mirrors the two-INTEGER ASN.1 SEQUENCE that makes up a
// PKCS#1 RSA public key: { modulus, publicExponent }.
type pkcs1PublicKey struct {
	N *big.Int
	E int
}

// publicKeyFromJWK rebuilds an rsa.PublicKey from a JWK's decoded modulus
// and exponent by hand-assembling the PKCS#1 DER structure and re-parsing
// it through the standard PEM/ASN.1 path, rather than constructing an
// rsa.PublicKey struct literal directly. This keeps the wire-level
// representation a real "-----BEGIN RSA PUBLIC KEY-----" block, matching
// what a JWKS-consuming client would produce if it wrote the key to disk.
func publicKeyFromJWK(k *cachedKey) (*rsa.PublicKey, error) {
	der, err := asn1.Marshal(pkcs1PublicKey{N: k.n, E: k.e})
	if err != nil {
		return nil, fmt.Errorf("marshal pkcs1 public key: %w", err)
	}

	block := &pem.Block{
		Type:  "RSA PUBLIC KEY",
		Bytes: der,
	}
	encoded := pem.EncodeToMemory(block)

	decoded, _ := pem.Decode(encoded)
	if decoded == nil {
		return nil, fmt.Errorf("decode constructed pem block")
	}

	var parsed pkcs1PublicKey
	if _, err := asn1.Unmarshal(decoded.Bytes, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal pkcs1 public key: %w", err)
	}

	return &rsa.PublicKey{N: parsed.N, E: parsed.E}, nil
}
