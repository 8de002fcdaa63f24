package jwtauth

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"
	"net/http"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// cachedKey is a fetched JWK's modulus/exponent, decoded to big.Int so the
// PEM construction in pem.go doesn't re-parse byte slices on every verify.
type cachedKey struct {
	kid string
	n   *big.Int
	e   int
}

const userAgent = "blokus-server-jwtauth/1"

// fetchJWKS performs the HTTP GET against jwksURL, hands the body to
// lestrrat-go/jwx to decode the JWK set, and pulls each RSA key's raw (n, e)
// out of it. Keys that aren't RSA, or have no kid, are skipped rather than
// treated as a fetch error. jwx is used only for this JSON/base64url
// decoding step — the PKCS#1 PEM that ultimately verifies the signature is
// built by hand in pem.go, not by jwx's own key.Raw conversion.
func fetchJWKS(ctx context.Context, client *http.Client, jwksURL string) (map[string]*cachedKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build jwks request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch jwks: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read jwks body: %w", err)
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse jwks body: %w", err)
	}

	keys := make(map[string]*cachedKey, set.Len())
	for i := 0; i < set.Len(); i++ {
		key, ok := set.Key(i)
		if !ok {
			continue
		}
		if key.KeyType() != jwa.RSA || key.KeyID() == "" {
			continue
		}
		rsaKey, ok := key.(jwk.RSAPublicKey)
		if !ok {
			continue
		}
		n, e, err := rawModulusExponent(rsaKey)
		if err != nil {
			continue
		}
		keys[key.KeyID()] = &cachedKey{kid: key.KeyID(), n: n, e: e}
	}
	return keys, nil
}

// rawModulusExponent pulls the raw big-endian modulus and exponent bytes out
// of a parsed JWK, independent of jwx's own rsa.PublicKey assembly.
func rawModulusExponent(rsaKey jwk.RSAPublicKey) (*big.Int, int, error) {
	nBytes := rsaKey.N()
	eBytes := rsaKey.E()
	if len(nBytes) == 0 || len(eBytes) == 0 {
		return nil, 0, fmt.Errorf("rsa key missing n or e")
	}

	n := new(big.Int).SetBytes(nBytes)

	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	if e == 0 {
		return nil, 0, fmt.Errorf("zero exponent")
	}

	return n, e, nil
}

// decodeModulusExponent decodes a JWK's base64url "n" and "e" members.
func decodeModulusExponent(nEnc, eEnc string) (*big.Int, int, error) {
	nBytes, nErr := base64.RawURLEncoding.DecodeString(nEnc)
	eBytes, eErr := base64.RawURLEncoding.DecodeString(eEnc)
	if nErr != nil || eErr != nil || len(nBytes) == 0 || len(eBytes) == 0 {
		return nil, 0, fmt.Errorf("invalid base64url n or e")
	}
	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	return new(big.Int).SetBytes(nBytes), e, nil
}
