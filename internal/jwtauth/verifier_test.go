package jwtauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testKid = "test-key-1"

// exponentBytes returns e's minimal big-endian byte representation, the
// same form a JWKS "e" field decodes to.
func exponentBytes(e int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(e))
	i := 0
	for i < len(buf)-1 && buf[i] == 0 {
		i++
	}
	return buf[i:]
}

func newTestJWKSServer(t *testing.T, pub *rsa.PublicKey) *httptest.Server {
	t.Helper()

	nEnc := base64.RawURLEncoding.EncodeToString(pub.N.Bytes())
	eEnc := base64.RawURLEncoding.EncodeToString(exponentBytes(pub.E))

	body := fmt.Sprintf(`{"keys":[{"kid":%q,"kty":"RSA","use":"sig","alg":"RS256","n":%q,"e":%q}]}`,
		testKid, nEnc, eEnc)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
}

func signTestToken(t *testing.T, priv *rsa.PrivateKey, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKid
	signed, err := token.SignedString(priv)
	require.NoError(t, err)
	return signed
}

func TestVerifierAcceptsValidToken(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	server := newTestJWKSServer(t, &priv.PublicKey)
	defer server.Close()

	ctx := context.Background()
	v, err := NewVerifier(ctx, Config{
		JWKSURL:   server.URL,
		Issuer:    "https://issuer.example.com",
		Audiences: []string{"blokus-client"},
	})
	require.NoError(t, err)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			Issuer:    "https://issuer.example.com",
			Audience:  jwt.ClaimStrings{"blokus-client"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		PreferredUsername: "alice",
	}
	tokenStr := signTestToken(t, priv, claims)

	got, err := v.Verify(ctx, tokenStr)
	require.NoError(t, err)
	require.Equal(t, "user-123", got.Subject)
	require.Equal(t, "alice", got.PreferredUsername)
}

func TestVerifierRejectsUnknownKid(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	server := newTestJWKSServer(t, &priv.PublicKey)
	defer server.Close()

	ctx := context.Background()
	v, err := NewVerifier(ctx, Config{JWKSURL: server.URL, Issuer: "iss"})
	require.NoError(t, err)

	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "iss"}}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "does-not-exist"
	signed, err := token.SignedString(priv)
	require.NoError(t, err)

	_, err = v.Verify(ctx, signed)
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestVerifierRejectsIssuerMismatch(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	server := newTestJWKSServer(t, &priv.PublicKey)
	defer server.Close()

	ctx := context.Background()
	v, err := NewVerifier(ctx, Config{JWKSURL: server.URL, Issuer: "https://expected.example.com"})
	require.NoError(t, err)

	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "https://wrong.example.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	tokenStr := signTestToken(t, priv, claims)

	_, err = v.Verify(ctx, tokenStr)
	require.ErrorIs(t, err, ErrIssuerMismatch)
}

func TestVerifierRejectsExpiredBeyondGrace(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	server := newTestJWKSServer(t, &priv.PublicKey)
	defer server.Close()

	ctx := context.Background()
	v, err := NewVerifier(ctx, Config{
		JWKSURL:     server.URL,
		Issuer:      "iss",
		GracePeriod: time.Second,
	})
	require.NoError(t, err)

	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "iss",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}}
	tokenStr := signTestToken(t, priv, claims)

	_, err = v.Verify(ctx, tokenStr)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifierAcceptsExpiredWithinGrace(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	server := newTestJWKSServer(t, &priv.PublicKey)
	defer server.Close()

	ctx := context.Background()
	v, err := NewVerifier(ctx, Config{
		JWKSURL:     server.URL,
		Issuer:      "iss",
		GracePeriod: time.Minute,
	})
	require.NoError(t, err)

	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "iss",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-5 * time.Second)),
	}}
	tokenStr := signTestToken(t, priv, claims)

	_, err = v.Verify(ctx, tokenStr)
	require.NoError(t, err)
}

func TestVerifierAudienceSetMembership(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	server := newTestJWKSServer(t, &priv.PublicKey)
	defer server.Close()

	ctx := context.Background()
	v, err := NewVerifier(ctx, Config{
		JWKSURL:   server.URL,
		Issuer:    "iss",
		Audiences: []string{"a", "b"},
	})
	require.NoError(t, err)

	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "iss",
		Audience:  jwt.ClaimStrings{"x", "b"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	tokenStr := signTestToken(t, priv, claims)

	_, err = v.Verify(ctx, tokenStr)
	require.NoError(t, err)

	claimsNoMatch := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "iss",
		Audience:  jwt.ClaimStrings{"x", "y"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	tokenStr2 := signTestToken(t, priv, claimsNoMatch)
	_, err = v.Verify(ctx, tokenStr2)
	require.ErrorIs(t, err, ErrAudienceMismatch)
}

func TestDecodeModulusExponentRoundTrip(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	nEnc := base64.RawURLEncoding.EncodeToString(priv.PublicKey.N.Bytes())
	eEnc := base64.RawURLEncoding.EncodeToString(exponentBytes(priv.PublicKey.E))

	n, e, err := decodeModulusExponent(nEnc, eEnc)
	require.NoError(t, err)
	require.Equal(t, priv.PublicKey.E, e)
	require.Equal(t, 0, n.Cmp(priv.PublicKey.N))
}

func TestPublicKeyFromJWKMatchesOriginal(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	key := &cachedKey{kid: testKid, n: priv.PublicKey.N, e: priv.PublicKey.E}
	rebuilt, err := publicKeyFromJWK(key)
	require.NoError(t, err)

	require.Equal(t, priv.PublicKey.E, rebuilt.E)
	require.Equal(t, 0, priv.PublicKey.N.Cmp(rebuilt.N))
}
