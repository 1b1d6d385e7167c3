package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify_RoundTrip(t *testing.T) {
	v, err := NewVerifier(VerifierConfig{Secret: "s3cret", Issuer: "idp", Audience: "tracker"})
	require.NoError(t, err)

	tok, err := Issuer{Secret: "s3cret", Issuer: "idp", Audience: "tracker"}.Issue(42, time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestVerify_Rejects(t *testing.T) {
	v, err := NewVerifier(VerifierConfig{Secret: "s3cret", Issuer: "idp", Audience: "tracker"})
	require.NoError(t, err)

	wrongSecret, _ := Issuer{Secret: "other", Issuer: "idp", Audience: "tracker"}.Issue(1, time.Hour)
	wrongIssuer, _ := Issuer{Secret: "s3cret", Issuer: "evil", Audience: "tracker"}.Issue(1, time.Hour)
	wrongAudience, _ := Issuer{Secret: "s3cret", Issuer: "idp", Audience: "billing"}.Issue(1, time.Hour)
	expired, _ := Issuer{Secret: "s3cret", Issuer: "idp", Audience: "tracker"}.Issue(1, -time.Minute)
	badSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "admin", Issuer: "idp", Audience: jwt.ClaimStrings{"tracker"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("s3cret"))
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "1", Issuer: "idp", Audience: jwt.ClaimStrings{"tracker"},
	}).SignedString([]byte("s3cret"))

	for name, tok := range map[string]string{
		"garbage":        "not.a.jwt",
		"wrong secret":   wrongSecret,
		"wrong issuer":   wrongIssuer,
		"wrong audience": wrongAudience,
		"expired":        expired,
		"bad subject":    badSubject,
		"no expiry":      noExpiry,
	} {
		_, err := v.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}

func TestVerify_ECDSAPublicKey(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "idp.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	v, err := NewVerifier(VerifierConfig{PublicKeyPath: path})
	require.NoError(t, err)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.RegisteredClaims{
		Subject:   strconv.Itoa(7),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(priv)
	require.NoError(t, err)

	id, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	// HS256 must not be accepted when only a public key is configured.
	hs, _ := Issuer{Secret: "anything"}.Issue(7, time.Hour)
	_, err = v.Verify(hs)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewVerifier_NoKey(t *testing.T) {
	_, err := NewVerifier(VerifierConfig{})
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", tok)

	tok, ok = BearerToken("bearer   xyz ")
	assert.True(t, ok)
	assert.Equal(t, "xyz", tok)

	for _, h := range []string{"", "Basic Zm9vOmJhcg==", "Bearer ", "Bearer"} {
		_, ok := BearerToken(h)
		assert.False(t, ok, h)
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "hunter3"))
}
