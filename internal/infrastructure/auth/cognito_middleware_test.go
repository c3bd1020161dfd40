package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citizen-portal/internal/adapters/http/middleware"
	"citizen-portal/internal/domain"
)

const (
	testKid    = "test-key"
	testIssuer = "https://cognito-idp.ap-south-1.amazonaws.com/ap-south-1_portal"
)

func jwksServer(t *testing.T, key *rsa.PublicKey) *httptest.Server {
	t.Helper()
	srv, _ := countingJWKSServer(t, key)
	return srv
}

func countingJWKSServer(t *testing.T, key *rsa.PublicKey) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	body, err := json.Marshal(jwksResponse{Keys: []jwk{{
		Kty: "RSA",
		Kid: testKid,
		Use: "sig",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}}})
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKid
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func serve(mw *CognitoMiddleware, authorization string) (*httptest.ResponseRecorder, domain.Identity) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/accounts/me", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	var identity domain.Identity
	_ = mw.Handler(func(c echo.Context) error {
		identity = middleware.IdentityFrom(c)
		return c.NoContent(http.StatusOK)
	})(c)
	return rec, identity
}

func TestCognitoMiddleware_AcceptsValidToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := jwksServer(t, &key.PublicKey)
	mw := NewJWKSMiddleware(testIssuer, srv.URL)

	token := signToken(t, key, jwt.MapClaims{
		"sub":       "sub-123",
		"iss":       testIssuer,
		"exp":       time.Now().Add(time.Hour).Unix(),
		"token_use": "id",
		"name":      "Priya Sharma",
		"email":     "priya@example.com",
	})
	rec, identity := serve(mw, "Bearer "+token)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.Identity{ID: "sub-123", DisplayName: "Priya Sharma", Email: "priya@example.com"}, identity)
}

func TestCognitoMiddleware_Rejects(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := jwksServer(t, &key.PublicKey)
	mw := NewJWKSMiddleware(testIssuer, srv.URL)
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name          string
		authorization string
	}{
		{"missing header", ""},
		{"empty bearer", "Bearer "},
		{"wrong signer", "Bearer " + signToken(t, other, jwt.MapClaims{"sub": "x", "iss": testIssuer, "exp": exp, "token_use": "id"})},
		{"wrong issuer", "Bearer " + signToken(t, key, jwt.MapClaims{"sub": "x", "iss": "https://evil.example", "exp": exp, "token_use": "id"})},
		{"expired", "Bearer " + signToken(t, key, jwt.MapClaims{"sub": "x", "iss": testIssuer, "exp": time.Now().Add(-time.Hour).Unix(), "token_use": "id"})},
		{"no expiry", "Bearer " + signToken(t, key, jwt.MapClaims{"sub": "x", "iss": testIssuer, "token_use": "id"})},
		{"no subject", "Bearer " + signToken(t, key, jwt.MapClaims{"iss": testIssuer, "exp": exp, "token_use": "id"})},
		{"access token", "Bearer " + signToken(t, key, jwt.MapClaims{"sub": "x", "iss": testIssuer, "exp": exp, "token_use": "access"})},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, identity := serve(mw, tc.authorization)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Empty(t, identity.ID)
		})
	}
}

func TestRSAFromJWK_RejectsZeroExponent(t *testing.T) {
	_, err := rsaFromJWK(base64.RawURLEncoding.EncodeToString([]byte{1, 2, 3}), "")
	assert.Error(t, err)
}

func TestKeySet_UnknownKidRefetchIsThrottled(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv, hits := countingJWKSServer(t, &key.PublicKey)
	ks := newKeySet(srv.URL)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ks.now = func() time.Time { return now }
	ctx := context.Background()

	_, err = ks.lookup(ctx, testKid)
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load())

	_, err = ks.lookup(ctx, "rotated")
	assert.ErrorIs(t, err, errUnknownKey)
	_, err = ks.lookup(ctx, "rotated")
	assert.ErrorIs(t, err, errUnknownKey)
	assert.EqualValues(t, 1, hits.Load())

	now = now.Add(minRefreshInterval)
	_, err = ks.lookup(ctx, "rotated")
	assert.ErrorIs(t, err, errUnknownKey)
	assert.EqualValues(t, 2, hits.Load())

	_, err = ks.lookup(ctx, testKid)
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())
}
