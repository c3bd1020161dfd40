package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"citizen-portal/internal/adapters/http/middleware"
	"citizen-portal/internal/domain"
)

const (
	keySetTTL = 15 * time.Minute
	// An unknown kid forces a refetch at most this often.
	minRefreshInterval = 30 * time.Second
)

var errUnknownKey = errors.New("signing key not in key set")

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksResponse struct {
	Keys []jwk `json:"keys"`
}

// keySet holds the identity provider's signing keys by kid.
type keySet struct {
	url    string
	client *http.Client

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	fetchedAt   time.Time
	lastAttempt time.Time
	now         func() time.Time
}

func newKeySet(url string) *keySet {
	return &keySet{
		url:    url,
		client: xray.Client(&http.Client{Timeout: 5 * time.Second}),
		keys:   map[string]*rsa.PublicKey{},
		now:    time.Now,
	}
}

func (s *keySet) lookup(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.RLock()
	key, ok := s.keys[kid]
	fresh := s.now().Sub(s.fetchedAt) < keySetTTL
	throttled := s.now().Sub(s.lastAttempt) < minRefreshInterval
	s.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}
	if throttled {
		if ok {
			return key, nil
		}
		return nil, errUnknownKey
	}
	if err := s.refresh(ctx); err != nil {
		if ok {
			return key, nil
		}
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if key, ok := s.keys[kid]; ok {
		return key, nil
	}
	return nil, errUnknownKey
}

func (s *keySet) refresh(ctx context.Context) error {
	s.mu.Lock()
	s.lastAttempt = s.now()
	s.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch key set: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch key set: status %d", resp.StatusCode)
	}
	var parsed jwksResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode key set: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(parsed.Keys))
	for _, k := range parsed.Keys {
		if k.Kty != "RSA" || k.Kid == "" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := rsaFromJWK(k.N, k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("key set has no usable RSA keys")
	}
	s.mu.Lock()
	s.keys = keys
	s.fetchedAt = s.now()
	s.mu.Unlock()
	return nil
}

func rsaFromJWK(nB64, eB64 string) (*rsa.PublicKey, error) {
	nRaw, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, err
	}
	eRaw, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, err
	}
	var e int
	for _, b := range eRaw {
		e = e<<8 + int(b)
	}
	if len(nRaw) == 0 || e == 0 {
		return nil, errors.New("invalid rsa key parameters")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nRaw), E: e}, nil
}

// CognitoMiddleware turns a Cognito ID token into the request identity.
type CognitoMiddleware struct {
	issuer string
	keys   *keySet
}

func NewCognitoMiddleware(userPoolID, region string) *CognitoMiddleware {
	issuer := "https://cognito-idp." + region + ".amazonaws.com/" + userPoolID
	return NewJWKSMiddleware(issuer, issuer+"/.well-known/jwks.json")
}

// NewJWKSMiddleware validates RS256 ID tokens from issuer against the key
// set served at jwksURL.
func NewJWKSMiddleware(issuer, jwksURL string) *CognitoMiddleware {
	return &CognitoMiddleware{issuer: issuer, keys: newKeySet(jwksURL)}
}

func claimString(claims jwt.MapClaims, names ...string) string {
	for _, name := range names {
		if v, ok := claims[name].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func identityFromClaims(claims jwt.MapClaims) (domain.Identity, error) {
	if use := claimString(claims, "token_use"); use != "id" {
		return domain.Identity{}, fmt.Errorf("token_use %q is not an id token", use)
	}
	sub := claimString(claims, "sub")
	if sub == "" {
		return domain.Identity{}, errors.New("token has no subject")
	}
	return domain.Identity{
		ID:          sub,
		DisplayName: claimString(claims, "name", "cognito:username"),
		Email:       claimString(claims, "email"),
	}, nil
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": msg})
}

func (m *CognitoMiddleware) Handler(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" {
			return unauthorized(c, "missing authorization token")
		}
		raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
		if raw == "" {
			return unauthorized(c, "invalid authorization token")
		}
		ctx := c.Request().Context()
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
			kid, _ := token.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			return m.keys.lookup(ctx, kid)
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer(m.issuer),
			jwt.WithExpirationRequired(),
		)
		if err != nil {
			return unauthorized(c, "invalid token")
		}
		identity, err := identityFromClaims(claims)
		if err != nil {
			return unauthorized(c, "invalid token")
		}
		c.Set(middleware.ContextUserID, identity.ID)
		c.Set(middleware.ContextUserName, identity.DisplayName)
		c.Set(middleware.ContextUserEmail, identity.Email)
		return next(c)
	}
}
