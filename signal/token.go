package signal

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL bounds how long an issued access token stays valid.
const DefaultTokenTTL = 6 * time.Hour

// RoomGrant is the permission set embedded in an access token.
type RoomGrant struct {
	Room         string `json:"room,omitempty"`
	RoomJoin     bool   `json:"roomJoin,omitempty"`
	CanPublish   bool   `json:"canPublish,omitempty"`
	CanSubscribe bool   `json:"canSubscribe,omitempty"`
}

// tokenClaims is the signed claim set: standard registered claims plus the
// room grant.
type tokenClaims struct {
	jwt.RegisteredClaims
	Video RoomGrant `json:"video"`
}

// AccessToken builds the HS256 token a client presents when dialing the
// signaling endpoint. The API key becomes the issuer and the identity the
// subject, matching the managed media service's token scheme.
type AccessToken struct {
	apiKey   string
	secret   string
	identity string
	ttl      time.Duration
	grant    RoomGrant
}

// NewAccessToken creates a token builder for the given credentials.
func NewAccessToken(apiKey, secret string) *AccessToken {
	return &AccessToken{
		apiKey: apiKey,
		secret: secret,
		ttl:    DefaultTokenTTL,
		grant:  RoomGrant{CanPublish: true, CanSubscribe: true},
	}
}

// SetIdentity names the participant the token authenticates.
func (t *AccessToken) SetIdentity(identity string) *AccessToken {
	t.identity = identity
	return t
}

// SetRoom grants entry to the named room.
func (t *AccessToken) SetRoom(room string) *AccessToken {
	t.grant.Room = room
	t.grant.RoomJoin = true
	return t
}

// SetTTL overrides the token lifetime. Non-positive values keep the
// default.
func (t *AccessToken) SetTTL(ttl time.Duration) *AccessToken {
	if ttl > 0 {
		t.ttl = ttl
	}
	return t
}

// SetCanPublish controls the publish permission.
func (t *AccessToken) SetCanPublish(allowed bool) *AccessToken {
	t.grant.CanPublish = allowed
	return t
}

// SetCanSubscribe controls the subscribe permission.
func (t *AccessToken) SetCanSubscribe(allowed bool) *AccessToken {
	t.grant.CanSubscribe = allowed
	return t
}

// ToJWT signs and serializes the token.
func (t *AccessToken) ToJWT() (string, error) {
	if t.apiKey == "" || t.secret == "" {
		return "", ErrMissingCredentials
	}

	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.apiKey,
			Subject:   t.identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Video: t.grant,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(t.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a token against the secret, returning
// the identity and grant it carries. Used by service-side handlers and
// tests.
func VerifyToken(token, secret string) (string, RoomGrant, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", RoomGrant{}, fmt.Errorf("failed to verify access token: %w", err)
	}
	if !parsed.Valid {
		return "", RoomGrant{}, fmt.Errorf("access token is not valid")
	}
	return claims.Subject, claims.Video, nil
}
