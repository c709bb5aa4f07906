// Package sharetoken issues and verifies the signed, time-limited tokens that
// grant read access to one owner's documents.
package sharetoken

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// Scope is the only scope a share token may carry.
	Scope = "share"
	// TokenType distinguishes share tokens from owner session tokens signed elsewhere.
	TokenType = "vault_share"
)

// ErrInvalid covers every reason a token is rejected: bad signature, wrong
// algorithm, expiry, or claims that are not a share grant.
var ErrInvalid = errors.New("invalid share token")

// Claims is the share token payload. ID (jti) is the share session ID.
type Claims struct {
	Scope       string   `json:"scope"`
	Type        string   `json:"typ"`
	DocumentIDs []string `json:"document_ids,omitempty"`
	jwt.RegisteredClaims
}

// OwnerID returns the subject.
func (c *Claims) OwnerID() string { return c.Subject }

// Allows reports whether the token covers documentID. A token without a
// document list covers every document of the owner.
func (c *Claims) Allows(documentID string) bool {
	if len(c.DocumentIDs) == 0 {
		return true
	}
	for _, id := range c.DocumentIDs {
		if id == documentID {
			return true
		}
	}
	return false
}

// Codec signs and verifies share tokens with one HMAC secret.
type Codec struct {
	secret []byte
}

// NewCodec returns a Codec for secret.
func NewCodec(secret string) (*Codec, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("share token secret must be at least 16 bytes")
	}
	return &Codec{secret: []byte(secret)}, nil
}

// Issue signs a share token for ownerID bound to sessionID.
func (c *Codec) Issue(ownerID, sessionID string, documentIDs []string, issuedAt, expiresAt time.Time) (string, error) {
	claims := Claims{
		Scope:       Scope,
		Type:        TokenType,
		DocumentIDs: documentIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign share token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry at now and the share claims.
// Any failure is reported as ErrInvalid.
func (c *Codec) Verify(token string, now time.Time) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalid
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if claims.Scope != Scope || claims.Type != TokenType || claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: not a share grant", ErrInvalid)
	}
	return claims, nil
}

// IsExpired reports whether a Verify error was caused only by the expiry claim.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}

// Fingerprint is the value stored server side in place of the token itself.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
