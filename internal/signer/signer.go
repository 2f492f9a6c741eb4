// Package signer makes recorded queries safe to round-trip through the browser.
//
// A signed query is an HS256 JWT whose claims carry the raw statement and its
// bind parameters. The HMAC key is derived from the process secret and a salt
// that also serves as the token audience, so tokens minted for other purposes
// with the same secret never verify here. Only read-only SELECT statements are
// ever signed or accepted.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sqlpanel/internal/sqlfmt"
)

// DefaultSalt separates query tokens from other signed values in the host.
const DefaultSalt = "sqla-query"

// ErrInvalidToken is returned by Verify for any token the signer refuses.
var ErrInvalidToken = errors.New("invalid signed query")

type queryClaims struct {
	Statement string      `json:"stmt"`
	Params    []wireParam `json:"params"`
	jwt.RegisteredClaims
}

// Signer signs and verifies (statement, parameters) pairs.
type Signer struct {
	key  []byte
	salt string
	now  func() time.Time
}

// New creates a Signer from the process secret. An empty salt selects
// DefaultSalt.
func New(secret, salt string) (*Signer, error) {
	if secret == "" {
		return nil, fmt.Errorf("signer: secret key is required")
	}
	if salt == "" {
		salt = DefaultSalt
	}
	return &Signer{key: deriveKey(secret, salt), salt: salt, now: time.Now}, nil
}

// deriveKey binds the signing key to the salt.
func deriveKey(secret, salt string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte("sqlpanel.signer:" + salt))
	return mac.Sum(nil)
}

// Sign returns a token for statement and params. The second result is false
// when the statement is not a SELECT or a parameter cannot be serialized; the
// caller should then treat the query as not re-executable.
func (s *Signer) Sign(statement string, params []any) (string, bool) {
	if !sqlfmt.IsSelect(statement) {
		return "", false
	}
	wire, err := encodeParams(params)
	if err != nil {
		return "", false
	}
	token, err := s.signClaims(statement, wire)
	if err != nil {
		return "", false
	}
	return token, true
}

func (s *Signer) signClaims(statement string, wire []wireParam) (string, error) {
	claims := queryClaims{
		Statement: statement,
		Params:    wire,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience: jwt.ClaimStrings{s.salt},
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Verify decodes token and returns the signed statement and parameters. Any
// failure, including a correctly signed statement that is not a SELECT, wraps
// ErrInvalidToken.
func (s *Signer) Verify(token string) (string, []any, error) {
	if token == "" {
		return "", nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	var claims queryClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(s.salt),
	)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !sqlfmt.IsSelect(claims.Statement) {
		return "", nil, fmt.Errorf("%w: statement is not a SELECT", ErrInvalidToken)
	}

	params, err := decodeParams(claims.Params)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims.Statement, params, nil
}
