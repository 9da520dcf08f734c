// Package token issues and validates access tokens for the API.
package token

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is what the API puts in an access token. EmailVerified is a
// snapshot taken at issue time, not a live flag.
type Claims struct {
	UserID        string
	Email         string
	EmailVerified bool
}

// Issuer signs HS256 access tokens with a shared secret.
type Issuer struct {
	Iss       string
	Secret    []byte
	AccessTTL time.Duration
}

func NewIssuer(iss, secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Issuer{Iss: iss, Secret: []byte(secret), AccessTTL: ttl}
}

// IssueAccess returns a signed token plus its expiry.
func (i *Issuer) IssueAccess(c Claims) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(i.AccessTTL)
	claims := jwtv5.MapClaims{
		"iss":            i.Iss,
		"sub":            c.UserID,
		"iat":            now.Unix(),
		"nbf":            now.Unix(),
		"exp":            exp.Unix(),
		"email":          c.Email,
		"email_verified": c.EmailVerified,
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(i.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse validates signature, issuer, and the exp/nbf window with a small
// clock tolerance, and returns the embedded claims.
func (i *Issuer) Parse(token string) (Claims, error) {
	keyfunc := func(t *jwtv5.Token) (any, error) { return i.Secret, nil }
	tok, err := jwtv5.Parse(token, keyfunc,
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithIssuer(i.Iss),
		jwtv5.WithLeeway(30*time.Second),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	mc, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	sub, _ := mc["sub"].(string)
	if sub == "" {
		return Claims{}, ErrInvalidToken
	}
	email, _ := mc["email"].(string)
	verified, _ := mc["email_verified"].(bool)
	return Claims{UserID: sub, Email: email, EmailVerified: verified}, nil
}
