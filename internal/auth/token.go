package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

// Claims carry the user id in the standard subject claim, which is also
// where the remote auth service puts it.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.StandardClaims
}

// Verifier checks HS256 tokens signed with a shared key.
type Verifier struct {
	key []byte
}

func NewVerifier(key []byte) *Verifier {
	return &Verifier{key: key}
}

func (v *Verifier) Verify(tokenString string) (Claims, error) {
	if tokenString == "" {
		return Claims{}, ErrInvalidToken
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.key, nil
	})
	if err != nil {
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}

	return claims, nil
}

func signToken(key []byte, userId, email string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: email,
		StandardClaims: jwt.StandardClaims{
			Subject:   userId,
			IssuedAt:  now.Unix(),
			ExpiresAt: exp.Unix(),
		},
	})

	signed, err := token.SignedString(key)
	return signed, exp, err
}
