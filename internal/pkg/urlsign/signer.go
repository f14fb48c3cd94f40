package urlsign

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

var (
	ErrInvalidToken = errors.New("invalid download token")
	ErrKeyMismatch  = errors.New("download token does not match key")
)

type Claims struct {
	Key string `json:"key"`
	jwt.StandardClaims
}

// Signer issues and verifies HS256 tokens that grant read access to one blob key.
type Signer struct {
	secret []byte
	now    func() time.Time
}

func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("signing secret is required")
	}
	return &Signer{secret: []byte(secret), now: time.Now}, nil
}

func (s *Signer) Sign(key string, expiry time.Duration) (string, error) {
	now := s.now()
	claims := &Claims{
		Key: key,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(expiry).Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token signature and expiry and that it was issued for key.
func (s *Signer) Verify(tokenStr, key string) error {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !tkn.Valid {
		return ErrInvalidToken
	}

	if claims.Key != key {
		return ErrKeyMismatch
	}

	return nil
}
