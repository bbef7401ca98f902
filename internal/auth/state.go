package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StateTTL bounds how long a browser may take to come back from the provider.
const StateTTL = 5 * time.Minute

// StateSigner produces the OAuth state parameter. The state carries the
// device's temp login token through the provider redirect so the browser
// callback can hand it back without trusting the query string.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type StateClaims struct {
	TempLoginToken string `json:"tlt"`
	jwt.RegisteredClaims
}

func NewStateSigner(secret string) *StateSigner {
	return &StateSigner{
		secret: []byte(secret),
		ttl:    StateTTL,
		now:    time.Now,
	}
}

func (s *StateSigner) Sign(tempLoginToken string) (string, error) {
	now := s.now()
	claims := StateClaims{
		TempLoginToken: tempLoginToken,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing state: %w", err)
	}
	return signed, nil
}

// Verify returns the temp login token carried by state.
func (s *StateSigner) Verify(state string) (string, error) {
	token, err := jwt.ParseWithClaims(state, &StateClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	claims, ok := token.Claims.(*StateClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidState
	}
	return claims.TempLoginToken, nil
}
