package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is stamped on every token and required on validation.
const Issuer = "potfund-ledger"

var errBadSubject = errors.New("subject is not a member id")

// Claims identify the calling member. The member id travels in the standard
// "sub" claim.
type Claims struct {
	MemberID  uuid.UUID
	ExpiresAt time.Time
}

// GenerateToken signs an HS256 token for memberID. Session issuance lives
// outside this service; this is for operators and tests.
func GenerateToken(memberID uuid.UUID, secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   memberID.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		IssuedAt:  jwt.NewNumericDate(now),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("GenerateToken: %w", err)
	}
	return signed, nil
}

func ValidateToken(tokenString string, secret string) (*Claims, error) {
	var rc jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &rc, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("ValidateToken: %w", err)
	}

	memberID, err := uuid.Parse(rc.Subject)
	if err != nil || memberID == uuid.Nil {
		return nil, fmt.Errorf("ValidateToken: %w", errBadSubject)
	}

	return &Claims{MemberID: memberID, ExpiresAt: rc.ExpiresAt.Time}, nil
}
