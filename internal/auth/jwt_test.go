package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestGenerateAndValidateToken(t *testing.T) {
	memberID := uuid.New()

	token, err := GenerateToken(memberID, testSecret, time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, memberID, claims.MemberID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestValidateToken(t *testing.T) {
	memberID := uuid.New()
	hour := jwt.NewNumericDate(time.Now().Add(time.Hour))

	validToken, err := GenerateToken(memberID, testSecret, time.Hour)
	require.NoError(t, err)
	expiredToken, err := GenerateToken(memberID, testSecret, -time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name      string
		token     string
		secret    string
		wantErrIs error
	}{
		{name: "expired", token: expiredToken, secret: testSecret, wantErrIs: jwt.ErrTokenExpired},
		{name: "wrong secret", token: validToken, secret: "wrong-secret", wantErrIs: jwt.ErrTokenSignatureInvalid},
		{
			name: "foreign issuer",
			token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
				Issuer: "someone-else", Subject: memberID.String(), ExpiresAt: hour,
			}),
			secret:    testSecret,
			wantErrIs: jwt.ErrTokenInvalidIssuer,
		},
		{
			name: "no expiry",
			token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
				Issuer: Issuer, Subject: memberID.String(),
			}),
			secret:    testSecret,
			wantErrIs: jwt.ErrTokenRequiredClaimMissing,
		},
		{
			name: "subject is not a uuid",
			token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
				Issuer: Issuer, Subject: "alice", ExpiresAt: hour,
			}),
			secret:    testSecret,
			wantErrIs: errBadSubject,
		},
		{
			name: "empty subject",
			token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
				Issuer: Issuer, ExpiresAt: hour,
			}),
			secret:    testSecret,
			wantErrIs: errBadSubject,
		},
		{
			name: "HS512 not accepted",
			token: sign(t, jwt.SigningMethodHS512, []byte(testSecret), jwt.RegisteredClaims{
				Issuer: Issuer, Subject: memberID.String(), ExpiresAt: hour,
			}),
			secret:    testSecret,
			wantErrIs: jwt.ErrTokenSignatureInvalid,
		},
		{name: "malformed", token: "not.a.valid.jwt", secret: testSecret, wantErrIs: jwt.ErrTokenMalformed},
		{name: "empty", token: "", secret: testSecret, wantErrIs: jwt.ErrTokenMalformed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateToken(tc.token, tc.secret)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErrIs)
		})
	}
}

func TestValidateToken_RejectsUnsigned(t *testing.T) {
	token := sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	_, err := ValidateToken(token, testSecret)
	require.Error(t, err)
}

func TestActor(t *testing.T) {
	assert.Empty(t, Actor(context.Background()))

	id := uuid.New()
	assert.Equal(t, "member:"+id.String(), Actor(ContextWithMemberID(context.Background(), id)))
}
