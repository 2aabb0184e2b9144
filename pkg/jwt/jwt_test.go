package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims Claims) string {
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims(playerID string) Claims {
	now := time.Now()
	return Claims{
		PlayerID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)

	token, err := m.Generate("alice")
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.PlayerID)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, Issuer, claims.Issuer)
}

func TestJWTManager_Leeway(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	token, err := m.Generate("alice")
	require.NoError(t, err)

	// 만료 직후는 허용 범위 안
	m.now = func() time.Time { return time.Now().Add(time.Hour + 10*time.Second) }
	_, err = m.Verify(token)
	assert.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(time.Hour + 2*time.Minute) }
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTManager_Rejects(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)

	_, err := m.Generate("")
	assert.ErrorIs(t, err, ErrInvalidToken)

	otherIssuer := validClaims("alice")
	otherIssuer.Issuer = "someone-else"

	mismatched := validClaims("alice")
	mismatched.Subject = "bob"

	tests := []struct {
		name  string
		token func() string
		want  error
	}{
		{"다른 키로 서명", func() string {
			token, err := NewJWTManager("other", time.Hour).Generate("alice")
			require.NoError(t, err)
			return token
		}, ErrInvalidToken},
		{"만료", func() string {
			token, err := NewJWTManager("secret", -time.Hour).Generate("alice")
			require.NoError(t, err)
			return token
		}, ErrExpiredToken},
		{"HS256 이외 알고리즘", func() string {
			return sign(t, jwt.SigningMethodHS512, []byte("secret"), validClaims("alice"))
		}, ErrInvalidToken},
		{"none 알고리즘", func() string {
			return sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims("alice"))
		}, ErrInvalidToken},
		{"발급자 불일치", func() string {
			return sign(t, jwt.SigningMethodHS256, []byte("secret"), otherIssuer)
		}, ErrInvalidToken},
		{"sub 와 playerId 불일치", func() string {
			return sign(t, jwt.SigningMethodHS256, []byte("secret"), mismatched)
		}, ErrInvalidToken},
		{"playerId 없음", func() string {
			return sign(t, jwt.SigningMethodHS256, []byte("secret"), validClaims(""))
		}, ErrInvalidToken},
		{"잘못된 형식", func() string { return "not-a-token" }, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(tt.token())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
