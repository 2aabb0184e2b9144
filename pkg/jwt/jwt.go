package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer 이 서버와 채팅 브리지가 공유하는 발급자
const Issuer = "hadesstar-bot"

// 시계 오차 허용
const leeway = 30 * time.Second

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims 채팅 브리지가 플레이어 대신 발급하는 토큰
type Claims struct {
	PlayerID string `json:"playerId"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	secret   []byte
	duration time.Duration
	parser   *jwt.Parser
	now      func() time.Time
}

func NewJWTManager(secretKey string, duration time.Duration) *JWTManager {
	m := &JWTManager{
		secret:   []byte(secretKey),
		duration: duration,
		now:      time.Now,
	}
	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	)
	return m
}

// Generate 플레이어 토큰 발급 (sub 와 playerId 는 같다)
func (m *JWTManager) Generate(playerID string) (string, error) {
	if playerID == "" {
		return "", ErrInvalidToken
	}
	now := m.now()
	claims := Claims{
		PlayerID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify 서명, 발급자, 유효 기간을 확인한다. 만료는 ErrExpiredToken 으로 구분.
func (m *JWTManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := m.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil:
		return nil, ErrInvalidToken
	}

	if claims.PlayerID == "" || (claims.Subject != "" && claims.Subject != claims.PlayerID) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
