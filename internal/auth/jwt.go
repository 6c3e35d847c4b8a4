package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carried by an access token. CommunityID scopes the connection
// to its tenant room on the gateway.
type Claims struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	CommunityID string    `json:"community_id"`
	jwt.RegisteredClaims
}

// JWTService verifies bearer credentials handed to this subsystem and
// mints tokens for the seed path and tests. Token issuance to end users
// lives in the surrounding platform.
type JWTService struct {
	secret      []byte
	expiryHours int
}

// NewJWTService creates a new JWT service
func NewJWTService(secret string, expiryHours int) *JWTService {
	return &JWTService{
		secret:      []byte(secret),
		expiryHours: expiryHours,
	}
}

// GenerateToken creates a signed token for a user
func (s *JWTService) GenerateToken(userID uuid.UUID, email, communityID string) (string, error) {
	if communityID == "" {
		communityID = "default"
	}

	now := time.Now()
	claims := Claims{
		UserID:      userID,
		Email:       email,
		CommunityID: communityID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.expiryHours) * time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// ValidateToken parses and verifies a token, returning its claims
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if claims.CommunityID == "" {
		claims.CommunityID = "default"
	}

	return claims, nil
}
