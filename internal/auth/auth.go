package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/snditnz/verbumcare-demo-sub002/pkg/logger"
)

// Staff roles
const (
	RoleDoctor = "doctor"
	RoleNurse  = "nurse"
)

// Staff is an authenticated staff member
type Staff struct {
	ID          string `json:"staff_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// IsDoctor reports whether the staff member holds the doctor role
func (s Staff) IsDoctor() bool {
	return s.Role == RoleDoctor
}

// Claims are the JWT claims carried by a staff token
type Claims struct {
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and verifies staff bearer tokens
type Service struct {
	signingKey []byte
	tokenTTL   time.Duration
	logger     *logger.Logger
}

// NewService creates a new auth service
func NewService(signingKey string, tokenTTL time.Duration, log *logger.Logger) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		tokenTTL:   tokenTTL,
		logger:     log.Named("auth"),
	}
}

// IssueToken creates a signed token for a staff member
func (s *Service) IssueToken(staff Staff) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		DisplayName: staff.DisplayName,
		Role:        staff.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   staff.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a token, returning the staff member
func (s *Service) VerifyToken(tokenString string) (*Staff, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token is missing a subject")
	}

	return &Staff{
		ID:          claims.Subject,
		DisplayName: claims.DisplayName,
		Role:        claims.Role,
	}, nil
}
