package auth

import (
	"strconv"
	"strings"
)

// TokenValidator turns a bearer token into claims. The JWT validator is
// used in production; the dev validator accepts static "test-<id>" tokens
// so local and CI environments can call the API without issuing tokens.
type TokenValidator interface {
	Validate(tokenString string) (*JWTClaims, error)
}

type JWTValidator struct {
	Secret string
}

func (v JWTValidator) Validate(tokenString string) (*JWTClaims, error) {
	return ValidateToken(tokenString, v.Secret)
}

const devTokenPrefix = "test-"

type DevValidator struct{}

func (DevValidator) Validate(tokenString string) (*JWTClaims, error) {
	if !strings.HasPrefix(tokenString, devTokenPrefix) {
		return nil, ErrInvalidToken
	}

	rest := strings.TrimPrefix(tokenString, devTokenPrefix)
	role := "user"
	if adminID, ok := strings.CutPrefix(rest, "admin-"); ok {
		role = "admin"
		rest = adminID
	}

	id, err := strconv.Atoi(rest)
	if err != nil || id <= 0 {
		return nil, ErrInvalidToken
	}

	return &JWTClaims{
		UserID:    id,
		Email:     "test-" + rest + "@example.com",
		Role:      role,
		TokenType: "access",
	}, nil
}

// NewValidator selects the identity provider by configuration so that
// business handlers never branch on the environment.
func NewValidator(mode, jwtSecret string) TokenValidator {
	if mode == "dev" {
		return DevValidator{}
	}
	return JWTValidator{Secret: jwtSecret}
}
