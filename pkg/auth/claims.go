package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var (
	ErrMissingUser = errors.New("token has no user id")
	ErrTokenRole   = errors.New("token role is not allowed")
)

// AccessTokenPayload is what a caller supplies when minting.
type AccessTokenPayload struct {
	UserID string
	Email  string
	Role   enums.ActorRole
	JTI    string
}

// AccessTokenClaims is the bearer token presented to the API. Identity is
// issued upstream; only the user, email and role are read here.
type AccessTokenClaims struct {
	UserID string          `json:"user_id"`
	Email  string          `json:"email,omitempty"`
	Role   enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after the registered claims pass, during parsing. Guests
// never hold tokens.
func (c AccessTokenClaims) Validate() error {
	if c.UserID == "" {
		return ErrMissingUser
	}
	return checkRole(c.Role)
}

func checkRole(role enums.ActorRole) error {
	if !role.IsValid() || role == enums.ActorRoleGuest {
		return fmt.Errorf("%w: %q", ErrTokenRole, role)
	}
	return nil
}
