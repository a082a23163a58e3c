package auth

import (
	"strings"

	"gym-backend/internal/config"
	"gym-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	CtxUserIDKey      = "user_id"
	CtxUserNameKey    = "user_name"
	CtxUserRoleKey    = "user_role"
	CtxAssignedGymKey = "assigned_gym"
)

// Identity is the acting user as established by the JWT middleware.
type Identity struct {
	UserID      uint
	Name        string
	Role        models.UserRole
	AssignedGym string
}

func (i Identity) IsAdmin() bool { return i.Role == models.RoleAdmin }

func JWTMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization header missing")
		}
		claims, err := claimsFromHeader(cfg.JWTSecret, authHeader)
		if err != nil {
			return err
		}
		setLocals(c, claims)
		return c.Next()
	}
}

// OptionalJWT sets the identity when a valid token is present and lets the
// request through either way.
func OptionalJWT(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if h := c.Get("Authorization"); h != "" {
			if claims, err := claimsFromHeader(cfg.JWTSecret, h); err == nil {
				setLocals(c, claims)
			}
		}
		return c.Next()
	}
}

func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roleVal := c.Locals(CtxUserRoleKey)
		role, ok := roleVal.(models.UserRole)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "Role information unavailable")
		}

		for _, r := range allowedRoles {
			if r == role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "You are not allowed to perform this action")
	}
}

// CurrentIdentity reads the identity set by JWTMiddleware.
func CurrentIdentity(c *fiber.Ctx) (Identity, bool) {
	userID, ok := c.Locals(CtxUserIDKey).(uint)
	if !ok || userID == 0 {
		return Identity{}, false
	}
	role, _ := c.Locals(CtxUserRoleKey).(models.UserRole)
	name, _ := c.Locals(CtxUserNameKey).(string)
	gym, _ := c.Locals(CtxAssignedGymKey).(string)
	return Identity{UserID: userID, Name: name, Role: role, AssignedGym: gym}, true
}

func claimsFromHeader(secret, authHeader string) (*JWTCustomClaims, error) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Authorization format must be 'Bearer <token>'")
	}
	claims, err := ParseToken(secret, parts[1])
	if err != nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
	}
	return claims, nil
}

func setLocals(c *fiber.Ctx, claims *JWTCustomClaims) {
	c.Locals(CtxUserIDKey, claims.UserID)
	c.Locals(CtxUserNameKey, claims.Name)
	c.Locals(CtxUserRoleKey, claims.Role)
	c.Locals(CtxAssignedGymKey, claims.AssignedGym)
}
