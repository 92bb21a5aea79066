package auth

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"lmis-backend/internal/models"
)

const (
	CtxUserIDKey   = "user_id"
	CtxUsernameKey = "username"
)

func JWTMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing Authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization header must be 'Bearer <token>'")
		}

		token, err := jwt.ParseWithClaims(parts[1], &JWTCustomClaims{}, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}

		claims, ok := token.Claims.(*JWTCustomClaims)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "cannot decode token claims")
		}

		c.Locals(CtxUserIDKey, claims.UserID)
		c.Locals(CtxUsernameKey, claims.Username)

		return c.Next()
	}
}

// UserID returns the authenticated user's id set by JWTMiddleware.
func UserID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(CtxUserIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

func Username(c *fiber.Ctx) string {
	name, _ := c.Locals(CtxUsernameKey).(string)
	return name
}

// RequireRight passes requests whose user holds at least one of rights
// through any of their roles. ADMINISTRATION satisfies every check.
func RequireRight(db *gorm.DB, rights ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := UserID(c)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "no authenticated user")
		}

		var user models.User
		err := db.WithContext(c.UserContext()).
			Preload("Roles.Rights").
			First(&user, "id = ?", userID).Error
		if err != nil {
			return fiber.NewError(fiber.StatusForbidden, "unknown user")
		}
		if !user.Active {
			return fiber.NewError(fiber.StatusForbidden, "user is inactive")
		}

		if user.HasRight(models.RightAdministration) {
			return c.Next()
		}
		for _, r := range rights {
			if user.HasRight(r) {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "you do not have the right to perform this operation")
	}
}
