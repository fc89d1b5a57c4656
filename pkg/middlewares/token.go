package middlewares

import (
	"marketplace_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
)

const (
	//QueryToken token in query name
	QueryToken = "auth"

	//CookieToken token in cookie name
	CookieToken = "auth_token"

	//TokenMemberID get member form token, set c.locals name
	TokenMemberID = "MemberID"
	//TokenRole get role form token, set c.locals name
	TokenRole = "role"
)

// JWTMiddleware validate the upstream issued token; Authorization header, then query, then cookie
func JWTMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := token.FromBearer(c.Get(fiber.HeaderAuthorization))

		if tokenStr == "" {
			tokenStr = c.Query(QueryToken)
		}

		// 如果仍然沒有 token，嘗試從 Cookie 中獲取
		if tokenStr == "" {
			tokenStr = c.Cookies(CookieToken)
		}

		if tokenStr == "" {
			return unauthorized(c, "missing token")
		}

		claims, err := token.ParseJWT(tokenStr)
		if err != nil {
			return unauthorized(c, "invalid token")
		}

		c.Locals(TokenMemberID, claims.MemberID)
		c.Locals(TokenRole, claims.Role)
		return c.Next()
	}
}

// RequireRole allow only tokens carrying role; must run after JWTMiddleware
func RequireRole(role token.RoleType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if r, _ := c.Locals(TokenRole).(string); r != string(role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "forbidden",
				"code":  fiber.StatusForbidden,
			})
		}
		return c.Next()
	}
}

// MemberID identity set by JWTMiddleware
func MemberID(c *fiber.Ctx) string {
	id, _ := c.Locals(TokenMemberID).(string)
	return id
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": msg,
		"code":  fiber.StatusUnauthorized,
	})
}
