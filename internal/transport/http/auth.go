package httpapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/golang-jwt/jwt/v4"
)

const (
	tokenContextKey = "user"
	ownerClaim      = "user_id"
)

// newAuthMiddleware проверяет Bearer JWT (HS256) и кладёт токен в c.Locals("user").
func newAuthMiddleware(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:    []byte(secret),
		SigningMethod: jwtware.HS256,
		ContextKey:    tokenContextKey,
		ErrorHandler: func(c *fiber.Ctx, _ error) error {
			return writeMessage(c, fiber.StatusUnauthorized, msgUnauthenticated)
		},
		SuccessHandler: func(c *fiber.Ctx) error {
			if _, err := ownerFromCtx(c); err != nil {
				return writeMessage(c, fiber.StatusUnauthorized, msgUnauthenticated)
			}
			return c.Next()
		},
	})
}

// ownerFromCtx достаёт идентификатор владельца из claim user_id.
// Числовые идентификаторы приводятся к строке.
func ownerFromCtx(c *fiber.Ctx) (string, error) {
	tok, ok := c.Locals(tokenContextKey).(*jwt.Token)
	if !ok || tok == nil {
		return "", fiber.ErrUnauthorized
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", fiber.ErrUnauthorized
	}
	switch v := claims[ownerClaim].(type) {
	case float64:
		if v != float64(int64(v)) {
			return "", fiber.ErrUnauthorized
		}
		return strconv.FormatInt(int64(v), 10), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case string:
		if v == "" {
			return "", fiber.ErrUnauthorized
		}
		return v, nil
	default:
		return "", fiber.ErrUnauthorized
	}
}

// SignToken выпускает HS256-токен для владельца. Используется в тестах и локальной отладке.
func SignToken(secret string, ownerID any, claims jwt.MapClaims) (string, error) {
	if claims == nil {
		claims = jwt.MapClaims{}
	}
	claims[ownerClaim] = ownerID
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
