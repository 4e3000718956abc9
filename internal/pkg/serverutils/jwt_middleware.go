package serverutils

import (
	"errors"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const UserIDKey = "user_id"

var ErrInvalidToken = errors.New("invalid token")

// ParseUserToken validates a bearer token and returns its user_id claim.
func ParseUserToken(tokenStr string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}
	raw, _ := claims[UserIDKey].(string)
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return userID, nil
}

func JwtMiddleware(ctx *fiber.Ctx) error {
	authHeader := ctx.Get("Authorization")
	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(401, "Missing token"))
	}

	userID, err := ParseUserToken(authHeader[7:])
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(401, "Invalid token"))
	}

	ctx.Locals(UserIDKey, userID.String())
	return ctx.Next()
}

// QueryTokenMiddleware authenticates websocket upgrades, which cannot carry headers from browsers.
func QueryTokenMiddleware(ctx *fiber.Ctx) error {
	token := ctx.Query("token")
	if token == "" {
		return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(401, "Missing token"))
	}
	userID, err := ParseUserToken(token)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(401, "Invalid token"))
	}
	ctx.Locals(UserIDKey, userID.String())
	return ctx.Next()
}

// CurrentUserID reads the id stored by the auth middlewares.
func CurrentUserID(ctx *fiber.Ctx) (uuid.UUID, error) {
	raw, _ := ctx.Locals(UserIDKey).(string)
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "unauthenticated")
	}
	return userID, nil
}
