package middleware

import (
	"FaceGrouping/internal/entity"
	jwtPkg "FaceGrouping/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const AdminRole = "admin"

type tokenMiddleware struct {
	secret string
}

func newTokenMiddleware(secret string) *tokenMiddleware {
	return &tokenMiddleware{secret: secret}
}

func unauthorized(ctx *fiber.Ctx) error {
	return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "Unauthorized, access token invalid or expired",
	})
}

// NewTokenMiddleware admits callers holding an unexpired HS256 token whose
// role claim is admin.
func (m *middleware) NewTokenMiddleware(ctx *fiber.Ctx) error {
	log := m.log.WithFields(logrus.Fields{
		"path":       ctx.Path(),
		"method":     ctx.Method(),
		"client_ip":  ctx.IP(),
		"request_id": m.GetRequestID(ctx),
	})

	userToken, err := jwtPkg.VerifyTokenHeader(ctx, m.token.secret)
	if err != nil {
		log.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Warn("Token verification failed")
		return unauthorized(ctx)
	}

	claims, ok := userToken.Claims.(jwt.MapClaims)
	if !ok {
		log.Warn("Invalid token claims")
		return unauthorized(ctx)
	}

	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" || role != AdminRole {
		log.WithFields(logrus.Fields{
			"sub":  sub,
			"role": role,
		}).Warn("Token lacks admin claims")
		return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden, admin role required",
		})
	}

	ctx.Locals(jwtPkg.OperatorKey, entity.Operator{Subject: sub, Role: role})

	log.WithField("operator", sub).Debug("Authentication successful")
	return ctx.Next()
}
