package jwtPkg

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"FaceGrouping/internal/entity"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const OperatorKey = "operator"

var ErrSecretNotConfigured = errors.New("JWT secret not configured")

func Sign(secret string, data map[string]interface{}, expiredAfter time.Duration) (string, int64, error) {
	if secret == "" {
		return "", 0, ErrSecretNotConfigured
	}
	expiredAt := time.Now().Add(expiredAfter).Unix()

	claims := jwt.MapClaims{}
	claims["exp"] = expiredAt

	for k, v := range data {
		claims[k] = v
	}

	to := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := to.SignedString([]byte(secret))
	if err != nil {
		logrus.WithError(err).Error("Failed to sign token")
		return "", 0, err
	}

	return accessToken, expiredAt, nil
}

func VerifyTokenHeader(c *fiber.Ctx, secret string) (*jwt.Token, error) {
	log := logrus.WithField("func", "VerifyTokenHeader")

	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return nil, errors.New("empty Authorization header")
	}

	accessToken, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, errors.New("invalid Authorization format")
	}

	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, errors.New("empty token")
	}

	return Verify(accessToken, secret, log)
}

func Verify(accessToken, secret string, log *logrus.Entry) (*jwt.Token, error) {
	if secret == "" {
		log.Error("JWT_ACCESS_TOKEN_SECRET environment variable not set")
		return nil, ErrSecretNotConfigured
	}

	token, err := jwt.Parse(accessToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())

	if err != nil {
		log.WithError(err).Debug("Failed to parse JWT token")
		return nil, err
	}

	return token, nil
}

func GetOperator(c *fiber.Ctx) (entity.Operator, error) {
	op, ok := c.Locals(OperatorKey).(entity.Operator)
	if !ok {
		return entity.Operator{}, fiber.ErrUnauthorized
	}

	return op, nil
}
