package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const (
	issuer       = "manas"
	userIDKey    = "user_id"
	bearerPrefix = "Bearer "
)

// IssueToken signs an HS256 access token whose subject is userID.
// A zero ttl issues a token that never expires.
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	if userID == "" {
		return "", errors.New("user id is empty")
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:   issuer,
		Subject:  userID,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}
	return token, nil
}

// parseToken validates a token and returns its subject.
func parseToken(secret []byte, raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// authenticate pins the request to the token's user when a JWT secret is
// configured. Browsers cannot set headers on websocket upgrades, so the token
// may also come from the "token" query parameter.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if len(s.secret) == 0 {
			return next(c)
		}

		raw := c.QueryParam("token")
		if header := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(header, bearerPrefix) {
			raw = strings.TrimPrefix(header, bearerPrefix)
		}
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		userID, err := parseToken(s.secret, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token").SetInternal(err)
		}
		c.Set(userIDKey, userID)
		return next(c)
	}
}

// authenticatedUser returns the token's user, or "" when auth is disabled.
func authenticatedUser(c echo.Context) string {
	userID, _ := c.Get(userIDKey).(string)
	return userID
}
