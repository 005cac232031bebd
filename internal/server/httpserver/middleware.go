package httpserver

import (
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/userportal/internal/common"
	"github.com/dmitrijs2005/userportal/internal/logging"
	"github.com/dmitrijs2005/userportal/internal/server/auth"
	"github.com/dmitrijs2005/userportal/internal/server/metrics"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const claimsKey = "claims"

// TokenVerifier checks bearer tokens.
type TokenVerifier interface {
	VerifyRequestToken(token string) (*auth.Claims, error)
}

// requireToken rejects requests without a valid "Authorization: Bearer"
// header and stores the verified claims in the echo context.
func requireToken(v TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, common.TokenPrefix) {
				return common.ErrTokenInvalid
			}

			claims, err := v.VerifyRequestToken(strings.TrimPrefix(header, common.TokenPrefix))
			if err != nil {
				return err
			}

			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

func claimsFrom(c echo.Context) *auth.Claims {
	claims, _ := c.Get(claimsKey).(*auth.Claims)
	return claims
}

// requireAuthority must run after requireToken.
func requireAuthority(authority string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !claimsFrom(c).HasAuthority(authority) {
				return common.ErrForbidden
			}
			return next(c)
		}
	}
}

// requestLogger logs one line per request through logging.Logger and feeds
// the HTTP metrics. Errors are passed to the error handler first so the
// logged status is the one sent.
func requestLogger(logger logging.Logger, m *metrics.Metrics) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/health" || c.Request().URL.Path == "/metrics"
		},
		HandleError:  true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogMethod:    true,
		LogURI:       true,
		LogRoutePath: true,
		LogStatus:    true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			m.ObserveRequest(v.Method, v.RoutePath, strconv.Itoa(v.Status), v.Latency)

			args := []any{
				"method", v.Method,
				"uri", v.URI,
				"route", v.RoutePath,
				"status", v.Status,
				"latency", v.Latency.Round(time.Microsecond).String(),
				"remote_ip", v.RemoteIP,
			}
			if claims := claimsFrom(c); claims != nil {
				args = append(args, "user", claims.Subject)
			}

			ctx := c.Request().Context()
			switch {
			case v.Status >= 500:
				logger.Error(ctx, "request", append(args, "error", v.Error)...)
			case v.Status >= 400:
				logger.Warn(ctx, "request", args...)
			default:
				logger.Info(ctx, "request", args...)
			}
			return nil
		},
	})
}
