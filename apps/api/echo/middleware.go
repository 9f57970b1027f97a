package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
)

// adminMiddleware only lets users holding one of `roles` through (any admin role when empty).
func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.IsAdmin && contextHasAnyRole(claims, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func contextHasAnyRole(claims Claims, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if core.Contains(claims.Roles, role) {
			return true
		}
	}
	return false
}
